package catalog_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"timberlot/internal/core/apperror"
	"timberlot/internal/domain/catalogs/client"
	"timberlot/internal/infrastructure/storage/postgres"
)

const clientTable = "cat_clients"

// ClientRepo implements client.Repository.
type ClientRepo struct {
	*BaseCatalogRepo[*client.Client]
}

// NewClientRepo creates a new client repository.
func NewClientRepo(txManager *postgres.TxManager) *ClientRepo {
	return &ClientRepo{
		BaseCatalogRepo: NewBaseCatalogRepo[*client.Client](
			txManager,
			clientTable,
			postgres.ExtractDBColumns[client.Client](),
			func() *client.Client { return &client.Client{} },
		),
	}
}

// FindByPhone retrieves a client by phone number.
func (r *ClientRepo) FindByPhone(ctx context.Context, phone string) (*client.Client, error) {
	q := r.baseSelect(ctx).
		Where(squirrel.Eq{"phone": phone}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	c, err := r.FindOne(ctx, q)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("client", phone)
		}
		return nil, err
	}
	return c, nil
}

var _ client.Repository = (*ClientRepo)(nil)
