package client

import (
	"context"
	"fmt"
	"time"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/tx"
	"timberlot/internal/domain"
	"timberlot/pkg/numerator"
)

// Service provides business logic for the Client catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Client]
	repo      Repository
	numerator numerator.Generator
}

// NewService creates a new Client service.
func NewService(repo Repository, txManager tx.Manager, gen numerator.Generator) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Client]{
		Repo:       repo,
		TxManager:  txManager,
		EntityName: "client",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		numerator:      gen,
	}

	base.Hooks().On(domain.BeforeCreate, svc.prepareForCreate)

	return svc
}

// prepareForCreate handles code generation and uniqueness checks before create.
func (s *Service) prepareForCreate(ctx context.Context, c *Client) error {
	if c.Code == "" {
		cfg := numerator.DefaultConfig("CL")
		code, err := s.numerator.GetNextNumber(ctx, cfg, nil, time.Now())
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		c.Code = code
	}

	exists, err := s.repo.ExistsByCode(ctx, c.Code)
	if err != nil {
		return err
	}
	if exists {
		return apperror.NewDuplicate("client", "code", c.Code)
	}

	return nil
}
