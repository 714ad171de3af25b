package rates

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/domain"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockRepo struct {
	current     map[currency.Direction]*Rate
	deactivated int
}

func newMockRepo() *mockRepo {
	return &mockRepo{current: make(map[currency.Direction]*Rate)}
}

func (m *mockRepo) Create(_ context.Context, rate *Rate) error {
	m.current[rate.Direction] = rate
	return nil
}

func (m *mockRepo) GetCurrent(_ context.Context, direction currency.Direction) (*Rate, error) {
	r, ok := m.current[direction]
	if !ok {
		return nil, apperror.NewNotFound("exchange rate", string(direction))
	}
	return r, nil
}

func (m *mockRepo) DeactivateCurrent(_ context.Context, direction currency.Direction) error {
	if r, ok := m.current[direction]; ok {
		r.IsActive = false
		delete(m.current, direction)
		m.deactivated++
	}
	return nil
}

func (m *mockRepo) History(_ context.Context, _ currency.Direction, _ HistoryFilter) (domain.ListResult[*Rate], error) {
	return domain.ListResult[*Rate]{}, nil
}

func TestSetRate_ReplacesCurrent(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, passthroughTx{}, nil)
	ctx := context.Background()

	first, err := svc.SetRate(ctx, currency.USDToRUB, decimal.NewFromInt(90), SourceManual, "anna")
	require.NoError(t, err)
	assert.True(t, first.IsActive)

	second, err := svc.SetRate(ctx, currency.USDToRUB, decimal.NewFromInt(92), SourceManual, "anna")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.deactivated)
	assert.False(t, first.IsActive)

	current, err := svc.GetCurrentRate(ctx, currency.USDToRUB)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)
	assert.Equal(t, "92", current.Rate.String())
}

func TestSetRate_RejectsNonPositive(t *testing.T) {
	svc := NewService(newMockRepo(), passthroughTx{}, nil)

	for _, raw := range []string{"0", "-1"} {
		_, err := svc.SetRate(context.Background(), currency.USDToRUB, decimal.RequireFromString(raw), SourceManual, "anna")
		require.Error(t, err, "rate %s must be rejected", raw)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	}
}

func TestLockFor_ReportingCurrencyIsOne(t *testing.T) {
	svc := NewService(newMockRepo(), passthroughTx{}, nil)

	rate, err := svc.LockFor(context.Background(), currency.RUB)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
}

func TestLockFor_MissingRateFailsClosed(t *testing.T) {
	svc := NewService(newMockRepo(), passthroughTx{}, nil)

	_, err := svc.LockFor(context.Background(), currency.USD)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err), "missing rate must surface as not found, got %v", err)
}

func TestLockFor_ReturnsCurrentValue(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, passthroughTx{}, nil)
	ctx := context.Background()

	_, err := svc.SetRate(ctx, currency.USDToRUB, decimal.RequireFromString("91.50"), SourceAPI, "sync")
	require.NoError(t, err)

	rate, err := svc.LockFor(ctx, currency.USD)
	require.NoError(t, err)
	assert.Equal(t, "91.5", rate.String())
}
