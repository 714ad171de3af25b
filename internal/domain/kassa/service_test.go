package kassa

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain"
	"timberlot/pkg/numerator"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fixedLocker returns a fixed rate for USD and 1 for RUB.
type fixedLocker struct {
	usdRate types.Money
}

func (l fixedLocker) LockFor(_ context.Context, cur currency.Currency) (types.Money, error) {
	if cur.IsReporting() {
		return decimal.NewFromInt(1), nil
	}
	return l.usdRate, nil
}

type memRepo struct {
	entries []*Entry
}

func (m *memRepo) Append(_ context.Context, entry *Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memRepo) GetByID(_ context.Context, entryID id.ID) (*Entry, error) {
	for _, e := range m.entries {
		if e.ID == entryID {
			return e, nil
		}
	}
	return nil, apperror.NewNotFound("kassa entry", entryID.String())
}

func (m *memRepo) List(_ context.Context, _ Filter) (domain.ListResult[*Entry], error) {
	live := make([]*Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if !e.DeletionMark {
			live = append(live, e)
		}
	}
	return domain.ListResult[*Entry]{Items: live, TotalCount: int64(len(live))}, nil
}

func (m *memRepo) SetDeletionMark(_ context.Context, entryID id.ID, marked bool) error {
	for _, e := range m.entries {
		if e.ID == entryID {
			e.DeletionMark = marked
			return nil
		}
	}
	return apperror.NewNotFound("kassa entry", entryID.String())
}

func (m *memRepo) Totals(_ context.Context, _ Filter) ([]TotalRow, error) {
	type key struct {
		t EntryType
		c currency.Currency
	}
	buckets := make(map[key]*TotalRow)
	var order []key
	for _, e := range m.entries {
		if e.DeletionMark {
			continue
		}
		k := key{e.Type, e.Currency}
		row, ok := buckets[k]
		if !ok {
			row = &TotalRow{Type: e.Type, Currency: e.Currency, Native: types.Zero(), RUB: types.Zero()}
			buckets[k] = row
			order = append(order, k)
		}
		row.Native = row.Native.Add(e.Amount)
		row.RUB = row.RUB.Add(e.RUBEquivalent)
	}
	rows := make([]TotalRow, 0, len(order))
	for _, k := range order {
		rows = append(rows, *buckets[k])
	}
	return rows, nil
}

func newTestService(repo *memRepo) *Service {
	return NewService(repo, passthroughTx{}, &numerator.MockGenerator{}, fixedLocker{usdRate: decimal.NewFromInt(90)}, nil)
}

func mustAmount(t *testing.T, value string, cur currency.Currency, rate string) currency.Amount {
	t.Helper()
	a, err := currency.NewAmount(types.MustMoney(value), cur, types.MustMoney(rate))
	require.NoError(t, err)
	return a
}

func TestAppend_AssignsNumberAndLocksEquivalent(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	entry := NewEntry(TypeIncome, mustAmount(t, "100", currency.USD, "90"), time.Now(), "lot sale")
	require.NoError(t, svc.Append(ctx, entry))

	assert.NotEmpty(t, entry.Number)
	assert.Equal(t, "9000", entry.RUBEquivalent.String())
}

func TestAppend_RejectsInvalidEntries(t *testing.T) {
	svc := newTestService(&memRepo{})
	ctx := context.Background()

	t.Run("non-positive amount", func(t *testing.T) {
		entry := NewEntry(TypeExpense, currency.Amount{Value: types.Zero(), Currency: currency.RUB, Rate: decimal.NewFromInt(1)}, time.Now(), "zero")
		err := svc.Append(ctx, entry)
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	})

	t.Run("two back-references", func(t *testing.T) {
		entry := NewEntry(TypeIncome, mustAmount(t, "10", currency.RUB, "1"), time.Now(), "conflicting refs")
		a, b := id.New(), id.New()
		entry.SaleID = &a
		entry.PaymentID = &b
		err := svc.Append(ctx, entry)
		require.Error(t, err)
		assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
	})

	t.Run("subtype on income", func(t *testing.T) {
		entry := NewEntry(TypeIncome, mustAmount(t, "10", currency.RUB, "1"), time.Now(), "bad subtype")
		entry.Subtype = "transport_in"
		err := svc.Append(ctx, entry)
		require.Error(t, err)
	})
}

func TestBalance_DerivedSumOverLiveEntries(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	income := NewEntry(TypeIncome, mustAmount(t, "100", currency.USD, "90"), time.Now(), "sale")
	expense := NewEntry(TypeExpense, mustAmount(t, "3000", currency.RUB, "1"), time.Now(), "transport")
	clientIncome := NewEntry(TypeClientIncome, mustAmount(t, "1000", currency.RUB, "1"), time.Now(), "payment")
	shipment := NewEntry(TypeShipmentOut, mustAmount(t, "20", currency.USD, "90"), time.Now(), "wagon")

	for _, e := range []*Entry{income, expense, clientIncome, shipment} {
		require.NoError(t, svc.Append(ctx, e))
	}

	b, err := svc.Balance(ctx, Filter{})
	require.NoError(t, err)

	// income 9000 + 1000, expense 3000; the shipment moved no cash and is
	// reported outside the balance.
	assert.Equal(t, "10000", b.Income.String())
	assert.Equal(t, "3000", b.Expense.String())
	assert.Equal(t, "7000", b.Balance.String())
	assert.Equal(t, "1800", b.ShipmentOut.String())

	usd := b.ByCurrency[currency.USD]
	assert.Equal(t, "100", usd.Income.String())
	assert.True(t, usd.Expense.IsZero())
	assert.Equal(t, "20", usd.ShipmentOut.String())

	// Balance is idempotent: rerunning over unchanged data yields the same result.
	again, err := svc.Balance(ctx, Filter{})
	require.NoError(t, err)
	assert.True(t, b.Balance.Equal(again.Balance))
}

func TestBalance_CreditShipmentDoesNotDrainCash(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	opening := NewEntry(TypeIncome, mustAmount(t, "5000", currency.RUB, "1"), time.Now(), "opening")
	require.NoError(t, svc.Append(ctx, opening))

	before, err := svc.Balance(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "5000", before.Balance.String())

	// Goods shipped to a client on credit: the till holds exactly as much
	// cash as before.
	shipment := NewEntry(TypeShipmentOut, mustAmount(t, "2000", currency.RUB, "1"), time.Now(), "wagon sale")
	saleID := id.New()
	shipment.VagonSaleID = &saleID
	require.NoError(t, svc.Append(ctx, shipment))

	afterShipment, err := svc.Balance(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "5000", afterShipment.Balance.String())
	assert.Equal(t, "2000", afterShipment.ShipmentOut.String())

	// The client paying is the moment cash actually arrives.
	payment := NewEntry(TypeClientIncome, mustAmount(t, "2000", currency.RUB, "1"), time.Now(), "payment")
	require.NoError(t, svc.Append(ctx, payment))

	afterPayment, err := svc.Balance(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "7000", afterPayment.Balance.String())
}

func TestSoftDelete_ExcludesEntryFromBalance(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	keep := NewEntry(TypeIncome, mustAmount(t, "500", currency.RUB, "1"), time.Now(), "keep")
	drop := NewEntry(TypeIncome, mustAmount(t, "200", currency.RUB, "1"), time.Now(), "mistake")
	require.NoError(t, svc.Append(ctx, keep))
	require.NoError(t, svc.Append(ctx, drop))

	require.NoError(t, svc.SoftDelete(ctx, drop.ID))

	b, err := svc.Balance(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "500", b.Balance.String())
}

func TestTransfer_BalancedLegsShareTransferID(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	res, err := svc.Transfer(ctx, TransferInput{
		From:        currency.USD,
		To:          currency.RUB,
		Amount:      types.MustMoney("100"),
		Description: "cash desk conversion",
	})
	require.NoError(t, err)

	assert.Equal(t, TypeExpense, res.Out.Type)
	assert.Equal(t, currency.USD, res.Out.Currency)
	assert.Equal(t, TypeIncome, res.In.Type)
	assert.Equal(t, currency.RUB, res.In.Currency)
	assert.Equal(t, "9000", res.In.Amount.String())

	require.NotNil(t, res.Out.TransferID)
	require.NotNil(t, res.In.TransferID)
	assert.Equal(t, res.TransferID, *res.Out.TransferID)
	assert.Equal(t, res.TransferID, *res.In.TransferID)

	// The two legs cancel in RUB terms.
	assert.True(t, types.WithinEpsilon(res.Out.RUBEquivalent, res.In.RUBEquivalent))

	b, err := svc.Balance(ctx, Filter{})
	require.NoError(t, err)
	assert.True(t, b.Balance.Abs().LessThanOrEqual(types.MoneyEpsilon))
}

func TestTransfer_RoundingGapStaysUnderHalfCent(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	// 100 RUB at rate 90 is 1.1111... USD; rounding the target amount to
	// 2 decimals leaves a RUB gap of 0.10 here, bounded by half a cent of
	// the target currency.
	res, err := svc.Transfer(ctx, TransferInput{
		From:        currency.RUB,
		To:          currency.USD,
		Amount:      types.MustMoney("100"),
		Description: "cash desk conversion",
	})
	require.NoError(t, err)

	assert.Equal(t, "1.11", res.In.Amount.String())

	gap := res.Out.RUBEquivalent.Sub(res.In.RUBEquivalent).Abs()
	bound := types.MustMoney("0.005").Mul(decimal.NewFromInt(90))
	assert.True(t, gap.LessThanOrEqual(bound), "gap %s exceeds %s", gap, bound)
	assert.Equal(t, "0.1", gap.String())
}

func TestTransfer_RejectsSameCurrency(t *testing.T) {
	svc := newTestService(&memRepo{})

	_, err := svc.Transfer(context.Background(), TransferInput{
		From:   currency.RUB,
		To:     currency.RUB,
		Amount: types.MustMoney("100"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}
