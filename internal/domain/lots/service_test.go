package lots

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain"
	"timberlot/internal/domain/kassa"
	"timberlot/pkg/numerator"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// mutableLocker lets a test move the current rate after records locked theirs.
type mutableLocker struct {
	usdRate types.Money
}

func (l *mutableLocker) LockFor(_ context.Context, cur currency.Currency) (types.Money, error) {
	if cur.IsReporting() {
		return decimal.NewFromInt(1), nil
	}
	return l.usdRate, nil
}

type memLots struct {
	byID map[id.ID]*Lot
}

func newMemLots() *memLots { return &memLots{byID: make(map[id.ID]*Lot)} }

func (m *memLots) Create(_ context.Context, lot *Lot) error {
	m.byID[lot.ID] = lot
	return nil
}

func (m *memLots) GetByID(_ context.Context, lotID id.ID) (*Lot, error) {
	lot, ok := m.byID[lotID]
	if !ok || lot.DeletionMark {
		return nil, apperror.NewNotFound("lot", lotID.String())
	}
	clone := *lot
	return &clone, nil
}

func (m *memLots) Update(_ context.Context, lot *Lot) error {
	stored, ok := m.byID[lot.ID]
	if !ok {
		return apperror.NewNotFound("lot", lot.ID.String())
	}
	if stored.Version != lot.Version {
		return apperror.NewConcurrentModification("lot", lot.ID.String())
	}
	lot.Version++
	clone := *lot
	m.byID[lot.ID] = &clone
	return nil
}

func (m *memLots) SetDeletionMark(_ context.Context, lotID id.ID, marked bool) error {
	lot, ok := m.byID[lotID]
	if !ok {
		return apperror.NewNotFound("lot", lotID.String())
	}
	lot.DeletionMark = marked
	return nil
}

func (m *memLots) List(_ context.Context, _ ListFilter) (domain.ListResult[*Lot], error) {
	return domain.ListResult[*Lot]{}, nil
}

type memRecords struct {
	purchases []*PurchaseRecord
	expenses  []*ExpenseRecord
	sales     []*SaleRecord
}

func (m *memRecords) CreatePurchase(_ context.Context, r *PurchaseRecord) error {
	m.purchases = append(m.purchases, r)
	return nil
}

func (m *memRecords) GetPurchase(_ context.Context, lotID id.ID) (*PurchaseRecord, error) {
	for _, r := range m.purchases {
		if r.LotID == lotID && !r.DeletionMark {
			return r, nil
		}
	}
	return nil, apperror.NewNotFound("purchase record", lotID.String())
}

func (m *memRecords) CreateExpense(_ context.Context, r *ExpenseRecord) error {
	m.expenses = append(m.expenses, r)
	return nil
}

func (m *memRecords) ListExpenses(_ context.Context, lotID id.ID) ([]*ExpenseRecord, error) {
	var out []*ExpenseRecord
	for _, r := range m.expenses {
		if r.LotID != nil && *r.LotID == lotID && !r.DeletionMark {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRecords) SumExpenses(ctx context.Context, lotID id.ID) (types.Money, error) {
	list, _ := m.ListExpenses(ctx, lotID)
	sum := types.Zero()
	for _, r := range list {
		sum = sum.Add(r.RUBEquivalent())
	}
	return sum, nil
}

func (m *memRecords) CreateSale(_ context.Context, r *SaleRecord) error {
	m.sales = append(m.sales, r)
	return nil
}

func (m *memRecords) GetSale(_ context.Context, lotID id.ID) (*SaleRecord, error) {
	for _, r := range m.sales {
		if r.LotID == lotID && !r.DeletionMark {
			return r, nil
		}
	}
	return nil, apperror.NewNotFound("sale record", lotID.String())
}

func (m *memRecords) UpdateSale(_ context.Context, r *SaleRecord) error {
	for i, stored := range m.sales {
		if stored.ID == r.ID {
			if stored.Version != r.Version {
				return apperror.NewConcurrentModification("lot_sales", r.ID)
			}
			r.Version++
			m.sales[i] = r
			return nil
		}
	}
	return apperror.NewNotFound("sale record", r.ID.String())
}

func (m *memRecords) SetDeletionMarkByLot(_ context.Context, lotID id.ID, marked bool) error {
	for _, r := range m.purchases {
		if r.LotID == lotID {
			r.DeletionMark = marked
		}
	}
	for _, r := range m.expenses {
		if r.LotID != nil && *r.LotID == lotID {
			r.DeletionMark = marked
		}
	}
	return nil
}

type memLedger struct {
	entries []*kassa.Entry
}

func (m *memLedger) Append(_ context.Context, entry *kassa.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

type fixture struct {
	svc     *Service
	lots    *memLots
	records *memRecords
	ledger  *memLedger
	locker  *mutableLocker
}

func newFixture() *fixture {
	f := &fixture{
		lots:    newMemLots(),
		records: &memRecords{},
		ledger:  &memLedger{},
		locker:  &mutableLocker{usdRate: decimal.NewFromInt(90)},
	}
	f.svc = NewService(f.lots, f.records, f.ledger, f.locker, passthroughTx{}, &numerator.MockGenerator{}, nil)
	return f
}

func standardDims() Dimensions {
	return Dimensions{ThicknessMM: 25, WidthMM: 100, LengthM: 6, Count: 100, Density: 0.6}
}

func TestCreateFromPurchase_LocksRate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Supplier:   "lespromhoz",
		Amount:     types.MustMoney("100"),
		Currency:   currency.USD,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPurchased, lot.Status)
	assert.NotEmpty(t, lot.Number)
	assert.Equal(t, "1.5000", lot.Volume().String())
	assert.Equal(t, "9000", lot.PurchaseCost.String())
	assert.Equal(t, "-9000", lot.NetProfit.String())

	require.Len(t, f.ledger.entries, 1)
	entry := f.ledger.entries[0]
	assert.Equal(t, kassa.TypeExpense, entry.Type)
	assert.Equal(t, "9000", entry.RUBEquivalent.String())
	require.NotNil(t, entry.PurchaseID)

	// A later rate change must not move the locked cost.
	f.locker.usdRate = decimal.NewFromInt(120)
	got, drifted, err := f.svc.Recompute(ctx, lot.ID)
	require.NoError(t, err)
	assert.False(t, drifted)
	assert.Equal(t, "9000", got.PurchaseCost.String())
}

func TestAttachExpense_SumsFreshOverLiveRecords(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Amount:     types.MustMoney("4500"),
		Currency:   currency.RUB,
	})
	require.NoError(t, err)

	_, err = f.svc.AttachExpense(ctx, lot.ID, ExpenseInput{
		Type:     ExpenseTransportIn,
		Amount:   types.MustMoney("1000"),
		Currency: currency.RUB,
	})
	require.NoError(t, err)

	expense, err := f.svc.AttachExpense(ctx, lot.ID, ExpenseInput{
		Type:     ExpenseCustomsIn,
		Amount:   types.MustMoney("10"),
		Currency: currency.USD,
	})
	require.NoError(t, err)
	assert.Equal(t, "90", expense.RUBEquivalent().String())

	got, err := f.svc.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, "1090", got.ExpenseTotal.String())

	// Ledger got one entry per mutation, expense entries tagged with subtype.
	require.Len(t, f.ledger.entries, 3)
	assert.Equal(t, string(ExpenseCustomsIn), f.ledger.entries[2].Subtype)
}

func TestAttachExpense_FrozenLotRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Amount:     types.MustMoney("4500"),
		Currency:   currency.RUB,
	})
	require.NoError(t, err)

	_, err = f.svc.RecordSale(ctx, lot.ID, SaleInput{
		Amount:   types.MustMoney("9000"),
		Currency: currency.RUB,
	})
	require.NoError(t, err)

	_, err = f.svc.AttachExpense(ctx, lot.ID, ExpenseInput{
		Type:     ExpenseStorage,
		Amount:   types.MustMoney("100"),
		Currency: currency.RUB,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeLotFrozen))
}

func TestRecordSale_DerivesLoss(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Amount:     types.MustMoney("4500"),
		Currency:   currency.RUB,
	})
	require.NoError(t, err)

	_, err = f.svc.AttachExpense(ctx, lot.ID, ExpenseInput{
		Type:     ExpenseTransportIn,
		Amount:   types.MustMoney("5100"),
		Currency: currency.RUB,
	})
	require.NoError(t, err)

	_, err = f.svc.RecordSale(ctx, lot.ID, SaleInput{
		Amount:   types.MustMoney("100"),
		Currency: currency.RUB,
	})
	require.NoError(t, err)

	got, err := f.svc.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSold, got.Status)
	assert.Equal(t, "-9500", got.NetProfit.String())
	assert.Equal(t, "-211.1", got.ProfitPercent.Round(1).String())
}

func TestRecordSale_SecondSaleConflictLeavesRevenue(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Amount:     types.MustMoney("4500"),
		Currency:   currency.RUB,
	})
	require.NoError(t, err)

	_, err = f.svc.RecordSale(ctx, lot.ID, SaleInput{
		Amount:   types.MustMoney("9000"),
		Currency: currency.RUB,
	})
	require.NoError(t, err)

	entriesBefore := len(f.ledger.entries)

	_, err = f.svc.RecordSale(ctx, lot.ID, SaleInput{
		Amount:   types.MustMoney("12000"),
		Currency: currency.RUB,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeLotAlreadySold))

	got, err := f.svc.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, "9000", got.Revenue.String())
	assert.Len(t, f.ledger.entries, entriesBefore)
}

func TestUpdateStatus_RejectsBackwardMove(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Amount:     types.MustMoney("4500"),
		Currency:   currency.RUB,
	})
	require.NoError(t, err)

	lot, err = f.svc.UpdateStatus(ctx, lot.ID, StatusArriving)
	require.NoError(t, err)
	assert.Equal(t, StatusArriving, lot.Status)

	_, err = f.svc.UpdateStatus(ctx, lot.ID, StatusPurchased)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))

	_, err = f.svc.UpdateStatus(ctx, lot.ID, StatusDeparting)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))
}

func TestUpdateStatus_SoldOnlyThroughSale(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Amount:     types.MustMoney("4500"),
		Currency:   currency.RUB,
	})
	require.NoError(t, err)

	for _, next := range []Status{StatusArriving, StatusInWarehouse, StatusProcessing, StatusDeparting} {
		lot, err = f.svc.UpdateStatus(ctx, lot.ID, next)
		require.NoError(t, err)
	}
	assert.Equal(t, StatusDeparting, lot.Status)

	// Walking into sold without a sale record would freeze the lot with
	// zero revenue and no way to ever record the sale.
	_, err = f.svc.UpdateStatus(ctx, lot.ID, StatusSold)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInvalidTransition))

	got, err := f.svc.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeparting, got.Status)
	_, err = f.records.GetSale(ctx, lot.ID)
	assert.True(t, apperror.IsNotFound(err))

	// The sale path still works after the rejected move.
	_, err = f.svc.RecordSale(ctx, lot.ID, SaleInput{
		Amount:   types.MustMoney("9000"),
		Currency: currency.RUB,
	})
	require.NoError(t, err)

	got, err = f.svc.GetByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSold, got.Status)
	assert.Equal(t, "9000", got.Revenue.String())
}

func TestCreateFromPurchase_UnitPriceTimesVolume(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	// 0.025m x 0.1m x 10m x 200 boards = 5 m3.
	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: Dimensions{ThicknessMM: 25, WidthMM: 100, LengthM: 10, Count: 200, Density: 0.6},
		Location:   "Tavda",
		UnitPrice:  types.MustMoney("10"),
		Currency:   currency.USD,
	})
	require.NoError(t, err)

	assert.Equal(t, "5.0000", lot.Volume().String())
	// 10 USD/m3 x 5 m3 x rate 90.
	assert.Equal(t, "4500", lot.PurchaseCost.String())

	purchase, err := f.records.GetPurchase(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", purchase.Value.String())
	assert.Equal(t, "10", purchase.UnitPrice.String())
	assert.Equal(t, "Tavda", purchase.Location)
	assert.Equal(t, PaymentPaid, purchase.PaymentStatus)

	// The locked total must not move with the rate.
	f.locker.usdRate = decimal.NewFromInt(120)
	got, drifted, err := f.svc.Recompute(ctx, lot.ID)
	require.NoError(t, err)
	assert.False(t, drifted)
	assert.Equal(t, "4500", got.PurchaseCost.String())
}

func TestSettleSale_ReleasesCreditSale(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Amount:     types.MustMoney("4500"),
		Currency:   currency.RUB,
	})
	require.NoError(t, err)

	clientID := id.New()
	sale, err := f.svc.RecordSale(ctx, lot.ID, SaleInput{
		ClientID:    &clientID,
		Amount:      types.MustMoney("9000"),
		Currency:    currency.RUB,
		ContractRef: "DOG-17",
	})
	require.NoError(t, err)
	assert.Equal(t, PaymentUnpaid, sale.PaymentStatus)
	assert.Equal(t, "DOG-17", sale.ContractRef)

	entriesBefore := len(f.ledger.entries)

	settled, err := f.svc.SettleSale(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, settled.PaymentStatus)

	// Income was booked when the sale was recorded; settling moves no cash.
	assert.Len(t, f.ledger.entries, entriesBefore)

	// Settling again is a no-op.
	again, err := f.svc.SettleSale(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, again.PaymentStatus)
	assert.Len(t, f.ledger.entries, entriesBefore)
}

func TestRecordSale_CashSaleStartsPaid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Amount:     types.MustMoney("4500"),
		Currency:   currency.RUB,
	})
	require.NoError(t, err)

	sale, err := f.svc.RecordSale(ctx, lot.ID, SaleInput{
		Amount:   types.MustMoney("9000"),
		Currency: currency.RUB,
	})
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, sale.PaymentStatus)
}

func TestDelete_ForbiddenWithLiveSale(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Amount:     types.MustMoney("4500"),
		Currency:   currency.RUB,
	})
	require.NoError(t, err)

	_, err = f.svc.RecordSale(ctx, lot.ID, SaleInput{
		Amount:   types.MustMoney("9000"),
		Currency: currency.RUB,
	})
	require.NoError(t, err)

	err = f.svc.Delete(ctx, lot.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeHasDependents))

	// Still readable.
	_, err = f.svc.GetByID(ctx, lot.ID)
	require.NoError(t, err)
}

func TestDelete_CascadesToRecords(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Amount:     types.MustMoney("4500"),
		Currency:   currency.RUB,
	})
	require.NoError(t, err)

	_, err = f.svc.AttachExpense(ctx, lot.ID, ExpenseInput{
		Type:     ExpenseLoading,
		Amount:   types.MustMoney("300"),
		Currency: currency.RUB,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, lot.ID))

	_, err = f.svc.GetByID(ctx, lot.ID)
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.records.GetPurchase(ctx, lot.ID)
	assert.True(t, apperror.IsNotFound(err))
	expenses, _ := f.records.ListExpenses(ctx, lot.ID)
	assert.Empty(t, expenses)
}

func TestRecompute_RepairsDriftedAggregates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	lot, err := f.svc.CreateFromPurchase(ctx, PurchaseInput{
		Dimensions: standardDims(),
		Amount:     types.MustMoney("4500"),
		Currency:   currency.RUB,
	})
	require.NoError(t, err)

	// Corrupt the stored aggregate behind the service's back.
	f.lots.byID[lot.ID].PurchaseCost = types.MustMoney("9999")

	got, drifted, err := f.svc.Recompute(ctx, lot.ID)
	require.NoError(t, err)
	assert.True(t, drifted)
	assert.Equal(t, "4500", got.PurchaseCost.String())

	// Second run finds nothing to repair.
	_, drifted, err = f.svc.Recompute(ctx, lot.ID)
	require.NoError(t, err)
	assert.False(t, drifted)
}
