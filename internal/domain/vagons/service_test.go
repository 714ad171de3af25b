package vagons

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
	"timberlot/internal/domain/kassa"
	"timberlot/pkg/numerator"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mutableLocker struct {
	usdRate types.Money
}

func (l *mutableLocker) LockFor(_ context.Context, cur currency.Currency) (types.Money, error) {
	if cur.IsReporting() {
		return decimal.NewFromInt(1), nil
	}
	return l.usdRate, nil
}

type memVagons struct {
	byID map[id.ID]*Vagon
}

func newMemVagons() *memVagons { return &memVagons{byID: make(map[id.ID]*Vagon)} }

func (m *memVagons) Create(_ context.Context, v *Vagon) error {
	m.byID[v.ID] = v
	return nil
}

func (m *memVagons) GetByID(_ context.Context, vagonID id.ID) (*Vagon, error) {
	v, ok := m.byID[vagonID]
	if !ok || v.DeletionMark {
		return nil, apperror.NewNotFound("vagon", vagonID.String())
	}
	clone := *v
	return &clone, nil
}

func (m *memVagons) Update(_ context.Context, v *Vagon) error {
	stored, ok := m.byID[v.ID]
	if !ok {
		return apperror.NewNotFound("vagon", v.ID.String())
	}
	if stored.Version != v.Version {
		return apperror.NewConcurrentModification("vagon", v.ID.String())
	}
	v.Version++
	clone := *v
	m.byID[v.ID] = &clone
	return nil
}

func (m *memVagons) SetDeletionMark(_ context.Context, vagonID id.ID, marked bool) error {
	v, ok := m.byID[vagonID]
	if !ok {
		return apperror.NewNotFound("vagon", vagonID.String())
	}
	v.DeletionMark = marked
	return nil
}

func (m *memVagons) List(_ context.Context, _ ListFilter) (domain.ListResult[*Vagon], error) {
	return domain.ListResult[*Vagon]{}, nil
}

type memSales struct {
	sales    []*VagonSale
	payments []*Payment
}

func (m *memSales) Create(_ context.Context, s *VagonSale) error {
	m.sales = append(m.sales, s)
	return nil
}

func (m *memSales) GetByID(_ context.Context, saleID id.ID) (*VagonSale, error) {
	for _, s := range m.sales {
		if s.ID == saleID && !s.DeletionMark {
			clone := *s
			return &clone, nil
		}
	}
	return nil, apperror.NewNotFound("vagon sale", saleID.String())
}

func (m *memSales) Update(_ context.Context, sale *VagonSale) error {
	for i, s := range m.sales {
		if s.ID == sale.ID {
			if s.Version != sale.Version {
				return apperror.NewConcurrentModification("vagon sale", sale.ID.String())
			}
			sale.Version++
			clone := *sale
			m.sales[i] = &clone
			return nil
		}
	}
	return apperror.NewNotFound("vagon sale", sale.ID.String())
}

func (m *memSales) SetDeletionMark(_ context.Context, saleID id.ID, marked bool) error {
	for _, s := range m.sales {
		if s.ID == saleID {
			s.DeletionMark = marked
			return nil
		}
	}
	return apperror.NewNotFound("vagon sale", saleID.String())
}

func (m *memSales) ListByVagon(_ context.Context, vagonID id.ID) ([]*VagonSale, error) {
	var out []*VagonSale
	for _, s := range m.sales {
		if s.VagonID == vagonID && !s.DeletionMark {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSales) SumByVagon(ctx context.Context, vagonID id.ID) (SaleTotals, error) {
	totals := SaleTotals{Revenue: types.Zero()}
	list, _ := m.ListByVagon(ctx, vagonID)
	for _, s := range list {
		totals.Sent = totals.Sent.Add(s.SentVolume)
		totals.Accepted = totals.Accepted.Add(s.AcceptedVolume)
		totals.Revenue = totals.Revenue.Add(s.RUBEquivalent())
	}
	return totals, nil
}

func (m *memSales) CreatePayment(_ context.Context, p *Payment) error {
	m.payments = append(m.payments, p)
	return nil
}

func (m *memSales) ListPayments(_ context.Context, saleID id.ID) ([]*Payment, error) {
	var out []*Payment
	for _, p := range m.payments {
		if p.VagonSaleID == saleID && !p.DeletionMark {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memSales) SumPayments(ctx context.Context, saleID id.ID) (types.Money, error) {
	sum := types.Zero()
	list, _ := m.ListPayments(ctx, saleID)
	for _, p := range list {
		sum = sum.Add(p.Value)
	}
	return sum, nil
}

type memLedger struct {
	entries []*kassa.Entry
}

func (m *memLedger) Append(_ context.Context, entry *kassa.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

type fixture struct {
	svc    *Service
	vagons *memVagons
	sales  *memSales
	ledger *memLedger
	locker *mutableLocker
}

func newFixture() *fixture {
	f := &fixture{
		vagons: newMemVagons(),
		sales:  &memSales{},
		ledger: &memLedger{},
		locker: &mutableLocker{usdRate: decimal.NewFromInt(90)},
	}
	f.svc = NewService(f.vagons, f.sales, f.ledger, f.locker, passthroughTx{}, &numerator.MockGenerator{}, nil)
	return f
}

func vol(v float64) types.Volume { return types.NewVolumeFromFloat64(v) }

func (f *fixture) createVagon(t *testing.T, arrived, loss float64, cost string) *Vagon {
	t.Helper()
	v, err := f.svc.Create(context.Background(), CreateInput{
		ArrivedVolume:     vol(arrived),
		ArrivalLossVolume: vol(loss),
		Cost:              types.MustMoney(cost),
	})
	require.NoError(t, err)
	return v
}

func TestCreate_RejectsLossOverArrived(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), CreateInput{
		ArrivedVolume:     vol(90),
		ArrivalLossVolume: vol(91),
		Cost:              types.MustMoney("100000"),
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestRecordSale_SumsAcceptedAcrossSales(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vagon := f.createVagon(t, 95, 0, "300000")

	first, err := f.svc.RecordSale(ctx, vagon.ID, SaleInput{
		ClientID:         id.New(),
		SentVolume:       vol(50),
		ClientLossVolume: vol(2),
		PricePerUnit:     types.MustMoney("5000"),
		Currency:         currency.RUB,
	})
	require.NoError(t, err)
	assert.Equal(t, "48.0000", first.AcceptedVolume.String())

	second, err := f.svc.RecordSale(ctx, vagon.ID, SaleInput{
		ClientID:         id.New(),
		SentVolume:       vol(45),
		ClientLossVolume: vol(3),
		PricePerUnit:     types.MustMoney("5000"),
		Currency:         currency.RUB,
	})
	require.NoError(t, err)
	assert.Equal(t, "42.0000", second.AcceptedVolume.String())

	got, err := f.svc.GetByID(ctx, vagon.ID)
	require.NoError(t, err)
	assert.Equal(t, "90.0000", got.AcceptedVolume.String())
	assert.Equal(t, "95.0000", got.SentVolume.String())
	assert.Equal(t, "5.0000", got.RemainingVolume().String())
	// revenue 48*5000 + 42*5000 = 450000, cost 300000
	assert.Equal(t, "450000", got.Revenue.String())
	assert.Equal(t, "150000", got.NetProfit.String())
}

func TestRecordSale_LocksRateForTotal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vagon := f.createVagon(t, 10, 0, "0")

	sale, err := f.svc.RecordSale(ctx, vagon.ID, SaleInput{
		ClientID:     id.New(),
		SentVolume:   vol(5),
		PricePerUnit: types.MustMoney("10"),
		Currency:     currency.USD,
	})
	require.NoError(t, err)

	assert.Equal(t, "50", sale.Value.String())
	assert.Equal(t, "4500", sale.RUBEquivalent().String())

	// A later rate move never touches the locked equivalent.
	f.locker.usdRate = decimal.NewFromInt(120)
	got, drifted, err := f.svc.Recompute(ctx, vagon.ID)
	require.NoError(t, err)
	assert.False(t, drifted)
	assert.Equal(t, "4500", got.Revenue.String())
}

func TestRecordSale_OverdraftRejectedHard(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vagon := f.createVagon(t, 90, 5, "100000")

	_, err := f.svc.RecordSale(ctx, vagon.ID, SaleInput{
		ClientID:     id.New(),
		SentVolume:   vol(80),
		PricePerUnit: types.MustMoney("1000"),
		Currency:     currency.RUB,
	})
	require.NoError(t, err)

	_, err = f.svc.RecordSale(ctx, vagon.ID, SaleInput{
		ClientID:     id.New(),
		SentVolume:   vol(10),
		PricePerUnit: types.MustMoney("1000"),
		Currency:     currency.RUB,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientVolume))

	// The rejected sale left no trace.
	got, err := f.svc.GetByID(ctx, vagon.ID)
	require.NoError(t, err)
	assert.Equal(t, "80.0000", got.AcceptedVolume.String())
	require.Len(t, f.ledger.entries, 1)
}

func TestRecordSale_NegativeAcceptedRejected(t *testing.T) {
	f := newFixture()
	vagon := f.createVagon(t, 90, 0, "100000")

	_, err := f.svc.RecordSale(context.Background(), vagon.ID, SaleInput{
		ClientID:         id.New(),
		SentVolume:       vol(10),
		ClientLossVolume: vol(12),
		PricePerUnit:     types.MustMoney("1000"),
		Currency:         currency.RUB,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestRecordPayment_DebtFlooredAtZero(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vagon := f.createVagon(t, 90, 0, "100000")

	sale, err := f.svc.RecordSale(ctx, vagon.ID, SaleInput{
		ClientID:     id.New(),
		SentVolume:   vol(10),
		PricePerUnit: types.MustMoney("1000"),
		Currency:     currency.RUB,
	})
	require.NoError(t, err)
	assert.Equal(t, "10000", sale.Debt().String())

	_, err = f.svc.RecordPayment(ctx, sale.ID, types.MustMoney("6000"), currency.RUB, time.Time{})
	require.NoError(t, err)

	got, err := f.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "4000", got.Debt().String())

	// Overpayment floors the debt at zero and surfaces the excess.
	_, err = f.svc.RecordPayment(ctx, sale.ID, types.MustMoney("7000"), currency.RUB, time.Time{})
	require.NoError(t, err)

	got, err = f.svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, got.Debt().IsZero())
	assert.Equal(t, "3000", got.Overpaid().String())

	// Each payment produced a client income entry.
	var clientIncome int
	for _, e := range f.ledger.entries {
		if e.Type == kassa.TypeClientIncome {
			clientIncome++
		}
	}
	assert.Equal(t, 2, clientIncome)
}

func TestRecordPayment_CurrencyMismatchRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vagon := f.createVagon(t, 90, 0, "100000")

	sale, err := f.svc.RecordSale(ctx, vagon.ID, SaleInput{
		ClientID:     id.New(),
		SentVolume:   vol(10),
		PricePerUnit: types.MustMoney("10"),
		Currency:     currency.USD,
	})
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(ctx, sale.ID, types.MustMoney("100"), currency.RUB, time.Time{})
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestUpdateSale_ResyncsParent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vagon := f.createVagon(t, 90, 0, "100000")

	sale, err := f.svc.RecordSale(ctx, vagon.ID, SaleInput{
		ClientID:     id.New(),
		SentVolume:   vol(50),
		PricePerUnit: types.MustMoney("1000"),
		Currency:     currency.RUB,
	})
	require.NoError(t, err)

	_, err = f.svc.UpdateSale(ctx, sale.ID, UpdateSaleInput{
		SentVolume:       vol(40),
		ClientLossVolume: vol(1),
		PricePerUnit:     types.MustMoney("1200"),
	})
	require.NoError(t, err)

	got, err := f.svc.GetByID(ctx, vagon.ID)
	require.NoError(t, err)
	assert.Equal(t, "39.0000", got.AcceptedVolume.String())
	assert.Equal(t, "46800", got.Revenue.String())
}

func TestDeleteSale_ResyncsParent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vagon := f.createVagon(t, 90, 0, "100000")

	sale, err := f.svc.RecordSale(ctx, vagon.ID, SaleInput{
		ClientID:     id.New(),
		SentVolume:   vol(50),
		PricePerUnit: types.MustMoney("1000"),
		Currency:     currency.RUB,
	})
	require.NoError(t, err)

	keep, err := f.svc.RecordSale(ctx, vagon.ID, SaleInput{
		ClientID:     id.New(),
		SentVolume:   vol(20),
		PricePerUnit: types.MustMoney("1000"),
		Currency:     currency.RUB,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteSale(ctx, sale.ID))

	got, err := f.svc.GetByID(ctx, vagon.ID)
	require.NoError(t, err)
	assert.Equal(t, "20.0000", got.AcceptedVolume.String())
	assert.Equal(t, keep.RUBEquivalent().String(), got.Revenue.String())
	assert.Equal(t, "70.0000", got.RemainingVolume().String())
}

func TestRecompute_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	vagon := f.createVagon(t, 90, 0, "100000")

	_, err := f.svc.RecordSale(ctx, vagon.ID, SaleInput{
		ClientID:     id.New(),
		SentVolume:   vol(30),
		PricePerUnit: types.MustMoney("1000"),
		Currency:     currency.RUB,
	})
	require.NoError(t, err)

	// Corrupt the stored aggregate; the first run repairs, the second is
	// a no-op.
	f.vagons.byID[vagon.ID].AcceptedVolume = vol(99)

	_, drifted, err := f.svc.Recompute(ctx, vagon.ID)
	require.NoError(t, err)
	assert.True(t, drifted)

	got, drifted, err := f.svc.Recompute(ctx, vagon.ID)
	require.NoError(t, err)
	assert.False(t, drifted)
	assert.Equal(t, "30.0000", got.AcceptedVolume.String())
}
