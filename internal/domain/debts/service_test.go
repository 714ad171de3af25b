package debts

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timberlot/internal/core/apperror"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/entity"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain/kassa"
	"timberlot/internal/domain/lots"
	"timberlot/internal/domain/vagons"
	"timberlot/pkg/numerator"
)

type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fixedLocker struct{}

func (fixedLocker) LockFor(_ context.Context, cur currency.Currency) (types.Money, error) {
	if cur.IsReporting() {
		return decimal.NewFromInt(1), nil
	}
	return decimal.NewFromInt(90), nil
}

type memSources struct {
	vagonSales []*vagons.VagonSale
	lotSales   []*lots.SaleRecord
	payments   []*vagons.Payment
	deliveries []*DeliveryRecord
}

func (m *memSources) VagonSalesByClient(_ context.Context, clientID id.ID, cur currency.Currency) ([]*vagons.VagonSale, error) {
	var out []*vagons.VagonSale
	for _, s := range m.vagonSales {
		if s.ClientID == clientID && s.Currency == cur && !s.DeletionMark {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSources) LotSalesByClient(_ context.Context, clientID id.ID, cur currency.Currency) ([]*lots.SaleRecord, error) {
	var out []*lots.SaleRecord
	for _, s := range m.lotSales {
		if s.ClientID != nil && *s.ClientID == clientID && s.Currency == cur && !s.DeletionMark {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSources) PaymentsByClient(_ context.Context, clientID id.ID, cur currency.Currency) ([]*vagons.Payment, error) {
	var out []*vagons.Payment
	for _, p := range m.payments {
		if p.ClientID == clientID && p.Currency == cur && !p.DeletionMark {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memSources) DeliveryRecordsByClient(_ context.Context, clientID id.ID, cur currency.Currency) ([]*DeliveryRecord, error) {
	var out []*DeliveryRecord
	for _, r := range m.deliveries {
		if r.ClientID == clientID && r.Currency == cur && !r.DeletionMark {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memSources) ClientCurrencyPairs(_ context.Context) ([]ClientCurrency, error) {
	seen := make(map[ClientCurrency]bool)
	var out []ClientCurrency
	add := func(clientID id.ID, cur currency.Currency) {
		key := ClientCurrency{ClientID: clientID, Currency: cur}
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	for _, s := range m.vagonSales {
		add(s.ClientID, s.Currency)
	}
	for _, p := range m.payments {
		add(p.ClientID, p.Currency)
	}
	for _, r := range m.deliveries {
		add(r.ClientID, r.Currency)
	}
	return out, nil
}

type memDelivery struct {
	sources *memSources
}

func (m *memDelivery) Create(_ context.Context, r *DeliveryRecord) error {
	m.sources.deliveries = append(m.sources.deliveries, r)
	return nil
}

func (m *memDelivery) SetDeletionMark(_ context.Context, recordID id.ID, marked bool) error {
	for _, r := range m.sources.deliveries {
		if r.ID == recordID {
			r.DeletionMark = marked
			return nil
		}
	}
	return apperror.NewNotFound("delivery record", recordID.String())
}

type memLedger struct {
	entries []*kassa.Entry
}

func (m *memLedger) Append(_ context.Context, entry *kassa.Entry) error {
	m.entries = append(m.entries, entry)
	return nil
}

func mustAmount(t *testing.T, value string, cur currency.Currency, rate string) currency.Amount {
	t.Helper()
	a, err := currency.NewAmount(types.MustMoney(value), cur, types.MustMoney(rate))
	require.NoError(t, err)
	return a
}

func vagonSale(t *testing.T, clientID id.ID, accepted float64, total string, cur currency.Currency) *vagons.VagonSale {
	t.Helper()
	return &vagons.VagonSale{
		Document:       entity.NewDocument(),
		VagonID:        id.New(),
		ClientID:       clientID,
		SentVolume:     types.NewVolumeFromFloat64(accepted),
		AcceptedVolume: types.NewVolumeFromFloat64(accepted),
		PricePerUnit:   types.MustMoney("1"),
		Amount:         mustAmount(t, total, cur, "90"),
		PaidAmount:     types.Zero(),
	}
}

func payment(t *testing.T, clientID id.ID, value string, cur currency.Currency) *vagons.Payment {
	t.Helper()
	return &vagons.Payment{
		Document:    entity.NewDocument(),
		VagonSaleID: id.New(),
		ClientID:    clientID,
		Amount:      mustAmount(t, value, cur, "90"),
	}
}

func newTestService(sources *memSources) (*Service, *memLedger) {
	ledger := &memLedger{}
	svc := NewService(sources, &memDelivery{sources: sources}, ledger, fixedLocker{}, passthroughTx{}, &numerator.MockGenerator{}, nil)
	return svc, ledger
}

func TestRecomputeForClient_ReplaysHistory(t *testing.T) {
	clientID := id.New()
	sources := &memSources{
		vagonSales: []*vagons.VagonSale{
			vagonSale(t, clientID, 48, "4800", currency.USD),
			vagonSale(t, clientID, 42, "4200", currency.USD),
		},
		payments: []*vagons.Payment{
			payment(t, clientID, "3000", currency.USD),
		},
	}
	svc, _ := newTestService(sources)

	p, err := svc.RecomputeForClient(context.Background(), clientID, currency.USD)
	require.NoError(t, err)

	assert.Equal(t, "90.0000", p.ReceivedVolume.String())
	assert.Equal(t, "9000", p.TotalDebt.String())
	assert.Equal(t, "3000", p.TotalPaid.String())
	assert.Equal(t, "6000", p.CurrentDebt.String())
	assert.True(t, p.Overpaid.IsZero())
}

func TestRecomputeForClient_OverpaymentNotFoldedIn(t *testing.T) {
	clientID := id.New()
	sources := &memSources{
		vagonSales: []*vagons.VagonSale{
			vagonSale(t, clientID, 10, "1000", currency.RUB),
		},
		payments: []*vagons.Payment{
			payment(t, clientID, "1500", currency.RUB),
		},
	}
	svc, _ := newTestService(sources)

	p, err := svc.RecomputeForClient(context.Background(), clientID, currency.RUB)
	require.NoError(t, err)

	assert.True(t, p.CurrentDebt.IsZero(), "debt is floored at zero")
	assert.Equal(t, "500", p.Overpaid.String())
}

func TestRecomputeForClient_NoCrossCurrencyNetting(t *testing.T) {
	clientID := id.New()
	sources := &memSources{
		vagonSales: []*vagons.VagonSale{
			vagonSale(t, clientID, 10, "1000", currency.USD),
		},
		payments: []*vagons.Payment{
			// A large RUB payment must not offset the USD debt.
			payment(t, clientID, "500000", currency.RUB),
		},
	}
	svc, _ := newTestService(sources)

	usd, err := svc.RecomputeForClient(context.Background(), clientID, currency.USD)
	require.NoError(t, err)
	assert.Equal(t, "1000", usd.CurrentDebt.String())

	rub, err := svc.RecomputeForClient(context.Background(), clientID, currency.RUB)
	require.NoError(t, err)
	assert.True(t, rub.CurrentDebt.IsZero())
	assert.Equal(t, "500000", rub.Overpaid.String())
}

func TestRecomputeForClient_IncludesLotSales(t *testing.T) {
	clientID := id.New()
	lotSale := &lots.SaleRecord{
		Document: entity.NewDocument(),
		LotID:    id.New(),
		ClientID: &clientID,
		Amount:   mustAmount(t, "2500", currency.RUB, "1"),
	}
	sources := &memSources{lotSales: []*lots.SaleRecord{lotSale}}
	svc, _ := newTestService(sources)

	p, err := svc.RecomputeForClient(context.Background(), clientID, currency.RUB)
	require.NoError(t, err)
	assert.Equal(t, "2500", p.CurrentDebt.String())
}

func TestRecomputeForClient_SettledLotSaleClearsDebt(t *testing.T) {
	clientID := id.New()
	settled := &lots.SaleRecord{
		Document:      entity.NewDocument(),
		LotID:         id.New(),
		ClientID:      &clientID,
		Amount:        mustAmount(t, "2500", currency.RUB, "1"),
		PaymentStatus: lots.PaymentPaid,
	}
	open := &lots.SaleRecord{
		Document:      entity.NewDocument(),
		LotID:         id.New(),
		ClientID:      &clientID,
		Amount:        mustAmount(t, "1000", currency.RUB, "1"),
		PaymentStatus: lots.PaymentUnpaid,
	}
	sources := &memSources{lotSales: []*lots.SaleRecord{settled, open}}
	svc, _ := newTestService(sources)

	p, err := svc.RecomputeForClient(context.Background(), clientID, currency.RUB)
	require.NoError(t, err)

	// Both sales enter the history; only the unsettled one stays owed.
	assert.Equal(t, "3500", p.TotalDebt.String())
	assert.Equal(t, "2500", p.TotalPaid.String())
	assert.Equal(t, "1000", p.CurrentDebt.String())
}

func TestRecomputeForClient_SoftDeletedSalesDropOut(t *testing.T) {
	clientID := id.New()
	gone := vagonSale(t, clientID, 10, "1000", currency.RUB)
	gone.DeletionMark = true
	sources := &memSources{
		vagonSales: []*vagons.VagonSale{
			gone,
			vagonSale(t, clientID, 5, "500", currency.RUB),
		},
	}
	svc, _ := newTestService(sources)

	p, err := svc.RecomputeForClient(context.Background(), clientID, currency.RUB)
	require.NoError(t, err)
	assert.Equal(t, "500", p.CurrentDebt.String())
	assert.Equal(t, "5.0000", p.ReceivedVolume.String())
}

func TestDeliveryTrack_SeparateFromGoodsDebt(t *testing.T) {
	clientID := id.New()
	sources := &memSources{
		vagonSales: []*vagons.VagonSale{
			vagonSale(t, clientID, 10, "1000", currency.RUB),
		},
	}
	svc, ledger := newTestService(sources)
	ctx := context.Background()

	_, err := svc.RecordDeliveryCharge(ctx, clientID, types.MustMoney("700"), currency.RUB, time.Time{})
	require.NoError(t, err)
	_, err = svc.RecordDeliveryPayment(ctx, clientID, types.MustMoney("200"), currency.RUB, time.Time{})
	require.NoError(t, err)

	p, err := svc.RecomputeForClient(ctx, clientID, currency.RUB)
	require.NoError(t, err)

	assert.Equal(t, "1000", p.CurrentDebt.String(), "goods debt unaffected by delivery track")
	assert.Equal(t, "500", p.DeliveryDebt.String())

	// Only the payment moved cash.
	require.Len(t, ledger.entries, 1)
	assert.Equal(t, kassa.TypeClientIncome, ledger.entries[0].Type)
}

func TestDebtSummary_CoversAllBuckets(t *testing.T) {
	alpha, beta := id.New(), id.New()
	sources := &memSources{
		vagonSales: []*vagons.VagonSale{
			vagonSale(t, alpha, 10, "1000", currency.RUB),
			vagonSale(t, alpha, 10, "100", currency.USD),
			vagonSale(t, beta, 5, "500", currency.RUB),
		},
	}
	svc, _ := newTestService(sources)

	summary, err := svc.DebtSummary(context.Background())
	require.NoError(t, err)
	assert.Len(t, summary, 3)
}
