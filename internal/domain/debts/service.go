package debts

import (
	"context"
	"fmt"
	"time"

	"timberlot/internal/core/apperror"
	appctx "timberlot/internal/core/context"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/core/tx"
	"timberlot/internal/core/types"
	"timberlot/internal/domain/audit"
	"timberlot/internal/domain/kassa"
	"timberlot/internal/domain/lots"
	"timberlot/internal/domain/rates"
	"timberlot/pkg/logger"
	"timberlot/pkg/numerator"
)

// CashLedger is the slice of the kassa service delivery payments emit into.
type CashLedger interface {
	Append(ctx context.Context, entry *kassa.Entry) error
}

// Service projects client debts by replay and manages the delivery-service
// debt track.
type Service struct {
	sources   SourceReader
	delivery  DeliveryRepository
	ledger    CashLedger
	locker    rates.Locker
	txManager tx.Manager
	numerator numerator.Generator
	auditor   audit.Recorder
}

// NewService creates a new debt service.
func NewService(
	sources SourceReader,
	delivery DeliveryRepository,
	ledger CashLedger,
	locker rates.Locker,
	txManager tx.Manager,
	gen numerator.Generator,
	auditor audit.Recorder,
) *Service {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Service{
		sources:   sources,
		delivery:  delivery,
		ledger:    ledger,
		locker:    locker,
		txManager: txManager,
		numerator: gen,
		auditor:   auditor,
	}
}

// RecomputeForClient replays the client's full history in one currency and
// returns the derived debt state. The replay reads everything from source
// records, so a projection computed after any edit or delete is correct
// without compensating bookkeeping.
func (s *Service) RecomputeForClient(ctx context.Context, clientID id.ID, cur currency.Currency) (*Projection, error) {
	if _, err := currency.Parse(cur.String()); err != nil {
		return nil, err
	}

	p := &Projection{
		ClientID:     clientID,
		Currency:     cur,
		TotalDebt:    types.Zero(),
		TotalPaid:    types.Zero(),
		CurrentDebt:  types.Zero(),
		Overpaid:     types.Zero(),
		DeliveryDebt: types.Zero(),
	}

	vagonSales, err := s.sources.VagonSalesByClient(ctx, clientID, cur)
	if err != nil {
		return nil, fmt.Errorf("load vagon sales: %w", err)
	}
	for _, sale := range vagonSales {
		p.ReceivedVolume = p.ReceivedVolume.Add(sale.AcceptedVolume)
		p.TotalDebt = p.TotalDebt.Add(sale.Value)
	}

	lotSales, err := s.sources.LotSalesByClient(ctx, clientID, cur)
	if err != nil {
		return nil, fmt.Errorf("load lot sales: %w", err)
	}
	for _, sale := range lotSales {
		p.TotalDebt = p.TotalDebt.Add(sale.Value)
		// A settled credit sale counts as paid, so replay keeps it out of
		// the outstanding balance.
		if sale.PaymentStatus == lots.PaymentPaid {
			p.TotalPaid = p.TotalPaid.Add(sale.Value)
		}
	}

	payments, err := s.sources.PaymentsByClient(ctx, clientID, cur)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	for _, payment := range payments {
		p.TotalPaid = p.TotalPaid.Add(payment.Value)
	}

	outstanding := p.TotalDebt.Sub(p.TotalPaid)
	if outstanding.IsPositive() {
		p.CurrentDebt = outstanding
	} else {
		p.Overpaid = outstanding.Neg()
	}

	deliveries, err := s.sources.DeliveryRecordsByClient(ctx, clientID, cur)
	if err != nil {
		return nil, fmt.Errorf("load delivery records: %w", err)
	}
	deliveryNet := types.Zero()
	for _, rec := range deliveries {
		if rec.Kind == DeliveryCharge {
			deliveryNet = deliveryNet.Add(rec.Value)
		} else {
			deliveryNet = deliveryNet.Sub(rec.Value)
		}
	}
	if deliveryNet.IsPositive() {
		p.DeliveryDebt = deliveryNet
	}

	return p, nil
}

// DebtSummary replays every occupied (client, currency) bucket. Feeds the
// dashboard.
func (s *Service) DebtSummary(ctx context.Context) ([]*Projection, error) {
	pairs, err := s.sources.ClientCurrencyPairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list debt buckets: %w", err)
	}

	out := make([]*Projection, 0, len(pairs))
	for _, pair := range pairs {
		p, err := s.RecomputeForClient(ctx, pair.ClientID, pair.Currency)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// RecordDeliveryCharge accrues a delivery-service debt on the client. No
// cash moves, so no kassa entry.
func (s *Service) RecordDeliveryCharge(ctx context.Context, clientID id.ID, amount types.Money, cur currency.Currency, date time.Time) (*DeliveryRecord, error) {
	return s.recordDelivery(ctx, clientID, DeliveryCharge, amount, cur, date)
}

// RecordDeliveryPayment settles delivery-service debt and books the cash as
// client income.
func (s *Service) RecordDeliveryPayment(ctx context.Context, clientID id.ID, amount types.Money, cur currency.Currency, date time.Time) (*DeliveryRecord, error) {
	return s.recordDelivery(ctx, clientID, DeliveryPayment, amount, cur, date)
}

func (s *Service) recordDelivery(ctx context.Context, clientID id.ID, kind DeliveryKind, amount types.Money, cur currency.Currency, date time.Time) (*DeliveryRecord, error) {
	rate, err := s.locker.LockFor(ctx, cur)
	if err != nil {
		return nil, err
	}
	locked, err := currency.NewAmount(amount, cur, rate)
	if err != nil {
		return nil, err
	}

	record := NewDeliveryRecord(clientID, kind, locked)
	if !date.IsZero() {
		record.Date = date
	}
	record.SetCreatedBy(appctx.GetActorName(ctx))

	if err := record.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("DLV"), nil, record.Date)
	if err != nil {
		return nil, fmt.Errorf("generate delivery record number: %w", err)
	}
	record.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.delivery.Create(ctx, record); err != nil {
			return fmt.Errorf("create delivery record: %w", err)
		}
		if kind != DeliveryPayment {
			return nil
		}
		entry := kassa.NewEntry(kassa.TypeClientIncome, locked, record.Date, "delivery service payment")
		return s.ledger.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	if err := s.auditor.Record(ctx, audit.Entry{
		EntityType: "DeliveryRecord",
		EntityID:   record.ID,
		Action:     audit.ActionCreate,
		Changes:    record,
	}); err != nil {
		logger.Warn(ctx, "audit record failed", "error", err)
	}

	return record, nil
}

// DeleteDeliveryRecord soft-deletes a delivery record; the next projection
// replay simply no longer sees it.
func (s *Service) DeleteDeliveryRecord(ctx context.Context, recordID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.delivery.SetDeletionMark(ctx, recordID, true)
	})
	if err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("delivery record", recordID.String())
		}
		return err
	}
	return nil
}
