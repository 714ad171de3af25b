package vagons

import (
	"context"
	"fmt"
	"time"

	"timberlot/internal/core/apperror"
	appctx "timberlot/internal/core/context"
	"timberlot/internal/core/currency"
	"timberlot/internal/core/entity"
	"timberlot/internal/core/id"
	"timberlot/internal/core/tx"
	"timberlot/internal/core/types"
	"timberlot/internal/domain"
	"timberlot/internal/domain/audit"
	"timberlot/internal/domain/kassa"
	"timberlot/internal/domain/rates"
	"timberlot/pkg/logger"
	"timberlot/pkg/numerator"
)

// CashLedger is the slice of the kassa service vagon mutations emit into.
type CashLedger interface {
	Append(ctx context.Context, entry *kassa.Entry) error
}

// CreateInput describes a vagon arrival.
type CreateInput struct {
	ArrivedVolume     types.Volume
	ArrivalLossVolume types.Volume
	Cost              types.Money
	Date              time.Time
	Comment           string
}

// SaleInput describes a partial disposal of a vagon.
type SaleInput struct {
	ClientID         id.ID
	SentVolume       types.Volume
	ClientLossVolume types.Volume
	PricePerUnit     types.Money
	Currency         currency.Currency
	Date             time.Time
	Comment          string
}

// UpdateSaleInput carries the editable sale fields. The sale keeps its
// originally locked rate: editing volumes or price is a correction of the
// same business event, not a new one.
type UpdateSaleInput struct {
	SentVolume       types.Volume
	ClientLossVolume types.Volume
	PricePerUnit     types.Money
}

// Service provides business operations for vagons, their sales and payments.
type Service struct {
	vagons    Repository
	sales     SaleRepository
	ledger    CashLedger
	locker    rates.Locker
	txManager tx.Manager
	numerator numerator.Generator
	auditor   audit.Recorder
}

// NewService creates a new vagon service.
func NewService(
	vagons Repository,
	sales SaleRepository,
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
		vagons:    vagons,
		sales:     sales,
		ledger:    ledger,
		locker:    locker,
		txManager: txManager,
		numerator: gen,
		auditor:   auditor,
	}
}

// Create registers a vagon arrival.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Vagon, error) {
	vagon := NewVagon(input.ArrivedVolume, input.ArrivalLossVolume, input.Cost)
	vagon.Comment = input.Comment
	if !input.Date.IsZero() {
		vagon.Date = input.Date
	}
	vagon.SetCreatedBy(appctx.GetActorName(ctx))
	vagon.ApplyAggregates(0, 0, types.Zero())

	if err := vagon.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("VAG"), nil, vagon.Date)
	if err != nil {
		return nil, fmt.Errorf("generate vagon number: %w", err)
	}
	vagon.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.vagons.Create(ctx, vagon)
	})
	if err != nil {
		return nil, err
	}

	s.recordVagon(ctx, vagon, audit.ActionCreate)

	logger.Info(ctx, "vagon registered",
		"vagon_id", vagon.ID,
		"number", vagon.Number,
		"available_m3", vagon.AvailableVolume().String())

	return vagon, nil
}

// RecordSale sells part of the vagon to a client. Selling more than the
// remaining volume is rejected hard, and the parent aggregates are resummed
// over all live sales in the same transaction.
func (s *Service) RecordSale(ctx context.Context, vagonID id.ID, input SaleInput) (*VagonSale, error) {
	vagon, err := s.GetByID(ctx, vagonID)
	if err != nil {
		return nil, err
	}

	rate, err := s.locker.LockFor(ctx, input.Currency)
	if err != nil {
		return nil, err
	}

	accepted := input.SentVolume.Sub(input.ClientLossVolume)
	total, err := currency.NewAmount(input.PricePerUnit.Mul(accepted.Decimal()), input.Currency, rate)
	if err != nil {
		return nil, err
	}

	sale := &VagonSale{
		Document:         entity.NewDocument(),
		VagonID:          vagonID,
		ClientID:         input.ClientID,
		SentVolume:       input.SentVolume,
		ClientLossVolume: input.ClientLossVolume,
		AcceptedVolume:   accepted,
		PricePerUnit:     input.PricePerUnit,
		Amount:           total,
		PaidAmount:       types.Zero(),
	}
	sale.Comment = input.Comment
	if !input.Date.IsZero() {
		sale.Date = input.Date
	}
	sale.SetCreatedBy(appctx.GetActorName(ctx))

	if err := sale.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("VSL"), nil, sale.Date)
	if err != nil {
		return nil, fmt.Errorf("generate sale number: %w", err)
	}
	sale.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// The remaining check runs against a fresh sum inside the
		// transaction so two concurrent sales cannot both squeeze in.
		totals, err := s.sales.SumByVagon(ctx, vagonID)
		if err != nil {
			return fmt.Errorf("sum vagon sales: %w", err)
		}
		remaining := vagon.AvailableVolume().Sub(totals.Accepted)
		if accepted > remaining {
			return apperror.NewInsufficientVolume(vagonID.String(), accepted.Float64(), remaining.Float64())
		}

		if err := s.sales.Create(ctx, sale); err != nil {
			return fmt.Errorf("create vagon sale: %w", err)
		}

		if err := s.refreshAggregates(ctx, vagon); err != nil {
			return err
		}
		if err := s.vagons.Update(ctx, vagon); err != nil {
			return fmt.Errorf("update vagon aggregates: %w", err)
		}

		entry := kassa.NewEntry(kassa.TypeShipmentOut, total, sale.Date,
			fmt.Sprintf("sale from vagon %s", vagon.Number))
		entry.VagonSaleID = &sale.ID
		return s.ledger.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.recordVagon(ctx, vagon, audit.ActionUpdate)

	logger.Info(ctx, "vagon sale recorded",
		"vagon_id", vagonID,
		"sale_id", sale.ID,
		"accepted_m3", accepted.String(),
		"total_price", sale.Value.String(),
		"currency", sale.Currency)

	return sale, nil
}

// RecordPayment appends a client payment against a sale. The paid total is
// re-summed over the sale's live payments, never incremented, and the debt
// is whatever total minus paid derives to, floored at zero.
func (s *Service) RecordPayment(ctx context.Context, saleID id.ID, amount types.Money, cur currency.Currency, date time.Time) (*Payment, error) {
	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}

	if cur != sale.Currency {
		return nil, apperror.NewValidation("payment currency must match the sale currency").
			WithDetail("sale_currency", sale.Currency.String()).
			WithDetail("payment_currency", cur.String())
	}

	rate, err := s.locker.LockFor(ctx, cur)
	if err != nil {
		return nil, err
	}
	locked, err := currency.NewAmount(amount, cur, rate)
	if err != nil {
		return nil, err
	}

	payment := NewPayment(saleID, sale.ClientID, locked)
	if !date.IsZero() {
		payment.Date = date
	}
	payment.SetCreatedBy(appctx.GetActorName(ctx))

	if err := payment.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.sales.CreatePayment(ctx, payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		paid, err := s.sales.SumPayments(ctx, saleID)
		if err != nil {
			return fmt.Errorf("sum payments: %w", err)
		}
		sale.PaidAmount = paid
		if err := s.sales.Update(ctx, sale); err != nil {
			return fmt.Errorf("update sale paid amount: %w", err)
		}

		entry := kassa.NewEntry(kassa.TypeClientIncome, locked, payment.Date,
			fmt.Sprintf("payment for sale %s", sale.Number))
		entry.PaymentID = &payment.ID
		return s.ledger.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment recorded",
		"sale_id", saleID,
		"amount", amount.String(),
		"currency", cur,
		"debt", sale.Debt().String())

	return payment, nil
}

// UpdateSale corrects a sale's volumes or price and re-runs the full parent
// recomputation so the edit cannot drift the vagon.
func (s *Service) UpdateSale(ctx context.Context, saleID id.ID, input UpdateSaleInput) (*VagonSale, error) {
	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	vagon, err := s.GetByID(ctx, sale.VagonID)
	if err != nil {
		return nil, err
	}

	accepted := input.SentVolume.Sub(input.ClientLossVolume)
	sale.SentVolume = input.SentVolume
	sale.ClientLossVolume = input.ClientLossVolume
	sale.AcceptedVolume = accepted
	sale.PricePerUnit = input.PricePerUnit
	sale.Value = input.PricePerUnit.Mul(accepted.Decimal())
	sale.SetUpdatedBy(appctx.GetActorName(ctx))

	if err := sale.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.sales.Update(ctx, sale); err != nil {
			return fmt.Errorf("update vagon sale: %w", err)
		}
		return s.resyncVagon(ctx, vagon)
	})
	if err != nil {
		return nil, err
	}

	s.recordVagon(ctx, vagon, audit.ActionUpdate)
	return sale, nil
}

// DeleteSale soft-deletes a sale and re-runs the full parent recomputation.
func (s *Service) DeleteSale(ctx context.Context, saleID id.ID) error {
	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	vagon, err := s.GetByID(ctx, sale.VagonID)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.sales.SetDeletionMark(ctx, saleID, true); err != nil {
			return fmt.Errorf("mark sale deleted: %w", err)
		}
		return s.resyncVagon(ctx, vagon)
	})
	if err != nil {
		return err
	}

	s.recordVagon(ctx, vagon, audit.ActionUpdate)
	return nil
}

// Recompute re-derives the vagon's aggregates from its live sales and
// repairs storage when they drifted beyond the epsilon. Running it twice in
// a row is a no-op the second time.
func (s *Service) Recompute(ctx context.Context, vagonID id.ID) (*Vagon, bool, error) {
	vagon, err := s.GetByID(ctx, vagonID)
	if err != nil {
		return nil, false, err
	}

	storedSent := vagon.SentVolume
	storedAccepted := vagon.AcceptedVolume
	storedRevenue := vagon.Revenue

	var drifted bool
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.refreshAggregates(ctx, vagon); err != nil {
			return err
		}

		drifted = storedSent != vagon.SentVolume ||
			storedAccepted != vagon.AcceptedVolume ||
			!types.WithinEpsilon(storedRevenue, vagon.Revenue)

		if !drifted {
			return nil
		}
		return s.vagons.Update(ctx, vagon)
	})
	if err != nil {
		return nil, false, err
	}

	if drifted {
		logger.Error(ctx, "vagon aggregates drifted from sales",
			"code", apperror.CodeConsistency,
			"vagon_id", vagon.ID,
			"stored_revenue", storedRevenue.String(),
			"recomputed_revenue", vagon.Revenue.String())
		s.recordVagon(ctx, vagon, audit.ActionUpdate)
	}

	return vagon, drifted, nil
}

// GetByID returns a single vagon.
func (s *Service) GetByID(ctx context.Context, vagonID id.ID) (*Vagon, error) {
	vagon, err := s.vagons.GetByID(ctx, vagonID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("vagon", vagonID.String())
		}
		return nil, err
	}
	return vagon, nil
}

// GetSale returns a single vagon sale.
func (s *Service) GetSale(ctx context.Context, saleID id.ID) (*VagonSale, error) {
	sale, err := s.sales.GetByID(ctx, saleID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("vagon sale", saleID.String())
		}
		return nil, err
	}
	return sale, nil
}

// ListSales returns the live sales of a vagon.
func (s *Service) ListSales(ctx context.Context, vagonID id.ID) ([]*VagonSale, error) {
	return s.sales.ListByVagon(ctx, vagonID)
}

// List returns vagons matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Vagon], error) {
	return s.vagons.List(ctx, filter)
}

// resyncVagon refreshes and persists the parent after a sale edit or delete.
func (s *Service) resyncVagon(ctx context.Context, vagon *Vagon) error {
	if err := s.refreshAggregates(ctx, vagon); err != nil {
		return err
	}
	if err := s.vagons.Update(ctx, vagon); err != nil {
		return fmt.Errorf("update vagon aggregates: %w", err)
	}
	return nil
}

// refreshAggregates replaces the vagon's totals with fresh sums over its
// live sales. The remaining volume must stay non-negative; an edit that
// would overdraw the vagon is rejected here.
func (s *Service) refreshAggregates(ctx context.Context, vagon *Vagon) error {
	totals, err := s.sales.SumByVagon(ctx, vagon.ID)
	if err != nil {
		return fmt.Errorf("sum vagon sales: %w", err)
	}

	remaining := vagon.AvailableVolume().Sub(totals.Accepted)
	if remaining.IsNegative() {
		return apperror.NewInsufficientVolume(vagon.ID.String(), totals.Accepted.Float64(), vagon.AvailableVolume().Float64())
	}

	vagon.ApplyAggregates(totals.Sent, totals.Accepted, totals.Revenue)
	return nil
}

func (s *Service) recordVagon(ctx context.Context, vagon *Vagon, action audit.Action) {
	err := s.auditor.Record(ctx, audit.Entry{
		EntityType: "Vagon",
		EntityID:   vagon.ID,
		Action:     action,
		Changes:    vagon,
	})
	if err != nil {
		logger.Warn(ctx, "audit record failed", "error", err)
	}
}
