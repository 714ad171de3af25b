package lots

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
	"timberlot/internal/domain"
	"timberlot/internal/domain/audit"
	"timberlot/internal/domain/kassa"
	"timberlot/internal/domain/rates"
	"timberlot/pkg/logger"
	"timberlot/pkg/numerator"
)

// CashLedger is the slice of the kassa service lot mutations emit into.
type CashLedger interface {
	Append(ctx context.Context, entry *kassa.Entry) error
}

// PurchaseInput describes a lot acquisition. Either a flat Amount or a
// per-m3 UnitPrice is given; the unit price wins when both are set and the
// total becomes UnitPrice x lot volume.
type PurchaseInput struct {
	Dimensions Dimensions
	WoodType   string
	Supplier   string
	Location   string
	Amount     types.Money
	UnitPrice  types.Money
	Currency   currency.Currency
	Date       time.Time
	Comment    string
}

// ExpenseInput describes a cost record.
type ExpenseInput struct {
	Type     ExpenseType
	Amount   types.Money
	Currency currency.Currency
	Date     time.Time
	Comment  string

	// VagonID targets the expense at a vagon instead of a lot. Only
	// meaningful for standalone expenses.
	VagonID *id.ID
}

// SaleInput describes a lot disposal. As with purchases, a positive
// UnitPrice overrides Amount with UnitPrice x lot volume.
type SaleInput struct {
	ClientID    *id.ID
	Amount      types.Money
	UnitPrice   types.Money
	Location    string
	ContractRef string
	Currency    currency.Currency
	Date        time.Time
	Comment     string
}

// Service provides business operations for lots and their financial records.
type Service struct {
	lots      Repository
	records   RecordRepository
	ledger    CashLedger
	locker    rates.Locker
	txManager tx.Manager
	numerator numerator.Generator
	auditor   audit.Recorder
}

// NewService creates a new lot service.
func NewService(
	lots Repository,
	records RecordRepository,
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
		lots:      lots,
		records:   records,
		ledger:    ledger,
		locker:    locker,
		txManager: txManager,
		numerator: gen,
		auditor:   auditor,
	}
}

// CreateFromPurchase creates the lot together with its purchase record and
// the matching cash expense, all in one transaction. The conversion rate is
// locked here; later rate changes never touch this lot's cost.
func (s *Service) CreateFromPurchase(ctx context.Context, input PurchaseInput) (*Lot, error) {
	lot := NewLot(input.Dimensions)
	lot.WoodType = input.WoodType
	lot.Comment = input.Comment
	if !input.Date.IsZero() {
		lot.Date = input.Date
	}
	lot.SetCreatedBy(appctx.GetActorName(ctx))

	total := input.Amount
	if input.UnitPrice.IsPositive() {
		total = input.UnitPrice.Mul(lot.Volume().Decimal())
	}
	amount, err := s.lockAmount(ctx, total, input.Currency)
	if err != nil {
		return nil, err
	}

	number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("LOT"), nil, lot.Date)
	if err != nil {
		return nil, fmt.Errorf("generate lot number: %w", err)
	}
	lot.Number = number

	purchase := NewPurchaseRecord(lot.ID, amount)
	purchase.Supplier = input.Supplier
	purchase.Location = input.Location
	purchase.UnitPrice = input.UnitPrice
	purchase.Date = lot.Date
	purchase.SetCreatedBy(appctx.GetActorName(ctx))

	lot.ApplyAggregates(amount.RUBEquivalent(), types.Zero(), types.Zero())

	if err := lot.Validate(ctx); err != nil {
		return nil, err
	}
	if err := purchase.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lots.Create(ctx, lot); err != nil {
			return fmt.Errorf("create lot: %w", err)
		}
		if err := s.records.CreatePurchase(ctx, purchase); err != nil {
			return fmt.Errorf("create purchase record: %w", err)
		}

		entry := kassa.NewEntry(kassa.TypeExpense, amount, purchase.Date,
			fmt.Sprintf("purchase of lot %s", lot.Number))
		entry.PurchaseID = &purchase.ID
		return s.ledger.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, lot, audit.ActionCreate)

	logger.Info(ctx, "lot created from purchase",
		"lot_id", lot.ID,
		"number", lot.Number,
		"volume_m3", lot.Volume().String(),
		"cost_rub", lot.PurchaseCost.String())

	return lot, nil
}

// AttachExpense adds a cost record to a lot and refreshes the lot's expense
// total as a fresh sum over its live expenses. Sold and cancelled lots are
// frozen.
func (s *Service) AttachExpense(ctx context.Context, lotID id.ID, input ExpenseInput) (*ExpenseRecord, error) {
	lot, err := s.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot.IsFrozen() {
		return nil, apperror.NewStateConflict(apperror.CodeLotFrozen,
			fmt.Sprintf("lot %s is %s and no longer accepts records", lot.Number, lot.Status)).
			WithDetail("lot_id", lotID.String()).
			WithDetail("status", string(lot.Status))
	}

	amount, err := s.lockAmount(ctx, input.Amount, input.Currency)
	if err != nil {
		return nil, err
	}

	expense := NewExpenseRecord(input.Type, amount)
	expense.LotID = &lotID
	expense.Comment = input.Comment
	if !input.Date.IsZero() {
		expense.Date = input.Date
	}
	expense.SetCreatedBy(appctx.GetActorName(ctx))

	if err := expense.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.records.CreateExpense(ctx, expense); err != nil {
			return fmt.Errorf("create expense record: %w", err)
		}

		if err := s.refreshAggregates(ctx, lot); err != nil {
			return err
		}
		if err := s.lots.Update(ctx, lot); err != nil {
			return fmt.Errorf("update lot aggregates: %w", err)
		}

		entry := kassa.NewEntry(kassa.TypeExpense, amount, expense.Date,
			fmt.Sprintf("%s expense for lot %s", expense.Type, lot.Number))
		entry.Subtype = string(expense.Type)
		entry.ExpenseID = &expense.ID
		return s.ledger.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, lot, audit.ActionUpdate)
	return expense, nil
}

// RecordStandaloneExpense records a cost that targets a vagon or nothing at
// all. No lot aggregates are involved; the cash ledger still gets its entry.
func (s *Service) RecordStandaloneExpense(ctx context.Context, input ExpenseInput) (*ExpenseRecord, error) {
	amount, err := s.lockAmount(ctx, input.Amount, input.Currency)
	if err != nil {
		return nil, err
	}

	expense := NewExpenseRecord(input.Type, amount)
	expense.VagonID = input.VagonID
	expense.Comment = input.Comment
	if !input.Date.IsZero() {
		expense.Date = input.Date
	}
	expense.SetCreatedBy(appctx.GetActorName(ctx))

	if err := expense.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.records.CreateExpense(ctx, expense); err != nil {
			return fmt.Errorf("create expense record: %w", err)
		}

		entry := kassa.NewEntry(kassa.TypeExpense, amount, expense.Date,
			fmt.Sprintf("%s expense", expense.Type))
		entry.Subtype = string(expense.Type)
		entry.ExpenseID = &expense.ID
		return s.ledger.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	return expense, nil
}

// RecordSale disposes of the lot: revenue is set from the locked amount, the
// status becomes sold and the lot freezes. A second sale is a conflict and
// leaves the first sale's revenue untouched.
func (s *Service) RecordSale(ctx context.Context, lotID id.ID, input SaleInput) (*SaleRecord, error) {
	lot, err := s.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot.Status == StatusSold {
		return nil, apperror.NewLotAlreadySold(lotID.String())
	}
	if lot.Status == StatusCancelled {
		return nil, apperror.NewStateConflict(apperror.CodeLotFrozen,
			fmt.Sprintf("lot %s is cancelled", lot.Number)).
			WithDetail("lot_id", lotID.String())
	}
	if _, err := s.records.GetSale(ctx, lotID); err == nil {
		return nil, apperror.NewLotAlreadySold(lotID.String())
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}

	total := input.Amount
	if input.UnitPrice.IsPositive() {
		total = input.UnitPrice.Mul(lot.Volume().Decimal())
	}
	amount, err := s.lockAmount(ctx, total, input.Currency)
	if err != nil {
		return nil, err
	}

	sale := NewSaleRecord(lotID, amount)
	sale.ClientID = input.ClientID
	sale.UnitPrice = input.UnitPrice
	sale.Location = input.Location
	sale.ContractRef = input.ContractRef
	if input.ClientID != nil {
		// A client sale is on credit; it stays in the debt projection
		// until settled.
		sale.PaymentStatus = PaymentUnpaid
	}
	sale.Comment = input.Comment
	if !input.Date.IsZero() {
		sale.Date = input.Date
	}
	sale.SetCreatedBy(appctx.GetActorName(ctx))

	if err := sale.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.records.CreateSale(ctx, sale); err != nil {
			return fmt.Errorf("create sale record: %w", err)
		}

		lot.Status = StatusSold
		if err := s.refreshAggregates(ctx, lot); err != nil {
			return err
		}
		if err := s.lots.Update(ctx, lot); err != nil {
			return fmt.Errorf("update lot aggregates: %w", err)
		}

		entry := kassa.NewEntry(kassa.TypeIncome, amount, sale.Date,
			fmt.Sprintf("sale of lot %s", lot.Number))
		entry.SaleID = &sale.ID
		return s.ledger.Append(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, lot, audit.ActionUpdate)

	logger.Info(ctx, "lot sold",
		"lot_id", lot.ID,
		"number", lot.Number,
		"revenue_rub", lot.Revenue.String(),
		"net_profit_rub", lot.NetProfit.String())

	return sale, nil
}

// SettleSale marks the lot's credit sale as paid, releasing the client from
// the debt projection. No cash entry is written: the income was booked when
// the sale was recorded. Settling an already-paid sale is a no-op.
func (s *Service) SettleSale(ctx context.Context, lotID id.ID) (*SaleRecord, error) {
	lot, err := s.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}

	sale, err := s.records.GetSale(ctx, lotID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("sale record for lot", lotID.String())
		}
		return nil, err
	}
	if sale.PaymentStatus == PaymentPaid {
		return sale, nil
	}

	sale.PaymentStatus = PaymentPaid
	sale.SetUpdatedBy(appctx.GetActorName(ctx))

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.records.UpdateSale(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, lot, audit.ActionUpdate)

	logger.Info(ctx, "lot sale settled",
		"lot_id", lot.ID,
		"number", lot.Number,
		"amount", sale.Value.String(),
		"currency", sale.Currency)

	return sale, nil
}

// UpdateStatus moves the lot along the lifecycle chain. Backward moves and
// jumps are rejected, and sold is never reachable here: without a sale record
// the lot would carry zero revenue while refusing any future sale.
func (s *Service) UpdateStatus(ctx context.Context, lotID id.ID, next Status) (*Lot, error) {
	if !isValidStatus(next) {
		return nil, apperror.NewValidation("invalid lot status").
			WithDetail("value", string(next))
	}
	if next == StatusSold {
		return nil, apperror.NewStateConflict(apperror.CodeInvalidTransition,
			"a lot becomes sold only by recording a sale").
			WithDetail("lot_id", lotID.String()).
			WithDetail("to", string(next))
	}

	lot, err := s.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}

	if !lot.Status.CanTransitionTo(next) {
		return nil, apperror.NewStateConflict(apperror.CodeInvalidTransition,
			fmt.Sprintf("cannot move lot from %s to %s", lot.Status, next)).
			WithDetail("lot_id", lotID.String()).
			WithDetail("from", string(lot.Status)).
			WithDetail("to", string(next))
	}

	lot.Status = next
	lot.SetUpdatedBy(appctx.GetActorName(ctx))

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.lots.Update(ctx, lot)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, lot, audit.ActionUpdate)
	return lot, nil
}

// Delete soft-deletes the lot and cascades the mark to its purchase and
// expense records. A lot with a live sale record cannot be deleted.
func (s *Service) Delete(ctx context.Context, lotID id.ID) error {
	lot, err := s.GetByID(ctx, lotID)
	if err != nil {
		return err
	}

	if _, err := s.records.GetSale(ctx, lotID); err == nil {
		return apperror.NewStateConflict(apperror.CodeHasDependents,
			fmt.Sprintf("lot %s has a sale record and cannot be deleted", lot.Number)).
			WithDetail("lot_id", lotID.String())
	} else if !apperror.IsNotFound(err) {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lots.SetDeletionMark(ctx, lotID, true); err != nil {
			return fmt.Errorf("mark lot deleted: %w", err)
		}
		if err := s.records.SetDeletionMarkByLot(ctx, lotID, true); err != nil {
			return fmt.Errorf("mark lot records deleted: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.record(ctx, lot, audit.ActionDelete)
	return nil
}

// Recompute re-derives the lot's aggregates from its live records and
// repairs storage when they drifted beyond the epsilon. Returns whether a
// drift was found.
func (s *Service) Recompute(ctx context.Context, lotID id.ID) (*Lot, bool, error) {
	lot, err := s.GetByID(ctx, lotID)
	if err != nil {
		return nil, false, err
	}

	storedCost := lot.PurchaseCost
	storedExpense := lot.ExpenseTotal
	storedRevenue := lot.Revenue
	storedProfit := lot.NetProfit

	var drifted bool
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.refreshAggregates(ctx, lot); err != nil {
			return err
		}

		drifted = !types.WithinEpsilon(storedCost, lot.PurchaseCost) ||
			!types.WithinEpsilon(storedExpense, lot.ExpenseTotal) ||
			!types.WithinEpsilon(storedRevenue, lot.Revenue) ||
			!types.WithinEpsilon(storedProfit, lot.NetProfit)

		if !drifted {
			return nil
		}
		return s.lots.Update(ctx, lot)
	})
	if err != nil {
		return nil, false, err
	}

	if drifted {
		logger.Error(ctx, "lot aggregates drifted from source records",
			"code", apperror.CodeConsistency,
			"lot_id", lot.ID,
			"stored_profit", storedProfit.String(),
			"recomputed_profit", lot.NetProfit.String())
		s.record(ctx, lot, audit.ActionUpdate)
	}

	return lot, drifted, nil
}

// GetByID returns a single lot.
func (s *Service) GetByID(ctx context.Context, lotID id.ID) (*Lot, error) {
	lot, err := s.lots.GetByID(ctx, lotID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("lot", lotID.String())
		}
		return nil, err
	}
	return lot, nil
}

// List returns lots matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Lot], error) {
	return s.lots.List(ctx, filter)
}

// ListExpenses returns the live expenses of a lot.
func (s *Service) ListExpenses(ctx context.Context, lotID id.ID) ([]*ExpenseRecord, error) {
	return s.records.ListExpenses(ctx, lotID)
}

// refreshAggregates replaces the lot's totals with fresh sums over its live
// records. This is the single derivation path used by every mutation and by
// Recompute.
func (s *Service) refreshAggregates(ctx context.Context, lot *Lot) error {
	cost := types.Zero()
	purchase, err := s.records.GetPurchase(ctx, lot.ID)
	switch {
	case err == nil:
		cost = purchase.RUBEquivalent()
	case !apperror.IsNotFound(err):
		return err
	}

	expense, err := s.records.SumExpenses(ctx, lot.ID)
	if err != nil {
		return fmt.Errorf("sum lot expenses: %w", err)
	}

	revenue := types.Zero()
	sale, err := s.records.GetSale(ctx, lot.ID)
	switch {
	case err == nil:
		revenue = sale.RUBEquivalent()
	case !apperror.IsNotFound(err):
		return err
	}

	lot.ApplyAggregates(cost, expense, revenue)
	return nil
}

func (s *Service) lockAmount(ctx context.Context, value types.Money, cur currency.Currency) (currency.Amount, error) {
	rate, err := s.locker.LockFor(ctx, cur)
	if err != nil {
		return currency.Amount{}, err
	}
	return currency.NewAmount(value, cur, rate)
}

func (s *Service) record(ctx context.Context, lot *Lot, action audit.Action) {
	err := s.auditor.Record(ctx, audit.Entry{
		EntityType: "Lot",
		EntityID:   lot.ID,
		Action:     action,
		Changes:    lot,
	})
	if err != nil {
		logger.Warn(ctx, "audit record failed", "error", err)
	}
}
