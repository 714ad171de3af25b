package kassa

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
	"timberlot/internal/domain/rates"
	"timberlot/pkg/logger"
	"timberlot/pkg/numerator"
)

// CurrencyTotals holds per-currency sums in the currency's own units.
type CurrencyTotals struct {
	Income      types.Money `json:"income"`
	Expense     types.Money `json:"expense"`
	ShipmentOut types.Money `json:"shipmentOut"`
}

// Balance is the derived state of the cash ledger. Income and Expense are
// RUB-equivalent sums; ByCurrency carries native-currency totals which are
// never summed across currencies. ShipmentOut is goods shipped on credit:
// no cash moved, so it sits outside Balance = Income - Expense.
type Balance struct {
	Income      types.Money `json:"income"`
	Expense     types.Money `json:"expense"`
	ShipmentOut types.Money `json:"shipmentOut"`
	Balance     types.Money `json:"balance"`

	ByCurrency map[currency.Currency]CurrencyTotals `json:"byCurrency"`
}

// TransferInput describes an inter-currency money move.
type TransferInput struct {
	From        currency.Currency
	To          currency.Currency
	Amount      types.Money // in source currency
	Date        time.Time
	Description string
}

// TransferResult holds both legs of a completed transfer.
type TransferResult struct {
	TransferID id.ID  `json:"transferId"`
	Out        *Entry `json:"out"`
	In         *Entry `json:"in"`
}

// Service provides business operations for the cash ledger.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numerator numerator.Generator
	locker    rates.Locker
	auditor   audit.Recorder
}

// NewService creates a new kassa service.
func NewService(repo Repository, txManager tx.Manager, gen numerator.Generator, locker rates.Locker, auditor audit.Recorder) *Service {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Service{
		repo:      repo,
		txManager: txManager,
		numerator: gen,
		locker:    locker,
		auditor:   auditor,
	}
}

// Append validates and inserts a ledger entry. Prior entries are never
// touched.
func (s *Service) Append(ctx context.Context, entry *Entry) error {
	if err := entry.Validate(ctx); err != nil {
		return err
	}

	if entry.Number == "" {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("KAS"), nil, entry.Date)
		if err != nil {
			return fmt.Errorf("generate entry number: %w", err)
		}
		entry.Number = number
	}
	entry.SetCreatedBy(appctx.GetActorName(ctx))

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Append(ctx, entry); err != nil {
			return fmt.Errorf("append kassa entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.record(ctx, entry, audit.ActionCreate)

	logger.Info(ctx, "kassa entry appended",
		"entry_id", entry.ID,
		"type", entry.Type,
		"amount", entry.Amount.String(),
		"currency", entry.Currency,
		"rub_equivalent", entry.RUBEquivalent.String())

	return nil
}

// RecordInput describes a manual ledger entry.
type RecordInput struct {
	Type        EntryType
	Subtype     string
	Amount      types.Money
	Currency    currency.Currency
	Date        time.Time
	Description string
}

// Record appends a manual entry, locking the conversion rate at append time.
func (s *Service) Record(ctx context.Context, input RecordInput) (*Entry, error) {
	rate, err := s.locker.LockFor(ctx, input.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := currency.NewAmount(input.Amount, input.Currency, rate)
	if err != nil {
		return nil, err
	}

	entry := NewEntry(input.Type, amount, input.Date, input.Description)
	entry.Subtype = input.Subtype

	if err := s.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetByID returns a single ledger entry.
func (s *Service) GetByID(ctx context.Context, entryID id.ID) (*Entry, error) {
	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("kassa entry", entryID.String())
		}
		return nil, err
	}
	return entry, nil
}

// List returns entries matching the filter.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Entry], error) {
	return s.repo.List(ctx, filter)
}

// SoftDelete marks an entry deleted. This is the only permitted mutation of
// an appended entry; balances exclude it from the next derivation on.
func (s *Service) SoftDelete(ctx context.Context, entryID id.ID) error {
	entry, err := s.GetByID(ctx, entryID)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetDeletionMark(ctx, entryID, true)
	})
	if err != nil {
		return err
	}

	s.record(ctx, entry, audit.ActionDelete)
	return nil
}

// Balance derives ledger totals by summing live entries. Nothing is cached:
// two consecutive calls over unchanged data return identical results.
func (s *Service) Balance(ctx context.Context, filter Filter) (*Balance, error) {
	rows, err := s.repo.Totals(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("sum kassa entries: %w", err)
	}

	b := &Balance{
		Income:      types.Zero(),
		Expense:     types.Zero(),
		ShipmentOut: types.Zero(),
		ByCurrency:  make(map[currency.Currency]CurrencyTotals),
	}

	for _, row := range rows {
		cur := b.ByCurrency[row.Currency]
		switch {
		case row.Type == TypeShipmentOut:
			b.ShipmentOut = b.ShipmentOut.Add(row.RUB)
			cur.ShipmentOut = cur.ShipmentOut.Add(row.Native)
		case row.Type.IsIncome():
			b.Income = b.Income.Add(row.RUB)
			cur.Income = cur.Income.Add(row.Native)
		default:
			b.Expense = b.Expense.Add(row.RUB)
			cur.Expense = cur.Expense.Add(row.Native)
		}
		b.ByCurrency[row.Currency] = cur
	}

	b.Balance = b.Income.Sub(b.Expense)
	return b, nil
}

// Transfer moves money between currencies at the current rates by appending
// a balanced expense leg and income leg in one transaction. Both legs share
// a transfer id so they can always be matched up.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if input.From == input.To {
		return nil, apperror.NewValidation("transfer currencies must differ").
			WithDetail("currency", input.From.String())
	}
	if !input.Amount.IsPositive() {
		return nil, apperror.NewValidation("transfer amount must be positive").
			WithDetail("field", "amount").
			WithDetail("value", input.Amount.String())
	}

	rateFrom, err := s.locker.LockFor(ctx, input.From)
	if err != nil {
		return nil, err
	}
	rateTo, err := s.locker.LockFor(ctx, input.To)
	if err != nil {
		return nil, err
	}

	outAmount, err := currency.NewAmount(input.Amount, input.From, rateFrom)
	if err != nil {
		return nil, err
	}

	// The target leg re-expresses the source's RUB equivalent at the target
	// rate. Rounding the target amount to 2 decimals lets the legs' RUB
	// values differ by up to half a cent of the target currency.
	targetValue := outAmount.RUBEquivalent().Div(rateTo).Round(2)
	inAmount, err := currency.NewAmount(targetValue, input.To, rateTo)
	if err != nil {
		return nil, err
	}

	transferID := id.New()
	date := input.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	out := NewEntry(TypeExpense, outAmount, date, input.Description)
	out.TransferID = &transferID
	in := NewEntry(TypeIncome, inAmount, date, input.Description)
	in.TransferID = &transferID

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.Append(ctx, out); err != nil {
			return err
		}
		return s.Append(ctx, in)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inter-currency transfer",
		"transfer_id", transferID,
		"from", input.From,
		"to", input.To,
		"amount", input.Amount.String(),
		"target_amount", targetValue.String())

	return &TransferResult{TransferID: transferID, Out: out, In: in}, nil
}

func (s *Service) record(ctx context.Context, entry *Entry, action audit.Action) {
	err := s.auditor.Record(ctx, audit.Entry{
		EntityType: "KassaEntry",
		EntityID:   entry.ID,
		Action:     action,
		Changes:    entry,
	})
	if err != nil {
		logger.Warn(ctx, "audit record failed", "error", err)
	}
}
