// Package reports provides read-only reporting over the ledger. Every
// figure is derived at query time from source records; reports never write.
package reports

import (
	"time"

	"timberlot/internal/core/currency"
	"timberlot/internal/core/id"
	"timberlot/internal/core/types"
	"timberlot/internal/domain/lots"
)

// --- Lot profitability ---

// LotProfitabilityFilter defines the filter for the lot profitability report.
type LotProfitabilityFilter struct {
	From *time.Time
	To   *time.Time

	Statuses []lots.Status

	IncludeDeleted bool

	Limit  int
	Offset int
}

// LotProfitabilityRow is one lot in the profitability report.
type LotProfitabilityRow struct {
	LotID  id.ID       `db:"lot_id" json:"lotId"`
	Number string      `db:"number" json:"number"`
	Status lots.Status `db:"status" json:"status"`

	VolumeM3 types.Volume `db:"volume_m3" json:"volumeM3"`

	PurchaseCost  types.Money `db:"purchase_cost" json:"purchaseCost"`
	ExpenseTotal  types.Money `db:"expense_total" json:"expenseTotal"`
	Revenue       types.Money `db:"revenue" json:"revenue"`
	NetProfit     types.Money `db:"net_profit" json:"netProfit"`
	ProfitPercent types.Money `db:"profit_percent" json:"profitPercent"`
}

// LedgerTotals are grand totals over a report's rows.
type LedgerTotals struct {
	PurchaseCost types.Money `json:"purchaseCost"`
	ExpenseTotal types.Money `json:"expenseTotal"`
	Revenue      types.Money `json:"revenue"`
	NetProfit    types.Money `json:"netProfit"`
}

// LotProfitabilityReport is the full report.
type LotProfitabilityReport struct {
	Items      []LotProfitabilityRow `json:"items"`
	Totals     LedgerTotals          `json:"totals"`
	TotalCount int64                 `json:"totalCount"`
}

// --- Vagon summary ---

// VagonSummaryFilter defines the filter for the vagon summary report.
type VagonSummaryFilter struct {
	From *time.Time
	To   *time.Time

	Limit  int
	Offset int
}

// VagonSummaryRow is one vagon in the summary report. Volume columns expose
// the full conservation chain: arrived - loss = available; available -
// accepted = remaining.
type VagonSummaryRow struct {
	VagonID id.ID  `db:"vagon_id" json:"vagonId"`
	Number  string `db:"number" json:"number"`

	ArrivedVolume   types.Volume `db:"arrived_volume" json:"arrivedVolume"`
	AvailableVolume types.Volume `db:"available_volume" json:"availableVolume"`
	SentVolume      types.Volume `db:"sent_volume" json:"sentVolume"`
	AcceptedVolume  types.Volume `db:"accepted_volume" json:"acceptedVolume"`
	RemainingVolume types.Volume `db:"remaining_volume" json:"remainingVolume"`

	Cost      types.Money `db:"cost" json:"cost"`
	Revenue   types.Money `db:"revenue" json:"revenue"`
	NetProfit types.Money `db:"net_profit" json:"netProfit"`
}

// VagonSummaryReport is the full report.
type VagonSummaryReport struct {
	Items      []VagonSummaryRow `json:"items"`
	TotalCount int64             `json:"totalCount"`

	TotalRevenue types.Money `json:"totalRevenue"`
	TotalProfit  types.Money `json:"totalProfit"`
}

// --- Kassa period report ---

// KassaPeriodFilter bounds the cash period report.
type KassaPeriodFilter struct {
	From time.Time
	To   time.Time

	Currency *currency.Currency
}

// KassaPeriodReport shows how the cash balance moved over a period. All four
// figures are derived sums of RUB equivalents; closing is always opening +
// income - expense.
type KassaPeriodReport struct {
	OpeningBalance types.Money `json:"openingBalance"`
	Income         types.Money `json:"income"`
	Expense        types.Money `json:"expense"`
	ClosingBalance types.Money `json:"closingBalance"`
}
