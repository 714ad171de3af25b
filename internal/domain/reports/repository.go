package reports

import (
	"context"
)

// Repository defines report data access. Implementations serve these from
// read-only transactions.
type Repository interface {
	GetLotProfitability(ctx context.Context, filter LotProfitabilityFilter) (*LotProfitabilityReport, error)

	GetVagonSummary(ctx context.Context, filter VagonSummaryFilter) (*VagonSummaryReport, error)
}
