package payouts

import (
	"context"
	"time"
)

// AnalyticsStore is the read surface the nightly batch job needs from the
// separate analytics store (spec.md §4.F step 3 calls this out as a
// distinct data source from the main Postgres-backed Store — in the
// original system it is a ClickHouse-backed event log of page views and
// file downloads). HearthForge depends only on this narrow interface so a
// concrete ClickHouse (or any columnar store) client can be swapped in
// without touching the batch job's logic.
type AnalyticsStore interface {
	// ProjectViewCounts returns, for the half-open window [from, to), the
	// count of monetized, non-zero-project page views grouped by project
	// id, plus the grand total across all projects.
	ProjectViewCounts(ctx context.Context, from, to time.Time) (byProject map[int64]int64, total int64, err error)

	// ProjectDownloadCounts returns, for the same window, the count of
	// downloads attributable to a known user, grouped by project id, plus
	// the grand total.
	ProjectDownloadCounts(ctx context.Context, from, to time.Time) (byProject map[int64]int64, total int64, err error)
}
