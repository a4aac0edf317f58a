// Package analytics defines the write-side interface spec.md's
// `POST /analytics/view` and `POST /analytics/playtime` routes need
// (§6's "optional auth, CORS-gated" endpoints), mirroring
// internal/payouts.AnalyticsStore's read-side narrowing of the same
// separate, ClickHouse-backed event log. internal/clickhouse.Store is the
// real implementation cmd/api wires up when clickhouse.enabled is true;
// NoopRecorder below covers the disabled case.
package analytics

import (
	"context"

	"github.com/rs/zerolog"
)

// Recorder accepts page-view and client playtime events for the separate
// analytics store the payout batch job later aggregates from.
type Recorder interface {
	RecordView(ctx context.Context, projectID int64, userID int64, ip string) error
	RecordPlaytime(ctx context.Context, projectID, versionID, userID int64, seconds int64) error
}

// NoopRecorder logs and discards every event. It is what cmd/api wires up
// when clickhouse.enabled is false.
type NoopRecorder struct {
	Log zerolog.Logger
}

func (n NoopRecorder) RecordView(_ context.Context, projectID, userID int64, ip string) error {
	n.Log.Debug().Int64("project_id", projectID).Int64("user_id", userID).Str("ip", ip).Msg("analytics.view_discarded_no_store")
	return nil
}

func (n NoopRecorder) RecordPlaytime(_ context.Context, projectID, versionID, userID, seconds int64) error {
	n.Log.Debug().Int64("project_id", projectID).Int64("version_id", versionID).Int64("user_id", userID).
		Int64("seconds", seconds).Msg("analytics.playtime_discarded_no_store")
	return nil
}
