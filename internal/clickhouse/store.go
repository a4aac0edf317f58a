// Package clickhouse backs the separate analytics event log spec.md's §6
// view/playtime endpoints write to and the payout batch job (§4.F step 3)
// reads from. It is one concrete type satisfying three narrow interfaces
// that each name their own slice of it: internal/analytics.Recorder (the
// write side reached from the HTTP layer), internal/versions.DownloadRecorder
// (the write side reached from the count-download route), and
// internal/payouts.AnalyticsStore (the read side the nightly batch job
// aggregates from). Keeping them as separate interfaces lets each caller
// depend on only the methods it needs; Store happens to be the one thing
// that implements all three.
package clickhouse

import (
	"context"
	"database/sql"
	"time"

	clickhouse "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"

	"github.com/hearthforge/backend/internal/config"
	apperrors "github.com/hearthforge/backend/internal/errors"
)

// Store implements analytics.Recorder, versions.DownloadRecorder, and
// payouts.AnalyticsStore against a single ClickHouse-backed event table,
// using database/sql the same way PostgresStore does rather than the
// driver's native driver.Conn API.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// New opens a connection pool to ClickHouse. The caller owns db's lifecycle
// via Close, mirroring NewPostgresStore's shared-pool contract.
func New(cfg config.ClickHouseConfig, log zerolog.Logger) (*Store, error) {
	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err := db.Ping(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeAnalytics, "clickhouse: ping failed", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates the event table if it does not already exist. It is
// idempotent and safe to call on every startup, same as PostgresStore's.
func (s *Store) CreateSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS project_events (
			event_type  LowCardinality(String),
			project_id  Int64,
			version_id  Int64,
			user_id     Int64,
			ip          String,
			seconds     Int64,
			occurred_at DateTime
		) ENGINE = MergeTree()
		ORDER BY (event_type, project_id, occurred_at)
	`)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAnalytics, "clickhouse: create schema", err)
	}
	return nil
}

// RecordView satisfies analytics.Recorder.
func (s *Store) RecordView(ctx context.Context, projectID, userID int64, ip string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_events (event_type, project_id, user_id, ip, occurred_at)
		VALUES ('view', ?, ?, ?, now())
	`, projectID, userID, ip)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAnalytics, "clickhouse: record view", err)
	}
	return nil
}

// RecordPlaytime satisfies analytics.Recorder.
func (s *Store) RecordPlaytime(ctx context.Context, projectID, versionID, userID, seconds int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_events (event_type, project_id, version_id, user_id, seconds, occurred_at)
		VALUES ('playtime', ?, ?, ?, ?, now())
	`, projectID, versionID, userID, seconds)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAnalytics, "clickhouse: record playtime", err)
	}
	return nil
}

// RecordDownload satisfies versions.DownloadRecorder.
func (s *Store) RecordDownload(ctx context.Context, projectID, versionID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_events (event_type, project_id, version_id, user_id, occurred_at)
		VALUES ('download', ?, ?, ?, now())
	`, projectID, versionID, userID)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeAnalytics, "clickhouse: record download", err)
	}
	return nil
}

// ProjectViewCounts satisfies payouts.AnalyticsStore.
func (s *Store) ProjectViewCounts(ctx context.Context, from, to time.Time) (map[int64]int64, int64, error) {
	return s.countsByProject(ctx, "view", from, to, false)
}

// ProjectDownloadCounts satisfies payouts.AnalyticsStore. Only downloads
// attributable to a known user (user_id > 0) count toward the payout split.
func (s *Store) ProjectDownloadCounts(ctx context.Context, from, to time.Time) (map[int64]int64, int64, error) {
	return s.countsByProject(ctx, "download", from, to, true)
}

func (s *Store) countsByProject(ctx context.Context, eventType string, from, to time.Time, requireKnownUser bool) (map[int64]int64, int64, error) {
	query := `
		SELECT project_id, count()
		FROM project_events
		WHERE event_type = ? AND occurred_at >= ? AND occurred_at < ?
	`
	if requireKnownUser {
		query += " AND user_id > 0"
	}
	query += " GROUP BY project_id"

	rows, err := s.db.QueryContext(ctx, query, eventType, from, to)
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeAnalytics, "clickhouse: query "+eventType+" counts", err)
	}
	defer rows.Close()

	byProject := make(map[int64]int64)
	var total int64
	for rows.Next() {
		var projectID, count int64
		if err := rows.Scan(&projectID, &count); err != nil {
			return nil, 0, apperrors.Wrap(apperrors.CodeAnalytics, "clickhouse: scan "+eventType+" counts", err)
		}
		byProject[projectID] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperrors.Wrap(apperrors.CodeAnalytics, "clickhouse: iterate "+eventType+" counts", err)
	}
	return byProject, total, nil
}
