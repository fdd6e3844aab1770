package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Corner-venturo/venturo-sub001/internal/authz"
	"github.com/Corner-venturo/venturo-sub001/internal/observability"
)

// IntegrityScanner reconciles user_permissions rows against the
// permission catalog. Rows whose key no longer exists in the catalog are
// orphans: they are reported, not deleted, so an operator decides whether
// the catalog or the data is wrong.
type IntegrityScanner struct {
	pool    *pgxpool.Pool
	catalog *authz.Catalog
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewIntegrityScanner constructs an IntegrityScanner.
func NewIntegrityScanner(pool *pgxpool.Pool, catalog *authz.Catalog, logger *slog.Logger, metrics *observability.Metrics) *IntegrityScanner {
	return &IntegrityScanner{pool: pool, catalog: catalog, logger: logger, metrics: metrics}
}

// Handle processes TaskGrantsIntegrityScan tasks.
func (s *IntegrityScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload IntegrityScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, permission FROM user_permissions ORDER BY user_id, permission`)
	if err != nil {
		s.metrics.RecordJob(TaskGrantsIntegrityScan, "error")
		return err
	}
	defer rows.Close()

	scanned := 0
	orphans := 0
	for rows.Next() {
		var userID, key string
		if err := rows.Scan(&userID, &key); err != nil {
			s.metrics.RecordJob(TaskGrantsIntegrityScan, "error")
			return err
		}
		scanned++
		if !s.catalog.Contains(key) {
			orphans++
			s.logger.Warn("orphaned permission grant",
				slog.String("user_id", userID),
				slog.String("key", key))
		}
	}
	if err := rows.Err(); err != nil {
		s.metrics.RecordJob(TaskGrantsIntegrityScan, "error")
		return err
	}

	s.metrics.RecordJob(TaskGrantsIntegrityScan, "ok")
	s.logger.Info("grants integrity scan complete",
		slog.Int("scanned", scanned),
		slog.Int("orphans", orphans))
	return nil
}

// SessionPruner deletes expired session rows from postgres. The Redis
// copies expire on their own TTL.
type SessionPruner struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSessionPruner constructs a SessionPruner.
func NewSessionPruner(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *SessionPruner {
	return &SessionPruner{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskSessionPrune tasks.
func (p *SessionPruner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SessionPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tag, err := p.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		p.metrics.RecordJob(TaskSessionPrune, "error")
		return err
	}
	p.metrics.RecordJob(TaskSessionPrune, "ok")
	p.logger.Info("expired sessions pruned", slog.Int64("removed", tag.RowsAffected()))
	return nil
}
