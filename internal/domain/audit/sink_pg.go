package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSink persists audit events to the audit_events table.
type PGSink struct {
	pool *pgxpool.Pool
}

// NewPGSink creates a Postgres-backed sink.
func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

// Record implements Sink.
func (s *PGSink) Record(ctx context.Context, ev Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, action, query, result_count, success, duration_ms, actor_id, recorded)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.Action, ev.Query, ev.ResultCount, ev.Success,
		ev.Duration.Milliseconds(), ev.ActorID, ev.Recorded)
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}
