package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// Sink accepts audit events. Writes are best-effort from the engine's point
// of view: a sink failure is logged by the caller, never surfaced to the user.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// SinkFunc is a function adapter for Sink.
type SinkFunc func(ctx context.Context, ev Event) error

func (f SinkFunc) Record(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// LogSink writes audit events as structured log lines. It is the sink of
// last resort when no database is configured.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Record implements Sink.
func (s *LogSink) Record(_ context.Context, ev Event) error {
	s.logger.Info().
		Str("audit_id", ev.ID.String()).
		Str("action", ev.Action).
		Str("query", ev.Query).
		Int("result_count", ev.ResultCount).
		Bool("success", ev.Success).
		Dur("duration", ev.Duration).
		Str("actor_id", ev.ActorID).
		Time("recorded", ev.Recorded).
		Msg("audit")
	return nil
}
