package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action kinds recorded by the terminology engine.
const (
	ActionSearch = "search"
	ActionStats  = "stats"
	ActionInsert = "insert"
	ActionClear  = "clear"
)

// Event is one write-only record of a completed engine call. Events are
// emitted exactly once per call, success or failure, and are never read back
// by the engine.
type Event struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	Action      string        `db:"action" json:"action"`
	Query       string        `db:"query" json:"query,omitempty"`
	ResultCount int           `db:"result_count" json:"resultCount"`
	Success     bool          `db:"success" json:"success"`
	Duration    time.Duration `db:"duration" json:"duration"`
	ActorID     string        `db:"actor_id" json:"actorId,omitempty"`
	Recorded    time.Time     `db:"recorded" json:"recorded"`
}

// NewEvent creates an event stamped with a fresh id and the current time.
func NewEvent(action string) Event {
	return Event{
		ID:       uuid.New(),
		Action:   action,
		Recorded: time.Now().UTC(),
	}
}
