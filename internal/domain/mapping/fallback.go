package mapping

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Tier pairs a store with the name it is logged and reported under.
type Tier struct {
	Name  string
	Store Store
}

// Fallback coordinates an ordered list of store tiers. Every operation runs
// against the currently active tier; when a call fails with an AuthRequired
// or Unreachable classification the coordinator demotes to the next tier and
// replays the same operation, so the caller sees a single call. NotFound and
// validation failures propagate without demotion. There is no promotion back
// within a session; a fresh process starts at the first tier.
//
// The active tier index is the only shared mutable state. Each call snapshots
// it on entry and demotion is a compare-and-swap from the tier the failing
// call ran against, so concurrent callers never observe a torn transition and
// a slow call can never un-demote the coordinator.
type Fallback struct {
	tiers   []Tier
	active  atomic.Int32
	timeout time.Duration
	logger  zerolog.Logger
}

// NewFallback creates a coordinator over tiers in priority order. timeout
// bounds every store call; an expiry classifies as Unreachable and demotes.
func NewFallback(logger zerolog.Logger, timeout time.Duration, tiers ...Tier) *Fallback {
	if len(tiers) == 0 {
		panic("mapping: NewFallback requires at least one tier")
	}
	return &Fallback{tiers: tiers, timeout: timeout, logger: logger}
}

// ActiveTier returns the name of the tier currently serving calls.
func (f *Fallback) ActiveTier() string {
	return f.tiers[f.active.Load()].Name
}

// execute runs op against the active tier, demoting and replaying on
// fallback-class failures until a tier succeeds or the last tier fails.
func (f *Fallback) execute(ctx context.Context, op func(ctx context.Context, s Store) error) error {
	for tier := f.active.Load(); ; tier++ {
		callCtx := ctx
		var cancel context.CancelFunc
		if f.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, f.timeout)
		}
		err := op(callCtx, f.tiers[tier].Store)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}

		// Caller cancellation is never a demotion trigger.
		if ctx.Err() == context.Canceled {
			return err
		}

		class := Classify(err)
		if class != ClassAuthRequired && class != ClassUnreachable {
			return err
		}
		if int(tier) == len(f.tiers)-1 {
			return err
		}

		// Demote only from the tier this call ran against; if another
		// call already moved the pointer the CAS is a no-op and we
		// simply retry on the next tier ourselves.
		if f.active.CompareAndSwap(tier, tier+1) {
			f.logger.Warn().
				Str("from", f.tiers[tier].Name).
				Str("to", f.tiers[tier+1].Name).
				Str("class", class.Kind()).
				Err(err).
				Msg("store tier demoted")
		}
	}
}

// Find implements Store.
func (f *Fallback) Find(ctx context.Context, d *QueryDescriptor) (*ResultPage, error) {
	var page *ResultPage
	err := f.execute(ctx, func(ctx context.Context, s Store) error {
		var opErr error
		page, opErr = s.Find(ctx, d)
		return opErr
	})
	return page, err
}

// GetByCode implements Store.
func (f *Fallback) GetByCode(ctx context.Context, code string) (*MappingRecord, error) {
	var r *MappingRecord
	err := f.execute(ctx, func(ctx context.Context, s Store) error {
		var opErr error
		r, opErr = s.GetByCode(ctx, code)
		return opErr
	})
	return r, err
}

// InsertMany implements Store.
func (f *Fallback) InsertMany(ctx context.Context, records []MappingRecord) (*InsertReport, error) {
	var report *InsertReport
	err := f.execute(ctx, func(ctx context.Context, s Store) error {
		var opErr error
		report, opErr = s.InsertMany(ctx, records)
		return opErr
	})
	return report, err
}

// Clear implements Store.
func (f *Fallback) Clear(ctx context.Context) (int, error) {
	var n int
	err := f.execute(ctx, func(ctx context.Context, s Store) error {
		var opErr error
		n, opErr = s.Clear(ctx)
		return opErr
	})
	return n, err
}

// Stats implements Store.
func (f *Fallback) Stats(ctx context.Context) (*Stats, error) {
	var stats *Stats
	err := f.execute(ctx, func(ctx context.Context, s Store) error {
		var opErr error
		stats, opErr = s.Stats(ctx)
		return opErr
	})
	return stats, err
}
