package mapping

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayushbridge/api/internal/domain/audit"
	"github.com/ayushbridge/api/internal/platform/auth"
)

// Service is the search and filter engine. It composes the query normalizer
// with the active store (normally a *Fallback) and emits exactly one audit
// event per search or stats call, on success and on failure alike. It never
// retries a failed store call itself; replay across tiers belongs to the
// fallback coordinator.
type Service struct {
	store    Store
	sink     audit.Sink
	logger   zerolog.Logger
	maxLimit int
}

// NewService creates a mapping service over the given store and audit sink.
// maxLimit caps the page size accepted from callers; zero means the package
// default.
func NewService(store Store, sink audit.Sink, logger zerolog.Logger, maxLimit int) *Service {
	return &Service{store: store, sink: sink, logger: logger, maxLimit: maxLimit}
}

// Search normalizes the raw parameters, executes the descriptor against the
// active store and returns the ranked page.
func (s *Service) Search(ctx context.Context, p SearchParams) (*ResultPage, error) {
	start := time.Now()

	d, err := Normalize(p, s.maxLimit)
	if err != nil {
		s.emit(ctx, audit.ActionSearch, strings.TrimSpace(p.Query), 0, false, start)
		return nil, err
	}

	page, err := s.store.Find(ctx, d)
	if err != nil {
		s.emit(ctx, audit.ActionSearch, d.QueryText(), 0, false, start)
		return nil, err
	}

	s.emit(ctx, audit.ActionSearch, d.QueryText(), page.Total, true, start)
	return page, nil
}

// Get returns a single record by its code.
func (s *Service) Get(ctx context.Context, code string) (*MappingRecord, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, &ValidationError{Field: "code", Reason: "must not be empty"}
	}
	return s.store.GetByCode(ctx, code)
}

// Insert validates and bulk-inserts records, reporting duplicates per record.
func (s *Service) Insert(ctx context.Context, records []MappingRecord) (*InsertReport, error) {
	start := time.Now()

	if len(records) == 0 {
		return nil, &ValidationError{Field: "body", Reason: "must contain at least one mapping"}
	}
	for i := range records {
		if err := validateRecord(&records[i]); err != nil {
			s.emit(ctx, audit.ActionInsert, "", 0, false, start)
			return nil, err
		}
	}

	report, err := s.store.InsertMany(ctx, records)
	if err != nil {
		s.emit(ctx, audit.ActionInsert, "", 0, false, start)
		return nil, err
	}

	s.emit(ctx, audit.ActionInsert, "", report.InsertedCount, true, start)
	return report, nil
}

// Clear removes every record from the active store.
func (s *Service) Clear(ctx context.Context) (int, error) {
	start := time.Now()

	n, err := s.store.Clear(ctx)
	if err != nil {
		s.emit(ctx, audit.ActionClear, "", 0, false, start)
		return 0, err
	}

	s.emit(ctx, audit.ActionClear, "", n, true, start)
	return n, nil
}

// Stats returns the active store's summary statistics unchanged. It exists
// as its own operation because dashboards call it independently of Search.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	start := time.Now()

	stats, err := s.store.Stats(ctx)
	if err != nil {
		s.emit(ctx, audit.ActionStats, "", 0, false, start)
		return nil, err
	}

	s.emit(ctx, audit.ActionStats, "", stats.TotalRecords, true, start)
	return stats, nil
}

// Categories returns the distinct category values present in the store.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return stats.Categories, nil
}

// Chapters returns the distinct chapter names present in the store.
func (s *Service) Chapters(ctx context.Context) ([]string, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return stats.Chapters, nil
}

func (s *Service) emit(ctx context.Context, action, query string, count int, success bool, start time.Time) {
	ev := audit.NewEvent(action)
	ev.Query = query
	ev.ResultCount = count
	ev.Success = success
	ev.Duration = time.Since(start)
	ev.ActorID = auth.UserIDFromContext(ctx)

	if err := s.sink.Record(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("audit event dropped")
	}
}

func validateRecord(r *MappingRecord) error {
	if strings.TrimSpace(r.Code) == "" {
		return &ValidationError{Field: "code", Reason: "must not be empty"}
	}
	if strings.TrimSpace(r.Term) == "" {
		return &ValidationError{Field: "term", Reason: "must not be empty"}
	}
	if !ValidCategory(r.Category) {
		return &ValidationError{
			Field:  "category",
			Reason: "must be one of " + strings.Join(Categories, ", "),
		}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return &ValidationError{Field: "confidence", Reason: "must be between 0 and 1"}
	}
	return nil
}
