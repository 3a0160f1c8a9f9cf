package mapping

import (
	"context"
	"sync"
	"time"
)

// MemStore is the embedded in-memory tier, the last resort when neither the
// database nor the local snapshot is usable. It keeps single-process,
// single-session consistency only.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]MappingRecord
}

// NewMemStore creates an embedded store, optionally preloaded with seed
// records. Seed entries with duplicate codes keep the first occurrence.
func NewMemStore(seed []MappingRecord) *MemStore {
	s := &MemStore{records: make(map[string]MappingRecord, len(seed))}
	now := time.Now().UTC()
	for _, r := range seed {
		if _, ok := s.records[r.Code]; ok {
			continue
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
		s.records[r.Code] = r
	}
	return s
}

func (s *MemStore) snapshot() []MappingRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MappingRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	return out
}

// Find implements Store.
func (s *MemStore) Find(ctx context.Context, d *QueryDescriptor) (*ResultPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return executeQuery(s.snapshot(), d), nil
}

// GetByCode implements Store.
func (s *MemStore) GetByCode(ctx context.Context, code string) (*MappingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

// InsertMany implements Store. Duplicate codes within the batch reject the
// later occurrence, matching the per-record conflict rule of the other tiers.
func (s *MemStore) InsertMany(ctx context.Context, records []MappingRecord) (*InsertReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	report := &InsertReport{}
	now := time.Now().UTC()
	for _, r := range records {
		if _, exists := s.records[r.Code]; exists {
			report.Rejected = append(report.Rejected, r.Code)
			continue
		}
		r.CreatedAt = now
		r.UpdatedAt = now
		s.records[r.Code] = r
		report.Inserted = append(report.Inserted, r.Code)
	}
	report.InsertedCount = len(report.Inserted)
	return report, nil
}

// Clear implements Store.
func (s *MemStore) Clear(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.records)
	s.records = make(map[string]MappingRecord)
	return n, nil
}

// Stats implements Store.
func (s *MemStore) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return computeStats(s.snapshot()), nil
}
