package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore is the local JSON snapshot tier. The whole record set lives in a
// single file; reads parse it on demand and writes replace it atomically via
// a temp file and rename. A missing snapshot file classifies as Unreachable
// so the coordinator can move on to the embedded tier.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a file-backed store reading and writing path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() ([]MappingRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &UnreachableError{Err: fmt.Errorf("snapshot %s: %w", s.path, err)}
		}
		return nil, &UnreachableError{Err: fmt.Errorf("read snapshot %s: %w", s.path, err)}
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []MappingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", s.path, err)
	}
	return records, nil
}

func (s *FileStore) save(records []MappingRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".snapshot-*")
	if err != nil {
		return &UnreachableError{Err: fmt.Errorf("write snapshot: %w", err)}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &UnreachableError{Err: fmt.Errorf("write snapshot: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return &UnreachableError{Err: fmt.Errorf("write snapshot: %w", err)}
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return &UnreachableError{Err: fmt.Errorf("replace snapshot: %w", err)}
	}
	return nil
}

// Find implements Store.
func (s *FileStore) Find(ctx context.Context, d *QueryDescriptor) (*ResultPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	return executeQuery(records, d), nil
}

// GetByCode implements Store.
func (s *FileStore) GetByCode(ctx context.Context, code string) (*MappingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Code == code {
			r := records[i]
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// InsertMany implements Store. Creates the snapshot file if the insert is the
// first write against this tier.
func (s *FileStore) InsertMany(ctx context.Context, records []MappingRecord) (*InsertReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load()
	if err != nil {
		var ue *UnreachableError
		if !errors.As(err, &ue) || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		existing = nil
	}

	byCode := make(map[string]struct{}, len(existing))
	for i := range existing {
		byCode[existing[i].Code] = struct{}{}
	}

	report := &InsertReport{}
	now := time.Now().UTC()
	for _, r := range records {
		if _, exists := byCode[r.Code]; exists {
			report.Rejected = append(report.Rejected, r.Code)
			continue
		}
		r.CreatedAt = now
		r.UpdatedAt = now
		existing = append(existing, r)
		byCode[r.Code] = struct{}{}
		report.Inserted = append(report.Inserted, r.Code)
	}
	report.InsertedCount = len(report.Inserted)

	if err := s.save(existing); err != nil {
		return nil, err
	}
	return report, nil
}

// Clear implements Store.
func (s *FileStore) Clear(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return 0, err
	}
	if err := s.save(nil); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Stats implements Store.
func (s *FileStore) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	return computeStats(records), nil
}
