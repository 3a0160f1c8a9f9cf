package mapping

import "context"

// Store is the uniform query interface shared by every mapping backend:
// the Postgres store the server owns, the remote HTTP API tier, the local
// JSON snapshot tier and the embedded in-memory tier. All implementations
// honour the same ranking rule (confidence descending, code ascending on
// ties) and the same pagination math, so callers cannot tell them apart.
type Store interface {
	// Find returns the ranked page of records matching the descriptor.
	// A page past the end of the data yields an empty Records slice with
	// the correct Total, not an error.
	Find(ctx context.Context, d *QueryDescriptor) (*ResultPage, error)

	// GetByCode returns the record with the given code or ErrNotFound.
	GetByCode(ctx context.Context, code string) (*MappingRecord, error)

	// InsertMany inserts a batch, skipping records whose code already
	// exists. Duplicates are reported in the InsertReport rather than
	// aborting the batch.
	InsertMany(ctx context.Context, records []MappingRecord) (*InsertReport, error)

	// Clear removes every record and returns the count removed.
	Clear(ctx context.Context) (int, error)

	// Stats summarises the full unfiltered record set.
	Stats(ctx context.Context) (*Stats, error)
}
