package mapping

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed tier, the source of truth when the server
// owns its database. Ranking and pagination are pushed down into SQL but
// follow the exact semantics of executeQuery.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed store on the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const recordColumns = `code, term, category, chapter_name, target_code_primary,
       target_description_primary, target_code_secondary, confidence, created_at, updated_at`

// likeEscaper neutralises LIKE metacharacters so a token always matches as a
// literal substring, the same way the in-memory matcher treats it.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereClause builds the WHERE fragment and argument list for a descriptor.
// Each token must match at least one searchable column; filters are ANDed in.
func whereClause(d *QueryDescriptor) (string, []interface{}) {
	var conds []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, tok := range d.Tokens {
		p := arg("%" + likeEscaper.Replace(tok) + "%")
		conds = append(conds, fmt.Sprintf(
			`(term ILIKE %[1]s OR code ILIKE %[1]s OR target_description_primary ILIKE %[1]s
			  OR target_code_secondary ILIKE %[1]s OR chapter_name ILIKE %[1]s)`, p))
	}
	if d.Category != "" {
		conds = append(conds, fmt.Sprintf("category = %s", arg(d.Category)))
	}
	if d.Chapter != "" {
		conds = append(conds, fmt.Sprintf("chapter_name = %s", arg(d.Chapter)))
	}
	if d.MinConfidence != nil {
		conds = append(conds, fmt.Sprintf("confidence >= %s", arg(*d.MinConfidence)))
	}
	if d.MaxConfidence != nil {
		conds = append(conds, fmt.Sprintf("confidence <= %s", arg(*d.MaxConfidence)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

// Find implements Store.
func (s *PGStore) Find(ctx context.Context, d *QueryDescriptor) (*ResultPage, error) {
	where, args := whereClause(d)

	var total int
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM mappings %s", where), args...).Scan(&total)
	if err != nil {
		return nil, pgError("count mappings", err)
	}

	offset := (d.Page - 1) * d.Limit
	query := fmt.Sprintf(`SELECT %s FROM mappings %s
		 ORDER BY confidence DESC, code ASC LIMIT $%d OFFSET $%d`,
		recordColumns, where, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, d.Limit, offset)...)
	if err != nil {
		return nil, pgError("search mappings", err)
	}
	defer rows.Close()

	records := make([]MappingRecord, 0, d.Limit)
	for rows.Next() {
		var r MappingRecord
		if err := rows.Scan(&r.Code, &r.Term, &r.Category, &r.ChapterName,
			&r.TargetCodePrimary, &r.TargetDescriptionPrimary, &r.TargetCodeSecondary,
			&r.Confidence, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, pgError("scan mapping", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("search mappings", err)
	}

	return &ResultPage{Records: records, Total: total, Page: d.Page, Limit: d.Limit}, nil
}

// GetByCode implements Store.
func (s *PGStore) GetByCode(ctx context.Context, code string) (*MappingRecord, error) {
	var r MappingRecord
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM mappings WHERE code = $1", recordColumns), code).
		Scan(&r.Code, &r.Term, &r.Category, &r.ChapterName,
			&r.TargetCodePrimary, &r.TargetDescriptionPrimary, &r.TargetCodeSecondary,
			&r.Confidence, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, pgError("get mapping", err)
	}
	return &r, nil
}

// InsertMany implements Store. Each record is inserted with ON CONFLICT DO
// NOTHING so one duplicate never aborts the batch; a zero row count marks the
// record rejected and leaves the stored row untouched.
func (s *PGStore) InsertMany(ctx context.Context, records []MappingRecord) (*InsertReport, error) {
	report := &InsertReport{}
	for _, r := range records {
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO mappings (code, term, category, chapter_name, target_code_primary,
			        target_description_primary, target_code_secondary, confidence)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (code) DO NOTHING`,
			r.Code, r.Term, r.Category, r.ChapterName, r.TargetCodePrimary,
			r.TargetDescriptionPrimary, r.TargetCodeSecondary, r.Confidence)
		if err != nil {
			return nil, pgError("insert mapping", err)
		}
		if tag.RowsAffected() == 0 {
			report.Rejected = append(report.Rejected, r.Code)
		} else {
			report.Inserted = append(report.Inserted, r.Code)
		}
	}
	report.InsertedCount = len(report.Inserted)
	return report, nil
}

// Clear implements Store.
func (s *PGStore) Clear(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM mappings")
	if err != nil {
		return 0, pgError("clear mappings", err)
	}
	return int(tag.RowsAffected()), nil
}

// Stats implements Store.
func (s *PGStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*), COALESCE(AVG(confidence), 0) FROM mappings").
		Scan(&stats.TotalRecords, &stats.AvgConfidence)
	if err != nil {
		return nil, pgError("mapping stats", err)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT category FROM mappings ORDER BY category")
	if err != nil {
		return nil, pgError("mapping categories", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, pgError("scan category", err)
		}
		stats.Categories = append(stats.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("mapping categories", err)
	}

	rows, err = s.pool.Query(ctx,
		"SELECT DISTINCT chapter_name FROM mappings WHERE chapter_name <> '' ORDER BY chapter_name")
	if err != nil {
		return nil, pgError("mapping chapters", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, pgError("scan chapter", err)
		}
		stats.Chapters = append(stats.Chapters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, pgError("mapping chapters", err)
	}

	return stats, nil
}

// pgError classifies a pgx error into the store failure taxonomy. Credential
// failures demote to the next tier; connection-level failures and timeouts
// classify as unreachable. Everything else surfaces as-is.
func pgError(op string, err error) error {
	wrapped := fmt.Errorf("%s: %w", op, err)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28000", "28P01": // invalid_authorization_specification, invalid_password
			return &AuthRequiredError{Err: wrapped}
		case "08000", "08003", "08006", "53300", "57P01", "57P02", "57P03":
			return &UnreachableError{Err: wrapped}
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &UnreachableError{Err: wrapped}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &UnreachableError{Err: wrapped}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return &UnreachableError{Err: wrapped}
	}

	return wrapped
}
