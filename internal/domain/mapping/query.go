package mapping

import (
	"fmt"
	"strings"

	"github.com/ayushbridge/api/pkg/pagination"
)

// SearchParams is the raw, caller-supplied form of a search request. Zero
// Page/Limit mean "use defaults"; nil confidence bounds mean "no bound".
type SearchParams struct {
	Query         string
	Category      string
	Chapter       string
	MinConfidence *float64
	MaxConfidence *float64
	Page          int
	Limit         int
}

// QueryDescriptor is the canonical, validated representation of a search
// request. An empty Tokens slice matches all records; filters still apply.
type QueryDescriptor struct {
	Tokens        []string
	Category      string
	Chapter       string
	MinConfidence *float64
	MaxConfidence *float64
	Page          int
	Limit         int
}

// MatchAll reports whether the descriptor carries no text tokens.
func (d *QueryDescriptor) MatchAll() bool {
	return len(d.Tokens) == 0
}

// QueryText returns the normalized query text, used for audit events.
func (d *QueryDescriptor) QueryText() string {
	return strings.Join(d.Tokens, " ")
}

// Normalize validates raw search parameters and produces a canonical query
// descriptor. It is a pure function: tokenization splits on whitespace,
// lower-cases each token and drops empties. Out-of-range page or limit values
// are rejected rather than clamped so callers get an explicit signal.
func Normalize(p SearchParams, maxLimit int) (*QueryDescriptor, error) {
	if maxLimit <= 0 {
		maxLimit = pagination.MaxLimit
	}

	d := &QueryDescriptor{
		Category: strings.TrimSpace(p.Category),
		Chapter:  strings.TrimSpace(p.Chapter),
		Page:     p.Page,
		Limit:    p.Limit,
	}

	for _, tok := range strings.Fields(p.Query) {
		d.Tokens = append(d.Tokens, strings.ToLower(tok))
	}

	if d.Category != "" && !ValidCategory(d.Category) {
		return nil, &ValidationError{
			Field:  "category",
			Reason: fmt.Sprintf("must be one of %s", strings.Join(Categories, ", ")),
		}
	}

	if p.MinConfidence != nil {
		if *p.MinConfidence < 0 || *p.MinConfidence > 1 {
			return nil, &ValidationError{Field: "minConfidence", Reason: "must be between 0 and 1"}
		}
		v := *p.MinConfidence
		d.MinConfidence = &v
	}
	if p.MaxConfidence != nil {
		if *p.MaxConfidence < 0 || *p.MaxConfidence > 1 {
			return nil, &ValidationError{Field: "maxConfidence", Reason: "must be between 0 and 1"}
		}
		v := *p.MaxConfidence
		d.MaxConfidence = &v
	}
	if d.MinConfidence != nil && d.MaxConfidence != nil && *d.MinConfidence > *d.MaxConfidence {
		return nil, &ValidationError{Field: "minConfidence", Reason: "must not exceed maxConfidence"}
	}

	if d.Page == 0 {
		d.Page = pagination.DefaultPage
	}
	if d.Page < 1 {
		return nil, &ValidationError{Field: "page", Reason: "must be a positive integer"}
	}
	if d.Limit == 0 {
		d.Limit = pagination.DefaultLimit
	}
	if d.Limit < 1 {
		return nil, &ValidationError{Field: "limit", Reason: "must be a positive integer"}
	}
	if d.Limit > maxLimit {
		return nil, &ValidationError{Field: "limit", Reason: fmt.Sprintf("must not exceed %d", maxLimit)}
	}

	return d, nil
}
