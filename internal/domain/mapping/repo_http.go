package mapping

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

// HTTPStore is the network-backed tier: a remote bridge-server reached over
// its REST API. Embedded and CLI callers use it as their primary store, with
// the snapshot file and in-memory tiers behind it.
type HTTPStore struct {
	client *resty.Client
}

// HTTPStoreOption configures an HTTPStore.
type HTTPStoreOption func(*resty.Client)

// WithToken sets the bearer token sent with every request.
func WithToken(token string) HTTPStoreOption {
	return func(c *resty.Client) {
		c.SetAuthToken(token)
	}
}

// NewHTTPStore creates a store talking to the bridge-server at baseURL,
// e.g. "http://localhost:8000".
func NewHTTPStore(baseURL string, opts ...HTTPStoreOption) *HTTPStore {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/") + "/api/v1").
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(client)
	}
	return &HTTPStore{client: client}
}

// wireError is the stable error body produced by the server.
type wireError struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"error"`
}

// Find implements Store.
func (s *HTTPStore) Find(ctx context.Context, d *QueryDescriptor) (*ResultPage, error) {
	params := map[string]string{
		"page":  strconv.Itoa(d.Page),
		"limit": strconv.Itoa(d.Limit),
	}
	if len(d.Tokens) > 0 {
		params["q"] = d.QueryText()
	}
	if d.Category != "" {
		params["category"] = d.Category
	}
	if d.Chapter != "" {
		params["chapter"] = d.Chapter
	}
	if d.MinConfidence != nil {
		params["minConfidence"] = strconv.FormatFloat(*d.MinConfidence, 'f', -1, 64)
	}
	if d.MaxConfidence != nil {
		params["maxConfidence"] = strconv.FormatFloat(*d.MaxConfidence, 'f', -1, 64)
	}

	var page ResultPage
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&page).
		SetError(&wireError{}).
		Get("/mappings/search")
	if err := httpError("search mappings", resp, err); err != nil {
		return nil, err
	}
	if page.Records == nil {
		page.Records = []MappingRecord{}
	}
	return &page, nil
}

// GetByCode implements Store. A 404 here is the one place it means "no such
// record" rather than a missing endpoint.
func (s *HTTPStore) GetByCode(ctx context.Context, code string) (*MappingRecord, error) {
	var record MappingRecord
	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("code", code).
		SetResult(&record).
		SetError(&wireError{}).
		Get("/mappings/{code}")
	if err == nil && resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err := httpError("get mapping", resp, err); err != nil {
		return nil, err
	}
	return &record, nil
}

// InsertMany implements Store.
func (s *HTTPStore) InsertMany(ctx context.Context, records []MappingRecord) (*InsertReport, error) {
	var report InsertReport
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(records).
		SetResult(&report).
		SetError(&wireError{}).
		Post("/mappings")
	if err := httpError("insert mappings", resp, err); err != nil {
		return nil, err
	}
	return &report, nil
}

// Clear implements Store.
func (s *HTTPStore) Clear(ctx context.Context) (int, error) {
	var body struct {
		DeletedCount int `json:"deletedCount"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(&wireError{}).
		Delete("/mappings")
	if err := httpError("clear mappings", resp, err); err != nil {
		return 0, err
	}
	return body.DeletedCount, nil
}

// Stats implements Store. The summary endpoint only exposes counts, so the
// category and chapter lists come from the metadata endpoints.
func (s *HTTPStore) Stats(ctx context.Context) (*Stats, error) {
	var summary struct {
		TotalMappings      int     `json:"totalMappings"`
		AvgConfidenceScore float64 `json:"avgConfidenceScore"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&summary).
		SetError(&wireError{}).
		Get("/mappings/stats/summary")
	if err := httpError("mapping stats", resp, err); err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalRecords:  summary.TotalMappings,
		AvgConfidence: summary.AvgConfidenceScore,
	}

	resp, err = s.client.R().
		SetContext(ctx).
		SetResult(&stats.Categories).
		SetError(&wireError{}).
		Get("/mappings/metadata/categories")
	if err := httpError("mapping categories", resp, err); err != nil {
		return nil, err
	}

	resp, err = s.client.R().
		SetContext(ctx).
		SetResult(&stats.Chapters).
		SetError(&wireError{}).
		Get("/mappings/metadata/chapters")
	if err := httpError("mapping chapters", resp, err); err != nil {
		return nil, err
	}

	return stats, nil
}

// httpError maps a resty response onto the store failure taxonomy. Transport
// failures and 5xx responses classify as unreachable, 401/403 as a credential
// demand; 400 is a legitimate per-call outcome. A 404 outside GetByCode means
// the endpoint itself is absent (a misconfigured base URL), so it classifies
// as unreachable and lets the coordinator demote.
func httpError(op string, resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &UnreachableError{Err: fmt.Errorf("%s: %w", op, err)}
	}
	if resp.IsSuccess() {
		return nil
	}

	msg := resp.Status()
	var field string
	if we, ok := resp.Error().(*wireError); ok && we.Error.Message != "" {
		msg = we.Error.Message
		field = we.Error.Field
	}

	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthRequiredError{Err: fmt.Errorf("%s: %s", op, msg)}
	case http.StatusNotFound:
		return &UnreachableError{Err: fmt.Errorf("%s: endpoint not found: %s", op, msg)}
	case http.StatusBadRequest:
		if field == "" {
			field = "request"
		}
		return &ValidationError{Field: field, Reason: msg}
	case http.StatusConflict:
		return &DuplicateKeyError{Code: field}
	default:
		if resp.StatusCode() >= 500 {
			return &UnreachableError{Err: fmt.Errorf("%s: %s", op, msg)}
		}
		return fmt.Errorf("%s: %s", op, msg)
	}
}
