package mapping

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ayushbridge/api/internal/platform/auth"
)

// newTestServer wires a full echo instance with dev auth so route-level role
// checks are exercised too.
func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	store := seededMemStore(t)
	fallback := NewFallback(zerolog.Nop(), time.Second, Tier{Name: "memory", Store: store})
	svc := NewService(fallback, &captureSink{}, zerolog.Nop(), 0)
	h := NewHandler(svc, fallback)

	e := echo.New()
	e.Use(auth.DevAuthMiddleware())
	e.GET("/health", h.Health)
	h.RegisterRoutes(e.Group("/api/v1"))
	return e
}

func doRequest(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind  string `json:"kind"`
			Field string `json:"field"`
		} `json:"error"`
	}
	decodeBody(t, rec, &body)
	return body.Error.Kind
}

func TestHandler_Search(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/mappings/search?q=cough&page=1&limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var page ResultPage
	decodeBody(t, rec, &page)
	if page.Total != 3 {
		t.Errorf("expected total 3, got %d", page.Total)
	}
	if len(page.Records) != 2 {
		t.Errorf("expected 2 records on the page, got %d", len(page.Records))
	}
	if page.Records[0].Code != "AYU-001" {
		t.Errorf("expected AYU-001 ranked first, got %s", page.Records[0].Code)
	}
}

func TestHandler_Search_InvalidLimit(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/mappings/search?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if kind := errorKind(t, rec); kind != "validation" {
		t.Errorf("expected validation kind, got %s", kind)
	}
}

func TestHandler_Search_LimitAboveCap(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/mappings/search?limit=500", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_GetByCode(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/mappings/AYU-001", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var record MappingRecord
	decodeBody(t, rec, &record)
	if record.Term != "Kasa (Cough)" {
		t.Errorf("unexpected term %q", record.Term)
	}
}

func TestHandler_GetByCode_NotFound(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/mappings/AYU-999", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if kind := errorKind(t, rec); kind != "not_found" {
		t.Errorf("expected not_found kind, got %s", kind)
	}
}

func TestHandler_Insert(t *testing.T) {
	e := newTestServer(t)

	body := `[{"code":"AYU-010","term":"Arsha (Haemorrhoids)","category":"Ayurveda","chapterName":"Digestive System Disorders","targetCodePrimary":"DB60","targetDescriptionPrimary":"Haemorrhoids","confidence":0.94}]`
	rec := doRequest(t, e, http.MethodPost, "/api/v1/mappings", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var report InsertReport
	decodeBody(t, rec, &report)
	if report.InsertedCount != 1 {
		t.Errorf("expected 1 inserted, got %d", report.InsertedCount)
	}
}

func TestHandler_Insert_InvalidBody(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/mappings", `{"not":"an array"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_Insert_BadCategory(t *testing.T) {
	e := newTestServer(t)

	body := `[{"code":"X-1","term":"x","category":"Other","confidence":0.5}]`
	rec := doRequest(t, e, http.MethodPost, "/api/v1/mappings", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if kind := errorKind(t, rec); kind != "validation" {
		t.Errorf("expected validation kind, got %s", kind)
	}
}

func TestHandler_Clear(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodDelete, "/api/v1/mappings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]int
	decodeBody(t, rec, &body)
	if body["deletedCount"] != len(testRecords()) {
		t.Errorf("expected %d deleted, got %d", len(testRecords()), body["deletedCount"])
	}
}

func TestHandler_StatsSummary(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/mappings/stats/summary", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		TotalMappings      int     `json:"totalMappings"`
		AvgConfidenceScore float64 `json:"avgConfidenceScore"`
		CategoriesCount    int     `json:"categoriesCount"`
		ChaptersCount      int     `json:"chaptersCount"`
	}
	decodeBody(t, rec, &body)
	if body.TotalMappings != 6 {
		t.Errorf("expected 6 mappings, got %d", body.TotalMappings)
	}
	if body.CategoriesCount != 3 || body.ChaptersCount != 2 {
		t.Errorf("unexpected facet counts: %+v", body)
	}
}

func TestHandler_Metadata(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/mappings/metadata/categories", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var categories []string
	decodeBody(t, rec, &categories)
	if len(categories) != 3 {
		t.Errorf("expected 3 categories, got %v", categories)
	}

	rec = doRequest(t, e, http.MethodGet, "/api/v1/mappings/metadata/chapters", "")
	var chapters []string
	decodeBody(t, rec, &chapters)
	if len(chapters) != 2 {
		t.Errorf("expected 2 chapters, got %v", chapters)
	}
}

func TestHandler_Health(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]string
	decodeBody(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("expected ok status, got %q", body["status"])
	}
	if body["activeStore"] != "memory" {
		t.Errorf("expected active store memory, got %q", body["activeStore"])
	}
}

func TestHandler_UnreachableMapsTo503(t *testing.T) {
	failing := &failingStore{err: &UnreachableError{Err: http.ErrHandlerTimeout}}
	fallback := NewFallback(zerolog.Nop(), time.Second, Tier{Name: "memory", Store: failing})
	svc := NewService(fallback, &captureSink{}, zerolog.Nop(), 0)
	h := NewHandler(svc, fallback)

	e := echo.New()
	e.Use(auth.DevAuthMiddleware())
	h.RegisterRoutes(e.Group("/api/v1"))

	rec := doRequest(t, e, http.MethodGet, "/api/v1/mappings/search", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if kind := errorKind(t, rec); kind != "unreachable" {
		t.Errorf("expected unreachable kind, got %s", kind)
	}
}
