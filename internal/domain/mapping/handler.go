package mapping

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ayushbridge/api/internal/platform/auth"
)

// Handler provides REST endpoints for the terminology mapping engine.
type Handler struct {
	svc      *Service
	fallback *Fallback
}

// NewHandler creates a mapping handler. fallback may be nil when the service
// runs over a single fixed store; the health report then omits the tier.
func NewHandler(svc *Service, fallback *Fallback) *Handler {
	return &Handler{svc: svc, fallback: fallback}
}

// RegisterRoutes registers mapping routes on the API group. Mutating routes
// require the admin role.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/mappings")
	g.GET("/search", h.Search)
	g.GET("/stats/summary", h.StatsSummary)
	g.GET("/metadata/categories", h.MetadataCategories)
	g.GET("/metadata/chapters", h.MetadataChapters)
	g.GET("/:code", h.GetByCode)
	g.POST("", h.Insert, auth.RequireRole("admin"))
	g.DELETE("", h.Clear, auth.RequireRole("admin"))
}

// Search handles GET /api/v1/mappings/search.
func (h *Handler) Search(c echo.Context) error {
	params, err := parseSearchParams(c)
	if err != nil {
		return errorResponse(c, err)
	}

	page, err := h.svc.Search(c.Request().Context(), params)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, page)
}

// GetByCode handles GET /api/v1/mappings/:code.
func (h *Handler) GetByCode(c echo.Context) error {
	record, err := h.svc.Get(c.Request().Context(), c.Param("code"))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, record)
}

// Insert handles POST /api/v1/mappings with an array body.
func (h *Handler) Insert(c echo.Context) error {
	var records []MappingRecord
	if err := c.Bind(&records); err != nil {
		return errorResponse(c, &ValidationError{Field: "body", Reason: "must be a JSON array of mappings"})
	}

	report, err := h.svc.Insert(c.Request().Context(), records)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, report)
}

// Clear handles DELETE /api/v1/mappings.
func (h *Handler) Clear(c echo.Context) error {
	n, err := h.svc.Clear(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"deletedCount": n})
}

// StatsSummary handles GET /api/v1/mappings/stats/summary.
func (h *Handler) StatsSummary(c echo.Context) error {
	stats, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"totalMappings":      stats.TotalRecords,
		"avgConfidenceScore": stats.AvgConfidence,
		"categoriesCount":    len(stats.Categories),
		"chaptersCount":      len(stats.Chapters),
	})
}

// MetadataCategories handles GET /api/v1/mappings/metadata/categories.
func (h *Handler) MetadataCategories(c echo.Context) error {
	categories, err := h.svc.Categories(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	if categories == nil {
		categories = []string{}
	}
	return c.JSON(http.StatusOK, categories)
}

// MetadataChapters handles GET /api/v1/mappings/metadata/chapters.
func (h *Handler) MetadataChapters(c echo.Context) error {
	chapters, err := h.svc.Chapters(c.Request().Context())
	if err != nil {
		return errorResponse(c, err)
	}
	if chapters == nil {
		chapters = []string{}
	}
	return c.JSON(http.StatusOK, chapters)
}

// Health reports service liveness and, when a fallback coordinator is wired,
// the tier currently serving reads.
func (h *Handler) Health(c echo.Context) error {
	body := map[string]string{"status": "ok"}
	if h.fallback != nil {
		body["activeStore"] = h.fallback.ActiveTier()
	}
	return c.JSON(http.StatusOK, body)
}

// parseSearchParams extracts raw search parameters from the query string.
// Unparseable numerics are validation failures, not silent defaults.
func parseSearchParams(c echo.Context) (SearchParams, error) {
	p := SearchParams{
		Query:    c.QueryParam("q"),
		Category: c.QueryParam("category"),
		Chapter:  c.QueryParam("chapter"),
	}

	if raw := c.QueryParam("minConfidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, &ValidationError{Field: "minConfidence", Reason: "must be a number"}
		}
		p.MinConfidence = &v
	}
	if raw := c.QueryParam("maxConfidence"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, &ValidationError{Field: "maxConfidence", Reason: "must be a number"}
		}
		p.MaxConfidence = &v
	}
	if raw := c.QueryParam("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, &ValidationError{Field: "page", Reason: "must be an integer"}
		}
		p.Page = v
	}
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, &ValidationError{Field: "limit", Reason: "must be an integer"}
		}
		p.Limit = v
	}

	return p, nil
}

// errorResponse maps the store failure taxonomy onto a stable wire format so
// clients can branch on kind without parsing messages.
func errorResponse(c echo.Context, err error) error {
	class := Classify(err)

	status := http.StatusInternalServerError
	switch class {
	case ClassValidation:
		status = http.StatusBadRequest
	case ClassNotFound:
		status = http.StatusNotFound
	case ClassDuplicate:
		status = http.StatusConflict
	case ClassAuthRequired:
		status = http.StatusUnauthorized
	case ClassUnreachable:
		status = http.StatusServiceUnavailable
	}

	body := map[string]string{
		"kind":    class.Kind(),
		"message": err.Error(),
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	return c.JSON(status, map[string]interface{}{"error": body})
}
