package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valter-silva-au/tracks/internal/core"
	"github.com/valter-silva-au/tracks/pkg/models"
)

// Handler serves queries and session ingestion for one engine.
type Handler struct {
	engine *core.Engine
}

// NewHandler creates a Handler for engine.
func NewHandler(engine *core.Engine) *Handler {
	return &Handler{engine: engine}
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"activity": h.engine.Schema().Name(),
	})
}

// GetSchema handles GET /api/v1/schema.
func (h *Handler) GetSchema(c *gin.Context) {
	success(c, h.engine.Schema().Document())
}

type monthEntry struct {
	Month    core.MonthKey `json:"month"`
	Sessions int           `json:"sessions"`
}

// ListMonths handles GET /api/v1/months.
func (h *Handler) ListMonths(c *gin.Context) {
	months := h.engine.Months()
	out := make([]monthEntry, 0, len(months))
	for _, m := range months {
		sum, _ := h.engine.SummaryFor(m)
		out = append(out, monthEntry{Month: m, Sessions: sum.Sessions})
	}
	success(c, out)
}

// GetMonthSummary handles GET /api/v1/months/:month/summary.
func (h *Handler) GetMonthSummary(c *gin.Context) {
	month, err := core.ParseMonthKey(c.Param("month"))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	report, ok := h.engine.MonthReport(month)
	if !ok {
		fail(c, http.StatusNotFound, fmt.Sprintf("no sessions in %s", month))
		return
	}
	success(c, report)
}

// GetBestMonth handles GET /api/v1/best-month?key=distance.
func (h *Handler) GetBestMonth(c *gin.Context) {
	schema := h.engine.Schema()
	key := c.Query("key")
	if key == "" {
		key = schema.Preferences().PersonalBests.SessionsKey
	}
	def, ok := schema.Measure(key)
	if !ok {
		fail(c, http.StatusBadRequest, fmt.Sprintf("unknown measure %q", key))
		return
	}
	month, v, ok := h.engine.BestMonth(key)
	if !ok {
		fail(c, http.StatusNotFound, fmt.Sprintf("no monthly summary for %q", key))
		return
	}
	success(c, gin.H{
		"key":     key,
		"month":   month,
		"value":   v,
		"display": core.Format(v, def),
	})
}

// GetPersonalBests handles GET /api/v1/personal-bests.
func (h *Handler) GetPersonalBests(c *gin.Context) {
	success(c, h.engine.BestsReport())
}

type rankingRequest struct {
	Key string `json:"key" binding:"required"`
	Num int    `json:"num" binding:"required"`
}

// SetPersonalBests handles PUT /api/v1/personal-bests. It switches the
// ranking measure or size and rebuilds the ranking.
func (h *Handler) SetPersonalBests(c *gin.Context) {
	var req rankingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.engine.Reconfigure(req.Key, req.Num); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	success(c, h.engine.BestsReport())
}

type sessionRequest struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields" binding:"required"`
}

// AddSession handles POST /api/v1/sessions.
func (h *Handler) AddSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.engine.Ingest(c.Request.Context(), models.RawSession{ID: req.ID, Fields: req.Fields})
	if err != nil {
		var evalErr *core.EvalError
		if errors.As(err, &evalErr) {
			fail(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "storing session failed")
		return
	}

	resp := gin.H{
		"session":       result.Session,
		"month":         result.Month,
		"personal_best": result.PersonalBest,
	}
	if result.PersonalBest.IsNewPersonalBest {
		key := h.engine.PersonalBests().Key()
		resp["message"] = core.PersonalBestMessage(h.engine.Schema(), key, result.Session, result.PersonalBest.Rank)
	}
	created(c, resp)
}
