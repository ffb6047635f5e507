package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/valter-silva-au/tracks/internal/core"
	"github.com/valter-silva-au/tracks/internal/observability"
	"github.com/valter-silva-au/tracks/internal/storage"
	"github.com/valter-silva-au/tracks/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	engine *core.Engine
	router *gin.Engine
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	schema, err := core.LoadBuiltin("cycling", core.NewComparatorRegistry())
	if err != nil {
		t.Fatalf("LoadBuiltin: %v", err)
	}
	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := core.NewEngine(schema, core.EngineOptions{
		Store:   storage.NewMemorySessionLog(),
		Metrics: observability.NewPromRecorder(reg),
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return testServer{
		engine: engine,
		router: NewRouter(engine, RouterOptions{Gatherer: reg, Logger: logger}),
	}
}

func (s testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var resp Response
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decoding response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

func (s testServer) ingest(t *testing.T, id, date, distance, duration string) {
	t.Helper()
	_, err := s.engine.Ingest(context.Background(), models.RawSession{ID: id, Fields: map[string]string{
		"date": date, "time": duration, "distance": distance, "calories": "500", "gear": "3",
	}})
	if err != nil {
		t.Fatalf("Ingest(%s): %v", id, err)
	}
}

// dataAs re-decodes the envelope payload into out.
func dataAs(t *testing.T, resp Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("re-encoding data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decoding data %s: %v", raw, err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"activity":"cycling"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestGetSchema(t *testing.T) {
	s := newTestServer(t)
	w, resp := s.do(t, http.MethodGet, "/api/v1/schema", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var doc struct {
		Name     string                    `json:"name"`
		Measures map[string]map[string]any `json:"measures"`
	}
	dataAs(t, resp, &doc)
	if doc.Name != "cycling" {
		t.Errorf("name = %q", doc.Name)
	}
	if _, ok := doc.Measures["speed"]["relation"]; !ok {
		t.Errorf("speed has no relation in %v", doc.Measures["speed"])
	}
}

func TestAddSession_AndQueries(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"id":     "s1",
		"fields": map[string]string{"date": "2024-03-05", "time": "1:00:00", "distance": "20", "calories": "500", "gear": "3"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST status = %d: %s", w.Code, w.Body.String())
	}
	var added struct {
		Month        string        `json:"month"`
		PersonalBest core.PBResult `json:"personal_best"`
		Message      string        `json:"message"`
	}
	dataAs(t, resp, &added)
	if added.Month != "2024-03" || !added.PersonalBest.IsNewPersonalBest || added.Message != "New #1 speed - 20.0 km/h!" {
		t.Errorf("POST response = %+v", added)
	}

	s.ingest(t, "s2", "2024-03-20", "25", "0:50:00")

	w, resp = s.do(t, http.MethodGet, "/api/v1/months", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("months status = %d", w.Code)
	}
	var months []monthEntry
	dataAs(t, resp, &months)
	if len(months) != 1 || months[0].Month.String() != "2024-03" || months[0].Sessions != 2 {
		t.Errorf("months = %+v", months)
	}

	w, resp = s.do(t, http.MethodGet, "/api/v1/months/2024-03/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("summary status = %d", w.Code)
	}
	var report core.MonthReport
	dataAs(t, resp, &report)
	displays := map[string]string{}
	for _, v := range report.Values {
		displays[v.Key] = v.Display
	}
	if displays["distance"] != "45.00 km" || displays["speed"] != "30.0 km/h" {
		t.Errorf("summary displays = %v", displays)
	}

	w, resp = s.do(t, http.MethodGet, "/api/v1/personal-bests", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("bests status = %d", w.Code)
	}
	var bests core.BestsReport
	dataAs(t, resp, &bests)
	if bests.Key != "speed" || len(bests.Entries) != 2 || bests.Entries[0].SessionID != "s2" {
		t.Errorf("bests = %+v", bests)
	}
}

func TestGetMonthSummary_Errors(t *testing.T) {
	s := newTestServer(t)
	s.ingest(t, "s1", "2024-03-05", "20", "1:00:00")

	if w, resp := s.do(t, http.MethodGet, "/api/v1/months/2024-04/summary", nil); w.Code != http.StatusNotFound || resp.Code != http.StatusNotFound {
		t.Errorf("month without data: status = %d, body = %s", w.Code, w.Body.String())
	}
	if w, _ := s.do(t, http.MethodGet, "/api/v1/months/march/summary", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad month: status = %d", w.Code)
	}
}

func TestAddSession_Rejected(t *testing.T) {
	s := newTestServer(t)

	w, resp := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{
		"fields": map[string]string{"date": "2024-03-05", "time": "0:00:00", "distance": "20", "calories": "1", "gear": "1"},
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if !strings.Contains(resp.Message, "divide by zero") {
		t.Errorf("message = %q", resp.Message)
	}
	if len(s.engine.Months()) != 0 {
		t.Error("rejected session reached the month buckets")
	}

	if w, _ := s.do(t, http.MethodPost, "/api/v1/sessions", map[string]any{"id": "x"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing fields: status = %d, want 400", w.Code)
	}
}

func TestBestMonth(t *testing.T) {
	s := newTestServer(t)
	s.ingest(t, "a", "2024-01-10", "30", "1:00:00")
	s.ingest(t, "b", "2024-02-10", "50", "2:00:00")

	w, resp := s.do(t, http.MethodGet, "/api/v1/best-month?key=distance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got struct {
		Month   string `json:"month"`
		Display string `json:"display"`
	}
	dataAs(t, resp, &got)
	if got.Month != "2024-02" || got.Display != "50.00 km" {
		t.Errorf("best month = %+v", got)
	}

	if w, _ := s.do(t, http.MethodGet, "/api/v1/best-month?key=power", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown key: status = %d", w.Code)
	}
}

func TestSetPersonalBests(t *testing.T) {
	s := newTestServer(t)
	s.ingest(t, "a", "2024-01-10", "30", "1:00:00")
	s.ingest(t, "b", "2024-01-11", "50", "2:30:00")

	w, resp := s.do(t, http.MethodPut, "/api/v1/personal-bests", map[string]any{"key": "distance", "num": 1})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var bests core.BestsReport
	dataAs(t, resp, &bests)
	if bests.Key != "distance" || len(bests.Entries) != 1 || bests.Entries[0].SessionID != "b" {
		t.Errorf("bests = %+v", bests)
	}

	if w, _ := s.do(t, http.MethodPut, "/api/v1/personal-bests", map[string]any{"key": "gear", "num": 3}); w.Code != http.StatusBadRequest {
		t.Errorf("unplottable key: status = %d, want 400", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.ingest(t, "a", "2024-01-10", "30", "1:00:00")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tracks_sessions_ingested_total 1") {
		t.Errorf("metrics body missing ingest counter:\n%s", w.Body.String())
	}
}
