// Package mcp provides an MCP (Model Context Protocol) server that exposes
// session summaries, personal bests and ingestion as MCP tools.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/valter-silva-au/tracks/internal/core"
	"github.com/valter-silva-au/tracks/internal/observability"
	"github.com/valter-silva-au/tracks/pkg/models"
)

// Server wraps an engine and exposes it as MCP tools.
type Server struct {
	server      *gomcp.Server
	engine      *core.Engine
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server for engine. metricsCalc and alertEngine
// may be nil if the event log is disabled.
func NewServer(engine *core.Engine, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		engine:      engine,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "tracks", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type summaryForInput struct {
	Month string `json:"month" jsonschema:"the month to summarise, formatted YYYY-MM"`
}

type measureOutput struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Value    string `json:"value"`
	Display  string `json:"display"`
	Metadata bool   `json:"metadata,omitempty"`
}

type summaryOutput struct {
	Month    string          `json:"month"`
	Sessions int             `json:"sessions"`
	Values   []measureOutput `json:"values"`
}

type listMonthsInput struct{}

type monthOutput struct {
	Month    string `json:"month"`
	Sessions int    `json:"sessions"`
}

type listMonthsOutput struct {
	Months []monthOutput `json:"months"`
	Count  int           `json:"count"`
	Best   string        `json:"best,omitempty"`
}

type topSessionsInput struct {
	Key string `json:"key,omitempty" jsonschema:"measure to rank by; changing it rebuilds the ranking"`
	Num int    `json:"num,omitempty" jsonschema:"number of sessions to keep in the ranking"`
}

type bestOutput struct {
	Rank      string `json:"rank"`
	SessionID string `json:"session_id"`
	Date      string `json:"date"`
	Value     string `json:"value"`
	Display   string `json:"display"`
}

type topSessionsOutput struct {
	Key      string       `json:"key"`
	Name     string       `json:"name"`
	Size     int          `json:"size"`
	Sessions []bestOutput `json:"sessions"`
}

type addSessionInput struct {
	ID     string            `json:"id,omitempty" jsonschema:"session identifier; generated when empty"`
	Fields map[string]string `json:"fields" jsonschema:"raw measure values keyed by measure key, e.g. date, time and distance"`
}

type addSessionOutput struct {
	SessionID         string `json:"session_id"`
	Month             string `json:"month"`
	IsNewPersonalBest bool   `json:"is_new_personal_best"`
	Rank              int    `json:"rank,omitempty"`
	Message           string `json:"message,omitempty"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 30d."`
}

type metricsOutput struct {
	SessionsIngested   int            `json:"sessions_ingested"`
	SessionsRejected   int            `json:"sessions_rejected"`
	RejectionsByReason map[string]int `json:"rejections_by_reason"`
	SessionsByMonth    map[string]int `json:"sessions_by_month"`
	PersonalBests      int            `json:"personal_bests"`
	Rebuilds           int            `json:"rebuilds"`
	EventCount         int            `json:"event_count"`
	OldestEvent        string         `json:"oldest_event,omitempty"`
	NewestEvent        string         `json:"newest_event,omitempty"`
	LastIngest         string         `json:"last_ingest,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "summary_for",
		Description: "Get the summary of one month: every measure aggregated with its summary function and formatted for display.",
	}, s.handleSummaryFor)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_months",
		Description: "List the months that have sessions, oldest first, with the session count of each and the best month of the ranked measure.",
	}, s.handleListMonths)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "top_sessions",
		Description: "Get the personal bests ranking. Passing key or num switches the ranked measure or size and rebuilds the ranking.",
	}, s.handleTopSessions)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "add_session",
		Description: "Record a session from raw measure values. Derived measures are computed; an invalid session is rejected in full.",
	}, s.handleAddSession)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get ingestion metrics from the event log: accepted and rejected sessions, rejection reasons and personal bests.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (high rejection rate, no recent sessions).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleSummaryFor(_ context.Context, _ *gomcp.CallToolRequest, input summaryForInput) (*gomcp.CallToolResult, summaryOutput, error) {
	if input.Month == "" {
		return errorResult("month is required"), summaryOutput{}, nil
	}
	month, err := core.ParseMonthKey(input.Month)
	if err != nil {
		return errorResult(err.Error()), summaryOutput{}, nil
	}

	report, ok := s.engine.MonthReport(month)
	if !ok {
		return errorResult(fmt.Sprintf("no sessions in %s", month)), summaryOutput{}, nil
	}

	out := summaryOutput{
		Month:    report.Month.String(),
		Sessions: report.Sessions,
		Values:   make([]measureOutput, len(report.Values)),
	}
	for i, v := range report.Values {
		out.Values[i] = measureOutput{
			Key:      v.Key,
			Name:     v.Name,
			Value:    v.Value.String(),
			Display:  v.Display,
			Metadata: v.Metadata,
		}
	}
	return nil, out, nil
}

func (s *Server) handleListMonths(_ context.Context, _ *gomcp.CallToolRequest, _ listMonthsInput) (*gomcp.CallToolResult, listMonthsOutput, error) {
	months := s.engine.Months()
	out := listMonthsOutput{
		Months: make([]monthOutput, 0, len(months)),
		Count:  len(months),
	}
	for _, m := range months {
		sum, _ := s.engine.SummaryFor(m)
		out.Months = append(out.Months, monthOutput{Month: m.String(), Sessions: sum.Sessions})
	}
	if best, _, ok := s.engine.BestMonth(s.engine.PersonalBests().Key()); ok {
		out.Best = best.String()
	}
	return nil, out, nil
}

func (s *Server) handleTopSessions(_ context.Context, _ *gomcp.CallToolRequest, input topSessionsInput) (*gomcp.CallToolResult, topSessionsOutput, error) {
	if input.Key != "" || input.Num != 0 {
		current := s.engine.PersonalBests()
		key, num := current.Key(), current.Size()
		if input.Key != "" {
			key = input.Key
		}
		if input.Num != 0 {
			num = input.Num
		}
		if key != current.Key() || num != current.Size() {
			if err := s.engine.Reconfigure(key, num); err != nil {
				return errorResult(err.Error()), topSessionsOutput{}, nil
			}
		}
	}

	report := s.engine.BestsReport()
	out := topSessionsOutput{
		Key:      report.Key,
		Name:     report.Name,
		Size:     report.Size,
		Sessions: make([]bestOutput, len(report.Entries)),
	}
	for i, e := range report.Entries {
		out.Sessions[i] = bestOutput{
			Rank:      e.Rank,
			SessionID: e.SessionID,
			Date:      e.Date,
			Value:     e.Value.String(),
			Display:   e.Display,
		}
	}
	return nil, out, nil
}

func (s *Server) handleAddSession(ctx context.Context, _ *gomcp.CallToolRequest, input addSessionInput) (*gomcp.CallToolResult, addSessionOutput, error) {
	if len(input.Fields) == 0 {
		return errorResult("fields is required"), addSessionOutput{}, nil
	}

	result, err := s.engine.Ingest(ctx, models.RawSession{ID: input.ID, Fields: input.Fields})
	if err != nil {
		var evalErr *core.EvalError
		if errors.As(err, &evalErr) {
			return errorResult(fmt.Sprintf("session rejected: %s", evalErr)), addSessionOutput{}, nil
		}
		return errorResult(fmt.Sprintf("recording session: %s", err)), addSessionOutput{}, nil
	}

	out := addSessionOutput{
		SessionID:         result.Session.ID,
		Month:             result.Month.String(),
		IsNewPersonalBest: result.PersonalBest.IsNewPersonalBest,
		Rank:              result.PersonalBest.Rank,
	}
	if result.PersonalBest.IsNewPersonalBest {
		key := s.engine.PersonalBests().Key()
		out.Message = core.PersonalBestMessage(s.engine.Schema(), key, result.Session, result.PersonalBest.Rank)
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (event log may be disabled)"), emptyMetricsOutput(), nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "30d"
	}

	sinceTime, err := parseSince(sinceStr, time.Now())
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), emptyMetricsOutput(), nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), emptyMetricsOutput(), nil
	}

	out := metricsOutput{
		SessionsIngested:   metrics.SessionsIngested,
		SessionsRejected:   metrics.SessionsRejected,
		RejectionsByReason: metrics.RejectionsByReason,
		SessionsByMonth:    metrics.SessionsByMonth,
		PersonalBests:      metrics.PersonalBests,
		Rebuilds:           metrics.Rebuilds,
		EventCount:         metrics.EventCount,
		OldestEvent:        formatTime(metrics.OldestEvent),
		NewestEvent:        formatTime(metrics.NewestEvent),
		LastIngest:         formatTime(metrics.LastIngest),
	}
	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (event log may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}
	return nil, out, nil
}

// --- Helpers ---

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func emptyMetricsOutput() metricsOutput {
	return metricsOutput{
		RejectionsByReason: make(map[string]int),
		SessionsByMonth:    make(map[string]int),
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a duration string like "7d", "30d" or "24h" into the
// corresponding time before now.
func parseSince(s string, now time.Time) (time.Time, error) {
	now = now.UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
