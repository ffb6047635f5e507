package observability

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSlackNotifier_NoAlerts(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewSlackNotifier(srv.URL)
	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if called {
		t.Fatal("expected no HTTP request for empty alerts")
	}
}

func TestSlackNotifier_SendsAlerts(t *testing.T) {
	var receivedBody []byte
	var receivedContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedContentType = r.Header.Get("Content-Type")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	alerts := []Alert{
		{
			ID:          "rejection-rate",
			Condition:   "rejection_rate_high",
			Severity:    SeverityHigh,
			Message:     "3 of 4 sessions in the last 30 days were rejected (75%), mostly divide by zero",
			TriggeredAt: time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:          "inactive",
			Condition:   "no_recent_sessions",
			Severity:    SeverityLow,
			Message:     "no session has been recorded for 20 days",
			TriggeredAt: time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC),
		},
	}
	if err := NewSlackNotifier(srv.URL).Notify(context.Background(), alerts); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if receivedContentType != "application/json" {
		t.Errorf("Content-Type = %s", receivedContentType)
	}
	var msg slackMessage
	if err := json.Unmarshal(receivedBody, &msg); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	// header, alert, divider, alert
	if len(msg.Blocks) != 4 {
		t.Fatalf("got %d blocks, want 4", len(msg.Blocks))
	}
	if msg.Blocks[0].Type != "header" || msg.Blocks[2].Type != "divider" {
		t.Errorf("block types = %s, %s", msg.Blocks[0].Type, msg.Blocks[2].Type)
	}
	if !strings.Contains(msg.Blocks[1].Text.Text, "[HIGH]") || !strings.Contains(msg.Blocks[3].Text.Text, "[LOW]") {
		t.Errorf("alert texts = %q / %q", msg.Blocks[1].Text.Text, msg.Blocks[3].Text.Text)
	}
}

func TestSlackNotifier_PersonalBest(t *testing.T) {
	var msg slackMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&msg)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewSlackNotifier(srv.URL).NotifyPersonalBest(context.Background(), "New #1 speed - 30.0 km/h!"); err != nil {
		t.Fatalf("NotifyPersonalBest: %v", err)
	}
	if msg.Text != "New #1 speed - 30.0 km/h!" {
		t.Errorf("text = %q", msg.Text)
	}
	if len(msg.Blocks) != 1 || !strings.Contains(msg.Blocks[0].Text.Text, "New #1 speed") {
		t.Errorf("blocks = %+v", msg.Blocks)
	}
}

func TestSlackNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewSlackNotifier(srv.URL).NotifyPersonalBest(context.Background(), "New #1 speed - 30.0 km/h!")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("err = %v, want status 403", err)
	}
}

func TestSlackNotifier_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewSlackNotifier(srv.URL).NotifyPersonalBest(ctx, "x"); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}
