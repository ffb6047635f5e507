package observability

import (
	"fmt"
	"time"
)

// Metrics holds ingestion metrics derived from the event log.
type Metrics struct {
	SessionsIngested   int            `json:"sessions_ingested"`
	SessionsRejected   int            `json:"sessions_rejected"`
	RejectionsByReason map[string]int `json:"rejections_by_reason"`
	SessionsByMonth    map[string]int `json:"sessions_by_month"`
	PersonalBests      int            `json:"personal_bests"`
	PersonalBestsByKey map[string]int `json:"personal_bests_by_key"`
	Rebuilds           int            `json:"rebuilds"`
	SchemaLoads        int            `json:"schema_loads"`
	EventCount         int            `json:"event_count"`
	OldestEvent        *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent        *time.Time     `json:"newest_event,omitempty"`
	LastIngest         *time.Time     `json:"last_ingest,omitempty"`
}

// RejectionRate returns the share of offered sessions that were rejected,
// or 0 when none were offered.
func (m *Metrics) RejectionRate() float64 {
	total := m.SessionsIngested + m.SessionsRejected
	if total == 0 {
		return 0
	}
	return float64(m.SessionsRejected) / float64(total)
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a new MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them into metrics.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		RejectionsByReason: make(map[string]int),
		SessionsByMonth:    make(map[string]int),
		PersonalBestsByKey: make(map[string]int),
		EventCount:         len(events),
	}

	for i, event := range events {
		t := event.Time
		if i == 0 {
			m.OldestEvent = &t
		}
		m.NewestEvent = &t

		switch event.Type {
		case "session.ingested":
			m.SessionsIngested++
			m.LastIngest = &t
			if month, ok := event.Data["month"].(string); ok {
				m.SessionsByMonth[month]++
			}
		case "session.rejected":
			m.SessionsRejected++
			reason, _ := event.Data["reason"].(string)
			if reason == "" {
				reason = "unknown"
			}
			m.RejectionsByReason[reason]++
		case "personal_best.new":
			m.PersonalBests++
			if key, ok := event.Data["key"].(string); ok {
				m.PersonalBestsByKey[key]++
			}
		case "personal_bests.rebuilt":
			m.Rebuilds++
		case "schema.loaded":
			m.SchemaLoads++
		}
	}

	return m, nil
}
