package observability

import (
	"fmt"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	// RejectionPercent is the share of rejected sessions, out of every
	// session offered in the window, above which an alert fires.
	RejectionPercent int `yaml:"rejection_percent" json:"rejection_percent" mapstructure:"rejection_percent"`
	// MinSessions is the number of offered sessions needed before the
	// rejection rate is judged.
	MinSessions int `yaml:"min_sessions" json:"min_sessions" mapstructure:"min_sessions"`
	// InactiveDays is how long without an accepted session before an
	// inactivity alert fires.
	InactiveDays int `yaml:"inactive_days" json:"inactive_days" mapstructure:"inactive_days"`
	// WindowDays is how far back the rejection rate looks.
	WindowDays int `yaml:"window_days" json:"window_days" mapstructure:"window_days"`
}

// DefaultAlertThresholds returns the thresholds used when none are configured.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		RejectionPercent: 25,
		MinSessions:      4,
		InactiveDays:     14,
		WindowDays:       30,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by deriving metrics and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate checks all alert conditions and returns the ones that fire.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := ae.now()
	var alerts []Alert

	windowStart := now.AddDate(0, 0, -ae.thresholds.WindowDays)
	recent, err := NewMetricsCalculator(ae.eventLog).Calculate(windowStart)
	if err != nil {
		return nil, fmt.Errorf("checking rejection rate: %w", err)
	}
	if a, ok := ae.checkRejectionRate(recent, now); ok {
		alerts = append(alerts, a)
	}

	all, err := NewMetricsCalculator(ae.eventLog).Calculate(time.Time{})
	if err != nil {
		return nil, fmt.Errorf("checking inactivity: %w", err)
	}
	if a, ok := ae.checkInactivity(all, now); ok {
		alerts = append(alerts, a)
	}

	return alerts, nil
}

// checkRejectionRate fires when too many recently offered sessions failed
// to resolve, which usually means an importer and the schema disagree.
func (ae *alertEngine) checkRejectionRate(m *Metrics, now time.Time) (Alert, bool) {
	offered := m.SessionsIngested + m.SessionsRejected
	if offered < ae.thresholds.MinSessions || offered == 0 {
		return Alert{}, false
	}
	percent := m.RejectionRate() * 100
	if percent <= float64(ae.thresholds.RejectionPercent) {
		return Alert{}, false
	}

	top, topCount := "", 0
	for reason, n := range m.RejectionsByReason {
		if n > topCount || (n == topCount && reason < top) {
			top, topCount = reason, n
		}
	}
	return Alert{
		ID:        "rejection-rate",
		Condition: "rejection_rate_high",
		Severity:  SeverityHigh,
		Message: fmt.Sprintf("%d of %d sessions in the last %d days were rejected (%.0f%%), mostly %s",
			m.SessionsRejected, offered, ae.thresholds.WindowDays, percent, top),
		TriggeredAt: now,
	}, true
}

// checkInactivity fires when sessions were recorded once but none recently.
func (ae *alertEngine) checkInactivity(m *Metrics, now time.Time) (Alert, bool) {
	if m.LastIngest == nil {
		return Alert{}, false
	}
	threshold := time.Duration(ae.thresholds.InactiveDays) * 24 * time.Hour
	idle := now.Sub(*m.LastIngest)
	if idle <= threshold {
		return Alert{}, false
	}
	return Alert{
		ID:          "inactive",
		Condition:   "no_recent_sessions",
		Severity:    SeverityLow,
		Message:     fmt.Sprintf("no session has been recorded for %d days", int(idle.Hours()/24)),
		TriggeredAt: now,
	}, true
}
