package core

import (
	"context"
	"time"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// SessionStore is the append-only log of accepted sessions. It keeps the raw
// text form so the log can be replayed against a reloaded schema.
// This interface is defined locally in core to avoid importing storage.
type SessionStore interface {
	Append(ctx context.Context, raw models.RawSession) error
	All(ctx context.Context) ([]models.RawSession, error)
}

// EventLogger is the subset of the observability event log that core
// services need. Defining it here avoids importing the observability package.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// IngestRecorder receives ingestion outcomes, typically for Prometheus.
type IngestRecorder interface {
	ObserveIngest(elapsed time.Duration)
	ObserveRejection(reason string)
	ObservePersonalBest()
}

// PersonalBestNotifier announces new personal bests to the user.
type PersonalBestNotifier interface {
	NotifyPersonalBest(ctx context.Context, message string) error
}
