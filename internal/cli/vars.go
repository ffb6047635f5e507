package cli

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/valter-silva-au/tracks/internal/core"
	"github.com/valter-silva-au/tracks/internal/observability"
	"github.com/valter-silva-au/tracks/internal/storage"
	"github.com/valter-silva-au/tracks/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath string
	Config   *models.AppConfig
	Engine   *core.Engine
	Registry *core.ComparatorRegistry
	Schemas  storage.SchemaStore
	Gatherer prometheus.Gatherer
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)
