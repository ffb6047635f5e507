// Package internal provides the App struct that wires all components of
// tracks together and initializes the CLI layer.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/valter-silva-au/tracks/internal/cli"
	"github.com/valter-silva-au/tracks/internal/core"
	"github.com/valter-silva-au/tracks/internal/observability"
	"github.com/valter-silva-au/tracks/internal/storage"
	"github.com/valter-silva-au/tracks/pkg/models"
)

// App holds all service dependencies for tracks.
type App struct {
	BasePath string
	Logger   *slog.Logger

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.AppConfig

	// Schema
	Registry *core.ComparatorRegistry
	Schemas  storage.SchemaStore
	Schema   *core.Schema

	// Storage layer
	SessionLog storage.SessionLog

	// Core services
	Engine *core.Engine

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
	Prometheus  *prometheus.Registry
	Recorder    *observability.PromRecorder
}

// NewApp creates and wires all components of tracks. basePath is the
// directory holding .tracksconfig and the data files (typically ~/.tracks).
// The session log is replayed before NewApp returns.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := app.ConfigMgr.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	app.Config = cfg

	app.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: core.LogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(app.Logger)

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("creating base directory %s: %w", basePath, err)
	}

	// --- Schema ---
	app.Registry = core.DefaultRegistry()
	app.Schemas = storage.NewSchemaStore(app.resolve(cfg.SchemaDir))
	schema, err := app.loadSchema(cfg.Activity)
	if err != nil {
		return nil, err
	}
	if cfg.PersonalBests != nil {
		prefs := schema.Preferences()
		prefs.PersonalBests = *cfg.PersonalBests
		if schema, err = schema.WithPreferences(prefs); err != nil {
			return nil, fmt.Errorf("applying personal_bests from %s: %w", core.ConfigFileName, err)
		}
	}
	app.Schema = schema

	// --- Observability ---
	app.EventLog, err = observability.NewJSONLEventLog(app.resolve(cfg.EventLogPath))
	if err != nil {
		// Non-fatal: disable the event log and everything derived from it.
		app.Logger.Warn("event log disabled", slog.String("error", err.Error()))
		app.EventLog = nil
	}
	if app.EventLog != nil {
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, observability.DefaultAlertThresholds())
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if cfg.Notifications.Enabled && cfg.Notifications.Slack.WebhookURL != "" {
		app.Notifier = observability.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL)
	}

	app.Prometheus = prometheus.NewRegistry()
	app.Prometheus.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.Recorder = observability.NewPromRecorder(app.Prometheus)

	// --- Storage layer ---
	app.SessionLog, err = storage.NewSQLiteSessionLog(app.resolve(cfg.DatabasePath))
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	// --- Core services ---
	opts := core.EngineOptions{
		Store:    app.SessionLog,
		Location: core.Location(cfg.TimeBase),
		Metrics:  app.Recorder,
		Logger:   app.Logger,
	}
	if app.EventLog != nil {
		opts.Events = &eventLogAdapter{log: app.EventLog}
	}
	if app.Notifier != nil {
		opts.Notifier = app.Notifier
	}
	app.Engine, err = core.NewEngine(schema, opts)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	n, err := app.Engine.Replay(context.Background())
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Logger.Debug("app ready",
		slog.String("base", basePath),
		slog.String("activity", schema.Name()),
		slog.Int("sessions", n),
	)

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.Engine = app.Engine
	cli.Registry = app.Registry
	cli.Schemas = app.Schemas
	cli.Gatherer = app.Prometheus

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier

	return app, nil
}

// loadSchema reads the stored document for activity, falling back to the
// built-in schema of the same name when none has been written yet.
func (a *App) loadSchema(activity string) (*core.Schema, error) {
	data, err := a.Schemas.Load(activity)
	if errors.Is(err, storage.ErrSchemaNotFound) {
		schema, berr := core.LoadBuiltin(activity, a.Registry)
		if berr != nil {
			return nil, fmt.Errorf("no schema for activity %q in %s (run 'tracks init'): %w",
				activity, a.Schemas.Path(activity), berr)
		}
		return schema, nil
	}
	if err != nil {
		return nil, err
	}
	schema, err := core.LoadSchema(data, a.Registry)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Schemas.Path(activity), err)
	}
	return schema, nil
}

// resolve makes a configured path relative to the base directory.
func (a *App) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(a.BasePath, path)
}

// Close releases resources held by the App. It is safe to call on a
// partially built App.
func (a *App) Close() error {
	var errs []error
	if a.SessionLog != nil {
		errs = append(errs, a.SessionLog.Close())
	}
	if a.EventLog != nil {
		errs = append(errs, a.EventLog.Close())
	}
	return errors.Join(errs...)
}

// ResolveBasePath determines the data directory. It checks TRACKS_HOME, then
// walks up from the working directory looking for .tracksconfig, then falls
// back to ~/.tracks.
func ResolveBasePath() string {
	if home := os.Getenv("TRACKS_HOME"); home != "" {
		return home
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, core.ConfigFileName)); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".tracks")
	}
	return cwd
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(eventType string, data map[string]any) error {
	level := observability.LevelInfo
	if eventType == core.EventSessionRejected {
		level = observability.LevelWarn
	}
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: eventType,
		Data:    data,
	})
}
