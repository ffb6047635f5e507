package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/tracks/internal/core"
	"github.com/valter-silva-au/tracks/internal/observability"
	"github.com/valter-silva-au/tracks/internal/storage"
	"github.com/valter-silva-au/tracks/pkg/models"
)

// --- Mocks ---

type metricsMock struct {
	metrics *observability.Metrics
	err     error
	since   time.Time
}

func (m *metricsMock) Calculate(since time.Time) (*observability.Metrics, error) {
	m.since = since
	return m.metrics, m.err
}

type alertsMock struct {
	evaluateFn func() ([]observability.Alert, error)
}

func (m *alertsMock) Evaluate() ([]observability.Alert, error) {
	return m.evaluateFn()
}

type notifierMock struct {
	alerts   []observability.Alert
	messages []string
	err      error
}

func (m *notifierMock) Notify(_ context.Context, alerts []observability.Alert) error {
	m.alerts = append(m.alerts, alerts...)
	return m.err
}

func (m *notifierMock) NotifyPersonalBest(_ context.Context, message string) error {
	m.messages = append(m.messages, message)
	return m.err
}

// --- Fixtures ---

// useEngine installs a cycling engine backed by an in-memory log, and a
// schema store under a temp dir, for the duration of the test.
func useEngine(t *testing.T) *core.Engine {
	t.Helper()
	reg := core.NewComparatorRegistry()
	schema, err := core.LoadBuiltin("cycling", reg)
	if err != nil {
		t.Fatalf("LoadBuiltin: %v", err)
	}
	engine, err := core.NewEngine(schema, core.EngineOptions{
		Store:  storage.NewMemorySessionLog(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	origEngine, origRegistry, origSchemas, origConfig := Engine, Registry, Schemas, Config
	t.Cleanup(func() {
		Engine, Registry, Schemas, Config = origEngine, origRegistry, origSchemas, origConfig
	})
	Engine = engine
	Registry = reg
	Schemas = storage.NewSchemaStore(t.TempDir())
	Config = core.DefaultConfig()
	return engine
}

func addRide(t *testing.T, engine *core.Engine, id, date, distance, duration string) {
	t.Helper()
	_, err := engine.Ingest(context.Background(), models.RawSession{ID: id, Fields: map[string]string{
		"date": date, "time": duration, "distance": distance, "calories": "600", "gear": "3",
	}})
	if err != nil {
		t.Fatalf("Ingest(%s): %v", id, err)
	}
}

// runCommand calls cmd's RunE with output captured.
func runCommand(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
	})
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}
