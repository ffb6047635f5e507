package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// Event types written by the engine.
const (
	EventSchemaLoaded         = "schema.loaded"
	EventSessionIngested      = "session.ingested"
	EventSessionRejected      = "session.rejected"
	EventPersonalBest         = "personal_best.new"
	EventPersonalBestsRebuilt = "personal_bests.rebuilt"
)

// EngineOptions wires an Engine to its collaborators. Only Store is
// required.
type EngineOptions struct {
	Store    SessionStore
	Location *time.Location
	Events   EventLogger
	Metrics  IngestRecorder
	Notifier PersonalBestNotifier
	Logger   *slog.Logger
	Now      func() time.Time
}

// IngestResult describes an accepted session.
type IngestResult struct {
	Session      models.ResolvedSession `json:"session"`
	Month        MonthKey               `json:"month"`
	PersonalBest PBResult               `json:"personal_best"`
}

// Engine runs the ingestion pipeline for one schema: each accepted session
// is resolved, appended to the store, then folded into the month buckets
// and the personal bests ranking. There is a single writer at a time;
// queries may run alongside it.
type Engine struct {
	opts   EngineOptions
	logger *slog.Logger

	writeMu sync.Mutex

	mu       sync.RWMutex
	schema   *Schema
	monthly  *MonthlyAggregator
	bests    *PersonalBests
	sessions []models.ResolvedSession
}

// NewEngine returns an engine with empty aggregates. Call Replay to load the
// sessions already in the store.
func NewEngine(s *Schema, opts EngineOptions) (*Engine, error) {
	if s == nil {
		return nil, errors.New("engine: schema is required")
	}
	if opts.Store == nil {
		return nil, errors.New("engine: session store is required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prefs := s.Preferences().PersonalBests
	bests, err := NewPersonalBests(s, prefs.SessionsKey, prefs.NumBestSessions)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		opts:    opts,
		logger:  logger.With(slog.String("component", "engine"), slog.String("activity", s.Name())),
		schema:  s,
		monthly: NewMonthlyAggregator(s, opts.Location),
		bests:   bests,
	}
	e.logEvent(EventSchemaLoaded, map[string]any{
		"activity": s.Name(),
		"measures": len(s.Keys()),
		"derived":  s.DerivedKeys(),
	})
	return e, nil
}

// Ingest validates, resolves and records one session. A session that fails
// to resolve is rejected in full and the returned error wraps an *EvalError.
func (e *Engine) Ingest(ctx context.Context, raw models.RawSession) (IngestResult, error) {
	if err := ctx.Err(); err != nil {
		return IngestResult{}, err
	}
	start := e.opts.Now()

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.RLock()
	schema, monthly, bests := e.schema, e.monthly, e.bests
	e.mu.RUnlock()

	if raw.ID == "" {
		raw.ID = uuid.NewString()
	}
	if raw.RecordedAt.IsZero() {
		raw.RecordedAt = start.UTC()
	}

	rs, err := resolveRaw(schema, raw)
	if err != nil {
		e.reject(raw, err)
		return IngestResult{}, fmt.Errorf("ingesting session %s: %w", raw.ID, err)
	}

	if err := e.opts.Store.Append(ctx, raw); err != nil {
		e.reject(raw, err)
		return IngestResult{}, fmt.Errorf("appending session %s to log: %w", raw.ID, err)
	}

	var pb PBResult
	var wg conc.WaitGroup
	wg.Go(func() { monthly.Add(rs) })
	wg.Go(func() { pb = bests.Add(rs) })
	wg.Wait()

	e.mu.Lock()
	e.sessions = append(e.sessions, rs)
	e.mu.Unlock()

	month := MonthKeyOf(rs.Values[schema.DateKey()].Time, e.opts.Location)
	result := IngestResult{Session: rs, Month: month, PersonalBest: pb}

	e.logEvent(EventSessionIngested, map[string]any{
		"session_id": rs.ID,
		"month":      month.String(),
	})
	e.logger.Debug("session ingested",
		slog.String("session_id", rs.ID),
		slog.String("month", month.String()),
	)
	if pb.IsNewPersonalBest {
		e.announce(ctx, schema, bests.Key(), rs, pb)
	}
	if e.opts.Metrics != nil {
		e.opts.Metrics.ObserveIngest(e.opts.Now().Sub(start))
	}
	return result, nil
}

func resolveRaw(s *Schema, raw models.RawSession) (models.ResolvedSession, error) {
	rec, err := ParseSession(s, raw)
	if err != nil {
		return models.ResolvedSession{}, err
	}
	return Resolve(s, rec)
}

// RejectionReason returns the label used for a rejected session in events
// and metrics.
func RejectionReason(err error) string {
	var evalErr *EvalError
	if errors.As(err, &evalErr) {
		return string(evalErr.Kind)
	}
	return "storage"
}

func (e *Engine) reject(raw models.RawSession, err error) {
	reason := RejectionReason(err)
	e.logEvent(EventSessionRejected, map[string]any{
		"session_id": raw.ID,
		"reason":     reason,
		"error":      err.Error(),
	})
	e.logger.Warn("session rejected",
		slog.String("session_id", raw.ID),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
	if e.opts.Metrics != nil {
		e.opts.Metrics.ObserveRejection(reason)
	}
}

// PersonalBestMessage is the text announcing a new personal best, e.g.
// "New #1 speed - 30.0 km/h!".
func PersonalBestMessage(s *Schema, key string, rs models.ResolvedSession, rank int) string {
	def, _ := s.Measure(key)
	return fmt.Sprintf("New #%d %s - %s!", rank, key, Format(rs.Values[key], def))
}

func (e *Engine) announce(ctx context.Context, s *Schema, key string, rs models.ResolvedSession, pb PBResult) {
	msg := PersonalBestMessage(s, key, rs, pb.Rank)
	e.logEvent(EventPersonalBest, map[string]any{
		"session_id": rs.ID,
		"key":        key,
		"rank":       pb.Rank,
		"value":      rs.Values[key].String(),
	})
	e.logger.Info(msg, slog.String("session_id", rs.ID))
	if e.opts.Metrics != nil {
		e.opts.Metrics.ObservePersonalBest()
	}
	if e.opts.Notifier != nil {
		if err := e.opts.Notifier.NotifyPersonalBest(ctx, msg); err != nil {
			e.logger.Warn("personal best notification failed", slog.String("error", err.Error()))
		}
	}
}

// Replay rebuilds every aggregate from the session store. Logged sessions
// that no longer resolve under the current schema are skipped. Skips are
// only logged: they were accepted once, so they write no rejection event and
// leave the rejection metrics alone. It returns the number of sessions
// loaded.
func (e *Engine) Replay(ctx context.Context) (int, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	raws, err := e.opts.Store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading session log: %w", err)
	}

	e.mu.RLock()
	schema, key, k := e.schema, e.bests.Key(), e.bests.Size()
	e.mu.RUnlock()

	monthly := NewMonthlyAggregator(schema, e.opts.Location)
	bests, err := NewPersonalBests(schema, key, k)
	if err != nil {
		return 0, err
	}

	sessions := make([]models.ResolvedSession, 0, len(raws))
	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		rs, err := resolveRaw(schema, raw)
		if err != nil {
			e.logger.Warn("skipping logged session",
				slog.String("session_id", raw.ID),
				slog.String("reason", RejectionReason(err)),
				slog.String("error", err.Error()),
			)
			continue
		}
		sessions = append(sessions, rs)
		monthly.Add(rs)
	}
	bests.Rebuild(sessions)

	e.mu.Lock()
	e.monthly, e.bests, e.sessions = monthly, bests, sessions
	e.mu.Unlock()

	e.logger.Info("session log replayed",
		slog.Int("sessions", len(sessions)),
		slog.Int("skipped", len(raws)-len(sessions)),
	)
	return len(sessions), nil
}

// Reconfigure switches the personal bests ranking to a new key and size,
// rebuilding it from every accepted session.
func (e *Engine) Reconfigure(key string, k int) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.mu.RLock()
	schema := e.schema
	sessions := append([]models.ResolvedSession(nil), e.sessions...)
	e.mu.RUnlock()

	prefs := schema.Preferences()
	prefs.PersonalBests = models.PersonalBestPreferences{SessionsKey: key, NumBestSessions: k}
	updated, err := schema.WithPreferences(prefs)
	if err != nil {
		return fmt.Errorf("reconfiguring personal bests: %w", err)
	}
	bests, err := NewPersonalBests(updated, key, k)
	if err != nil {
		return fmt.Errorf("reconfiguring personal bests: %w", err)
	}
	bests.Rebuild(sessions)

	e.mu.Lock()
	e.schema, e.bests = updated, bests
	e.mu.Unlock()

	e.logEvent(EventPersonalBestsRebuilt, map[string]any{
		"key":      key,
		"size":     k,
		"sessions": len(sessions),
	})
	return nil
}

// Schema returns the schema in use.
func (e *Engine) Schema() *Schema {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.schema
}

// SummaryFor returns the summary of month; false means no data.
func (e *Engine) SummaryFor(month MonthKey) (MonthSummary, bool) {
	e.mu.RLock()
	monthly := e.monthly
	e.mu.RUnlock()
	return monthly.SummaryFor(month)
}

// Months lists the months with data, oldest first.
func (e *Engine) Months() []MonthKey {
	e.mu.RLock()
	monthly := e.monthly
	e.mu.RUnlock()
	return monthly.Months()
}

// BestMonth returns the month with the greatest summary of key.
func (e *Engine) BestMonth(key string) (MonthKey, models.Value, bool) {
	e.mu.RLock()
	monthly := e.monthly
	e.mu.RUnlock()
	return monthly.BestMonth(key)
}

// PersonalBests returns the current ranking.
func (e *Engine) PersonalBests() *PersonalBests {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bests
}

// TopSessions returns the ranked sessions, best first.
func (e *Engine) TopSessions() []models.ResolvedSession {
	return e.PersonalBests().TopSessions()
}

// Sessions returns every accepted session in ingestion order.
func (e *Engine) Sessions() []models.ResolvedSession {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.ResolvedSession(nil), e.sessions...)
}

// Format renders v using the definition of key.
func (e *Engine) Format(key string, v models.Value) string {
	def, _ := e.Schema().Measure(key)
	return Format(v, def)
}

// logEvent emits an event if an EventLogger is configured.
func (e *Engine) logEvent(eventType string, data map[string]any) {
	if e.opts.Events != nil {
		if err := e.opts.Events.LogEvent(eventType, data); err != nil {
			e.logger.Warn("writing event", slog.String("type", eventType), slog.String("error", err.Error()))
		}
	}
}
