package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestEventLog(t *testing.T) EventLog {
	t.Helper()
	log, err := NewJSONLEventLog(filepath.Join(t.TempDir(), "logs", "events.jsonl"))
	if err != nil {
		t.Fatalf("NewJSONLEventLog: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log
}

func writeEvents(t *testing.T, log EventLog, events ...Event) {
	t.Helper()
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("Write(%s): %v", e.Type, err)
		}
	}
}

func TestJSONLEventLog_WriteRead(t *testing.T) {
	log := newTestEventLog(t)
	base := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	writeEvents(t, log,
		Event{Time: base, Level: LevelInfo, Type: "schema.loaded", Message: "schema.loaded", Data: map[string]any{"activity": "cycling"}},
		Event{Time: base.Add(time.Minute), Level: LevelInfo, Type: "session.ingested", Data: map[string]any{"session_id": "s1", "month": "2024-03"}},
		Event{Time: base.Add(2 * time.Minute), Level: LevelWarn, Type: "session.rejected", Data: map[string]any{"reason": "divide by zero"}},
	)

	all, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Read returned %d events, want 3", len(all))
	}
	if all[1].Data["session_id"] != "s1" {
		t.Errorf("event data = %v", all[1].Data)
	}
	if !all[0].Time.Equal(base) {
		t.Errorf("time = %v, want %v", all[0].Time, base)
	}
}

func TestJSONLEventLog_Filters(t *testing.T) {
	log := newTestEventLog(t)
	base := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	writeEvents(t, log,
		Event{Time: base, Type: "schema.loaded"},
		Event{Time: base.Add(time.Hour), Type: "session.ingested"},
		Event{Time: base.Add(2 * time.Hour), Level: LevelWarn, Type: "session.rejected"},
		Event{Time: base.Add(3 * time.Hour), Type: "personal_best.new"},
	)

	since := base.Add(90 * time.Minute)
	until := base.Add(150 * time.Minute)
	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"exact type", EventFilter{Type: "session.ingested"}, []string{"session.ingested"}},
		{"prefix", EventFilter{Type: "session.*"}, []string{"session.ingested", "session.rejected"}},
		{"level", EventFilter{Level: "warn"}, []string{"session.rejected"}},
		{"since", EventFilter{Since: &since}, []string{"session.rejected", "personal_best.new"}},
		{"window", EventFilter{Since: &since, Until: &until}, []string{"session.rejected"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := log.Read(tt.filter)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %v", len(got), tt.want)
			}
			for i, e := range got {
				if e.Type != tt.want[i] {
					t.Errorf("event %d = %s, want %s", i, e.Type, tt.want[i])
				}
			}
		})
	}
}

func TestJSONLEventLog_Defaults(t *testing.T) {
	log := newTestEventLog(t)
	writeEvents(t, log, Event{Type: "session.ingested"})

	got, err := log.Read(EventFilter{})
	if err != nil || len(got) != 1 {
		t.Fatalf("Read = %v, %v", got, err)
	}
	if got[0].Level != LevelInfo {
		t.Errorf("Level = %q, want INFO", got[0].Level)
	}
	if got[0].Time.IsZero() {
		t.Error("Time was not set")
	}
}

func TestJSONLEventLog_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"time":"2024-03-05T12:00:00Z","level":"INFO","type":"session.ingested","msg":"ok"}
not json at all

{"time":"2024-03-05T12:01:00Z","level":"INFO","type":"session.ingested","msg":"ok"}
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("NewJSONLEventLog: %v", err)
	}
	defer log.Close()

	got, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Read returned %d events, want 2", len(got))
	}
}
