package core

import (
	"context"
	"reflect"
	"testing"
	"time"
)

func TestEngine_MonthReport(t *testing.T) {
	f := newEngineFixture(t, rideSchemaYAML)
	ctx := context.Background()
	for _, raw := range []struct{ id, date, distance, duration string }{
		{"s1", "2024-03-05", "20.0", "1:00:00"},
		{"s2", "2024-03-20", "25.0", "0:50:00"},
	} {
		if _, err := f.engine.Ingest(ctx, rideSession(raw.id, raw.date, raw.distance, raw.duration)); err != nil {
			t.Fatalf("Ingest(%s): %v", raw.id, err)
		}
	}

	if _, ok := f.engine.MonthReport(MonthKey{2024, time.April}); ok {
		t.Error("MonthReport(April) reported data")
	}

	report, ok := f.engine.MonthReport(MonthKey{2024, time.March})
	if !ok {
		t.Fatal("MonthReport(March) reported no data")
	}
	if report.Sessions != 2 {
		t.Errorf("Sessions = %d, want 2", report.Sessions)
	}

	got := map[string]string{}
	var order []string
	for _, v := range report.Values {
		got[v.Key] = v.Display
		order = append(order, v.Key)
	}
	if !reflect.DeepEqual(order, []string{"distance", "time", "speed"}) {
		t.Errorf("value order = %v, want schema order without date", order)
	}
	want := map[string]string{
		"distance": "45 km",
		"time":     "01:50:00",
		"speed":    "30.0 km/h",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("displays = %v, want %v", got, want)
	}
	if report.Values[0].Name != "Distance (km)" {
		t.Errorf("distance name = %q", report.Values[0].Name)
	}
}

func TestEngine_BestsReport(t *testing.T) {
	f := newEngineFixture(t, rideSchemaYAML)
	ctx := context.Background()
	if err := f.engine.Reconfigure("distance", 3); err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	for _, raw := range []struct{ id, date, distance string }{
		{"a", "2024-01-01", "30"},
		{"b", "2024-01-02", "20"},
		{"c", "2024-01-03", "30"},
		{"d", "2024-01-04", "10"},
	} {
		if _, err := f.engine.Ingest(ctx, rideSession(raw.id, raw.date, raw.distance, "1:00:00")); err != nil {
			t.Fatalf("Ingest(%s): %v", raw.id, err)
		}
	}

	report := f.engine.BestsReport()
	if report.Key != "distance" || report.Size != 3 || report.Name != "Distance (km)" {
		t.Errorf("report header = %+v", report)
	}
	if len(report.Entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(report.Entries))
	}

	type row struct{ rank, id, date, display string }
	var rows []row
	for _, e := range report.Entries {
		rows = append(rows, row{e.Rank, e.SessionID, e.Date, e.Display})
	}
	want := []row{
		{"1=", "a", "2024-01-01", "30 km"},
		{"1=", "c", "2024-01-03", "30 km"},
		{"3", "b", "2024-01-02", "20 km"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("entries = %+v, want %+v", rows, want)
	}
}
