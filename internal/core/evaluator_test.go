package core

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/valter-silva-au/tracks/pkg/models"
)

func rideSession(id, date, distance, duration string) models.RawSession {
	return models.RawSession{
		ID: id,
		Fields: map[string]string{
			"date":     date,
			"distance": distance,
			"time":     duration,
		},
	}
}

func mustResolve(t fatalHelper, s *Schema, raw models.RawSession) models.ResolvedSession {
	t.Helper()
	rec, err := ParseSession(s, raw)
	if err != nil {
		t.Fatalf("ParseSession(%s): %v", raw.ID, err)
	}
	rs, err := Resolve(s, rec)
	if err != nil {
		t.Fatalf("Resolve(%s): %v", raw.ID, err)
	}
	return rs
}

func TestResolve_Speed(t *testing.T) {
	s := mustLoadSchema(t, rideSchemaYAML)

	rs := mustResolve(t, s, rideSession("s2", "2024-03-20", "25.0", "0:50:00"))
	speed, ok := rs.Value("speed")
	if !ok {
		t.Fatal("speed missing from resolved session")
	}
	if speed.Kind != models.KindFloat {
		t.Errorf("speed kind = %s", speed.Kind)
	}
	if math.Abs(speed.Float-30.0) > 1e-9 {
		t.Errorf("speed = %v, want 30.0", speed.Float)
	}
	if got := rs.Values["date"].Time; !got.Equal(time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("date = %v", got)
	}
}

func TestResolve_DivideByZero(t *testing.T) {
	s := mustLoadSchema(t, rideSchemaYAML)
	rec, err := ParseSession(s, rideSession("z", "2024-03-05", "20", "0:00:00"))
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}
	_, err = Resolve(s, rec)
	if !errors.Is(err, ErrDivideByZero) {
		t.Fatalf("err = %v, want DivideByZero", err)
	}
	var ee *EvalError
	if errors.As(err, &ee) && ee.Measure != "speed" {
		t.Errorf("EvalError measure = %q, want speed", ee.Measure)
	}
}

func TestResolve_MissingOperand(t *testing.T) {
	s := mustLoadSchema(t, rideSchemaYAML)
	raw := rideSession("m", "2024-03-05", "20", "")
	rec, err := ParseSession(s, raw)
	if err != nil {
		t.Fatalf("ParseSession: %v", err)
	}
	if _, err := Resolve(s, rec); !errors.Is(err, ErrMissingOperand) {
		t.Fatalf("err = %v, want MissingOperand", err)
	}
}

func TestParseSession_Errors(t *testing.T) {
	s := mustLoadSchema(t, rideSchemaYAML)

	unknown := rideSession("u", "2024-03-05", "20", "1:00:00")
	unknown.Fields["cadence"] = "90"
	if _, err := ParseSession(s, unknown); !errors.Is(err, ErrUnknownMeasure) {
		t.Errorf("unknown field: err = %v, want UnknownMeasure", err)
	}

	bad := rideSession("b", "2024-03-05", "twenty", "1:00:00")
	if _, err := ParseSession(s, bad); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("bad float: err = %v, want InvalidValue", err)
	}
}

func TestParseSession_IgnoresSuppliedDerivedValues(t *testing.T) {
	s := mustLoadSchema(t, rideSchemaYAML)
	raw := rideSession("d", "2024-03-05", "20", "1:00:00")
	raw.Fields["speed"] = "999"

	rs := mustResolve(t, s, raw)
	if rs.Values["speed"].Float != 20 {
		t.Errorf("speed = %v, want recomputed 20", rs.Values["speed"].Float)
	}
}

func TestResolve_RejectsTypedRecordProblems(t *testing.T) {
	s := mustLoadSchema(t, rideSchemaYAML)
	base := func() models.SessionRecord {
		return models.SessionRecord{ID: "r", Values: map[string]models.Value{
			"date":     models.DateValue(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
			"distance": models.FloatValue(20),
			"time":     models.DurationValue(1),
		}}
	}

	wrongKind := base()
	wrongKind.Values["distance"] = models.StringValue("20")
	if _, err := Resolve(s, wrongKind); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("wrong kind: err = %v", err)
	}

	derived := base()
	derived.Values["speed"] = models.FloatValue(1)
	if _, err := Resolve(s, derived); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("supplied derived: err = %v", err)
	}

	unknown := base()
	unknown.Values["power"] = models.FloatValue(200)
	if _, err := Resolve(s, unknown); !errors.Is(err, ErrUnknownMeasure) {
		t.Errorf("unknown measure: err = %v", err)
	}

	if _, err := Resolve(s, base()); err != nil {
		t.Errorf("valid record: %v", err)
	}
}

func TestResolve_IntResultAndTimeMinutes(t *testing.T) {
	s, err := LoadBuiltin("rowing", NewComparatorRegistry())
	if err != nil {
		t.Fatalf("LoadBuiltin: %v", err)
	}
	raw := models.RawSession{ID: "row", Fields: map[string]string{
		"date":     "2024-04-01",
		"time":     "0:30:00",
		"distance": "6",
		"calories": "300",
		"gear":     "4",
		"strokes":  "720",
	}}
	rs := mustResolve(t, s, raw)
	if got := rs.Values["stroke_rate"].Float; math.Abs(got-24) > 1e-9 {
		t.Errorf("stroke_rate = %v, want 24", got)
	}
	if got := rs.Values["speed"].Float; math.Abs(got-12) > 1e-9 {
		t.Errorf("speed = %v, want 12", got)
	}
}

func TestResolve_DoesNotShareInputMap(t *testing.T) {
	s := mustLoadSchema(t, rideSchemaYAML)
	rec, _ := ParseSession(s, rideSession("a", "2024-03-05", "20", "1:00:00"))
	rs, err := Resolve(s, rec)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	rec.Values["distance"] = models.FloatValue(1)
	if rs.Values["distance"].Float != 20 {
		t.Error("resolved session changed with its input record")
	}
}

func TestFormat(t *testing.T) {
	s := mustLoadSchema(t, rideSchemaYAML)
	speed, _ := s.Measure("speed")
	distance, _ := s.Measure("distance")
	duration, _ := s.Measure("time")
	date, _ := s.Measure("date")
	three := 3
	two := 2

	tests := []struct {
		name string
		v    models.Value
		def  models.MeasureDefinition
		want string
	}{
		{"speed", models.FloatValue(29.98765), speed, "30.0 km/h"},
		{"speed small", models.FloatValue(9.87654), speed, "9.88 km/h"},
		{"distance full precision", models.FloatValue(45), distance, "45 km"},
		{"duration hides unit", models.DurationValue(50.0 / 60), duration, "00:50:00"},
		{"date", models.DateValue(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)), date, "2024-03-05"},
		{"large value", models.FloatValue(1234.5), models.MeasureDefinition{SignificantFigures: &two}, "1200"},
		{"carry", models.FloatValue(9.9996), models.MeasureDefinition{SignificantFigures: &three}, "10.0"},
		{"zero", models.FloatValue(0), models.MeasureDefinition{SignificantFigures: &three}, "0.00"},
		{"int", models.IntValue(42), models.MeasureDefinition{}, "42"},
		{"string", models.StringValue("hilly"), models.MeasureDefinition{}, "hilly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.v, tt.def); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}
