package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// =============================================================================
// Generators
// =============================================================================

var genUnits = []string{"km", "h", "kcal", "m", "stroke"}

func genUnit(t *rapid.T, label string) *string {
	if !rapid.Bool().Draw(t, label+"_has_unit") {
		return nil
	}
	u := rapid.SampledFrom(genUnits).Draw(t, label+"_unit")
	return &u
}

func genSigFigs(t *rapid.T, label string) *int {
	if !rapid.Bool().Draw(t, label+"_has_sf") {
		return nil
	}
	n := rapid.IntRange(1, 6).Draw(t, label+"_sf")
	return &n
}

// genSchemaDocument draws a valid document. Relations only refer to measures
// drawn before them, so the graph is acyclic; declaration order is shuffled
// afterwards so derived measures may appear before their operands.
func genSchemaDocument(t *rapid.T) models.SchemaDocument {
	measures := models.MeasureList{{
		Key:     "date",
		Kind:    models.KindDate,
		Summary: models.SummaryNone,
	}}

	var operands []string
	nRaw := rapid.IntRange(1, 5).Draw(t, "nRaw")
	for i := 0; i < nRaw; i++ {
		key := fmt.Sprintf("raw_%d", i)
		def := models.MeasureDefinition{
			Key:                key,
			DisplayName:        rapid.SampledFrom([]string{"", "Distance", "Time", "Calories"}).Draw(t, key+"_name"),
			Kind:               rapid.SampledFrom([]models.MeasureKind{models.KindFloat, models.KindInt, models.KindDuration}).Draw(t, key+"_kind"),
			Summary:            rapid.SampledFrom([]models.SummaryFunction{models.SummarySum, models.SummaryMin, models.SummaryMax, models.SummaryMean, models.SummaryNone}).Draw(t, key+"_summary"),
			IsMetadata:         rapid.Bool().Draw(t, key+"_meta"),
			SignificantFigures: genSigFigs(t, key),
			Unit:               genUnit(t, key),
			ShowUnit:           rapid.Bool().Draw(t, key+"_show"),
			Plottable:          i == 0 || rapid.Bool().Draw(t, key+"_plot"),
		}
		if def.Kind == models.KindDuration {
			def.ComparatorName = ComparatorDuration
		}
		measures = append(measures, def)
		operands = append(operands, key)
	}

	nDerived := rapid.IntRange(0, 5).Draw(t, "nDerived")
	for i := 0; i < nDerived; i++ {
		key := fmt.Sprintf("derived_%d", i)
		def := models.MeasureDefinition{
			Key:                key,
			Kind:               rapid.SampledFrom([]models.MeasureKind{models.KindFloat, models.KindInt}).Draw(t, key+"_kind"),
			Summary:            rapid.SampledFrom([]models.SummaryFunction{models.SummaryMax, models.SummaryMean, models.SummaryNone}).Draw(t, key+"_summary"),
			SignificantFigures: genSigFigs(t, key),
			ShowUnit:           true,
			Plottable:          true,
			Relation: &models.Relation{
				Operand0: rapid.SampledFrom(operands).Draw(t, key+"_m0"),
				Operand1: rapid.SampledFrom(operands).Draw(t, key+"_m1"),
				Operator: rapid.SampledFrom(OperatorNames()).Draw(t, key+"_op"),
			},
		}
		measures = append(measures, def)
		operands = append(operands, key)
	}

	prefs := models.DefaultPreferences()
	prefs.PersonalBests = models.PersonalBestPreferences{
		SessionsKey:     "raw_0",
		NumBestSessions: rapid.IntRange(1, 10).Draw(t, "num_best"),
	}
	prefs.Plot.DefaultMonths = rapid.IntRange(0, 24).Draw(t, "default_months")

	return models.SchemaDocument{
		Name:        rapid.StringMatching(`[a-z]{3,10}`).Draw(t, "name"),
		Measures:    rapid.Permutation(measures).Draw(t, "order"),
		Preferences: prefs,
	}
}

// =============================================================================
// Property 5: Schema Round Trip
// =============================================================================

// Feature: tracks, Property 5: Schema Round Trip
// *For any* valid schema document, loading it, marshalling the result and
// loading that again SHALL yield an equivalent schema: the same measures,
// the same evaluation order and the same preferences.
func TestProperty_SchemaRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		doc := genSchemaDocument(rt)
		src, err := yaml.Marshal(doc)
		if err != nil {
			rt.Fatalf("yaml.Marshal: %v", err)
		}

		first, err := LoadSchema(src, NewComparatorRegistry())
		if err != nil {
			rt.Fatalf("LoadSchema(generated): %v\n%s", err, src)
		}
		out, err := first.Marshal()
		if err != nil {
			rt.Fatalf("Marshal: %v", err)
		}
		second, err := LoadSchema(out, NewComparatorRegistry())
		if err != nil {
			rt.Fatalf("LoadSchema(marshalled): %v\n%s", err, out)
		}

		if !reflect.DeepEqual(first.Document(), second.Document()) {
			rt.Fatalf("documents differ:\nfirst:  %+v\nsecond: %+v", first.Document(), second.Document())
		}
		if !reflect.DeepEqual(first.DerivedKeys(), second.DerivedKeys()) {
			rt.Fatalf("evaluation order %v != %v", first.DerivedKeys(), second.DerivedKeys())
		}
		if len(first.Keys()) != len(doc.Measures) {
			rt.Fatalf("Keys() has %d entries, document has %d", len(first.Keys()), len(doc.Measures))
		}
	})
}

// =============================================================================
// Property 6: Division By Zero Is Rejected
// =============================================================================

// Feature: tracks, Property 6: Division By Zero Is Rejected
// *For any* distance, a session with a zero duration SHALL fail to resolve
// with DivideByZero, and the engine SHALL leave no trace of it.
func TestProperty_DivideByZeroRejected(t *testing.T) {
	s := mustLoadSchema(t, rideSchemaYAML)

	rapid.Check(t, func(rt *rapid.T) {
		distance := rapid.Float64Range(-1e6, 1e6).Draw(rt, "distance")
		raw := rideSession("zero", "2024-03-05", fmt.Sprint(distance), "0:00:00")

		rec, err := ParseSession(s, raw)
		if err != nil {
			rt.Fatalf("ParseSession: %v", err)
		}
		if _, err := Resolve(s, rec); !errors.Is(err, ErrDivideByZero) {
			rt.Fatalf("Resolve(distance=%v) err = %v, want DivideByZero", distance, err)
		}

		f := newEngineFixture(t, rideSchemaYAML)
		if _, err := f.engine.Ingest(context.Background(), raw); !errors.Is(err, ErrDivideByZero) {
			rt.Fatalf("Ingest err = %v, want DivideByZero", err)
		}
		if len(f.store.sessions) != 0 || len(f.engine.Months()) != 0 || len(f.engine.TopSessions()) != 0 {
			rt.Fatal("rejected session left a trace")
		}
	})
}
