package core

import (
	"fmt"
	"math"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// ParseSession converts the text fields of a raw session into typed values.
// Fields naming relation measures are dropped since they are always
// recomputed; blank fields count as absent.
func ParseSession(s *Schema, raw models.RawSession) (models.SessionRecord, error) {
	rec := models.SessionRecord{
		ID:         raw.ID,
		RecordedAt: raw.RecordedAt,
		Values:     make(map[string]models.Value, len(s.raw)),
	}
	for key, text := range raw.Fields {
		def, ok := s.Measure(key)
		if !ok {
			return models.SessionRecord{}, &EvalError{Kind: UnknownMeasure, Measure: key}
		}
		if def.IsDerived() || text == "" {
			continue
		}
		v, err := ParseValue(def.Kind, text)
		if err != nil {
			return models.SessionRecord{}, &EvalError{Kind: InvalidValue, Measure: key, Err: err}
		}
		rec.Values[key] = v
	}
	return rec, nil
}

// Resolve computes every relation measure of rec in evaluation order. The
// record must hold a value of the right kind for each raw measure. On error
// nothing is returned; a record is never partially resolved.
func Resolve(s *Schema, rec models.SessionRecord) (models.ResolvedSession, error) {
	values := make(map[string]models.Value, len(s.keys))
	for key, v := range rec.Values {
		def, ok := s.Measure(key)
		if !ok {
			return models.ResolvedSession{}, &EvalError{Kind: UnknownMeasure, Measure: key}
		}
		if def.IsDerived() {
			return models.ResolvedSession{}, &EvalError{
				Kind:    InvalidValue,
				Measure: key,
				Detail:  "relation measures are computed, not supplied",
			}
		}
		if v.Kind != def.Kind {
			return models.ResolvedSession{}, &EvalError{
				Kind:    InvalidValue,
				Measure: key,
				Detail:  fmt.Sprintf("expected %s value, got %s", def.Kind, v.Kind),
			}
		}
		values[key] = v
	}
	for _, key := range s.raw {
		if _, ok := values[key]; !ok {
			return models.ResolvedSession{}, &EvalError{Kind: MissingOperand, Measure: key}
		}
	}

	for _, key := range s.derived {
		def := s.measures[key]
		v, err := s.apply(key, def, values)
		if err != nil {
			return models.ResolvedSession{}, err
		}
		values[key] = v
	}

	return models.ResolvedSession{
		ID:         rec.ID,
		RecordedAt: rec.RecordedAt,
		Values:     values,
	}, nil
}

func (s *Schema) apply(key string, def models.MeasureDefinition, values map[string]models.Value) (models.Value, error) {
	rel := def.Relation
	op, ok := LookupOperator(rel.Operator)
	if !ok {
		panic(fmt.Sprintf("core: operator %q of %q vanished after validation", rel.Operator, key))
	}

	var args [2]float64
	for i, operand := range []string{rel.Operand0, rel.Operand1} {
		v, ok := values[operand]
		if !ok {
			return models.Value{}, &EvalError{Kind: MissingOperand, Measure: key, Detail: fmt.Sprintf("operand %q", operand)}
		}
		f, ok := s.Comparator(operand).Numeric(v)
		if !ok {
			return models.Value{}, &EvalError{
				Kind:    InvalidValue,
				Measure: key,
				Detail:  fmt.Sprintf("operand %q has no numeric value", operand),
			}
		}
		args[i] = f
	}

	result, err := op.Apply(args[0], args[1])
	if err != nil {
		return models.Value{}, &EvalError{
			Kind:    DivideByZero,
			Measure: key,
			Detail:  fmt.Sprintf("%s is zero", rel.Operand1),
		}
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return models.Value{}, &EvalError{Kind: InvalidValue, Measure: key, Detail: "result is not a finite number"}
	}

	if def.Kind == models.KindInt {
		return models.IntValue(int64(math.Round(result))), nil
	}
	return models.FloatValue(result), nil
}
