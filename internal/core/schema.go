package core

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/valter-silva-au/tracks/pkg/models"
)

var measureKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Schema is a validated activity description. It is immutable: every method
// is safe for concurrent use and a changed schema is a new value.
type Schema struct {
	name        string
	measures    map[string]models.MeasureDefinition
	keys        []string
	raw         []string
	derived     []string
	comparators map[string]Comparator
	prefs       models.Preferences
	dateKey     string
	registry    *ComparatorRegistry
}

// LoadSchema parses and validates a schema document. A nil registry means
// DefaultRegistry. The registry is frozen before validation.
func LoadSchema(src []byte, reg *ComparatorRegistry) (*Schema, error) {
	doc := models.SchemaDocument{Preferences: models.DefaultPreferences()}
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, &SchemaError{Kind: InvalidDefinition, Detail: "parsing document", Err: err}
	}
	return NewSchema(doc, reg)
}

// LoadSchemaFile reads a schema document from path and validates it.
func LoadSchemaFile(path string, reg *ComparatorRegistry) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}
	s, err := LoadSchema(data, reg)
	if err != nil {
		return nil, fmt.Errorf("loading schema %s: %w", path, err)
	}
	return s, nil
}

// NewSchema validates an already decoded document.
func NewSchema(doc models.SchemaDocument, reg *ComparatorRegistry) (*Schema, error) {
	if reg == nil {
		reg = DefaultRegistry()
	}
	reg.Freeze()

	if doc.Name == "" {
		return nil, &SchemaError{Kind: InvalidDefinition, Detail: "schema name is required"}
	}
	if len(doc.Measures) == 0 {
		return nil, &SchemaError{Kind: InvalidDefinition, Detail: "schema has no measures"}
	}

	s := &Schema{
		name:        doc.Name,
		measures:    make(map[string]models.MeasureDefinition, len(doc.Measures)),
		comparators: make(map[string]Comparator, len(doc.Measures)),
		registry:    reg,
	}

	for _, def := range doc.Measures {
		if err := checkDefinition(def); err != nil {
			return nil, err
		}
		if _, dup := s.measures[def.Key]; dup {
			return nil, &SchemaError{Kind: InvalidDefinition, Measure: def.Key, Detail: "duplicate key"}
		}
		if def.Relation != nil {
			rel := *def.Relation
			def.Relation = &rel
		}
		s.measures[def.Key] = def
		s.keys = append(s.keys, def.Key)
		if def.IsDerived() {
			s.derived = append(s.derived, def.Key)
		} else {
			s.raw = append(s.raw, def.Key)
		}
	}

	edges := make(map[string][]string, len(s.derived))
	for _, key := range s.derived {
		rel := s.measures[key].Relation
		for _, operand := range []string{rel.Operand0, rel.Operand1} {
			if _, ok := s.measures[operand]; !ok {
				return nil, &SchemaError{
					Kind:    UnknownOperand,
					Measure: key,
					Detail:  fmt.Sprintf("relation refers to %q", operand),
				}
			}
		}
		edges[key] = []string{rel.Operand0, rel.Operand1}
	}

	order, err := evaluationOrder(s.derived, edges)
	if err != nil {
		return nil, err
	}
	s.derived = order

	for _, key := range s.derived {
		if err := s.checkRelation(key); err != nil {
			return nil, err
		}
	}

	for _, key := range s.keys {
		def := s.measures[key]
		c, err := reg.Resolve(def.ComparatorName, def.Kind)
		if err != nil {
			return nil, &SchemaError{Kind: InvalidComparator, Measure: key, Err: err}
		}
		s.comparators[key] = c
		if def.Kind == models.KindDate && s.dateKey == "" {
			s.dateKey = key
		}
	}
	if s.dateKey == "" {
		return nil, &SchemaError{Kind: InvalidDefinition, Detail: "schema needs a date measure to place sessions in months"}
	}
	for _, key := range s.derived {
		if err := s.checkOperandComparators(key); err != nil {
			return nil, err
		}
	}

	if err := s.checkPreferences(doc.Preferences); err != nil {
		return nil, err
	}
	s.prefs = doc.Preferences
	return s, nil
}

func checkDefinition(def models.MeasureDefinition) error {
	invalid := func(format string, args ...any) error {
		return &SchemaError{Kind: InvalidDefinition, Measure: def.Key, Detail: fmt.Sprintf(format, args...)}
	}
	if !measureKeyPattern.MatchString(def.Key) {
		return invalid("key must match %s", measureKeyPattern)
	}
	if !def.Kind.Valid() {
		return invalid("unknown kind %q", def.Kind)
	}
	if !def.Summary.Valid() {
		return invalid("unknown summary %q", def.Summary)
	}
	if (def.Summary == models.SummarySum || def.Summary == models.SummaryMean) && !def.Kind.IsNumeric() {
		return invalid("%s cannot be applied to %s values", def.Summary, def.Kind)
	}
	if def.SignificantFigures != nil && *def.SignificantFigures < 1 {
		return invalid("significant_figures must be at least 1, got %d", *def.SignificantFigures)
	}
	if def.Relation != nil {
		if _, ok := LookupOperator(def.Relation.Operator); !ok {
			return invalid("unknown operator %q", def.Relation.Operator)
		}
		if def.Kind != models.KindFloat && def.Kind != models.KindInt {
			return invalid("relation results must be float or int, not %s", def.Kind)
		}
	}
	return nil
}

// checkRelation runs once the evaluation order is known, so operand units
// inferred for derived operands are already in place.
func (s *Schema) checkRelation(key string) error {
	def := s.measures[key]
	rel := def.Relation
	op, _ := LookupOperator(rel.Operator)

	var units [2]*string
	for i, operand := range []string{rel.Operand0, rel.Operand1} {
		od := s.measures[operand]
		if !od.Kind.IsNumeric() {
			return &SchemaError{
				Kind:    InvalidDefinition,
				Measure: key,
				Detail:  fmt.Sprintf("operand %q is %s and has no arithmetic value", operand, od.Kind),
			}
		}
		units[i] = od.Unit
	}

	if def.Unit == nil && units[0] != nil && units[1] != nil {
		unit := *units[0] + op.Symbol + *units[1]
		def.Unit = &unit
		s.measures[key] = def
	}
	return nil
}

// checkOperandComparators makes sure every operand of a relation can be
// converted to a number by its comparator.
func (s *Schema) checkOperandComparators(key string) error {
	rel := s.measures[key].Relation
	for _, operand := range []string{rel.Operand0, rel.Operand1} {
		c := s.comparators[operand]
		if !c.HasNumeric() {
			return &SchemaError{
				Kind:    InvalidComparator,
				Measure: key,
				Err: &ComparatorError{
					Kind:   NotNumeric,
					Name:   c.Name(),
					Detail: fmt.Sprintf("operand %q has no numeric conversion", operand),
				},
			}
		}
	}
	return nil
}

func (s *Schema) checkPreferences(p models.Preferences) error {
	invalid := func(format string, args ...any) error {
		return &SchemaError{Kind: InvalidPreference, Detail: fmt.Sprintf(format, args...)}
	}

	pb := p.PersonalBests
	def, ok := s.measures[pb.SessionsKey]
	if !ok {
		return invalid("personal_bests.sessions_key %q is not a measure", pb.SessionsKey)
	}
	if !def.Plottable {
		return invalid("personal_bests.sessions_key %q is not plottable", pb.SessionsKey)
	}
	if pb.NumBestSessions < 1 {
		return invalid("personal_bests.num_best_sessions must be at least 1, got %d", pb.NumBestSessions)
	}

	if series := p.Plot.CurrentSeries; series != "" {
		def, ok := s.measures[series]
		if !ok {
			return invalid("plot.current_series %q is not a measure", series)
		}
		if !def.Plottable {
			return invalid("plot.current_series %q is not plottable", series)
		}
	}
	if p.Plot.DefaultMonths < 0 {
		return invalid("plot.default_months must not be negative, got %d", p.Plot.DefaultMonths)
	}
	return nil
}

// Name returns the activity name, e.g. "cycling".
func (s *Schema) Name() string { return s.name }

// Keys returns every measure key in declaration order.
func (s *Schema) Keys() []string { return append([]string(nil), s.keys...) }

// RawKeys returns the keys supplied by session data, in declaration order.
func (s *Schema) RawKeys() []string { return append([]string(nil), s.raw...) }

// DerivedKeys returns the relation measures in evaluation order.
func (s *Schema) DerivedKeys() []string { return append([]string(nil), s.derived...) }

// Measure returns the definition of key.
func (s *Schema) Measure(key string) (models.MeasureDefinition, bool) {
	def, ok := s.measures[key]
	return def, ok
}

// Preferences returns the validated preferences.
func (s *Schema) Preferences() models.Preferences { return s.prefs }

// DateKey returns the measure that places a session in time.
func (s *Schema) DateKey() string { return s.dateKey }

// Registry returns the comparator registry the schema was validated against.
func (s *Schema) Registry() *ComparatorRegistry { return s.registry }

// Comparator returns the ordering of key. Every measure of a validated
// schema has one, so an unknown key is a programming error.
func (s *Schema) Comparator(key string) Comparator {
	c, ok := s.comparators[key]
	if !ok {
		panic(fmt.Sprintf("core: schema %q has no comparator for measure %q", s.name, key))
	}
	return c
}

// Document returns the schema in its persisted shape. Raw measures come first
// in declaration order, followed by relation measures in evaluation order;
// loading the document again yields the same schema.
func (s *Schema) Document() models.SchemaDocument {
	measures := make(models.MeasureList, 0, len(s.keys))
	for _, key := range s.raw {
		measures = append(measures, s.measures[key])
	}
	for _, key := range s.derived {
		measures = append(measures, s.measures[key])
	}
	return models.SchemaDocument{
		Name:        s.name,
		Measures:    measures,
		Preferences: s.prefs,
	}
}

// Marshal encodes Document as YAML.
func (s *Schema) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(s.Document())
	if err != nil {
		return nil, fmt.Errorf("encoding schema %q: %w", s.name, err)
	}
	return data, nil
}

// WithPreferences returns a copy of the schema using p, validated against
// the same measures.
func (s *Schema) WithPreferences(p models.Preferences) (*Schema, error) {
	if err := s.checkPreferences(p); err != nil {
		return nil, err
	}
	cp := *s
	cp.prefs = p
	return &cp, nil
}
