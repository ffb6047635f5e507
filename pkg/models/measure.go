package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MeasureKind is the data type of a measure. It determines how raw values
// are parsed and which comparators may order them.
type MeasureKind string

const (
	KindDate     MeasureKind = "date"
	KindDuration MeasureKind = "duration"
	KindFloat    MeasureKind = "float"
	KindInt      MeasureKind = "int"
	KindString   MeasureKind = "string"
)

// Valid reports whether k is one of the known measure kinds.
func (k MeasureKind) Valid() bool {
	switch k {
	case KindDate, KindDuration, KindFloat, KindInt, KindString:
		return true
	}
	return false
}

// IsNumeric reports whether values of this kind take part in arithmetic
// (relations, sum and mean summaries).
func (k MeasureKind) IsNumeric() bool {
	return k == KindFloat || k == KindInt || k == KindDuration
}

// SummaryFunction is the rule used to summarise a measure across a group of
// sessions.
type SummaryFunction string

const (
	SummarySum  SummaryFunction = "sum"
	SummaryMin  SummaryFunction = "min"
	SummaryMax  SummaryFunction = "max"
	SummaryMean SummaryFunction = "mean"
	SummaryNone SummaryFunction = "none"
)

// Valid reports whether s is one of the known summary functions.
func (s SummaryFunction) Valid() bool {
	switch s {
	case SummarySum, SummaryMin, SummaryMax, SummaryMean, SummaryNone:
		return true
	}
	return false
}

// Relation describes a derived measure as a binary operation over two other
// measures of the same schema.
type Relation struct {
	Operand0   string `yaml:"operand0_key" json:"operand0_key"`
	Operand1   string `yaml:"operand1_key" json:"operand1_key"`
	Operator   string `yaml:"operator" json:"operator"`
	ResultName string `yaml:"result_name,omitempty" json:"result_name,omitempty"`
}

// MeasureDefinition is one entry of an activity schema.
type MeasureDefinition struct {
	Key                string          `yaml:"-" json:"key"`
	DisplayName        string          `yaml:"display_name" json:"display_name"`
	Kind               MeasureKind     `yaml:"kind" json:"kind"`
	Summary            SummaryFunction `yaml:"summary" json:"summary"`
	IsMetadata         bool            `yaml:"is_metadata" json:"is_metadata"`
	SignificantFigures *int            `yaml:"significant_figures,omitempty" json:"significant_figures,omitempty"`
	Unit               *string         `yaml:"unit,omitempty" json:"unit,omitempty"`
	ShowUnit           bool            `yaml:"show_unit" json:"show_unit"`
	Plottable          bool            `yaml:"plottable" json:"plottable"`
	ComparatorName     string          `yaml:"comparator_name,omitempty" json:"comparator_name,omitempty"`
	Relation           *Relation       `yaml:"relation,omitempty" json:"relation,omitempty"`
}

// IsDerived reports whether the measure is computed from a relation rather
// than supplied in session data.
func (m MeasureDefinition) IsDerived() bool {
	return m.Relation != nil
}

// UnitString returns the unit, or "" when none is set.
func (m MeasureDefinition) UnitString() string {
	if m.Unit == nil {
		return ""
	}
	return *m.Unit
}

// FullName returns the display name with the unit appended in brackets
// when the unit should be shown, e.g. "Distance (km)".
func (m MeasureDefinition) FullName() string {
	name := m.DisplayName
	if name == "" {
		name = m.Key
	}
	if m.ShowUnit && m.UnitString() != "" {
		return fmt.Sprintf("%s (%s)", name, m.UnitString())
	}
	return name
}

// measureSource is the on-disk shape of a measure. It accepts the field
// names used by older activity files (name, dtype, sig_figs, cmp_func) next
// to the current ones.
type measureSource struct {
	Key                string          `yaml:"key"`
	DisplayName        string          `yaml:"display_name"`
	Name               string          `yaml:"name"`
	Kind               MeasureKind     `yaml:"kind"`
	DType              MeasureKind     `yaml:"dtype"`
	Summary            SummaryFunction `yaml:"summary"`
	IsMetadata         bool            `yaml:"is_metadata"`
	SignificantFigures *int            `yaml:"significant_figures"`
	SigFigs            *int            `yaml:"sig_figs"`
	Unit               *string         `yaml:"unit"`
	ShowUnit           *bool           `yaml:"show_unit"`
	Plottable          *bool           `yaml:"plottable"`
	ComparatorName     string          `yaml:"comparator_name"`
	CmpFunc            string          `yaml:"cmp_func"`
	Relation           *relationSource `yaml:"relation"`
}

type relationSource struct {
	Operand0   string `yaml:"operand0_key"`
	Operand1   string `yaml:"operand1_key"`
	M0         string `yaml:"m0"`
	M1         string `yaml:"m1"`
	Operator   string `yaml:"operator"`
	Op         string `yaml:"op"`
	ResultName string `yaml:"result_name"`
	Name       string `yaml:"name"`
}

// UnmarshalYAML decodes a measure, applying defaults (show_unit and
// plottable default to true, a missing summary means none).
func (m *MeasureDefinition) UnmarshalYAML(node *yaml.Node) error {
	var src measureSource
	if err := node.Decode(&src); err != nil {
		return err
	}

	*m = MeasureDefinition{
		Key:                src.Key,
		DisplayName:        firstNonEmpty(src.DisplayName, src.Name),
		Kind:               MeasureKind(firstNonEmpty(string(src.Kind), string(src.DType))),
		Summary:            src.Summary,
		IsMetadata:         src.IsMetadata,
		SignificantFigures: src.SignificantFigures,
		Unit:               src.Unit,
		ShowUnit:           true,
		Plottable:          true,
		ComparatorName:     firstNonEmpty(src.ComparatorName, src.CmpFunc),
	}
	if m.SignificantFigures == nil {
		m.SignificantFigures = src.SigFigs
	}
	if m.Summary == "" {
		m.Summary = SummaryNone
	}
	if src.ShowUnit != nil {
		m.ShowUnit = *src.ShowUnit
	}
	if src.Plottable != nil {
		m.Plottable = *src.Plottable
	}
	if r := src.Relation; r != nil {
		m.Relation = &Relation{
			Operand0:   firstNonEmpty(r.Operand0, r.M0),
			Operand1:   firstNonEmpty(r.Operand1, r.M1),
			Operator:   firstNonEmpty(r.Operator, r.Op),
			ResultName: firstNonEmpty(r.ResultName, r.Name),
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// MeasureList is an ordered collection of measure definitions. In documents
// it is written as a mapping of key to definition; declaration order is kept.
type MeasureList []MeasureDefinition

// UnmarshalYAML accepts either a mapping (key -> definition) or a sequence of
// definitions carrying a key field.
func (l *MeasureList) UnmarshalYAML(node *yaml.Node) error {
	var out MeasureList
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			var def MeasureDefinition
			if err := valNode.Decode(&def); err != nil {
				return fmt.Errorf("measure %q: %w", keyNode.Value, err)
			}
			def.Key = keyNode.Value
			out = append(out, def)
		}
	case yaml.SequenceNode:
		for i, item := range node.Content {
			var def MeasureDefinition
			if err := item.Decode(&def); err != nil {
				return fmt.Errorf("measure #%d: %w", i, err)
			}
			out = append(out, def)
		}
	default:
		return fmt.Errorf("line %d: measures must be a mapping or a sequence", node.Line)
	}
	*l = out
	return nil
}

// MarshalYAML writes the list as an ordered mapping.
func (l MeasureList) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, def := range l {
		var val yaml.Node
		if err := val.Encode(def); err != nil {
			return nil, fmt.Errorf("encoding measure %q: %w", def.Key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: def.Key},
			&val,
		)
	}
	return node, nil
}

// MarshalJSON writes the list as a JSON object whose member order matches
// declaration order.
func (l MeasureList) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, def := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(def.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(def)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Find returns the definition with the given key.
func (l MeasureList) Find(key string) (MeasureDefinition, bool) {
	for _, def := range l {
		if def.Key == key {
			return def, true
		}
	}
	return MeasureDefinition{}, false
}

// PlotPreferences holds the settings the plotting surface starts with.
type PlotPreferences struct {
	CurrentSeries string `yaml:"current_series" json:"current_series" mapstructure:"current_series"`
	Style         string `yaml:"style" json:"style" mapstructure:"style"`
	DefaultMonths int    `yaml:"default_months" json:"default_months" mapstructure:"default_months"`
}

// PersonalBestPreferences selects the ranking measure and how many sessions
// are kept in the ranking.
type PersonalBestPreferences struct {
	SessionsKey     string `yaml:"sessions_key" json:"sessions_key" mapstructure:"sessions_key"`
	NumBestSessions int    `yaml:"num_best_sessions" json:"num_best_sessions" mapstructure:"num_best_sessions"`
}

// Preferences are the per-activity settings stored with the schema.
type Preferences struct {
	Plot          PlotPreferences         `yaml:"plot" json:"plot" mapstructure:"plot"`
	PersonalBests PersonalBestPreferences `yaml:"personal_bests" json:"personal_bests" mapstructure:"personal_bests"`
}

// DefaultPreferences returns the preferences used for fields a schema
// document leaves out. An empty current series lets the plotting surface
// pick the first plottable measure.
func DefaultPreferences() Preferences {
	return Preferences{
		Plot: PlotPreferences{
			CurrentSeries: "",
			Style:         "dark",
			DefaultMonths: 0,
		},
		PersonalBests: PersonalBestPreferences{
			SessionsKey:     "speed",
			NumBestSessions: 5,
		},
	}
}

// SchemaDocument is the persisted, declarative description of one activity.
type SchemaDocument struct {
	Name        string      `yaml:"name" json:"name"`
	Measures    MeasureList `yaml:"measures" json:"measures"`
	Preferences Preferences `yaml:"preferences" json:"preferences"`
}
