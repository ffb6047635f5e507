package models

import "time"

// RawSession is a session as it arrives from an import or entry surface:
// one text field per raw measure. It is also the form kept in the session log.
type RawSession struct {
	ID         string            `json:"id" yaml:"id"`
	RecordedAt time.Time         `json:"recorded_at" yaml:"recorded_at"`
	Fields     map[string]string `json:"fields" yaml:"fields"`
}

// SessionRecord holds typed values for the raw measures of a schema. Derived
// measures are absent until the record is resolved.
type SessionRecord struct {
	ID         string
	RecordedAt time.Time
	Values     map[string]Value
}

// ResolvedSession carries a value for every measure of its schema. It is
// shared between the session log, the month buckets and the personal bests
// ranking and must not be modified once resolved.
type ResolvedSession struct {
	ID         string           `json:"id"`
	RecordedAt time.Time        `json:"recorded_at"`
	Values     map[string]Value `json:"values"`
}

// Value returns the value of the given measure.
func (s ResolvedSession) Value(key string) (Value, bool) {
	v, ok := s.Values[key]
	return v, ok
}
