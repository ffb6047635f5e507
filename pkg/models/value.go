package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Value is a typed measure value. Only the field matching Kind is meaningful;
// durations are held as a number of hours.
type Value struct {
	Kind  MeasureKind
	Time  time.Time
	Hours float64
	Float float64
	Int   int64
	Str   string
}

// DateValue returns a date-kind value.
func DateValue(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// DurationValue returns a duration-kind value of the given number of hours.
func DurationValue(hours float64) Value { return Value{Kind: KindDuration, Hours: hours} }

// FloatValue returns a float-kind value.
func FloatValue(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// IntValue returns an int-kind value.
func IntValue(i int64) Value { return Value{Kind: KindInt, Int: i} }

// StringValue returns a string-kind value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// Numeric returns the value as a float64 for arithmetic. Durations convert
// to hours. Dates and strings are not numeric.
func (v Value) Numeric() (float64, bool) {
	switch v.Kind {
	case KindFloat:
		return v.Float, true
	case KindInt:
		return float64(v.Int), true
	case KindDuration:
		return v.Hours, true
	}
	return 0, false
}

// String returns the canonical text form of the value, which parses back to
// an equal value.
func (v Value) String() string {
	switch v.Kind {
	case KindDate:
		if v.Time.Hour() == 0 && v.Time.Minute() == 0 && v.Time.Second() == 0 && v.Time.Nanosecond() == 0 {
			return v.Time.Format("2006-01-02")
		}
		return v.Time.Format(time.RFC3339)
	case KindDuration:
		return FormatHours(v.Hours)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'f', -1, 64)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindString:
		return v.Str
	}
	return ""
}

// MarshalJSON writes numbers for float and int values and the canonical text
// for the other kinds.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindFloat:
		if math.IsInf(v.Float, 0) || math.IsNaN(v.Float) {
			return json.Marshal(v.String())
		}
		return json.Marshal(v.Float)
	case KindInt:
		return json.Marshal(v.Int)
	}
	return json.Marshal(v.String())
}

// FormatHours renders a number of hours as HH:MM:SS, rounded to the nearest
// second. Hours are not wrapped at 24.
func FormatHours(hours float64) string {
	sign := ""
	if hours < 0 {
		sign = "-"
		hours = -hours
	}
	total := int64(math.Round(hours * 3600))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, h, m, s)
}
