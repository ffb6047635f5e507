package core

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// isoDateLayouts are tried before the day-first forms.
var isoDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// dateSeparators splits day-first dates such as "02 Mar 2024" or "2/3/24".
var dateSeparators = regexp.MustCompile(`[\s/.\-]+`)

// monthNames maps lower-case full and three-letter month names to months.
var monthNames = func() map[string]time.Month {
	m := make(map[string]time.Month, 24)
	for mon := time.January; mon <= time.December; mon++ {
		name := strings.ToLower(mon.String())
		m[name] = mon
		m[name[:3]] = mon
	}
	return m
}()

// ParseValue converts the text form of a value into a typed value of the
// given kind.
func ParseValue(kind models.MeasureKind, text string) (models.Value, error) {
	text = strings.TrimSpace(text)
	switch kind {
	case models.KindDate:
		t, err := ParseDate(text)
		if err != nil {
			return models.Value{}, err
		}
		return models.DateValue(t), nil
	case models.KindDuration:
		h, err := ParseDuration(text)
		if err != nil {
			return models.Value{}, err
		}
		return models.DurationValue(h), nil
	case models.KindFloat:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return models.Value{}, fmt.Errorf("%q is not a number", text)
		}
		return models.FloatValue(f), nil
	case models.KindInt:
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return models.Value{}, fmt.Errorf("%q is not an integer", text)
		}
		return models.IntValue(i), nil
	case models.KindString:
		return models.StringValue(text), nil
	}
	return models.Value{}, fmt.Errorf("unsupported measure kind %q", kind)
}

// ParseDate accepts ISO dates and timestamps (2024-03-05, RFC 3339) and
// day-first dates with numeric or named months (05/03/2024, 5 Mar 24,
// 05032024). Two-digit years are taken to be in the 21st century. Dates
// without a zone are in UTC.
func ParseDate(text string) (time.Time, error) {
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range isoDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, nil
		}
	}

	parts := dateSeparators.Split(text, -1)
	if len(parts) == 1 {
		switch len(text) {
		case 6, 8:
			parts = []string{text[:2], text[2:4], text[4:]}
		default:
			return time.Time{}, fmt.Errorf("cannot read %q as a date", text)
		}
	}
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("cannot read %q as a date", text)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot read %q as a date: bad day", text)
	}
	month, ok := monthNames[strings.ToLower(parts[1])]
	if !ok {
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 || n > 12 {
			return time.Time{}, fmt.Errorf("cannot read %q as a date: bad month", text)
		}
		month = time.Month(n)
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot read %q as a date: bad year", text)
	}
	switch len(parts[2]) {
	case 2:
		year += 2000
	case 4:
	default:
		return time.Time{}, fmt.Errorf("cannot read %q as a date: year must have 2 or 4 digits", text)
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, fmt.Errorf("%q is not a valid calendar date", text)
	}
	return t, nil
}

// ParseDuration returns the number of hours in a duration written as
// [hh:]mm[:ss] or as decimal hours ("1.5", "1.5h"). A bare integer is a
// number of minutes and mm:ss may carry minutes over 59 into hours.
func ParseDuration(text string) (float64, error) {
	if text == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if !strings.Contains(text, ":") {
		if strings.HasSuffix(text, "h") || strings.Contains(text, ".") {
			h, err := strconv.ParseFloat(strings.TrimSuffix(text, "h"), 64)
			if err != nil || h < 0 || math.IsNaN(h) || math.IsInf(h, 0) {
				return 0, fmt.Errorf("%q is not a duration in hours", text)
			}
			return h, nil
		}
	}

	parts := strings.Split(text, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%q is not a time in [hh:]mm[:ss] format", text)
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		if p == "" || strings.TrimLeft(p, "0123456789") != "" {
			return 0, fmt.Errorf("%q is not a time in [hh:]mm[:ss] format", text)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%q is not a time in [hh:]mm[:ss] format", text)
		}
		nums[i] = n
	}

	var hours, mins, secs int
	switch len(nums) {
	case 1:
		mins = nums[0]
	case 2:
		mins, secs = nums[0], nums[1]
	case 3:
		hours, mins, secs = nums[0], nums[1], nums[2]
	}
	return float64(hours) + float64(mins)/60 + float64(secs)/3600, nil
}
