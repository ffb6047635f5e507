package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// MonthKey identifies a calendar month bucket.
type MonthKey struct {
	Year  int
	Month time.Month
}

// MonthKeyOf returns the month t falls in when read in loc. A nil loc means
// UTC. Date-only values, which ParseDate leaves at UTC midnight, are calendar
// dates and keep their month whatever loc is.
func MonthKeyOf(t time.Time, loc *time.Location) MonthKey {
	if loc == nil {
		loc = time.UTC
	}
	if !isDateOnly(t) {
		t = t.In(loc)
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

func isDateOnly(t time.Time) bool {
	if t.Location() != time.UTC {
		return false
	}
	h, m, sec := t.Clock()
	return h == 0 && m == 0 && sec == 0 && t.Nanosecond() == 0
}

// ParseMonthKey parses "2006-01".
func ParseMonthKey(s string) (MonthKey, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return MonthKey{}, fmt.Errorf("parsing month %q: want YYYY-MM", s)
	}
	return MonthKey{Year: t.Year(), Month: t.Month()}, nil
}

func (k MonthKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Before reports whether k is an earlier month than o.
func (k MonthKey) Before(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

func (k MonthKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *MonthKey) UnmarshalText(text []byte) error {
	parsed, err := ParseMonthKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MonthSummary is the summary of one month bucket. Values holds one entry
// for every measure whose summary is not none, metadata included.
type MonthSummary struct {
	Month    MonthKey                `json:"month"`
	Sessions int                     `json:"sessions"`
	Values   map[string]models.Value `json:"values"`

	plotted map[string]bool
}

// Plotted returns the values meant for plotting, leaving out metadata and
// measures that are not plottable.
func (m MonthSummary) Plotted() map[string]models.Value {
	out := make(map[string]models.Value, len(m.Values))
	for key, v := range m.Values {
		if m.plotted[key] {
			out[key] = v
		}
	}
	return out
}

type accumulator struct {
	count    int
	sum      float64
	intSum   int64
	min, max models.Value
}

func (a *accumulator) add(v models.Value, c Comparator) {
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		if c.Compare(v, a.min) == Less {
			a.min = v
		}
		if c.Compare(v, a.max) == Greater {
			a.max = v
		}
	}
	a.count++
	if f, ok := c.Numeric(v); ok {
		a.sum += f
	}
	if v.Kind == models.KindInt {
		a.intSum += v.Int
	}
}

func (a *accumulator) result(def models.MeasureDefinition) models.Value {
	switch def.Summary {
	case models.SummaryMin:
		return a.min
	case models.SummaryMax:
		return a.max
	case models.SummarySum:
		switch def.Kind {
		case models.KindDuration:
			return models.DurationValue(a.sum)
		case models.KindInt:
			return models.IntValue(a.intSum)
		}
		return models.FloatValue(a.sum)
	case models.SummaryMean:
		mean := a.sum / float64(a.count)
		if def.Kind == models.KindDuration {
			return models.DurationValue(mean)
		}
		return models.FloatValue(mean)
	}
	panic(fmt.Sprintf("core: no accumulator result for summary %q", def.Summary))
}

type monthBucket struct {
	sessions int
	acc      map[string]*accumulator
}

// MonthlyAggregator keeps running summaries of resolved sessions per
// calendar month. Add is O(1) per summarised measure. Reads and writes may
// run concurrently; a reader never sees half of an Add.
type MonthlyAggregator struct {
	schema *Schema
	loc    *time.Location
	keys   []string

	mu      sync.RWMutex
	buckets map[MonthKey]*monthBucket
}

// NewMonthlyAggregator returns an empty aggregator bucketing session dates in
// loc (UTC when nil).
func NewMonthlyAggregator(s *Schema, loc *time.Location) *MonthlyAggregator {
	if loc == nil {
		loc = time.UTC
	}
	var keys []string
	for _, key := range s.Keys() {
		def, _ := s.Measure(key)
		if def.Summary != models.SummaryNone {
			keys = append(keys, key)
		}
	}
	return &MonthlyAggregator{
		schema:  s,
		loc:     loc,
		keys:    keys,
		buckets: make(map[MonthKey]*monthBucket),
	}
}

// Add folds a resolved session into its month bucket, creating the bucket
// on first use. Callers deduplicate; the same session added twice counts
// twice.
func (a *MonthlyAggregator) Add(rs models.ResolvedSession) {
	date, ok := rs.Values[a.schema.DateKey()]
	if !ok {
		panic(fmt.Sprintf("core: resolved session %q has no %q value", rs.ID, a.schema.DateKey()))
	}
	month := MonthKeyOf(date.Time, a.loc)

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[month]
	if !ok {
		b = &monthBucket{acc: make(map[string]*accumulator, len(a.keys))}
		for _, key := range a.keys {
			b.acc[key] = &accumulator{}
		}
		a.buckets[month] = b
	}
	b.sessions++
	for _, key := range a.keys {
		if v, ok := rs.Values[key]; ok {
			b.acc[key].add(v, a.schema.Comparator(key))
		}
	}
}

// SummaryFor returns the summary of month. The boolean is false when no
// session was recorded in that month; no zero-filled summary is returned.
func (a *MonthlyAggregator) SummaryFor(month MonthKey) (MonthSummary, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	b, ok := a.buckets[month]
	if !ok || b.sessions == 0 {
		return MonthSummary{}, false
	}

	sum := MonthSummary{
		Month:    month,
		Sessions: b.sessions,
		Values:   make(map[string]models.Value, len(a.keys)),
		plotted:  make(map[string]bool, len(a.keys)),
	}
	for _, key := range a.keys {
		acc := b.acc[key]
		if acc.count == 0 {
			continue
		}
		def, _ := a.schema.Measure(key)
		sum.Values[key] = acc.result(def)
		sum.plotted[key] = def.Plottable && !def.IsMetadata
	}
	return sum, true
}

// Months returns the months holding at least one session, oldest first.
func (a *MonthlyAggregator) Months() []MonthKey {
	a.mu.RLock()
	defer a.mu.RUnlock()

	months := make([]MonthKey, 0, len(a.buckets))
	for k := range a.buckets {
		months = append(months, k)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })
	return months
}

// BestMonth returns the month with the greatest summary of key, by the
// measure's comparator. Ties go to the earlier month. It reports false when
// key is not summarised or there is no data.
func (a *MonthlyAggregator) BestMonth(key string) (MonthKey, models.Value, bool) {
	def, ok := a.schema.Measure(key)
	if !ok || def.Summary == models.SummaryNone {
		return MonthKey{}, models.Value{}, false
	}
	c := a.schema.Comparator(key)

	var (
		best    MonthKey
		bestVal models.Value
		found   bool
	)
	for _, month := range a.Months() {
		summary, ok := a.SummaryFor(month)
		if !ok {
			continue
		}
		v, ok := summary.Values[key]
		if !ok {
			continue
		}
		if !found || c.Compare(v, bestVal) == Greater {
			best, bestVal, found = month, v, true
		}
	}
	return best, bestVal, found
}
