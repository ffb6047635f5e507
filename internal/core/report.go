package core

import (
	"github.com/valter-silva-au/tracks/pkg/models"
)

// ReportValue is one measure of a report, with its display text.
type ReportValue struct {
	Key      string       `json:"key"`
	Name     string       `json:"name"`
	Value    models.Value `json:"value"`
	Display  string       `json:"display"`
	Metadata bool         `json:"metadata,omitempty"`
}

// MonthReport is a month summary laid out in schema order for display.
type MonthReport struct {
	Month    MonthKey      `json:"month"`
	Sessions int           `json:"sessions"`
	Values   []ReportValue `json:"values"`
}

// BestEntry is one row of the personal bests table.
type BestEntry struct {
	Rank      string       `json:"rank"`
	SessionID string       `json:"session_id"`
	Date      string       `json:"date"`
	Value     models.Value `json:"value"`
	Display   string       `json:"display"`
}

// BestsReport is the personal bests ranking laid out for display.
type BestsReport struct {
	Key     string      `json:"key"`
	Name    string      `json:"name"`
	Size    int         `json:"size"`
	Entries []BestEntry `json:"entries"`
}

// MonthReport returns the summary of month in schema order, or false when
// no session falls in it.
func (e *Engine) MonthReport(month MonthKey) (MonthReport, bool) {
	e.mu.RLock()
	schema, monthly := e.schema, e.monthly
	e.mu.RUnlock()

	sum, ok := monthly.SummaryFor(month)
	if !ok {
		return MonthReport{}, false
	}
	report := MonthReport{Month: month, Sessions: sum.Sessions}
	for _, key := range schema.Keys() {
		v, ok := sum.Values[key]
		if !ok {
			continue
		}
		def, _ := schema.Measure(key)
		report.Values = append(report.Values, ReportValue{
			Key:      key,
			Name:     def.FullName(),
			Value:    v,
			Display:  Format(v, def),
			Metadata: def.IsMetadata,
		})
	}
	return report, true
}

// BestsReport returns the current personal bests ranking.
func (e *Engine) BestsReport() BestsReport {
	e.mu.RLock()
	schema, bests := e.schema, e.bests
	e.mu.RUnlock()

	def, _ := schema.Measure(bests.Key())
	dateDef, _ := schema.Measure(schema.DateKey())

	top, labels := bests.Ranked()

	report := BestsReport{
		Key:     bests.Key(),
		Name:    def.FullName(),
		Size:    bests.Size(),
		Entries: make([]BestEntry, len(top)),
	}
	for i, rs := range top {
		v := rs.Values[bests.Key()]
		report.Entries[i] = BestEntry{
			Rank:      labels[i],
			SessionID: rs.ID,
			Date:      Format(rs.Values[schema.DateKey()], dateDef),
			Value:     v,
			Display:   Format(v, def),
		}
	}
	return report
}
