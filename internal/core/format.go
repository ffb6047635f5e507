package core

import (
	"math"
	"strconv"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// Format renders v for display using def's significant figures and unit.
// Stored values keep full precision; rounding only happens here.
func Format(v models.Value, def models.MeasureDefinition) string {
	var text string
	switch v.Kind {
	case models.KindDate:
		text = v.Time.Format("2006-01-02")
	case models.KindDuration:
		text = models.FormatHours(v.Hours)
	case models.KindFloat:
		if def.SignificantFigures != nil {
			text = formatSignificant(v.Float, *def.SignificantFigures)
		} else {
			text = strconv.FormatFloat(v.Float, 'f', -1, 64)
		}
	case models.KindInt:
		if def.SignificantFigures != nil {
			text = formatSignificant(float64(v.Int), *def.SignificantFigures)
		} else {
			text = strconv.FormatInt(v.Int, 10)
		}
	default:
		text = v.Str
	}

	if def.ShowUnit && def.UnitString() != "" {
		text += " " + def.UnitString()
	}
	return text
}

// formatSignificant rounds f to n significant figures and prints it without
// an exponent: 29.9876 with 3 figures is "30.0", 1234.5 with 2 is "1200".
func formatSignificant(f float64, n int) string {
	if n < 1 {
		n = 1
	}
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', max(n-1, 0), 64)
	}

	magnitude := int(math.Floor(math.Log10(math.Abs(f))))
	decimals := n - 1 - magnitude
	if decimals >= 0 {
		rounded := strconv.FormatFloat(f, 'f', decimals, 64)
		// Rounding can carry into a new digit (9.999 -> "10.00"); drop the
		// extra decimal so the figure count stays at n.
		if r, err := strconv.ParseFloat(rounded, 64); err == nil && r != 0 {
			if int(math.Floor(math.Log10(math.Abs(r)))) > magnitude && decimals > 0 {
				rounded = strconv.FormatFloat(r, 'f', decimals-1, 64)
			}
		}
		return rounded
	}

	scale := math.Pow(10, float64(-decimals))
	return strconv.FormatFloat(math.Round(f/scale)*scale, 'f', 0, 64)
}
