package core

import (
	"fmt"
	"sort"
	"strings"
)

// Operator is a binary arithmetic operation usable in a relation. Operands
// arrive already converted to float64 by the operand measures' comparators.
type Operator struct {
	Name   string
	Symbol string
	Apply  func(a, b float64) (float64, error)
}

var errZeroDenominator = fmt.Errorf("denominator is zero")

var operators = map[string]Operator{
	"divide": {
		Name:   "divide",
		Symbol: "/",
		Apply: func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, errZeroDenominator
			}
			return a / b, nil
		},
	},
	// divide_time_min takes a denominator in hours and divides by it in
	// minutes, e.g. strokes per minute from a count and a duration.
	"divide_time_min": {
		Name:   "divide_time_min",
		Symbol: "/",
		Apply: func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, errZeroDenominator
			}
			return a / (b * 60), nil
		},
	},
	"add": {
		Name:   "add",
		Symbol: "+",
		Apply:  func(a, b float64) (float64, error) { return a + b, nil },
	},
	"subtract": {
		Name:   "subtract",
		Symbol: "-",
		Apply:  func(a, b float64) (float64, error) { return a - b, nil },
	},
	"multiply": {
		Name:   "multiply",
		Symbol: "*",
		Apply:  func(a, b float64) (float64, error) { return a * b, nil },
	},
}

// LookupOperator returns the operator with the given name. Names are case
// insensitive so "Divide" from older activity files resolves to divide.
func LookupOperator(name string) (Operator, bool) {
	op, ok := operators[strings.ToLower(strings.TrimSpace(name))]
	return op, ok
}

// OperatorNames returns the supported operator names, sorted.
func OperatorNames() []string {
	names := make([]string, 0, len(operators))
	for name := range operators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
