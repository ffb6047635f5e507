package core

import (
	"cmp"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/valter-silva-au/tracks/pkg/models"
)

// Ordering is the result of comparing two values.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// Comparator is a named total order over the values of one or more measure
// kinds. Numeric exposes the conversion used when a value of an accepted
// kind takes part in arithmetic; HasNumeric reports whether there is one.
type Comparator interface {
	Name() string
	Accepts(kind models.MeasureKind) bool
	Compare(a, b models.Value) Ordering
	Numeric(v models.Value) (float64, bool)
	HasNumeric() bool
}

type funcComparator struct {
	name       string
	kinds      []models.MeasureKind
	compare    func(a, b models.Value) Ordering
	numeric    func(v models.Value) (float64, bool)
	hasNumeric bool
}

// NewComparator builds a Comparator from plain functions. numeric may be nil
// when values of the accepted kinds have no arithmetic meaning.
func NewComparator(name string, kinds []models.MeasureKind, compare func(a, b models.Value) Ordering, numeric func(v models.Value) (float64, bool)) Comparator {
	c := &funcComparator{name: name, kinds: kinds, compare: compare, numeric: numeric, hasNumeric: numeric != nil}
	if numeric == nil {
		c.numeric = func(models.Value) (float64, bool) { return 0, false }
	}
	return c
}

func (c *funcComparator) Name() string { return c.name }

func (c *funcComparator) Accepts(kind models.MeasureKind) bool {
	for _, k := range c.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (c *funcComparator) Compare(a, b models.Value) Ordering { return c.compare(a, b) }

func (c *funcComparator) Numeric(v models.Value) (float64, bool) { return c.numeric(v) }

func (c *funcComparator) HasNumeric() bool { return c.hasNumeric }

func numericValue(v models.Value) (float64, bool) { return v.Numeric() }

func compareNumeric(a, b models.Value) Ordering {
	x, _ := a.Numeric()
	y, _ := b.Numeric()
	return Ordering(cmp.Compare(x, y))
}

func compareDates(a, b models.Value) Ordering {
	return Ordering(a.Time.Compare(b.Time))
}

func compareDurations(a, b models.Value) Ordering {
	return Ordering(cmp.Compare(a.Hours, b.Hours))
}

func compareStrings(a, b models.Value) Ordering {
	return Ordering(strings.Compare(a.Str, b.Str))
}

// Built-in comparator names.
const (
	ComparatorNumeric  = "numeric"
	ComparatorDate     = "date"
	ComparatorDuration = "duration"
	ComparatorLexical  = "lexical"
)

// ComparatorRegistry maps comparator names to comparators. Registration is
// only allowed until the registry is frozen, which LoadSchema does before
// validating, so a validated schema can never see its comparators change.
type ComparatorRegistry struct {
	mu     sync.RWMutex
	byName map[string]Comparator
	frozen bool
}

// NewComparatorRegistry returns a registry holding the built-in comparators
// and the aliases used by older activity files.
func NewComparatorRegistry() *ComparatorRegistry {
	r := &ComparatorRegistry{byName: make(map[string]Comparator)}

	numeric := NewComparator(ComparatorNumeric,
		[]models.MeasureKind{models.KindFloat, models.KindInt}, compareNumeric, numericValue)
	date := NewComparator(ComparatorDate,
		[]models.MeasureKind{models.KindDate}, compareDates, nil)
	duration := NewComparator(ComparatorDuration,
		[]models.MeasureKind{models.KindDuration}, compareDurations, numericValue)
	lexical := NewComparator(ComparatorLexical,
		[]models.MeasureKind{models.KindString}, compareStrings, nil)

	for name, c := range map[string]Comparator{
		ComparatorNumeric:   numeric,
		"float":             numeric,
		"int":               numeric,
		ComparatorDate:      date,
		ComparatorDuration:  duration,
		"hourMinSecToFloat": duration,
		"time_to_float":     duration,
		ComparatorLexical:   lexical,
		"str":               lexical,
		"string":            lexical,
	} {
		r.byName[name] = c
	}
	return r
}

var (
	defaultRegistry     *ComparatorRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry. Custom comparators must
// be registered on it before the first schema is loaded.
func DefaultRegistry() *ComparatorRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewComparatorRegistry()
	})
	return defaultRegistry
}

// Register adds a comparator under the given name.
func (r *ComparatorRegistry) Register(name string, c Comparator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("registering comparator %q: %w", name, ErrRegistryFrozen)
	}
	if name == "" || c == nil {
		return fmt.Errorf("registering comparator: name and comparator are required")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("registering comparator: %q already registered", name)
	}
	r.byName[name] = c
	return nil
}

// Freeze stops further registration.
func (r *ComparatorRegistry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *ComparatorRegistry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Lookup returns the comparator registered under name.
func (r *ComparatorRegistry) Lookup(name string) (Comparator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byName[name]
	if !ok {
		return nil, &ComparatorError{Kind: Unregistered, Name: name}
	}
	return c, nil
}

// Compare orders a and b with the named comparator.
func (r *ComparatorRegistry) Compare(name string, a, b models.Value) (Ordering, error) {
	c, err := r.Lookup(name)
	if err != nil {
		return Equal, err
	}
	return c.Compare(a, b), nil
}

// Resolve returns the comparator a measure of the given kind should use.
// An empty name selects the default for the kind; duration has no default.
func (r *ComparatorRegistry) Resolve(name string, kind models.MeasureKind) (Comparator, error) {
	if name == "" {
		switch kind {
		case models.KindFloat, models.KindInt:
			name = ComparatorNumeric
		case models.KindDate:
			name = ComparatorDate
		case models.KindString:
			name = ComparatorLexical
		default:
			return nil, &ComparatorError{
				Kind:   Unregistered,
				Name:   name,
				Detail: fmt.Sprintf("%s measures have no default ordering and must name a comparator", kind),
			}
		}
	}

	c, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !c.Accepts(kind) {
		return nil, &ComparatorError{
			Kind:   Incompatible,
			Name:   name,
			Detail: fmt.Sprintf("cannot order %s values", kind),
		}
	}
	return c, nil
}

// Names returns all registered names, aliases included, sorted.
func (r *ComparatorRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
