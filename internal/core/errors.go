package core

import (
	"errors"
	"fmt"
)

// SchemaErrorKind classifies schema validation failures.
type SchemaErrorKind string

const (
	UnknownOperand    SchemaErrorKind = "unknown operand"
	CyclicRelation    SchemaErrorKind = "cyclic relation"
	InvalidComparator SchemaErrorKind = "invalid comparator"
	InvalidPreference SchemaErrorKind = "invalid preference"
	InvalidDefinition SchemaErrorKind = "invalid definition"
)

// SchemaError is returned by LoadSchema. It is fatal: no partially validated
// schema is ever returned alongside it.
type SchemaError struct {
	Kind    SchemaErrorKind
	Measure string
	Detail  string
	Err     error
}

func (e *SchemaError) Error() string {
	msg := "schema: " + string(e.Kind)
	if e.Measure != "" {
		msg += fmt.Sprintf(" in %q", e.Measure)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.Err }

// Is matches any SchemaError of the same kind, so callers can test against
// the Err* sentinels below.
func (e *SchemaError) Is(target error) bool {
	t, ok := target.(*SchemaError)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnknownOperand    = &SchemaError{Kind: UnknownOperand}
	ErrCyclicRelation    = &SchemaError{Kind: CyclicRelation}
	ErrInvalidComparator = &SchemaError{Kind: InvalidComparator}
	ErrInvalidPreference = &SchemaError{Kind: InvalidPreference}
	ErrInvalidDefinition = &SchemaError{Kind: InvalidDefinition}
)

// EvalErrorKind classifies per-record resolution failures.
type EvalErrorKind string

const (
	MissingOperand EvalErrorKind = "missing operand"
	DivideByZero   EvalErrorKind = "divide by zero"
	InvalidValue   EvalErrorKind = "invalid value"
	UnknownMeasure EvalErrorKind = "unknown measure"
)

// EvalError rejects a single session record. The record never reaches the
// session log, month buckets or rankings.
type EvalError struct {
	Kind    EvalErrorKind
	Measure string
	Detail  string
	Err     error
}

func (e *EvalError) Error() string {
	msg := "session: " + string(e.Kind)
	if e.Measure != "" {
		msg += fmt.Sprintf(" for %q", e.Measure)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EvalError) Unwrap() error { return e.Err }

func (e *EvalError) Is(target error) bool {
	t, ok := target.(*EvalError)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingOperand = &EvalError{Kind: MissingOperand}
	ErrDivideByZero   = &EvalError{Kind: DivideByZero}
	ErrInvalidValue   = &EvalError{Kind: InvalidValue}
	ErrUnknownMeasure = &EvalError{Kind: UnknownMeasure}
)

// ComparatorErrorKind classifies comparator lookup failures.
type ComparatorErrorKind string

const (
	Unregistered ComparatorErrorKind = "unregistered"
	Incompatible ComparatorErrorKind = "incompatible"
	NotNumeric   ComparatorErrorKind = "not numeric"
)

// ComparatorError is raised by the comparator registry. Schema validation
// wraps it into a SchemaError of kind InvalidComparator.
type ComparatorError struct {
	Kind   ComparatorErrorKind
	Name   string
	Detail string
}

func (e *ComparatorError) Error() string {
	msg := fmt.Sprintf("comparator %q %s", e.Name, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ComparatorError) Is(target error) bool {
	t, ok := target.(*ComparatorError)
	return ok && t.Kind == e.Kind
}

var (
	ErrUnregisteredComparator = &ComparatorError{Kind: Unregistered}
	ErrIncompatibleComparator = &ComparatorError{Kind: Incompatible}

	// ErrRegistryFrozen is returned when a comparator is registered after a
	// schema has been validated against the registry.
	ErrRegistryFrozen = errors.New("comparator registry is frozen")
)
