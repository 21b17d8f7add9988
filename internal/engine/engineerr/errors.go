// Package engineerr defines the typed error kinds raised by the
// simulation engine. Sentinel errors classify the failure; where a
// failure needs attached context (scope, year, position) a wrapping
// struct type carries it while still satisfying errors.Is against the
// sentinel via Unwrap.
package engineerr

import (
	"errors"
	"fmt"
)

// Sentinel errors. Callers compare with errors.Is, never string matching.
var (
	// ErrParse indicates a DSL syntax or duplicate-name violation.
	ErrParse = errors.New("engine: parse error")

	// ErrUnknownSubstance indicates a reference to an undeclared substance.
	ErrUnknownSubstance = errors.New("engine: unknown substance")

	// ErrUnknownStream indicates a reference to an undeclared stream name.
	ErrUnknownStream = errors.New("engine: unknown stream")

	// ErrUnknownApplication indicates a reference to an undeclared application.
	ErrUnknownApplication = errors.New("engine: unknown application")

	// ErrStreamNotEnabled indicates a non-zero write to a stream that has
	// not been enabled in the current scope.
	ErrStreamNotEnabled = errors.New("engine: stream not enabled")

	// ErrZeroInitialCharge indicates a units-denominated conversion was
	// attempted with a zero kg/unit initial charge.
	ErrZeroInitialCharge = errors.New("engine: zero initial charge")

	// ErrSelfDisplacement indicates a displacement target equal to its source.
	ErrSelfDisplacement = errors.New("engine: self displacement")

	// ErrNumberFormat indicates a non-UK number format in source text.
	ErrNumberFormat = errors.New("engine: invalid number format")

	// ErrInvariantViolated indicates an internal consistency check failed.
	ErrInvariantViolated = errors.New("engine: invariant violated")

	// ErrCancelled indicates cooperative cancellation was observed.
	ErrCancelled = errors.New("engine: run cancelled")
)

// Position identifies a location in DSL source text.
type Position struct {
	Row    int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Row, p.Column)
}

// ParseError wraps ErrParse with a source position and message.
type ParseError struct {
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// NewParseError constructs a ParseError at the given row/column.
func NewParseError(row, col int, format string, args ...any) *ParseError {
	return &ParseError{Pos: Position{Row: row, Column: col}, Message: fmt.Sprintf(format, args...)}
}

// NumberFormatError wraps ErrNumberFormat with the offending literal and a
// suggested UK-format equivalent.
type NumberFormatError struct {
	Literal    string
	Suggestion string
}

func (e *NumberFormatError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("engine: %q is not a valid UK-format number, did you mean %q?", e.Literal, e.Suggestion)
	}
	return fmt.Sprintf("engine: %q is not a valid UK-format number", e.Literal)
}

func (e *NumberFormatError) Unwrap() error { return ErrNumberFormat }

// InvariantError wraps ErrInvariantViolated with the scope, year, and
// stream where the violation was detected.
type InvariantError struct {
	Invariant   string
	Application string
	Substance   string
	Year        int
	Stream      string
	Detail      string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("engine: invariant %s violated at %s/%s year %d stream %q: %s",
		e.Invariant, e.Application, e.Substance, e.Year, e.Stream, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolated }

// StreamNotEnabledError wraps ErrStreamNotEnabled with the offending scope
// and stream name.
type StreamNotEnabledError struct {
	Application string
	Substance   string
	Stream      string
}

func (e *StreamNotEnabledError) Error() string {
	return fmt.Sprintf("engine: stream %q not enabled for %s/%s", e.Stream, e.Application, e.Substance)
}

func (e *StreamNotEnabledError) Unwrap() error { return ErrStreamNotEnabled }

// UnknownEntityError wraps one of the Unknown* sentinels with the entity
// name and kind that could not be resolved.
type UnknownEntityError struct {
	Kind string // "substance", "stream", "application"
	Name string
	sentinel error
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("engine: unknown %s %q", e.Kind, e.Name)
}

func (e *UnknownEntityError) Unwrap() error { return e.sentinel }

// NewUnknownSubstance builds an UnknownEntityError for a substance name.
func NewUnknownSubstance(name string) *UnknownEntityError {
	return &UnknownEntityError{Kind: "substance", Name: name, sentinel: ErrUnknownSubstance}
}

// NewUnknownStream builds an UnknownEntityError for a stream name.
func NewUnknownStream(name string) *UnknownEntityError {
	return &UnknownEntityError{Kind: "stream", Name: name, sentinel: ErrUnknownStream}
}

// NewUnknownApplication builds an UnknownEntityError for an application name.
func NewUnknownApplication(name string) *UnknownEntityError {
	return &UnknownEntityError{Kind: "application", Name: name, sentinel: ErrUnknownApplication}
}
