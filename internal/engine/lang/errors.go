package lang

import "github.com/example/kigalisim/internal/engine/engineerr"

// NewLexError builds a parse error at the given lexer position. It is a
// thin alias over engineerr.NewParseError kept local to this package so
// lexer/parser call sites read as DSL-specific errors.
func NewLexError(row, col int, format string, args ...any) error {
	return engineerr.NewParseError(row, col, format, args...)
}

// ParseResult is the parser's output: either a valid Program or a
// non-empty list of errors. The parser keeps going after a recoverable
// error so multiple diagnostics can surface from one pass.
type ParseResult struct {
	Program *ParsedProgram
	Errors  []error
}

// OK reports whether parsing succeeded with no errors.
func (r *ParseResult) OK() bool { return len(r.Errors) == 0 && r.Program != nil }
