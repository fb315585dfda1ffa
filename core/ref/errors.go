package ref

import (
	"errors"
	"fmt"
)

// ErrMalformed indicates a position reference that does not match its
// micro-format. The log and the archive disagree about something basic, so
// the run aborts rather than guessing.
var ErrMalformed = errors.New("malformed reference")

// ParseError reports a reference string that failed to parse.
type ParseError struct {
	Format string // which micro-format was expected
	Input  string // the offending string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s: %q", e.Format, e.Input)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformed
}
