package dom

import (
	"errors"
	"fmt"
)

// ErrStructure indicates that a structural assumption about the book markup
// does not hold. The pipeline treats this as fatal for the whole run: a
// position reference that cannot be resolved against the markup it points at
// means every later stage would be operating on a wrong answer.
var ErrStructure = errors.New("structural mismatch")

// StructuralError reports a violated markup assumption with context.
type StructuralError struct {
	Op     string // operation that failed (e.g. "find", "attr", "render")
	Detail string // human-readable description of the mismatch
	Err    error  // underlying error, if any
}

func (e *StructuralError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("structural mismatch in %s: %s", e.Op, e.Detail)
	}
	return fmt.Sprintf("structural mismatch: %s", e.Detail)
}

func (e *StructuralError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrStructure
}

// Structuralf builds a StructuralError with a formatted detail message.
func Structuralf(op, format string, args ...any) *StructuralError {
	return &StructuralError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
