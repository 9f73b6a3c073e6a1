package builtin

import "fmt"

// ParseError reports a field value that could not be converted. It aborts
// cleaning for the whole batch.
type ParseError struct {
	Index int // position of the record in the batch, 0-based
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record %d: parse %s %q: %v", e.Index, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
