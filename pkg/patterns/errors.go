package patterns

import "fmt"

// ParseError reports a pattern document that is malformed or misses a required
// field. Field is empty when the document itself could not be decoded.
type ParseError struct {
	Path  string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("parsing %s: %s: %v", e.Path, e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrMissingField is wrapped by ParseError for absent required fields.
var ErrMissingField = fmt.Errorf("required field is missing")
