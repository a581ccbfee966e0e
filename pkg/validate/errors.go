package validate

import "fmt"

// DuplicateNameError is reported once per pattern name used more than once.
type DuplicateNameError struct {
	Name  string
	Count int
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("pattern name %q is used %d times", e.Name, e.Count)
}

// InvalidRegexError reports an expression that does not compile. Field names
// the offending field: pattern, start, end, additional_match[i] or
// additional_not_match[i].
type InvalidRegexError struct {
	Field string
	Regex string
	Err   error
}

func (e *InvalidRegexError) Error() string {
	return fmt.Sprintf("invalid regex in %s: %v", e.Field, e.Err)
}

func (e *InvalidRegexError) Unwrap() error {
	return e.Err
}

// OffsetOutOfRangeError reports fixture offsets outside their text or in the
// wrong order. Length is -1 when the text is not known.
type OffsetOutOfRangeError struct {
	Field  string
	Start  int
	End    int
	Length int
}

func (e *OffsetOutOfRangeError) Error() string {
	if e.Length < 0 {
		return fmt.Sprintf("%s: invalid offsets %d-%d", e.Field, e.Start, e.End)
	}
	return fmt.Sprintf("%s: offsets %d-%d are outside of the %d byte fixture", e.Field, e.Start, e.End, e.Length)
}

// SampleOutsideDirError reports an expected entry whose name does not stay
// inside the pattern's directory.
type SampleOutsideDirError struct {
	Field string
	Name  string
}

func (e *SampleOutsideDirError) Error() string {
	return fmt.Sprintf("%s: sample file %q is not inside the pattern directory", e.Field, e.Name)
}
