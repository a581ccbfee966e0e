// Package patterns loads GitHub Secret Scanning custom pattern documents.
//
// A document is a patterns.yml file holding a named set of patterns, each with a
// regular expression, optional start and end boundaries and optional self-test
// fixtures. Documents are read-only once loaded.
package patterns

// FileName is the name of every pattern document discovered on disk.
const FileName = "patterns.yml"

// PatternSet is one loaded patterns.yml document.
type PatternSet struct {
	Name     string    `yaml:"name"`
	Patterns []Pattern `yaml:"patterns"`

	// Path is the file the set was loaded from, Dir its directory.
	Path string `yaml:"-"`
	Dir  string `yaml:"-"`

	// Defaults holds the boundaries used for patterns without start or end.
	Defaults Defaults `yaml:"-"`
}

// Pattern is a single custom secret scanning pattern.
type Pattern struct {
	Name         string          `yaml:"name"`
	Type         string          `yaml:"type"`
	Description  string          `yaml:"description,omitempty"`
	Experimental bool            `yaml:"experimental,omitempty"`
	Regex        RegexSpec       `yaml:"regex"`
	Comments     []string        `yaml:"comments,omitempty"`
	Test         *TestFixture    `yaml:"test,omitempty"`
	Expected     []ExpectedMatch `yaml:"expected,omitempty"`
}

// RegexSpec describes how a pattern matches. Start and End are empty when the
// document omits them.
type RegexSpec struct {
	Version            float64  `yaml:"version,omitempty"`
	Pattern            string   `yaml:"pattern"`
	Start              string   `yaml:"start,omitempty"`
	End                string   `yaml:"end,omitempty"`
	AdditionalMatch    []string `yaml:"additional_match,omitempty"`
	AdditionalNotMatch []string `yaml:"additional_not_match,omitempty"`
}

// Boundaries returns the start and end expressions, falling back to d.
func (r RegexSpec) Boundaries(d Defaults) (start, end string) {
	start, end = r.Start, r.End
	if start == "" {
		start = d.Start
	}
	if end == "" {
		end = d.End
	}
	return start, end
}

// TestFixture is the self test embedded in a pattern.
type TestFixture struct {
	Data        string `yaml:"data"`
	StartOffset int    `yaml:"start_offset"`
	EndOffset   int    `yaml:"end_offset"`
}

// Span returns the expected match span inside Data.
func (t TestFixture) Span() Span {
	return NewSpan(t.StartOffset, t.EndOffset, len(t.Data))
}

// ExpectedMatch is a match the pattern must produce in a sample file next to
// the document.
type ExpectedMatch struct {
	Name        string `yaml:"name"`
	StartOffset int    `yaml:"start_offset"`
	EndOffset   int    `yaml:"end_offset"`
}

// Span returns the expected match span inside a file of the given length.
func (e ExpectedMatch) Span(length int) Span {
	return NewSpan(e.StartOffset, e.EndOffset, length)
}

// EndOfInput is the end_offset sentinel meaning "until the end of the text".
const EndOfInput = -1

// Span is a half-open byte range [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewSpan builds a span, resolving the EndOfInput sentinel against length.
func NewSpan(start, end, length int) Span {
	if end == EndOfInput {
		end = length
	}
	return Span{Start: start, End: end}
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}
