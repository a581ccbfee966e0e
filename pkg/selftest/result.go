package selftest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CompassSecurity/custompatterns/pkg/engine"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
)

// Status is the outcome of a single self test.
type Status string

const (
	StatusPassed      Status = "passed"
	StatusNoMatch     Status = "no-match"
	StatusWrongSpan   Status = "wrong-span"
	StatusEngineError Status = "engine-error"
	StatusMissingFile Status = "missing-file"
	StatusUnexpected  Status = "unexpected"
)

// SubjectFixture is the Subject of results for a pattern's embedded test.
const SubjectFixture = "test"

// Result is the outcome of testing one pattern against one subject: its
// embedded fixture, an expected match entry or a sample file.
type Result struct {
	Document string
	Pattern  string
	Type     string
	// Subject is SubjectFixture or the sample file name.
	Subject  string
	Status   Status
	Expected *patterns.Span
	Actual   []patterns.Span
	// Match is the match the status refers to, when there is one.
	Match *engine.Match
	Err   error
}

func (r Result) Passed() bool {
	return r.Status == StatusPassed
}

// String renders the result on one line.
func (r Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)", r.Status, r.Pattern, r.Subject)
	if r.Expected != nil {
		fmt.Fprintf(&b, " expected %d-%d", r.Expected.Start, r.Expected.End)
	}
	if len(r.Actual) > 0 {
		spans := make([]string, 0, len(r.Actual))
		for _, s := range r.Actual {
			spans = append(spans, fmt.Sprintf("%d-%d", s.Start, s.End))
		}
		fmt.Fprintf(&b, " got %s", strings.Join(spans, ","))
	}
	if r.Err != nil {
		fmt.Fprintf(&b, ": %v", r.Err)
	}
	return b.String()
}

type Results []Result

// Failed returns the number of results that did not pass.
func (rs Results) Failed() int {
	n := 0
	for _, r := range rs {
		if !r.Passed() {
			n++
		}
	}
	return n
}

// ByStatus returns the results with status s.
func (rs Results) ByStatus(s Status) Results {
	var out Results
	for _, r := range rs {
		if r.Status == s {
			out = append(out, r)
		}
	}
	return out
}

// TestFailure reports a match whose span differs from the expected one.
type TestFailure struct {
	Expected patterns.Span
	Actual   []patterns.Span
}

func (e *TestFailure) Error() string {
	spans := make([]string, 0, len(e.Actual))
	for _, s := range e.Actual {
		spans = append(spans, fmt.Sprintf("%d-%d", s.Start, s.End))
	}
	return fmt.Sprintf("expected match at %d-%d, got %s", e.Expected.Start, e.Expected.End, strings.Join(spans, ", "))
}

// ErrSampleOutsideDir is returned for expected file names that leave the
// pattern's directory.
var ErrSampleOutsideDir = errors.New("sample file is outside of the pattern directory")

// MissingFixtureFileError reports an expected entry naming a file that does
// not exist next to the pattern document.
type MissingFixtureFileError struct {
	Path string
	Err  error
}

func (e *MissingFixtureFileError) Error() string {
	return fmt.Sprintf("expected sample file %s cannot be read: %v", e.Path, e.Err)
}

func (e *MissingFixtureFileError) Unwrap() error {
	return e.Err
}
