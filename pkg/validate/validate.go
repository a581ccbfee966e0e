// Package validate checks loaded pattern documents for problems the loader
// does not reject. Findings are accumulated so that a single pass reports
// everything.
package validate

import (
	"fmt"
	"path/filepath"

	"github.com/CompassSecurity/custompatterns/pkg/engine"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is a single validation problem. Pattern is empty for problems of the
// whole document.
type Finding struct {
	Document string
	Pattern  string
	Severity Severity
	Message  string
	Err      error
}

type Findings []Finding

// HasErrors reports whether any finding has error severity.
func (f Findings) HasErrors() bool {
	return f.Count(SeverityError) > 0
}

// Count returns the number of findings with severity s.
func (f Findings) Count(s Severity) int {
	n := 0
	for _, finding := range f {
		if finding.Severity == s {
			n++
		}
	}
	return n
}

type Options struct {
	// Engine compiles every expression. Defaults to the hybrid engine.
	Engine engine.MatchEngine
	// RequireTests warns about patterns without test or expected entries.
	RequireTests bool
}

// Validate returns every finding for set.
func Validate(set *patterns.PatternSet, opts Options) Findings {
	eng := opts.Engine
	if eng == nil {
		eng = engine.NewHybrid(engine.DefaultOptions())
	}

	v := &validator{set: set, engine: eng}
	v.checkDuplicates()
	for _, p := range set.Patterns {
		v.checkRegex(p)
		v.checkFixture(p)
		v.checkExpected(p)
		if opts.RequireTests && p.Test == nil && len(p.Expected) == 0 {
			v.add(p.Name, SeverityWarning, "no test or expected matches defined", nil)
		}
	}
	return v.findings
}

type validator struct {
	set      *patterns.PatternSet
	engine   engine.MatchEngine
	findings Findings
}

func (v *validator) add(pattern string, severity Severity, message string, err error) {
	v.findings = append(v.findings, Finding{
		Document: v.set.Path,
		Pattern:  pattern,
		Severity: severity,
		Message:  message,
		Err:      err,
	})
}

func (v *validator) fail(pattern string, err error) {
	v.add(pattern, SeverityError, err.Error(), err)
}

func (v *validator) checkDuplicates() {
	counts := make(map[string]int, len(v.set.Patterns))
	var order []string
	for _, p := range v.set.Patterns {
		if counts[p.Name] == 0 {
			order = append(order, p.Name)
		}
		counts[p.Name]++
	}
	for _, name := range order {
		if counts[name] > 1 {
			v.fail(name, &DuplicateNameError{Name: name, Count: counts[name]})
		}
	}
}

func (v *validator) checkRegex(p patterns.Pattern) {
	check := func(field, regex string) {
		if regex == "" {
			return
		}
		if err := v.engine.Check(regex); err != nil {
			v.fail(p.Name, &InvalidRegexError{Field: field, Regex: regex, Err: err})
		}
	}
	check("pattern", p.Regex.Pattern)
	check("start", p.Regex.Start)
	check("end", p.Regex.End)

	predicate := func(field, regex string) {
		if _, err := v.engine.CompilePredicate(regex); err != nil {
			v.fail(p.Name, &InvalidRegexError{Field: field, Regex: regex, Err: err})
		}
	}
	for i, regex := range p.Regex.AdditionalMatch {
		predicate(fmt.Sprintf("additional_match[%d]", i), regex)
	}
	for i, regex := range p.Regex.AdditionalNotMatch {
		predicate(fmt.Sprintf("additional_not_match[%d]", i), regex)
	}
}

func (v *validator) checkFixture(p patterns.Pattern) {
	if p.Test == nil {
		return
	}
	length := len(p.Test.Data)
	start, end := p.Test.StartOffset, p.Test.EndOffset
	if start < 0 || start > length || end < patterns.EndOfInput || end > length {
		v.fail(p.Name, &OffsetOutOfRangeError{Field: "test", Start: start, End: end, Length: length})
		return
	}
	if end != patterns.EndOfInput && start > end {
		v.fail(p.Name, &OffsetOutOfRangeError{Field: "test", Start: start, End: end, Length: -1})
	}
}

func (v *validator) checkExpected(p patterns.Pattern) {
	for i, expected := range p.Expected {
		field := fmt.Sprintf("expected[%d]", i)
		switch {
		case expected.Name == "":
			v.add(p.Name, SeverityError, field+": name is empty", nil)
		case !filepath.IsLocal(expected.Name):
			v.fail(p.Name, &SampleOutsideDirError{Field: field, Name: expected.Name})
		}
		start, end := expected.StartOffset, expected.EndOffset
		if start < 0 || end < patterns.EndOfInput || (end != patterns.EndOfInput && start > end) {
			v.fail(p.Name, &OffsetOutOfRangeError{Field: field, Start: start, End: end, Length: -1})
		}
	}
}
