package validate

import (
	"errors"
	"testing"

	"github.com/CompassSecurity/custompatterns/pkg/engine"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pattern(name string) patterns.Pattern {
	return patterns.Pattern{Name: name, Type: name, Regex: patterns.RegexSpec{Pattern: `[a-z]{8}`}}
}

func errorsOf[T error](findings Findings) []T {
	var out []T
	for _, f := range findings {
		var target T
		if f.Err != nil && errors.As(f.Err, &target) {
			out = append(out, target)
		}
	}
	return out
}

func TestValidateClean(t *testing.T) {
	set := &patterns.PatternSet{Name: "set", Patterns: []patterns.Pattern{pattern("a"), pattern("b")}}
	findings := Validate(set, Options{})
	assert.Empty(t, findings)
	assert.False(t, findings.HasErrors())
}

func TestValidateDuplicateNames(t *testing.T) {
	set := &patterns.PatternSet{Name: "set", Patterns: []patterns.Pattern{
		pattern("a"), pattern("b"), pattern("a"), pattern("a"), pattern("c"), pattern("b"),
	}}

	findings := Validate(set, Options{})
	dups := errorsOf[*DuplicateNameError](findings)
	require.Len(t, dups, 2, "one error per duplicated name")
	assert.Equal(t, "a", dups[0].Name)
	assert.Equal(t, 3, dups[0].Count)
	assert.Equal(t, "b", dups[1].Name)
	assert.Equal(t, 2, dups[1].Count)
	assert.True(t, findings.HasErrors())
}

func TestValidateInvalidRegexFields(t *testing.T) {
	tests := []struct {
		name   string
		regex  patterns.RegexSpec
		fields []string
	}{
		{
			name:   "invalid start",
			regex:  patterns.RegexSpec{Pattern: `[a-z]+`, Start: `(unclosed`},
			fields: []string{"start"},
		},
		{
			name:   "invalid end",
			regex:  patterns.RegexSpec{Pattern: `[a-z]+`, End: `[z-a]`},
			fields: []string{"end"},
		},
		{
			name:   "invalid pattern",
			regex:  patterns.RegexSpec{Pattern: `a{2,1}`},
			fields: []string{"pattern"},
		},
		{
			name:   "start and end independently",
			regex:  patterns.RegexSpec{Pattern: `[a-z]+`, Start: `(`, End: `)`},
			fields: []string{"start", "end"},
		},
		{
			name: "additional expressions",
			regex: patterns.RegexSpec{
				Pattern:            `[a-z]+`,
				AdditionalMatch:    []string{`ok`, `(bad`},
				AdditionalNotMatch: []string{`[bad`},
			},
			fields: []string{"additional_match[1]", "additional_not_match[0]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pattern("p")
			p.Regex = tt.regex
			set := &patterns.PatternSet{Name: "set", Patterns: []patterns.Pattern{p}}

			invalid := errorsOf[*InvalidRegexError](Validate(set, Options{}))
			var fields []string
			for _, err := range invalid {
				fields = append(fields, err.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestValidateLookbehindDependsOnEngine(t *testing.T) {
	p := pattern("p")
	p.Regex.Start = `(?<=key:)`
	set := &patterns.PatternSet{Name: "set", Patterns: []patterns.Pattern{p}}

	pcre := Validate(set, Options{Engine: engine.NewPCRE(engine.DefaultOptions())})
	assert.Empty(t, pcre)

	re2 := errorsOf[*InvalidRegexError](Validate(set, Options{Engine: engine.NewRE2()}))
	require.Len(t, re2, 1)
	assert.Equal(t, "start", re2[0].Field)
}

func TestValidateFixtureOffsets(t *testing.T) {
	tests := []struct {
		name    string
		fixture patterns.TestFixture
		wantErr bool
	}{
		{name: "defaults", fixture: patterns.TestFixture{Data: "abcdefgh", EndOffset: -1}},
		{name: "full range", fixture: patterns.TestFixture{Data: "abcdefgh", StartOffset: 0, EndOffset: 8}},
		{name: "start at end", fixture: patterns.TestFixture{Data: "abcdefgh", StartOffset: 8, EndOffset: -1}},
		{name: "end past data", fixture: patterns.TestFixture{Data: "abcdefgh", EndOffset: 9}, wantErr: true},
		{name: "start past data", fixture: patterns.TestFixture{Data: "abcdefgh", StartOffset: 9, EndOffset: -1}, wantErr: true},
		{name: "negative start", fixture: patterns.TestFixture{Data: "abcdefgh", StartOffset: -2, EndOffset: -1}, wantErr: true},
		{name: "start after end", fixture: patterns.TestFixture{Data: "abcdefgh", StartOffset: 5, EndOffset: 3}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := pattern("p")
			fixture := tt.fixture
			p.Test = &fixture
			set := &patterns.PatternSet{Name: "set", Patterns: []patterns.Pattern{p}}

			offsets := errorsOf[*OffsetOutOfRangeError](Validate(set, Options{}))
			if tt.wantErr {
				assert.Len(t, offsets, 1)
			} else {
				assert.Empty(t, offsets)
			}
		})
	}
}

func TestValidateExpectedOffsets(t *testing.T) {
	p := pattern("p")
	p.Expected = []patterns.ExpectedMatch{
		{Name: "ok.txt", StartOffset: 3, EndOffset: -1},
		{Name: "swapped.txt", StartOffset: 10, EndOffset: 2},
		{Name: "", StartOffset: 0, EndOffset: 4},
	}
	set := &patterns.PatternSet{Name: "set", Patterns: []patterns.Pattern{p}}

	findings := Validate(set, Options{})
	offsets := errorsOf[*OffsetOutOfRangeError](findings)
	require.Len(t, offsets, 1)
	assert.Equal(t, "expected[1]", offsets[0].Field)
	assert.Equal(t, 2, findings.Count(SeverityError))
}

func TestValidateExpectedOutsideDir(t *testing.T) {
	p := pattern("p")
	p.Expected = []patterns.ExpectedMatch{
		{Name: "nested/sample.txt", EndOffset: -1},
		{Name: "../outside.txt", EndOffset: -1},
		{Name: "/etc/passwd", EndOffset: -1},
	}
	set := &patterns.PatternSet{Name: "set", Patterns: []patterns.Pattern{p}}

	findings := Validate(set, Options{})
	outside := errorsOf[*SampleOutsideDirError](findings)
	require.Len(t, outside, 2)
	assert.Equal(t, "expected[1]", outside[0].Field)
	assert.Equal(t, "../outside.txt", outside[0].Name)
	assert.Equal(t, "expected[2]", outside[1].Field)
	assert.Equal(t, 2, findings.Count(SeverityError))
}

func TestValidateRequireTests(t *testing.T) {
	set := &patterns.PatternSet{Name: "set", Patterns: []patterns.Pattern{pattern("a")}}

	findings := Validate(set, Options{RequireTests: true})
	require.Len(t, findings, 1)
	assert.Equal(t, SeverityWarning, findings[0].Severity)
	assert.False(t, findings.HasErrors())
}

func TestValidateRoundTripIsStable(t *testing.T) {
	doc := `name: set
patterns:
  - name: dup
    type: a
    regex:
      pattern: "[a-z]+"
      start: "(bad"
  - name: dup
    type: b
    regex:
      pattern: "[0-9]+"
    test:
      data: "12345"
      end_offset: 9
`
	first, err := patterns.Parse([]byte(doc), "patterns.yml", patterns.Defaults{})
	require.NoError(t, err)
	out, err := patterns.Marshal(first)
	require.NoError(t, err)
	second, err := patterns.Parse(out, "patterns.yml", patterns.Defaults{})
	require.NoError(t, err)

	before := Validate(first, Options{})
	after := Validate(second, Options{})
	assert.Len(t, before, 3)
	assert.Equal(t, before, after)
}
