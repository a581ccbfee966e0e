package engine

import (
	"regexp"
	"unicode/utf8"

	"github.com/CompassSecurity/custompatterns/pkg/patterns"
)

// RE2 matches with the standard library's linear time engine.
type RE2 struct{}

var _ MatchEngine = RE2{}

func NewRE2() RE2 {
	return RE2{}
}

type re2Expr struct {
	expr Expression
	re   *regexp.Regexp
	// at matches only at the second rune of its input. Running it on the text
	// from one rune before a position keeps that rune visible to \A, ^ and \b.
	at      *regexp.Regexp
	groups  re2Groups
	atGroup re2Groups
}

// re2Groups holds the submatch indexes of the whole expression and its groups.
type re2Groups struct {
	full    int
	start   int
	pattern int
	end     int
}

func groupsOf(re *regexp.Regexp, full int) re2Groups {
	return re2Groups{
		full:    full,
		start:   re.SubexpIndex(GroupStart),
		pattern: re.SubexpIndex(GroupPattern),
		end:     re.SubexpIndex(GroupEnd),
	}
}

func (e *re2Expr) Expression() Expression {
	return e.expr
}

func (RE2) Name() string {
	return NameRE2
}

func (r RE2) Check(regex string) error {
	if _, err := regexp.Compile(regex); err != nil {
		return &CompileError{Engine: r.Name(), Regex: regex, Err: err}
	}
	return nil
}

func (r RE2) Compile(expr Expression) (CompiledExpr, error) {
	source := expr.String()
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, &CompileError{Engine: r.Name(), Regex: source, Err: err}
	}
	at, err := regexp.Compile(`\A(?s:.)(` + source + `)`)
	if err != nil {
		return nil, &CompileError{Engine: r.Name(), Regex: source, Err: err}
	}
	return &re2Expr{
		expr:    expr,
		re:      re,
		at:      at,
		groups:  groupsOf(re, 0),
		atGroup: groupsOf(at, 1),
	}, nil
}

func (r RE2) Find(expr CompiledExpr, text []byte) Outcome {
	e, ok := expr.(*re2Expr)
	if !ok {
		return Failed(wrongExpr(r.Name(), expr))
	}
	loc := e.re.FindSubmatchIndex(text)
	if loc == nil {
		return NoMatch()
	}
	return Matched(e.match(text, loc, e.groups, 0))
}

func (r RE2) FindAll(expr CompiledExpr, text []byte) ([]Match, error) {
	e, ok := expr.(*re2Expr)
	if !ok {
		return nil, wrongExpr(r.Name(), expr)
	}
	var matches []Match
	for pos := 0; pos <= len(text); {
		m, ok := e.matchFrom(text, pos)
		if !ok {
			break
		}
		matches = append(matches, m)
		pos = resumeAt(text, pos, m)
	}
	return matches, nil
}

// resumeAt returns where the search continues after m. Boundaries may
// overlap, so the next match can start right after the pattern group.
func resumeAt(text []byte, pos int, m Match) int {
	if m.Span.End > pos {
		return m.Span.End
	}
	return pos + runeWidth(text, pos)
}

func runeWidth(text []byte, pos int) int {
	if pos >= len(text) {
		return 1
	}
	_, size := utf8.DecodeRune(text[pos:])
	return size
}

// matchFrom returns the leftmost match starting at or after pos.
func (e *re2Expr) matchFrom(text []byte, pos int) (Match, bool) {
	if pos == 0 {
		loc := e.re.FindSubmatchIndex(text)
		if loc == nil {
			return Match{}, false
		}
		return e.match(text, loc, e.groups, 0), true
	}

	for pos <= len(text) {
		_, size := utf8.DecodeLastRune(text[:pos])
		base := pos - size
		if loc := e.at.FindSubmatchIndex(text[base:]); loc != nil {
			return e.match(text[base:], loc, e.atGroup, base), true
		}

		// Assertions at the start of the slice miss the preceding text, so a
		// match found there is only trusted if the check above agreed.
		loc := e.re.FindSubmatchIndex(text[pos:])
		if loc == nil {
			return Match{}, false
		}
		if loc[0] > 0 {
			return e.match(text[pos:], loc, e.groups, pos), true
		}
		pos += runeWidth(text, pos)
	}
	return Match{}, false
}

// match builds a Match from loc found in text, shifting offsets by base.
func (e *re2Expr) match(text []byte, loc []int, g re2Groups, base int) Match {
	group := func(i int) (int, int) {
		return loc[2*i], loc[2*i+1]
	}
	fs, fe := group(g.full)
	ps, pe := group(g.pattern)
	m := Match{
		Span: patterns.Span{Start: base + ps, End: base + pe},
		Full: patterns.Span{Start: base + fs, End: base + fe},
	}
	if s, end := group(g.start); s >= 0 {
		m.Groups.Start = string(text[s:end])
	}
	if ps >= 0 {
		m.Groups.Pattern = string(text[ps:pe])
	}
	if s, end := group(g.end); s >= 0 {
		m.Groups.End = string(text[s:end])
	}
	return m
}

type re2Predicate struct {
	re *regexp.Regexp
}

func (p re2Predicate) MatchPrefix(text string) (bool, error) {
	return p.re.MatchString(text), nil
}

func (r RE2) CompilePredicate(regex string) (Predicate, error) {
	re, err := regexp.Compile(`\A(?:` + regex + `)`)
	if err != nil {
		return nil, &CompileError{Engine: r.Name(), Regex: regex, Err: err}
	}
	return re2Predicate{re: re}, nil
}
