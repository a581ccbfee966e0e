// Package engine provides the regular expression engines patterns are
// matched with.
//
// An expression is always compiled as the concatenation of three named groups,
// start, pattern and end. The reported span of a match is the span of the
// pattern group, which is what secret scanning reports as the secret.
package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/CompassSecurity/custompatterns/pkg/patterns"
)

// Group names used in every compiled expression.
const (
	GroupStart   = "start"
	GroupPattern = "pattern"
	GroupEnd     = "end"
)

// Expression is the uncompiled form of a pattern with resolved boundaries.
type Expression struct {
	Start   string
	Pattern string
	End     string
}

// ExpressionFor resolves the boundaries of p against d.
func ExpressionFor(p patterns.Pattern, d patterns.Defaults) Expression {
	start, end := p.Regex.Boundaries(d)
	return Expression{Start: start, Pattern: p.Regex.Pattern, End: end}
}

// String renders the expression with its three named groups.
func (e Expression) String() string {
	return fmt.Sprintf("(?<%s>%s)(?<%s>%s)(?<%s>%s)", GroupStart, e.Start, GroupPattern, e.Pattern, GroupEnd, e.End)
}

// Groups holds the text captured by the three groups of a match.
type Groups struct {
	Start   string `json:"start"`
	Pattern string `json:"pattern"`
	End     string `json:"end"`
}

// Match is a single match. Span covers the pattern group, Full the whole
// expression including boundaries.
type Match struct {
	Span   patterns.Span `json:"span"`
	Full   patterns.Span `json:"full"`
	Groups Groups        `json:"groups"`
}

func (m Match) shift(by int) Match {
	m.Span.Start += by
	m.Span.End += by
	m.Full.Start += by
	m.Full.End += by
	return m
}

// Kind tags an Outcome.
type Kind int

const (
	KindNoMatch Kind = iota
	KindMatch
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindNoMatch:
		return "no-match"
	case KindMatch:
		return "match"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of a single Find. No match is a normal outcome, not an
// error.
type Outcome struct {
	Kind  Kind
	Match Match
	Err   error
}

// NoMatch returns the outcome for a text without a match.
func NoMatch() Outcome {
	return Outcome{Kind: KindNoMatch}
}

// Matched wraps m in an outcome.
func Matched(m Match) Outcome {
	return Outcome{Kind: KindMatch, Match: m}
}

// Failed wraps an engine error in an outcome.
func Failed(err error) Outcome {
	return Outcome{Kind: KindError, Err: err}
}

// CompiledExpr is an expression compiled by a particular engine.
type CompiledExpr interface {
	Expression() Expression
}

// Predicate tests whether a text starts with a match of an additional
// expression.
type Predicate interface {
	MatchPrefix(text string) (bool, error)
}

// MatchEngine compiles expressions and finds their matches.
type MatchEngine interface {
	Name() string
	// Check reports whether a single regular expression compiles.
	Check(regex string) error
	Compile(expr Expression) (CompiledExpr, error)
	// Find returns the leftmost match in text.
	Find(expr CompiledExpr, text []byte) Outcome
	// FindAll returns all non-overlapping matches in text.
	FindAll(expr CompiledExpr, text []byte) ([]Match, error)
	CompilePredicate(regex string) (Predicate, error)
}

// Engine names accepted by New.
const (
	NameRE2    = "re2"
	NamePCRE   = "pcre"
	NameHybrid = "hybrid"
)

// Options configures engines created by New.
type Options struct {
	// MatchTimeout bounds a single backtracking match. Zero disables it.
	MatchTimeout time.Duration
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{MatchTimeout: 5 * time.Second}
}

// New returns the engine registered under name.
func New(name string, opts Options) (MatchEngine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameRE2:
		return NewRE2(), nil
	case NamePCRE:
		return NewPCRE(opts), nil
	case NameHybrid, "":
		return NewHybrid(opts), nil
	default:
		return nil, fmt.Errorf("unknown match engine %q (available: %s)", name, strings.Join(Names(), ", "))
	}
}

// Names lists the engines accepted by New.
func Names() []string {
	names := []string{NameRE2, NamePCRE, NameHybrid}
	sort.Strings(names)
	return names
}

// CompileError reports an expression an engine rejected.
type CompileError struct {
	Engine string
	Regex  string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: cannot compile %q: %v", e.Engine, e.Regex, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// DisagreementError reports a candidate found by one engine that the other
// engine does not reproduce.
type DisagreementError struct {
	Expression Expression
	Candidate  patterns.Span
	Confirmed  *patterns.Span
}

func (e *DisagreementError) Error() string {
	if e.Confirmed == nil {
		return fmt.Sprintf("engines disagree: candidate %d-%d not confirmed", e.Candidate.Start, e.Candidate.End)
	}
	return fmt.Sprintf("engines disagree: candidate %d-%d confirmed as %d-%d",
		e.Candidate.Start, e.Candidate.End, e.Confirmed.Start, e.Confirmed.End)
}

// wrongExpr is returned when a CompiledExpr from another engine is used.
func wrongExpr(engine string, expr CompiledExpr) error {
	return fmt.Errorf("%s: expression %T was not compiled by this engine", engine, expr)
}
