package engine

import (
	"errors"
	"unicode/utf8"

	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/rs/zerolog/log"
)

const (
	// confirmContext is the least text PCRE sees around a candidate.
	confirmContext = 4 << 10
	// confirmWindow is how much text after a candidate is converted for PCRE
	// at once. Later candidates inside it reuse the conversion.
	confirmWindow = 1 << 20
)

// Hybrid finds candidates with the linear RE2 engine and confirms every
// candidate with the PCRE engine, searching from the candidate's start in a
// window of text around it. The whole text is only converted when the window
// does not confirm the candidate. A candidate PCRE places differently is a
// DisagreementError. Additional match predicates use PCRE only.
type Hybrid struct {
	fast  RE2
	exact PCRE
}

var _ MatchEngine = Hybrid{}

func NewHybrid(opts Options) Hybrid {
	return Hybrid{fast: NewRE2(), exact: NewPCRE(opts)}
}

type hybridExpr struct {
	expr  Expression
	fast  CompiledExpr
	exact *pcreExpr
}

func (e *hybridExpr) Expression() Expression {
	return e.expr
}

func (Hybrid) Name() string {
	return NameHybrid
}

// Check requires both engines to accept regex.
func (h Hybrid) Check(regex string) error {
	return errors.Join(h.fast.Check(regex), h.exact.Check(regex))
}

func (h Hybrid) Compile(expr Expression) (CompiledExpr, error) {
	fast, fastErr := h.fast.Compile(expr)
	exact, exactErr := h.exact.Compile(expr)
	if err := errors.Join(fastErr, exactErr); err != nil {
		return nil, err
	}
	return &hybridExpr{expr: expr, fast: fast, exact: exact.(*pcreExpr)}, nil
}

func (h Hybrid) Find(expr CompiledExpr, text []byte) Outcome {
	e, ok := expr.(*hybridExpr)
	if !ok {
		return Failed(wrongExpr(h.Name(), expr))
	}
	outcome := h.fast.Find(e.fast, text)
	if outcome.Kind != KindMatch {
		return outcome
	}
	confirmed, err := h.confirm(e, &confirmer{text: text}, outcome.Match)
	if err != nil {
		return Failed(err)
	}
	return Matched(confirmed)
}

func (h Hybrid) FindAll(expr CompiledExpr, text []byte) ([]Match, error) {
	e, ok := expr.(*hybridExpr)
	if !ok {
		return nil, wrongExpr(h.Name(), expr)
	}
	candidates, err := h.fast.FindAll(e.fast, text)
	if err != nil || len(candidates) == 0 {
		return nil, err
	}

	c := &confirmer{text: text}
	matches := make([]Match, 0, len(candidates))
	for _, candidate := range candidates {
		confirmed, err := h.confirm(e, c, candidate)
		if err != nil {
			return matches, err
		}
		matches = append(matches, confirmed)
	}
	return matches, nil
}

func (h Hybrid) confirm(e *hybridExpr, c *confirmer, candidate Match) (Match, error) {
	in, lo := c.around(candidate.Full)
	m, err := e.exact.matchAt(in, candidate.Full.Start-lo)
	if err != nil {
		return Match{}, err
	}
	if m != nil {
		shifted := m.shift(lo)
		m = &shifted
	}
	if !sameMatch(m, candidate) && !c.whole() {
		// the window may have cut a lookaround or moved \z
		m, err = e.exact.matchAt(c.all(), candidate.Full.Start)
		if err != nil {
			return Match{}, err
		}
	}
	if m == nil {
		return Match{}, &DisagreementError{Expression: e.expr, Candidate: candidate.Full}
	}
	if !sameMatch(m, candidate) {
		log.Debug().
			Str("pattern", e.expr.Pattern).
			Int("candidateStart", candidate.Span.Start).Int("candidateEnd", candidate.Span.End).
			Int("confirmedStart", m.Span.Start).Int("confirmedEnd", m.Span.End).
			Msg("Engines disagree on match")
		full := m.Full
		return Match{}, &DisagreementError{Expression: e.expr, Candidate: candidate.Full, Confirmed: &full}
	}
	return *m, nil
}

func sameMatch(m *Match, candidate Match) bool {
	return m != nil && m.Full == candidate.Full && m.Span == candidate.Span
}

// confirmer converts the text around candidates for PCRE, one window at a
// time, instead of the whole text.
type confirmer struct {
	text   []byte
	lo, hi int
	in     *runeText
}

// around returns the converted window holding span with confirmContext on
// both sides, and the window's byte offset in the text.
func (c *confirmer) around(span patterns.Span) (*runeText, int) {
	fits := c.in != nil &&
		(c.lo == 0 || span.Start-confirmContext >= c.lo) &&
		(c.hi == len(c.text) || span.End+confirmContext <= c.hi)
	if !fits {
		c.lo = runeStart(c.text, max(span.Start-confirmContext, 0))
		c.hi = runeStart(c.text, min(span.End+confirmWindow, len(c.text)))
		c.in = newRuneText(c.text[c.lo:c.hi])
	}
	return c.in, c.lo
}

// all converts the whole text and keeps it for later candidates.
func (c *confirmer) all() *runeText {
	c.lo, c.hi = 0, len(c.text)
	c.in = newRuneText(c.text)
	return c.in
}

func (c *confirmer) whole() bool {
	return c.lo == 0 && c.hi == len(c.text)
}

// runeStart moves pos back to the start of the rune containing it.
func runeStart(text []byte, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

func (h Hybrid) CompilePredicate(regex string) (Predicate, error) {
	return h.exact.CompilePredicate(regex)
}
