package engine

import (
	"unicode/utf8"

	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/dlclark/regexp2"
)

// PCRE matches with a backtracking engine that supports lookarounds and
// backreferences. regexp2 works on runes, offsets are converted back to bytes.
type PCRE struct {
	opts Options
}

var _ MatchEngine = PCRE{}

func NewPCRE(opts Options) PCRE {
	return PCRE{opts: opts}
}

type pcreExpr struct {
	expr Expression
	re   *regexp2.Regexp
}

func (e *pcreExpr) Expression() Expression {
	return e.expr
}

func (PCRE) Name() string {
	return NamePCRE
}

func (p PCRE) compile(regex string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(regex, regexp2.None)
	if err != nil {
		return nil, &CompileError{Engine: p.Name(), Regex: regex, Err: err}
	}
	if p.opts.MatchTimeout > 0 {
		re.MatchTimeout = p.opts.MatchTimeout
	}
	return re, nil
}

func (p PCRE) Check(regex string) error {
	_, err := p.compile(regex)
	return err
}

func (p PCRE) Compile(expr Expression) (CompiledExpr, error) {
	re, err := p.compile(expr.String())
	if err != nil {
		return nil, err
	}
	return &pcreExpr{expr: expr, re: re}, nil
}

func (p PCRE) Find(expr CompiledExpr, text []byte) Outcome {
	e, ok := expr.(*pcreExpr)
	if !ok {
		return Failed(wrongExpr(p.Name(), expr))
	}
	in := newRuneText(text)
	m, err := e.re.FindRunesMatch(in.runes)
	if err != nil {
		return Failed(err)
	}
	if m == nil {
		return NoMatch()
	}
	return Matched(in.match(m))
}

func (p PCRE) FindAll(expr CompiledExpr, text []byte) ([]Match, error) {
	e, ok := expr.(*pcreExpr)
	if !ok {
		return nil, wrongExpr(p.Name(), expr)
	}
	in := newRuneText(text)
	var matches []Match
	for pos := 0; pos <= len(text); {
		m, err := e.matchAt(in, pos)
		if err != nil {
			return matches, err
		}
		if m == nil {
			break
		}
		matches = append(matches, *m)
		pos = resumeAt(text, pos, *m)
	}
	return matches, nil
}

// matchAt returns the leftmost match starting the search at byte offset pos.
// The text before pos stays visible to anchors and lookbehinds.
func (e *pcreExpr) matchAt(in *runeText, pos int) (*Match, error) {
	m, err := e.re.FindRunesMatchStartingAt(in.runes, in.runeIndex(pos))
	if err != nil || m == nil {
		return nil, err
	}
	match := in.match(m)
	return &match, nil
}

type pcrePredicate struct {
	re *regexp2.Regexp
}

func (p pcrePredicate) MatchPrefix(text string) (bool, error) {
	return p.re.MatchString(text)
}

func (p PCRE) CompilePredicate(regex string) (Predicate, error) {
	re, err := p.compile(`\A(?:` + regex + `)`)
	if err != nil {
		return nil, err
	}
	return pcrePredicate{re: re}, nil
}

// runeText keeps a text as runes together with the byte offset of every rune.
// Invalid UTF-8 decodes to one rune per byte, as the standard library does.
// ASCII text has no offsets, rune indexes are byte offsets.
type runeText struct {
	raw     []byte
	runes   []rune
	offsets []int
}

func newRuneText(text []byte) *runeText {
	in := &runeText{raw: text, runes: make([]rune, 0, len(text))}
	if isASCII(text) {
		for _, b := range text {
			in.runes = append(in.runes, rune(b))
		}
		return in
	}

	in.offsets = make([]int, 0, len(text)+1)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRune(text[i:])
		in.runes = append(in.runes, r)
		in.offsets = append(in.offsets, i)
		i += size
	}
	in.offsets = append(in.offsets, len(text))
	return in
}

func isASCII(text []byte) bool {
	for _, b := range text {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// byteOffset converts a rune index to a byte offset.
func (in *runeText) byteOffset(runeIndex int) int {
	if in.offsets == nil {
		return runeIndex
	}
	return in.offsets[runeIndex]
}

// runeIndex converts a byte offset to the index of the rune containing it.
func (in *runeText) runeIndex(offset int) int {
	if in.offsets == nil {
		return min(offset, len(in.runes))
	}
	lo, hi := 0, len(in.offsets)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if in.offsets[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

func (in *runeText) span(index, length int) patterns.Span {
	return patterns.Span{Start: in.byteOffset(index), End: in.byteOffset(index + length)}
}

func (in *runeText) match(m *regexp2.Match) Match {
	match := Match{Full: in.span(m.Index, m.Length)}
	if g := m.GroupByName(GroupStart); g != nil && len(g.Captures) > 0 {
		match.Groups.Start = string(in.raw[in.byteOffset(g.Index):in.byteOffset(g.Index+g.Length)])
	}
	if g := m.GroupByName(GroupPattern); g != nil && len(g.Captures) > 0 {
		match.Span = in.span(g.Index, g.Length)
		match.Groups.Pattern = string(in.raw[match.Span.Start:match.Span.End])
	}
	if g := m.GroupByName(GroupEnd); g != nil && len(g.Captures) > 0 {
		match.Groups.End = string(in.raw[in.byteOffset(g.Index):in.byteOffset(g.Index+g.Length)])
	}
	return match
}
