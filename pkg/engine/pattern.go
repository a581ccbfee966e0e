package engine

import (
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/rs/zerolog/log"
)

// PatternMatcher is a pattern compiled together with its additional match
// requirements. It is safe for concurrent use.
type PatternMatcher struct {
	Pattern patterns.Pattern

	engine  MatchEngine
	expr    CompiledExpr
	must    []Predicate
	mustNot []Predicate
}

// CompilePattern compiles p with eng, using d for missing boundaries.
func CompilePattern(eng MatchEngine, p patterns.Pattern, d patterns.Defaults) (*PatternMatcher, error) {
	expr, err := eng.Compile(ExpressionFor(p, d))
	if err != nil {
		return nil, err
	}

	m := &PatternMatcher{Pattern: p, engine: eng, expr: expr}
	for _, regex := range p.Regex.AdditionalMatch {
		pred, err := eng.CompilePredicate(regex)
		if err != nil {
			return nil, err
		}
		m.must = append(m.must, pred)
	}
	for _, regex := range p.Regex.AdditionalNotMatch {
		pred, err := eng.CompilePredicate(regex)
		if err != nil {
			return nil, err
		}
		m.mustNot = append(m.mustNot, pred)
	}
	return m, nil
}

// Accept applies the additional match requirements to the pattern group.
func (m *PatternMatcher) Accept(match Match) (bool, error) {
	for _, pred := range m.must {
		ok, err := pred.MatchPrefix(match.Groups.Pattern)
		if err != nil || !ok {
			return false, err
		}
	}
	for _, pred := range m.mustNot {
		ok, err := pred.MatchPrefix(match.Groups.Pattern)
		if err != nil || ok {
			return false, err
		}
	}
	return true, nil
}

// Find returns the first accepted match in text.
func (m *PatternMatcher) Find(text []byte) Outcome {
	if len(m.must) == 0 && len(m.mustNot) == 0 {
		return m.engine.Find(m.expr, text)
	}
	matches, err := m.FindAll(text)
	if err != nil {
		return Failed(err)
	}
	if len(matches) == 0 {
		return NoMatch()
	}
	return Matched(matches[0])
}

// FindAll returns every accepted match in text.
func (m *PatternMatcher) FindAll(text []byte) ([]Match, error) {
	matches, err := m.engine.FindAll(m.expr, text)
	if err != nil {
		return nil, err
	}
	accepted := matches[:0]
	for _, match := range matches {
		ok, err := m.Accept(match)
		if err != nil {
			return nil, err
		}
		if ok {
			accepted = append(accepted, match)
			continue
		}
		log.Debug().Str("pattern", m.Pattern.Name).Str("match", match.Groups.Pattern).Msg("Additional match requirements did not hold")
	}
	return accepted, nil
}
