// Package combine merges several pattern documents into one document that can
// be uploaded in a single step.
package combine

import (
	"slices"

	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/rs/zerolog/log"
)

// DefaultName is the name of a combined document.
const DefaultName = "Collection of custom patterns"

type Options struct {
	Name   string
	Filter patterns.Filter
	// StripFixtures drops tests and expected matches, which the upload does
	// not need.
	StripFixtures bool
}

// Combine returns a new document holding the patterns of sets that pass the
// filter, in document order. Patterns are copied.
func Combine(sets []*patterns.PatternSet, opts Options) *patterns.PatternSet {
	name := opts.Name
	if name == "" {
		name = DefaultName
	}
	combined := &patterns.PatternSet{Name: name, Patterns: []patterns.Pattern{}}

	seen := map[string]string{}
	for _, set := range sets {
		log.Debug().Str("document", set.Path).Int("patterns", len(set.Patterns)).Msg("Combining document")
		for _, p := range set.Patterns {
			if !opts.Filter.Match(p) {
				log.Debug().Str("name", p.Name).Str("type", p.Type).Msg("Excluding pattern")
				continue
			}
			if other, ok := seen[p.Name]; ok {
				log.Warn().Str("name", p.Name).Str("document", set.Path).Str("first", other).Msg("Pattern name is defined more than once")
			}
			seen[p.Name] = set.Path
			combined.Patterns = append(combined.Patterns, copyPattern(p, opts.StripFixtures))
		}
	}
	return combined
}

func copyPattern(p patterns.Pattern, strip bool) patterns.Pattern {
	p.Comments = slices.Clone(p.Comments)
	p.Regex.AdditionalMatch = slices.Clone(p.Regex.AdditionalMatch)
	p.Regex.AdditionalNotMatch = slices.Clone(p.Regex.AdditionalNotMatch)
	if strip {
		p.Test = nil
		p.Expected = nil
		return p
	}
	if p.Test != nil {
		test := *p.Test
		p.Test = &test
	}
	p.Expected = slices.Clone(p.Expected)
	return p
}
