package patterns

import (
	"path"

	"github.com/rs/zerolog/log"
)

// Filter selects patterns by type and name using shell globs. Empty include
// lists select everything; excludes always win.
type Filter struct {
	IncludeTypes []string
	ExcludeTypes []string
	IncludeNames []string
	ExcludeNames []string
}

// IsZero reports whether the filter selects every pattern.
func (f Filter) IsZero() bool {
	return len(f.IncludeTypes) == 0 && len(f.ExcludeTypes) == 0 &&
		len(f.IncludeNames) == 0 && len(f.ExcludeNames) == 0
}

// Match reports whether p passes the filter.
func (f Filter) Match(p Pattern) bool {
	if len(f.IncludeTypes) > 0 || len(f.IncludeNames) > 0 {
		if !globMatch(p.Type, f.IncludeTypes) && !globMatch(p.Name, f.IncludeNames) {
			return false
		}
	}
	if globMatch(p.Type, f.ExcludeTypes) || globMatch(p.Name, f.ExcludeNames) {
		return false
	}
	return true
}

// Apply returns a copy of set holding only the matching patterns.
func (f Filter) Apply(set *PatternSet) *PatternSet {
	filtered := *set
	filtered.Patterns = make([]Pattern, 0, len(set.Patterns))
	for _, p := range set.Patterns {
		if f.Match(p) {
			filtered.Patterns = append(filtered.Patterns, p)
			continue
		}
		log.Debug().Str("name", p.Name).Str("type", p.Type).Msg("Excluding pattern")
	}
	return &filtered
}

func globMatch(field string, globs []string) bool {
	for _, glob := range globs {
		if ok, err := path.Match(glob, field); err == nil && ok {
			return true
		}
		if glob == field {
			return true
		}
	}
	return false
}
