// Package scan runs pattern documents over data they were not written for: the
// files of another directory and random data. It is used to spot patterns
// that match too much before they are uploaded.
package scan

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/CompassSecurity/custompatterns/pkg/engine"
	"github.com/CompassSecurity/custompatterns/pkg/logging"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/rs/zerolog/log"
	"github.com/rxwycdh/rxhash"
	"github.com/wandb/parallel"
)

// Hit is a single match of a pattern in scanned data.
type Hit struct {
	Source   logging.MatchSource
	Path     string
	Document string
	Pattern  string
	Type     string
	// Offset is added to Match spans to get offsets in the whole input.
	Offset int64
	Match  engine.Match

	order int
}

// HitFunc receives hits. Calls are serialized.
type HitFunc func(Hit)

// Scanner holds every pattern of a group of documents compiled with one engine.
type Scanner struct {
	matchers  []*engine.PatternMatcher
	documents []string
	threads   int
}

// NewScanner compiles all patterns of sets. A pattern that does not compile
// aborts the scan.
func NewScanner(sets []*patterns.PatternSet, eng engine.MatchEngine, threads int) (*Scanner, error) {
	if threads < 1 {
		threads = 1
	}
	s := &Scanner{threads: threads}
	for _, set := range sets {
		for _, p := range set.Patterns {
			m, err := engine.CompilePattern(eng, p, set.Defaults)
			if err != nil {
				return nil, fmt.Errorf("failed to compile pattern %q of %s: %w", p.Name, set.Path, err)
			}
			s.matchers = append(s.matchers, m)
			s.documents = append(s.documents, set.Path)
		}
	}
	return s, nil
}

// Len returns the number of compiled patterns.
func (s *Scanner) Len() int {
	return len(s.matchers)
}

// Scan matches every pattern against data and returns the deduplicated hits
// ordered by offset, then pattern. Path and Source are left for the caller.
func (s *Scanner) Scan(ctx context.Context, data []byte) ([]Hit, error) {
	group := parallel.Collect[[]Hit](parallel.Limited(ctx, s.threads))

	for i, m := range s.matchers {
		group.Go(func(ctx context.Context) ([]Hit, error) {
			matches, err := m.FindAll(data)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", m.Pattern.Name, err)
			}
			hits := make([]Hit, 0, len(matches))
			for _, match := range matches {
				hits = append(hits, Hit{
					Document: s.documents[i],
					Pattern:  m.Pattern.Name,
					Type:     m.Pattern.Type,
					Match:    match,
					order:    i,
				})
			}
			return hits, nil
		})
	}

	results, err := group.Wait()
	hits := slices.Concat(results...)
	slices.SortStableFunc(hits, func(a, b Hit) int {
		if a.Match.Span.Start != b.Match.Span.Start {
			return a.Match.Span.Start - b.Match.Span.Start
		}
		return a.order - b.order
	})
	return deduplicateHits(hits), err
}

// deduplicateHits drops hits of the same pattern type at the same span, as
// produced when a pattern is loaded from two documents.
func deduplicateHits(hits []Hit) []Hit {
	type key struct {
		Type string
		Span patterns.Span
	}
	seen := map[string]bool{}
	deduped := hits[:0]
	for _, hit := range hits {
		hash, err := rxhash.HashStruct(key{Type: hit.Type, Span: hit.Match.Span})
		if err != nil {
			log.Debug().Err(err).Msg("Failed hashing hit")
			deduped = append(deduped, hit)
			continue
		}
		if seen[hash] {
			continue
		}
		seen[hash] = true
		deduped = append(deduped, hit)
	}
	return deduped
}

// Summary counts what a scan processed.
type Summary struct {
	mu      sync.Mutex
	Bytes   int64
	Files   int
	Skipped int
	Errors  int
	// Hits counts hits per pattern name.
	Hits map[string]int
}

func newSummary() *Summary {
	return &Summary{Hits: map[string]int{}}
}

// TotalHits returns the number of hits over all patterns.
func (s *Summary) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.Hits {
		total += n
	}
	return total
}

// PatternNames returns the names of patterns with hits, sorted.
func (s *Summary) PatternNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.Hits))
	for name := range s.Hits {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (s *Summary) addBytes(n int64, file bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Bytes += n
	if file {
		s.Files++
	}
}

func (s *Summary) addSkipped() {
	s.mu.Lock()
	s.Skipped++
	s.mu.Unlock()
}

func (s *Summary) addError() {
	s.mu.Lock()
	s.Errors++
	s.mu.Unlock()
}

// report counts hits and hands them to fn while holding the summary lock.
func (s *Summary) report(hits []Hit, fn HitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, hit := range hits {
		s.Hits[hit.Pattern]++
		if fn != nil {
			fn(hit)
		}
	}
}
