// Package selftest runs the fixtures embedded in pattern documents and the
// expected matches in sample files next to them.
package selftest

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"slices"
	"sort"

	"github.com/CompassSecurity/custompatterns/pkg/engine"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/wandb/parallel"
)

type Options struct {
	// Fs reads sample files. Defaults to the OS filesystem.
	Fs afero.Fs
	// Threads bounds the number of patterns tested concurrently.
	Threads int
	// IgnoreFiles are file names in a pattern directory that are not samples.
	IgnoreFiles []string
}

// DefaultOptions returns the options used by the test command.
func DefaultOptions() Options {
	return Options{
		Fs:          afero.NewOsFs(),
		Threads:     4,
		IgnoreFiles: []string{patterns.FileName},
	}
}

type patternResults struct {
	index   int
	results Results
}

// Run tests every pattern of set with eng. Results are ordered by pattern.
func Run(ctx context.Context, set *patterns.PatternSet, eng engine.MatchEngine, opts Options) Results {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if !slices.Contains(opts.IgnoreFiles, patterns.FileName) {
		opts.IgnoreFiles = append(slices.Clone(opts.IgnoreFiles), patterns.FileName)
	}

	r := &runner{set: set, engine: eng, opts: opts}
	group := parallel.Collect[patternResults](parallel.Limited(ctx, opts.Threads))
	for i, p := range set.Patterns {
		group.Go(func(ctx context.Context) (patternResults, error) {
			return patternResults{index: i, results: r.runPattern(ctx, p)}, nil
		})
	}

	collected, err := group.Wait()
	if err != nil {
		log.Error().Stack().Err(err).Msg("Failed waiting for parallel self tests")
	}

	sort.Slice(collected, func(i, j int) bool {
		return collected[i].index < collected[j].index
	})
	var results Results
	for _, c := range collected {
		results = append(results, c.results...)
	}
	return results
}

type runner struct {
	set    *patterns.PatternSet
	engine engine.MatchEngine
	opts   Options
}

func (r *runner) result(p patterns.Pattern, subject string) Result {
	return Result{Document: r.set.Path, Pattern: p.Name, Type: p.Type, Subject: subject}
}

func (r *runner) runPattern(ctx context.Context, p patterns.Pattern) Results {
	if err := ctx.Err(); err != nil {
		res := r.result(p, SubjectFixture)
		res.Status, res.Err = StatusEngineError, err
		return Results{res}
	}

	cp, err := engine.CompilePattern(r.engine, p, r.set.Defaults)
	if err != nil {
		res := r.result(p, SubjectFixture)
		res.Status, res.Err = StatusEngineError, err
		return Results{res}
	}

	var results Results
	if p.Test != nil {
		results = append(results, r.runFixture(cp))
	}
	if len(p.Expected) > 0 {
		results = append(results, r.runExpected(cp)...)
	}
	if len(results) == 0 {
		log.Debug().Str("pattern", p.Name).Msg("No test or expected matches defined")
	}
	return results
}

func (r *runner) runFixture(cp *engine.PatternMatcher) Result {
	res := r.result(cp.Pattern, SubjectFixture)
	expected := cp.Pattern.Test.Span()
	res.Expected = &expected

	outcome := cp.Find([]byte(cp.Pattern.Test.Data))
	switch outcome.Kind {
	case engine.KindNoMatch:
		res.Status = StatusNoMatch
	case engine.KindError:
		res.Status, res.Err = StatusEngineError, outcome.Err
	case engine.KindMatch:
		m := outcome.Match
		res.Match = &m
		res.Actual = []patterns.Span{m.Span}
		if m.Span == expected {
			res.Status = StatusPassed
		} else {
			res.Status = StatusWrongSpan
			res.Err = &TestFailure{Expected: expected, Actual: res.Actual}
		}
	}
	return res
}

type sample struct {
	matches []engine.Match
	err     error
}

func (r *runner) runExpected(cp *engine.PatternMatcher) Results {
	samples := map[string]*sample{}
	scan := func(name string) (*sample, []byte, error) {
		path := filepath.Join(r.set.Dir, name)
		if !filepath.IsLocal(name) {
			return nil, nil, &MissingFixtureFileError{Path: path, Err: ErrSampleOutsideDir}
		}
		content, err := afero.ReadFile(r.opts.Fs, path)
		if err != nil {
			return nil, nil, &MissingFixtureFileError{Path: path, Err: err}
		}
		if s, ok := samples[name]; ok {
			return s, content, nil
		}
		matches, err := cp.FindAll(content)
		s := &sample{matches: matches, err: err}
		samples[name] = s
		return s, content, nil
	}

	var results Results
	for _, expected := range cp.Pattern.Expected {
		res := r.result(cp.Pattern, expected.Name)
		s, content, err := scan(expected.Name)
		if err != nil {
			res.Status, res.Err = StatusMissingFile, err
			results = append(results, res)
			continue
		}

		span := expected.Span(len(content))
		res.Expected = &span
		switch {
		case s.err != nil:
			res.Status, res.Err = StatusEngineError, s.err
		case len(s.matches) == 0:
			res.Status = StatusNoMatch
		default:
			for _, m := range s.matches {
				res.Actual = append(res.Actual, m.Span)
				if m.Span == span {
					res.Match = &m
				}
			}
			if res.Match != nil {
				res.Status = StatusPassed
			} else {
				res.Status = StatusWrongSpan
				res.Err = &TestFailure{Expected: span, Actual: res.Actual}
			}
		}
		results = append(results, res)
	}

	return append(results, r.runUnexpected(cp, scan)...)
}

// runUnexpected reports matches in sample files that no expected entry lists.
func (r *runner) runUnexpected(cp *engine.PatternMatcher, scan func(string) (*sample, []byte, error)) Results {
	entries, err := afero.ReadDir(r.opts.Fs, r.set.Dir)
	if err != nil {
		log.Error().Err(err).Str("dir", r.set.Dir).Msg("Failed listing sample files")
		return nil
	}

	var results Results
	for _, entry := range entries {
		if entry.IsDir() || slices.Contains(r.opts.IgnoreFiles, entry.Name()) {
			continue
		}
		s, content, err := scan(entry.Name())
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Debug().Err(err).Str("file", entry.Name()).Msg("Failed reading sample file")
			}
			continue
		}
		if s.err != nil {
			continue
		}
		for _, m := range s.matches {
			if r.isExpected(cp.Pattern, entry.Name(), m.Span, len(content)) {
				continue
			}
			res := r.result(cp.Pattern, entry.Name())
			res.Status = StatusUnexpected
			res.Actual = []patterns.Span{m.Span}
			res.Match = &m
			results = append(results, res)
		}
	}
	return results
}

func (r *runner) isExpected(p patterns.Pattern, name string, span patterns.Span, length int) bool {
	for _, expected := range p.Expected {
		if expected.Name == name && expected.Span(length) == span {
			return true
		}
	}
	return false
}
