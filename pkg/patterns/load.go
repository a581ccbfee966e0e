package patterns

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Load parses the pattern document at path. Boundaries missing from the
// document resolve against d.
func Load(fsys afero.Fs, path string, d Defaults) (*PatternSet, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("reading pattern document: %w", err)
	}
	return Parse(data, path, d)
}

// Parse decodes a pattern document that was read from path.
func Parse(data []byte, path string, d Defaults) (*PatternSet, error) {
	set := &PatternSet{}
	if err := yaml.Unmarshal(data, set); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	if err := checkRequired(set, path); err != nil {
		return nil, err
	}

	set.Path = path
	set.Dir = filepath.Dir(path)
	set.Defaults = d.orDefault()

	log.Debug().Str("path", path).Str("name", set.Name).Int("patterns", len(set.Patterns)).Msg("Loaded pattern document")
	return set, nil
}

func checkRequired(set *PatternSet, path string) error {
	var errs []error
	missing := func(field string) {
		errs = append(errs, &ParseError{Path: path, Field: field, Err: ErrMissingField})
	}

	if strings.TrimSpace(set.Name) == "" {
		missing("name")
	}
	for i, p := range set.Patterns {
		prefix := fmt.Sprintf("patterns[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			missing(prefix + ".name")
		}
		if strings.TrimSpace(p.Type) == "" {
			missing(prefix + ".type")
		}
		if p.Regex.Pattern == "" {
			missing(prefix + ".regex.pattern")
		}
	}
	return errors.Join(errs...)
}

// Discover loads every patterns.yml below root. A file path is loaded as the
// only document, whatever its name. Sets are returned sorted by path; the
// first broken document aborts discovery.
func Discover(fsys afero.Fs, root string, d Defaults) ([]*PatternSet, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("pattern directory not found: %w", err)
	}
	if !info.IsDir() {
		set, err := Load(fsys, root, d)
		if err != nil {
			return nil, err
		}
		return []*PatternSet{set}, nil
	}

	var paths []string
	err = afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}
		if !info.IsDir() && info.Name() == FileName {
			log.Debug().Str("path", path).Msg("Found patterns file")
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	sort.Strings(paths)
	sets := make([]*PatternSet, 0, len(paths))
	for _, path := range paths {
		set, err := Load(fsys, path, d)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

// Marshal renders set as a pattern document.
func Marshal(set *PatternSet) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(set); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
