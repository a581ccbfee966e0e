package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/CompassSecurity/custompatterns/pkg/logging"
	"github.com/h2non/filetype"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/wandb/parallel"
)

type Options struct {
	// Threads bounds the number of files scanned concurrently.
	Threads int
	// AllFiles also scans files detected as images, media, fonts or archives.
	AllFiles bool
	// MaxFileSize skips larger files. Zero means no limit.
	MaxFileSize int64
	// ExcludeDirs are directory names that are not descended into.
	ExcludeDirs []string
	OnHit       HitFunc
}

func DefaultOptions() Options {
	return Options{Threads: 4, ExcludeDirs: []string{".git"}}
}

// ErrNotDirectory is returned when the directory to scan does not exist.
var ErrNotDirectory = errors.New("not a directory")

// Directory scans every file below root with sc. Paths in hits are relative
// to root. Unreadable files are counted and skipped.
func Directory(ctx context.Context, fsys afero.Fs, root string, sc *Scanner, opts Options) (*Summary, error) {
	info, err := fsys.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("extra directory %s: %w", root, ErrNotDirectory)
	}

	files, err := listFiles(fsys, root, opts.ExcludeDirs)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("files", len(files)).Str("dir", root).Msg("Collected files to scan")

	summary := newSummary()
	threads := max(opts.Threads, 1)
	group := parallel.Limited(ctx, threads)
	for _, path := range files {
		group.Go(func(ctx context.Context) {
			scanFile(ctx, fsys, root, path, sc, opts, summary)
		})
	}
	group.Wait()

	return summary, ctx.Err()
}

func listFiles(fsys afero.Fs, root string, excludeDirs []string) ([]string, error) {
	var files []string
	err := afero.Walk(fsys, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			log.Debug().Err(err).Str("path", path).Msg("Failed walking path")
			return nil
		}
		if info.IsDir() {
			if path != root && slices.Contains(excludeDirs, info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

func scanFile(ctx context.Context, fsys afero.Fs, root, path string, sc *Scanner, opts Options, summary *Summary) {
	if ctx.Err() != nil {
		return
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	if opts.MaxFileSize > 0 {
		if info, err := fsys.Stat(path); err == nil && info.Size() > opts.MaxFileSize {
			log.Debug().Str("file", rel).Int64("size", info.Size()).Msg("Skipped large file")
			summary.addSkipped()
			return
		}
	}

	content, err := afero.ReadFile(fsys, path)
	if err != nil {
		log.Debug().Err(err).Str("file", rel).Msg("Failed to read file")
		summary.addError()
		return
	}

	if !opts.AllFiles && skipKind(content) {
		kind, _ := filetype.Match(content)
		log.Trace().Str("file", rel).Str("type", kind.MIME.Value).Msg("Skipped non-text file")
		summary.addSkipped()
		return
	}

	summary.addBytes(int64(len(content)), true)
	hits, err := sc.Scan(ctx, content)
	if err != nil {
		log.Error().Err(err).Str("file", rel).Msg("Failed scanning file")
		summary.addError()
	}
	for i := range hits {
		hits[i].Source = logging.SourceExtra
		hits[i].Path = rel
	}
	summary.report(hits, opts.OnHit)
}

// skipKind reports whether content is a known binary format.
func skipKind(content []byte) bool {
	return filetype.IsArchive(content) || filetype.IsImage(content) ||
		filetype.IsVideo(content) || filetype.IsAudio(content) || filetype.IsFont(content)
}
