package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/CompassSecurity/custompatterns/pkg/format"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// DirName is the directory next to a pattern document holding its snapshots.
const DirName = "__snapshots__"

// ErrNoSnapshot is returned by Check when no snapshot was recorded yet.
var ErrNoSnapshot = errors.New("no snapshot recorded")

// Manager records and checks the snapshots of one pattern directory.
type Manager struct {
	Fs     afero.Fs
	Dir    string
	Source AlertSource
}

// Path returns the recorded snapshot file of secretType.
func (m *Manager) Path(secretType string) string {
	return filepath.Join(m.Dir, DirName, secretType+".csv")
}

// CurrentPath returns the file live alerts are written to by Check.
func (m *Manager) CurrentPath(secretType string) string {
	return filepath.Join(m.Dir, DirName, secretType+"-current.csv")
}

func (m *Manager) fetch(ctx context.Context, secretType string) ([]Row, error) {
	alerts, err := m.Source.Alerts(ctx, secretType)
	if err != nil {
		return nil, err
	}
	return Rows(alerts), nil
}

func (m *Manager) write(path string, rows []Row) error {
	if err := m.Fs.MkdirAll(filepath.Dir(path), format.DirUserGroupRead); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows); err != nil {
		return err
	}
	return afero.WriteFile(m.Fs, path, buf.Bytes(), format.FilePublicRead)
}

// Update records the live alerts of secretType as its snapshot.
func (m *Manager) Update(ctx context.Context, secretType string) ([]Row, error) {
	rows, err := m.fetch(ctx, secretType)
	if err != nil {
		return nil, err
	}
	path := m.Path(secretType)
	if err := m.write(path, rows); err != nil {
		return nil, fmt.Errorf("failed to write snapshot %s: %w", path, err)
	}
	log.Info().Str("snapshot", path).Int("rows", len(rows)).Msg("Updated snapshot")
	return rows, nil
}

// Check compares the live alerts of secretType with its snapshot. The live
// rows are kept in CurrentPath while they differ and removed otherwise.
func (m *Manager) Check(ctx context.Context, secretType string) (*Diff, error) {
	path := m.Path(secretType)
	data, err := afero.ReadFile(m.Fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNoSnapshot)
	}
	if err != nil {
		return nil, err
	}
	expected, err := ReadCSV(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	current, err := m.fetch(ctx, secretType)
	if err != nil {
		return nil, err
	}

	diff, err := Compare(expected, current)
	if err != nil {
		return nil, err
	}

	currentPath := m.CurrentPath(secretType)
	if diff.Empty() {
		if err := m.Fs.Remove(currentPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return diff, nil
	}

	if err := m.write(currentPath, current); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", currentPath, err)
	}
	log.Debug().Str("current", currentPath).Int("added", len(diff.Added)).Int("removed", len(diff.Removed)).Msg("Snapshot differs")
	return diff, nil
}
