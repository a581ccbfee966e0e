package random

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/CompassSecurity/custompatterns/pkg/config"
	"github.com/CompassSecurity/custompatterns/pkg/scan"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (string, *config.Settings) {
	t.Helper()
	dir := t.TempDir()
	doc := "name: Digits\npatterns:\n  - name: Digit\n    type: digit\n    regex:\n      pattern: '[0-9]'\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patterns.yml"), []byte(doc), 0o644))

	settings, err := config.Load(config.New(afero.NewMemMapFs()), "")
	require.NoError(t, err)
	settings.Random = config.RandomSettings{Binary: "1KB", ASCII: "2KB", Chunk: "512B"}
	return dir, settings
}

func TestNewRandomCmd(t *testing.T) {
	cmd := NewRandomCmd()
	assert.Equal(t, "random", cmd.Name())
	for _, flag := range []string{"binary", "ascii", "chunk", "seed"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), flag)
	}
}

func TestOptions(t *testing.T) {
	_, settings := setup(t)

	opts, err := Options(settings, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), opts.BinaryBytes)
	assert.Equal(t, int64(2048), opts.ASCIIBytes)
	assert.Equal(t, int64(512), opts.ChunkSize)
	assert.Equal(t, uint64(7), opts.Seed)
	assert.Equal(t, 4, opts.Threads)

	settings.Random.Chunk = "0"
	_, err = Options(settings, 7)
	assert.Error(t, err)

	settings.Random.Binary = "much"
	_, err = Options(settings, 7)
	assert.ErrorContains(t, err, "binary size")
}

func TestRun(t *testing.T) {
	dir, settings := setup(t)

	var hits []scan.Hit
	summary, err := Run(context.Background(), dir, settings, 42, func(hit scan.Hit) { hits = append(hits, hit) })
	require.NoError(t, err)

	assert.Equal(t, int64(3072), summary.Bytes)
	assert.Equal(t, 0, summary.Files)
	require.NotEmpty(t, hits, "printable ASCII contains digits")
	assert.Equal(t, len(hits), summary.TotalHits())
	for _, hit := range hits {
		assert.Equal(t, "random", hit.Path)
	}

	var again []scan.Hit
	_, err = Run(context.Background(), dir, settings, 42, func(hit scan.Hit) { again = append(again, hit) })
	require.NoError(t, err)
	assert.Equal(t, len(hits), len(again), "same seed scans the same data")
}

func TestRunCancelled(t *testing.T) {
	dir, settings := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, dir, settings, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
