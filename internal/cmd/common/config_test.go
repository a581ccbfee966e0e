package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CompassSecurity/custompatterns/pkg/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocument(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patterns.yml"), []byte(content), 0o644))
}

func TestPatternPath(t *testing.T) {
	assert.Equal(t, ".", PatternPath(nil))
	assert.Equal(t, "patterns", PatternPath([]string{"patterns"}))
}

func TestLoadPatterns(t *testing.T) {
	root := t.TempDir()
	writeDocument(t, filepath.Join(root, "aws"), "name: AWS\npatterns:\n  - name: AWS key\n    type: aws_key\n    regex:\n      pattern: AKIA[0-9A-Z]{16}\n")
	writeDocument(t, filepath.Join(root, "slack"), "name: Slack\npatterns:\n  - name: Slack token\n    type: slack_token\n    regex:\n      pattern: xox[bp]-[0-9a-z-]+\n")

	settings, err := config.Load(config.New(afero.NewMemMapFs()), "")
	require.NoError(t, err)

	sets, err := LoadPatterns(root, settings)
	require.NoError(t, err)
	assert.Len(t, sets, 2)

	settings.Include = []string{"aws_*"}
	sets, err = LoadPatterns(root, settings)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "AWS", sets[0].Name)

	settings.Include = []string{"github_*"}
	_, err = LoadPatterns(root, settings)
	assert.ErrorIs(t, err, ErrNoPatterns)

	_, err = LoadPatterns(t.TempDir(), settings)
	assert.ErrorIs(t, err, ErrNoPatterns)
}

func TestNewEngine(t *testing.T) {
	settings, err := config.Load(config.New(afero.NewMemMapFs()), "")
	require.NoError(t, err)

	eng, err := NewEngine(settings)
	require.NoError(t, err)
	assert.Equal(t, "hybrid", eng.Name())

	settings.Engine = "pcre"
	eng, err = NewEngine(settings)
	require.NoError(t, err)
	assert.Equal(t, "pcre", eng.Name())
}
