package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/CompassSecurity/custompatterns/pkg/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func document(endOffset string) string {
	return `name: Tokens
patterns:
  - name: Token
    type: token
    regex:
      version: 0.1
      pattern: tok_[a-z]{4}
    test:
      data: "TOKEN = 'tok_abcd'"
      start_offset: 9
      end_offset: ` + endOffset + `
    expected:
      - name: sample.txt
        start_offset: 4
        end_offset: 12
`
}

func setup(t *testing.T, doc, sample string) (string, *config.Settings) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "patterns.yml"), []byte(doc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.txt"), []byte(sample), 0o644))

	settings, err := config.Load(config.New(afero.NewMemMapFs()), "")
	require.NoError(t, err)
	return dir, settings
}

func TestNewTestCmd(t *testing.T) {
	cmd := NewTestCmd()
	assert.Equal(t, "test [path]", cmd.Use)
	assert.Equal(t, "Testing", cmd.GroupID)
}

func TestRun(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		sample string
		errMsg string
	}{
		{name: "all pass", doc: document("17"), sample: "key=tok_wxyz"},
		{name: "wrong span", doc: document("16"), sample: "key=tok_wxyz", errMsg: "1 of 2 self tests failed"},
		{name: "unexpected sample match", doc: document("17"), sample: "key=tok_wxyz  tok_qrst", errMsg: "1 of 3 self tests failed"},
		{name: "invalid document", doc: "name: Tokens\npatterns:\n  - name: Token\n    type: a\n    regex:\n      pattern: (a\n", errMsg: "validation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, settings := setup(t, tt.doc, tt.sample)

			err := Run(context.Background(), dir, settings, false)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}
