package config

import (
	"strings"
	"testing"
	"time"

	"github.com/CompassSecurity/custompatterns/pkg/engine"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	s, err := Load(New(afero.NewMemMapFs()), "")
	require.NoError(t, err)

	assert.Equal(t, patterns.DefaultBoundaries(), s.Defaults)
	assert.Equal(t, engine.NameHybrid, s.Engine)
	assert.Equal(t, 4, s.Threads)
	assert.Equal(t, 5*time.Second, s.MatchTimeout)
	assert.Equal(t, "1GB", s.Random.Binary)
	assert.Equal(t, "100MB", s.Random.Chunk)
	assert.True(t, s.Filter().IsZero())
	assert.NoError(t, s.Validate())
}

func TestLoadFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/etc/custompatterns.yml", []byte(`
defaults:
  start: '\b'
engine: pcre
threads: 8
match_timeout: 250ms
exclude:
  - generic_*
random:
  binary: 10MB
`), 0o644))

	s, err := Load(New(fsys), "/etc/custompatterns.yml")
	require.NoError(t, err)

	assert.Equal(t, `\b`, s.Defaults.Start)
	assert.Equal(t, patterns.DefaultEnd, s.Defaults.End)
	assert.Equal(t, engine.NamePCRE, s.Engine)
	assert.Equal(t, 8, s.Threads)
	assert.Equal(t, 250*time.Millisecond, s.MatchTimeout)
	assert.Equal(t, 250*time.Millisecond, s.EngineOptions().MatchTimeout)
	assert.Equal(t, []string{"generic_*"}, s.Filter().ExcludeTypes)
	assert.Equal(t, "10MB", s.Random.Binary)
	assert.Equal(t, "1GB", s.Random.ASCII)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(afero.NewMemMapFs()), "/nope.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("CUSTOMPATTERNS_ENGINE", "re2")
	t.Setenv("CUSTOMPATTERNS_THREADS", "2")
	t.Setenv("GITHUB_TOKEN", "ghp_test")

	s, err := Load(New(afero.NewMemMapFs()), "")
	require.NoError(t, err)

	assert.Equal(t, engine.NameRE2, s.Engine)
	assert.Equal(t, 2, s.Threads)
	assert.Equal(t, "ghp_test", s.GitHub.Token)
}

func TestSettingsValidate(t *testing.T) {
	valid := func() *Settings {
		return &Settings{Engine: engine.NameRE2, Threads: 4, MatchTimeout: time.Second}
	}

	tests := []struct {
		name   string
		modify func(*Settings)
		errMsg string
	}{
		{name: "valid", modify: func(*Settings) {}},
		{name: "unknown engine", modify: func(s *Settings) { s.Engine = "hyperscan" }, errMsg: "unknown match engine"},
		{name: "no threads", modify: func(s *Settings) { s.Threads = 0 }, errMsg: "at least 1"},
		{name: "zero timeout", modify: func(s *Settings) { s.MatchTimeout = 0 }, errMsg: "match timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.modify(s)
			err := s.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantError bool
		errMsg    string
	}{
		{name: "valid https url", url: "https://api.github.com/"},
		{name: "valid http url", url: "http://localhost:8080"},
		{name: "empty url", url: "", wantError: true, errMsg: "cannot be empty"},
		{name: "no scheme", url: "api.github.com", wantError: true, errMsg: "must include a scheme"},
		{name: "invalid url", url: "ht!tp://invalid", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url, "GitHub URL")
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.errMsg != "" {
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	size, err := ParseSize("2MB", "binary size")
	require.NoError(t, err)
	assert.Equal(t, int64(2*1024*1024), size)

	_, err = ParseSize("huge", "binary size")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to parse binary size"))
}

func TestValidateToken(t *testing.T) {
	assert.NoError(t, ValidateToken("ghp_x", "GitHub token"))
	assert.EqualError(t, ValidateToken("", "GitHub token"), "GitHub token cannot be empty")
}

func TestValidateThreadCount(t *testing.T) {
	tests := []struct {
		threads   int
		wantError bool
	}{
		{threads: 1},
		{threads: 100},
		{threads: 0, wantError: true},
		{threads: -1, wantError: true},
		{threads: 101, wantError: true},
	}

	for _, tt := range tests {
		err := ValidateThreadCount(tt.threads)
		if tt.wantError {
			assert.Error(t, err, "threads=%d", tt.threads)
		} else {
			assert.NoError(t, err, "threads=%d", tt.threads)
		}
	}
}

func TestParseRepository(t *testing.T) {
	tests := []struct {
		input     string
		owner     string
		name      string
		wantError bool
	}{
		{input: "octo/patterns", owner: "octo", name: "patterns"},
		{input: "octo", wantError: true},
		{input: "/patterns", wantError: true},
		{input: "octo/", wantError: true},
		{input: "octo/patterns/extra", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			owner, name, err := ParseRepository(tt.input)
			if tt.wantError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.owner, owner)
			assert.Equal(t, tt.name, name)
		})
	}
}
