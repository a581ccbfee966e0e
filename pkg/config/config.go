// Package config loads the settings shared by all commands from a config file,
// CUSTOMPATTERNS_* environment variables and command line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/CompassSecurity/custompatterns/pkg/engine"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const EnvPrefix = "CUSTOMPATTERNS"

// Keys shared between the config file, environment and flags.
const (
	KeyDefaultsStart = "defaults.start"
	KeyDefaultsEnd   = "defaults.end"
	KeyEngine        = "engine"
	KeyThreads       = "threads"
	KeyMatchTimeout  = "match_timeout"
	KeyInclude       = "include"
	KeyExclude       = "exclude"
	KeyGitHubURL     = "github.url"
	KeyGitHubToken   = "github.token"
	KeyRandomBinary  = "random.binary"
	KeyRandomASCII   = "random.ascii"
	KeyRandomChunk   = "random.chunk"
)

type Settings struct {
	Defaults     patterns.Defaults `mapstructure:"defaults"`
	Engine       string            `mapstructure:"engine"`
	Threads      int               `mapstructure:"threads"`
	MatchTimeout time.Duration     `mapstructure:"match_timeout"`
	// Include and Exclude filter patterns by type.
	Include []string       `mapstructure:"include"`
	Exclude []string       `mapstructure:"exclude"`
	GitHub  GitHubSettings `mapstructure:"github"`
	Random  RandomSettings `mapstructure:"random"`
}

type GitHubSettings struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
}

// RandomSettings are human readable sizes, e.g. "1GB".
type RandomSettings struct {
	Binary string `mapstructure:"binary"`
	ASCII  string `mapstructure:"ascii"`
	Chunk  string `mapstructure:"chunk"`
}

// New returns a viper instance reading from fsys with all defaults set.
func New(fsys afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fsys)

	d := patterns.DefaultBoundaries()
	v.SetDefault(KeyDefaultsStart, d.Start)
	v.SetDefault(KeyDefaultsEnd, d.End)
	v.SetDefault(KeyEngine, engine.NameHybrid)
	v.SetDefault(KeyThreads, 4)
	v.SetDefault(KeyMatchTimeout, engine.DefaultOptions().MatchTimeout)
	v.SetDefault(KeyInclude, []string{})
	v.SetDefault(KeyExclude, []string{})
	v.SetDefault(KeyGitHubURL, "https://api.github.com/")
	v.SetDefault(KeyRandomBinary, "1GB")
	v.SetDefault(KeyRandomASCII, "1GB")
	v.SetDefault(KeyRandomChunk, "100MB")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyGitHubToken, EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")
	return v
}

// Load reads the optional config file at path into v and decodes the result.
func Load(v *viper.Viper, path string) (*Settings, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &s, nil
}

// Validate checks the settings every command relies on.
func (s *Settings) Validate() error {
	if err := ValidateEngine(s.Engine); err != nil {
		return err
	}
	if err := ValidateThreadCount(s.Threads); err != nil {
		return err
	}
	if s.MatchTimeout <= 0 {
		return fmt.Errorf("match timeout must be positive, got %s", s.MatchTimeout)
	}
	return nil
}

// EngineOptions returns the options engine.New is called with.
func (s *Settings) EngineOptions() engine.Options {
	return engine.Options{MatchTimeout: s.MatchTimeout}
}

// Filter returns the type filter of the include and exclude settings.
func (s *Settings) Filter() patterns.Filter {
	return patterns.Filter{IncludeTypes: s.Include, ExcludeTypes: s.Exclude}
}
