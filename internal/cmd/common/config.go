package common

import (
	"errors"
	"fmt"

	"github.com/CompassSecurity/custompatterns/pkg/config"
	"github.com/CompassSecurity/custompatterns/pkg/engine"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Fs is the filesystem all commands read patterns and samples from.
var Fs = afero.NewOsFs()

var (
	// Viper holds the settings of the config file, environment and flags.
	Viper      = config.New(Fs)
	ConfigFile string
)

// ErrNoPatterns is returned when a path holds no pattern documents.
var ErrNoPatterns = errors.New("no " + patterns.FileName + " found")

// AddConfigFlags adds the flags shared by all commands and binds them to Viper.
func AddConfigFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&ConfigFile, "config", "", "Config file (YAML, JSON or TOML)")
	flags.String("engine", engine.NameHybrid, "Regex engine: hybrid, pcre or re2")
	flags.IntP("threads", "t", 4, "Number of patterns or files processed in parallel")
	flags.Duration("match-timeout", engine.DefaultOptions().MatchTimeout, "Maximum duration of a single backtracking match")
	flags.StringSliceP("include", "i", nil, "Only use patterns of these types (glob)")
	flags.StringSliceP("exclude", "x", nil, "Skip patterns of these types (glob)")

	bindFlag(Viper, cmd, config.KeyEngine, "engine")
	bindFlag(Viper, cmd, config.KeyThreads, "threads")
	bindFlag(Viper, cmd, config.KeyMatchTimeout, "match-timeout")
	bindFlag(Viper, cmd, config.KeyInclude, "include")
	bindFlag(Viper, cmd, config.KeyExclude, "exclude")
}

// BindFlag binds a local flag of cmd to key.
func BindFlag(cmd *cobra.Command, key, flag string) {
	if err := Viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		log.Fatal().Err(err).Str("flag", flag).Msg("Failed binding flag")
	}
}

func bindFlag(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		log.Fatal().Err(err).Str("flag", flag).Msg("Failed binding flag")
	}
}

// LoadSettings reads the config file, if any, and validates the result.
func LoadSettings() (*config.Settings, error) {
	settings, err := config.Load(Viper, ConfigFile)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// NewEngine creates the configured regex engine.
func NewEngine(settings *config.Settings) (engine.MatchEngine, error) {
	return engine.New(settings.Engine, settings.EngineOptions())
}

// PatternPath returns the first argument or the current directory.
func PatternPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// LoadPatterns discovers every document below path and applies the type
// filter of settings. Documents left without patterns are dropped.
func LoadPatterns(path string, settings *config.Settings) ([]*patterns.PatternSet, error) {
	sets, err := patterns.Discover(Fs, path, settings.Defaults)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPatterns)
	}

	filter := settings.Filter()
	if filter.IsZero() {
		return sets, nil
	}

	filtered := make([]*patterns.PatternSet, 0, len(sets))
	for _, set := range sets {
		set = filter.Apply(set)
		if len(set.Patterns) == 0 {
			log.Debug().Str("document", set.Path).Msg("No patterns left after filtering")
			continue
		}
		filtered = append(filtered, set)
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%s: %w after filtering", path, ErrNoPatterns)
	}
	return filtered, nil
}
