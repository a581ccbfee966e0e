package test

import (
	"context"
	"fmt"

	"github.com/CompassSecurity/custompatterns/internal/cmd/common"
	"github.com/CompassSecurity/custompatterns/internal/cmd/validate"
	"github.com/CompassSecurity/custompatterns/pkg/config"
	"github.com/CompassSecurity/custompatterns/pkg/report"
	"github.com/CompassSecurity/custompatterns/pkg/selftest"
	"github.com/CompassSecurity/custompatterns/pkg/system"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var requireTests bool

func NewTestCmd() *cobra.Command {
	testCmd := &cobra.Command{
		Use:   "test [path]",
		Short: "Validate and self test pattern documents",
		Long: `Validate every patterns.yml below path, then match each pattern against its embedded
test data and the sample files listed as expected matches. Sample files next to a document
must not produce matches that are not listed.`,
		Example: `custompatterns test ./patterns --engine pcre`,
		Args:    cobra.MaximumNArgs(1),
		GroupID: "Testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := common.LoadSettings()
			if err != nil {
				return err
			}
			ctx, cancel := system.ShutdownContext(cmd.Context())
			defer cancel()
			return Run(ctx, common.PatternPath(args), settings, requireTests)
		},
	}

	testCmd.Flags().BoolVar(&requireTests, "require-tests", false, "Warn about patterns without test or expected matches")

	return testCmd
}

func Run(ctx context.Context, path string, settings *config.Settings, requireTests bool) error {
	sets, err := validate.Run(path, settings, requireTests)
	if err != nil {
		return err
	}
	eng, err := common.NewEngine(settings)
	if err != nil {
		return err
	}

	opts := selftest.DefaultOptions()
	opts.Fs = common.Fs
	opts.Threads = settings.Threads

	var results selftest.Results
	for _, set := range sets {
		log.Info().Str("document", set.Path).Str("name", set.Name).Int("patterns", len(set.Patterns)).Msg("Testing")
		results = append(results, selftest.Run(ctx, set, eng, opts)...)
	}

	if failed := report.ReportResults(results); failed > 0 {
		return fmt.Errorf("%d of %d self tests failed", failed, len(results))
	}
	return ctx.Err()
}
