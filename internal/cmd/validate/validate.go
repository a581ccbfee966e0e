package validate

import (
	"fmt"

	"github.com/CompassSecurity/custompatterns/internal/cmd/common"
	"github.com/CompassSecurity/custompatterns/pkg/config"
	"github.com/CompassSecurity/custompatterns/pkg/engine"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/CompassSecurity/custompatterns/pkg/report"
	pkgvalidate "github.com/CompassSecurity/custompatterns/pkg/validate"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var requireTests bool

func NewValidateCmd() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate pattern documents",
		Long: `Load every patterns.yml below path and report duplicate names, regular expressions
that do not compile and test offsets that do not fit their data.`,
		Example: `custompatterns validate ./patterns --require-tests`,
		Args:    cobra.MaximumNArgs(1),
		GroupID: "Authoring",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := common.LoadSettings()
			if err != nil {
				return err
			}
			_, err = Run(common.PatternPath(args), settings, requireTests)
			return err
		},
	}

	validateCmd.Flags().BoolVar(&requireTests, "require-tests", false, "Warn about patterns without test or expected matches")

	return validateCmd
}

// Run loads and validates every document below path and returns the loaded
// sets. Any finding with error severity fails the run.
func Run(path string, settings *config.Settings, requireTests bool) ([]*patterns.PatternSet, error) {
	sets, err := common.LoadPatterns(path, settings)
	if err != nil {
		return nil, err
	}
	eng, err := common.NewEngine(settings)
	if err != nil {
		return nil, err
	}
	return sets, Check(sets, eng, requireTests)
}

// Check validates sets with eng and reports every finding.
func Check(sets []*patterns.PatternSet, eng engine.MatchEngine, requireTests bool) error {
	errors, warnings := 0, 0
	for _, set := range sets {
		findings := pkgvalidate.Validate(set, pkgvalidate.Options{Engine: eng, RequireTests: requireTests})
		report.ReportFindings(findings)
		errors += findings.Count(pkgvalidate.SeverityError)
		warnings += findings.Count(pkgvalidate.SeverityWarning)
	}

	log.Info().Int("documents", len(sets)).Int("errors", errors).Int("warnings", warnings).Msg("Validation done")
	if errors > 0 {
		return fmt.Errorf("validation failed with %d errors", errors)
	}
	return nil
}
