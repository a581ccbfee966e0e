package combine

import (
	"fmt"
	"io"

	"github.com/CompassSecurity/custompatterns/internal/cmd/common"
	"github.com/CompassSecurity/custompatterns/pkg/config"
	pkgcombine "github.com/CompassSecurity/custompatterns/pkg/combine"
	"github.com/CompassSecurity/custompatterns/pkg/format"
	"github.com/CompassSecurity/custompatterns/pkg/patterns"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type CombineOptions struct {
	Name          string
	IncludeNames  []string
	ExcludeNames  []string
	IncludeTypes  []string
	ExcludeTypes  []string
	StripFixtures bool
	// Output is a file path, stdout when empty.
	Output string
}

var options = CombineOptions{}

func NewCombineCmd() *cobra.Command {
	combineCmd := &cobra.Command{
		Use:   "combine [path]",
		Short: "Merge pattern documents into one",
		Long: `Merge the patterns of every patterns.yml below path into a single document, e.g. to
upload them in one step. Patterns can be selected by name and type globs.`,
		Example: `custompatterns combine ./patterns --exclude-type 'experimental_*' --strip-fixtures -o combined.yml`,
		Args:    cobra.MaximumNArgs(1),
		GroupID: "Authoring",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := common.LoadSettings()
			if err != nil {
				return err
			}
			return Run(cmd.OutOrStdout(), common.PatternPath(args), settings, options)
		},
	}

	combineCmd.Flags().StringVar(&options.Name, "name", pkgcombine.DefaultName, "Name of the combined document")
	combineCmd.Flags().StringSliceVar(&options.IncludeNames, "include-name", nil, "Only combine patterns with these names (glob)")
	combineCmd.Flags().StringSliceVar(&options.ExcludeNames, "exclude-name", nil, "Skip patterns with these names (glob)")
	combineCmd.Flags().StringSliceVar(&options.IncludeTypes, "include-type", nil, "Only combine patterns of these types (glob)")
	combineCmd.Flags().StringSliceVar(&options.ExcludeTypes, "exclude-type", nil, "Skip patterns of these types (glob)")
	combineCmd.Flags().BoolVar(&options.StripFixtures, "strip-fixtures", false, "Drop test data and expected matches")
	combineCmd.Flags().StringVarP(&options.Output, "output", "o", "", "Output file, stdout when not set")

	return combineCmd
}

// Run writes the combined document of every pattern below path to
// opts.Output or out.
func Run(out io.Writer, path string, settings *config.Settings, opts CombineOptions) error {
	sets, err := common.LoadPatterns(path, settings)
	if err != nil {
		return err
	}

	combined := pkgcombine.Combine(sets, pkgcombine.Options{
		Name: opts.Name,
		Filter: patterns.Filter{
			IncludeNames: opts.IncludeNames,
			ExcludeNames: opts.ExcludeNames,
			IncludeTypes: opts.IncludeTypes,
			ExcludeTypes: opts.ExcludeTypes,
		},
		StripFixtures: opts.StripFixtures,
	})
	if len(combined.Patterns) == 0 {
		return fmt.Errorf("%s: no patterns left to combine", path)
	}

	data, err := patterns.Marshal(combined)
	if err != nil {
		return err
	}

	if opts.Output == "" {
		_, err = out.Write(data)
		return err
	}
	if err := afero.WriteFile(common.Fs, opts.Output, data, format.FilePublicRead); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.Output, err)
	}
	log.Info().Str("output", opts.Output).Int("documents", len(sets)).Int("patterns", len(combined.Patterns)).Msg("Combined patterns")
	return nil
}
