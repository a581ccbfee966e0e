package dryrun

import (
	"context"
	"fmt"
	"io"

	"github.com/CompassSecurity/custompatterns/internal/cmd/common"
	"github.com/CompassSecurity/custompatterns/pkg/config"
	"github.com/CompassSecurity/custompatterns/pkg/report"
	"github.com/CompassSecurity/custompatterns/pkg/scan"
	"github.com/CompassSecurity/custompatterns/pkg/system"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type DryRunOptions struct {
	Extra       string
	AllFiles    bool
	MaxFileSize string
	// Lines prints grep-like lines instead of hit log events.
	Lines bool
	Color bool
}

var options = DryRunOptions{}

func NewDryRunCmd() *cobra.Command {
	dryRunCmd := &cobra.Command{
		Use:   "dry-run [path] --extra DIR",
		Short: "Scan a directory with all patterns",
		Long: `Scan every file of another directory with all patterns to spot false positives
before the patterns are published. Binary, media and archive files are skipped unless
--all-files is set.`,
		Example: `custompatterns dry-run ./patterns --extra ~/src/project --include 'aws_*'`,
		Args:    cobra.MaximumNArgs(1),
		GroupID: "Testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := common.LoadSettings()
			if err != nil {
				return err
			}
			opts := options
			opts.Lines = !common.JsonLogoutput
			opts.Color = common.LogColor

			ctx, cancel := system.ShutdownContext(cmd.Context())
			defer cancel()
			_, err = Run(ctx, cmd.OutOrStdout(), common.PatternPath(args), settings, opts)
			return err
		},
	}

	dryRunCmd.Flags().StringVarP(&options.Extra, "extra", "e", "", "Directory to scan")
	err := dryRunCmd.MarkFlagRequired("extra")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed marking extra required")
	}
	dryRunCmd.Flags().BoolVar(&options.AllFiles, "all-files", false, "Also scan binary, media and archive files")
	dryRunCmd.Flags().StringVar(&options.MaxFileSize, "max-file-size", "", "Skip files larger than this, e.g. 100MB")

	return dryRunCmd
}

// Run scans opts.Extra with every pattern below path.
func Run(ctx context.Context, out io.Writer, path string, settings *config.Settings, opts DryRunOptions) (*scan.Summary, error) {
	scanOpts := scan.DefaultOptions()
	scanOpts.Threads = settings.Threads
	scanOpts.AllFiles = opts.AllFiles
	if opts.MaxFileSize != "" {
		size, err := config.ParseSize(opts.MaxFileSize, "max file size")
		if err != nil {
			return nil, err
		}
		scanOpts.MaxFileSize = size
	}
	scanOpts.OnHit = HitPrinter(out, opts.Lines, opts.Color)

	sc, err := NewScanner(path, settings)
	if err != nil {
		return nil, err
	}

	log.Info().Str("extra", opts.Extra).Int("patterns", sc.Len()).Msg("Scanning directory")
	summary, err := scan.Directory(ctx, common.Fs, opts.Extra, sc, scanOpts)
	if err != nil {
		return nil, err
	}
	report.ReportSummary("extra", summary)
	return summary, nil
}

// HitPrinter prints hits as grep-like lines to out, or logs them as hit
// events when lines is false.
func HitPrinter(out io.Writer, lines, colored bool) scan.HitFunc {
	return func(hit scan.Hit) {
		if lines {
			_, _ = fmt.Fprintln(out, report.HitLine(hit, colored))
			return
		}
		report.ReportHit(hit)
	}
}

// NewScanner loads every document below path and compiles its patterns.
func NewScanner(path string, settings *config.Settings) (*scan.Scanner, error) {
	sets, err := common.LoadPatterns(path, settings)
	if err != nil {
		return nil, err
	}
	eng, err := common.NewEngine(settings)
	if err != nil {
		return nil, err
	}
	return scan.NewScanner(sets, eng, settings.Threads)
}
