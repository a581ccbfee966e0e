package random

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"

	"github.com/CompassSecurity/custompatterns/internal/cmd/common"
	"github.com/CompassSecurity/custompatterns/internal/cmd/dryrun"
	"github.com/CompassSecurity/custompatterns/pkg/config"
	"github.com/CompassSecurity/custompatterns/pkg/format"
	"github.com/CompassSecurity/custompatterns/pkg/logging"
	"github.com/CompassSecurity/custompatterns/pkg/report"
	"github.com/CompassSecurity/custompatterns/pkg/scan"
	"github.com/CompassSecurity/custompatterns/pkg/system"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var seed uint64

func NewRandomCmd() *cobra.Command {
	randomCmd := &cobra.Command{
		Use:   "random [path]",
		Short: "Scan random data with all patterns",
		Long: `Generate random binary data, then random printable ASCII text, and scan it with all
patterns. Patterns that match random data are likely to raise false positives.

Press 's' while scanning to print the progress.`,
		Example: `custompatterns random ./patterns --binary 100MB --ascii 1GB --seed 42`,
		Args:    cobra.MaximumNArgs(1),
		GroupID: "Testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := common.LoadSettings()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("seed") {
				seed = rand.Uint64()
			}

			ctx, cancel := system.ShutdownContext(cmd.Context())
			defer cancel()
			onHit := dryrun.HitPrinter(cmd.OutOrStdout(), !common.JsonLogoutput, common.LogColor)
			_, err = Run(ctx, common.PatternPath(args), settings, seed, onHit)
			return err
		},
	}

	randomCmd.Flags().String("binary", "1GB", "Amount of random binary data to scan")
	randomCmd.Flags().String("ascii", "1GB", "Amount of random printable ASCII data to scan")
	randomCmd.Flags().String("chunk", "100MB", "Size of the chunks data is generated and scanned in")
	randomCmd.Flags().Uint64Var(&seed, "seed", 0, "Seed of the random data, random when not set")
	common.BindFlag(randomCmd, config.KeyRandomBinary, "binary")
	common.BindFlag(randomCmd, config.KeyRandomASCII, "ascii")
	common.BindFlag(randomCmd, config.KeyRandomChunk, "chunk")

	return randomCmd
}

// Options converts the size settings.
func Options(settings *config.Settings, seed uint64) (scan.RandomOptions, error) {
	opts := scan.DefaultRandomOptions()
	opts.Threads = settings.Threads
	opts.Seed = seed

	sizes := []struct {
		value string
		name  string
		dst   *int64
	}{
		{settings.Random.Binary, "binary size", &opts.BinaryBytes},
		{settings.Random.ASCII, "ascii size", &opts.ASCIIBytes},
		{settings.Random.Chunk, "chunk size", &opts.ChunkSize},
	}
	for _, s := range sizes {
		size, err := config.ParseSize(s.value, s.name)
		if err != nil {
			return opts, err
		}
		*s.dst = size
	}
	if opts.ChunkSize == 0 {
		return opts, fmt.Errorf("chunk size must be positive")
	}
	return opts, nil
}

// Run scans random data with every pattern below path. Hit paths are set to
// "random" before they are passed to onHit.
func Run(ctx context.Context, path string, settings *config.Settings, seed uint64, onHit scan.HitFunc) (*scan.Summary, error) {
	opts, err := Options(settings, seed)
	if err != nil {
		return nil, err
	}

	sc, err := dryrun.NewScanner(path, settings)
	if err != nil {
		return nil, err
	}

	var done atomic.Int64
	total := opts.BinaryBytes + opts.ASCIIBytes
	logging.RegisterStatusHook(func() *zerolog.Event {
		return log.Info().
			Str("scanned", format.HumanSize(done.Load())).
			Str("total", format.HumanSize(total))
	})
	defer logging.RegisterStatusHook(nil)

	opts.OnChunk = func(n, _ int64) { done.Store(n) }
	opts.OnHit = func(hit scan.Hit) {
		hit.Path = "random"
		if onHit != nil {
			onHit(hit)
		}
	}

	log.Info().Uint64("seed", seed).Str("binary", format.HumanSize(opts.BinaryBytes)).Str("ascii", format.HumanSize(opts.ASCIIBytes)).Int("patterns", sc.Len()).Msg("Scanning random data")
	summary, err := scan.Random(ctx, sc, opts)
	if summary != nil {
		report.ReportSummary("random", summary)
	}
	return summary, err
}
