package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/CompassSecurity/custompatterns/internal/cmd/common"
	"github.com/CompassSecurity/custompatterns/pkg/config"
	"github.com/CompassSecurity/custompatterns/pkg/httpclient"
	pkgsnapshot "github.com/CompassSecurity/custompatterns/pkg/snapshot"
	"github.com/CompassSecurity/custompatterns/pkg/system"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type SnapshotOptions struct {
	Repository  string
	Update      bool
	SecretTypes []string
}

var options = SnapshotOptions{}

func NewSnapshotCmd() *cobra.Command {
	snapshotCmd := &cobra.Command{
		Use:   "snapshot [path] --repo owner/repo",
		Short: "Record or check the alerts GitHub raises for the patterns",
		Long: `Fetch the open secret scanning alerts of a repository for every pattern type below path
and compare them with the snapshot stored next to the pattern document in __snapshots__.
With --update the snapshots are rewritten instead.

### Authentication
The token needs read access to secret scanning alerts. It is read from --token,
CUSTOMPATTERNS_GITHUB_TOKEN or GITHUB_TOKEN.`,
		Example: `
# Record the current alerts
custompatterns snapshot ./patterns --repo octo/test-data --update

# Check for changes against GitHub Enterprise Server
custompatterns snapshot ./patterns --repo octo/test-data --github-url https://github.example.com/`,
		Args:    cobra.MaximumNArgs(1),
		GroupID: "GitHub",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := common.LoadSettings()
			if err != nil {
				return err
			}
			source, err := NewSource(settings, options.Repository, httpclient.DefaultOptions())
			if err != nil {
				return err
			}

			ctx, cancel := system.ShutdownContext(cmd.Context())
			defer cancel()
			return Run(ctx, cmd.OutOrStdout(), common.PatternPath(args), settings, options, source)
		},
	}

	snapshotCmd.Flags().StringVarP(&options.Repository, "repo", "r", "", "Repository the alerts are raised in, owner/repo")
	err := snapshotCmd.MarkFlagRequired("repo")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed marking repo required")
	}
	snapshotCmd.Flags().BoolVarP(&options.Update, "update", "u", false, "Rewrite the snapshots instead of checking them")
	snapshotCmd.Flags().StringSliceVar(&options.SecretTypes, "secret-type", nil, "Only handle these pattern types")
	snapshotCmd.Flags().String("github-url", pkgsnapshot.DefaultBaseURL, "GitHub API URL, the server URL for GitHub Enterprise")
	snapshotCmd.Flags().String("token", "", "GitHub token with access to secret scanning alerts")
	common.BindFlag(snapshotCmd, config.KeyGitHubURL, "github-url")
	common.BindFlag(snapshotCmd, config.KeyGitHubToken, "token")

	return snapshotCmd
}

// NewSource creates the GitHub alert source of repository.
func NewSource(settings *config.Settings, repository string, opts httpclient.Options) (*pkgsnapshot.GitHubSource, error) {
	if err := config.ValidateURL(settings.GitHub.URL, "GitHub URL"); err != nil {
		return nil, err
	}
	if err := config.ValidateToken(settings.GitHub.Token, "GitHub token"); err != nil {
		return nil, err
	}
	owner, repo, err := config.ParseRepository(repository)
	if err != nil {
		return nil, err
	}

	client, err := pkgsnapshot.NewGitHubClient(settings.GitHub.Token, settings.GitHub.URL, opts)
	if err != nil {
		return nil, err
	}
	return pkgsnapshot.NewGitHubSource(client, owner, repo), nil
}

// Run updates or checks the snapshot of every pattern type below path.
// Differences are written to out as unified diffs.
func Run(ctx context.Context, out io.Writer, path string, settings *config.Settings, opts SnapshotOptions, source pkgsnapshot.AlertSource) error {
	sets, err := common.LoadPatterns(path, settings)
	if err != nil {
		return err
	}

	changed, missing := 0, 0
	for _, set := range sets {
		manager := &pkgsnapshot.Manager{Fs: common.Fs, Dir: set.Dir, Source: source}

		var types []string
		for _, p := range set.Patterns {
			if slices.Contains(types, p.Type) {
				continue
			}
			if len(opts.SecretTypes) > 0 && !slices.Contains(opts.SecretTypes, p.Type) {
				continue
			}
			types = append(types, p.Type)
		}

		for _, secretType := range types {
			if err := ctx.Err(); err != nil {
				return err
			}

			if opts.Update {
				if _, err := manager.Update(ctx, secretType); err != nil {
					return fmt.Errorf("failed to update snapshot of %s: %w", secretType, err)
				}
				continue
			}

			diff, err := manager.Check(ctx, secretType)
			if errors.Is(err, pkgsnapshot.ErrNoSnapshot) {
				log.Warn().Str("type", secretType).Str("document", set.Path).Msg("No snapshot recorded, run with --update")
				missing++
				continue
			}
			if err != nil {
				return fmt.Errorf("failed to check snapshot of %s: %w", secretType, err)
			}
			if diff.Empty() {
				log.Info().Str("type", secretType).Msg("Snapshot matches")
				continue
			}

			changed++
			log.Error().
				Str("type", secretType).
				Int("added", len(diff.Added)).
				Int("removed", len(diff.Removed)).
				Str("current", manager.CurrentPath(secretType)).
				Msg("Snapshot differs")
			_, _ = io.WriteString(out, diff.Unified)
		}
	}

	if changed > 0 || missing > 0 {
		return fmt.Errorf("%d snapshots differ, %d missing", changed, missing)
	}
	return nil
}
