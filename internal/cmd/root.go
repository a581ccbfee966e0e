// Package cmd assembles the custompatterns command tree.
package cmd

import (
	"github.com/CompassSecurity/custompatterns/internal/cmd/combine"
	"github.com/CompassSecurity/custompatterns/internal/cmd/common"
	"github.com/CompassSecurity/custompatterns/internal/cmd/dryrun"
	"github.com/CompassSecurity/custompatterns/internal/cmd/random"
	"github.com/CompassSecurity/custompatterns/internal/cmd/snapshot"
	"github.com/CompassSecurity/custompatterns/internal/cmd/test"
	"github.com/CompassSecurity/custompatterns/internal/cmd/validate"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "custompatterns",
		Short: "Author and test GitHub Secret Scanning custom patterns",
		Long: `Custompatterns validates patterns.yml documents, runs the tests they embed,
scans directories and random data for false positives and keeps snapshots of the alerts
GitHub raises for the patterns.`,
		Example: `
# Validate and test every patterns.yml below the current directory
custompatterns test .

# Look for false positives in another code base
custompatterns dry-run ./patterns --extra ~/src/some-project`,
		Version:       common.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "Authoring", Title: "Authoring Commands"},
		&cobra.Group{ID: "Testing", Title: "Testing Commands"},
		&cobra.Group{ID: "GitHub", Title: "GitHub Commands"},
	)

	rootCmd.AddCommand(validate.NewValidateCmd())
	rootCmd.AddCommand(test.NewTestCmd())
	rootCmd.AddCommand(dryrun.NewDryRunCmd())
	rootCmd.AddCommand(random.NewRandomCmd())
	rootCmd.AddCommand(combine.NewCombineCmd())
	rootCmd.AddCommand(snapshot.NewSnapshotCmd())

	common.AddCommonFlags(rootCmd)
	common.AddConfigFlags(rootCmd)
	common.SetupPersistentPreRun(rootCmd)

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	return rootCmd
}
