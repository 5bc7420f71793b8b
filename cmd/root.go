// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"os"

	"github.com/naka-gawa/loc-stats/internal/config"
	"github.com/naka-gawa/loc-stats/internal/gateway"
	"github.com/naka-gawa/loc-stats/internal/store"
	"github.com/naka-gawa/loc-stats/internal/usecase"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "loc-stats",
	Short: "Tracks the estimated lines of code across your GitHub repositories.",
	Long: `loc-stats estimates the total lines of code across all non-fork repositories
owned by the authenticated GitHub account and records the result, one entry per
UTC day, in a JSON time series (stats.json by default).

The token is read from GH_TOKEN or GITHUB_TOKEN. Running without a subcommand
performs an update.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runUpdate,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolP(config.KeyVerbose, "v", false, "Enable verbose/debug logging")
	flags.Bool(config.KeyNoColor, false, "Disable colored log output")
	flags.StringP(config.KeyStatsFile, "f", store.DefaultPath, "Path of the JSON time series")
	flags.String(config.KeyAPIURL, "", "GitHub REST API base URL (GitHub Enterprise), default api.github.com")
	flags.Int(config.KeyBytesPerLine, usecase.DefaultBytesPerLine, "Bytes per line used when only language sizes are available")
	flags.Int(config.KeyRetryAttempts, gateway.DefaultRetryAttempts, "Attempts for statistics that are still being computed")
	flags.Duration(config.KeyRetryDelay, gateway.DefaultRetryDelay, "Delay between two attempts")
}
