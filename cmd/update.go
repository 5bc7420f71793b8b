package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/naka-gawa/loc-stats/internal/config"
	"github.com/naka-gawa/loc-stats/internal/gateway"
	"github.com/naka-gawa/loc-stats/internal/logging"
	"github.com/naka-gawa/loc-stats/internal/store"
	"github.com/naka-gawa/loc-stats/internal/usecase"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Estimates today's total lines of code and records it",
	Long: `Lists the non-fork repositories owned by the authenticated account, estimates
their lines of code from GitHub's weekly code frequency statistics (falling back
to language byte sizes), and upserts today's total into the time series file.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	v := config.NewViper()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}
	cfg, err := config.Load(v, os.LookupEnv)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.New(cmd.ErrOrStderr(), cfg.Verbose, cfg.NoColor)
	if cfg.Token == "" {
		logger.Warnf("GH_TOKEN / GITHUB_TOKEN is not set, accessing the GitHub API without authentication (lower rate limit).")
	} else {
		logger.Debugf("Using token from %s", cfg.TokenEnv)
	}

	// Inject dependencies and run the main business logic.
	githubGateway, err := gateway.NewGitHubGateway(gateway.Options{
		Token:   cfg.Token,
		BaseURL: cfg.APIURL,
		Retry: gateway.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
		},
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	estimator := usecase.NewEstimator(githubGateway, cfg.BytesPerLine, logger)
	updater := usecase.NewUpdater(githubGateway, estimator, store.NewFile(cfg.StatsFile, logger), cfg.Token != "", logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := updater.Run(ctx, time.Now()); err != nil {
		return fmt.Errorf("failed to update stats: %w", err)
	}
	return nil
}
