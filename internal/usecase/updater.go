// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/naka-gawa/loc-stats/internal/domain"
	"github.com/naka-gawa/loc-stats/internal/gateway"
	"github.com/naka-gawa/loc-stats/internal/logging"
	"github.com/naka-gawa/loc-stats/internal/store"
)

const dateLayout = "2006-01-02"

// RecordStore loads and persists the time series.
type RecordStore interface {
	Load() []domain.StatsRecord
	Persist(records []domain.StatsRecord) error
}

// Updater is the use case for refreshing the line count time series.
// It orchestrates listing, estimation and persistence.
type Updater struct {
	fetcher       gateway.Fetcher
	estimator     *Estimator
	store         RecordStore
	// authenticated enables the viewer lookup, which needs a token.
	authenticated bool
	logger        *logging.Logger
}

// NewUpdater creates a new Updater instance.
func NewUpdater(fetcher gateway.Fetcher, estimator *Estimator, store RecordStore, authenticated bool, logger *logging.Logger) *Updater {
	return &Updater{
		fetcher:       fetcher,
		estimator:     estimator,
		store:         store,
		authenticated: authenticated,
		logger:        logger,
	}
}

// Run performs the main business logic for the UTC calendar day of now.
// A nil report with a nil error means no repository was found and nothing was written.
func (u *Updater) Run(ctx context.Context, now time.Time) (*domain.RunReport, error) {
	u.logger.Infof("Usecase: Starting line count update...")

	if u.authenticated {
		if login, err := u.fetcher.Viewer(ctx); err != nil {
			u.logger.Debugf("Could not resolve authenticated account: %v", err)
		} else {
			u.logger.Infof("Measuring repositories of %s", login)
		}
	}

	repos := u.fetcher.ListOwnedRepositories(ctx)
	if len(repos) == 0 {
		u.logger.Warnf("No non-fork repositories found, stopping.")
		return nil, nil
	}

	estimates, total, err := u.estimator.EstimateAll(ctx, repos)
	if err != nil {
		return nil, fmt.Errorf("failed to estimate lines: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("update interrupted, nothing written: %w", err)
	}

	today := now.UTC().Format(dateLayout)
	records := store.Upsert(u.store.Load(), today, total)
	if err := u.store.Persist(records); err != nil {
		return nil, fmt.Errorf("failed to persist stats: %w", err)
	}

	report := buildReport(today, estimates, total, len(records))
	u.logger.Infof("Usecase: Update complete. date=%s repositories=%d total_lines=%d median=%.0f max=%.0f",
		report.Date, report.Repositories, report.TotalLines, report.Median, report.Max)
	return report, nil
}

func buildReport(date string, estimates []domain.RepoEstimate, total int64, records int) *domain.RunReport {
	report := &domain.RunReport{
		Date:         date,
		Repositories: len(estimates),
		TotalLines:   total,
		BySource:     make(map[domain.EstimateSource]int),
		Records:      records,
	}

	data := make(stats.Float64Data, 0, len(estimates))
	for _, est := range estimates {
		report.BySource[est.Source]++
		data = append(data, float64(est.Lines))
	}
	if len(data) == 0 {
		return report
	}
	// Both only fail on empty input.
	report.Median, _ = stats.Median(data)
	report.Max, _ = stats.Max(data)
	return report
}
