package usecase

import (
	"context"

	"github.com/naka-gawa/loc-stats/internal/domain"
	"github.com/naka-gawa/loc-stats/internal/gateway"
	"github.com/naka-gawa/loc-stats/internal/logging"
)

// DefaultBytesPerLine is the byte-to-line ratio used by the language fallback.
const DefaultBytesPerLine = 50

// strategy produces a line count for a repository, or reports that its
// signal was not available.
type strategy struct {
	source   domain.EstimateSource
	estimate func(ctx context.Context, repo domain.Repository) (int64, bool)
}

// Estimator turns per-repository GitHub signals into line estimates.
type Estimator struct {
	fetcher      gateway.Fetcher
	bytesPerLine int64
	logger       *logging.Logger
}

// NewEstimator creates a new Estimator. A non-positive bytesPerLine falls
// back to DefaultBytesPerLine.
func NewEstimator(fetcher gateway.Fetcher, bytesPerLine int, logger *logging.Logger) *Estimator {
	if bytesPerLine <= 0 {
		bytesPerLine = DefaultBytesPerLine
	}
	return &Estimator{
		fetcher:      fetcher,
		bytesPerLine: int64(bytesPerLine),
		logger:       logger,
	}
}

// strategies are tried in order; the first available one wins.
func (e *Estimator) strategies() []strategy {
	return []strategy{
		{source: domain.SourceCodeFrequency, estimate: e.fromCodeFrequency},
		{source: domain.SourceLanguages, estimate: e.fromLanguages},
	}
}

func (e *Estimator) fromCodeFrequency(ctx context.Context, repo domain.Repository) (int64, bool) {
	samples, err := e.fetcher.FetchWeeklyChangeSamples(ctx, repo.Owner, repo.Name)
	if err != nil {
		return 0, false
	}
	return SumWeeklySamples(samples), true
}

func (e *Estimator) fromLanguages(ctx context.Context, repo domain.Repository) (int64, bool) {
	langs, err := e.fetcher.FetchLanguageByteCounts(ctx, repo.Owner, repo.Name)
	if err != nil {
		return 0, false
	}
	lines := EstimateFromLanguages(langs, e.bytesPerLine)
	e.logger.Infof("Repository %s estimated from languages: %d", repo.FullName, lines)
	return lines, true
}

// EstimateRepository returns the clamped estimate of a single repository.
// A cancelled context stops the chain and is returned as the error.
func (e *Estimator) EstimateRepository(ctx context.Context, repo domain.Repository) (domain.RepoEstimate, error) {
	for _, s := range e.strategies() {
		lines, ok := s.estimate(ctx, repo)
		if err := ctx.Err(); err != nil {
			return domain.RepoEstimate{}, err
		}
		if ok {
			return domain.RepoEstimate{Repository: repo, Lines: ClampNonNegative(lines), Source: s.source}, nil
		}
	}
	return domain.RepoEstimate{Repository: repo, Lines: 0, Source: domain.SourceNone}, nil
}

// EstimateAll processes the repositories one by one and returns every
// estimate together with the clamped grand total. Repositories without an
// owner or a name are skipped.
func (e *Estimator) EstimateAll(ctx context.Context, repos []domain.Repository) ([]domain.RepoEstimate, int64, error) {
	estimates := make([]domain.RepoEstimate, 0, len(repos))
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if repo.Owner == "" || repo.Name == "" {
			continue
		}

		e.logger.Infof("Estimating repository: %s", repo.FullName)
		est, err := e.EstimateRepository(ctx, repo)
		if err != nil {
			return nil, 0, err
		}
		e.logger.Infof("Repository %s estimated lines: %d (%s)", repo.FullName, est.Lines, est.Source)
		estimates = append(estimates, est)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	total := SumEstimates(estimates)
	e.logger.Infof("Estimated lines across all repositories: %d", total)
	return estimates, total, nil
}

// SumWeeklySamples returns the net change (additions - deletions) over all samples.
// GitHub reports deletions as non-positive numbers, so they add to the total.
func SumWeeklySamples(samples []domain.WeeklySample) int64 {
	var total int64
	for _, s := range samples {
		total += s.Additions - s.Deletions
	}
	return total
}

// EstimateFromLanguages converts a language byte map to lines, truncating.
func EstimateFromLanguages(langs map[string]int, bytesPerLine int64) int64 {
	if bytesPerLine <= 0 {
		bytesPerLine = DefaultBytesPerLine
	}
	var bytes int64
	for _, n := range langs {
		bytes += int64(n)
	}
	return bytes / bytesPerLine
}

func ClampNonNegative(n int64) int64 {
	return max(n, 0)
}

// SumEstimates adds up clamped repository estimates. The result is never negative.
func SumEstimates(estimates []domain.RepoEstimate) int64 {
	var total int64
	for _, est := range estimates {
		total += ClampNonNegative(est.Lines)
	}
	return ClampNonNegative(total)
}
