// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/loc-stats/internal/domain"
	"github.com/naka-gawa/loc-stats/internal/logging"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
)

const (
	listTimeout          = 30 * time.Second
	languagesTimeout     = 30 * time.Second
	codeFrequencyTimeout = 60 * time.Second

	pageSize  = 100
	userAgent = "loc-stats"
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	// Viewer returns the login of the authenticated account.
	Viewer(ctx context.Context) (string, error)
	// ListOwnedRepositories is best effort: listing stops at the first
	// failed page and whatever was collected so far is returned.
	ListOwnedRepositories(ctx context.Context) []domain.Repository
	FetchWeeklyChangeSamples(ctx context.Context, owner, name string) ([]domain.WeeklySample, error)
	FetchLanguageByteCounts(ctx context.Context, owner, name string) (map[string]int, error)
}

// Options configures NewGitHubGateway.
type Options struct {
	// Token is sent as a bearer credential when not empty.
	Token string
	// BaseURL overrides the REST endpoint (GitHub Enterprise). Empty means api.github.com.
	BaseURL string
	Retry   RetryPolicy
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	retry         RetryPolicy
	logger        *logging.Logger
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opts Options, logger *logging.Logger) (*GitHubGateway, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(1*time.Hour, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}

	var transport http.RoundTripper = rateLimitWaiter
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Base:   rateLimitWaiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
		}
	}
	httpClient := &http.Client{Transport: transport}

	restClient := github.NewClient(httpClient)
	restClient.UserAgent = userAgent
	graphqlClient := githubv4.NewClient(httpClient)

	if opts.BaseURL != "" {
		baseURL, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse api url %q: %w", opts.BaseURL, err)
		}
		if !strings.HasSuffix(baseURL.Path, "/") {
			baseURL.Path += "/"
		}
		restClient.BaseURL = baseURL
		graphqlClient = githubv4.NewEnterpriseClient(graphqlEndpoint(baseURL), httpClient)
	}

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: graphqlClient,
		retry:         opts.Retry,
		logger:        logger,
	}, nil
}

// graphqlEndpoint derives the GraphQL URL from a REST base URL.
// GitHub Enterprise serves REST under /api/v3/ and GraphQL under /api/graphql.
func graphqlEndpoint(restBase *url.URL) string {
	u := *restBase
	if strings.HasSuffix(u.Path, "/api/v3/") {
		u.Path = strings.TrimSuffix(u.Path, "v3/") + "graphql"
	} else {
		u.Path += "graphql"
	}
	return u.String()
}

// viewerQuery resolves the account behind the token.
type viewerQuery struct {
	Viewer struct {
		Login githubv4.String
	}
}

func (g *GitHubGateway) Viewer(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var q viewerQuery
	if err := g.graphqlClient.Query(ctx, &q, nil); err != nil {
		return "", fmt.Errorf("failed to execute GraphQL query for viewer: %w", err)
	}
	return string(q.Viewer.Login), nil
}

func (g *GitHubGateway) ListOwnedRepositories(ctx context.Context) []domain.Repository {
	g.logger.Infof("Fetching repository list (type=owner, fork=false)...")
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		Type:        "owner",
		Sort:        "full_name",
		Direction:   "asc",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}

	var all []*github.Repository
	for page := 1; ; page++ {
		opts.Page = page
		batch, err := g.listPage(ctx, opts)
		if err != nil {
			g.logger.Errorf("Failed to list repositories on page %d: %v", page, err)
			break
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		g.logger.Infof("Fetched %d repository entries...", len(all))
	}

	repos := make([]domain.Repository, 0, len(all))
	for _, r := range all {
		if r.GetFork() {
			continue
		}
		repos = append(repos, domain.Repository{
			Owner:    r.GetOwner().GetLogin(),
			Name:     r.GetName(),
			FullName: r.GetFullName(),
			Fork:     false,
		})
	}
	g.logger.Infof("Non-fork repositories after filtering: %d", len(repos))
	return repos
}

func (g *GitHubGateway) listPage(ctx context.Context, opts *github.RepositoryListByAuthenticatedUserOptions) ([]*github.Repository, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	g.logger.Debugf("  Fetching page %d of repositories...", opts.Page)
	batch, _, err := g.restClient.Repositories.ListByAuthenticatedUser(ctx, opts)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// FetchWeeklyChangeSamples returns the weekly additions/deletions of a repository.
// An empty slice means the repository has no activity; ErrUnavailable means
// the statistic could not be obtained at all.
func (g *GitHubGateway) FetchWeeklyChangeSamples(ctx context.Context, owner, name string) ([]domain.WeeklySample, error) {
	fullName := owner + "/" + name
	req, err := g.restClient.NewRequest(http.MethodGet, fmt.Sprintf("repos/%v/%v/stats/code_frequency", owner, name), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build code_frequency request: %v", ErrUnavailable, err)
	}

	var raw []json.RawMessage
	var status int
	err = g.retry.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, codeFrequencyTimeout)
		defer cancel()

		raw = nil
		resp, err := g.restClient.Do(ctx, req, &raw)
		var accepted *github.AcceptedError
		switch {
		case errors.As(err, &accepted):
			return errStillComputing
		case err != nil:
			return fmt.Errorf("%w: code_frequency for %s: %v", ErrUnavailable, fullName, err)
		}
		status = resp.StatusCode
		if raw == nil && status != http.StatusNoContent {
			return fmt.Errorf("%w: code_frequency for %s: empty body with HTTP %d", ErrUnavailable, fullName, status)
		}
		return nil
	}, func(attempt int, wait time.Duration) {
		g.logger.Infof("Statistics for %s are being generated (HTTP 202), retrying in %s (%d/%d)...",
			fullName, wait, attempt, g.retry.attempts())
	})
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			g.logger.Warnf("Skipping code_frequency for %s: %v", fullName, err)
		}
		return nil, err
	}

	if status == http.StatusNoContent {
		g.logger.Warnf("code_frequency for %s returned 204 No Content, counting as 0 lines.", fullName)
		return []domain.WeeklySample{}, nil
	}

	samples := make([]domain.WeeklySample, 0, len(raw))
	for _, week := range raw {
		sample, ok := parseWeeklySample(week)
		if !ok {
			g.logger.Debugf("  Skipping malformed code_frequency sample for %s: %s", fullName, week)
			continue
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// parseWeeklySample accepts an array of at least three numbers:
// [week, additions, deletions, ...].
func parseWeeklySample(raw json.RawMessage) (domain.WeeklySample, bool) {
	var fields []json.Number
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) < 3 {
		return domain.WeeklySample{}, false
	}
	values := make([]int64, 3)
	for i := range values {
		v, ok := numberToInt64(fields[i])
		if !ok {
			return domain.WeeklySample{}, false
		}
		values[i] = v
	}
	return domain.WeeklySample{Week: values[0], Additions: values[1], Deletions: values[2]}, true
}

// numberToInt64 truncates fractional values toward zero.
func numberToInt64(n json.Number) (int64, bool) {
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	f, err := n.Float64()
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// FetchLanguageByteCounts returns the number of bytes per language for a repository.
func (g *GitHubGateway) FetchLanguageByteCounts(ctx context.Context, owner, name string) (map[string]int, error) {
	ctx, cancel := context.WithTimeout(ctx, languagesTimeout)
	defer cancel()

	langs, _, err := g.restClient.Repositories.ListLanguages(ctx, owner, name)
	if err != nil {
		g.logger.Warnf("Failed to fetch languages for %s/%s: %v", owner, name, err)
		return nil, fmt.Errorf("%w: languages for %s/%s: %v", ErrUnavailable, owner, name, err)
	}
	return langs, nil
}
