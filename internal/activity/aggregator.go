package activity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okanot/commitbadge/internal/githubapi"
	"go.uber.org/zap"
)

const (
	// maxQueriedRepos caps commit-history queries per run, combined across
	// the owned and organization passes.
	maxQueriedRepos = 20

	batchSizeAuthenticated   = 5
	batchSizeUnauthenticated = 3

	batchPauseAuthenticated   = 100 * time.Millisecond
	batchPauseUnauthenticated = 200 * time.Millisecond
)

// RepoLister lists candidate repositories and organizations for the crawl.
type RepoLister interface {
	ListUserRepos(ctx context.Context, user string) (githubapi.UserReposResult, error)
	ListUserOrgs(ctx context.Context, user string) (githubapi.UserOrgsResult, error)
	ListOrgRepos(ctx context.Context, org string, limit int) (githubapi.OrgReposResult, error)
}

// RepoCounter counts qualifying commits in one repository.
type RepoCounter interface {
	Count(ctx context.Context, owner, repo, user string, since time.Time) int
}

// EngineConfig configures one aggregation engine.
type EngineConfig struct {
	Username       string
	WindowDays     int
	IncludeOrgs    bool
	MaxReposPerOrg int
	ExcludedRepos  []string
	ExcludedOrgs   []string
	// Authenticated selects the larger batch size and shorter inter-batch
	// pause; unauthenticated calls face the provider's stricter limits.
	Authenticated bool
}

// Result is the immutable outcome of one aggregation run. The repository
// counters count contributing repositories (count > 0), not merely examined
// ones.
type Result struct {
	TotalCommits int
	OwnedRepos   int
	OrgRepos     int
}

// Engine aggregates the monitored user's qualifying commit count across their
// own repositories and, optionally, their organizations' public repositories.
type Engine struct {
	cfg     EngineConfig
	lister  RepoLister
	counter RepoCounter
	logger  *zap.Logger

	// Now and Sleep are injected for deterministic tests.
	Now   func() time.Time
	Sleep func(d time.Duration)
}

// NewEngine creates an aggregation engine.
func NewEngine(cfg EngineConfig, lister RepoLister, counter RepoCounter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		lister:  lister,
		counter: counter,
		logger:  logger,
		Now:     time.Now,
		Sleep:   time.Sleep,
	}
}

// Run executes one aggregation over the trailing window. The owned pass runs
// first; the organization pass runs only when enabled and the owned pass left
// query budget under the combined cap. Queries within a batch run
// concurrently; the final sums are order-independent, so the result is
// deterministic for a stable provider.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	since := e.Now().UTC().Add(-time.Duration(e.cfg.WindowDays) * 24 * time.Hour)
	budget := maxQueriedRepos
	result := Result{}

	ownedResult, err := e.lister.ListUserRepos(ctx, e.cfg.Username)
	if err != nil {
		return Result{}, fmt.Errorf("list repositories for %q: %w", e.cfg.Username, err)
	}
	if ownedResult.Status != githubapi.EndpointStatusOK {
		return Result{}, fmt.Errorf("list repositories for %q returned status %q", e.cfg.Username, ownedResult.Status)
	}

	ownedCandidates := e.selectCandidates(ownedResult.Repos, since, budget)
	ownedCommits, ownedContributing := e.countBatch(ctx, ownedCandidates, since)
	budget -= len(ownedCandidates)
	result.TotalCommits += ownedCommits
	result.OwnedRepos = ownedContributing

	e.logger.Debug("owned pass complete",
		zap.Int("candidates", len(ownedCandidates)),
		zap.Int("contributing", ownedContributing),
		zap.Int("commits", ownedCommits),
	)

	if !e.cfg.IncludeOrgs || budget <= 0 {
		return result, nil
	}

	orgCommits, orgContributing := e.runOrgPass(ctx, since, budget)
	result.TotalCommits += orgCommits
	result.OrgRepos = orgContributing
	return result, nil
}

// runOrgPass crawls organization repositories under the remaining query
// budget. Listing failures degrade to a skipped organization; they never
// abort the run.
func (e *Engine) runOrgPass(ctx context.Context, since time.Time, budget int) (int, int) {
	orgsResult, err := e.lister.ListUserOrgs(ctx, e.cfg.Username)
	if err != nil {
		e.logger.Warn("organization listing failed; skipping organization pass", zap.Error(err))
		return 0, 0
	}
	if orgsResult.Status != githubapi.EndpointStatusOK {
		e.logger.Warn("organization listing returned non-success status; skipping organization pass",
			zap.String("status", string(orgsResult.Status)))
		return 0, 0
	}

	totalCommits := 0
	contributing := 0
	for _, org := range orgsResult.Orgs {
		if budget <= 0 {
			break
		}
		if containsFold(e.cfg.ExcludedOrgs, org.Login) {
			continue
		}

		reposResult, err := e.lister.ListOrgRepos(ctx, org.Login, e.cfg.MaxReposPerOrg)
		if err != nil {
			e.logger.Warn("organization repository listing failed; skipping organization",
				zap.String("org", org.Login), zap.Error(err))
			continue
		}
		if reposResult.Status != githubapi.EndpointStatusOK {
			e.logger.Warn("organization repository listing returned non-success status; skipping organization",
				zap.String("org", org.Login), zap.String("status", string(reposResult.Status)))
			continue
		}

		candidates := e.selectCandidates(reposResult.Repos, since, budget)
		commits, contributed := e.countBatch(ctx, candidates, since)
		budget -= len(candidates)
		totalCommits += commits
		contributing += contributed
	}
	return totalCommits, contributing
}

// selectCandidates drops excluded repositories and repositories untouched
// since the window start, then caps the remainder at limit. The staleness
// drop is an optimization: a repository not updated since the window began
// cannot contain in-window commits, so no commit query is spent on it.
func (e *Engine) selectCandidates(repos []githubapi.Repository, since time.Time, limit int) []githubapi.Repository {
	selected := make([]githubapi.Repository, 0, limit)
	for _, repo := range repos {
		if len(selected) >= limit {
			break
		}
		if containsFold(e.cfg.ExcludedRepos, repo.Name) {
			continue
		}
		if repo.UpdatedAt.Before(since) {
			continue
		}
		selected = append(selected, repo)
	}
	return selected
}

// countBatch queries candidates in fixed-size concurrent batches with a pause
// between batches, and returns the commit sum plus the number of
// contributing repositories.
func (e *Engine) countBatch(ctx context.Context, candidates []githubapi.Repository, since time.Time) (int, int) {
	batchSize := batchSizeUnauthenticated
	pause := batchPauseUnauthenticated
	if e.cfg.Authenticated {
		batchSize = batchSizeAuthenticated
		pause = batchPauseAuthenticated
	}

	counts := make([]int, len(candidates))
	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				repo := candidates[idx]
				counts[idx] = e.counter.Count(ctx, repo.Owner, repo.Name, e.cfg.Username, since)
			}(i)
		}
		wg.Wait()

		if end < len(candidates) {
			e.Sleep(pause)
		}
	}

	total := 0
	contributing := 0
	for _, count := range counts {
		if count > 0 {
			total += count
			contributing++
		}
	}
	return total, contributing
}

func containsFold(list []string, value string) bool {
	for _, entry := range list {
		if strings.EqualFold(entry, value) {
			return true
		}
	}
	return false
}
