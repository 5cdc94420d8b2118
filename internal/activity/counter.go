package activity

import (
	"context"
	"time"

	"github.com/okanot/commitbadge/internal/githubapi"
	"go.uber.org/zap"
)

// CommitLister lists commits by one author in a repository window.
type CommitLister interface {
	ListUserCommits(ctx context.Context, owner, repo, author string, since time.Time) (githubapi.CommitListResult, error)
}

// CommitCounter counts qualifying commits by the monitored user in one
// repository. Any fetch failure or non-success provider status degrades to a
// zero count; a single unreachable repository never aborts an aggregation
// run.
type CommitCounter struct {
	lister CommitLister
	logger *zap.Logger
}

// NewCommitCounter creates a commit counter.
func NewCommitCounter(lister CommitLister, logger *zap.Logger) *CommitCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitCounter{
		lister: lister,
		logger: logger,
	}
}

// Count returns the number of qualifying commits by user in owner/repo no
// earlier than since.
func (c *CommitCounter) Count(ctx context.Context, owner, repo, user string, since time.Time) int {
	result, err := c.lister.ListUserCommits(ctx, owner, repo, user, since)
	if err != nil {
		c.logger.Debug("commit listing failed; counting repository as zero",
			zap.String("owner", owner),
			zap.String("repo", repo),
			zap.Error(err),
		)
		return 0
	}
	if result.Status != githubapi.EndpointStatusOK {
		c.logger.Debug("commit listing returned non-success status; counting repository as zero",
			zap.String("owner", owner),
			zap.String("repo", repo),
			zap.String("status", string(result.Status)),
		)
		return 0
	}

	count := 0
	for _, commit := range result.Commits {
		if QualifiesForUser(commit, user) {
			count++
		}
	}
	return count
}
