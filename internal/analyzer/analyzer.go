// internal/analyzer/analyzer.go

// Package analyzer implements the repository analysis ingestion pipeline:
// concurrent facet fetch against the GitHub API, transactional persistence,
// and derived analytics.
package analyzer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/go-github/v62/github"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
)

// GitHubAPI is the slice of the GitHub client the pipeline consumes, one
// method per facet.
type GitHubAPI interface {
	GetRepository(ctx context.Context, owner, name string) (*github.Repository, error)
	GetCommits(ctx context.Context, owner, name string) ([]*github.RepositoryCommit, error)
	GetContributors(ctx context.Context, owner, name string) ([]*github.Contributor, error)
	GetLanguages(ctx context.Context, owner, name string) (map[string]int, error)
	GetIssues(ctx context.Context, owner, name string) ([]*github.Issue, error)
	GetPullRequests(ctx context.Context, owner, name string) ([]*github.PullRequest, error)
}

// Analyzer orchestrates the ingestion of one repository.
type Analyzer struct {
	store  store.Store
	gh     GitHubAPI
	logger *slog.Logger
}

// New creates an Analyzer.
func New(st store.Store, gh GitHubAPI, logger *slog.Logger) *Analyzer {
	return &Analyzer{store: st, gh: gh, logger: logger}
}

// facets holds the six raw payloads fetched for one repository.
type facets struct {
	repo         *github.Repository
	commits      []*github.RepositoryCommit
	contributors []*github.Contributor
	languages    map[string]int
	issues       []*github.Issue
	pullRequests []*github.PullRequest
}

// Analyze ingests owner/name for the requesting user and returns the
// repository row plus its analyses.
//
// Unless force is set, a repository already known by full name short-circuits
// to its persisted analyses with zero API calls: the store acts as a cache
// keyed by repository identity, shared across users. When ingestion does run,
// the six facet fetches are issued concurrently and fail fast together, and
// every write (root upsert, child bulk inserts, analysis inserts) happens in
// one transaction, so a failure leaves no partial rows behind.
func (a *Analyzer) Analyze(ctx context.Context, owner, name string, userID int64, force bool) (*model.AnalysisResult, error) {
	fullName := owner + "/" + name
	logger := a.logger.With("repo", fullName)

	if !force {
		repo, err := a.store.GetRepositoryByFullName(ctx, fullName)
		switch {
		case err == nil:
			analyses, err := a.store.ListAnalysesByRepository(ctx, repo.ID, "")
			if err != nil {
				return nil, &apperrors.AnalysisError{FullName: fullName, Err: err}
			}
			logger.Info("Repository already analyzed, returning stored analyses", "analyses", len(analyses))
			return &model.AnalysisResult{Repository: repo, Analyses: analyses}, nil
		case !errors.Is(err, pgx.ErrNoRows):
			return nil, &apperrors.AnalysisError{FullName: fullName, Err: err}
		}
	}

	logger.Info("Fetching repository facets")
	f, err := a.fetchFacets(ctx, owner, name)
	if err != nil {
		if errors.Is(err, apperrors.ErrRepositoryNotFound) {
			return nil, err
		}
		return nil, &apperrors.AnalysisError{FullName: fullName, Err: err}
	}

	var result *model.AnalysisResult
	err = a.store.InTx(ctx, func(q store.Querier) error {
		repo, err := q.UpsertRepository(ctx, upsertParams(f.repo, userID))
		if err != nil {
			return err
		}

		if err := saveChildren(ctx, q, repo.ID, f); err != nil {
			return err
		}

		params, err := analysisParams(repo.ID, f)
		if err != nil {
			return err
		}
		analyses, err := q.CreateAnalyses(ctx, params)
		if err != nil {
			return err
		}

		result = &model.AnalysisResult{Repository: repo, Analyses: analyses}
		return nil
	})
	if err != nil {
		return nil, &apperrors.AnalysisError{FullName: fullName, Err: err}
	}

	logger.Info("Repository analyzed",
		"commits", len(f.commits),
		"contributors", len(f.contributors),
		"languages", len(f.languages),
		"issues", len(f.issues),
		"pull_requests", len(f.pullRequests))
	return result, nil
}

// fetchFacets issues the six facet fetches concurrently. The group fails
// fast: the first error cancels the remaining fetches and their results are
// discarded.
func (a *Analyzer) fetchFacets(ctx context.Context, owner, name string) (*facets, error) {
	f := &facets{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		f.repo, err = a.gh.GetRepository(gctx, owner, name)
		return err
	})
	g.Go(func() error {
		var err error
		f.commits, err = a.gh.GetCommits(gctx, owner, name)
		return err
	})
	g.Go(func() error {
		var err error
		f.contributors, err = a.gh.GetContributors(gctx, owner, name)
		return err
	})
	g.Go(func() error {
		var err error
		f.languages, err = a.gh.GetLanguages(gctx, owner, name)
		return err
	})
	g.Go(func() error {
		var err error
		f.issues, err = a.gh.GetIssues(gctx, owner, name)
		return err
	})
	g.Go(func() error {
		var err error
		f.pullRequests, err = a.gh.GetPullRequests(gctx, owner, name)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

func upsertParams(r *github.Repository, userID int64) store.UpsertRepositoryParams {
	return store.UpsertRepositoryParams{
		Owner:       r.GetOwner().GetLogin(),
		Name:        r.GetName(),
		FullName:    r.GetFullName(),
		Description: r.Description,
		Language:    r.Language,
		Stars:       r.GetStargazersCount(),
		Forks:       r.GetForksCount(),
		Watchers:    r.GetWatchersCount(),
		URL:         r.GetHTMLURL(),
		UserID:      userID,
	}
}
