// internal/analyzer/reconciler.go
package analyzer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/go-github/v62/github"

	"github-analyzer/internal/analytics"
	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
)

// saveChildren maps the raw facet payloads to storage rows and bulk-inserts
// them with duplicate-skip semantics. Insert only: existing rows are never
// updated, so a forced re-ingestion adds unseen rows and leaves the rest
// untouched.
func saveChildren(ctx context.Context, q store.Querier, repoID int64, f *facets) error {
	if _, err := q.CreateCommits(ctx, commitParams(repoID, f.commits)); err != nil {
		return err
	}
	if _, err := q.CreateContributors(ctx, contributorParams(repoID, f.contributors)); err != nil {
		return err
	}
	if _, err := q.CreateLanguages(ctx, languageParams(repoID, f.languages)); err != nil {
		return err
	}
	if _, err := q.CreateIssues(ctx, issueParams(repoID, f.issues)); err != nil {
		return err
	}
	if _, err := q.CreatePullRequests(ctx, pullRequestParams(repoID, f.pullRequests)); err != nil {
		return err
	}
	return nil
}

func commitParams(repoID int64, commits []*github.RepositoryCommit) []store.CreateCommitParams {
	params := make([]store.CreateCommitParams, len(commits))
	for i, c := range commits {
		params[i] = store.CreateCommitParams{
			RepositoryID: repoID,
			SHA:          c.GetSHA(),
			Message:      c.GetCommit().GetMessage(),
			Author:       c.GetCommit().GetAuthor().GetName(),
			AuthorEmail:  c.GetCommit().GetAuthor().GetEmail(),
			Date:         c.GetCommit().GetAuthor().GetDate().Time,
			URL:          c.GetHTMLURL(),
		}
	}
	return params
}

func contributorParams(repoID int64, contributors []*github.Contributor) []store.CreateContributorParams {
	params := make([]store.CreateContributorParams, len(contributors))
	for i, c := range contributors {
		params[i] = store.CreateContributorParams{
			RepositoryID: repoID,
			Username:     c.GetLogin(),
			AvatarURL:    c.GetAvatarURL(),
			Commits:      c.GetContributions(),
		}
	}
	return params
}

func languageParams(repoID int64, languages map[string]int) []store.CreateLanguageParams {
	total := 0
	for _, b := range languages {
		total += b
	}

	params := make([]store.CreateLanguageParams, 0, len(languages))
	for name, b := range languages {
		params = append(params, store.CreateLanguageParams{
			RepositoryID: repoID,
			Name:         name,
			Bytes:        int64(b),
			Percentage:   float64(b) / float64(total) * 100,
		})
	}
	return params
}

func issueParams(repoID int64, issues []*github.Issue) []store.CreateIssueParams {
	params := make([]store.CreateIssueParams, len(issues))
	for i, is := range issues {
		labels := make([]string, len(is.Labels))
		for j, l := range is.Labels {
			labels[j] = l.GetName()
		}
		params[i] = store.CreateIssueParams{
			RepositoryID: repoID,
			Number:       is.GetNumber(),
			Title:        is.GetTitle(),
			Body:         is.Body,
			State:        is.GetState(),
			Labels:       labels,
			CreatedAt:    is.GetCreatedAt().Time,
			UpdatedAt:    is.GetUpdatedAt().Time,
			ClosedAt:     timestampPtr(is.ClosedAt),
		}
	}
	return params
}

func pullRequestParams(repoID int64, prs []*github.PullRequest) []store.CreatePullRequestParams {
	params := make([]store.CreatePullRequestParams, len(prs))
	for i, pr := range prs {
		params[i] = store.CreatePullRequestParams{
			RepositoryID: repoID,
			Number:       pr.GetNumber(),
			Title:        pr.GetTitle(),
			Body:         pr.Body,
			State:        pr.GetState(),
			Merged:       pr.GetMerged() || pr.MergedAt != nil,
			CreatedAt:    pr.GetCreatedAt().Time,
			UpdatedAt:    pr.GetUpdatedAt().Time,
			ClosedAt:     timestampPtr(pr.ClosedAt),
		}
	}
	return params
}

// analysisParams computes the five analyses from the in-memory facet data
// and marshals each payload for storage.
func analysisParams(repoID int64, f *facets) ([]store.CreateAnalysisParams, error) {
	computed := []struct {
		typ  string
		data any
	}{
		{model.AnalysisCommitFrequency, analytics.CommitFrequency(f.commits)},
		{model.AnalysisComplexity, analytics.Complexity()},
		{model.AnalysisContributors, analytics.Contributors(f.contributors)},
		{model.AnalysisLanguages, analytics.Languages(f.languages)},
		{model.AnalysisIssuesPRs, analytics.IssuesPRs(f.issues, f.pullRequests)},
	}

	params := make([]store.CreateAnalysisParams, len(computed))
	for i, c := range computed {
		raw, err := json.Marshal(c.data)
		if err != nil {
			return nil, err
		}
		params[i] = store.CreateAnalysisParams{
			RepositoryID: repoID,
			Type:         c.typ,
			Data:         raw,
		}
	}
	return params, nil
}

func timestampPtr(ts *github.Timestamp) *time.Time {
	if ts == nil {
		return nil
	}
	t := ts.Time
	return &t
}
