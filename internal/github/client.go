// internal/github/client.go
package github

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	apperrors "github-analyzer/internal/errors"
)

const perPage = 100

// Client is a wrapper around the go-github client exposing one method per
// data facet of a repository. Payloads are returned as decoded by go-github,
// without renaming; mapping to storage rows happens downstream.
//
// Error policy: a 404 on the repository lookup becomes ErrRepositoryNotFound;
// every other failure collapses into a FacetError naming the facet. Callers
// cannot tell rate limiting from a transient network fault at this layer.
type Client struct {
	gh     *github.Client
	logger *slog.Logger
}

// NewClient creates and configures a new Client instance.
// The provided token is used to create an authenticated http.Client.
func NewClient(token string, logger *slog.Logger) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)

	return &Client{
		gh:     github.NewClient(tc),
		logger: logger,
	}
}

// SetBaseURL points the client at an alternate API root. Used by tests.
func (c *Client) SetBaseURL(url string) error {
	ghc, err := c.gh.WithEnterpriseURLs(url, url)
	if err != nil {
		return err
	}
	c.gh = ghc
	return nil
}

// GetRepository fetches the repository metadata facet.
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*github.Repository, error) {
	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, apperrors.ErrRepositoryNotFound
		}
		return nil, c.facetErr("repository", owner, name, err)
	}
	return repo, nil
}

// GetCommits fetches the full commit history, walking API pagination at 100
// commits per page.
func (c *Client) GetCommits(ctx context.Context, owner, name string) ([]*github.RepositoryCommit, error) {
	var all []*github.RepositoryCommit

	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		c.logger.Debug("Fetching commits page", "owner", owner, "repo", name, "page", opts.Page)

		commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return nil, c.facetErr("commits", owner, name, err)
		}
		all = append(all, commits...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetContributors fetches the contributor list with cumulative contribution
// counts.
func (c *Client) GetContributors(ctx context.Context, owner, name string) ([]*github.Contributor, error) {
	var all []*github.Contributor

	opts := &github.ListContributorsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		contributors, resp, err := c.gh.Repositories.ListContributors(ctx, owner, name, opts)
		if err != nil {
			return nil, c.facetErr("contributors", owner, name, err)
		}
		all = append(all, contributors...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetLanguages fetches the language to byte-count map.
func (c *Client) GetLanguages(ctx context.Context, owner, name string) (map[string]int, error) {
	langs, _, err := c.gh.Repositories.ListLanguages(ctx, owner, name)
	if err != nil {
		return nil, c.facetErr("languages", owner, name, err)
	}
	return langs, nil
}

// GetIssues fetches issues in every state. The GitHub issues endpoint also
// returns pull requests; they are kept, matching the raw-payload contract.
func (c *Client) GetIssues(ctx context.Context, owner, name string) ([]*github.Issue, error) {
	var all []*github.Issue

	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, c.facetErr("issues", owner, name, err)
		}
		all = append(all, issues...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

// GetPullRequests fetches pull requests in every state.
func (c *Client) GetPullRequests(ctx context.Context, owner, name string) ([]*github.PullRequest, error) {
	var all []*github.PullRequest

	opts := &github.PullRequestListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return nil, c.facetErr("pull requests", owner, name, err)
		}
		all = append(all, prs...)

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

func (c *Client) facetErr(facet, owner, name string, err error) error {
	c.logger.Error("GitHub facet fetch failed", "facet", facet, "owner", owner, "repo", name, "error", err)
	return &apperrors.FacetError{Facet: facet, Err: err}
}
