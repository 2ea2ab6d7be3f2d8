// internal/store/store.go

// Package store provides Postgres persistence for repositories, their child
// collections, analyses, users, and favorites.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github-analyzer/internal/model"
)

// CreateUserParams holds the fields for a new user row.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
}

// UpsertRepositoryParams holds the fields for the repository upsert. The
// insert path writes every field; the update path refreshes description,
// language, the star/fork/watcher counts, URL, and the updated-at timestamp.
type UpsertRepositoryParams struct {
	Owner       string
	Name        string
	FullName    string
	Description *string
	Language    *string
	Stars       int
	Forks       int
	Watchers    int
	URL         string
	UserID      int64
}

// CreateCommitParams is one row of a commit bulk insert.
type CreateCommitParams struct {
	RepositoryID int64
	SHA          string
	Message      string
	Author       string
	AuthorEmail  string
	Date         time.Time
	URL          string
}

// CreateContributorParams is one row of a contributor bulk insert.
type CreateContributorParams struct {
	RepositoryID int64
	Username     string
	AvatarURL    string
	Commits      int
}

// CreateLanguageParams is one row of a language bulk insert.
type CreateLanguageParams struct {
	RepositoryID int64
	Name         string
	Bytes        int64
	Percentage   float64
}

// CreateIssueParams is one row of an issue bulk insert.
type CreateIssueParams struct {
	RepositoryID int64
	Number       int
	Title        string
	Body         *string
	State        string
	Labels       []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
}

// CreatePullRequestParams is one row of a pull request bulk insert.
type CreatePullRequestParams struct {
	RepositoryID int64
	Number       int
	Title        string
	Body         *string
	State        string
	Merged       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClosedAt     *time.Time
}

// CreateAnalysisParams is one row of an analysis bulk insert.
type CreateAnalysisParams struct {
	RepositoryID int64
	Type         string
	Data         json.RawMessage
}

// Querier is the set of database operations the application performs. It is
// implemented by Queries bound either to the pool or to a transaction, and
// mocked in tests.
type Querier interface {
	CreateUser(ctx context.Context, arg CreateUserParams) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id int64) (model.User, error)

	UpsertRepository(ctx context.Context, arg UpsertRepositoryParams) (model.Repository, error)
	GetRepositoryByFullName(ctx context.Context, fullName string) (model.Repository, error)
	GetRepositoryForUser(ctx context.Context, id, userID int64) (model.Repository, error)
	ListRepositoriesByUser(ctx context.Context, userID int64) ([]model.RepositoryWithCounts, error)
	GetRepositoryCounts(ctx context.Context, repositoryID int64) (model.RepositoryCounts, error)

	CreateCommits(ctx context.Context, arg []CreateCommitParams) (int64, error)
	CreateContributors(ctx context.Context, arg []CreateContributorParams) (int64, error)
	CreateLanguages(ctx context.Context, arg []CreateLanguageParams) (int64, error)
	CreateIssues(ctx context.Context, arg []CreateIssueParams) (int64, error)
	CreatePullRequests(ctx context.Context, arg []CreatePullRequestParams) (int64, error)

	CreateAnalyses(ctx context.Context, arg []CreateAnalysisParams) ([]model.Analysis, error)
	ListAnalysesByRepository(ctx context.Context, repositoryID int64, typeFilter string) ([]model.Analysis, error)

	ListCommitsByRepository(ctx context.Context, repositoryID int64) ([]model.Commit, error)
	ListContributorsByRepository(ctx context.Context, repositoryID int64) ([]model.Contributor, error)
	ListLanguagesByRepository(ctx context.Context, repositoryID int64) ([]model.Language, error)
	ListIssuesByRepository(ctx context.Context, repositoryID int64) ([]model.Issue, error)
	ListPullRequestsByRepository(ctx context.Context, repositoryID int64) ([]model.PullRequest, error)

	CreateFavorite(ctx context.Context, userID, repositoryID int64) error
	DeleteFavorite(ctx context.Context, userID, repositoryID int64) error
	ListFavoriteRepositories(ctx context.Context, userID int64) ([]model.RepositoryWithCounts, error)
}

// Store is a Querier that can also run a function inside one transaction.
// Every Querier call made through the function's argument shares the same
// transaction; an error from the function rolls everything back.
type Store interface {
	Querier
	InTx(ctx context.Context, fn func(Querier) error) error
}
