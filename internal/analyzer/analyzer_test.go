// internal/analyzer/analyzer_test.go
package analyzer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
)

// MockQuerier is a mock of the store.Querier interface.
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) CreateUser(ctx context.Context, arg store.CreateUserParams) (model.User, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.User), args.Error(1)
}
func (m *MockQuerier) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}
func (m *MockQuerier) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}
func (m *MockQuerier) UpsertRepository(ctx context.Context, arg store.UpsertRepositoryParams) (model.Repository, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(model.Repository), args.Error(1)
}
func (m *MockQuerier) GetRepositoryByFullName(ctx context.Context, fullName string) (model.Repository, error) {
	args := m.Called(ctx, fullName)
	return args.Get(0).(model.Repository), args.Error(1)
}
func (m *MockQuerier) GetRepositoryForUser(ctx context.Context, id, userID int64) (model.Repository, error) {
	args := m.Called(ctx, id, userID)
	return args.Get(0).(model.Repository), args.Error(1)
}
func (m *MockQuerier) ListRepositoriesByUser(ctx context.Context, userID int64) ([]model.RepositoryWithCounts, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.RepositoryWithCounts), args.Error(1)
}
func (m *MockQuerier) GetRepositoryCounts(ctx context.Context, repositoryID int64) (model.RepositoryCounts, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).(model.RepositoryCounts), args.Error(1)
}
func (m *MockQuerier) CreateCommits(ctx context.Context, arg []store.CreateCommitParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) CreateContributors(ctx context.Context, arg []store.CreateContributorParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) CreateLanguages(ctx context.Context, arg []store.CreateLanguageParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) CreateIssues(ctx context.Context, arg []store.CreateIssueParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) CreatePullRequests(ctx context.Context, arg []store.CreatePullRequestParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) CreateAnalyses(ctx context.Context, arg []store.CreateAnalysisParams) ([]model.Analysis, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]model.Analysis), args.Error(1)
}
func (m *MockQuerier) ListAnalysesByRepository(ctx context.Context, repositoryID int64, typeFilter string) ([]model.Analysis, error) {
	args := m.Called(ctx, repositoryID, typeFilter)
	return args.Get(0).([]model.Analysis), args.Error(1)
}
func (m *MockQuerier) ListCommitsByRepository(ctx context.Context, repositoryID int64) ([]model.Commit, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).([]model.Commit), args.Error(1)
}
func (m *MockQuerier) ListContributorsByRepository(ctx context.Context, repositoryID int64) ([]model.Contributor, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).([]model.Contributor), args.Error(1)
}
func (m *MockQuerier) ListLanguagesByRepository(ctx context.Context, repositoryID int64) ([]model.Language, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).([]model.Language), args.Error(1)
}
func (m *MockQuerier) ListIssuesByRepository(ctx context.Context, repositoryID int64) ([]model.Issue, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).([]model.Issue), args.Error(1)
}
func (m *MockQuerier) ListPullRequestsByRepository(ctx context.Context, repositoryID int64) ([]model.PullRequest, error) {
	args := m.Called(ctx, repositoryID)
	return args.Get(0).([]model.PullRequest), args.Error(1)
}
func (m *MockQuerier) CreateFavorite(ctx context.Context, userID, repositoryID int64) error {
	return m.Called(ctx, userID, repositoryID).Error(0)
}
func (m *MockQuerier) DeleteFavorite(ctx context.Context, userID, repositoryID int64) error {
	return m.Called(ctx, userID, repositoryID).Error(0)
}
func (m *MockQuerier) ListFavoriteRepositories(ctx context.Context, userID int64) ([]model.RepositoryWithCounts, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]model.RepositoryWithCounts), args.Error(1)
}

// MockStore is a MockQuerier whose InTx runs the function against the same
// mock, counting transactions.
type MockStore struct {
	MockQuerier
	txCalls int
}

func (m *MockStore) InTx(ctx context.Context, fn func(store.Querier) error) error {
	m.txCalls++
	return fn(&m.MockQuerier)
}

// MockGitHub is a mock of the GitHubAPI interface.
type MockGitHub struct {
	mock.Mock
}

func (m *MockGitHub) GetRepository(ctx context.Context, owner, name string) (*github.Repository, error) {
	args := m.Called(ctx, owner, name)
	repo, _ := args.Get(0).(*github.Repository)
	return repo, args.Error(1)
}
func (m *MockGitHub) GetCommits(ctx context.Context, owner, name string) ([]*github.RepositoryCommit, error) {
	args := m.Called(ctx, owner, name)
	commits, _ := args.Get(0).([]*github.RepositoryCommit)
	return commits, args.Error(1)
}
func (m *MockGitHub) GetContributors(ctx context.Context, owner, name string) ([]*github.Contributor, error) {
	args := m.Called(ctx, owner, name)
	contributors, _ := args.Get(0).([]*github.Contributor)
	return contributors, args.Error(1)
}
func (m *MockGitHub) GetLanguages(ctx context.Context, owner, name string) (map[string]int, error) {
	args := m.Called(ctx, owner, name)
	languages, _ := args.Get(0).(map[string]int)
	return languages, args.Error(1)
}
func (m *MockGitHub) GetIssues(ctx context.Context, owner, name string) ([]*github.Issue, error) {
	args := m.Called(ctx, owner, name)
	issues, _ := args.Get(0).([]*github.Issue)
	return issues, args.Error(1)
}
func (m *MockGitHub) GetPullRequests(ctx context.Context, owner, name string) ([]*github.PullRequest, error) {
	args := m.Called(ctx, owner, name)
	prs, _ := args.Get(0).([]*github.PullRequest)
	return prs, args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func ghRepo() *github.Repository {
	return &github.Repository{
		Owner:           &github.User{Login: github.String("test-owner")},
		Name:            github.String("test-repo"),
		FullName:        github.String("test-owner/test-repo"),
		Description:     github.String("a fixture"),
		Language:        github.String("Go"),
		StargazersCount: github.Int(10),
		ForksCount:      github.Int(3),
		WatchersCount:   github.Int(10),
		HTMLURL:         github.String("https://github.com/test-owner/test-repo"),
	}
}

func ghCommit(sha, date string) *github.RepositoryCommit {
	d, _ := time.Parse(time.RFC3339, date)
	return &github.RepositoryCommit{
		SHA: github.String(sha),
		Commit: &github.Commit{
			Message: github.String("msg " + sha),
			Author: &github.CommitAuthor{
				Name:  github.String("tester"),
				Email: github.String("t@t.com"),
				Date:  &github.Timestamp{Time: d},
			},
		},
		HTMLURL: github.String("https://github.com/test-owner/test-repo/commit/" + sha),
	}
}

// expectAllFacets wires the six facet fetches to succeed with small fixtures.
func expectAllFacets(gh *MockGitHub) {
	gh.On("GetRepository", mock.Anything, "test-owner", "test-repo").Return(ghRepo(), nil)
	gh.On("GetCommits", mock.Anything, "test-owner", "test-repo").Return([]*github.RepositoryCommit{
		ghCommit("abc", "2023-06-05T10:00:00Z"),
		ghCommit("def", "2023-06-06T10:00:00Z"),
	}, nil)
	gh.On("GetContributors", mock.Anything, "test-owner", "test-repo").Return([]*github.Contributor{
		{Login: github.String("alice"), Contributions: github.Int(5), AvatarURL: github.String("a")},
	}, nil)
	gh.On("GetLanguages", mock.Anything, "test-owner", "test-repo").Return(map[string]int{"Go": 100}, nil)
	gh.On("GetIssues", mock.Anything, "test-owner", "test-repo").Return([]*github.Issue{
		{Number: github.Int(1), Title: github.String("bug"), State: github.String("open"),
			Labels:    []*github.Label{{Name: github.String("bug")}},
			CreatedAt: &github.Timestamp{}, UpdatedAt: &github.Timestamp{}},
	}, nil)
	gh.On("GetPullRequests", mock.Anything, "test-owner", "test-repo").Return([]*github.PullRequest{
		{Number: github.Int(2), Title: github.String("feat"), State: github.String("closed"),
			Merged:    github.Bool(true),
			CreatedAt: &github.Timestamp{}, UpdatedAt: &github.Timestamp{}},
	}, nil)
}

func TestAnalyzer_CachedFastPath(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	gh := new(MockGitHub)
	a := New(st, gh, testLogger())

	existing := model.Repository{ID: 7, FullName: "test-owner/test-repo"}
	stored := []model.Analysis{{ID: 1, RepositoryID: 7, Type: model.AnalysisLanguages}}
	st.On("GetRepositoryByFullName", ctx, "test-owner/test-repo").Return(existing, nil).Once()
	st.On("ListAnalysesByRepository", ctx, int64(7), "").Return(stored, nil).Once()

	result, err := a.Analyze(ctx, "test-owner", "test-repo", 1, false)

	require.NoError(t, err)
	assert.Equal(t, existing, result.Repository)
	assert.Equal(t, stored, result.Analyses)

	// No external fetch of any facet and no writes.
	gh.AssertNotCalled(t, "GetRepository", mock.Anything, mock.Anything, mock.Anything)
	gh.AssertNotCalled(t, "GetCommits", mock.Anything, mock.Anything, mock.Anything)
	assert.Zero(t, st.txCalls)
	st.AssertExpectations(t)
}

func TestAnalyzer_NotFoundPassesThrough(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	gh := new(MockGitHub)
	a := New(st, gh, testLogger())

	st.On("GetRepositoryByFullName", ctx, "test-owner/test-repo").Return(model.Repository{}, pgx.ErrNoRows).Once()
	gh.On("GetRepository", mock.Anything, "test-owner", "test-repo").Return(nil, apperrors.ErrRepositoryNotFound)
	// The remaining facets race the failure; they may or may not be reached.
	gh.On("GetCommits", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	gh.On("GetContributors", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	gh.On("GetLanguages", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	gh.On("GetIssues", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	gh.On("GetPullRequests", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()

	_, err := a.Analyze(ctx, "test-owner", "test-repo", 1, false)

	assert.ErrorIs(t, err, apperrors.ErrRepositoryNotFound)
	var analysisErr *apperrors.AnalysisError
	assert.False(t, errors.As(err, &analysisErr), "not-found must not be wrapped as analysis failure")
	assert.Zero(t, st.txCalls)
	st.AssertNotCalled(t, "UpsertRepository", mock.Anything, mock.Anything)
}

func TestAnalyzer_FacetFailureAbortsBeforeAnyWrite(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	gh := new(MockGitHub)
	a := New(st, gh, testLogger())

	st.On("GetRepositoryByFullName", ctx, "test-owner/test-repo").Return(model.Repository{}, pgx.ErrNoRows).Once()
	facetFailure := &apperrors.FacetError{Facet: "contributors", Err: errors.New("boom")}
	gh.On("GetRepository", mock.Anything, mock.Anything, mock.Anything).Return(ghRepo(), nil).Maybe()
	gh.On("GetCommits", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	gh.On("GetContributors", mock.Anything, "test-owner", "test-repo").Return(nil, facetFailure)
	gh.On("GetLanguages", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	gh.On("GetIssues", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()
	gh.On("GetPullRequests", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Maybe()

	_, err := a.Analyze(ctx, "test-owner", "test-repo", 1, false)

	var analysisErr *apperrors.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	var wrapped *apperrors.FacetError
	require.ErrorAs(t, err, &wrapped)
	assert.Equal(t, "contributors", wrapped.Facet)

	// The transaction never starts, so nothing is committed.
	assert.Zero(t, st.txCalls)
	st.AssertNotCalled(t, "UpsertRepository", mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "CreateCommits", mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "CreateAnalyses", mock.Anything, mock.Anything)
}

func TestAnalyzer_SuccessfulIngestion(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	gh := new(MockGitHub)
	a := New(st, gh, testLogger())

	st.On("GetRepositoryByFullName", ctx, "test-owner/test-repo").Return(model.Repository{}, pgx.ErrNoRows).Once()
	expectAllFacets(gh)

	saved := model.Repository{ID: 42, FullName: "test-owner/test-repo", UserID: 1}
	st.On("UpsertRepository", mock.Anything, mock.MatchedBy(func(arg store.UpsertRepositoryParams) bool {
		return arg.FullName == "test-owner/test-repo" && arg.Stars == 10 && arg.UserID == 1
	})).Return(saved, nil).Once()

	st.On("CreateCommits", mock.Anything, mock.MatchedBy(func(arg []store.CreateCommitParams) bool {
		return len(arg) == 2 && arg[0].SHA == "abc" && arg[0].RepositoryID == 42 && arg[0].Author == "tester"
	})).Return(int64(2), nil).Once()
	st.On("CreateContributors", mock.Anything, mock.MatchedBy(func(arg []store.CreateContributorParams) bool {
		return len(arg) == 1 && arg[0].Username == "alice" && arg[0].Commits == 5
	})).Return(int64(1), nil).Once()
	st.On("CreateLanguages", mock.Anything, mock.MatchedBy(func(arg []store.CreateLanguageParams) bool {
		return len(arg) == 1 && arg[0].Name == "Go" && arg[0].Percentage == 100.0
	})).Return(int64(1), nil).Once()
	st.On("CreateIssues", mock.Anything, mock.MatchedBy(func(arg []store.CreateIssueParams) bool {
		return len(arg) == 1 && arg[0].Number == 1 && len(arg[0].Labels) == 1 && arg[0].Labels[0] == "bug"
	})).Return(int64(1), nil).Once()
	st.On("CreatePullRequests", mock.Anything, mock.MatchedBy(func(arg []store.CreatePullRequestParams) bool {
		return len(arg) == 1 && arg[0].Number == 2 && arg[0].Merged
	})).Return(int64(1), nil).Once()

	st.On("CreateAnalyses", mock.Anything, mock.MatchedBy(func(arg []store.CreateAnalysisParams) bool {
		if len(arg) != 5 {
			return false
		}
		types := make([]string, len(arg))
		for i, p := range arg {
			if p.RepositoryID != 42 {
				return false
			}
			types[i] = p.Type
		}
		return assert.ObjectsAreEqual([]string{
			model.AnalysisCommitFrequency,
			model.AnalysisComplexity,
			model.AnalysisContributors,
			model.AnalysisLanguages,
			model.AnalysisIssuesPRs,
		}, types)
	})).Return([]model.Analysis{
		{ID: 1, Type: model.AnalysisCommitFrequency},
		{ID: 2, Type: model.AnalysisComplexity},
		{ID: 3, Type: model.AnalysisContributors},
		{ID: 4, Type: model.AnalysisLanguages},
		{ID: 5, Type: model.AnalysisIssuesPRs},
	}, nil).Once()

	result, err := a.Analyze(ctx, "test-owner", "test-repo", 1, false)

	require.NoError(t, err)
	assert.Equal(t, saved, result.Repository)
	require.Len(t, result.Analyses, 5)
	assert.Equal(t, 1, st.txCalls)
	st.AssertExpectations(t)
	gh.AssertExpectations(t)
}

func TestAnalyzer_PersistenceFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	gh := new(MockGitHub)
	a := New(st, gh, testLogger())

	st.On("GetRepositoryByFullName", ctx, "test-owner/test-repo").Return(model.Repository{}, pgx.ErrNoRows).Once()
	expectAllFacets(gh)

	st.On("UpsertRepository", mock.Anything, mock.Anything).Return(model.Repository{ID: 42}, nil).Once()
	dbErr := errors.New("insert exploded")
	st.On("CreateCommits", mock.Anything, mock.Anything).Return(int64(0), dbErr).Once()

	_, err := a.Analyze(ctx, "test-owner", "test-repo", 1, false)

	var analysisErr *apperrors.AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.ErrorIs(t, err, dbErr)

	// The failing step ends the transaction; later steps never run.
	st.AssertNotCalled(t, "CreateContributors", mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "CreateAnalyses", mock.Anything, mock.Anything)
}

func TestAnalyzer_ForceBypassesCache(t *testing.T) {
	ctx := context.Background()
	st := new(MockStore)
	gh := new(MockGitHub)
	a := New(st, gh, testLogger())

	expectAllFacets(gh)
	st.On("UpsertRepository", mock.Anything, mock.Anything).Return(model.Repository{ID: 42}, nil).Once()
	st.On("CreateCommits", mock.Anything, mock.Anything).Return(int64(0), nil).Once()
	st.On("CreateContributors", mock.Anything, mock.Anything).Return(int64(0), nil).Once()
	st.On("CreateLanguages", mock.Anything, mock.Anything).Return(int64(0), nil).Once()
	st.On("CreateIssues", mock.Anything, mock.Anything).Return(int64(0), nil).Once()
	st.On("CreatePullRequests", mock.Anything, mock.Anything).Return(int64(0), nil).Once()
	st.On("CreateAnalyses", mock.Anything, mock.Anything).Return([]model.Analysis{}, nil).Once()

	_, err := a.Analyze(ctx, "test-owner", "test-repo", 1, true)

	require.NoError(t, err)
	st.AssertNotCalled(t, "GetRepositoryByFullName", mock.Anything, mock.Anything)
	assert.Equal(t, 1, st.txCalls)
}
