// internal/model/models.go
package model

import (
	"encoding/json"
	"time"
)

// User is a registered account that can request analyses and bookmark
// repositories.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Repository is the root entity of one analyzed GitHub repository. FullName
// ('owner/name') is globally unique and serves as the idempotency key: the
// first successful ingestion fixes the row for every later caller.
type Repository struct {
	ID          int64     `json:"id"`
	Owner       string    `json:"owner"`
	Name        string    `json:"name"`
	FullName    string    `json:"fullName"`
	Description *string   `json:"description"`
	Language    *string   `json:"language"`
	Stars       int       `json:"stars"`
	Forks       int       `json:"forks"`
	Watchers    int       `json:"watchers"`
	URL         string    `json:"url"`
	UserID      int64     `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RepositoryCounts carries per-repository child row counts for list views.
type RepositoryCounts struct {
	Commits      int64 `json:"commits"`
	Contributors int64 `json:"contributors"`
	Issues       int64 `json:"issues"`
	PullRequests int64 `json:"pullRequests"`
}

// RepositoryWithCounts is a Repository plus its child collection sizes.
type RepositoryWithCounts struct {
	Repository
	Counts RepositoryCounts `json:"counts"`
}

// Commit is an immutable commit record, naturally keyed by
// (repositoryID, sha).
type Commit struct {
	ID           int64     `json:"id"`
	RepositoryID int64     `json:"repositoryId"`
	SHA          string    `json:"sha"`
	Message      string    `json:"message"`
	Author       string    `json:"author"`
	AuthorEmail  string    `json:"authorEmail"`
	Date         time.Time `json:"date"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Contributor is naturally keyed by (repositoryID, username).
type Contributor struct {
	ID           int64  `json:"id"`
	RepositoryID int64  `json:"repositoryId"`
	Username     string `json:"username"`
	AvatarURL    string `json:"avatarUrl"`
	Commits      int    `json:"commits"`
}

// Language records the byte count of one language at ingestion time,
// naturally keyed by (repositoryID, name).
type Language struct {
	ID           int64   `json:"id"`
	RepositoryID int64   `json:"repositoryId"`
	Name         string  `json:"name"`
	Bytes        int64   `json:"bytes"`
	Percentage   float64 `json:"percentage"`
}

// Issue is naturally keyed by (repositoryID, number).
type Issue struct {
	ID           int64      `json:"id"`
	RepositoryID int64      `json:"repositoryId"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Body         *string    `json:"body"`
	State        string     `json:"state"`
	Labels       []string   `json:"labels"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ClosedAt     *time.Time `json:"closedAt"`
}

// PullRequest has the shape of Issue plus the merged flag.
type PullRequest struct {
	ID           int64      `json:"id"`
	RepositoryID int64      `json:"repositoryId"`
	Number       int        `json:"number"`
	Title        string     `json:"title"`
	Body         *string    `json:"body"`
	State        string     `json:"state"`
	Merged       bool       `json:"merged"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	ClosedAt     *time.Time `json:"closedAt"`
}

// Analysis type tags. Repeated ingestions may accumulate rows of the same
// type; consumers take the most recent by CreatedAt.
const (
	AnalysisCommitFrequency = "commit_frequency"
	AnalysisComplexity      = "complexity"
	AnalysisContributors    = "contributors"
	AnalysisLanguages       = "languages"
	AnalysisIssuesPRs       = "issues_prs"
)

// Analysis is a typed derived-statistics record. Data is the JSON payload
// specific to the analysis type.
type Analysis struct {
	ID           int64           `json:"id"`
	RepositoryID int64           `json:"repositoryId"`
	Type         string          `json:"type"`
	Data         json.RawMessage `json:"data"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// AnalysisResult is what the ingestion pipeline returns to the HTTP layer.
type AnalysisResult struct {
	Repository Repository `json:"repository"`
	Analyses   []Analysis `json:"analyses"`
}
