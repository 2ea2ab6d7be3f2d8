// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrRepositoryNotFound is returned when the hosting API reports that the
// requested repository does not exist (HTTP 404).
var ErrRepositoryNotFound = errors.New("repository not found")

// ErrDuplicateFavorite is returned when a user bookmarks a repository that is
// already in their favorites. Handlers treat it as success.
var ErrDuplicateFavorite = errors.New("repository already in favorites")

// ErrInvalidRepoFormat is returned when a repository reference is not in
// 'owner/name' form and cannot be extracted from a GitHub URL either.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// FacetError represents a failed fetch of one data facet from the hosting
// API. Callers only branch on the facet, never on the cause; the cause is
// retained for logging.
type FacetError struct {
	Facet string
	Err   error
}

func (e *FacetError) Error() string {
	return fmt.Sprintf("error fetching %s: %v", e.Facet, e.Err)
}

func (e *FacetError) Unwrap() error {
	return e.Err
}

// AnalysisError wraps any failure of the ingestion pipeline after the
// repository reference was resolved.
type AnalysisError struct {
	FullName string
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("repository analysis failed for %s: %v", e.FullName, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}
