// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"

	"github-analyzer/internal/auth"
	apperrors "github-analyzer/internal/errors"
	"github-analyzer/internal/export"
	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
)

// RepositoryAnalyzer is the slice of the ingestion pipeline the HTTP layer
// consumes.
type RepositoryAnalyzer interface {
	Analyze(ctx context.Context, owner, name string, userID int64, force bool) (*model.AnalysisResult, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	db       store.Querier
	analyzer RepositoryAnalyzer
	auth     *auth.Service
	logger   *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(db store.Querier, an RepositoryAnalyzer, authSvc *auth.Service, logger *slog.Logger) http.Handler {
	h := &Handler{
		db:       db,
		analyzer: an,
		auth:     authSvc,
		logger:   logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.Get("/verify", h.verifyToken)
		})

		r.Group(func(r chi.Router) {
			r.Use(authSvc.Middleware)

			r.Route("/repositories", func(r chi.Router) {
				r.Post("/analyze", h.analyzeRepository)
				r.Get("/", h.listRepositories)
				r.Get("/favorites", h.listFavorites)
				r.Get("/{id}", h.getRepository)
				r.Post("/{id}/favorite", h.addFavorite)
				r.Delete("/{id}/favorite", h.removeFavorite)
			})

			r.Route("/analyses", func(r chi.Router) {
				r.Get("/repository/{id}", h.listAnalyses)
				r.Get("/repository/{id}/stats", h.repositoryStats)
				r.Get("/repository/{id}/export/csv", h.exportCSV)
			})
		})
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var githubURLPattern = regexp.MustCompile(`github\.com/([^/\s]+)/([^/\s]+?)(?:\.git)?/?$`)

// parseRepoRef accepts either a GitHub URL or a plain 'owner/name' pair.
func parseRepoRef(ref string) (owner, name string, err error) {
	ref = strings.TrimSpace(ref)
	if m := githubURLPattern.FindStringSubmatch(ref); m != nil {
		return m[1], m[2], nil
	}

	parts := strings.Split(ref, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &apperrors.ErrInvalidRepoFormat{Repo: ref}
	}
	return parts[0], parts[1], nil
}

// analyzeRepository triggers the ingestion pipeline for one repository.
// POST /api/repositories/analyze
func (h *Handler) analyzeRepository(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	var req struct {
		RepositoryURL string `json:"repositoryUrl"`
		Force         bool   `json:"force"`
	}
	if err := decodeJSON(r, &req); err != nil || req.RepositoryURL == "" {
		respondWithError(w, http.StatusBadRequest, "Repository URL is required")
		return
	}

	owner, name, err := parseRepoRef(req.RepositoryURL)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository URL")
		return
	}

	result, err := h.analyzer.Analyze(r.Context(), owner, name, user.ID, req.Force)
	if err != nil {
		if errors.Is(err, apperrors.ErrRepositoryNotFound) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return
		}
		h.logger.Error("Repository analysis failed", "owner", owner, "repo", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// listRepositories returns the user's analyzed repositories with child
// counts.
// GET /api/repositories
func (h *Handler) listRepositories(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	repos, err := h.db.ListRepositoriesByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to list repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if repos == nil {
		repos = []model.RepositoryWithCounts{}
	}

	respondWithJSON(w, http.StatusOK, repos)
}

// getRepository returns one repository with its child collections.
// GET /api/repositories/{id}
func (h *Handler) getRepository(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	repo, ok := h.userRepository(w, r, user.ID)
	if !ok {
		return
	}

	ctx := r.Context()
	commits, err := h.db.ListCommitsByRepository(ctx, repo.ID)
	if err == nil && len(commits) > 50 {
		commits = commits[:50]
	}
	var contributors []model.Contributor
	if err == nil {
		contributors, err = h.db.ListContributorsByRepository(ctx, repo.ID)
	}
	var languages []model.Language
	if err == nil {
		languages, err = h.db.ListLanguagesByRepository(ctx, repo.ID)
	}
	var issues []model.Issue
	if err == nil {
		issues, err = h.db.ListIssuesByRepository(ctx, repo.ID)
	}
	var prs []model.PullRequest
	if err == nil {
		prs, err = h.db.ListPullRequestsByRepository(ctx, repo.ID)
	}
	var analyses []model.Analysis
	if err == nil {
		analyses, err = h.db.ListAnalysesByRepository(ctx, repo.ID, "")
	}
	if err != nil {
		h.logger.Error("Failed to load repository detail", "repo_id", repo.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"repository":   repo,
		"commits":      commits,
		"contributors": contributors,
		"languages":    languages,
		"issues":       issues,
		"pullRequests": prs,
		"analyses":     analyses,
	})
}

// addFavorite bookmarks a repository. Re-bookmarking is not an error.
// POST /api/repositories/{id}/favorite
func (h *Handler) addFavorite(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	repo, ok := h.userRepository(w, r, user.ID)
	if !ok {
		return
	}

	err := h.db.CreateFavorite(r.Context(), user.ID, repo.ID)
	if err != nil && !errors.Is(err, apperrors.ErrDuplicateFavorite) {
		h.logger.Error("Failed to add favorite", "repo_id", repo.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Repository added to favorites"})
}

// removeFavorite deletes a bookmark.
// DELETE /api/repositories/{id}/favorite
func (h *Handler) removeFavorite(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}

	if err := h.db.DeleteFavorite(r.Context(), user.ID, id); err != nil {
		h.logger.Error("Failed to remove favorite", "repo_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Repository removed from favorites"})
}

// listFavorites returns the user's bookmarked repositories.
// GET /api/repositories/favorites
func (h *Handler) listFavorites(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	repos, err := h.db.ListFavoriteRepositories(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("Failed to list favorites", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if repos == nil {
		repos = []model.RepositoryWithCounts{}
	}

	respondWithJSON(w, http.StatusOK, repos)
}

// listAnalyses returns analyses for a repository, newest first, optionally
// filtered by type.
// GET /api/analyses/repository/{id}?type=...
func (h *Handler) listAnalyses(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	repo, ok := h.userRepository(w, r, user.ID)
	if !ok {
		return
	}

	analyses, err := h.db.ListAnalysesByRepository(r.Context(), repo.ID, r.URL.Query().Get("type"))
	if err != nil {
		h.logger.Error("Failed to list analyses", "repo_id", repo.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if analyses == nil {
		analyses = []model.Analysis{}
	}

	respondWithJSON(w, http.StatusOK, analyses)
}

// repositoryStats returns summary statistics for a repository.
// GET /api/analyses/repository/{id}/stats
func (h *Handler) repositoryStats(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	repo, ok := h.userRepository(w, r, user.ID)
	if !ok {
		return
	}

	ctx := r.Context()
	counts, err := h.db.GetRepositoryCounts(ctx, repo.ID)
	if err != nil {
		h.logger.Error("Failed to count child rows", "repo_id", repo.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	languages, err := h.db.ListLanguagesByRepository(ctx, repo.ID)
	if err != nil {
		h.logger.Error("Failed to load languages", "repo_id", repo.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	analyses, err := h.db.ListAnalysesByRepository(ctx, repo.ID, "")
	if err != nil {
		h.logger.Error("Failed to load analyses", "repo_id", repo.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	summaries := make([]map[string]any, 0, len(analyses))
	for _, a := range analyses {
		summaries = append(summaries, map[string]any{"type": a.Type, "data": a.Data})
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"repository": repo,
		"stats": map[string]any{
			"commits":      counts.Commits,
			"contributors": counts.Contributors,
			"issues":       counts.Issues,
			"pullRequests": counts.PullRequests,
			"languages":    languages,
		},
		"analyses": summaries,
	})
}

// exportCSV streams the CSV report for a repository.
// GET /api/analyses/repository/{id}/export/csv
func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	repo, ok := h.userRepository(w, r, user.ID)
	if !ok {
		return
	}

	ctx := r.Context()
	commits, err := h.db.ListCommitsByRepository(ctx, repo.ID)
	var contributors []model.Contributor
	if err == nil {
		contributors, err = h.db.ListContributorsByRepository(ctx, repo.ID)
	}
	var languages []model.Language
	if err == nil {
		languages, err = h.db.ListLanguagesByRepository(ctx, repo.ID)
	}
	if err != nil {
		h.logger.Error("Failed to load export data", "repo_id", repo.ID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", repo.Name+"-analysis.csv"))
	if err := export.WriteReport(w, repo, commits, contributors, languages); err != nil {
		h.logger.Error("Failed to write CSV report", "repo_id", repo.ID, "error", err)
	}
}

// userRepository loads the path repository scoped to the requesting user,
// writing the error response itself when the lookup fails.
func (h *Handler) userRepository(w http.ResponseWriter, r *http.Request, userID int64) (model.Repository, bool) {
	id, err := parseID(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return model.Repository{}, false
	}

	repo, err := h.db.GetRepositoryForUser(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Repository not found")
			return model.Repository{}, false
		}
		h.logger.Error("Failed to get repository", "repo_id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return model.Repository{}, false
	}
	return repo, true
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
