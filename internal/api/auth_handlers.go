// internal/api/auth_handlers.go
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"github-analyzer/internal/store"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// register creates a new account and returns a session token.
// POST /api/auth/register
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	_, err := h.db.GetUserByEmail(r.Context(), req.Email)
	if err == nil {
		respondWithError(w, http.StatusConflict, "User already exists")
		return
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		h.logger.Error("Failed to look up user", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	hash, err := h.auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Failed to hash password", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user, err := h.db.CreateUser(r.Context(), store.CreateUserParams{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
	})
	if err != nil {
		h.logger.Error("Failed to create user", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := h.auth.IssueToken(user.ID)
	if err != nil {
		h.logger.Error("Failed to issue token", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]any{
		"user":  userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
		"token": token,
	})
}

// login verifies credentials and returns a session token.
// POST /api/auth/login
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.db.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.Error("Failed to look up user", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if !h.auth.CheckPassword(user.PasswordHash, req.Password) {
		respondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.auth.IssueToken(user.ID)
	if err != nil {
		h.logger.Error("Failed to issue token", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"user":  userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
		"token": token,
	})
}

// verifyToken resolves a bearer token back to its user.
// GET /api/auth/verify
func (h *Handler) verifyToken(w http.ResponseWriter, r *http.Request) {
	tokenString, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || tokenString == "" {
		respondWithError(w, http.StatusUnauthorized, "Token required")
		return
	}

	userID, err := h.auth.ParseToken(tokenString)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	user, err := h.db.GetUserByID(r.Context(), userID)
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "User not found")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"user": userResponse{ID: user.ID, Email: user.Email, Name: user.Name},
	})
}
