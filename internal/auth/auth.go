// internal/auth/auth.go

// Package auth handles password hashing, bearer token issuance and
// verification, and the HTTP middleware that resolves the requesting user.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github-analyzer/internal/model"
	"github-analyzer/internal/store"
)

const bcryptCost = 12

var errInvalidToken = errors.New("invalid token")

// Service issues and verifies signed session tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	db     store.Querier
	logger *slog.Logger
}

// NewService creates an auth Service.
func NewService(secret string, ttl time.Duration, db store.Querier, logger *slog.Logger) *Service {
	return &Service{secret: []byte(secret), ttl: ttl, db: db, logger: logger}
}

// HashPassword hashes a plaintext password for storage.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored
// hash.
func (s *Service) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs a token whose subject is the user id.
func (s *Service) IssueToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken verifies a token and returns the user id it was issued for.
func (s *Service) ParseToken(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, errInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return 0, errInvalidToken
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, errInvalidToken
	}
	return userID, nil
}

type contextKey struct{}

// ContextWithUser returns a context carrying the authenticated user.
func ContextWithUser(ctx context.Context, user model.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// UserFromContext returns the authenticated user placed by Middleware.
func UserFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(contextKey{}).(model.User)
	return u, ok
}

// Middleware authenticates the bearer token, loads the user, and stores it
// in the request context. Requests without a valid token get a 401.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			unauthorized(w, "Access token required")
			return
		}

		userID, err := s.ParseToken(tokenString)
		if err != nil {
			unauthorized(w, "Invalid token")
			return
		}

		user, err := s.db.GetUserByID(r.Context(), userID)
		if err != nil {
			s.logger.Warn("Token subject not found", "user_id", userID, "error", err)
			unauthorized(w, "User not found")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
