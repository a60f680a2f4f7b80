// Package middleware holds the HTTP middleware chain.
//
// A middleware is a func(next http.Handler) http.Handler: it does its check
// and either calls next or writes an error and stops the chain.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/glimsocial/glim/handlers"
	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
	"github.com/glimsocial/glim/pkg/cache"
	"github.com/glimsocial/glim/repository"
	"github.com/glimsocial/glim/services"
)

const userCacheTTL = 30 * time.Second

// AuthMiddleware authenticates requests by access token.
type AuthMiddleware struct {
	authService services.AuthService
	userRepo    repository.UserRepository
	users       *cache.TTLCache[string, models.User]
}

// NewAuthMiddleware builds an AuthMiddleware. Loaded users are cached
// briefly so hot endpoints do not hit the database on every request.
func NewAuthMiddleware(authService services.AuthService, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		userRepo:    userRepo,
		users:       cache.New[string, models.User](userCacheTTL, time.Minute),
	}
}

// Require rejects requests without a valid access token (Bearer header or
// token cookie) and stores the user in the request context.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := handlers.TokenFromRequest(r)
		if token == "" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "missing token")
			return
		}

		claims, err := m.authService.ValidateAccessToken(token)
		if err != nil {
			pkg.Error(w, err)
			return
		}

		user, err := m.loadUser(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, pkg.ErrNotFound) {
				pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found")
				return
			}
			pkg.Error(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), handlers.UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Invalidate drops a cached user, e.g. after a role change.
func (m *AuthMiddleware) Invalidate(userID string) {
	m.users.Delete(userID)
}

// Close stops the cache janitor.
func (m *AuthMiddleware) Close() {
	m.users.Close()
}

// loadUser returns a fresh copy per request so handlers may not mutate the
// cached value.
func (m *AuthMiddleware) loadUser(ctx context.Context, userID string) (*models.User, error) {
	if u, ok := m.users.Get(userID); ok {
		return &u, nil
	}

	user, err := m.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = ""
	m.users.Set(userID, *user)
	return user, nil
}
