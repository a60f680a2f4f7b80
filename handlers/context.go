package handlers

import (
	"context"

	"github.com/glimsocial/glim/models"
)

type contextKey string

// UserContextKey is where the auth middleware stores the *models.User.
const UserContextKey contextKey = "user"

// UserFromContext returns the authenticated user set by the auth middleware.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok
}
