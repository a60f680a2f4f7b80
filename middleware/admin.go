package middleware

import (
	"net/http"

	"github.com/glimsocial/glim/handlers"
	"github.com/glimsocial/glim/pkg"
)

// AdminMiddleware restricts a route to platform admins. It runs after
// AuthMiddleware.
//
//	authMw.Require(adminMw.Require(http.HandlerFunc(h.ListPending)))
type AdminMiddleware struct{}

// NewAdminMiddleware builds an AdminMiddleware.
func NewAdminMiddleware() *AdminMiddleware {
	return &AdminMiddleware{}
}

// Require answers 403 unless the context user has is_admin set.
func (m *AdminMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := handlers.UserFromContext(r.Context())
		if !ok {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
			return
		}

		if !user.IsAdmin {
			pkg.ErrorWithMessage(w, http.StatusForbidden, "admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
