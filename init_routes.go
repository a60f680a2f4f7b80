package main

import (
	"net/http"

	"github.com/glimsocial/glim/middleware"
)

// initRoutes registers every endpoint on mux.
//
// Literal paths are registered before parametric siblings, e.g.
// /api/notifications/read-all before /api/notifications/{id}.
func initRoutes(mux *http.ServeMux, h *Handlers, authMw *middleware.AuthMiddleware) {
	adminMw := middleware.NewAdminMiddleware()

	auth := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(handler)
	}
	authAdmin := func(handler http.HandlerFunc) http.Handler {
		return authMw.Require(adminMw.Require(handler))
	}

	// ─── Public ───
	mux.HandleFunc("GET /api/health", h.Stats.Health)
	mux.HandleFunc("GET /api/stats", h.Stats.GetPublicStats)

	// ─── Auth ───
	mux.HandleFunc("POST /api/auth/register", h.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.Auth.Login)
	mux.HandleFunc("POST /api/auth/refresh", h.Auth.Refresh)
	mux.HandleFunc("POST /api/auth/logout", h.Auth.Logout)
	mux.HandleFunc("GET /api/auth/validate", h.Auth.Validate)
	mux.Handle("POST /api/auth/logout-all", auth(h.Auth.LogoutAll))
	mux.Handle("GET /api/users/me", auth(h.Auth.Me))

	// ─── Notifications ───
	mux.Handle("GET /api/notifications", auth(h.Notification.List))
	mux.Handle("GET /api/notifications/unread-count", auth(h.Notification.UnreadCount))
	mux.Handle("POST /api/notifications/read-all", auth(h.Notification.MarkAllRead))
	mux.Handle("PATCH /api/notifications/{id}/read", auth(h.Notification.MarkRead))
	mux.Handle("DELETE /api/notifications/{id}", auth(h.Notification.Delete))

	// ─── Push ───
	mux.HandleFunc("GET /api/push/public-key", h.Push.PublicKey)
	mux.Handle("POST /api/push/subscriptions", auth(h.Push.Subscribe))
	mux.Handle("DELETE /api/push/subscriptions", auth(h.Push.Unsubscribe))

	// ─── Social ───
	mux.Handle("POST /api/users/{id}/follow", auth(h.Follow.Follow))
	mux.Handle("DELETE /api/users/{id}/follow", auth(h.Follow.Unfollow))
	mux.Handle("POST /api/reports", auth(h.Report.Create))

	// ─── Publisher ───
	mux.Handle("POST /api/publisher/requests", auth(h.Publisher.Request))
	mux.Handle("GET /api/admin/publisher-requests", authAdmin(h.Publisher.ListPending))
	mux.Handle("POST /api/admin/publisher-requests/{id}/approve", authAdmin(h.Publisher.Approve))
	mux.Handle("POST /api/admin/publisher-requests/{id}/reject", authAdmin(h.Publisher.Reject))

	// ─── Realtime ───
	// Browsers cannot set headers on a WebSocket upgrade, so the handler
	// authenticates the ?token= query parameter itself.
	mux.HandleFunc("GET /ws", h.WS.HandleConnection)
}
