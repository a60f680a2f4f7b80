package main

import (
	"github.com/glimsocial/glim/config"
	"github.com/glimsocial/glim/handlers"
	"github.com/glimsocial/glim/ws"
)

// Handlers groups every HTTP handler.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Notification *handlers.NotificationHandler
	Push         *handlers.PushHandler
	Follow       *handlers.FollowHandler
	Publisher    *handlers.PublisherHandler
	Report       *handlers.ReportHandler
	Stats        *handlers.StatsHandler
	WS           *ws.Handler
}

// onRoleChange is called with the user whose roles an admin action changed,
// so cached copies of that user are dropped.
func initHandlers(svcs *Services, repos *Repositories, limiters *RateLimiters, hub *ws.Hub, cfg *config.Config, onRoleChange func(userID string)) *Handlers {
	return &Handlers{
		Auth:         handlers.NewAuthHandler(svcs.Auth, limiters.Login, cfg.Server.SecureCookies),
		Notification: handlers.NewNotificationHandler(svcs.Notification),
		Push:         handlers.NewPushHandler(svcs.Push),
		Follow:       handlers.NewFollowHandler(svcs.Follow),
		Publisher:    handlers.NewPublisherHandler(svcs.Publisher, onRoleChange),
		Report:       handlers.NewReportHandler(svcs.Report),
		Stats:        handlers.NewStatsHandler(repos.User, hub),
		WS:           ws.NewHandler(hub, svcs.Auth, svcs.Notification, cfg.Server.AllowedOrigins),
	}
}
