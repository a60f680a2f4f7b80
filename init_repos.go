package main

import (
	"github.com/glimsocial/glim/database"
	"github.com/glimsocial/glim/repository"
)

// Repositories groups every repository so the wire-up functions take one
// parameter instead of many.
type Repositories struct {
	User             repository.UserRepository
	Session          repository.SessionRepository
	Notification     repository.NotificationRepository
	Push             repository.PushSubscriptionRepository
	Follow           repository.FollowRepository
	PublisherRequest repository.PublisherRequestRepository
	Report           repository.ReportRepository
}

// initRepositories builds the repositories on the shared connection pool.
// Notification and push repositories use the sqlx handle for struct scanning.
func initRepositories(db *database.DB) *Repositories {
	return &Repositories{
		User:             repository.NewSQLiteUserRepo(db.Conn),
		Session:          repository.NewSQLiteSessionRepo(db.Conn),
		Notification:     repository.NewSQLiteNotificationRepo(db.X),
		Push:             repository.NewSQLitePushRepo(db.X),
		Follow:           repository.NewSQLiteFollowRepo(db.Conn),
		PublisherRequest: repository.NewSQLitePublisherRequestRepo(db.Conn),
		Report:           repository.NewSQLiteReportRepo(db.Conn),
	}
}
