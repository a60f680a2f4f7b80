package repository

import (
	"context"

	"github.com/glimsocial/glim/models"
)

// NotificationRepository stores notifications and keeps the per-user
// notification version.
//
// Every mutation runs in one transaction that also bumps
// users.notification_version and returns the fresh UnreadCount, so the count
// and version a client receives always describe the same database state.
type NotificationRepository interface {
	// Create assigns ID and CreatedAt when empty.
	Create(ctx context.Context, n *models.Notification) (models.UnreadCount, error)
	GetByID(ctx context.Context, userID, id string) (*models.Notification, error)
	// ListByUser returns one page, newest first, and whether more pages exist.
	ListByUser(ctx context.Context, userID string, page, limit int) ([]models.Notification, bool, error)
	UnreadCount(ctx context.Context, userID string) (models.UnreadCount, error)
	MarkRead(ctx context.Context, userID, id string) (models.UnreadCount, error)
	MarkAllRead(ctx context.Context, userID string) (models.UnreadCount, error)
	Delete(ctx context.Context, userID, id string) (models.UnreadCount, error)
}
