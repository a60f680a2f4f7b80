package repository

import (
	"context"

	"github.com/glimsocial/glim/models"
)

// PushSubscriptionRepository stores devices registered for offline push.
type PushSubscriptionRepository interface {
	// Upsert registers sub.Token for sub.UserID. Re-registering a token moves
	// it to the new user and refreshes its keys.
	Upsert(ctx context.Context, sub *models.PushSubscription) error
	ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	DeleteByToken(ctx context.Context, userID, token string) error
	DeleteByID(ctx context.Context, id string) error
}
