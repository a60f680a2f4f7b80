package repository

import "context"

// FollowRepository stores follow edges.
type FollowRepository interface {
	Create(ctx context.Context, followerID, followeeID string) error
	Delete(ctx context.Context, followerID, followeeID string) error
	Exists(ctx context.Context, followerID, followeeID string) (bool, error)
	// ListFollowerIDs is used to fan out new_post notifications.
	ListFollowerIDs(ctx context.Context, followeeID string) ([]string, error)
}
