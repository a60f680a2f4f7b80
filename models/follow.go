package models

import "time"

// Follow is a one-directional follow edge: FollowerID follows FolloweeID.
type Follow struct {
	FollowerID string    `json:"follower_id"`
	FolloweeID string    `json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}
