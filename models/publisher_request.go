package models

import "time"

// PublisherRequestStatus is the lifecycle state of a publisher request.
type PublisherRequestStatus string

const (
	PublisherRequestPending  PublisherRequestStatus = "pending"
	PublisherRequestApproved PublisherRequestStatus = "approved"
	PublisherRequestRejected PublisherRequestStatus = "rejected"
)

// PublisherRequest is a user's application to publish narratives.
// Admins approve or reject it; approval flips User.IsPublisher.
type PublisherRequest struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"user_id"`
	Username   string                 `json:"username"`
	Reason     string                 `json:"reason"`
	Status     PublisherRequestStatus `json:"status"`
	ReviewerID *string                `json:"reviewer_id"`
	CreatedAt  time.Time              `json:"created_at"`
	ReviewedAt *time.Time             `json:"reviewed_at"`
}

// CreatePublisherRequest is the body of POST /api/publisher/requests.
type CreatePublisherRequest struct {
	Reason string `json:"reason" validate:"required,min=10,max=1000"`
}

// ReviewPublisherRequest is the optional body of approve/reject.
type ReviewPublisherRequest struct {
	Note string `json:"note" validate:"max=500"`
}
