package repository

import (
	"context"

	"github.com/glimsocial/glim/models"
)

// PublisherRequestRepository stores applications for the publisher role.
type PublisherRequestRepository interface {
	Create(ctx context.Context, req *models.PublisherRequest) error
	GetByID(ctx context.Context, id string) (*models.PublisherRequest, error)
	HasPending(ctx context.Context, userID string) (bool, error)
	ListByStatus(ctx context.Context, status models.PublisherRequestStatus) ([]models.PublisherRequest, error)
	// Review moves a pending request to approved or rejected. A request that
	// is no longer pending yields ErrNotFound.
	Review(ctx context.Context, id, reviewerID string, status models.PublisherRequestStatus) error
}
