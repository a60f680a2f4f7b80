package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/glimsocial/glim/database"
	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
	"github.com/glimsocial/glim/pkg/validate"
	"github.com/glimsocial/glim/repository"
)

// PublisherService runs the publisher application workflow.
type PublisherService interface {
	Request(ctx context.Context, userID string, req *models.CreatePublisherRequest) (*models.PublisherRequest, error)
	ListPending(ctx context.Context) ([]models.PublisherRequest, error)
	Approve(ctx context.Context, adminID, requestID string) (*models.PublisherRequest, error)
	Reject(ctx context.Context, adminID, requestID string) (*models.PublisherRequest, error)
}

type publisherService struct {
	db          *sql.DB
	requestRepo repository.PublisherRequestRepository
	userRepo    repository.UserRepository
	notifier    NotificationService
}

// NewPublisherService builds a PublisherService. db is used for the review
// transaction; tx-bound repositories are created inside it.
func NewPublisherService(
	db *sql.DB,
	requestRepo repository.PublisherRequestRepository,
	userRepo repository.UserRepository,
	notifier NotificationService,
) PublisherService {
	return &publisherService{db: db, requestRepo: requestRepo, userRepo: userRepo, notifier: notifier}
}

func (s *publisherService) Request(ctx context.Context, userID string, req *models.CreatePublisherRequest) (*models.PublisherRequest, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.IsPublisher {
		return nil, fmt.Errorf("%w: already a publisher", pkg.ErrBadRequest)
	}

	pending, err := s.requestRepo.HasPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, fmt.Errorf("%w: a request is already pending", pkg.ErrAlreadyExists)
	}

	pr := &models.PublisherRequest{UserID: userID, Username: user.Username, Reason: req.Reason}
	if err := s.requestRepo.Create(ctx, pr); err != nil {
		return nil, err
	}

	if err := s.notifier.NotifyAdmins(ctx, NotifyInput{
		Type:    models.NotificationPublisherRequest,
		ActorID: userID,
		Data: models.NotificationData{
			ActorID:       userID,
			ActorUsername: user.Username,
			RequestID:     pr.ID,
		},
	}); err != nil {
		log.Printf("[notify] publisher request fan-out failed: %v", err)
	}

	return pr, nil
}

func (s *publisherService) ListPending(ctx context.Context) ([]models.PublisherRequest, error) {
	return s.requestRepo.ListByStatus(ctx, models.PublisherRequestPending)
}

func (s *publisherService) Approve(ctx context.Context, adminID, requestID string) (*models.PublisherRequest, error) {
	return s.review(ctx, adminID, requestID, models.PublisherRequestApproved)
}

func (s *publisherService) Reject(ctx context.Context, adminID, requestID string) (*models.PublisherRequest, error) {
	return s.review(ctx, adminID, requestID, models.PublisherRequestRejected)
}

// review updates the request and the user's publisher flag atomically, then
// notifies the applicant. It returns the request as reviewed.
func (s *publisherService) review(ctx context.Context, adminID, requestID string, status models.PublisherRequestStatus) (*models.PublisherRequest, error) {
	pr, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if pr.Status != models.PublisherRequestPending {
		return nil, fmt.Errorf("%w: request already reviewed", pkg.ErrBadRequest)
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := repository.NewSQLitePublisherRequestRepo(tx).Review(ctx, requestID, adminID, status); err != nil {
			return err
		}
		if status == models.PublisherRequestApproved {
			return repository.NewSQLiteUserRepo(tx).SetPublisher(ctx, pr.UserID, true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if reviewed, err := s.requestRepo.GetByID(ctx, requestID); err == nil {
		pr = reviewed
	} else {
		pr.Status = status
		pr.ReviewerID = &adminID
	}

	typ := models.NotificationPublisherRejected
	if status == models.PublisherRequestApproved {
		typ = models.NotificationPublisherApproved
	}
	if _, err := s.notifier.Notify(ctx, NotifyInput{
		UserID:  pr.UserID,
		Type:    typ,
		ActorID: adminID,
		Data:    models.NotificationData{RequestID: pr.ID},
	}); err != nil {
		log.Printf("[notify] publisher decision notification failed: %v", err)
	}

	log.Printf("[publisher] request %s %s by %s", requestID, status, adminID)
	return pr, nil
}
