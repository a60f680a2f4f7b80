package services

import (
	"context"
	"fmt"
	"log"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
	"github.com/glimsocial/glim/repository"
)

// FollowService manages follow edges and emits follow notifications.
type FollowService interface {
	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
}

type followService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	notifier   NotificationService
}

// NewFollowService builds a FollowService.
func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	notifier NotificationService,
) FollowService {
	return &followService{followRepo: followRepo, userRepo: userRepo, notifier: notifier}
}

func (s *followService) Follow(ctx context.Context, followerID, followeeID string) error {
	if followerID == followeeID {
		return fmt.Errorf("%w: cannot follow yourself", pkg.ErrBadRequest)
	}

	follower, err := s.userRepo.GetByID(ctx, followerID)
	if err != nil {
		return err
	}
	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}

	if err := s.followRepo.Create(ctx, followerID, followeeID); err != nil {
		return err
	}

	// The follow itself succeeded; a failed notification is only logged.
	if _, err := s.notifier.Notify(ctx, NotifyInput{
		UserID:  followeeID,
		Type:    models.NotificationFollow,
		ActorID: followerID,
		Data:    models.NotificationData{ActorID: followerID, ActorUsername: follower.Username},
	}); err != nil {
		log.Printf("[notify] follow notification failed: %v", err)
	}
	return nil
}

func (s *followService) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return s.followRepo.Delete(ctx, followerID, followeeID)
}
