package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
	"github.com/glimsocial/glim/pkg/crypto"
	"github.com/glimsocial/glim/pkg/email"
	"github.com/glimsocial/glim/pkg/i18n"
	"github.com/glimsocial/glim/pkg/push"
	"github.com/glimsocial/glim/pkg/validate"
	"github.com/glimsocial/glim/repository"
)

// PushService manages offline-delivery subscriptions and implements
// OfflineDispatcher.
type PushService interface {
	PublicKey() string
	Subscribe(ctx context.Context, userID string, req *models.SubscribePushRequest) (*models.PushSubscription, error)
	Unsubscribe(ctx context.Context, userID, token string) error
	Dispatch(ctx context.Context, userID string, n *models.Notification)
}

type pushService struct {
	pushRepo repository.PushSubscriptionRepository
	userRepo repository.UserRepository
	sender   push.Sender
	mailer   email.Sender
	cipher   *crypto.FieldCipher
	appURL   string
}

// NewPushService builds a PushService. mailer may be nil to disable the
// e-mail fallback.
func NewPushService(
	pushRepo repository.PushSubscriptionRepository,
	userRepo repository.UserRepository,
	sender push.Sender,
	mailer email.Sender,
	cipher *crypto.FieldCipher,
	appURL string,
) PushService {
	return &pushService{
		pushRepo: pushRepo,
		userRepo: userRepo,
		sender:   sender,
		mailer:   mailer,
		cipher:   cipher,
		appURL:   strings.TrimRight(appURL, "/"),
	}
}

func (s *pushService) PublicKey() string {
	return s.sender.PublicKey()
}

func (s *pushService) Subscribe(ctx context.Context, userID string, req *models.SubscribePushRequest) (*models.PushSubscription, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	p256dh, err := s.cipher.Seal(req.Keys.P256dh)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt subscription key: %w", err)
	}
	auth, err := s.cipher.Seal(req.Keys.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt subscription secret: %w", err)
	}

	sub := &models.PushSubscription{
		UserID:     userID,
		Token:      req.Token,
		Endpoint:   req.Endpoint,
		P256dh:     p256dh,
		Auth:       auth,
		DeviceName: req.DeviceName,
	}
	if err := s.pushRepo.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	log.Printf("[push] subscription registered: user=%s sub=%s", userID, sub.ID)
	return sub, nil
}

func (s *pushService) Unsubscribe(ctx context.Context, userID, token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", pkg.ErrBadRequest)
	}
	return s.pushRepo.DeleteByToken(ctx, userID, token)
}

// Dispatch sends n to every device of userID. Devices the provider rejects
// as unregistered are pruned. A user with no device falls back to e-mail.
// Failures are logged, never returned.
func (s *pushService) Dispatch(ctx context.Context, userID string, n *models.Notification) {
	subs, err := s.pushRepo.ListByUser(ctx, userID)
	if err != nil {
		log.Printf("[push] failed to list subscriptions for user %s: %v", userID, err)
		return
	}

	if len(subs) == 0 {
		s.mailFallback(ctx, userID, n)
		return
	}

	msg := push.Message{
		Title: n.Title,
		Body:  n.Message,
		Link:  n.Route(),
		Data: map[string]string{
			"notification_id": n.ID,
			"type":            string(n.Type),
		},
	}

	delivered := 0
	for _, sub := range subs {
		target, err := s.target(sub)
		if err != nil {
			log.Printf("[push] unreadable subscription %s, removing: %v", sub.ID, err)
			s.prune(ctx, sub.ID)
			continue
		}

		err = s.sender.Send(ctx, target, msg)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, push.ErrInvalidToken):
			log.Printf("[push] token no longer valid, removing subscription %s", sub.ID)
			s.prune(ctx, sub.ID)
		default:
			log.Printf("[push] send failed for subscription %s: %v", sub.ID, err)
		}
	}

	if delivered == 0 {
		s.mailFallback(ctx, userID, n)
	}
}

func (s *pushService) target(sub models.PushSubscription) (push.Target, error) {
	p256dh, err := s.cipher.Open(sub.P256dh)
	if err != nil {
		return push.Target{}, err
	}
	auth, err := s.cipher.Open(sub.Auth)
	if err != nil {
		return push.Target{}, err
	}
	return push.Target{Token: sub.Token, Endpoint: sub.Endpoint, P256dh: p256dh, Auth: auth}, nil
}

func (s *pushService) prune(ctx context.Context, subID string) {
	if err := s.pushRepo.DeleteByID(ctx, subID); err != nil {
		log.Printf("[push] failed to prune subscription %s: %v", subID, err)
	}
}

func (s *pushService) mailFallback(ctx context.Context, userID string, n *models.Notification) {
	if s.mailer == nil {
		return
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("[push] e-mail fallback: failed to load user %s: %v", userID, err)
		return
	}
	if user.Email == nil || *user.Email == "" {
		return
	}

	l := i18n.NewLocalizer(user.Language)
	mail := email.Notification{
		Subject:   l.TWithParams("email.notification.subject", map[string]string{"title": n.Title}),
		Title:     n.Title,
		Message:   n.Message,
		Link:      s.appURL + n.Route(),
		OpenLabel: l.T("email.notification.open"),
	}
	if err := s.mailer.SendNotification(ctx, *user.Email, mail); err != nil {
		log.Printf("[push] e-mail fallback failed for user %s: %v", userID, err)
	}
}
