package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
	"github.com/glimsocial/glim/pkg/i18n"
	"github.com/glimsocial/glim/repository"
	"github.com/glimsocial/glim/ws"
)

// NotificationService persists notifications and keeps every live client of
// the recipient in sync.
//
// Each mutation publishes its realtime event carrying the authoritative
// unread count and notification version computed in the same transaction.
// A recipient without a live connection gets the notification through the
// OfflineDispatcher instead.
type NotificationService interface {
	Notify(ctx context.Context, in NotifyInput) (*models.Notification, error)
	// NotifyAdmins sends in to every admin except in.ActorID.
	NotifyAdmins(ctx context.Context, in NotifyInput) error
	List(ctx context.Context, userID string, page, limit int) (*models.NotificationPage, error)
	UnreadCount(ctx context.Context, userID string) (models.UnreadCount, error)
	MarkRead(ctx context.Context, userID, id string) (models.UnreadCount, error)
	MarkAllRead(ctx context.Context, userID string) (models.UnreadCount, error)
	Delete(ctx context.Context, userID, id string) (models.UnreadCount, error)
	// PublishUnreadCount pushes unread-count-update with the current count.
	PublishUnreadCount(ctx context.Context, userID string) error
}

// NotifyInput describes one notification to create.
type NotifyInput struct {
	UserID  string
	Type    models.NotificationType
	ActorID string
	// Params fill the {{placeholders}} of the localized title and message.
	// "actor" defaults to Data.ActorUsername.
	Params map[string]string
	Data   models.NotificationData
}

// OfflineDispatcher delivers a notification to a user with no live
// connection (push, then e-mail).
type OfflineDispatcher interface {
	Dispatch(ctx context.Context, userID string, n *models.Notification)
}

type notificationService struct {
	notifRepo       repository.NotificationRepository
	userRepo        repository.UserRepository
	hub             ws.EventPublisher
	offline         OfflineDispatcher
	dispatchTimeout time.Duration
}

// NewNotificationService builds a NotificationService. offline may be nil.
func NewNotificationService(
	notifRepo repository.NotificationRepository,
	userRepo repository.UserRepository,
	hub ws.EventPublisher,
	offline OfflineDispatcher,
	dispatchTimeout time.Duration,
) NotificationService {
	if dispatchTimeout <= 0 {
		dispatchTimeout = 10 * time.Second
	}
	return &notificationService{
		notifRepo:       notifRepo,
		userRepo:        userRepo,
		hub:             hub,
		offline:         offline,
		dispatchTimeout: dispatchTimeout,
	}
}

func (s *notificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", pkg.ErrBadRequest, in.Type)
	}
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: recipient is required", pkg.ErrBadRequest)
	}

	recipient, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Data.ActorID == "" {
		in.Data.ActorID = in.ActorID
	}
	title, message := renderNotification(recipient.Language, in)

	n := &models.Notification{
		UserID:  in.UserID,
		Type:    in.Type,
		Title:   title,
		Message: message,
		Data:    in.Data,
	}

	uc, err := s.notifRepo.Create(ctx, n)
	if err != nil {
		return nil, err
	}

	payload := ws.NewNotificationEventData(uc)
	payload.Notification = n
	s.hub.BroadcastToUser(in.UserID, ws.Event{Op: ws.OpNewNotification, Data: payload})

	if s.offline != nil && !s.hub.IsOnline(in.UserID) {
		s.dispatchOffline(ctx, in.UserID, n)
	}

	log.Printf("[notify] %s -> user=%s unread=%d v=%d", n.Type, n.UserID, uc.Count, uc.Version)
	return n, nil
}

// dispatchOffline runs the offline delivery in the background, detached from
// the request context but bounded by dispatchTimeout.
func (s *notificationService) dispatchOffline(ctx context.Context, userID string, n *models.Notification) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	go func() {
		defer cancel()
		s.offline.Dispatch(dctx, userID, n)
	}()
}

func (s *notificationService) NotifyAdmins(ctx context.Context, in NotifyInput) error {
	admins, err := s.userRepo.ListAdmins(ctx)
	if err != nil {
		return err
	}

	for _, admin := range admins {
		if admin.ID == in.ActorID {
			continue
		}
		in.UserID = admin.ID
		if _, err := s.Notify(ctx, in); err != nil {
			log.Printf("[notify] failed to notify admin %s: %v", admin.ID, err)
		}
	}
	return nil
}

func (s *notificationService) List(ctx context.Context, userID string, page, limit int) (*models.NotificationPage, error) {
	page, limit = models.NormalizePage(page, limit)

	items, hasMore, err := s.notifRepo.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}

	uc, err := s.notifRepo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.NotificationPage{
		Notifications: items,
		Page:          page,
		Limit:         limit,
		HasMore:       hasMore,
		Unread:        uc,
	}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (models.UnreadCount, error) {
	return s.notifRepo.UnreadCount(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id string) (models.UnreadCount, error) {
	uc, err := s.notifRepo.MarkRead(ctx, userID, id)
	if err != nil {
		return uc, err
	}

	payload := ws.NewNotificationEventData(uc)
	payload.NotificationID = id
	s.hub.BroadcastToUser(userID, ws.Event{Op: ws.OpNotificationRead, Data: payload})
	return uc, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (models.UnreadCount, error) {
	uc, err := s.notifRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return uc, err
	}

	s.hub.BroadcastToUser(userID, ws.Event{Op: ws.OpAllNotificationsRead, Data: ws.NewNotificationEventData(uc)})
	return uc, nil
}

func (s *notificationService) Delete(ctx context.Context, userID, id string) (models.UnreadCount, error) {
	uc, err := s.notifRepo.Delete(ctx, userID, id)
	if err != nil {
		return uc, err
	}

	payload := ws.NewNotificationEventData(uc)
	payload.NotificationID = id
	s.hub.BroadcastToUser(userID, ws.Event{Op: ws.OpNotificationDeleted, Data: payload})
	return uc, nil
}

func (s *notificationService) PublishUnreadCount(ctx context.Context, userID string) error {
	uc, err := s.notifRepo.UnreadCount(ctx, userID)
	if err != nil {
		return err
	}
	s.hub.BroadcastToUser(userID, ws.Event{Op: ws.OpUnreadCountUpdate, Data: ws.NewNotificationEventData(uc)})
	return nil
}

// renderNotification localizes title and message into lang.
func renderNotification(lang string, in NotifyInput) (string, string) {
	params := make(map[string]string, len(in.Params)+1)
	params["actor"] = in.Data.ActorUsername
	for k, v := range in.Params {
		params[k] = v
	}

	l := i18n.NewLocalizer(lang)
	prefix := "notification." + string(in.Type)
	return l.TWithParams(prefix+".title", params), l.TWithParams(prefix+".message", params)
}
