package services

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/glimsocial/glim/database"
	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
	"github.com/glimsocial/glim/pkg/crypto"
	"github.com/glimsocial/glim/pkg/email"
	"github.com/glimsocial/glim/pkg/i18n"
	"github.com/glimsocial/glim/pkg/push"
	"github.com/glimsocial/glim/repository"
	"github.com/glimsocial/glim/ws"
)

// fakeHub records everything published to it.
type fakeHub struct {
	mu          sync.Mutex
	online      map[string]bool
	events      map[string][]ws.Event
	disconnects map[string]ws.Event
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		online:      make(map[string]bool),
		events:      make(map[string][]ws.Event),
		disconnects: make(map[string]ws.Event),
	}
}

func (h *fakeHub) BroadcastToUser(userID string, event ws.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[userID] = append(h.events[userID], event)
}

func (h *fakeHub) IsOnline(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online[userID]
}

func (h *fakeHub) DisconnectUser(userID string, final ws.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnects[userID] = final
}

func (h *fakeHub) eventsFor(userID string) []ws.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ws.Event(nil), h.events[userID]...)
}

// fakeDispatcher signals every dispatched notification on a channel.
type fakeDispatcher struct {
	calls chan string
}

func (d *fakeDispatcher) Dispatch(_ context.Context, userID string, _ *models.Notification) {
	d.calls <- userID
}

type fakePushSender struct {
	mu      sync.Mutex
	sent    []push.Target
	invalid map[string]bool
}

func (s *fakePushSender) Send(_ context.Context, target push.Target, _ push.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invalid[target.Token] {
		return push.ErrInvalidToken
	}
	s.sent = append(s.sent, target)
	return nil
}

func (s *fakePushSender) PublicKey() string { return "vapid-public" }

type fakeMailer struct {
	mu   sync.Mutex
	sent []email.Notification
}

func (m *fakeMailer) SendNotification(_ context.Context, _ string, n email.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

type testEnv struct {
	db       *database.DB
	users    repository.UserRepository
	notifs   repository.NotificationRepository
	hub      *fakeHub
	notifier NotificationService
}

func newTestEnv(t *testing.T, offline OfflineDispatcher) *testEnv {
	t.Helper()

	locales, err := fs.Sub(i18n.EmbeddedLocales, "locales")
	if err != nil {
		t.Fatalf("fs.Sub locales: %v", err)
	}
	if err := i18n.Load(locales); err != nil {
		t.Fatalf("i18n.Load: %v", err)
	}

	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		t.Fatalf("fs.Sub migrations: %v", err)
	}
	db, err := database.New(filepath.Join(t.TempDir(), "glim.db"), migrations)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:     db,
		users:  repository.NewSQLiteUserRepo(db.Conn),
		notifs: repository.NewSQLiteNotificationRepo(db.X),
		hub:    newFakeHub(),
	}
	env.notifier = NewNotificationService(env.notifs, env.users, env.hub, offline, time.Second)
	return env
}

func (e *testEnv) user(t *testing.T, name string, admin bool) *models.User {
	t.Helper()
	u := &models.User{Username: name, PasswordHash: "x", Language: "en", IsAdmin: admin}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func TestNotify_PublishesCountAndVersion(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)

	n, err := env.notifier.Notify(ctx, NotifyInput{
		UserID:  alice.ID,
		Type:    models.NotificationComment,
		ActorID: bob.ID,
		Data:    models.NotificationData{PostSlug: "hello", CommentID: "c1", ActorUsername: "bob"},
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if n.Message != "bob commented on your post" {
		t.Errorf("message = %q", n.Message)
	}
	if n.Data.ActorID != bob.ID {
		t.Errorf("actor id should default from input, got %q", n.Data.ActorID)
	}

	events := env.hub.eventsFor(alice.ID)
	if len(events) != 1 || events[0].Op != ws.OpNewNotification {
		t.Fatalf("events = %+v", events)
	}
	data := events[0].Data.(ws.NotificationEventData)
	if data.UnreadCount == nil || *data.UnreadCount != 1 {
		t.Errorf("unread count = %v, want 1", data.UnreadCount)
	}
	if data.Version <= 0 {
		t.Errorf("version = %d, want > 0", data.Version)
	}
}

func TestNotify_RejectsUnknownType(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.user(t, "alice", false)

	_, err := env.notifier.Notify(context.Background(), NotifyInput{UserID: alice.ID, Type: "poke"})
	if !errors.Is(err, pkg.ErrBadRequest) {
		t.Fatalf("err = %v, want ErrBadRequest", err)
	}
}

func TestNotify_OfflineOnlyWhenNotConnected(t *testing.T) {
	d := &fakeDispatcher{calls: make(chan string, 4)}
	env := newTestEnv(t, d)
	ctx := context.Background()
	alice := env.user(t, "alice", false)

	env.hub.online[alice.ID] = true
	if _, err := env.notifier.Notify(ctx, NotifyInput{UserID: alice.ID, Type: models.NotificationFollow}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	select {
	case id := <-d.calls:
		t.Fatalf("dispatched to online user %s", id)
	case <-time.After(50 * time.Millisecond):
	}

	env.hub.mu.Lock()
	env.hub.online[alice.ID] = false
	env.hub.mu.Unlock()
	if _, err := env.notifier.Notify(ctx, NotifyInput{UserID: alice.ID, Type: models.NotificationFollow}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	select {
	case id := <-d.calls:
		if id != alice.ID {
			t.Errorf("dispatched to %s", id)
		}
	case <-time.After(time.Second):
		t.Fatal("offline user was not dispatched to")
	}
}

func TestMarkReadAndDelete_BroadcastFreshCounts(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := env.user(t, "alice", false)

	var ids []string
	for i := 0; i < 3; i++ {
		n, err := env.notifier.Notify(ctx, NotifyInput{UserID: alice.ID, Type: models.NotificationLikeComment})
		if err != nil {
			t.Fatalf("Notify: %v", err)
		}
		ids = append(ids, n.ID)
	}

	uc, err := env.notifier.MarkRead(ctx, alice.ID, ids[0])
	if err != nil || uc.Count != 2 {
		t.Fatalf("MarkRead = %+v, %v", uc, err)
	}
	uc2, err := env.notifier.Delete(ctx, alice.ID, ids[1])
	if err != nil || uc2.Count != 1 || uc2.Version <= uc.Version {
		t.Fatalf("Delete = %+v, %v (after %+v)", uc2, err, uc)
	}
	uc3, err := env.notifier.MarkAllRead(ctx, alice.ID)
	if err != nil || uc3.Count != 0 {
		t.Fatalf("MarkAllRead = %+v, %v", uc3, err)
	}

	events := env.hub.eventsFor(alice.ID)
	ops := make([]string, 0, len(events))
	for _, e := range events {
		ops = append(ops, e.Op)
	}
	want := []string{
		ws.OpNewNotification, ws.OpNewNotification, ws.OpNewNotification,
		ws.OpNotificationRead, ws.OpNotificationDeleted, ws.OpAllNotificationsRead,
	}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("ops = %v, want %v", ops, want)
		}
	}

	if _, err := env.notifier.MarkRead(ctx, "someone-else", ids[2]); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("foreign MarkRead err = %v, want ErrNotFound", err)
	}
}

func TestList_IncludesUnreadSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := env.user(t, "alice", false)
	for i := 0; i < 3; i++ {
		if _, err := env.notifier.Notify(ctx, NotifyInput{UserID: alice.ID, Type: models.NotificationNewPost}); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	page, err := env.notifier.List(ctx, alice.ID, 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Notifications) != 2 || !page.HasMore {
		t.Errorf("page = %d items, hasMore=%v", len(page.Notifications), page.HasMore)
	}
	if page.Unread.Count != 3 {
		t.Errorf("unread = %d, want 3", page.Unread.Count)
	}
}

func TestNotifyAdmins_SkipsActor(t *testing.T) {
	env := newTestEnv(t, nil)
	root := env.user(t, "root", true)
	ops := env.user(t, "ops", true)

	err := env.notifier.NotifyAdmins(context.Background(), NotifyInput{
		Type:    models.NotificationReport,
		ActorID: root.ID,
		Params:  map[string]string{"target": "post"},
	})
	if err != nil {
		t.Fatalf("NotifyAdmins: %v", err)
	}
	if got := env.hub.eventsFor(root.ID); len(got) != 0 {
		t.Errorf("actor admin got %d events", len(got))
	}
	if got := env.hub.eventsFor(ops.ID); len(got) != 1 {
		t.Errorf("other admin got %d events, want 1", len(got))
	}
}

func TestFollow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := env.user(t, "alice", false)
	bob := env.user(t, "bob", false)
	svc := NewFollowService(repository.NewSQLiteFollowRepo(env.db.Conn), env.users, env.notifier)

	if err := svc.Follow(ctx, alice.ID, alice.ID); !errors.Is(err, pkg.ErrBadRequest) {
		t.Fatalf("self follow err = %v", err)
	}
	if err := svc.Follow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("Follow: %v", err)
	}

	events := env.hub.eventsFor(bob.ID)
	if len(events) != 1 {
		t.Fatalf("followee events = %d, want 1", len(events))
	}
	n := events[0].Data.(ws.NotificationEventData).Notification
	if n.Route() != "/profile/alice" {
		t.Errorf("route = %q", n.Route())
	}

	if err := svc.Unfollow(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("Unfollow: %v", err)
	}
}

func TestPublisherWorkflow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin := env.user(t, "root", true)
	writer := env.user(t, "writer", false)
	svc := NewPublisherService(env.db.Conn, repository.NewSQLitePublisherRequestRepo(env.db.Conn), env.users, env.notifier)

	req := &models.CreatePublisherRequest{Reason: "I write long-form fiction."}
	pr, err := svc.Request(ctx, writer.ID, req)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if _, err := svc.Request(ctx, writer.ID, req); !errors.Is(err, pkg.ErrAlreadyExists) {
		t.Fatalf("second request err = %v", err)
	}
	if got := env.hub.eventsFor(admin.ID); len(got) != 1 {
		t.Fatalf("admin events = %d, want 1", len(got))
	}

	if _, err := svc.Approve(ctx, admin.ID, pr.ID); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if _, err := svc.Reject(ctx, admin.ID, pr.ID); !errors.Is(err, pkg.ErrBadRequest) {
		t.Fatalf("review twice err = %v", err)
	}

	u, err := env.users.GetByID(ctx, writer.ID)
	if err != nil || !u.IsPublisher {
		t.Fatalf("writer after approval = %+v, %v", u, err)
	}

	events := env.hub.eventsFor(writer.ID)
	if len(events) != 1 {
		t.Fatalf("writer events = %d, want 1", len(events))
	}
	n := events[0].Data.(ws.NotificationEventData).Notification
	if n.Type != models.NotificationPublisherApproved || n.Route() != "/dashboard" {
		t.Errorf("decision notification = %s %s", n.Type, n.Route())
	}
}

func TestReport_NotifiesAdmins(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.user(t, "root", true)
	reporter := env.user(t, "reader", false)
	svc := NewReportService(repository.NewSQLiteReportRepo(env.db.Conn), env.users, env.notifier)

	_, err := svc.Create(context.Background(), reporter.ID, &models.CreateReportRequest{
		TargetType: "comment", TargetID: "c9", Reason: "spam",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	events := env.hub.eventsFor(admin.ID)
	if len(events) != 1 {
		t.Fatalf("admin events = %d, want 1", len(events))
	}
	n := events[0].Data.(ws.NotificationEventData).Notification
	if n.Message != "reader reported a comment" {
		t.Errorf("message = %q", n.Message)
	}
}

func TestPushDispatch_PrunesInvalidAndFallsBackToEmail(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	addr := "alice@example.com"
	alice := &models.User{Username: "alice", PasswordHash: "x", Language: "en", Email: &addr}
	if err := env.users.Create(ctx, alice); err != nil {
		t.Fatalf("create user: %v", err)
	}

	cipher, err := crypto.NewFieldCipher("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	if err != nil {
		t.Fatalf("NewFieldCipher: %v", err)
	}
	pushRepo := repository.NewSQLitePushRepo(env.db.X)
	sender := &fakePushSender{invalid: map[string]bool{"stale": true}}
	mailer := &fakeMailer{}
	svc := NewPushService(pushRepo, env.users, sender, mailer, cipher, "https://glim.example/")

	for _, tok := range []string{"good", "stale"} {
		req := &models.SubscribePushRequest{Token: tok}
		req.Keys.P256dh = "p256-" + tok
		req.Keys.Auth = "auth-" + tok
		if _, err := svc.Subscribe(ctx, alice.ID, req); err != nil {
			t.Fatalf("Subscribe %s: %v", tok, err)
		}
	}

	n := &models.Notification{ID: "n1", Type: models.NotificationFollow, Title: "New follower",
		Data: models.NotificationData{ActorUsername: "bob"}}
	svc.Dispatch(ctx, alice.ID, n)

	if len(sender.sent) != 1 || sender.sent[0].P256dh != "p256-good" {
		t.Fatalf("sent = %+v", sender.sent)
	}
	subs, err := pushRepo.ListByUser(ctx, alice.ID)
	if err != nil || len(subs) != 1 || subs[0].Token != "good" {
		t.Fatalf("subscriptions after prune = %+v, %v", subs, err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("mailed although push was delivered")
	}

	if err := svc.Unsubscribe(ctx, alice.ID, "good"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	svc.Dispatch(ctx, alice.ID, n)
	if len(mailer.sent) != 1 {
		t.Fatalf("mails = %d, want 1", len(mailer.sent))
	}
	if got := mailer.sent[0].Link; got != "https://glim.example/profile/bob" {
		t.Errorf("mail link = %q", got)
	}
}

func TestLogoutAll_DisconnectsLiveConnections(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	auth := NewAuthService(env.users, repository.NewSQLiteSessionRepo(env.db.Conn), env.hub, AuthOptions{
		JWTSecret:     "test-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 24 * time.Hour,
		BcryptCost:    4,
		Clock:         mock,
	})

	tokens, err := auth.Register(ctx, &models.CreateUserRequest{Username: "alice", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	claims, err := auth.ValidateAccessToken(tokens.AccessToken)
	if err != nil || claims.UserID != tokens.User.ID {
		t.Fatalf("ValidateAccessToken = %+v, %v", claims, err)
	}

	mock.Add(16 * time.Minute)
	if _, err := auth.ValidateAccessToken(tokens.AccessToken); !errors.Is(err, pkg.ErrTokenExpired) {
		t.Fatalf("expired token err = %v, want ErrTokenExpired", err)
	}
	if _, err := auth.ValidateAccessToken("garbage"); !errors.Is(err, pkg.ErrUnauthorized) {
		t.Fatalf("garbage token err = %v, want ErrUnauthorized", err)
	}

	if err := auth.LogoutAll(ctx, tokens.User.ID); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	final, ok := env.hub.disconnects[tokens.User.ID]
	if !ok || final.Op != ws.OpForceLogout {
		t.Fatalf("disconnect event = %+v, %v", final, ok)
	}
	if _, err := auth.RefreshToken(ctx, tokens.RefreshToken); !errors.Is(err, pkg.ErrUnauthorized) {
		t.Fatalf("refresh after LogoutAll err = %v", err)
	}
}
