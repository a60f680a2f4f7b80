package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/ws"
)

var errServer = errors.New("server unavailable")

type fakeAPI struct {
	mu      sync.Mutex
	page    models.NotificationPage
	count   models.UnreadCount
	failErr error
	// during runs inside a mutating call, before it returns.
	during func()
	polls  int
}

func (f *fakeAPI) ListNotifications(_ context.Context, page, limit int) (*models.NotificationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.page
	p.Page, p.Limit = page, limit
	return &p, nil
}

func (f *fakeAPI) UnreadCount(context.Context) (models.UnreadCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return f.count, nil
}

func (f *fakeAPI) mutate() (models.UnreadCount, error) {
	f.mu.Lock()
	during, err, count := f.during, f.failErr, f.count
	f.mu.Unlock()
	if during != nil {
		during()
	}
	if err != nil {
		return models.UnreadCount{}, err
	}
	return count, nil
}

func (f *fakeAPI) MarkRead(context.Context, string) (models.UnreadCount, error) { return f.mutate() }
func (f *fakeAPI) MarkAllRead(context.Context) (models.UnreadCount, error)     { return f.mutate() }
func (f *fakeAPI) Delete(context.Context, string) (models.UnreadCount, error)   { return f.mutate() }

type fakeSession struct {
	mu     sync.Mutex
	active bool
	gen    uint64
}

func (s *fakeSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *fakeSession) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *fakeSession) renew() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

type fakeSubscriber struct {
	handlers map[string]func(json.RawMessage)
}

func (s *fakeSubscriber) On(op string, fn func(json.RawMessage)) func() {
	if s.handlers == nil {
		s.handlers = make(map[string]func(json.RawMessage))
	}
	s.handlers[op] = fn
	return func() { delete(s.handlers, op) }
}

func (s *fakeSubscriber) fire(t *testing.T, op string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", op, err)
	}
	fn, ok := s.handlers[op]
	if !ok {
		t.Fatalf("no handler for %s", op)
	}
	fn(raw)
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func note(id string, age int, read bool) models.Notification {
	return models.Notification{
		ID:        id,
		UserID:    "u1",
		Type:      models.NotificationFollow,
		Title:     "New follower",
		IsRead:    read,
		Data:      models.NotificationData{ActorUsername: "alice"},
		CreatedAt: base.Add(-time.Duration(age) * time.Minute),
	}
}

func intp(n int) *int { return &n }

func setup(t *testing.T, notes []models.Notification, count models.UnreadCount) (*Aggregator, *fakeAPI, *fakeSession, *fakeSubscriber) {
	t.Helper()
	api := &fakeAPI{
		page:  models.NotificationPage{Notifications: notes, Unread: count},
		count: count,
	}
	sess := &fakeSession{active: true, gen: 1}
	agg := New(api, sess, Options{Limit: 5, Clock: clock.NewMock()})
	sub := &fakeSubscriber{}
	agg.Attach(sub)
	if err := agg.Fetch(context.Background()); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	return agg, api, sess, sub
}

func ids(s Snapshot) []string {
	out := make([]string, len(s.Entries))
	for i, e := range s.Entries {
		out[i] = e.Notification.ID
	}
	return out
}

func entry(t *testing.T, s Snapshot, id string) Entry {
	t.Helper()
	for _, e := range s.Entries {
		if e.Notification.ID == id {
			return e
		}
	}
	t.Fatalf("entry %s not in %v", id, ids(s))
	return Entry{}
}

func TestFetchOrdersNewestFirst(t *testing.T) {
	agg, _, _, _ := setup(t, []models.Notification{
		note("b", 5, false), note("a", 1, true), note("c", 9, false),
	}, models.UnreadCount{Count: 2, Version: 3})

	s := agg.Snapshot()
	if got := fmt.Sprint(ids(s)); got != "[a b c]" {
		t.Errorf("order = %s, want [a b c]", got)
	}
	if s.Unread != 2 || s.Version != 3 {
		t.Errorf("unread = %d v%d, want 2 v3", s.Unread, s.Version)
	}
}

func TestNewNotificationDeduplicated(t *testing.T) {
	agg, _, _, sub := setup(t, nil, models.UnreadCount{})

	n := note("n1", 0, false)
	for i := 0; i < 3; i++ {
		sub.fire(t, ws.OpNewNotification, ws.NotificationEventData{
			Notification: &n, UnreadCount: intp(1), Version: 1,
		})
	}

	s := agg.Snapshot()
	if len(s.Entries) != 1 {
		t.Fatalf("entries = %v, want one", ids(s))
	}
	if s.Unread != 1 {
		t.Errorf("unread = %d, want 1", s.Unread)
	}
}

func TestListIsBounded(t *testing.T) {
	agg, _, _, sub := setup(t, nil, models.UnreadCount{})

	for i := 0; i < 8; i++ {
		n := note(fmt.Sprintf("n%d", i), 10-i, false)
		sub.fire(t, ws.OpNewNotification, ws.NotificationEventData{Notification: &n})
	}

	s := agg.Snapshot()
	if got := fmt.Sprint(ids(s)); got != "[n7 n6 n5 n4 n3]" {
		t.Errorf("entries = %s, want the five newest", got)
	}
}

func TestMarkReadRevertsOnFailure(t *testing.T) {
	agg, api, _, _ := setup(t, []models.Notification{
		note("a", 1, false), note("b", 2, false), note("c", 3, false),
	}, models.UnreadCount{Count: 3, Version: 1})

	var seen []int
	agg.OnChange(func(s Snapshot) { seen = append(seen, s.Unread) })

	api.failErr = errServer
	if err := agg.MarkRead(context.Background(), "b"); !errors.Is(err, errServer) {
		t.Fatalf("MarkRead error = %v, want %v", err, errServer)
	}

	if fmt.Sprint(seen) != "[2 3]" {
		t.Errorf("counts seen = %v, want [2 3]", seen)
	}
	e := entry(t, agg.Snapshot(), "b")
	if e.Notification.IsRead {
		t.Error("entry still read after failed request")
	}
	if e.State != Reverting {
		t.Errorf("state = %v, want reverting", e.State)
	}
}

func TestMarkReadAppliesServerCount(t *testing.T) {
	agg, api, _, _ := setup(t, []models.Notification{
		note("a", 1, false), note("b", 2, false),
	}, models.UnreadCount{Count: 2, Version: 1})

	api.count = models.UnreadCount{Count: 4, Version: 3}
	if err := agg.MarkRead(context.Background(), "a"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	s := agg.Snapshot()
	if s.Unread != 4 || s.Version != 3 {
		t.Errorf("unread = %d v%d, want 4 v3", s.Unread, s.Version)
	}
	if e := entry(t, s, "a"); !e.Notification.IsRead || e.State != Synced {
		t.Errorf("entry = read:%v %v, want read synced", e.Notification.IsRead, e.State)
	}
}

func TestFailedMarkReadKeepsNewerServerCount(t *testing.T) {
	agg, api, _, sub := setup(t, []models.Notification{
		note("a", 1, false), note("b", 2, false),
	}, models.UnreadCount{Count: 2, Version: 1})

	api.failErr = errServer
	api.during = func() {
		sub.fire(t, ws.OpUnreadCountUpdate, ws.NotificationEventData{UnreadCount: intp(7), Version: 5})
	}
	_ = agg.MarkRead(context.Background(), "a")

	if s := agg.Snapshot(); s.Unread != 7 {
		t.Errorf("unread = %d, want the server's 7", s.Unread)
	}
}

func TestMarkAllReadRevertsOnlyFlippedEntries(t *testing.T) {
	agg, api, _, _ := setup(t, []models.Notification{
		note("a", 1, false), note("b", 2, true), note("c", 3, false),
	}, models.UnreadCount{Count: 2, Version: 1})

	api.failErr = errServer
	_ = agg.MarkAllRead(context.Background())

	s := agg.Snapshot()
	if s.Unread != 2 {
		t.Errorf("unread = %d, want 2", s.Unread)
	}
	if e := entry(t, s, "b"); !e.Notification.IsRead || e.State != Synced {
		t.Errorf("already-read entry changed: read:%v %v", e.Notification.IsRead, e.State)
	}
	for _, id := range []string{"a", "c"} {
		if e := entry(t, s, id); e.Notification.IsRead || e.State != Reverting {
			t.Errorf("%s = read:%v %v, want unread reverting", id, e.Notification.IsRead, e.State)
		}
	}
}

func TestAllReadEventWithoutCount(t *testing.T) {
	agg, _, _, sub := setup(t, []models.Notification{
		note("a", 1, false), note("b", 2, false),
	}, models.UnreadCount{Count: 9, Version: 2})

	sub.fire(t, ws.OpAllNotificationsRead, ws.NotificationEventData{})

	s := agg.Snapshot()
	if s.Unread != 0 {
		t.Errorf("unread = %d, want 0", s.Unread)
	}
	for _, e := range s.Entries {
		if !e.Notification.IsRead {
			t.Errorf("%s still unread", e.Notification.ID)
		}
	}
}

func TestReadEventWithoutCountDecrements(t *testing.T) {
	agg, _, _, sub := setup(t, []models.Notification{
		note("a", 1, false), note("b", 2, false),
	}, models.UnreadCount{Count: 2})

	sub.fire(t, ws.OpNotificationRead, ws.NotificationEventData{NotificationID: "a"})
	sub.fire(t, ws.OpNotificationRead, ws.NotificationEventData{NotificationID: "a"})

	if s := agg.Snapshot(); s.Unread != 1 {
		t.Errorf("unread = %d, want 1", s.Unread)
	}
}

func TestStalePollIgnored(t *testing.T) {
	agg, api, _, sub := setup(t, nil, models.UnreadCount{Count: 1, Version: 4})

	sub.fire(t, ws.OpUnreadCountUpdate, ws.NotificationEventData{UnreadCount: intp(3), Version: 6})

	api.count = models.UnreadCount{Count: 1, Version: 5}
	if err := agg.RefreshCount(context.Background()); err != nil {
		t.Fatalf("RefreshCount: %v", err)
	}

	s := agg.Snapshot()
	if s.Unread != 3 || s.Version != 6 {
		t.Errorf("unread = %d v%d, want 3 v6", s.Unread, s.Version)
	}
}

func TestPollThenPushIsLastApplied(t *testing.T) {
	agg, api, _, sub := setup(t, nil, models.UnreadCount{})

	api.count = models.UnreadCount{Count: 4, Version: 2}
	if err := agg.RefreshCount(context.Background()); err != nil {
		t.Fatalf("RefreshCount: %v", err)
	}
	sub.fire(t, ws.OpUnreadCountUpdate, ws.NotificationEventData{UnreadCount: intp(5), Version: 3})

	if s := agg.Snapshot(); s.Unread != 5 {
		t.Errorf("unread = %d, want 5 (never summed)", s.Unread)
	}
}

func TestNegativeCountClamped(t *testing.T) {
	agg, _, _, sub := setup(t, nil, models.UnreadCount{})

	sub.fire(t, ws.OpUnreadCountUpdate, ws.NotificationEventData{UnreadCount: intp(-2)})

	if s := agg.Snapshot(); s.Unread != 0 {
		t.Errorf("unread = %d, want 0", s.Unread)
	}
}

func TestReadyAppliesCount(t *testing.T) {
	agg, _, _, sub := setup(t, nil, models.UnreadCount{})

	sub.fire(t, ws.OpReady, ws.ReadyData{UserID: "u1", UnreadCount: intp(6), Version: 8})

	s := agg.Snapshot()
	if s.Unread != 6 || s.Version != 8 {
		t.Errorf("unread = %d v%d, want 6 v8", s.Unread, s.Version)
	}
}

func TestReadyWithoutCountKeepsCount(t *testing.T) {
	agg, _, _, sub := setup(t, []models.Notification{
		note("a", 3, false),
		note("b", 2, false),
		note("c", 1, false),
	}, models.UnreadCount{Count: 3, Version: 5})

	sub.fire(t, ws.OpReady, ws.ReadyData{UserID: "u1"})

	s := agg.Snapshot()
	if s.Unread != 3 || s.Version != 5 {
		t.Errorf("unread = %d v%d, want 3 v5", s.Unread, s.Version)
	}
}

func TestStaleSessionResultDiscarded(t *testing.T) {
	agg, api, sess, _ := setup(t, []models.Notification{
		note("a", 1, false),
	}, models.UnreadCount{Count: 1, Version: 1})

	api.count = models.UnreadCount{Count: 0, Version: 2}
	api.during = func() {
		sess.renew()
		agg.Reset()
	}
	_ = agg.MarkRead(context.Background(), "a")

	s := agg.Snapshot()
	if len(s.Entries) != 0 || s.Unread != 0 || s.Version != 0 {
		t.Errorf("snapshot = %v unread %d v%d, want empty", ids(s), s.Unread, s.Version)
	}
}

func TestEventsIgnoredWhenSignedOut(t *testing.T) {
	agg, _, sess, sub := setup(t, nil, models.UnreadCount{})
	sess.active = false

	n := note("a", 0, false)
	sub.fire(t, ws.OpNewNotification, ws.NotificationEventData{Notification: &n, UnreadCount: intp(1)})

	if s := agg.Snapshot(); len(s.Entries) != 0 || s.Unread != 0 {
		t.Errorf("snapshot changed while signed out: %v unread %d", ids(s), s.Unread)
	}
}

func TestDeleteRestoresPosition(t *testing.T) {
	agg, api, _, _ := setup(t, []models.Notification{
		note("a", 1, false), note("b", 2, false), note("c", 3, true),
	}, models.UnreadCount{Count: 2, Version: 1})

	var during Snapshot
	api.failErr = errServer
	api.during = func() { during = agg.Snapshot() }
	if err := agg.Delete(context.Background(), "b"); err == nil {
		t.Fatal("Delete succeeded, want error")
	}

	if got := fmt.Sprint(ids(during)); got != "[a c]" || during.Unread != 1 {
		t.Errorf("optimistic view = %s unread %d, want [a c] unread 1", got, during.Unread)
	}
	s := agg.Snapshot()
	if got := fmt.Sprint(ids(s)); got != "[a b c]" {
		t.Errorf("restored order = %s, want [a b c]", got)
	}
	if s.Unread != 2 {
		t.Errorf("unread = %d, want 2", s.Unread)
	}
	if e := entry(t, s, "b"); e.State != Reverting {
		t.Errorf("state = %v, want reverting", e.State)
	}
}

func TestFetchSkipsPendingDelete(t *testing.T) {
	agg, api, _, _ := setup(t, []models.Notification{
		note("a", 1, false), note("b", 2, false),
	}, models.UnreadCount{Count: 2, Version: 1})

	api.count = models.UnreadCount{Count: 1, Version: 2}
	api.during = func() {
		if err := agg.Fetch(context.Background()); err != nil {
			t.Errorf("Fetch: %v", err)
		}
		if got := fmt.Sprint(ids(agg.Snapshot())); got != "[a]" {
			t.Errorf("entries during delete = %s, want [a]", got)
		}
	}
	if err := agg.Delete(context.Background(), "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestStartPolls(t *testing.T) {
	api := &fakeAPI{count: models.UnreadCount{Count: 2, Version: 1}}
	mock := clock.NewMock()
	agg := New(api, &fakeSession{active: true, gen: 1}, Options{PollInterval: time.Second, Clock: mock})

	changed := make(chan Snapshot, 4)
	agg.OnChange(func(s Snapshot) { changed <- s })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		agg.Start(ctx)
		close(done)
	}()

	// Give Start a moment to create its ticker before the clock moves.
	time.Sleep(10 * time.Millisecond)
	mock.Add(time.Second)

	select {
	case s := <-changed:
		if s.Unread != 2 {
			t.Errorf("unread = %d, want 2", s.Unread)
		}
	case <-time.After(time.Second):
		t.Fatal("poll never ran")
	}

	cancel()
	<-done
}

func TestKindCoversEveryType(t *testing.T) {
	for _, typ := range models.AllNotificationTypes {
		if _, ok := kinds[typ]; !ok {
			t.Errorf("no kind for %q", typ)
		}
	}
	if len(kinds) != len(models.AllNotificationTypes) {
		t.Errorf("kinds has %d entries, want %d", len(kinds), len(models.AllNotificationTypes))
	}
}

func TestRoute(t *testing.T) {
	tests := []struct {
		name string
		n    models.Notification
		want string
	}{
		{"follow", note("a", 0, false), "/profile/alice"},
		{"comment", models.Notification{Type: models.NotificationComment,
			Data: models.NotificationData{PostSlug: "hello", CommentID: "c9"}}, "/post/hello#comment-c9"},
		{"missing data", models.Notification{Type: models.NotificationNewPost}, "/"},
		{"unknown type", models.Notification{Type: "party"}, "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Route(tt.n); got != tt.want {
				t.Errorf("Route = %q, want %q", got, tt.want)
			}
		})
	}
	if got := Kind("party").Label; got != "Notification" {
		t.Errorf("unknown label = %q", got)
	}
}
