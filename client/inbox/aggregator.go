// Package inbox keeps the client's view of its notifications: a bounded,
// deduplicated, newest-first list and the unread count.
//
// Three sources feed it: Fetch (authoritative list and count), realtime
// events, and a periodic count poll. Counts carry the server's notification
// version; an update older than the last applied one is dropped, and
// unversioned updates are last-write-wins. User actions are applied
// optimistically and reverted exactly when the request fails.
package inbox

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/ws"
)

// EntryState tracks a pending local change on one notification.
type EntryState int

const (
	// Synced: matches the last authoritative state.
	Synced EntryState = iota
	// Pending: an optimistic change is waiting for the server.
	Pending
	// Reverting: the last optimistic change failed and was rolled back.
	// Cleared by the next Fetch or action on the entry.
	Reverting
)

func (s EntryState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Reverting:
		return "reverting"
	default:
		return "synced"
	}
}

// API is the notification endpoints the aggregator calls.
type API interface {
	ListNotifications(ctx context.Context, page, limit int) (*models.NotificationPage, error)
	UnreadCount(ctx context.Context) (models.UnreadCount, error)
	MarkRead(ctx context.Context, id string) (models.UnreadCount, error)
	MarkAllRead(ctx context.Context) (models.UnreadCount, error)
	Delete(ctx context.Context, id string) (models.UnreadCount, error)
}

// Session is the guard that discards results of a torn-down session.
type Session interface {
	Active() bool
	Generation() uint64
}

// Subscriber delivers realtime events by op.
type Subscriber interface {
	On(op string, fn func(data json.RawMessage)) (unsubscribe func())
}

// Defaults for Options.
const (
	DefaultLimit        = 50
	DefaultPollInterval = 10 * time.Second
)

// Options configures an Aggregator.
type Options struct {
	Limit        int
	PollInterval time.Duration
	Clock        clock.Clock
}

// Entry is one notification as shown.
type Entry struct {
	Notification models.Notification
	State        EntryState
}

// Snapshot is a copy of the aggregator's state.
type Snapshot struct {
	Entries []Entry
	Unread  int
	Version int64
}

type removed struct {
	entry Entry
	index int
}

// Aggregator merges the three notification sources into one view.
type Aggregator struct {
	api  API
	sess Session
	opts Options

	mu      sync.Mutex
	entries []*Entry
	index   map[string]*Entry
	deleted map[string]removed // optimistic deletes in flight
	unread  int
	version int64
	// epoch counts applied authoritative counts, so a revert can tell
	// whether the server spoke in the meantime.
	epoch uint64

	lmu       sync.Mutex
	listeners map[int]func(Snapshot)
	nextID    int
}

// New builds an Aggregator.
func New(api API, sess Session, opts Options) *Aggregator {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Aggregator{
		api:       api,
		sess:      sess,
		opts:      opts,
		index:     make(map[string]*Entry),
		deleted:   make(map[string]removed),
		listeners: make(map[int]func(Snapshot)),
	}
}

// OnChange calls fn with a fresh snapshot after every change.
func (a *Aggregator) OnChange(fn func(Snapshot)) (unsubscribe func()) {
	a.lmu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.lmu.Unlock()

	return func() {
		a.lmu.Lock()
		delete(a.listeners, id)
		a.lmu.Unlock()
	}
}

// Snapshot returns the current view.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Reset drops everything, e.g. on sign-out.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.entries = nil
	a.index = make(map[string]*Entry)
	a.deleted = make(map[string]removed)
	a.unread = 0
	a.version = 0
	a.epoch++
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.emit(snap)
}

// Fetch loads the first page and the count and makes them the new truth.
// Entries with a change in flight keep their optimistic view.
func (a *Aggregator) Fetch(ctx context.Context) error {
	gen := a.sess.Generation()
	page, err := a.api.ListNotifications(ctx, 1, a.opts.Limit)
	if err != nil {
		log.Printf("[inbox] fetch failed: %v", err)
		return err
	}

	a.mu.Lock()
	if !a.currentLocked(gen) {
		a.mu.Unlock()
		return nil
	}

	entries := make([]*Entry, 0, len(page.Notifications))
	index := make(map[string]*Entry, len(page.Notifications))
	for _, n := range page.Notifications {
		if _, dup := index[n.ID]; dup {
			continue
		}
		if _, gone := a.deleted[n.ID]; gone {
			continue
		}
		e := &Entry{Notification: n}
		if old, ok := a.index[n.ID]; ok && old.State == Pending {
			e.State = Pending
			e.Notification.IsRead = old.Notification.IsRead
		}
		entries = append(entries, e)
		index[n.ID] = e
	}
	a.entries = entries
	a.index = index
	a.sortLocked()
	a.trimLocked()

	unread := page.Unread.Count
	a.applyCountLocked(&unread, page.Unread.Version)
	snap := a.snapshotLocked()
	a.mu.Unlock()

	a.emit(snap)
	return nil
}

// RefreshCount polls the unread count once.
func (a *Aggregator) RefreshCount(ctx context.Context) error {
	gen := a.sess.Generation()
	uc, err := a.api.UnreadCount(ctx)
	if err != nil {
		log.Printf("[inbox] unread count poll failed: %v", err)
		return err
	}

	a.mu.Lock()
	if !a.currentLocked(gen) {
		a.mu.Unlock()
		return nil
	}
	changed := a.applyCountLocked(&uc.Count, uc.Version)
	snap := a.snapshotLocked()
	a.mu.Unlock()

	if changed {
		a.emit(snap)
	}
	return nil
}

// Start polls the count every PollInterval until ctx is done. Poll errors
// are logged and absorbed.
func (a *Aggregator) Start(ctx context.Context) {
	ticker := a.opts.Clock.Ticker(a.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.sess.Active() {
				_ = a.RefreshCount(ctx)
			}
		}
	}
}

// MarkRead marks id read now and on the server. On failure the entry's flag
// and the count are restored, the count only if no authoritative count
// arrived meanwhile.
func (a *Aggregator) MarkRead(ctx context.Context, id string) error {
	gen := a.sess.Generation()

	a.mu.Lock()
	e, ok := a.index[id]
	if !ok || e.Notification.IsRead || e.State == Pending {
		a.mu.Unlock()
		return nil
	}
	prevCount, epoch := a.unread, a.epoch
	e.Notification.IsRead = true
	e.State = Pending
	a.unread = max(a.unread-1, 0)
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.emit(snap)

	uc, err := a.api.MarkRead(ctx, id)

	a.mu.Lock()
	if !a.currentLocked(gen) {
		a.mu.Unlock()
		return err
	}
	if e, ok := a.index[id]; ok {
		if err != nil {
			e.Notification.IsRead = false
			e.State = Reverting
		} else {
			e.State = Synced
		}
	}
	if err != nil {
		if a.epoch == epoch {
			a.unread = prevCount
		}
	} else {
		a.applyCountLocked(&uc.Count, uc.Version)
	}
	snap = a.snapshotLocked()
	a.mu.Unlock()
	a.emit(snap)

	if err != nil {
		log.Printf("[inbox] mark read %s failed, reverted: %v", id, err)
	}
	return err
}

// MarkAllRead marks every entry read now and on the server, reverting each
// entry that was unread when the request fails.
func (a *Aggregator) MarkAllRead(ctx context.Context) error {
	gen := a.sess.Generation()

	a.mu.Lock()
	prevCount, epoch := a.unread, a.epoch
	var flipped []string
	for _, e := range a.entries {
		if !e.Notification.IsRead && e.State != Pending {
			e.Notification.IsRead = true
			e.State = Pending
			flipped = append(flipped, e.Notification.ID)
		}
	}
	a.unread = 0
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.emit(snap)

	uc, err := a.api.MarkAllRead(ctx)

	a.mu.Lock()
	if !a.currentLocked(gen) {
		a.mu.Unlock()
		return err
	}
	for _, id := range flipped {
		e, ok := a.index[id]
		if !ok {
			continue
		}
		if err != nil {
			e.Notification.IsRead = false
			e.State = Reverting
		} else {
			e.State = Synced
		}
	}
	if err != nil {
		if a.epoch == epoch {
			a.unread = prevCount
		}
	} else {
		a.applyCountLocked(&uc.Count, uc.Version)
	}
	snap = a.snapshotLocked()
	a.mu.Unlock()
	a.emit(snap)

	if err != nil {
		log.Printf("[inbox] mark all read failed, reverted: %v", err)
	}
	return err
}

// Delete removes id now and on the server. On failure the entry comes back
// at its old position.
func (a *Aggregator) Delete(ctx context.Context, id string) error {
	gen := a.sess.Generation()

	a.mu.Lock()
	e, ok := a.index[id]
	if !ok || e.State == Pending {
		a.mu.Unlock()
		return nil
	}
	prevCount, epoch := a.unread, a.epoch
	pos := a.removeLocked(id)
	a.deleted[id] = removed{entry: *e, index: pos}
	if !e.Notification.IsRead {
		a.unread = max(a.unread-1, 0)
	}
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.emit(snap)

	uc, err := a.api.Delete(ctx, id)

	a.mu.Lock()
	if !a.currentLocked(gen) {
		a.mu.Unlock()
		return err
	}
	r := a.deleted[id]
	delete(a.deleted, id)
	if err != nil {
		if _, back := a.index[id]; !back {
			restored := r.entry
			restored.State = Reverting
			a.insertAtLocked(&restored, r.index)
		}
		if a.epoch == epoch {
			a.unread = prevCount
		}
	} else {
		a.applyCountLocked(&uc.Count, uc.Version)
	}
	snap = a.snapshotLocked()
	a.mu.Unlock()
	a.emit(snap)

	if err != nil {
		log.Printf("[inbox] delete %s failed, restored: %v", id, err)
	}
	return err
}

// Attach binds the realtime handlers. Call the returned func to detach.
func (a *Aggregator) Attach(sub Subscriber) (detach func()) {
	offs := []func(){
		sub.On(ws.OpReady, a.onReady),
		sub.On(ws.OpNewNotification, a.onNew),
		sub.On(ws.OpNotificationRead, a.onRead),
		sub.On(ws.OpAllNotificationsRead, a.onAllRead),
		sub.On(ws.OpNotificationDeleted, a.onDeleted),
		sub.On(ws.OpUnreadCountUpdate, a.onCount),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

func decodeEvent(op string, raw json.RawMessage) (ws.NotificationEventData, bool) {
	var d ws.NotificationEventData
	if len(raw) == 0 {
		return d, true
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		log.Printf("[inbox] bad %s payload: %v", op, err)
		return d, false
	}
	return d, true
}

// update runs fn under the lock when the session is live and emits a
// snapshot.
func (a *Aggregator) update(fn func()) {
	if !a.sess.Active() {
		return
	}
	a.mu.Lock()
	fn()
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.emit(snap)
}

func (a *Aggregator) onReady(raw json.RawMessage) {
	var d ws.ReadyData
	if err := json.Unmarshal(raw, &d); err != nil {
		log.Printf("[inbox] bad ready payload: %v", err)
		return
	}
	a.update(func() { a.applyCountLocked(d.UnreadCount, d.Version) })
}

func (a *Aggregator) onNew(raw json.RawMessage) {
	d, ok := decodeEvent(ws.OpNewNotification, raw)
	if !ok {
		return
	}
	a.update(func() {
		if n := d.Notification; n != nil {
			_, present := a.index[n.ID]
			_, gone := a.deleted[n.ID]
			if !present && !gone {
				e := &Entry{Notification: *n}
				a.entries = append(a.entries, e)
				a.index[n.ID] = e
				a.sortLocked()
				a.trimLocked()
			}
		}
		a.applyCountLocked(d.UnreadCount, d.Version)
	})
}

func (a *Aggregator) onRead(raw json.RawMessage) {
	d, ok := decodeEvent(ws.OpNotificationRead, raw)
	if !ok {
		return
	}
	a.update(func() {
		wasUnread := false
		if e, ok := a.index[d.NotificationID]; ok && !e.Notification.IsRead {
			e.Notification.IsRead = true
			wasUnread = true
		}
		if !a.applyCountLocked(d.UnreadCount, d.Version) && d.UnreadCount == nil && wasUnread {
			a.unread = max(a.unread-1, 0)
		}
	})
}

func (a *Aggregator) onAllRead(raw json.RawMessage) {
	d, ok := decodeEvent(ws.OpAllNotificationsRead, raw)
	if !ok {
		return
	}
	a.update(func() {
		for _, e := range a.entries {
			e.Notification.IsRead = true
		}
		count := 0
		if d.UnreadCount != nil {
			count = *d.UnreadCount
		}
		a.applyCountLocked(&count, d.Version)
	})
}

func (a *Aggregator) onDeleted(raw json.RawMessage) {
	d, ok := decodeEvent(ws.OpNotificationDeleted, raw)
	if !ok {
		return
	}
	a.update(func() {
		wasUnread := false
		if e, ok := a.index[d.NotificationID]; ok {
			wasUnread = !e.Notification.IsRead
			a.removeLocked(d.NotificationID)
		}
		if !a.applyCountLocked(d.UnreadCount, d.Version) && d.UnreadCount == nil && wasUnread {
			a.unread = max(a.unread-1, 0)
		}
	})
}

func (a *Aggregator) onCount(raw json.RawMessage) {
	d, ok := decodeEvent(ws.OpUnreadCountUpdate, raw)
	if !ok {
		return
	}
	a.update(func() { a.applyCountLocked(d.UnreadCount, d.Version) })
}

// applyCountLocked sets the count from an authoritative source. A nil count
// is ignored, as is one stamped older than the last applied version.
// Version 0 means unversioned and always applies.
func (a *Aggregator) applyCountLocked(count *int, version int64) bool {
	if count == nil {
		return false
	}
	if version > 0 && version < a.version {
		return false
	}
	a.unread = max(*count, 0)
	if version > a.version {
		a.version = version
	}
	a.epoch++
	return true
}

func (a *Aggregator) currentLocked(gen uint64) bool {
	return a.sess.Active() && a.sess.Generation() == gen
}

// removeLocked drops id from the list and returns its former position.
func (a *Aggregator) removeLocked(id string) int {
	for i, e := range a.entries {
		if e.Notification.ID == id {
			a.entries = append(a.entries[:i], a.entries[i+1:]...)
			delete(a.index, id)
			return i
		}
	}
	return -1
}

func (a *Aggregator) insertAtLocked(e *Entry, pos int) {
	if pos < 0 || pos > len(a.entries) {
		pos = len(a.entries)
	}
	a.entries = append(a.entries, nil)
	copy(a.entries[pos+1:], a.entries[pos:])
	a.entries[pos] = e
	a.index[e.Notification.ID] = e
	a.trimLocked()
}

// sortLocked orders newest first; equal timestamps keep their order.
func (a *Aggregator) sortLocked() {
	sort.SliceStable(a.entries, func(i, j int) bool {
		return a.entries[i].Notification.CreatedAt.After(a.entries[j].Notification.CreatedAt)
	})
}

func (a *Aggregator) trimLocked() {
	for len(a.entries) > a.opts.Limit {
		last := a.entries[len(a.entries)-1]
		delete(a.index, last.Notification.ID)
		a.entries = a.entries[:len(a.entries)-1]
	}
}

func (a *Aggregator) snapshotLocked() Snapshot {
	entries := make([]Entry, len(a.entries))
	for i, e := range a.entries {
		entries[i] = *e
	}
	return Snapshot{Entries: entries, Unread: a.unread, Version: a.version}
}

func (a *Aggregator) emit(snap Snapshot) {
	a.lmu.Lock()
	fns := make([]func(Snapshot), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.lmu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
