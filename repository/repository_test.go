package repository

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/glimsocial/glim/database"
	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	migrations, err := fs.Sub(database.EmbeddedMigrations, "migrations")
	if err != nil {
		t.Fatalf("fs.Sub: %v", err)
	}
	db, err := database.New(filepath.Join(t.TempDir(), "glim.db"), migrations)
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, users UserRepository, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, PasswordHash: "x", Language: "en"}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func TestUserRepo_CreateAndLookup(t *testing.T) {
	db := openTestDB(t)
	users := NewSQLiteUserRepo(db.Conn)
	ctx := context.Background()

	u := createUser(t, users, "ada")
	if u.ID == "" {
		t.Fatal("Create should assign an id")
	}

	got, err := users.GetByUsername(ctx, "ADA")
	if err != nil || got.ID != u.ID {
		t.Fatalf("case-insensitive lookup = %v, %v", got, err)
	}

	dup := &models.User{Username: "Ada", PasswordHash: "x", Language: "en"}
	if err := users.Create(ctx, dup); !errors.Is(err, pkg.ErrAlreadyExists) {
		t.Fatalf("duplicate username err = %v", err)
	}

	if _, err := users.GetByID(ctx, "nope"); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("missing user err = %v", err)
	}
}

func TestNotificationRepo_CountAndVersion(t *testing.T) {
	db := openTestDB(t)
	users := NewSQLiteUserRepo(db.Conn)
	repo := NewSQLiteNotificationRepo(db.X)
	ctx := context.Background()

	u := createUser(t, users, "bob")

	var last models.UnreadCount
	for i := 0; i < 3; i++ {
		uc, err := repo.Create(ctx, &models.Notification{
			UserID: u.ID,
			Type:   models.NotificationFollow,
			Title:  "t",
			Data:   models.NotificationData{ActorUsername: "ada"},
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if uc.Count != i+1 {
			t.Fatalf("count after %d creates = %d", i+1, uc.Count)
		}
		if uc.Version <= last.Version {
			t.Fatalf("version did not grow: %d -> %d", last.Version, uc.Version)
		}
		last = uc
	}

	list, hasMore, err := repo.ListByUser(ctx, u.ID, 1, 2)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || !hasMore {
		t.Fatalf("page 1: len=%d hasMore=%v", len(list), hasMore)
	}
	if list[0].Data.ActorUsername != "ada" {
		t.Fatalf("data not round-tripped: %+v", list[0].Data)
	}

	uc, err := repo.MarkRead(ctx, u.ID, list[0].ID)
	if err != nil || uc.Count != 2 || uc.Version != last.Version+1 {
		t.Fatalf("MarkRead = %+v, %v", uc, err)
	}

	uc, err = repo.Delete(ctx, u.ID, list[1].ID)
	if err != nil || uc.Count != 1 {
		t.Fatalf("Delete = %+v, %v", uc, err)
	}

	uc, err = repo.MarkAllRead(ctx, u.ID)
	if err != nil || uc.Count != 0 {
		t.Fatalf("MarkAllRead = %+v, %v", uc, err)
	}

	read, err := repo.UnreadCount(ctx, u.ID)
	if err != nil || read != uc {
		t.Fatalf("UnreadCount = %+v, %v; want %+v", read, err, uc)
	}
}

func TestNotificationRepo_NewestFirst(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteNotificationRepo(db.X)
	u := createUser(t, NewSQLiteUserRepo(db.Conn), "cy")
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		n := &models.Notification{ID: id, UserID: u.ID, Type: models.NotificationReply, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if _, err := repo.Create(ctx, n); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, hasMore, err := repo.ListByUser(ctx, u.ID, 1, 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if hasMore || len(list) != 3 || list[0].ID != "c" || list[2].ID != "a" {
		t.Fatalf("order = %v", ids(list))
	}
}

func TestNotificationRepo_OtherUsersNotification(t *testing.T) {
	db := openTestDB(t)
	users := NewSQLiteUserRepo(db.Conn)
	repo := NewSQLiteNotificationRepo(db.X)
	ctx := context.Background()

	owner := createUser(t, users, "owner")
	other := createUser(t, users, "other")

	n := &models.Notification{UserID: owner.ID, Type: models.NotificationComment}
	before, err := repo.Create(ctx, n)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := repo.MarkRead(ctx, other.ID, n.ID); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("MarkRead by other user err = %v", err)
	}
	if _, err := repo.Delete(ctx, other.ID, n.ID); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("Delete by other user err = %v", err)
	}

	// Failed mutations roll back the version bump too.
	after, _ := repo.UnreadCount(ctx, owner.ID)
	if after != before {
		t.Fatalf("owner state changed: %+v -> %+v", before, after)
	}
}

func TestPushRepo_UpsertMovesToken(t *testing.T) {
	db := openTestDB(t)
	users := NewSQLiteUserRepo(db.Conn)
	repo := NewSQLitePushRepo(db.X)
	ctx := context.Background()

	a := createUser(t, users, "a_user")
	b := createUser(t, users, "b_user")

	first := &models.PushSubscription{UserID: a.ID, Token: "tok-1", DeviceName: "phone"}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	again := &models.PushSubscription{UserID: b.ID, Token: "tok-1", DeviceName: "tablet"}
	if err := repo.Upsert(ctx, again); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("upsert should keep the original id: %s vs %s", again.ID, first.ID)
	}

	subsA, _ := repo.ListByUser(ctx, a.ID)
	subsB, _ := repo.ListByUser(ctx, b.ID)
	if len(subsA) != 0 || len(subsB) != 1 || subsB[0].DeviceName != "tablet" {
		t.Fatalf("a=%v b=%v", subsA, subsB)
	}

	if err := repo.DeleteByToken(ctx, a.ID, "tok-1"); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("delete by wrong user err = %v", err)
	}
	if err := repo.DeleteByToken(ctx, b.ID, "tok-1"); err != nil {
		t.Fatalf("DeleteByToken: %v", err)
	}
}

func TestPublisherRequestRepo_Review(t *testing.T) {
	db := openTestDB(t)
	users := NewSQLiteUserRepo(db.Conn)
	repo := NewSQLitePublisherRequestRepo(db.Conn)
	ctx := context.Background()

	u := createUser(t, users, "writer")
	admin := createUser(t, users, "admin")

	req := &models.PublisherRequest{UserID: u.ID, Reason: "I write stories"}
	if err := repo.Create(ctx, req); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if pending, _ := repo.HasPending(ctx, u.ID); !pending {
		t.Fatal("HasPending should be true")
	}

	if err := repo.Review(ctx, req.ID, admin.ID, models.PublisherRequestApproved); err != nil {
		t.Fatalf("Review: %v", err)
	}
	if err := repo.Review(ctx, req.ID, admin.ID, models.PublisherRequestRejected); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("second review err = %v", err)
	}

	got, err := repo.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != models.PublisherRequestApproved || got.Username != "writer" || got.ReviewedAt == nil {
		t.Fatalf("reviewed request = %+v", got)
	}
}

func TestFollowRepo(t *testing.T) {
	db := openTestDB(t)
	users := NewSQLiteUserRepo(db.Conn)
	repo := NewSQLiteFollowRepo(db.Conn)
	ctx := context.Background()

	a := createUser(t, users, "fa")
	b := createUser(t, users, "fb")

	if err := repo.Create(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, a.ID, b.ID); !errors.Is(err, pkg.ErrAlreadyExists) {
		t.Fatalf("duplicate follow err = %v", err)
	}
	followers, _ := repo.ListFollowerIDs(ctx, b.ID)
	if len(followers) != 1 || followers[0] != a.ID {
		t.Fatalf("followers = %v", followers)
	}
	if err := repo.Delete(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := repo.Exists(ctx, a.ID, b.ID); ok {
		t.Fatal("follow should be gone")
	}
}

func ids(list []models.Notification) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.ID
	}
	return out
}
