package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glimsocial/glim/client/session"
	"github.com/glimsocial/glim/models"
	"github.com/glimsocial/glim/pkg"
)

type staticCreds string

func (s staticCreds) Credential() string { return string(s) }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			pkg.JSON(w, http.StatusOK, map[string]any{"valid": true})
		case "Bearer down":
			pkg.ErrorWithMessage(w, http.StatusServiceUnavailable, "maintenance")
		default:
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "token expired")
		}
	})
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != "secret" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		http.SetCookie(w, &http.Cookie{Name: session.TokenCookieName, Value: "tok", Path: "/"})
		pkg.JSON(w, http.StatusOK, SignInResult{AccessToken: "tok", User: models.User{ID: "u1", Username: req.Username}})
	})
	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			pkg.ErrorWithMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		pkg.JSON(w, http.StatusOK, models.NotificationPage{
			Notifications: []models.Notification{{ID: "n1", Type: models.NotificationFollow}},
			Page:          1,
			Limit:         20,
			Unread:        models.UnreadCount{Count: 1, Version: 4},
		})
	})
	mux.HandleFunc("PATCH /api/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "n1" {
			pkg.Error(w, pkg.ErrNotFound)
			return
		}
		pkg.JSON(w, http.StatusOK, models.UnreadCount{Count: 0, Version: 5})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestValidate(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx := context.Background()
	if err := c.Validate(ctx, "good"); err != nil {
		t.Errorf("good credential: %v", err)
	}
	if err := c.Validate(ctx, "stale"); !errors.Is(err, session.ErrCredentialRejected) {
		t.Errorf("rejected credential: err = %v, want ErrCredentialRejected", err)
	}
	err = c.Validate(ctx, "down")
	if err == nil || errors.Is(err, session.ErrCredentialRejected) {
		t.Errorf("transient failure: err = %v, want a non-rejection error", err)
	}
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Errorf("err = %v, want 503 StatusError", err)
	}
}

func TestSignInKeepsCookie(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := c.SignIn(context.Background(), "alice", "wrong"); !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("bad password: err = %v, want 401", err)
	}

	res, err := c.SignIn(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if res.AccessToken != "tok" || res.User.Username != "alice" {
		t.Errorf("result = %+v", res)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	found := false
	for _, ck := range c.Jar().Cookies(req.URL) {
		if ck.Name == session.TokenCookieName && ck.Value == "tok" {
			found = true
		}
	}
	if !found {
		t.Error("session cookie not stored in jar")
	}
}

func TestNotificationCalls(t *testing.T) {
	srv := newTestServer(t)
	c, err := NewClient(srv.URL, staticCreds("tok"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	page, err := c.ListNotifications(ctx, 1, 20)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(page.Notifications) != 1 || page.Unread.Version != 4 {
		t.Errorf("page = %+v", page)
	}

	uc, err := c.MarkRead(ctx, "n1")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if uc.Count != 0 || uc.Version != 5 {
		t.Errorf("count = %+v, want 0 v5", uc)
	}

	if _, err := c.MarkRead(ctx, "missing"); !IsStatus(err, http.StatusNotFound) {
		t.Errorf("missing id: err = %v, want 404", err)
	}

	anon, _ := NewClient(srv.URL, staticCreds(""))
	if _, err := anon.ListNotifications(ctx, 1, 20); !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("no credential: err = %v, want 401", err)
	}
}
