// Package api is the HTTP client for Glim's REST endpoints.
//
// Every response is the server's {success, data, error} envelope; Client
// unwraps it and turns failures into *StatusError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glimsocial/glim/client/session"
	"github.com/glimsocial/glim/models"
)

// Credentials supplies the bearer token for each request. *session.Store
// satisfies it.
type Credentials interface {
	Credential() string
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// SignInResult is what Register and SignIn return.
type SignInResult struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         models.User `json:"user"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client talks to one Glim server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	creds      Credentials
}

// NewClient returns a client for baseURL. The HTTP client carries a cookie
// jar so the session cookie set on sign-in is kept alongside the bearer
// credential.
func NewClient(baseURL string, creds Credentials) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Jar: jar, Timeout: 15 * time.Second},
		creds:      creds,
	}, nil
}

// Jar is the client's cookie jar.
func (c *Client) Jar() http.CookieJar {
	return c.HTTPClient.Jar
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, req *models.CreateUserRequest) (*SignInResult, error) {
	var out SignInResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignIn exchanges a username and password for a credential.
func (c *Client) SignIn(ctx context.Context, username, password string) (*SignInResult, error) {
	var out SignInResult
	req := models.LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate asks the server whether credential is still good. A 401 becomes
// session.ErrCredentialRejected; anything else is a transient failure.
func (c *Client) Validate(ctx context.Context, credential string) error {
	err := c.doWith(ctx, http.MethodGet, "/api/auth/validate", credential, nil, nil)
	if IsStatus(err, http.StatusUnauthorized) {
		return fmt.Errorf("%w: %v", session.ErrCredentialRejected, err)
	}
	return err
}

// LogoutAll revokes every session of the signed-in user.
func (c *Client) LogoutAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout-all", nil, nil)
}

// ListNotifications fetches one page, newest first.
func (c *Client) ListNotifications(ctx context.Context, page, limit int) (*models.NotificationPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out models.NotificationPage
	if err := c.do(ctx, http.MethodGet, "/api/notifications?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnreadCount(ctx context.Context) (models.UnreadCount, error) {
	var out models.UnreadCount
	err := c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, &out)
	return out, err
}

func (c *Client) MarkRead(ctx context.Context, id string) (models.UnreadCount, error) {
	var out models.UnreadCount
	err := c.do(ctx, http.MethodPatch, "/api/notifications/"+url.PathEscape(id)+"/read", nil, &out)
	return out, err
}

func (c *Client) MarkAllRead(ctx context.Context) (models.UnreadCount, error) {
	var out models.UnreadCount
	err := c.do(ctx, http.MethodPost, "/api/notifications/read-all", nil, &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, id string) (models.UnreadCount, error) {
	var out models.UnreadCount
	err := c.do(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), nil, &out)
	return out, err
}

// PushPublicKey returns the key browsers subscribe with.
func (c *Client) PushPublicKey(ctx context.Context) (string, error) {
	var out models.PushPublicKey
	if err := c.do(ctx, http.MethodGet, "/api/push/public-key", nil, &out); err != nil {
		return "", err
	}
	return out.PublicKey, nil
}

// SubscribePush registers this device for offline delivery.
func (c *Client) SubscribePush(ctx context.Context, req *models.SubscribePushRequest) (*models.PushSubscription, error) {
	var out models.PushSubscription
	if err := c.do(ctx, http.MethodPost, "/api/push/subscriptions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UnsubscribePush(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodDelete, "/api/push/subscriptions", models.UnsubscribePushRequest{Token: token}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	credential := ""
	if c.creds != nil {
		credential = c.creds.Credential()
	}
	return c.doWith(ctx, method, path, credential, body, out)
}

func (c *Client) doWith(ctx context.Context, method, path, credential string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &StatusError{StatusCode: resp.StatusCode, Message: env.Error}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
