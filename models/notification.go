package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType is the closed set of notification kinds.
// Go has no enums; typed string constants plus AllNotificationTypes play that role.
type NotificationType string

const (
	NotificationComment           NotificationType = "comment"
	NotificationReply             NotificationType = "reply"
	NotificationLikeComment       NotificationType = "like_comment"
	NotificationNewPost           NotificationType = "new_post"
	NotificationNewDonation       NotificationType = "new_donation"
	NotificationDonationReceived  NotificationType = "donation_received"
	NotificationFollow            NotificationType = "follow"
	NotificationReport            NotificationType = "report"
	NotificationPublisherRequest  NotificationType = "publisher_request"
	NotificationPublisherApproved NotificationType = "publisher_approved"
	NotificationPublisherRejected NotificationType = "publisher_rejected"
)

// AllNotificationTypes lists every NotificationType. Tables keyed by type
// (renderers, routes, translations) are checked against it in tests.
var AllNotificationTypes = []NotificationType{
	NotificationComment,
	NotificationReply,
	NotificationLikeComment,
	NotificationNewPost,
	NotificationNewDonation,
	NotificationDonationReceived,
	NotificationFollow,
	NotificationReport,
	NotificationPublisherRequest,
	NotificationPublisherApproved,
	NotificationPublisherRejected,
}

// Valid reports whether t is one of AllNotificationTypes.
func (t NotificationType) Valid() bool {
	for _, known := range AllNotificationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// NotificationData is the optional, type-specific routing payload.
// Every field is optional; consumers must fall back when a field is empty.
type NotificationData struct {
	PostSlug      string `json:"post_slug,omitempty"`
	NarrativeSlug string `json:"narrative_slug,omitempty"`
	CommentID     string `json:"comment_id,omitempty"`
	ActorID       string `json:"actor_id,omitempty"`
	ActorUsername string `json:"actor_username,omitempty"`
	ReportID      string `json:"report_id,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
}

// Value stores NotificationData as a JSON text column.
func (d NotificationData) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification data: %w", err)
	}
	return string(b), nil
}

// Scan reads NotificationData back from a JSON text column. NULL and empty
// strings decode to the zero value.
func (d *NotificationData) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = NotificationData{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported notification data type %T", src)
	}
	if len(raw) == 0 {
		*d = NotificationData{}
		return nil
	}
	return json.Unmarshal(raw, d)
}

// Notification is a single notification addressed to one user, created
// server-side when something happens to them (a follow, a publisher decision,
// a report).
type Notification struct {
	ID        string           `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	IsRead    bool             `json:"is_read" db:"is_read"`
	Data      NotificationData `json:"data" db:"data"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// UnreadCount is the authoritative unread count of a user together with the
// user's notification version at the moment it was computed.
//
// Version grows by one on every notification mutation of that user, inside the
// same transaction as the mutation. A client holding version N can ignore any
// count stamped with a version lower than N.
type UnreadCount struct {
	Count   int   `json:"count" db:"count"`
	Version int64 `json:"version" db:"version"`
}

// NotificationPage is one page of a user's notifications, newest first.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Page          int            `json:"page"`
	Limit         int            `json:"limit"`
	HasMore       bool           `json:"has_more"`
	Unread        UnreadCount    `json:"unread"`
}

// Notification page bounds.
const (
	DefaultNotificationPageSize = 20
	MaxNotificationPageSize     = 50
)

// NormalizePage clamps page/limit query values into the accepted range.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > MaxNotificationPageSize {
		limit = DefaultNotificationPageSize
	}
	return page, limit
}
