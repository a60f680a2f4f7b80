// Package ws is the realtime push channel between the server and signed-in
// clients.
//
// Every frame is one JSON Event:
//
//	{"op": "new-notification", "d": {...}, "seq": 42}
//
// Op names the event, d carries its payload and seq is a hub-wide sequence
// number stamped on every server-sent event.
package ws

import "github.com/glimsocial/glim/models"

// Event is a single realtime frame.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → server ops.
const (
	OpHeartbeat = "heartbeat"
)

// Server → client ops.
const (
	OpReady        = "ready"
	OpHeartbeatAck = "heartbeat_ack"

	OpNewNotification      = "new-notification"
	OpNotificationRead     = "notification-read"
	OpAllNotificationsRead = "all-notifications-read"
	OpNotificationDeleted  = "notification-deleted"
	OpUnreadCountUpdate    = "unread-count-update"

	// OpTokenExpired is sent when the connection's credential reaches its
	// exp claim; the server closes the connection right after.
	OpTokenExpired = "token-expired"
	// OpForceLogout is sent when every session of the user was revoked.
	OpForceLogout = "force-logout"
)

// ReadyData is the payload of OpReady. UnreadCount is omitted when the
// server could not load it; clients keep their current count then.
type ReadyData struct {
	UserID      string `json:"userId"`
	UnreadCount *int   `json:"unreadCount,omitempty"`
	Version     int64  `json:"version,omitempty"`
}

// NotificationEventData is the payload of every notification op.
//
// UnreadCount is the authoritative count after the change; a nil value means
// the sender did not know it. Version is the user's notification version the
// count belongs to.
type NotificationEventData struct {
	Notification   *models.Notification `json:"notification,omitempty"`
	NotificationID string               `json:"notificationId,omitempty"`
	UnreadCount    *int                 `json:"unreadCount,omitempty"`
	Version        int64                `json:"version,omitempty"`
}

// NewNotificationEventData stamps uc onto a payload.
func NewNotificationEventData(uc models.UnreadCount) NotificationEventData {
	count := uc.Count
	return NotificationEventData{UnreadCount: &count, Version: uc.Version}
}

// SessionEventData is the payload of OpTokenExpired and OpForceLogout.
type SessionEventData struct {
	Reason string `json:"reason"`
}
