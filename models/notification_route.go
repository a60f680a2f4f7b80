package models

import "net/url"

// DefaultRoute is where a notification leads when its data is missing or
// its type is unknown.
const DefaultRoute = "/"

// notificationRoutes maps every NotificationType to the in-app path it
// opens. Route functions return "" when the data they need is missing.
var notificationRoutes = map[NotificationType]func(NotificationData) string{
	NotificationComment:           commentRoute,
	NotificationReply:             commentRoute,
	NotificationLikeComment:       commentRoute,
	NotificationNewPost:           postRoute,
	NotificationNewDonation:       narrativeRoute,
	NotificationDonationReceived:  narrativeRoute,
	NotificationFollow:            profileRoute,
	NotificationReport:            func(NotificationData) string { return "/admin/reports" },
	NotificationPublisherRequest:  func(NotificationData) string { return "/admin/publisher-requests" },
	NotificationPublisherApproved: func(NotificationData) string { return "/dashboard" },
	NotificationPublisherRejected: func(NotificationData) string { return "/publisher/apply" },
}

// NotificationRoute resolves the in-app path for a notification of type t.
// It is total: unknown types and missing data fall back to DefaultRoute.
func NotificationRoute(t NotificationType, d NotificationData) string {
	route, ok := notificationRoutes[t]
	if !ok {
		return DefaultRoute
	}
	if path := route(d); path != "" {
		return path
	}
	return DefaultRoute
}

// Route is NotificationRoute for n.
func (n *Notification) Route() string {
	return NotificationRoute(n.Type, n.Data)
}

func postRoute(d NotificationData) string {
	if d.PostSlug == "" {
		return ""
	}
	return "/post/" + url.PathEscape(d.PostSlug)
}

func commentRoute(d NotificationData) string {
	p := postRoute(d)
	if p == "" {
		return ""
	}
	if d.CommentID != "" {
		p += "#comment-" + url.PathEscape(d.CommentID)
	}
	return p
}

func narrativeRoute(d NotificationData) string {
	if d.NarrativeSlug == "" {
		return ""
	}
	return "/narrative/" + url.PathEscape(d.NarrativeSlug)
}

func profileRoute(d NotificationData) string {
	if d.ActorUsername == "" {
		return ""
	}
	return "/profile/" + url.PathEscape(d.ActorUsername)
}
