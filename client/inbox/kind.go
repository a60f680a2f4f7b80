package inbox

import "github.com/glimsocial/glim/models"

// KindInfo is how one notification type is presented.
type KindInfo struct {
	Label string
	// Route resolves the in-app target from the notification's data.
	Route func(models.NotificationData) string
}

func routeFor(t models.NotificationType) func(models.NotificationData) string {
	return func(d models.NotificationData) string { return models.NotificationRoute(t, d) }
}

// kinds has one entry per models.AllNotificationTypes; a test keeps them in
// step.
var kinds = map[models.NotificationType]KindInfo{
	models.NotificationComment:           {Label: "Comment", Route: routeFor(models.NotificationComment)},
	models.NotificationReply:             {Label: "Reply", Route: routeFor(models.NotificationReply)},
	models.NotificationLikeComment:       {Label: "Like", Route: routeFor(models.NotificationLikeComment)},
	models.NotificationNewPost:           {Label: "New post", Route: routeFor(models.NotificationNewPost)},
	models.NotificationNewDonation:       {Label: "Donation", Route: routeFor(models.NotificationNewDonation)},
	models.NotificationDonationReceived:  {Label: "Donation received", Route: routeFor(models.NotificationDonationReceived)},
	models.NotificationFollow:            {Label: "Follower", Route: routeFor(models.NotificationFollow)},
	models.NotificationReport:            {Label: "Report", Route: routeFor(models.NotificationReport)},
	models.NotificationPublisherRequest:  {Label: "Publisher request", Route: routeFor(models.NotificationPublisherRequest)},
	models.NotificationPublisherApproved: {Label: "Publisher approved", Route: routeFor(models.NotificationPublisherApproved)},
	models.NotificationPublisherRejected: {Label: "Publisher rejected", Route: routeFor(models.NotificationPublisherRejected)},
}

var unknownKind = KindInfo{
	Label: "Notification",
	Route: func(models.NotificationData) string { return models.DefaultRoute },
}

// Kind returns the presentation of t. Unknown types get a generic label and
// the default route.
func Kind(t models.NotificationType) KindInfo {
	if k, ok := kinds[t]; ok {
		return k
	}
	return unknownKind
}

// Route is where n leads when opened.
func Route(n models.Notification) string {
	return Kind(n.Type).Route(n.Data)
}
