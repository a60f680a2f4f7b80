// Package push delivers notifications to offline devices.
//
// The notification pipeline only knows the Sender interface. The production
// implementation talks to Firebase Cloud Messaging; when no credentials are
// configured a no-op sender is used so the rest of the pipeline still runs.
package push

import (
	"context"
	"errors"
)

// ErrInvalidToken means the provider no longer accepts the device token and
// the subscription should be removed.
var ErrInvalidToken = errors.New("push token is no longer valid")

// Message is a provider-neutral push payload.
type Message struct {
	Title string
	Body  string
	// Link is the in-app path opened when the push is tapped.
	Link string
	// Data is delivered verbatim to the client app.
	Data map[string]string
}

// Target is one registered device. Token addresses provider-managed devices;
// Endpoint and the two keys are the browser-native subscription fields.
type Target struct {
	Token    string
	Endpoint string
	P256dh   string
	Auth     string
}

// Sender delivers one message to one device.
type Sender interface {
	Send(ctx context.Context, target Target, msg Message) error
	// PublicKey is the application server key browsers subscribe with.
	// Empty when the provider does not need one.
	PublicKey() string
}

type noopSender struct{}

// NewNoopSender returns a Sender that drops every message.
func NewNoopSender() Sender { return noopSender{} }

func (noopSender) Send(context.Context, Target, Message) error { return nil }
func (noopSender) PublicKey() string { return "" }
