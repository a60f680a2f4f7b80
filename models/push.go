package models

import "time"

// PushSubscription is a device registered for offline push delivery.
//
// Token is the provider registration token the push sender addresses.
// Endpoint, P256dh and Auth are the browser-native subscription fields; the
// two key fields are encrypted at rest and only decrypted when needed.
type PushSubscription struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	Token      string    `json:"-" db:"token"`
	Endpoint   string    `json:"endpoint" db:"endpoint"`
	P256dh     string    `json:"-" db:"p256dh"`
	Auth       string    `json:"-" db:"auth"`
	DeviceName string    `json:"device_name" db:"device_name"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// SubscribePushRequest is the body of POST /api/push/subscriptions.
type SubscribePushRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Endpoint string `json:"endpoint" validate:"omitempty,url,max=2048"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"max=512"`
		Auth   string `json:"auth" validate:"max=512"`
	} `json:"keys"`
	DeviceName string `json:"device_name" validate:"max=64"`
}

// UnsubscribePushRequest is the body of DELETE /api/push/subscriptions.
type UnsubscribePushRequest struct {
	Token string `json:"token" validate:"required"`
}

// PushPublicKey is returned by GET /api/push/public-key.
type PushPublicKey struct {
	PublicKey string `json:"public_key"`
}
