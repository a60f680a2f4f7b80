package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the payload of an access token: the Credential a client
// holds for its session.
//
// A JWT is header.payload.signature. The server verifies the signature on
// every request; the client only decodes the payload to read `exp` and the
// role flags, never trusting them for anything but display and scheduling.
//
// The struct lives in models because services, middleware, ws and the client
// packages all need it.
type TokenClaims struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	IsAdmin     bool   `json:"is_admin"`
	IsPublisher bool   `json:"is_publisher"`
	jwt.RegisteredClaims
}
