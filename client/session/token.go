// Package session holds the client's signed-in state and everything that can
// end it: the credential expiry check, the terminator, and the watchdog that
// runs the check on a schedule.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/glimsocial/glim/models"
)

// ErrNoExpiry is returned by Claims for a token without an exp claim.
var ErrNoExpiry = errors.New("credential has no expiry")

// Claims decodes the credential payload without verifying its signature.
// The result is informational only: the server verifies every request.
func Claims(token string) (*models.TokenClaims, error) {
	if token == "" {
		return nil, errors.New("empty credential")
	}

	claims := &models.TokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	if claims.ExpiresAt == nil {
		return claims, ErrNoExpiry
	}
	return claims, nil
}

// IsTokenExpired reports whether token is expired at now. Missing, malformed
// or undecodable tokens count as expired, as does exp equal to now. No clock
// skew is tolerated.
func IsTokenExpired(token string, now time.Time) bool {
	claims, err := Claims(token)
	if err != nil {
		return true
	}
	return claims.ExpiresAt.Unix() <= now.Unix()
}

// ExpiresAt returns the expiry of token, or false when it has none.
func ExpiresAt(token string) (time.Time, bool) {
	claims, err := Claims(token)
	if err != nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
