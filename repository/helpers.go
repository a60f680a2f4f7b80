package repository

import (
	"time"

	"github.com/google/uuid"
)

// newID returns a random UUID string for rows whose id is assigned in Go.
func newID() string {
	return uuid.NewString()
}

// timeNowUTC is the timestamp written by repositories that set created_at
// themselves. Always UTC so text ordering matches time ordering.
func timeNowUTC() time.Time {
	return time.Now().UTC()
}
