// Package pkg holds utilities shared across layers. This file defines the
// domain-level sentinel errors.
//
// Services wrap these with fmt.Errorf("%w: ...") and handlers map them to
// HTTP status codes, so comparisons go through errors.Is rather than strings:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
package pkg

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTokenExpired    = errors.New("token expired")
	ErrForbidden       = errors.New("forbidden")
	ErrAlreadyExists   = errors.New("already exists")
	ErrBadRequest      = errors.New("bad request")
	ErrTooManyRequests = errors.New("too many requests")
	ErrInternal        = errors.New("internal error")
)
