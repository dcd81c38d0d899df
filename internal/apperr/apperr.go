// Package apperr holds the sentinel errors shared across services and
// handlers. Business failures (not found, expired, validation) are normal
// control flow and must never be counted by the circuit breaker; only
// infrastructure faults propagate as plain wrapped errors.
package apperr

import "errors"

var (
	// common errors
	ErrorNotFound   = errors.New("not found")
	ErrorValidation = errors.New("validation error")

	// share-link errors
	ErrorTokenExpired = errors.New("share token expired")

	// auth errors
	ErrorInvalidToken = errors.New("invalid token")
	ErrorUnauthorized = errors.New("unauthorized")
)
