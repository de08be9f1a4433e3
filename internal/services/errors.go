// Package services defines the business logic for stored weather requests.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

var (
	// ErrRequestNotFound indicates that the requested record does not exist.
	ErrRequestNotFound = errors.New("request not found")

	// ErrInvalidDateRange is returned when date_to precedes date_from, when
	// the inclusive span exceeds the configured maximum, or when either
	// bound is not a valid ISO calendar date.
	ErrInvalidDateRange = errors.New("invalid date range")
)
