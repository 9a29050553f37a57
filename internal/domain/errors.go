package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidStatus is returned when a request status string does not name
	// one of the nine known states.
	ErrInvalidStatus = errors.New("invalid request status")

	// ErrInvalidTransition is returned when a requested status change is not
	// in the allowed transition table for the request's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorizedTransition is returned when the transition itself is
	// allowed but the acting role lacks permission to perform it.
	ErrUnauthorizedTransition = errors.New("actor not authorized for transition")

	// ErrRequestImmutable is returned when attempting to mutate a request that
	// has reached a terminal status.
	ErrRequestImmutable = errors.New("request is in a terminal status")

	// ErrInvalidNotificationType is returned when a notification type is not
	// one of the known event types.
	ErrInvalidNotificationType = errors.New("invalid notification type")

	// ErrInvalidRole is returned when an actor role string is unknown.
	ErrInvalidRole = errors.New("invalid actor role")
)
