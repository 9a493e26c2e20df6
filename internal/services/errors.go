package services

import (
	"errors"
	"time"
)

var (
	// ErrValidation is returned for missing, malformed or past-dated input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when no capsule (or notification) owned by the caller matches.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when mutating an unlocked capsule.
	ErrInvalidState = errors.New("invalid state")
	// ErrPersistence is returned when a store write fails; creation is fully rolled back.
	ErrPersistence = errors.New("persistence error")
	// ErrExternalService wraps classification, template and email failures.
	ErrExternalService = errors.New("external service error")
	// ErrUnauthorized is returned for bad login credentials.
	ErrUnauthorized = errors.New("invalid credentials")
	// ErrConflict is returned when registering an email that is already used.
	ErrConflict = errors.New("already exists")
)

// Clock returns the current time; tests inject fixed or advancing clocks.
type Clock func() time.Time
