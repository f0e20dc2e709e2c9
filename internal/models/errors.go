package models

import (
	"errors"
	"fmt"
)

// Expected outcomes callers branch on. Storage failures are wrapped separately.
var (
	ErrNotFound        = errors.New("not found")
	ErrNotOwner        = errors.New("worker does not hold the claim")
	ErrSpotOccupied    = errors.New("spot is occupied by another job")
	ErrBundleMember    = errors.New("job is part of a bundle")
	ErrNotBundleable   = errors.New("job cannot be bundled")
	ErrPickingClosed   = errors.New("job is not open for picking")
	ErrSignoffRequired = errors.New("signoff proof is required")
)

// AlreadyClaimedError is returned when another worker holds the claim
type AlreadyClaimedError struct {
	WorkerID   string
	WorkerName string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("job already claimed by %s", e.WorkerName)
}

// InvalidTransitionError is returned when a transition is requested from the wrong state
type InvalidTransitionError struct {
	From JobStatus
	To   JobStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// DuplicateCodeError is returned when a job code is already in use
type DuplicateCodeError struct {
	Code string
}

func (e *DuplicateCodeError) Error() string {
	return fmt.Sprintf("job with code %s already exists", e.Code)
}

// NotFoundf wraps ErrNotFound with the thing that did not resolve
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
