package services

import (
	"errors"
	"fmt"

	"mealmood-community/models"

	"gorm.io/gorm"
)

// Sentinels for errors.Is; the concrete types below carry the details.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state")
	ErrForbidden        = errors.New("forbidden")
	ErrValidation       = errors.New("validation failed")
	ErrTransientStorage = errors.New("transient storage failure")
	ErrNotification     = errors.New("notification delivery failed")
)

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string { return e.Reason }

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// NotOpenError rejects join/leave outside the challenge's open window.
type NotOpenError struct {
	ChallengeID string
	Status      models.ChallengeStatus
}

func (e *NotOpenError) Error() string {
	return fmt.Sprintf("group challenge is not currently open (status: %s)", e.Status)
}

func (e *NotOpenError) Is(target error) bool { return target == ErrInvalidState }

type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string { return e.Reason }

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TransientStorageError wraps a backend failure that is worth retrying on the next tick.
type TransientStorageError struct {
	Op  string
	Err error
}

func (e *TransientStorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *TransientStorageError) Unwrap() error { return e.Err }

func (e *TransientStorageError) Is(target error) bool { return target == ErrTransientStorage }

type NotificationDeliveryError struct {
	UserID string
	Err    error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.UserID, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error { return e.Err }

func (e *NotificationDeliveryError) Is(target error) bool { return target == ErrNotification }

// storageErr wraps a GORM error at the service boundary.
// ErrRecordNotFound becomes a NotFoundError for resource/id; typed service errors pass through.
func storageErr(op string, err error, resource, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	var (
		nf *NotFoundError
		is *InvalidStateError
		no *NotOpenError
		fb *ForbiddenError
		ve *ValidationError
		ts *TransientStorageError
	)
	if errors.As(err, &nf) || errors.As(err, &is) || errors.As(err, &no) ||
		errors.As(err, &fb) || errors.As(err, &ve) || errors.As(err, &ts) {
		return err
	}
	return &TransientStorageError{Op: op, Err: err}
}
