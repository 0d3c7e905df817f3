package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed input.
type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Field != "":
		return fmt.Sprintf("invalid %s", e.Field)
	default:
		return "validation error"
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError reports an operation on an entity that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string {
	resource := e.Resource
	if resource == "" {
		resource = "entity"
	}
	if e.ID == "" {
		return resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// IllegalTransitionError reports a lifecycle change the transition table forbids.
type IllegalTransitionError struct {
	TripID string
	From   TripStatus
	To     TripStatus
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	msg := fmt.Sprintf("trip %s cannot move from %s to %s", e.TripID, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// PersistenceError reports that the backing store failed or is unreachable.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return e.Op + ": persistence failure"
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsIllegalTransition(err error) bool {
	var target *IllegalTransitionError
	return errors.As(err, &target)
}

func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
