package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	ErrInvalidState     = errors.New("invalid state")
	ErrNotRegistered    = errors.New("student is not registered")
	ErrAlreadyResolved  = errors.New("request already resolved")
	ErrAlreadyAllocated = errors.New("already allocated")

	// ErrInconsistent marks a unit of work that would have left the store
	// violating an allocation invariant. It is never recoverable by retry.
	ErrInconsistent = errors.New("inconsistent allocation state")
)

// StateError carries the entity an operation failed on.
// It unwraps to one of the sentinels above.
type StateError struct {
	Err     error
	Entity  string
	ID      string
	Message string
}

func (e *StateError) Error() string {
	switch {
	case e.Entity != "" && e.Message != "":
		return fmt.Sprintf("%s %s: %s: %s", e.Entity, e.ID, e.Err, e.Message)
	case e.Entity != "":
		return fmt.Sprintf("%s %s: %s", e.Entity, e.ID, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Err, e.Message)
	}
	return e.Err.Error()
}

func (e *StateError) Unwrap() error {
	return e.Err
}

func NotFound(entity, id string) error {
	return &StateError{Err: ErrNotFound, Entity: entity, ID: id}
}

func AlreadyExists(entity, id string) error {
	return &StateError{Err: ErrAlreadyExists, Entity: entity, ID: id}
}

// InvalidState names the precondition that failed.
func InvalidState(entity, id, format string, args ...any) error {
	return &StateError{Err: ErrInvalidState, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

func NotRegistered(studentID, projectID string) error {
	return &StateError{
		Err:     ErrNotRegistered,
		Entity:  "student",
		ID:      studentID,
		Message: fmt.Sprintf("not registered to project %s", projectID),
	}
}

func AlreadyResolved(requestID, status string) error {
	return &StateError{Err: ErrAlreadyResolved, Entity: "request", ID: requestID, Message: "status is " + status}
}

func AlreadyAllocated(entity, id, format string, args ...any) error {
	return &StateError{Err: ErrAlreadyAllocated, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err matches target or any of others.
func Is(err, target error, others ...error) bool {
	if errors.Is(err, target) {
		return true
	}
	for _, e := range others {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
