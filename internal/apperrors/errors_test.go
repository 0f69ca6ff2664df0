package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		sentinel error
		message  string
	}{
		{
			name:     "not found",
			err:      NotFound("student", "JQY001"),
			sentinel: ErrNotFound,
			message:  "student JQY001: not found",
		},
		{
			name:     "invalid state with reason",
			err:      InvalidState("project", "1", "status is %s", "RESERVED"),
			sentinel: ErrInvalidState,
			message:  "project 1: invalid state: status is RESERVED",
		},
		{
			name:     "already resolved",
			err:      AlreadyResolved("R1", "APPROVED"),
			sentinel: ErrAlreadyResolved,
			message:  "request R1: request already resolved: status is APPROVED",
		},
		{
			name:     "not registered",
			err:      NotRegistered("JQY001", "1"),
			sentinel: ErrNotRegistered,
			message:  "student JQY001: student is not registered: not registered to project 1",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.err, tc.sentinel)
			assert.Equal(t, tc.message, tc.err.Error())

			wrapped := fmt.Errorf("failed to do things: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.sentinel)

			var se *StateError
			assert.True(t, errors.As(wrapped, &se))
		})
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("outer: %w", AlreadyAllocated("project", "1", "held by %s", "JQY001"))

	assert.True(t, Is(err, ErrNotFound, ErrAlreadyAllocated))
	assert.False(t, Is(err, ErrNotFound, ErrInvalidState))
	assert.False(t, Is(nil, ErrNotFound))
}
