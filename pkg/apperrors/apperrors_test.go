package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindAndStatus(t *testing.T) {
	cases := []struct {
		err    error
		kind   string
		status int
	}{
		{ErrCapacityExceeded, "CAPACITY_EXCEEDED", 409},
		{ErrOrderUnavailable, "ORDER_UNAVAILABLE", 409},
		{ErrInsufficientBalance, "INSUFFICIENT_BALANCE", 402},
		{ErrUserNotFound, "USER_NOT_FOUND", 404},
		{ErrInvalidState, "INVALID_STATE", 409},
		{ErrAlreadyAssigned, "ALREADY_ASSIGNED", 409},
		{ErrUnauthorized, "UNAUTHORIZED", 403},
		{errors.New("boom"), "INTERNAL", 500},
	}
	for _, c := range cases {
		if got := Kind(c.err); got != c.kind {
			t.Fatalf("Kind(%v) = %s, want %s", c.err, got, c.kind)
		}
		if got := StatusCode(c.err); got != c.status {
			t.Fatalf("StatusCode(%v) = %d, want %d", c.err, got, c.status)
		}
	}
}

func TestWrappedErrorsKeepKind(t *testing.T) {
	err := fmt.Errorf("join route x: %w", ErrCapacityExceeded)
	if Kind(err) != "CAPACITY_EXCEEDED" {
		t.Fatalf("wrapped error lost its kind: %s", Kind(err))
	}
	if StatusCode(err) != 409 {
		t.Fatalf("wrapped error lost its status: %d", StatusCode(err))
	}
}
