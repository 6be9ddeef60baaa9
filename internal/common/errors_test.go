package common

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppErrorMatchesSentinel(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
		code     codes.Code
	}{
		{"not found", NotFound("submission X"), ErrNotFound, codes.NotFound},
		{"unreadable", UnreadableDocument("no text layer", nil), ErrUnreadableDocument, codes.InvalidArgument},
		{"conflict", StorageConflict("busy", errors.New("database is locked")), ErrStorageConflict, codes.Aborted},
		{"unavailable", StorageUnavailable("gone", nil), ErrStorageUnavailable, codes.Unavailable},
		{"invalid", InvalidInput("bad", nil), ErrInvalidInput, codes.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tc.err)
			if !errors.Is(wrapped, tc.sentinel) {
				t.Fatalf("errors.Is(%v, %v) = false", wrapped, tc.sentinel)
			}
			if got := status.Code(tc.err); got != tc.code {
				t.Fatalf("status.Code = %v, want %v", got, tc.code)
			}
		})
	}
}

func TestAppErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := StorageUnavailable("insert submission", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("cause not reachable through Unwrap")
	}
	if CodeOf(err) != CodeStorageUnavailable {
		t.Fatalf("CodeOf = %q", CodeOf(err))
	}
	if CodeOf(cause) != "" {
		t.Fatalf("plain error should have no code")
	}
	if IsRetryable(err) {
		t.Fatalf("unavailable must not be retryable")
	}
	if !IsRetryable(StorageConflict("busy", nil)) {
		t.Fatalf("conflict must be retryable")
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError(nil, "ctx") != nil {
		t.Fatalf("WrapError(nil) should be nil")
	}
}
