package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestStatusOf(t *testing.T) {
	cause := stderrors.New("backend unavailable")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 200},
		{"not found", ErrNotFound, 404},
		{"unauthorized", ErrUnauthorized, 401},
		{"method not allowed", ErrMethodNotAllowed, 405},
		{"internal", ErrInternal, 500},
		{"initiation", Initiation(cause), 500},
		{"part upload", PartUpload(cause), 500},
		{"completion", Completion(cause), 500},
		{"abort", Abort(cause), 500},
		{"unmapped", stderrors.New("boom"), 500},
		{"wrapped unmapped", fmt.Errorf("outer: %w", cause), 500},
		{"wrapped gateway error", fmt.Errorf("fetching object: %w", ErrNotFound), 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := PartUpload(cause)

	if !stderrors.Is(err, cause) {
		t.Errorf("errors.Is should find the wrapped cause")
	}
}

func TestMessageOfHidesInternalDetail(t *testing.T) {
	got := MessageOf(stderrors.New("sqlite disk I/O error at /var/lib"))
	if got != ErrInternal.Message {
		t.Errorf("MessageOf(unmapped) = %q, want generic message", got)
	}
	if MessageOf(ErrNotFound) != "Not found" {
		t.Errorf("MessageOf(ErrNotFound) = %q", MessageOf(ErrNotFound))
	}
}

func TestNotFoundAndUnauthorizedStayDistinctForMutations(t *testing.T) {
	// GET conflates the two on purpose; PUT/PATCH/DELETE must not.
	if StatusOf(ErrNotFound) == StatusOf(ErrUnauthorized) {
		t.Fatal("NotFound and Unauthorized must map to different statuses")
	}
}
