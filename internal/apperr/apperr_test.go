package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "direct apperr",
			err:  NotFound("order %s not found", "abc"),
			want: KindNotFound,
		},
		{
			name: "wrapped apperr",
			err:  fmt.Errorf("initiate return: %w", InvalidState("order not delivered")),
			want: KindInvalidState,
		},
		{
			name: "upstream keeps cause",
			err:  Upstream(errors.New("status 503"), "courier API error"),
			want: KindUpstreamFailure,
		},
		{
			name: "plain error falls back to internal",
			err:  errors.New("boom"),
			want: KindInternal,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestErrorMessageIncludesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Upstream(cause, "failed to fetch tracking info")

	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable via errors.Is")
	}
	if got, want := err.Error(), "failed to fetch tracking info: connection refused"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestIsMatchesByKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("update refund: %w", InvalidTransition("cannot change status from 'processed' to 'approved'"))
	if !errors.Is(err, &Error{Kind: KindInvalidTransition}) {
		t.Fatalf("expected errors.Is to match by kind")
	}
	if errors.Is(err, &Error{Kind: KindConflict}) {
		t.Fatalf("did not expect conflict kind to match")
	}
}
