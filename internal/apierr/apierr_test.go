package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatus_MapsEveryKind(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindState, http.StatusUnprocessableEntity},
		{KindLocked, http.StatusLocked},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		e := New(tc.kind, "code", errors.New("boom"))
		if got := e.Status(); got != tc.want {
			t.Fatalf("%s: expected %d got %d", tc.kind, tc.want, got)
		}
	}
}

func TestKindOf_UnwrapsWrappedErrors(t *testing.T) {
	base := Locked("forecast_locked", "forecast is locked")
	wrapped := fmt.Errorf("apply transition: %w", base)

	if KindOf(wrapped) != KindLocked {
		t.Fatalf("expected locked kind through wrapping, got %v", KindOf(wrapped))
	}
	if !IsKind(wrapped, KindLocked) {
		t.Fatalf("expected IsKind to match through wrapping")
	}
	if IsKind(wrapped, KindConflict) {
		t.Fatalf("expected IsKind to reject a different kind")
	}
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	if KindOf(errors.New("disk on fire")) != KindInternal {
		t.Fatalf("expected plain errors to classify as internal")
	}
	if KindOf(nil) != KindInternal {
		t.Fatalf("expected nil to classify as internal")
	}
}

func TestError_MessageFallbacks(t *testing.T) {
	if got := Validation("bad_input", "field %s is required", "name").Error(); got != "field name is required" {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := (&Error{Kind: KindConflict, Code: "dup"}).Error(); got != "dup" {
		t.Fatalf("expected code fallback, got %q", got)
	}
	if got := (&Error{Kind: KindConflict}).Error(); got != "conflict" {
		t.Fatalf("expected kind fallback, got %q", got)
	}
}
