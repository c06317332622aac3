package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAdapterError_Error(t *testing.T) {
	e := New(KindInvalidData, "todayEnergyKWh is negative")
	want := "INVALID_DATA: todayEnergyKWh is negative"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	wrapped := Wrap(errors.New("boom"), KindUnknown, "adapter call failed")
	if wrapped.Error() != "UNKNOWN: adapter call failed: boom" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestAsAdapterError_Unwrap(t *testing.T) {
	inner := RateLimited("429 from vendor", 30*time.Second)
	outer := fmt.Errorf("poll plant p1: %w", inner)

	ae, ok := AsAdapterError(outer)
	if !ok {
		t.Fatal("AsAdapterError() = false, want true")
	}
	if ae.Kind != KindRateLimited {
		t.Errorf("Kind = %s, want RATE_LIMITED", ae.Kind)
	}
	if ae.RetryAfter != 30*time.Second {
		t.Errorf("RetryAfter = %v, want 30s", ae.RetryAfter)
	}
}

func TestKindOf_Unclassified(t *testing.T) {
	if got := KindOf(errors.New("some failure")); got != KindUnknown {
		t.Errorf("KindOf() = %s, want UNKNOWN", got)
	}
	if got := KindOf(AuthFailed("401")); got != KindAuthFailed {
		t.Errorf("KindOf() = %s, want AUTH_FAILED", got)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindAuthFailed, false},
		{KindRateLimited, true},
		{KindNetworkTimeout, true},
		{KindInvalidData, false},
		{KindPlantNotFound, false},
		{KindLockSkipped, false},
		{KindUnknown, true},
	}
	for _, tt := range tests {
		if got := Retryable(tt.kind); got != tt.want {
			t.Errorf("Retryable(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestWithHTTPStatus(t *testing.T) {
	e := NetworkTimeout("gateway timeout").WithHTTPStatus(504)
	if e.HTTPStatus != 504 {
		t.Errorf("HTTPStatus = %d, want 504", e.HTTPStatus)
	}
}
