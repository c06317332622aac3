package queue

import (
	"testing"
	"time"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/clock"
)

func TestSlidingWindow_CapsStarts(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC))
	w := newSlidingWindow(3, time.Minute, clk)

	for i := 0; i < 3; i++ {
		if !w.Allow() {
			t.Fatalf("start %d should be admitted", i+1)
		}
	}
	if w.Allow() {
		t.Fatal("fourth start within the window must be rejected")
	}
}

func TestSlidingWindow_SlidesNotResets(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC))
	w := newSlidingWindow(2, time.Minute, clk)

	if !w.Allow() {
		t.Fatal("first start rejected")
	}
	clk.Advance(30 * time.Second)
	if !w.Allow() {
		t.Fatal("second start rejected")
	}
	// 31s later the first start has aged out, the second has not.
	clk.Advance(31 * time.Second)
	if !w.Allow() {
		t.Fatal("slot from aged-out start should be free")
	}
	if w.Allow() {
		t.Fatal("window must still hold two recent starts")
	}
}

func TestSlidingWindow_NextFree(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC))
	w := newSlidingWindow(1, time.Minute, clk)

	if got := w.NextFree(); got != 0 {
		t.Fatalf("NextFree() = %v, want 0 while a slot is open", got)
	}
	if !w.Allow() {
		t.Fatal("start rejected")
	}
	clk.Advance(10 * time.Second)
	if got := w.NextFree(); got != 50*time.Second {
		t.Fatalf("NextFree() = %v, want 50s", got)
	}
	clk.Advance(50 * time.Second)
	if got := w.NextFree(); got != 0 {
		t.Fatalf("NextFree() = %v, want 0 after the window slid", got)
	}
}

func TestRetryBackoff(t *testing.T) {
	for i := 0; i < 50; i++ {
		first := retryBackoff(1, 0)
		if first < 5*time.Second || first > 6*time.Second {
			t.Fatalf("retry 1 backoff = %v, want 5s..6s (0-20%% jitter)", first)
		}
		second := retryBackoff(2, 0)
		if second < 10*time.Second || second > 12*time.Second {
			t.Fatalf("retry 2 backoff = %v, want 10s..12s", second)
		}
	}
}

func TestRetryBackoff_RetryAfterOverride(t *testing.T) {
	// Vendor-requested waits longer than the default win (retry monotonicity).
	got := retryBackoff(1, 30*time.Second)
	if got != 30*time.Second {
		t.Fatalf("backoff = %v, want the 30s retryAfter", got)
	}
	// Shorter requests never undercut the default.
	got = retryBackoff(2, time.Second)
	if got < 10*time.Second {
		t.Fatalf("backoff = %v, must not undercut the 10s default", got)
	}
}
