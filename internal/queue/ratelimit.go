package queue

import (
	"sync"
	"time"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/clock"
)

// slidingWindow admits at most limit job starts per trailing window. Unlike a
// fixed-window counter it never admits 2×limit around a window boundary.
type slidingWindow struct {
	limit  int
	window time.Duration
	clk    clock.Clock

	mu     sync.Mutex
	starts []time.Time
}

func newSlidingWindow(limit int, window time.Duration, clk clock.Clock) *slidingWindow {
	return &slidingWindow{limit: limit, window: window, clk: clk}
}

// Allow records a start and returns true when under the cap.
func (w *slidingWindow) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clk.Now()
	w.prune(now)
	if len(w.starts) >= w.limit {
		return false
	}
	w.starts = append(w.starts, now)
	return true
}

// NextFree reports how long until a slot opens. Zero when one is open now.
func (w *slidingWindow) NextFree() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clk.Now()
	w.prune(now)
	if len(w.starts) < w.limit {
		return 0
	}
	return w.starts[0].Add(w.window).Sub(now)
}

// prune drops starts older than the window. Callers hold the lock.
func (w *slidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.starts) && !w.starts[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.starts = append(w.starts[:0], w.starts[i:]...)
	}
}
