package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func TestPool_Submit(t *testing.T) {
	pool, err := NewPool("test", 4)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Shutdown(time.Second)

	var executed atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)

	err = pool.Submit(context.Background(), func(ctx context.Context) {
		executed.Store(true)
		wg.Done()
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	wg.Wait()
	if !executed.Load() {
		t.Error("Task was not executed")
	}
}

func TestPool_Submit_CancelledContext(t *testing.T) {
	pool, err := NewPool("test", 2)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Shutdown(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = pool.Submit(ctx, func(ctx context.Context) {
		t.Error("Task should not execute with cancelled context")
	})
	if err != context.Canceled {
		t.Errorf("Submit() error = %v, want context.Canceled", err)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	pool, err := NewPool("bounded", 2)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	defer pool.Shutdown(2 * time.Second)

	var concurrent, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Submit(context.Background(), func(ctx context.Context) {
				n := concurrent.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				concurrent.Add(-1)
			})
		}()
	}
	wg.Wait()
	// Let queued tasks finish.
	time.Sleep(300 * time.Millisecond)

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestPool_SubmitAfterShutdown(t *testing.T) {
	pool, err := NewPool("closed", 1)
	if err != nil {
		t.Fatalf("NewPool() error = %v", err)
	}
	pool.Shutdown(time.Second)

	err = pool.Submit(context.Background(), func(ctx context.Context) {})
	if err != ErrPoolClosed {
		t.Errorf("Submit() after shutdown error = %v, want ErrPoolClosed", err)
	}
}
