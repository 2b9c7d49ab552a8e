package worker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/mediaforge-backend/internal/platform/logger"
)

func TestPoolRunsTasksWithBoundedConcurrency(t *testing.T) {
	p := NewPool(logger.Nop(), Config{Concurrency: 3, QueueSize: 64}, nil)
	p.Start(context.Background())

	var running, peak, done int32
	for i := 0; i < 30; i++ {
		err := p.Submit(Task{JobID: "j", Run: func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			for {
				old := atomic.LoadInt32(&peak)
				if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			atomic.AddInt32(&done, 1)
			return nil
		}})
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := atomic.LoadInt32(&done); got != 30 {
		t.Fatalf("Stop should drain the queue: want=30 got=%d", got)
	}
	if got := atomic.LoadInt32(&peak); got > 3 {
		t.Fatalf("concurrency exceeded: want<=3 got=%d", got)
	}
}

func TestPoolQueueFull(t *testing.T) {
	p := NewPool(logger.Nop(), Config{Concurrency: 1, QueueSize: 1}, nil)
	p.Start(context.Background())

	started := make(chan struct{})
	release := make(chan struct{})
	if err := p.Submit(Task{JobID: "a", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}); err != nil {
		t.Fatalf("Submit a: %v", err)
	}
	<-started

	noop := func(ctx context.Context) error { return nil }
	if err := p.Submit(Task{JobID: "b", Run: noop}); err != nil {
		t.Fatalf("Submit b: %v", err)
	}
	if err := p.Submit(Task{JobID: "c", Run: noop}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("want ErrQueueFull, got=%v", err)
	}

	close(release)
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := p.Submit(Task{JobID: "d", Run: noop}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("want ErrPoolClosed, got=%v", err)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	var (
		mu      sync.Mutex
		gotJob  string
		gotErr  error
		handled = make(chan struct{})
	)
	p := NewPool(logger.Nop(), Config{Concurrency: 1, QueueSize: 4}, func(ctx context.Context, jobID string, err error) {
		mu.Lock()
		gotJob, gotErr = jobID, err
		mu.Unlock()
		close(handled)
	})
	p.Start(context.Background())

	if err := p.Submit(Task{JobID: "boom", Run: func(ctx context.Context) error { panic("kaboom") }}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	var after int32
	if err := p.Submit(Task{JobID: "next", Run: func(ctx context.Context) error {
		atomic.StoreInt32(&after, 1)
		return nil
	}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatalf("panic handler not called")
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotJob != "boom" || gotErr == nil || !strings.Contains(gotErr.Error(), "kaboom") {
		t.Fatalf("panic handler got job=%q err=%v", gotJob, gotErr)
	}
	if atomic.LoadInt32(&after) != 1 {
		t.Fatalf("worker should survive a panic")
	}
}

func TestPoolTaskContextIsPassedThrough(t *testing.T) {
	type key struct{}
	p := NewPool(logger.Nop(), Config{Concurrency: 1, QueueSize: 1}, nil)
	p.Start(context.Background())

	got := make(chan any, 1)
	ctx := context.WithValue(context.Background(), key{}, "v")
	if err := p.Submit(Task{JobID: "ctx", Ctx: ctx, Run: func(ctx context.Context) error {
		got <- ctx.Value(key{})
		return nil
	}}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if v := <-got; v != "v" {
		t.Fatalf("task context: want=v got=%v", v)
	}
}
