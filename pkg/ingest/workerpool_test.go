package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolRunsJobs(t *testing.T) {
	p := NewWorkerPool(4, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	var ran int32
	jobs := 100
	for i := 0; i < jobs; i++ {
		err := p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		})
		if err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := atomic.LoadInt32(&ran); int(got) != jobs {
		t.Fatalf("expected %d jobs executed, got %d", jobs, got)
	}
}

func TestWorkerPoolReportsFirstError(t *testing.T) {
	p := NewWorkerPool(1, 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	boom := errors.New("bad bank")
	var after int32
	if err := p.Submit(func(ctx context.Context) error { return boom }); err != nil {
		t.Fatalf("submit: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := p.Submit(func(ctx context.Context) error {
			atomic.AddInt32(&after, 1)
			return errors.New("later")
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if err := p.Close(); !errors.Is(err, boom) {
		t.Fatalf("expected first error %v, got %v", boom, err)
	}
	if got := atomic.LoadInt32(&after); got != 0 {
		t.Fatalf("expected queued jobs to be skipped after a failure, %d ran", got)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	p := NewWorkerPool(1, 2)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	_ = p.Close()
	cancel()
	if err := p.Submit(func(ctx context.Context) error { return nil }); err != ErrPoolClosed {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestSubmitUnblocksOnClose(t *testing.T) {
	p := NewWorkerPool(1, 1)
	// No workers, so the second Submit blocks on the full queue.
	if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("setup submit failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- p.Submit(func(ctx context.Context) error { return nil })
	}()

	time.Sleep(10 * time.Millisecond)
	_ = p.Close()

	select {
	case err := <-done:
		if err != ErrPoolClosed {
			t.Fatalf("expected ErrPoolClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Submit did not return after Close")
	}
}

func TestSubmitCtxCancelled(t *testing.T) {
	p := NewWorkerPool(1, 1)
	defer p.Close()
	if err := p.Submit(func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("setup submit failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.SubmitCtx(ctx, func(ctx context.Context) error { return nil })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestContextCancellationStopsWorkers(t *testing.T) {
	p := NewWorkerPool(2, 16)
	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)

	cancel()
	done := make(chan struct{}, 1)
	go func() {
		_ = p.Close()
		done <- struct{}{}
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("Close blocked after context cancellation")
	}
}
