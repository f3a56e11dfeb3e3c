package authority

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	e := New(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestExecRunsInOrder(t *testing.T) {
	e := newTestExecutor(t)

	var (
		mu    sync.Mutex
		order []int
	)
	var last <-chan struct{}
	for i := 0; i < 10; i++ {
		last = e.Exec(func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	<-last

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want ascending", order)
		}
	}
}

func TestOnReportsAuthoritativeContext(t *testing.T) {
	e := newTestExecutor(t)
	other := newTestExecutor(t)

	if e.On(context.Background()) {
		t.Error("On(background) = true, want false")
	}

	var onSelf, onOther bool
	<-e.Exec(func(ctx context.Context) {
		onSelf = e.On(ctx)
		onOther = other.On(ctx)
	})
	if !onSelf {
		t.Error("On inside own transaction = false, want true")
	}
	if onOther {
		t.Error("On for a different executor = true, want false")
	}
}

func TestDoInlineOnAuthority(t *testing.T) {
	e := newTestExecutor(t)

	nested := false
	err := e.Do(context.Background(), func(ctx context.Context) {
		// Would deadlock if Do queued instead of running inline.
		_ = e.Do(ctx, func(context.Context) { nested = true })
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !nested {
		t.Error("nested Do did not run")
	}
}

func TestPanicDoesNotStopExecutor(t *testing.T) {
	e := newTestExecutor(t)

	<-e.Exec(func(context.Context) { panic("boom") })

	ran := false
	<-e.Exec(func(context.Context) { ran = true })
	if !ran {
		t.Error("transaction after a panic did not run")
	}
}

func TestExecAfterClose(t *testing.T) {
	e := New(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	_ = e.Close()

	ran := false
	select {
	case <-e.Exec(func(context.Context) { ran = true }):
	case <-time.After(time.Second):
		t.Fatal("Exec after Close blocked")
	}
	if ran {
		t.Error("transaction ran after Close")
	}
	if err := e.Do(context.Background(), func(context.Context) {}); !errors.Is(err, ErrClosed) {
		t.Errorf("Do after Close = %v, want ErrClosed", err)
	}
	// Close is idempotent.
	_ = e.Close()
}

func TestDoHonoursContext(t *testing.T) {
	e := newTestExecutor(t)

	release := make(chan struct{})
	blocker := make(chan struct{})
	go func() {
		<-e.Exec(func(context.Context) {
			close(blocker)
			<-release
		})
	}()
	<-blocker

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.Do(ctx, func(context.Context) {})
	close(release)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do while executor busy = %v, want DeadlineExceeded", err)
	}
}
