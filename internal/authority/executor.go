// Package authority implements the single goroutine that is allowed to apply
// changes to live world state. Other goroutines hand it work through Exec and
// may wait for that work to finish.
package authority

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrClosed is returned by Do after the executor has been closed.
var ErrClosed = errors.New("authority: executor closed")

// Func is a transaction run on the authoritative goroutine. The context passed
// to it reports true from Executor.On.
type Func func(ctx context.Context)

type ctxKey struct{}

type transaction struct {
	f    Func
	done chan struct{}
}

// Executor runs transactions one at a time, in submission order, on a single
// goroutine. A nil *Executor is not usable.
type Executor struct {
	log *slog.Logger
	ctx context.Context

	queue   chan transaction
	closing chan struct{}
	running sync.WaitGroup
	once    sync.Once
}

// New starts an Executor. Transactions receive a context derived from ctx;
// cancelling ctx does not stop the executor, Close does.
func New(ctx context.Context, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	e := &Executor{
		log:     log,
		queue:   make(chan transaction),
		closing: make(chan struct{}),
	}
	e.ctx = context.WithValue(ctx, ctxKey{}, e)
	e.running.Add(1)
	go e.handleTransactions()
	return e
}

// Exec schedules f on the authoritative goroutine. The returned channel is
// closed once f has run, or immediately if the executor is closed. Exec blocks
// until the executor picks f up, so calling it from inside a transaction
// deadlocks; use Do there instead.
func (e *Executor) Exec(f Func) <-chan struct{} {
	c := make(chan struct{})
	select {
	case e.queue <- transaction{f: f, done: c}:
	case <-e.closing:
		close(c)
	}
	return c
}

// Do runs f on the authoritative goroutine and waits for it to finish. If ctx
// is already on this executor, f runs inline. If ctx ends after f was handed
// over, Do returns ctx.Err() but f still runs.
func (e *Executor) Do(ctx context.Context, f Func) error {
	if e.On(ctx) {
		f(ctx)
		return nil
	}
	done := make(chan struct{})
	select {
	case e.queue <- transaction{f: f, done: done}:
	case <-e.closing:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// On reports whether ctx belongs to a transaction running on e.
func (e *Executor) On(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	owner, _ := ctx.Value(ctxKey{}).(*Executor)
	return owner == e
}

// Close stops the executor after the transaction in progress, if any, has
// finished. Transactions submitted afterwards do not run.
func (e *Executor) Close() error {
	e.once.Do(func() {
		close(e.closing)
	})
	e.running.Wait()
	return nil
}

// handleTransactions continuously reads transactions from the queue and runs
// them.
func (e *Executor) handleTransactions() {
	defer e.running.Done()
	for {
		select {
		case tx := <-e.queue:
			e.run(tx)
		case <-e.closing:
			return
		}
	}
}

func (e *Executor) run(tx transaction) {
	defer close(tx.done)
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("authoritative transaction panicked", "error", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	tx.f(e.ctx)
}
