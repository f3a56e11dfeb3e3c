package queue

import (
	"context"
	"testing"
	"time"
)

func TestDispatcherTickBudget(t *testing.T) {
	w := newFakeWorld()
	q := newTestQueue(t, w)
	e := q.Editor()
	for cx := range 5 {
		e.SetBlock(cx<<4, 0, 0, 1, 0)
	}
	d := NewDispatcher(q, DispatcherConfig{Interval: time.Hour, MaxBatches: 2})

	n, err := d.Tick(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("Tick() = (%d, %v), want (2, nil)", n, err)
	}
	if got := q.Size(); got != 3 {
		t.Errorf("Size() after tick = %d, want 3", got)
	}
}

func TestDispatcherFlush(t *testing.T) {
	w := newFakeWorld()
	exec := newTestExecutor(t)
	q := New(Config{Log: discardLogger(), World: w, Executor: exec})
	e := q.Editor()

	done := false
	chained := false
	e.SetBlock(0, 0, 0, 1, 0)
	e.AddNotifyTask(0, 0, func() {
		// Queued from a notify task while flushing.
		q.Editor().SetBlock(32, 0, 0, 1, 0)
		q.AddNotifyTask(func() { chained = true })
	})
	q.AddNotifyTask(func() { done = true })

	if err := NewDispatcher(q, DispatcherConfig{}).Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if q.Size() != 0 {
		t.Errorf("Size() after Flush = %d, want 0", q.Size())
	}
	if got := len(w.appliedChunks()); got != 2 {
		t.Errorf("applied %d batches, want 2", got)
	}
	if !done || !chained {
		t.Errorf("notify tasks ran = (%v, %v), want (true, true)", done, chained)
	}
}

func TestDispatcherTicksOnExecutor(t *testing.T) {
	w := newFakeWorld()
	exec := newTestExecutor(t)
	q := New(Config{Log: discardLogger(), World: w, Executor: exec})

	applied := make(chan struct{})
	e := q.Editor()
	e.SetBlock(0, 0, 0, 1, 0)
	q.AddNotifyTask(func() { close(applied) })

	d := NewDispatcher(q, DispatcherConfig{Interval: time.Millisecond})
	d.Start(context.Background())
	defer d.Close()

	select {
	case <-applied:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatcher did not drain the queue")
	}
	if got := len(w.appliedChunks()); got != 1 {
		t.Errorf("applied %d batches, want 1", got)
	}
}
