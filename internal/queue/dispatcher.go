package queue

import (
	"context"
	"sync"
	"time"
)

// DispatcherConfig controls how fast a Dispatcher drains its queue.
type DispatcherConfig struct {
	// Interval between ticks. Defaults to 50ms.
	Interval time.Duration
	// Budget is the time a tick may spend applying batches. At least one
	// batch is applied per tick regardless. Defaults to Interval/2.
	Budget time.Duration
	// MaxBatches caps the batches applied per tick. Zero means no cap.
	MaxBatches int
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Interval <= 0 {
		c.Interval = 50 * time.Millisecond
	}
	if c.Budget <= 0 {
		c.Budget = c.Interval / 2
	}
	return c
}

// Dispatcher drains a Queue on a fixed tick. Every tick runs as one
// transaction on the queue's executor.
type Dispatcher struct {
	q    *Queue
	conf DispatcherConfig

	closing chan struct{}
	running sync.WaitGroup
	once    sync.Once
}

// NewDispatcher returns a Dispatcher for q. Call Start to begin ticking.
func NewDispatcher(q *Queue, conf DispatcherConfig) *Dispatcher {
	return &Dispatcher{q: q, conf: conf.withDefaults(), closing: make(chan struct{})}
}

// Start begins ticking in a new goroutine until ctx ends or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.running.Add(1)
	go d.tickLoop(ctx)
}

// Close stops ticking and waits for the tick in progress. Batches still
// pending stay in the queue.
func (d *Dispatcher) Close() error {
	d.once.Do(func() { close(d.closing) })
	d.running.Wait()
	return nil
}

func (d *Dispatcher) tickLoop(ctx context.Context) {
	defer d.running.Done()
	tc := time.NewTicker(d.conf.Interval)
	defer tc.Stop()
	for {
		select {
		case <-tc.C:
			start := time.Now()
			n, err := d.Tick(ctx)
			if err != nil {
				d.q.log.Debug("dispatcher tick aborted", "error", err)
				continue
			}
			if took := time.Since(start); took > d.conf.Interval {
				d.q.log.Warn("dispatcher tick overran", "batches", n, "took", took, "pending", d.q.Size())
			}
		case <-ctx.Done():
			return
		case <-d.closing:
			return
		}
	}
}

// Tick applies pending batches until the tick budget is spent, then runs the
// queue's notify tasks if it drained. It returns the number of batches taken.
// Batches that fail to apply are logged by the queue and counted.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	var n int
	err := d.q.authoritative(ctx, func(ctx context.Context) {
		deadline := time.Now().Add(d.conf.Budget)
		for n == 0 || time.Now().Before(deadline) {
			if d.conf.MaxBatches > 0 && n >= d.conf.MaxBatches {
				break
			}
			if b, _ := d.q.drainOne(ctx); b == nil {
				break
			}
			n++
		}
		d.q.DrainCompleted()
	})
	return n, err
}

// Flush applies every pending batch, including batches queued by notify
// tasks while flushing, and runs the queue's notify tasks.
func (d *Dispatcher) Flush(ctx context.Context) error {
	for {
		err := d.q.authoritative(ctx, func(ctx context.Context) {
			for {
				if b, _ := d.q.drainOne(ctx); b == nil {
					break
				}
			}
			d.q.DrainCompleted()
		})
		if err != nil {
			return err
		}
		if d.q.Size() == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}
