// Package queue batches block, tile, entity and biome changes per chunk column
// and applies them to a World from its authoritative goroutine, in the order
// the columns were first touched.
//
// Any number of goroutines may change the world through their own Editor and
// read it through their own Reader. Batches are drained by DrainOne, usually
// from a Dispatcher.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OCharnyshevich/blockqueue/internal/authority"
	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

// Config holds the collaborators and limits of a Queue.
type Config struct {
	// Log receives queue diagnostics. Defaults to slog.Default().
	Log *slog.Logger
	// World is the world batches are applied to. Required.
	World World
	// Materials resolves block lighting properties for Readers. If nil, every
	// non-air block is treated as unknown.
	Materials world.Materials
	// Executor is the authoritative goroutine of World. If nil, the caller
	// owns the world and every operation runs on the calling goroutine.
	Executor *authority.Executor
	// ChunkWait bounds how long a Reader waits for a chunk to load off the
	// authoritative goroutine. Zero means unloaded chunks are skipped.
	ChunkWait time.Duration
	// Workers bounds the goroutines used by Optimize. Defaults to GOMAXPROCS.
	Workers int
}

func (c Config) withDefaults() Config {
	if c.Log == nil {
		c.Log = slog.Default()
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// Queue collects per-chunk batches and applies them to a World.
type Queue struct {
	log       *slog.Logger
	world     World
	materials world.Materials
	exec      *authority.Executor
	gate      *Gate
	workers   int

	pending    *pending
	dispatched atomic.Int64
	// drained is set when a batch was taken since the last ProgressDone.
	drained atomic.Bool

	tasksMu sync.Mutex
	tasks   []func()

	stage    atomic.Int32
	progress atomic.Pointer[ProgressFunc]
	change   atomic.Pointer[ChangeFunc]
}

// New returns an empty Queue.
func New(conf Config) *Queue {
	conf = conf.withDefaults()
	if conf.World == nil {
		panic("queue: Config.World is nil")
	}
	return &Queue{
		log:       conf.Log,
		world:     conf.World,
		materials: conf.Materials,
		exec:      conf.Executor,
		gate:      NewGate(conf.World, conf.Executor, conf.ChunkWait),
		workers:   conf.Workers,
		pending:   newPending(),
	}
}

// Editor returns a new mutation handle. Editors are cheap; use one per
// goroutine.
func (q *Queue) Editor() *Editor {
	return &Editor{q: q}
}

// Reader returns a new read handle. Readers are cheap; use one per goroutine.
func (q *Queue) Reader() *Reader {
	return &Reader{q: q}
}

// Gate returns the chunk load gate used by the queue's Readers.
func (q *Queue) Gate() *Gate {
	return q.gate
}

// Size returns the number of batches waiting to be applied.
func (q *Queue) Size() int {
	return q.pending.count()
}

// Batches returns the pending batches, oldest first.
func (q *Queue) Batches() []*Batch {
	return q.pending.snapshot()
}

// Batch returns the pending batch of a column, or nil.
func (q *Queue) Batch(cx, cz int32) *Batch {
	return q.pending.get(world.EncodeChunkKey(cx, cz))
}

// SetChunk makes b the pending batch of its column, keeping the place in line
// of the batch it replaces. Notify tasks of the replaced batch move to b. It
// reports false if b is sealed.
func (q *Queue) SetChunk(b *Batch) bool {
	if b.Sealed() {
		return false
	}
	prev, n := q.pending.replace(b)
	if n > 0 {
		q.notify(ProgressQueue, n)
	}
	if prev == nil || prev == b {
		return true
	}
	prev.mu.Lock()
	tasks := prev.tasks
	prev.tasks = nil
	prev.mu.Unlock()
	if len(tasks) > 0 {
		b.mu.Lock()
		b.tasks = append(tasks, b.tasks...)
		b.mu.Unlock()
	}
	return true
}

// Clear drops every pending batch without applying it, then runs the queue's
// notify tasks. It returns the number of batches dropped.
func (q *Queue) Clear() int {
	n := len(q.pending.clear())
	q.RunTasks()
	return n
}

// AddNotifyTask registers fn to run the next time the queue drains
// completely.
func (q *Queue) AddNotifyTask(fn func()) {
	q.tasksMu.Lock()
	q.tasks = append(q.tasks, fn)
	q.tasksMu.Unlock()
}

// SetProgressHandler installs fn as the progress callback. A nil fn removes
// it.
func (q *Queue) SetProgressHandler(fn ProgressFunc) {
	if fn == nil {
		q.progress.Store(nil)
		return
	}
	q.progress.Store(&fn)
}

// SetChangeHandler installs fn to observe every applied batch. A nil fn
// removes it.
func (q *Queue) SetChangeHandler(fn ChangeFunc) {
	if fn == nil {
		q.change.Store(nil)
		return
	}
	q.change.Store(&fn)
}

// SetStage changes the lifecycle stage of the queue.
func (q *Queue) SetStage(s Stage) {
	q.stage.Store(int32(s))
}

// Stage returns the lifecycle stage of the queue.
func (q *Queue) Stage() Stage {
	return Stage(q.stage.Load())
}

// ChunkLoaded reports whether the world has the column loaded.
func (q *Queue) ChunkLoaded(cx, cz int32) bool {
	return q.world.ChunkLoaded(cx, cz)
}

// RegenerateChunk discards and regenerates a column on the authoritative
// goroutine.
func (q *Queue) RegenerateChunk(ctx context.Context, cx, cz int32) (bool, error) {
	var ok bool
	err := q.authoritative(ctx, func(context.Context) {
		ok = q.world.RegenerateChunk(cx, cz)
	})
	return ok, err
}

// DrainOne takes the oldest pending batch and applies it to the world on the
// authoritative goroutine. It returns the batch, or nil if none was pending.
// If applying fails the error is returned, the batch's notify tasks are not
// run and the rest of the queue is unaffected.
func (q *Queue) DrainOne(ctx context.Context) (*Batch, error) {
	var (
		b   *Batch
		err error
	)
	if aerr := q.authoritative(ctx, func(ctx context.Context) {
		b, err = q.drainOne(ctx)
	}); aerr != nil {
		return nil, aerr
	}
	return b, err
}

func (q *Queue) drainOne(ctx context.Context) (*Batch, error) {
	b := q.pending.pop()
	if b == nil {
		return nil, nil
	}
	b.seal()
	q.drained.Store(true)
	q.notify(ProgressQueue, q.pending.count())
	q.notify(ProgressDispatch, int(q.dispatched.Add(1)))

	if err := q.apply(ctx, b); err != nil {
		q.log.Error("failed to apply batch", "chunkX", b.pos.X, "chunkZ", b.pos.Z, "error", err)
		return b, fmt.Errorf("apply chunk (%d,%d): %w", b.pos.X, b.pos.Z, err)
	}
	b.runTasks(q.log)
	return b, nil
}

func (q *Queue) apply(ctx context.Context, b *Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	var before func(prev *Batch)
	if fn := q.change.Load(); fn != nil {
		change := *fn
		before = func(prev *Batch) { change(prev, b) }
	}
	return q.world.ApplyBatch(ctx, b, before)
}

// DrainCompleted runs the queue's notify tasks if nothing is pending, the
// queue is not inactive, and either tasks are waiting or a batch was drained
// since the last run. It reports whether the tasks ran.
func (q *Queue) DrainCompleted() bool {
	if q.pending.count() != 0 || q.Stage() == StageInactive {
		return false
	}
	q.tasksMu.Lock()
	waiting := len(q.tasks) > 0
	q.tasksMu.Unlock()
	if !waiting && !q.drained.Load() {
		return false
	}
	q.RunTasks()
	return true
}

// RunTasks sends ProgressDone and runs every queue notify task registered so
// far. A panicking task is logged and the next one runs.
func (q *Queue) RunTasks() {
	q.drained.Store(false)
	q.notify(ProgressDone, 0)

	q.tasksMu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.tasksMu.Unlock()
	runAll(q.log, tasks)
}

// Optimize compacts every pending batch using at most Config.Workers
// goroutines and waits for them to finish.
func (q *Queue) Optimize(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(q.workers)
	for _, b := range q.pending.snapshot() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b.Optimize()
			return nil
		})
	}
	return g.Wait()
}

func (q *Queue) notify(kind Progress, value int) {
	fn := q.progress.Load()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("progress handler panicked", "kind", kind, "error", fmt.Sprint(r))
		}
	}()
	(*fn)(kind, value)
}

// authoritative runs f on the executor, or inline when there is none.
func (q *Queue) authoritative(ctx context.Context, f authority.Func) error {
	if q.exec == nil {
		f(ctx)
		return nil
	}
	return q.exec.Do(ctx, f)
}
