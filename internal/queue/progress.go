package queue

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Progress identifies the kind of a progress notification.
type Progress int

const (
	// ProgressQueue reports the number of pending batches after one was
	// enqueued or taken for dispatch.
	ProgressQueue Progress = iota
	// ProgressDispatch reports the running count of dispatched batches.
	ProgressDispatch
	// ProgressDone is sent once the queue has drained and its notify tasks
	// run. The value is always 0.
	ProgressDone
)

func (p Progress) String() string {
	switch p {
	case ProgressQueue:
		return "queue"
	case ProgressDispatch:
		return "dispatch"
	case ProgressDone:
		return "done"
	}
	return fmt.Sprintf("Progress(%d)", int(p))
}

// ProgressFunc receives progress notifications. It is called on the goroutine
// that enqueued or drained a batch and must not block.
type ProgressFunc func(kind Progress, value int)

// ChangeFunc is called for every applied batch with the previous state of the
// cells it changed and the batch itself, before the world is modified.
type ChangeFunc func(before, after *Batch)

// Stage is the lifecycle state of a Queue.
type Stage int

const (
	// StageActive is the default: notify tasks run once the queue drains.
	StageActive Stage = iota
	// StageInactive suspends DrainCompleted.
	StageInactive
	// StageNone marks a queue that has no owner; it drains like an active
	// one.
	StageNone
)

func (s Stage) String() string {
	switch s {
	case StageActive:
		return "active"
	case StageInactive:
		return "inactive"
	case StageNone:
		return "none"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// runAll runs every task in order. A panicking task is logged and skipped.
func runAll(log *slog.Logger, tasks []func()) {
	for _, t := range tasks {
		runTask(log, t)
	}
}

func runTask(log *slog.Logger, t func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("notify task panicked", "error", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	t()
}
