package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OCharnyshevich/blockqueue/internal/authority"
)

// ErrChunkLoad is returned when a chunk could not be loaded within the wait
// budget.
var ErrChunkLoad = errors.New("chunk load timed out")

// Gate makes sure a chunk is loaded before it is read. Loading happens on the
// authoritative goroutine; callers elsewhere wait for it up to a fixed budget.
type Gate struct {
	world World
	exec  *authority.Executor
	wait  time.Duration
}

// NewGate returns a Gate loading chunks of w through exec. A nil exec means
// the caller owns w and loads run inline.
func NewGate(w World, exec *authority.Executor, wait time.Duration) *Gate {
	return &Gate{world: w, exec: exec, wait: wait}
}

// EnsureLoaded reports whether column (cx, cz) is loaded, loading it if
// needed.
//
// On the authoritative goroutine, or without an executor, the chunk is loaded
// synchronously. Elsewhere the load is scheduled and waited for; ErrChunkLoad
// is returned if the wait budget runs out first. With a zero budget an
// unloaded chunk yields false and no error, and the caller skips it.
func (g *Gate) EnsureLoaded(ctx context.Context, cx, cz int32) (bool, error) {
	if g.world.ChunkLoaded(cx, cz) {
		return true, nil
	}
	if g.exec == nil || g.exec.On(ctx) {
		return g.world.LoadChunk(cx, cz, true), nil
	}
	if g.wait <= 0 {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.wait)
	defer cancel()
	err := g.exec.Do(ctx, func(context.Context) {
		g.world.LoadChunk(cx, cz, true)
	})
	if g.world.ChunkLoaded(cx, cz) {
		return true, nil
	}
	if err == nil {
		err = errors.New("world refused to load it")
	}
	return false, fmt.Errorf("%w: chunk (%d,%d): %w", ErrChunkLoad, cx, cz, err)
}
