package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

var errApply = errors.New("apply refused")

// fakeWorld is an in-memory World recording what was applied to it.
type fakeWorld struct {
	mu      sync.Mutex
	loaded  map[world.ChunkKey]bool
	cells   map[world.BlockPos]uint16
	sky     map[world.BlockPos]int
	light   map[world.BlockPos]int
	fail    map[world.ChunkKey]bool
	refuse  bool
	hasSky  bool
	applied []world.ChunkPos
	loads   int

	sectionsCalls, sectionCalls int
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		loaded: make(map[world.ChunkKey]bool),
		cells:  make(map[world.BlockPos]uint16),
		sky:    make(map[world.BlockPos]int),
		light:  make(map[world.BlockPos]int),
		fail:   make(map[world.ChunkKey]bool),
		hasSky: true,
	}
}

func (w *fakeWorld) ChunkLoaded(cx, cz int32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loaded[world.EncodeChunkKey(cx, cz)]
}

func (w *fakeWorld) LoadChunk(cx, cz int32, _ bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.loads++
	if w.refuse {
		return false
	}
	w.loaded[world.EncodeChunkKey(cx, cz)] = true
	return true
}

func (w *fakeWorld) RegenerateChunk(cx, cz int32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for p := range w.cells {
		if c := p.Chunk(); c.X == cx && c.Z == cz {
			delete(w.cells, p)
		}
	}
	w.loaded[world.EncodeChunkKey(cx, cz)] = true
	return true
}

func (w *fakeWorld) Sections(cx, cz int32) Sections {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sectionsCalls++
	if !w.loaded[world.EncodeChunkKey(cx, cz)] {
		return nil
	}
	return fakeSections{w: w, cx: int(cx), cz: int(cz)}
}

func (w *fakeWorld) HasSky() bool { return w.hasSky }

func (w *fakeWorld) ApplyBatch(_ context.Context, b *Batch, before func(prev *Batch)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail[b.Key()] {
		return errApply
	}
	base := world.BlockPos{X: int(b.Pos().X) << 4, Z: int(b.Pos().Z) << 4}
	if before != nil {
		prev := NewBatch(b.Pos())
		b.ForEachBlock(func(x, y, z int, _ uint16) {
			prev.SetBlock(x, y, z, w.cells[world.BlockPos{X: base.X + x, Y: y, Z: base.Z + z}])
		})
		before(prev)
	}
	b.ForEachBlock(func(x, y, z int, c uint16) {
		w.cells[world.BlockPos{X: base.X + x, Y: y, Z: base.Z + z}] = c
	})
	w.loaded[b.Key()] = true
	w.applied = append(w.applied, b.Pos())
	return nil
}

func (w *fakeWorld) appliedChunks() []world.ChunkPos {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]world.ChunkPos(nil), w.applied...)
}

func (w *fakeWorld) cell(x, y, z int) uint16 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cells[world.BlockPos{X: x, Y: y, Z: z}]
}

type fakeSections struct {
	w      *fakeWorld
	cx, cz int
}

func (s fakeSections) Section(cy int) Section {
	s.w.mu.Lock()
	s.w.sectionCalls++
	s.w.mu.Unlock()
	return fakeSection{w: s.w, x: s.cx << 4, y: cy << 4, z: s.cz << 4}
}

type fakeSection struct {
	w       *fakeWorld
	x, y, z int
}

func (s fakeSection) pos(x, y, z int) world.BlockPos {
	return world.BlockPos{X: s.x + x, Y: s.y + y, Z: s.z + z}
}

func (s fakeSection) Combined(x, y, z int) uint16 {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.w.cells[s.pos(x, y, z)]
}

func (s fakeSection) SkyLight(x, y, z int) int {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.w.sky[s.pos(x, y, z)]
}

func (s fakeSection) BlockLight(x, y, z int) int {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return s.w.light[s.pos(x, y, z)]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestQueue(t *testing.T, w *fakeWorld) *Queue {
	t.Helper()
	return New(Config{Log: discardLogger(), World: w, Workers: 2})
}

func drainAll(t *testing.T, q *Queue) []error {
	t.Helper()
	var errs []error
	for {
		b, err := q.DrainOne(context.Background())
		if b == nil && err == nil {
			return errs
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
}
