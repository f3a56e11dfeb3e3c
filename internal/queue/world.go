package queue

import "context"

// World is the live world a Queue applies its batches to. ChunkLoaded and
// Sections may be called from any goroutine; LoadChunk, RegenerateChunk and
// ApplyBatch are only called on the authoritative goroutine, or by callers
// that own the world outright when no executor is configured.
type World interface {
	// ChunkLoaded reports whether the chunk column is resident.
	ChunkLoaded(cx, cz int32) bool
	// LoadChunk makes the column resident, generating it if generate is set
	// and it does not exist yet. It reports whether the column is loaded.
	LoadChunk(cx, cz int32, generate bool) bool
	// RegenerateChunk discards the column and generates it anew.
	RegenerateChunk(cx, cz int32) bool
	// Sections returns the cached sections of a loaded column, or nil.
	Sections(cx, cz int32) Sections
	// HasSky reports whether the world has a sky light dimension.
	HasSky() bool
	// ApplyBatch writes the blocks, tiles, entities and biomes of b into the
	// world, loading the column first if needed. If before is non-nil it must be called with a batch holding the
	// previous state of every cell b changes, before the world is modified.
	ApplyBatch(ctx context.Context, b *Batch, before func(prev *Batch)) error
}

// Sections is the cached section list of one chunk column.
type Sections interface {
	// Section returns the 16-block-tall section at index cy, or nil if the
	// column holds no data there. Readers treat a nil section as air without
	// light.
	Section(cy int) Section
}

// Section exposes block and light data of a 16×16×16 slice. Coordinates are
// local to the section, each in [0,16).
type Section interface {
	Combined(x, y, z int) uint16
	SkyLight(x, y, z int) int
	BlockLight(x, y, z int) int
}
