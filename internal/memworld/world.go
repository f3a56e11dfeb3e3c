// Package memworld is an in-memory, generator-backed world that batches from the
// queue package can be applied to. Chunks are generated on first load and kept
// after unloading, so a later load restores them.
package memworld

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/OCharnyshevich/blockqueue/internal/queue"
	"github.com/OCharnyshevich/blockqueue/pkg/world"
	"github.com/OCharnyshevich/blockqueue/pkg/world/gen"
)

// Config holds the settings of a World.
type Config struct {
	// Log receives world diagnostics. Defaults to slog.Default().
	Log *slog.Logger
	// Generator produces new chunks. Defaults to a flat generator.
	Generator gen.Generator
	// Materials provides block light emission. If nil, block light stays 0.
	Materials world.Materials
	// NoSky disables sky light, as in the nether.
	NoSky bool
}

// World tracks chunk columns generated by a generator and modified by applied
// batches. Reads are safe from any goroutine; changes are expected to come
// from one authoritative goroutine.
type World struct {
	conf Config

	mu       sync.RWMutex
	loaded   map[world.ChunkKey]*column
	unloaded map[world.ChunkKey]*column
}

// column is one chunk column. Its pointer stays stable across unload,
// reload and regeneration so section views handed out keep working.
type column struct {
	pos      world.ChunkPos
	data     *gen.ChunkData
	tiles    map[uint16]world.Tag
	entities map[uuid.UUID]world.Entity
}

func newColumn(pos world.ChunkPos, data *gen.ChunkData) *column {
	return &column{
		pos:      pos,
		data:     data,
		tiles:    make(map[uint16]world.Tag),
		entities: make(map[uuid.UUID]world.Entity),
	}
}

// New creates a World with no chunks loaded.
func New(conf Config) *World {
	if conf.Log == nil {
		conf.Log = slog.Default()
	}
	if conf.Generator == nil {
		conf.Generator = gen.NewFlatGenerator(0)
	}
	return &World{
		conf:     conf,
		loaded:   make(map[world.ChunkKey]*column),
		unloaded: make(map[world.ChunkKey]*column),
	}
}

var _ queue.World = (*World)(nil)

// ChunkLoaded reports whether the column is loaded.
func (w *World) ChunkLoaded(cx, cz int32) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.loaded[world.EncodeChunkKey(cx, cz)]
	return ok
}

// LoadChunk loads a column, restoring it if it was unloaded earlier and
// generating it if it never existed and generate is set.
func (w *World) LoadChunk(cx, cz int32, generate bool) bool {
	return w.load(world.ChunkPos{X: cx, Z: cz}, generate) != nil
}

func (w *World) load(pos world.ChunkPos, generate bool) *column {
	k := pos.Key()
	w.mu.RLock()
	col := w.loaded[k]
	w.mu.RUnlock()
	if col != nil {
		return col
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if col := w.loaded[k]; col != nil {
		return col
	}
	if col := w.unloaded[k]; col != nil {
		delete(w.unloaded, k)
		w.loaded[k] = col
		return col
	}
	if !generate {
		return nil
	}
	col = newColumn(pos, w.generate(pos))
	w.loaded[k] = col
	w.conf.Log.Debug("generated chunk", "chunkX", pos.X, "chunkZ", pos.Z)
	return col
}

func (w *World) generate(pos world.ChunkPos) *gen.ChunkData {
	data := w.conf.Generator.Generate(pos.X, pos.Z)
	w.relight(data)
	return data
}

// UnloadChunk unloads a column, keeping its contents for a later load.
func (w *World) UnloadChunk(cx, cz int32) {
	k := world.EncodeChunkKey(cx, cz)
	w.mu.Lock()
	defer w.mu.Unlock()
	if col := w.loaded[k]; col != nil {
		delete(w.loaded, k)
		w.unloaded[k] = col
	}
}

// RegenerateChunk replaces a column with freshly generated terrain, dropping
// its tiles and entities. The column is loaded afterwards.
func (w *World) RegenerateChunk(cx, cz int32) bool {
	pos := world.ChunkPos{X: cx, Z: cz}
	col := w.load(pos, true)
	data := w.generate(pos)

	w.mu.Lock()
	defer w.mu.Unlock()
	col.data = data
	clear(col.tiles)
	clear(col.entities)
	return true
}

// LoadedChunks returns the number of loaded columns.
func (w *World) LoadedChunks() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.loaded)
}

// PreGenerateRadius loads all columns within radius of (0,0) and returns how
// many there are.
func (w *World) PreGenerateRadius(radius int32) int {
	n := 0
	for cx := -radius; cx <= radius; cx++ {
		for cz := -radius; cz <= radius; cz++ {
			w.LoadChunk(cx, cz, true)
			n++
		}
	}
	return n
}

// SpawnHeight returns the height one above the terrain at (0,0).
func (w *World) SpawnHeight() int {
	return w.conf.Generator.HeightAt(0, 0) + 1
}

// HasSky reports whether the world has sky light.
func (w *World) HasSky() bool {
	return !w.conf.NoSky
}

// Block returns the block at world coordinates, with its tile data. Unloaded
// columns and coordinates outside [0, world.Height) read as air.
func (w *World) Block(x, y, z int) world.Block {
	if y < 0 || y >= world.Height {
		return world.Air
	}
	cx, cz := world.ChunkOf(x, z)
	w.mu.RLock()
	defer w.mu.RUnlock()
	col := w.loaded[world.EncodeChunkKey(cx, cz)]
	if col == nil {
		return world.Air
	}
	b := world.BlockFromCombined(col.data.GetBlock(x&0xF, y, z&0xF))
	b.NBT = world.CloneTag(col.tiles[tileKey(x&0xF, y, z&0xF)])
	return b
}

// Biome returns the biome of the block column at x, z.
func (w *World) Biome(x, z int) byte {
	cx, cz := world.ChunkOf(x, z)
	w.mu.RLock()
	defer w.mu.RUnlock()
	col := w.loaded[world.EncodeChunkKey(cx, cz)]
	if col == nil {
		return 0
	}
	return col.data.Biome(x&0xF, z&0xF)
}

// Entities returns the entities in a loaded column, ordered by ID.
func (w *World) Entities(cx, cz int32) []world.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	col := w.loaded[world.EncodeChunkKey(cx, cz)]
	if col == nil {
		return nil
	}
	ents := slices.Collect(maps.Values(col.entities))
	slices.SortFunc(ents, func(a, b world.Entity) int { return slices.Compare(a.ID[:], b.ID[:]) })
	return ents
}

// ApplyBatch writes b into its column, loading or generating the column
// first, and recomputes light.
func (w *World) ApplyBatch(ctx context.Context, b *queue.Batch, before func(prev *queue.Batch)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pos := b.Pos()
	col := w.load(pos, true)
	if col == nil {
		return fmt.Errorf("load chunk (%d,%d)", pos.X, pos.Z)
	}
	if before != nil {
		before(w.snapshot(col, b))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	data := col.data
	b.ForEachBlock(func(x, y, z int, c uint16) {
		data.SetBlock(x, y, z, c)
		if !world.HasNBT(world.CellID(c)) {
			delete(col.tiles, tileKey(x, y, z))
		}
	})
	b.ForEachTile(func(x, y, z int, tag world.Tag) {
		if tag == nil {
			delete(col.tiles, tileKey(x, y, z))
			return
		}
		col.tiles[tileKey(x, y, z)] = world.CloneTag(tag)
	})
	b.ForEachBiome(func(x, z int, biome byte) {
		data.SetBiome(x, z, biome)
	})
	for _, id := range b.RemovedEntities() {
		delete(col.entities, id)
	}
	for _, e := range b.Entities() {
		e.Data = world.CloneTag(e.Data)
		col.entities[e.ID] = e
	}
	w.relight(data)
	return nil
}

// snapshot builds a batch holding the current state of everything b
// changes.
func (w *World) snapshot(col *column, b *queue.Batch) *queue.Batch {
	prev := queue.NewBatch(col.pos)
	w.mu.RLock()
	defer w.mu.RUnlock()
	b.ForEachBlock(func(x, y, z int, _ uint16) {
		prev.SetBlock(x, y, z, col.data.GetBlock(x, y, z))
		if t, ok := col.tiles[tileKey(x, y, z)]; ok {
			prev.SetTile(x, y, z, world.CloneTag(t))
		}
	})
	b.ForEachTile(func(x, y, z int, _ world.Tag) {
		prev.SetTile(x, y, z, world.CloneTag(col.tiles[tileKey(x, y, z)]))
	})
	b.ForEachBiome(func(x, z int, _ byte) {
		prev.SetBiome(x, z, col.data.Biome(x, z))
	})
	for _, id := range b.RemovedEntities() {
		if e, ok := col.entities[id]; ok {
			prev.AddEntity(e)
		}
	}
	return prev
}

// relight recomputes sky light and sets block light at every emitting block.
// Light does not spread to neighbours.
func (w *World) relight(data *gen.ChunkData) {
	data.Relight()
	for _, s := range data.Sections {
		if s == nil {
			continue
		}
		s.BlockLight = [2048]byte{}
		if w.conf.Materials == nil {
			continue
		}
		for i, c := range s.Blocks {
			if c == 0 {
				continue
			}
			if m, _ := w.conf.Materials.Material(world.CellID(c)); m.Emission > 0 {
				gen.SetNibble(s.BlockLight[:], i, byte(world.ClampLight(m.Emission)))
			}
		}
	}
}

func tileKey(x, y, z int) uint16 {
	return uint16(y<<8 | z<<4 | x)
}
