package queue

import (
	"container/list"
	"log/slog"
	"maps"
	"math/bits"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

const sectionVolume = 16 * 16 * 16

// batchSection stages the cells of one 16×16×16 slice. A cell is only part of
// the batch once its bit in set is on; an unset cell is left untouched when
// the batch is applied, which is not the same as writing air.
type batchSection struct {
	blocks *[sectionVolume]uint16
	set    [sectionVolume / 64]uint64
	count  int

	// uniform is used instead of blocks once Optimize finds every cell set to
	// the same value.
	uniform   uint16
	isUniform bool
}

func (s *batchSection) get(i int) (uint16, bool) {
	if s.isUniform {
		return s.uniform, true
	}
	if s.set[i>>6]&(1<<(i&63)) == 0 {
		return 0, false
	}
	return s.blocks[i], true
}

func (s *batchSection) put(i int, c uint16) {
	if s.isUniform {
		if c == s.uniform {
			return
		}
		s.expand()
	}
	if s.blocks == nil {
		s.blocks = new([sectionVolume]uint16)
	}
	if s.set[i>>6]&(1<<(i&63)) == 0 {
		s.set[i>>6] |= 1 << (i & 63)
		s.count++
	}
	s.blocks[i] = c
}

func (s *batchSection) expand() {
	s.blocks = new([sectionVolume]uint16)
	for i := range s.blocks {
		s.blocks[i] = s.uniform
	}
	for i := range s.set {
		s.set[i] = ^uint64(0)
	}
	s.count = sectionVolume
	s.isUniform = false
}

// compact collapses a fully set single-valued section. It reports false if
// the section holds no cells and can be dropped.
func (s *batchSection) compact() bool {
	if s.isUniform {
		return true
	}
	if s.count == 0 {
		return false
	}
	if s.count != sectionVolume {
		return true
	}
	first := s.blocks[0]
	for _, c := range s.blocks {
		if c != first {
			return true
		}
	}
	s.uniform, s.isUniform, s.blocks = first, true, nil
	return true
}

// Batch holds every pending change to one chunk column. Batches are created by
// the Queue on the first change to a column and applied exactly once; after
// the Queue hands a batch to the World it is sealed and refuses further
// changes.
//
// Batch methods are safe for concurrent use, but callbacks passed to the
// ForEach methods must not call back into the same batch.
type Batch struct {
	pos world.ChunkPos

	mu       sync.Mutex
	sealed   bool
	sections [world.SectionCount]*batchSection
	tiles    map[uint16]world.Tag
	entities []world.Entity
	removed  map[uuid.UUID]struct{}
	biomes   [256]byte
	biomeSet [4]uint64
	tasks    []func()

	// elem is the batch's entry in the pending FIFO, guarded by the index.
	elem *list.Element
}

// NewBatch returns an empty batch for the chunk column at pos.
func NewBatch(pos world.ChunkPos) *Batch {
	return &Batch{pos: pos}
}

// Pos returns the position of the chunk column the batch changes.
func (b *Batch) Pos() world.ChunkPos { return b.pos }

// Key returns the ChunkKey of the batch's column.
func (b *Batch) Key() world.ChunkKey { return b.pos.Key() }

// tileKey packs local coordinates as y<<8 | z<<4 | x.
func tileKey(x, y, z int) uint16 {
	return uint16(y<<8 | z<<4 | x)
}

func unpackTileKey(k uint16) (x, y, z int) {
	return int(k & 0xF), int(k >> 8), int(k>>4) & 0xF
}

// SetBlock stages a combined cell at local coordinates x, z in [0,16) and y in
// [0,256). A later call for the same cell replaces the earlier one. It
// reports false if the batch is sealed.
func (b *Batch) SetBlock(x, y, z int, combined uint16) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return false
	}
	s := b.sections[y>>4]
	if s == nil {
		s = &batchSection{}
		b.sections[y>>4] = s
	}
	s.put(localIndex(x, y, z), combined)
	return true
}

// Block returns the staged cell at local coordinates, if any.
func (b *Batch) Block(x, y, z int) (uint16, bool) {
	if y < 0 || y >= world.Height {
		return 0, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.sections[y>>4]
	if s == nil {
		return 0, false
	}
	return s.get(localIndex(x, y, z))
}

// BlockCount returns the number of staged cells.
func (b *Batch) BlockCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.sections {
		if s == nil {
			continue
		}
		if s.isUniform {
			n += sectionVolume
			continue
		}
		n += s.count
	}
	return n
}

// ForEachBlock calls fn for every staged cell, section by section, with local
// coordinates.
func (b *Batch) ForEachBlock(fn func(x, y, z int, combined uint16)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sy, s := range b.sections {
		if s == nil {
			continue
		}
		base := sy << 4
		if s.isUniform {
			for i := 0; i < sectionVolume; i++ {
				fn(i&0xF, base+i>>8, (i>>4)&0xF, s.uniform)
			}
			continue
		}
		for w, word := range s.set {
			for word != 0 {
				bit := bits.TrailingZeros64(word)
				word &= word - 1
				i := w<<6 | bit
				fn(i&0xF, base+i>>8, (i>>4)&0xF, s.blocks[i])
			}
		}
	}
}

// SetTile stages tile entity data at local coordinates. A nil tag removes the
// tile when applied.
func (b *Batch) SetTile(x, y, z int, tag world.Tag) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return false
	}
	if b.tiles == nil {
		b.tiles = make(map[uint16]world.Tag)
	}
	b.tiles[tileKey(x, y, z)] = tag
	return true
}

// Tile returns the staged tile at local coordinates.
func (b *Batch) Tile(x, y, z int) (world.Tag, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tiles[tileKey(x, y, z)]
	return t, ok
}

// ForEachTile calls fn for every staged tile in ascending coordinate order.
func (b *Batch) ForEachTile(fn func(x, y, z int, tag world.Tag)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range slices.Sorted(maps.Keys(b.tiles)) {
		x, y, z := unpackTileKey(k)
		fn(x, y, z, b.tiles[k])
	}
}

// AddEntity stages an entity spawn.
func (b *Batch) AddEntity(e world.Entity) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return false
	}
	b.entities = append(b.entities, e)
	return true
}

// RemoveEntity stages the removal of the entity with the given ID. A spawn of
// the same entity staged in this batch is dropped instead.
func (b *Batch) RemoveEntity(id uuid.UUID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return false
	}
	if i := slices.IndexFunc(b.entities, func(e world.Entity) bool { return e.ID == id }); i >= 0 {
		b.entities = slices.Delete(b.entities, i, i+1)
		return true
	}
	if b.removed == nil {
		b.removed = make(map[uuid.UUID]struct{})
	}
	b.removed[id] = struct{}{}
	return true
}

// Entities returns the staged entity spawns.
func (b *Batch) Entities() []world.Entity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.entities)
}

// RemovedEntities returns the IDs of entities staged for removal.
func (b *Batch) RemovedEntities() []uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := slices.Collect(maps.Keys(b.removed))
	slices.SortFunc(ids, func(a, c uuid.UUID) int { return slices.Compare(a[:], c[:]) })
	return ids
}

// SetBiome stages a biome at local x, z.
func (b *Batch) SetBiome(x, z int, biome byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return false
	}
	i := z<<4 | x
	b.biomes[i] = biome
	b.biomeSet[i>>6] |= 1 << (i & 63)
	return true
}

// Biome returns the staged biome at local x, z.
func (b *Batch) Biome(x, z int) (byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := z<<4 | x
	if b.biomeSet[i>>6]&(1<<(i&63)) == 0 {
		return 0, false
	}
	return b.biomes[i], true
}

// ForEachBiome calls fn for every staged biome.
func (b *Batch) ForEachBiome(fn func(x, z int, biome byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for w, word := range b.biomeSet {
		for word != 0 {
			i := w<<6 | bits.TrailingZeros64(word)
			word &= word - 1
			fn(i&0xF, i>>4, b.biomes[i])
		}
	}
}

// AddNotifyTask registers fn to run after the batch has been applied.
func (b *Batch) AddNotifyTask(fn func()) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return false
	}
	b.tasks = append(b.tasks, fn)
	return true
}

// Empty reports whether the batch stages nothing but notify tasks.
func (b *Batch) Empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.sections {
		if s != nil && (s.isUniform || s.count > 0) {
			return false
		}
	}
	return len(b.tiles) == 0 && len(b.entities) == 0 && len(b.removed) == 0 && b.biomeSet == [4]uint64{}
}

// Sealed reports whether the batch has been taken out of the queue.
func (b *Batch) Sealed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sealed
}

// Optimize compacts the batch: empty sections are released and fully staged
// sections holding a single value are collapsed.
func (b *Batch) Optimize() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.sections {
		if s != nil && !s.compact() {
			b.sections[i] = nil
		}
	}
	if len(b.tiles) == 0 {
		b.tiles = nil
	}
	if len(b.removed) == 0 {
		b.removed = nil
	}
	b.entities = slices.Clip(b.entities)
}

func (b *Batch) seal() {
	b.mu.Lock()
	b.sealed = true
	b.mu.Unlock()
}

// runTasks runs the batch's notify tasks, logging and skipping any that
// panic.
func (b *Batch) runTasks(log *slog.Logger) {
	b.mu.Lock()
	tasks := b.tasks
	b.tasks = nil
	b.mu.Unlock()
	runAll(log, tasks)
}

func localIndex(x, y, z int) int {
	return (y&0xF)<<8 | z<<4 | x
}
