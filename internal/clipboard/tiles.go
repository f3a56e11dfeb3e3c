package clipboard

import (
	"slices"

	"github.com/brentp/intintmap"
	"github.com/google/uuid"

	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

// tileTable holds tile data keyed by clipboard position. index maps a packed
// position to its slot in tiles.
type tileTable struct {
	index *intintmap.Map
	tiles []tileSlot
}

type tileSlot struct {
	key int64
	tag world.Tag
}

func newTileTable() tileTable {
	return tileTable{index: intintmap.New(64, 0.6)}
}

// tileIndexKey packs a position. Clipboard coordinates fit in 16 bits.
func tileIndexKey(x, y, z int) int64 {
	return int64(x) | int64(y)<<16 | int64(z)<<32
}

func (t *tileTable) get(x, y, z int) world.Tag {
	slot, ok := t.index.Get(tileIndexKey(x, y, z))
	if !ok {
		return nil
	}
	return t.tiles[slot].tag
}

// set stores tag at x, y, z. A nil tag removes the entry; the last slot is
// moved into the hole.
func (t *tileTable) set(x, y, z int, tag world.Tag) {
	key := tileIndexKey(x, y, z)
	slot, ok := t.index.Get(key)
	switch {
	case ok && tag != nil:
		t.tiles[slot].tag = tag
	case ok:
		last := len(t.tiles) - 1
		if int(slot) != last {
			moved := t.tiles[last]
			t.tiles[slot] = moved
			t.index.Put(moved.key, slot)
		}
		t.tiles = t.tiles[:last]
		t.index.Del(key)
	case tag != nil:
		t.index.Put(key, int64(len(t.tiles)))
		t.tiles = append(t.tiles, tileSlot{key: key, tag: tag})
	}
}

func (t *tileTable) len() int {
	return len(t.tiles)
}

// entitySet holds clipboard entities in insertion order.
type entitySet struct {
	byID map[uuid.UUID]int
	list []world.Entity
}

// CreateEntity stores e in the clipboard, assigning a random ID if it has
// none, and returns the stored entity. An entity with the same ID is
// replaced.
func (s *DiskStore) CreateEntity(e world.Entity) world.Entity {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Data = world.CloneTag(e.Data)
	if s.entities.byID == nil {
		s.entities.byID = make(map[uuid.UUID]int)
	}
	if i, ok := s.entities.byID[e.ID]; ok {
		s.entities.list[i] = e
		return e
	}
	s.entities.byID[e.ID] = len(s.entities.list)
	s.entities.list = append(s.entities.list, e)
	return e
}

// Entities returns the stored entities in insertion order.
func (s *DiskStore) Entities() []world.Entity {
	return slices.Clone(s.entities.list)
}

// RemoveEntity removes the entity with the given ID and reports whether it
// was present.
func (s *DiskStore) RemoveEntity(id uuid.UUID) bool {
	i, ok := s.entities.byID[id]
	if !ok {
		return false
	}
	delete(s.entities.byID, id)
	s.entities.list = slices.Delete(s.entities.list, i, i+1)
	for j := i; j < len(s.entities.list); j++ {
		s.entities.byID[s.entities.list[j].ID] = j
	}
	return true
}
