package queue

import (
	"github.com/google/uuid"

	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

// Editor stages changes into a Queue. It remembers the batch of the column it
// last touched, so runs of changes within one column skip the index lookup.
// An Editor must not be used by more than one goroutine at a time.
type Editor struct {
	q *Queue

	lastX, lastZ int32
	last         *Batch
}

// batch calls fn with the live batch of column (cx, cz) until fn succeeds.
// fn fails only when the batch was sealed by a drain in the meantime, in
// which case a fresh batch is created.
func (e *Editor) batch(cx, cz int32, fn func(b *Batch) bool) {
	for {
		b := e.last
		if b == nil || e.lastX != cx || e.lastZ != cz {
			var n int
			b, n = e.q.pending.getOrCreate(world.ChunkPos{X: cx, Z: cz})
			if n > 0 {
				e.q.notify(ProgressQueue, n)
			}
			e.lastX, e.lastZ, e.last = cx, cz, b
		}
		if fn(b) {
			return
		}
		e.last = nil
	}
}

// SetBlock stages block id with data at world coordinates. Changes with y
// outside [0, world.Height) are ignored.
func (e *Editor) SetBlock(x, y, z, id, data int) {
	e.SetCombined(x, y, z, world.Combined(id, data))
}

// SetCombined stages a combined cell at world coordinates.
func (e *Editor) SetCombined(x, y, z int, combined uint16) {
	if y < 0 || y >= world.Height {
		return
	}
	cx, cz := world.ChunkOf(x, z)
	e.batch(cx, cz, func(b *Batch) bool {
		return b.SetBlock(x&0xF, y, z&0xF, combined)
	})
}

// SetTile stages tile entity data at world coordinates. A nil tag removes the
// tile.
func (e *Editor) SetTile(x, y, z int, tag world.Tag) {
	if y < 0 || y >= world.Height {
		return
	}
	cx, cz := world.ChunkOf(x, z)
	e.batch(cx, cz, func(b *Batch) bool {
		return b.SetTile(x&0xF, y, z&0xF, tag)
	})
}

// SetEntity stages an entity spawn in the column the entity stands in.
func (e *Editor) SetEntity(ent world.Entity) {
	p := ent.BlockPos()
	if p.Y < 0 || p.Y >= world.Height {
		return
	}
	cx, cz := world.ChunkOf(p.X, p.Z)
	e.batch(cx, cz, func(b *Batch) bool {
		return b.AddEntity(ent)
	})
}

// RemoveEntity stages the removal of entity id from the column holding
// x, y, z.
func (e *Editor) RemoveEntity(x, y, z int, id uuid.UUID) {
	if y < 0 || y >= world.Height {
		return
	}
	cx, cz := world.ChunkOf(x, z)
	e.batch(cx, cz, func(b *Batch) bool {
		return b.RemoveEntity(id)
	})
}

// SetBiome stages a biome for the block column at x, z.
func (e *Editor) SetBiome(x, z int, biome byte) {
	cx, cz := world.ChunkOf(x, z)
	e.batch(cx, cz, func(b *Batch) bool {
		return b.SetBiome(x&0xF, z&0xF, biome)
	})
}

// AddNotifyTask registers fn to run once the pending changes of column
// (cx, cz) have been applied. If nothing else is staged, an empty batch is
// queued for the task.
func (e *Editor) AddNotifyTask(cx, cz int32, fn func()) {
	e.batch(cx, cz, func(b *Batch) bool {
		return b.AddNotifyTask(fn)
	})
}
