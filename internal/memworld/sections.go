package memworld

import (
	"github.com/OCharnyshevich/blockqueue/internal/queue"
	"github.com/OCharnyshevich/blockqueue/pkg/world"
	"github.com/OCharnyshevich/blockqueue/pkg/world/gen"
)

// Sections returns a view of a loaded column, or nil if it is not loaded.
// The view reads through to the column, so it sees later changes.
func (w *World) Sections(cx, cz int32) queue.Sections {
	w.mu.RLock()
	defer w.mu.RUnlock()
	col := w.loaded[world.EncodeChunkKey(cx, cz)]
	if col == nil {
		return nil
	}
	return columnView{w: w, col: col}
}

type columnView struct {
	w   *World
	col *column
}

func (v columnView) Section(cy int) queue.Section {
	if cy < 0 || cy >= world.SectionCount {
		return nil
	}
	return sectionView{columnView: v, cy: cy}
}

// sectionView reads one section of a column. Missing sections hold air, lit
// by the sky if nothing in the block column is above them.
type sectionView struct {
	columnView
	cy int
}

func (v sectionView) section() *gen.Section {
	return v.col.data.Sections[v.cy]
}

func (v sectionView) Combined(x, y, z int) uint16 {
	v.w.mu.RLock()
	defer v.w.mu.RUnlock()
	if s := v.section(); s != nil {
		return s.Blocks[gen.Index(x, y, z)]
	}
	return 0
}

func (v sectionView) SkyLight(x, y, z int) int {
	if !v.w.HasSky() {
		return 0
	}
	v.w.mu.RLock()
	defer v.w.mu.RUnlock()
	if s := v.section(); s != nil {
		return int(gen.Nibble(s.SkyLight[:], gen.Index(x, y, z)))
	}
	if v.cy<<4 < v.col.data.HeightAt(x, z) {
		return 0
	}
	return world.MaxLight
}

func (v sectionView) BlockLight(x, y, z int) int {
	v.w.mu.RLock()
	defer v.w.mu.RUnlock()
	if s := v.section(); s != nil {
		return int(gen.Nibble(s.BlockLight[:], gen.Index(x, y, z)))
	}
	return 0
}
