package queue

import (
	"context"

	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

// Reader queries blocks and light of the live world. It caches the column and
// section it last resolved, so scans that stay within one section cost a
// single lookup. Reads see the world as applied, not pending batches.
//
// A Reader must not be used by more than one goroutine at a time. Reads of a
// column that cannot be loaded return zero values; if the load timed out the
// error wraps ErrChunkLoad.
type Reader struct {
	q *Queue

	valid    bool
	cx, cz   int32
	cy       int
	sections Sections
	section  Section
}

// Reset drops the cached column, forcing the next read to resolve it again.
func (r *Reader) Reset() {
	r.valid = false
	r.sections, r.section = nil, nil
}

// resolve moves the cursor to the section holding x, y, z. It returns nil if
// the column is not loaded or the section is missing.
func (r *Reader) resolve(ctx context.Context, x, y, z int) (Section, error) {
	cx, cz := world.ChunkOf(x, z)
	cy := y >> 4
	switch {
	case !r.valid || cx != r.cx || cz != r.cz:
		ok, err := r.q.gate.EnsureLoaded(ctx, cx, cz)
		if err != nil || !ok {
			r.Reset()
			return nil, err
		}
		r.valid, r.cx, r.cz, r.cy = true, cx, cz, cy
		r.sections = r.q.world.Sections(cx, cz)
		r.section = r.sectionAt(cy)
	case cy != r.cy:
		r.cy = cy
		r.section = r.sectionAt(cy)
	}
	return r.section, nil
}

func (r *Reader) sectionAt(cy int) Section {
	if r.sections == nil || cy < 0 || cy >= world.SectionCount {
		return nil
	}
	return r.sections.Section(cy)
}

// CombinedBlock returns the combined cell at x, y, z.
func (r *Reader) CombinedBlock(ctx context.Context, x, y, z int) (uint16, error) {
	s, err := r.resolve(ctx, x, y, z)
	if s == nil {
		return 0, err
	}
	return s.Combined(x&0xF, y&0xF, z&0xF), nil
}

// HasBlock reports whether the cell at x, y, z is not air.
func (r *Reader) HasBlock(ctx context.Context, x, y, z int) (bool, error) {
	c, err := r.CombinedBlock(ctx, x, y, z)
	return c != 0, err
}

// SkyLight returns the sky light level at x, y, z.
func (r *Reader) SkyLight(ctx context.Context, x, y, z int) (int, error) {
	s, err := r.resolve(ctx, x, y, z)
	if s == nil {
		return 0, err
	}
	return s.SkyLight(x&0xF, y&0xF, z&0xF), nil
}

// EmittedLight returns the block light level at x, y, z.
func (r *Reader) EmittedLight(ctx context.Context, x, y, z int) (int, error) {
	s, err := r.resolve(ctx, x, y, z)
	if s == nil {
		return 0, err
	}
	return s.BlockLight(x&0xF, y&0xF, z&0xF), nil
}

// Light returns the brighter of sky and block light at x, y, z, or the block
// light alone in a world without sky.
func (r *Reader) Light(ctx context.Context, x, y, z int) (int, error) {
	s, err := r.resolve(ctx, x, y, z)
	if s == nil {
		return 0, err
	}
	lx, ly, lz := x&0xF, y&0xF, z&0xF
	emitted := s.BlockLight(lx, ly, lz)
	if !r.q.world.HasSky() {
		return emitted, nil
	}
	return max(s.SkyLight(lx, ly, lz), emitted), nil
}

// Opacity returns how much light the block at x, y, z filters, in [0, 15].
func (r *Reader) Opacity(ctx context.Context, x, y, z int) (int, error) {
	c, err := r.CombinedBlock(ctx, x, y, z)
	if c == 0 {
		return 0, err
	}
	o, _ := r.lighting(c)
	return o, nil
}

// Brightness returns the light emitted by the block at x, y, z, in [0, 15].
func (r *Reader) Brightness(ctx context.Context, x, y, z int) (int, error) {
	c, err := r.CombinedBlock(ctx, x, y, z)
	if c == 0 {
		return 0, err
	}
	_, b := r.lighting(c)
	return b, nil
}

// OpacityBrightness returns opacity and brightness of the block at x, y, z
// packed as opacity<<8 | brightness.
func (r *Reader) OpacityBrightness(ctx context.Context, x, y, z int) (uint16, error) {
	c, err := r.CombinedBlock(ctx, x, y, z)
	if c == 0 {
		return 0, err
	}
	o, b := r.lighting(c)
	return uint16(o<<8 | b), nil
}

// lighting resolves opacity and emission of a non-air cell. Unknown ids are
// fully opaque.
func (r *Reader) lighting(c uint16) (opacity, emission int) {
	if r.q.materials == nil {
		return world.MaxLight, 0
	}
	m, ok := r.q.materials.Material(world.CellID(c))
	if !ok {
		return world.MaxLight, world.ClampLight(m.Emission)
	}
	return world.ClampLight(m.Opacity), world.ClampLight(m.Emission)
}
