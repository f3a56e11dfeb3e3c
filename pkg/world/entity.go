package world

import (
	"maps"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// Tag is a decoded NBT compound. Nested compounds are map[string]any values.
type Tag = map[string]any

// CloneTag returns a shallow copy of t with nested compounds copied too.
func CloneTag(t Tag) Tag {
	if t == nil {
		return nil
	}
	c := maps.Clone(t)
	for k, v := range c {
		if nested, ok := v.(map[string]any); ok {
			c[k] = CloneTag(nested)
		}
	}
	return c
}

// Entity is an entity snapshot queued for spawning or held by a clipboard.
type Entity struct {
	ID    uuid.UUID
	Type  string
	Pos   mgl64.Vec3
	Yaw   float32
	Pitch float32
	Data  Tag
}

// NewEntity returns an entity of the given type at pos with a random ID.
func NewEntity(typ string, pos mgl64.Vec3) Entity {
	return Entity{ID: uuid.New(), Type: typ, Pos: pos}
}

// BlockPos returns the block position the entity stands in.
func (e Entity) BlockPos() BlockPos {
	return BlockPos{X: floor(e.Pos.X()), Y: floor(e.Pos.Y()), Z: floor(e.Pos.Z())}
}

func floor(v float64) int {
	i := int(v)
	if v < float64(i) {
		i--
	}
	return i
}
