package world

// MaxLight is the highest light, opacity and emission level.
const MaxLight = 15

// Material holds the lighting properties of a block id.
type Material struct {
	// Opacity is how much light the block filters, 0 for fully transparent.
	Opacity int
	// Emission is the light level the block emits.
	Emission int
}

// Materials resolves block ids to their lighting properties.
//
// When ok is false the id is unknown; the returned Material still carries the
// emission the implementation uses for unknown blocks.
type Materials interface {
	Material(id int) (m Material, ok bool)
}

// MaterialsFunc adapts a function to the Materials interface.
type MaterialsFunc func(id int) (Material, bool)

// Material calls f(id).
func (f MaterialsFunc) Material(id int) (Material, bool) {
	return f(id)
}

// ClampLight clamps v to [0, MaxLight].
func ClampLight(v int) int {
	switch {
	case v < 0:
		return 0
	case v > MaxLight:
		return MaxLight
	}
	return v
}
