package gen

import "github.com/OCharnyshevich/blockqueue/pkg/world"

// Section holds block and light data for a 16×16×16 vertical slice of a chunk.
// Block index = y*256 + z*16 + x, value = blockID<<4 | metadata. Light arrays
// hold one nibble per block at the same index.
type Section struct {
	Blocks     [4096]uint16
	BlockLight [2048]byte
	SkyLight   [2048]byte
}

// ChunkData holds the terrain for one chunk column.
type ChunkData struct {
	Sections [world.SectionCount]*Section // nil = all-air
	Biomes   [256]byte                    // index = z*16 + x → biome ID
}

// Generator produces chunk data deterministically from a seed.
type Generator interface {
	Generate(chunkX, chunkZ int32) *ChunkData
	HeightAt(blockX, blockZ int) int
}

// Index returns the index of local coordinates within a section.
func Index(x, y, z int) int {
	return (y&0xF)*256 + z*16 + x
}

// SetBlock sets a block state at the given local coordinates within the chunk.
// x, z must be in [0,16), y must be in [0,256).
func (c *ChunkData) SetBlock(x, y, z int, state uint16) {
	sec := y >> 4
	if c.Sections[sec] == nil {
		if state == 0 {
			return
		}
		c.Sections[sec] = &Section{}
	}
	c.Sections[sec].Blocks[Index(x, y, z)] = state
}

// GetBlock returns the block state at the given local coordinates.
func (c *ChunkData) GetBlock(x, y, z int) uint16 {
	sec := y >> 4
	if c.Sections[sec] == nil {
		return 0
	}
	return c.Sections[sec].Blocks[Index(x, y, z)]
}

// SetBiome sets the biome ID at the given local x, z coordinates.
func (c *ChunkData) SetBiome(x, z int, biome byte) {
	c.Biomes[z*16+x] = biome
}

// Biome returns the biome ID at the given local x, z coordinates.
func (c *ChunkData) Biome(x, z int) byte {
	return c.Biomes[z*16+x]
}

// HeightAt returns one above the highest non-air block of the local column,
// or 0 if the column is empty.
func (c *ChunkData) HeightAt(x, z int) int {
	for y := world.Height - 1; y >= 0; y-- {
		if c.GetBlock(x, y, z) != 0 {
			return y + 1
		}
	}
	return 0
}

// Relight recomputes sky light for every section: full light above the
// highest block of each column and none below it. Block light is left as is.
func (c *ChunkData) Relight() {
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			top := c.HeightAt(x, z)
			for sec, s := range c.Sections {
				if s == nil {
					continue
				}
				base := sec << 4
				for ly := 0; ly < 16; ly++ {
					var v byte
					if base+ly >= top {
						v = world.MaxLight
					}
					SetNibble(s.SkyLight[:], Index(x, ly, z), v)
				}
			}
		}
	}
}

// SetNibble sets a 4-bit value at the given block index in a nibble array.
func SetNibble(arr []byte, index int, val byte) {
	byteIdx := index / 2
	if index%2 == 0 {
		arr[byteIdx] = (arr[byteIdx] & 0xF0) | (val & 0x0F)
	} else {
		arr[byteIdx] = (arr[byteIdx] & 0x0F) | ((val & 0x0F) << 4)
	}
}

// Nibble returns the 4-bit value at the given block index in a nibble array.
func Nibble(arr []byte, index int) byte {
	if index%2 == 0 {
		return arr[index/2] & 0x0F
	}
	return arr[index/2] >> 4
}
