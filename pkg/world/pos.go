package world

// Height is the number of block layers in a chunk column. Valid block Y
// coordinates are in [0, Height).
const Height = 256

// SectionCount is the number of 16-block-tall sections in a chunk column.
const SectionCount = Height >> 4

// BlockPos represents a block position in the world.
type BlockPos struct {
	X, Y, Z int
}

// Chunk returns the position of the chunk column holding the block.
func (p BlockPos) Chunk() ChunkPos {
	return ChunkPos{X: int32(p.X >> 4), Z: int32(p.Z >> 4)}
}

// ChunkPos identifies a chunk column by its X and Z chunk coordinates.
type ChunkPos struct{ X, Z int32 }

// Key packs the position into a ChunkKey.
func (p ChunkPos) Key() ChunkKey {
	return EncodeChunkKey(p.X, p.Z)
}

// ChunkKey is a chunk position packed into 64 bits: chunk X in the high half,
// chunk Z in the low half. Keys carry no ordering meaning and are only used
// for equality and hashing.
type ChunkKey int64

// EncodeChunkKey packs a chunk coordinate into a ChunkKey.
func EncodeChunkKey(x, z int32) ChunkKey {
	return ChunkKey(int64(x)<<32 | int64(uint32(z)))
}

// DecodeChunkKey unpacks a ChunkKey produced by EncodeChunkKey.
func DecodeChunkKey(k ChunkKey) (x, z int32) {
	return int32(k >> 32), int32(uint32(k))
}

// Pos returns the ChunkPos the key was built from.
func (k ChunkKey) Pos() ChunkPos {
	x, z := DecodeChunkKey(k)
	return ChunkPos{X: x, Z: z}
}

// ChunkOf returns the chunk coordinates holding the block at x, z.
func ChunkOf(x, z int) (cx, cz int32) {
	return int32(x >> 4), int32(z >> 4)
}
