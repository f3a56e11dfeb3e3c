package gen

const (
	blockStone   = 1
	blockGrass   = 2
	blockDirt    = 3
	blockBedrock = 7

	biomePlains = 1
)

// FlatGenerator generates a classic superflat world:
// bedrock at y=0, stone y=1..2, dirt y=3, grass y=4.
type FlatGenerator struct{}

// NewFlatGenerator creates a FlatGenerator.
func NewFlatGenerator(_ int64) *FlatGenerator {
	return &FlatGenerator{}
}

func (g *FlatGenerator) Generate(_, _ int32) *ChunkData {
	c := &ChunkData{}

	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			c.SetBlock(x, 0, z, blockBedrock<<4)
			c.SetBlock(x, 1, z, blockStone<<4)
			c.SetBlock(x, 2, z, blockStone<<4)
			c.SetBlock(x, 3, z, blockDirt<<4)
			c.SetBlock(x, 4, z, blockGrass<<4)
			c.SetBiome(x, z, biomePlains)
		}
	}
	c.Relight()
	return c
}

func (g *FlatGenerator) HeightAt(_, _ int) int {
	return 4 // top solid block is at y=4 (grass)
}

// EmptyGenerator generates all-air chunks. Useful for void worlds and tests.
type EmptyGenerator struct{}

func (EmptyGenerator) Generate(_, _ int32) *ChunkData { return &ChunkData{} }

func (EmptyGenerator) HeightAt(_, _ int) int { return 0 }
