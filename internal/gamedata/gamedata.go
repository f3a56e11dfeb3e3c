// Package gamedata loads block data in the minecraft-data format and exposes
// it as lighting materials.
package gamedata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

// Blocks is a block registry indexed by id and name. It implements
// world.Materials.
type Blocks struct {
	byID   map[int]Block
	byName map[string]Block

	// UnknownEmission is the emission reported for ids not in the registry.
	UnknownEmission int
}

// NewBlocks indexes blocks. Later entries win over earlier ones with the same
// id or name.
func NewBlocks(blocks []Block) *Blocks {
	r := &Blocks{
		byID:            make(map[int]Block, len(blocks)),
		byName:          make(map[string]Block, len(blocks)),
		UnknownEmission: world.MaxLight,
	}
	for _, b := range blocks {
		r.byID[b.ID] = b
		r.byName[b.Name] = b
	}
	return r
}

// ByID returns the block with the given id.
func (r *Blocks) ByID(id int) (Block, bool) {
	b, ok := r.byID[id]
	return b, ok
}

// ByName returns the block with the given name, e.g. "stone".
func (r *Blocks) ByName(name string) (Block, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// All returns every block ordered by id.
func (r *Blocks) All() []Block {
	out := make([]Block, 0, len(r.byID))
	for _, b := range r.byID {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b Block) int { return a.ID - b.ID })
	return out
}

// Len returns the number of blocks.
func (r *Blocks) Len() int {
	return len(r.byID)
}

// Material returns the lighting properties of a block id.
func (r *Blocks) Material(id int) (world.Material, bool) {
	b, ok := r.byID[id]
	if !ok {
		return world.Material{Opacity: world.MaxLight, Emission: r.UnknownEmission}, false
	}
	return world.Material{Opacity: b.FilterLight, Emission: b.EmitLight}, true
}

// DecodeBlocks reads a blocks.json array.
func DecodeBlocks(r io.Reader) (*Blocks, error) {
	var blocks []Block
	if err := json.NewDecoder(r).Decode(&blocks); err != nil {
		return nil, fmt.Errorf("decode blocks: %w", err)
	}
	return NewBlocks(blocks), nil
}

// LoadBlocksFile reads a blocks.json file from disk.
func LoadBlocksFile(path string) (*Blocks, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blocks: %w", err)
	}
	defer f.Close()

	r, err := DecodeBlocks(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
