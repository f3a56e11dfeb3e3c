package queue

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

func TestBatchForEachBlockOrder(t *testing.T) {
	b := NewBatch(world.ChunkPos{X: 3, Z: 4})
	b.SetBlock(1, 17, 0, 5)
	b.SetBlock(0, 0, 1, 4)
	b.SetBlock(2, 0, 0, 3)
	b.SetBlock(15, 255, 15, 2)

	var got []string
	b.ForEachBlock(func(x, y, z int, c uint16) {
		got = append(got, fmt.Sprintf("%d,%d,%d=%d", x, y, z, c))
	})
	want := "[2,0,0=3 0,0,1=4 1,17,0=5 15,255,15=2]"
	if fmt.Sprint(got) != want {
		t.Errorf("ForEachBlock = %v, want %s", got, want)
	}
}

func TestBatchTiles(t *testing.T) {
	b := NewBatch(world.ChunkPos{})
	b.SetTile(3, 200, 9, world.Tag{"id": "Chest"})
	b.SetTile(1, 2, 3, nil)

	tag, ok := b.Tile(3, 200, 9)
	if !ok || tag["id"] != "Chest" {
		t.Errorf("Tile(3,200,9) = (%v, %v), want Chest", tag, ok)
	}
	var got []string
	b.ForEachTile(func(x, y, z int, tag world.Tag) {
		got = append(got, fmt.Sprintf("%d,%d,%d:%v", x, y, z, tag == nil))
	})
	if want := "[1,2,3:true 3,200,9:false]"; fmt.Sprint(got) != want {
		t.Errorf("ForEachTile = %v, want %s", got, want)
	}
}

func TestBatchEntities(t *testing.T) {
	b := NewBatch(world.ChunkPos{})
	pig := world.NewEntity("Pig", mgl64.Vec3{1.5, 64, 2.5})
	cow := world.NewEntity("Cow", mgl64.Vec3{3, 64, 3})
	other := world.NewEntity("Sheep", mgl64.Vec3{})

	b.AddEntity(pig)
	b.AddEntity(cow)
	// Removing a spawn staged in the same batch cancels it.
	b.RemoveEntity(pig.ID)
	b.RemoveEntity(other.ID)

	if ents := b.Entities(); len(ents) != 1 || ents[0].ID != cow.ID {
		t.Errorf("Entities() = %v, want only the cow", ents)
	}
	if ids := b.RemovedEntities(); len(ids) != 1 || ids[0] != other.ID {
		t.Errorf("RemovedEntities() = %v, want [%v]", ids, other.ID)
	}
}

func TestBatchBiomes(t *testing.T) {
	b := NewBatch(world.ChunkPos{})
	if !b.Empty() {
		t.Fatal("new batch not empty")
	}
	b.SetBiome(15, 15, 7)
	if v, ok := b.Biome(15, 15); !ok || v != 7 {
		t.Errorf("Biome(15,15) = (%d, %v), want (7, true)", v, ok)
	}
	if _, ok := b.Biome(0, 0); ok {
		t.Error("Biome(0,0) reported set")
	}
	if b.Empty() {
		t.Error("Empty() = true with a biome staged")
	}
}

func TestSealedBatchRefusesChanges(t *testing.T) {
	b := NewBatch(world.ChunkPos{})
	b.seal()
	if b.SetBlock(0, 0, 0, 1) || b.SetTile(0, 0, 0, nil) || b.SetBiome(0, 0, 1) ||
		b.AddEntity(world.Entity{}) || b.AddNotifyTask(func() {}) {
		t.Error("sealed batch accepted a change")
	}
	if !b.Empty() {
		t.Error("sealed batch holds changes")
	}
}

func TestOptimizeDropsEmptySections(t *testing.T) {
	b := NewBatch(world.ChunkPos{})
	b.sections[3] = &batchSection{}
	b.SetBlock(0, 0, 0, 1)
	b.Optimize()
	if b.sections[3] != nil {
		t.Error("empty section kept")
	}
	if b.sections[0] == nil || b.sections[0].isUniform {
		t.Error("partial section dropped or collapsed")
	}
}
