package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestCombined(t *testing.T) {
	c := Combined(1, 2)
	if c != 0x12 {
		t.Errorf("Combined(1, 2) = %#x, want 0x12", c)
	}
	if CellID(c) != 1 || CellData(c) != 2 {
		t.Errorf("unpack %#x = (%d, %d), want (1, 2)", c, CellID(c), CellData(c))
	}

	// Block ID 300 (0x12C), meta 5.
	c = Combined(300, 5)
	if c != 0x12C5 {
		t.Errorf("Combined(300, 5) = %#x, want 0x12c5", c)
	}

	// Data is masked to a nibble.
	if c := Combined(4, 0x1F); c != 0x4F {
		t.Errorf("Combined(4, 0x1f) = %#x, want 0x4f", c)
	}
}

func TestBlockFromCombined(t *testing.T) {
	b := BlockFromCombined(Combined(54, 3))
	if b.ID != 54 || b.Data != 3 || b.NBT != nil {
		t.Errorf("BlockFromCombined = %+v, want chest facing 3", b)
	}
	if b.Combined() != Combined(54, 3) {
		t.Errorf("Combined() = %#x", b.Combined())
	}
}

func TestHasNBT(t *testing.T) {
	if !HasNBT(54) {
		t.Error("chest should carry NBT")
	}
	if HasNBT(1) {
		t.Error("stone should not carry NBT")
	}
	if HasNBT(-1) || HasNBT(1<<12) {
		t.Error("out of range ids should not carry NBT")
	}
}

func TestCloneTag(t *testing.T) {
	orig := Tag{"id": "Chest", "Lock": Tag{"key": "a"}}
	c := CloneTag(orig)
	c["id"] = "Furnace"
	c["Lock"].(Tag)["key"] = "b"
	if orig["id"] != "Chest" || orig["Lock"].(Tag)["key"] != "a" {
		t.Errorf("clone shares state with original: %v", orig)
	}
	if CloneTag(nil) != nil {
		t.Error("CloneTag(nil) should be nil")
	}
}

func TestEntityBlockPos(t *testing.T) {
	e := NewEntity("Pig", mgl64.Vec3{-0.5, 64, 15.99})
	if got := e.BlockPos(); got != (BlockPos{X: -1, Y: 64, Z: 15}) {
		t.Errorf("BlockPos() = %v, want {-1 64 15}", got)
	}
	if e.ID == NewEntity("Pig", mgl64.Vec3{}).ID {
		t.Error("entities should get distinct IDs")
	}
}

func TestClampLight(t *testing.T) {
	for in, want := range map[int]int{-3: 0, 0: 0, 7: 7, 15: 15, 255: 15} {
		if got := ClampLight(in); got != want {
			t.Errorf("ClampLight(%d) = %d, want %d", in, got, want)
		}
	}
}
