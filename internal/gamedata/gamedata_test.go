package gamedata_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/OCharnyshevich/blockqueue/internal/gamedata"
	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

func builtinBlocks(t *testing.T) *gamedata.Blocks {
	t.Helper()
	r, err := gamedata.Load("pc-1.8")
	if err != nil {
		t.Fatalf("Load(pc-1.8): %v", err)
	}
	return r
}

func TestBlocksByID(t *testing.T) {
	r := builtinBlocks(t)

	stone, ok := r.ByID(1)
	if !ok {
		t.Fatal("expected to find block with ID 1 (stone)")
	}
	if stone.Name != "stone" {
		t.Errorf("expected name 'stone', got %q", stone.Name)
	}
	if stone.Hardness == nil || *stone.Hardness != 1.5 {
		t.Errorf("expected hardness 1.5, got %v", stone.Hardness)
	}
	bedrock, _ := r.ByID(7)
	if bedrock.Hardness != nil {
		t.Errorf("bedrock hardness = %v, want nil", *bedrock.Hardness)
	}
}

func TestBlocksByName(t *testing.T) {
	r := builtinBlocks(t)

	air, ok := r.ByName("air")
	if !ok {
		t.Fatal("expected to find block 'air'")
	}
	if air.ID != 0 || !air.Transparent {
		t.Errorf("air = %+v, want id 0 and transparent", air)
	}
	if _, ok := r.ByName("nonexistent"); ok {
		t.Error("found a block that does not exist")
	}
}

func TestBlocksAllSorted(t *testing.T) {
	r := builtinBlocks(t)
	all := r.All()
	if len(all) != r.Len() {
		t.Fatalf("len(All()) = %d, want %d", len(all), r.Len())
	}
	if !slices.IsSortedFunc(all, func(a, b gamedata.Block) int { return a.ID - b.ID }) {
		t.Error("All() is not sorted by id")
	}
}

func TestMaterials(t *testing.T) {
	var m world.Materials = builtinBlocks(t)

	tests := []struct {
		id       int
		want     world.Material
		wantKnow bool
	}{
		{1, world.Material{Opacity: 15}, true},
		{20, world.Material{}, true},
		{9, world.Material{Opacity: 2}, true},
		{18, world.Material{Opacity: 1}, true},
		{50, world.Material{Emission: 14}, true},
		{89, world.Material{Opacity: 15, Emission: 15}, true},
		{4000, world.Material{Opacity: 15, Emission: 15}, false},
	}
	for _, tt := range tests {
		got, ok := m.Material(tt.id)
		if got != tt.want || ok != tt.wantKnow {
			t.Errorf("Material(%d) = (%+v, %v), want (%+v, %v)", tt.id, got, ok, tt.want, tt.wantKnow)
		}
	}
}

func TestUnknownEmission(t *testing.T) {
	r := gamedata.NewBlocks(nil)
	r.UnknownEmission = 0
	if m, ok := r.Material(1); ok || m.Emission != 0 || m.Opacity != 15 {
		t.Errorf("Material(1) = (%+v, %v), want opaque unknown without emission", m, ok)
	}
}

func TestLoadBlocksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.json")
	data := `[{"id":1,"name":"stone","filterLight":15},{"id":50,"name":"torch","emitLight":14}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := gamedata.LoadBlocksFile(path)
	if err != nil {
		t.Fatalf("LoadBlocksFile: %v", err)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if m, _ := r.Material(50); m.Emission != 14 {
		t.Errorf("torch emission = %d, want 14", m.Emission)
	}
}

func TestLoadBlocksFileErrors(t *testing.T) {
	if _, err := gamedata.LoadBlocksFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for a missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"id":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := gamedata.LoadBlocksFile(path)
	if err == nil || !strings.Contains(err.Error(), "decode blocks") {
		t.Errorf("LoadBlocksFile(object) = %v, want decode error", err)
	}
}

func TestLoadUnknownVersion(t *testing.T) {
	if _, err := gamedata.Load("nonexistent-version"); err == nil {
		t.Fatal("expected error for unknown version, got nil")
	}
}

func TestRegisterAndLoad(t *testing.T) {
	called := false
	gamedata.Register("test-version", func() (*gamedata.Blocks, error) {
		called = true
		return gamedata.NewBlocks([]gamedata.Block{{ID: 1, Name: "stone"}}), nil
	})

	r, err := gamedata.Load("test-version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 1 || !called {
		t.Fatalf("Load(test-version) = %d blocks, called = %v", r.Len(), called)
	}
	if !slices.Contains(gamedata.RegisteredVersions(), "test-version") {
		t.Errorf("RegisteredVersions() = %v, missing test-version", gamedata.RegisteredVersions())
	}
}
