package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/OCharnyshevich/blockqueue/internal/config"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(t.TempDir(), "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewCreatesDirectories(t *testing.T) {
	s := newTestStorage(t)
	if info, err := os.Stat(s.ClipboardDir()); err != nil || !info.IsDir() {
		t.Errorf("clipboard dir %s missing: %v", s.ClipboardDir(), err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := newTestStorage(t)

	cfg := config.DefaultConfig()
	cfg.ChunkWaitMS = 333
	cfg.NoSky = true
	cfg.ClipboardDir = "/tmp/elsewhere"
	if err := s.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if _, err := os.Stat(s.ConfigPath() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}

	got := config.DefaultConfig()
	loaded, err := s.LoadConfig(got)
	if err != nil || !loaded {
		t.Fatalf("LoadConfig() = (%v, %v), want (true, nil)", loaded, err)
	}
	if *got != *cfg {
		t.Errorf("loaded config = %+v, want %+v", got, cfg)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	s := newTestStorage(t)
	cfg := config.DefaultConfig()
	loaded, err := s.LoadConfig(cfg)
	if err != nil || loaded {
		t.Errorf("LoadConfig() = (%v, %v), want (false, nil)", loaded, err)
	}
	if *cfg != *config.DefaultConfig() {
		t.Error("config changed without a file")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	s := newTestStorage(t)
	if err := os.WriteFile(s.ConfigPath(), []byte("chunk_wait_ms = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadConfig(config.DefaultConfig()); err == nil {
		t.Error("expected parse error")
	}
}

func TestClipboards(t *testing.T) {
	s := newTestStorage(t)

	a, pa := s.NewClipboardPath()
	b, pb := s.NewClipboardPath()
	if filepath.Dir(pa) != s.ClipboardDir() || filepath.Ext(pa) != ClipboardExt {
		t.Errorf("NewClipboardPath() = %s, want a .bd file in %s", pa, s.ClipboardDir())
	}
	for _, p := range []string{pa, pb, filepath.Join(s.ClipboardDir(), "notes.bd"), filepath.Join(s.ClipboardDir(), uuid.NewString()+".txt")} {
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := s.Clipboards()
	if err != nil {
		t.Fatalf("Clipboards: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("Clipboards() = %v, want 2 ids", ids)
	}
	if !(ids[0] == a && ids[1] == b) && !(ids[0] == b && ids[1] == a) {
		t.Errorf("Clipboards() = %v, want %v and %v", ids, a, b)
	}
	if ids[0].String() > ids[1].String() {
		t.Error("Clipboards() not sorted")
	}
}
