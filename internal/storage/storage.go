package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml"

	"github.com/OCharnyshevich/blockqueue/internal/config"
)

// ClipboardExt is the file extension of clipboard files.
const ClipboardExt = ".bd"

// Storage handles file-based persistence for the config and clipboard files.
type Storage struct {
	dir          string
	clipboardDir string
	log          *slog.Logger
}

// New creates a new Storage rooted at dir, creating subdirectories as needed.
// A relative clipboardDir is resolved against dir.
func New(dir, clipboardDir string, log *slog.Logger) (*Storage, error) {
	if log == nil {
		log = slog.Default()
	}
	if clipboardDir == "" {
		clipboardDir = "clipboard"
	}
	if !filepath.IsAbs(clipboardDir) {
		clipboardDir = filepath.Join(dir, clipboardDir)
	}
	for _, d := range []string{dir, clipboardDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return &Storage{dir: dir, clipboardDir: clipboardDir, log: log}, nil
}

// ConfigPath returns the path of config.toml.
func (s *Storage) ConfigPath() string {
	return filepath.Join(s.dir, "config.toml")
}

// LoadConfig reads config.toml into cfg. If the file does not exist, cfg is
// unchanged and loaded is false.
func (s *Storage) LoadConfig(cfg *config.Config) (loaded bool, err error) {
	path := s.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return false, fmt.Errorf("parse config: %w", err)
	}
	s.log.Info("loaded config from file", "path", path)
	return true, nil
}

// SaveConfig writes cfg to config.toml atomically.
func (s *Storage) SaveConfig(cfg *config.Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return atomicWrite(s.ConfigPath(), data)
}

// ClipboardDir returns the directory holding clipboard files.
func (s *Storage) ClipboardDir() string {
	return s.clipboardDir
}

// ClipboardPath returns the file path of the clipboard with the given id.
func (s *Storage) ClipboardPath(id uuid.UUID) string {
	return filepath.Join(s.clipboardDir, id.String()+ClipboardExt)
}

// NewClipboardPath returns the path for a new clipboard with a random id.
func (s *Storage) NewClipboardPath() (uuid.UUID, string) {
	id := uuid.New()
	return id, s.ClipboardPath(id)
}

// Clipboards returns the ids of the clipboard files on disk, sorted. Files
// whose name is not a UUID are skipped.
func (s *Storage) Clipboards() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.clipboardDir)
	if err != nil {
		return nil, fmt.Errorf("list clipboards: %w", err)
	}
	var ids []uuid.UUID
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), ClipboardExt)
		if e.IsDir() || !ok {
			continue
		}
		id, err := uuid.Parse(name)
		if err != nil {
			s.log.Debug("skipping clipboard file", "name", e.Name(), "error", err)
			continue
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })
	return ids, nil
}

// atomicWrite writes data using a temp file + rename.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
