package clipboard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

// ensureOpenLocked reopens the file if the idle closer released it.
func (s *DiskStore) ensureOpenLocked() error {
	if s.f != nil {
		return nil
	}
	return s.openLocked()
}

// openLocked opens the file, resizing it and rewriting the dimensions if its
// size does not match the volume, and starts an idle closer for the handle.
func (s *DiskStore) openLocked() error {
	if s.closed {
		return ErrClosed
	}
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open clipboard: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat clipboard: %w", err)
	}
	s.f = f
	s.last = -1
	s.lastAccess = s.opts.Now()
	if want := s.fileSize(); info.Size() != want {
		s.log.Debug("resizing clipboard file", "size", info.Size(), "want", want)
		if err := f.Truncate(want); err != nil {
			s.closeLocked()
			return fmt.Errorf("resize clipboard: %w", err)
		}
		if err := s.writeDimsLocked(); err != nil {
			s.closeLocked()
			return err
		}
	}

	s.closers.Add(1)
	go s.closeWhenIdle(f)
	return nil
}

func (s *DiskStore) closeLocked() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.last = -1
	return err
}

// closeWhenIdle closes f once nothing has touched the store for the idle
// timeout. It exits early if f is replaced or the store is closed.
func (s *DiskStore) closeWhenIdle(f *os.File) {
	defer s.closers.Done()
	t := time.NewTicker(s.opts.CheckInterval)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
		}
		s.mu.Lock()
		if s.f != f {
			s.mu.Unlock()
			return
		}
		idle := s.opts.Now().Sub(s.lastAccess)
		if idle < s.opts.IdleTimeout {
			s.mu.Unlock()
			continue
		}
		err := s.closeLocked()
		s.mu.Unlock()
		if err != nil {
			s.log.Error("failed to close idle clipboard", "error", err)
			return
		}
		s.log.Debug("closed idle clipboard", "idle", idle)
		return
	}
}

// IsOpen reports whether the file handle is currently held.
func (s *DiskStore) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f != nil
}

// Flush releases the file handle. The next access reopens it.
func (s *DiskStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.closeLocked(); err != nil {
		return fmt.Errorf("flush clipboard: %w", err)
	}
	return nil
}

// Close releases the file handle and stops the idle closer. The file is
// kept.
func (s *DiskStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	s.closers.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if err := s.closeLocked(); err != nil {
		return fmt.Errorf("close clipboard: %w", err)
	}
	return nil
}

// Remove closes the store and deletes its file.
func (s *DiskStore) Remove() error {
	if err := s.Close(); err != nil {
		return err
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove clipboard: %w", err)
	}
	s.tiles = newTileTable()
	s.entities = entitySet{}
	return nil
}

// forEachBatch is the number of cells read per lock acquisition in ForEach.
const forEachBatch = 16 << 10

// ForEach calls fn for every cell in raster order: x fastest, then z, then
// y. Air is skipped unless includeAir is set. fn may modify the store.
func (s *DiskStore) ForEach(fn func(x, y, z int, b world.Block), includeAir bool) error {
	n := s.Volume()
	buf := make([]byte, 2*min(n, forEachBatch))
	x, y, z := 0, 0, 0
	for start := 0; start < n; {
		cnt := min(n-start, forEachBatch)
		if err := s.readCells(start, buf[:2*cnt]); err != nil {
			return err
		}
		for j := 0; j < cnt; j++ {
			c := binary.BigEndian.Uint16(buf[2*j:])
			if c != 0 || includeAir {
				b := world.BlockFromCombined(c)
				if world.HasNBT(b.ID) {
					b.NBT = s.tiles.get(x, y, z)
				}
				fn(x, y, z, b)
			}
			if x++; x == s.width {
				x = 0
				if z++; z == s.length {
					z = 0
					y++
				}
			}
		}
		start += cnt
	}
	return nil
}

// readCells reads consecutive cells starting at index start into buf. The
// sequential file offset is left untouched.
func (s *DiskStore) readCells(start int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	s.lastAccess = s.opts.Now()
	if _, err := s.f.ReadAt(buf, HeaderSize+2*int64(start)); err != nil {
		return fmt.Errorf("read clipboard cells at %d: %w", start, err)
	}
	return nil
}
