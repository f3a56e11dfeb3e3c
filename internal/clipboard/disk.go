// Package clipboard stores clipboard volumes in flat files so large copies do
// not have to be held in memory.
//
// A .bd file is a 14 byte big-endian header followed by one uint16 cell per
// block, (id<<4)|data, at offset 14 + 2*(x + y*width*length + z*width):
//
//	0  uint16 flags
//	2  uint16 width
//	4  uint16 height
//	6  uint16 length
//	8  int16  origin x, y, z
//	14 cells
//
// Tile entity data and entities are kept in memory next to the file.
package clipboard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

// HeaderSize is the size in bytes of the .bd header.
const HeaderSize = 14

const (
	offDims   = 2
	offOrigin = 8
)

var (
	// ErrInvalidDimensions is returned for dimensions outside [1, 65535].
	ErrInvalidDimensions = errors.New("clipboard: invalid dimensions")
	// ErrInvalidHeader is returned by Open for a file too short to hold a
	// header.
	ErrInvalidHeader = errors.New("clipboard: invalid header")
	// ErrClosed is returned after Close or Remove.
	ErrClosed = errors.New("clipboard: store closed")
)

// Options tune a DiskStore.
type Options struct {
	// Log receives I/O failures. Defaults to slog.Default().
	Log *slog.Logger
	// IdleTimeout is how long the file may go unused before its handle is
	// closed. Defaults to 10s.
	IdleTimeout time.Duration
	// CheckInterval is how often idleness is checked. Defaults to 200ms.
	CheckInterval time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Log == nil {
		o.Log = slog.Default()
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = 10 * time.Second
	}
	if o.CheckInterval <= 0 {
		o.CheckInterval = 200 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// DiskStore is a block volume backed by a file. The file handle is opened on
// first use and closed again once the store has been idle for a while; the
// next access reopens it.
//
// A DiskStore must not be used by more than one goroutine at a time. Read
// failures are logged and yield air, write failures are logged and dropped.
type DiskStore struct {
	path string
	log  *slog.Logger
	opts Options

	width, height, length int
	area                  int

	// mu guards the handle against the idle closer.
	mu         sync.Mutex
	f          *os.File
	lastAccess time.Time
	// last is the index of the cell the file offset was left behind, or -1
	// when the offset is unknown.
	last   int
	closed bool

	stop    chan struct{}
	closers sync.WaitGroup
	once    sync.Once

	tiles    tileTable
	entities entitySet
}

func newStore(path string, opts Options) *DiskStore {
	opts = opts.withDefaults()
	return &DiskStore{
		path:  path,
		log:   opts.Log.With("clipboard", filepath.Base(path)),
		opts:  opts,
		last:  -1,
		stop:  make(chan struct{}),
		tiles: newTileTable(),
	}
}

// Create creates the file at path, along with its parent directories, sized
// for a width×height×length volume. Any existing file is replaced by a fresh
// header and air cells.
func Create(path string, width, height, length int, opts Options) (*DiskStore, error) {
	if err := checkDimensions(width, height, length); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create clipboard dir: %w", err)
	}
	if err := os.Truncate(path, 0); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reset clipboard: %w", err)
	}
	s := newStore(path, opts)
	s.setDims(width, height, length)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.openLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open opens an existing .bd file, taking the dimensions from its header.
func Open(path string, opts Options) (*DiskStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open clipboard: %w", err)
	}
	var hdr [HeaderSize]byte
	_, err = io.ReadFull(f, hdr[:])
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidHeader, path, err)
	}

	w := int(binary.BigEndian.Uint16(hdr[offDims:]))
	h := int(binary.BigEndian.Uint16(hdr[offDims+2:]))
	l := int(binary.BigEndian.Uint16(hdr[offDims+4:]))
	if err := checkDimensions(w, h, l); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s := newStore(path, opts)
	s.setDims(w, h, l)
	return s, nil
}

func checkDimensions(w, h, l int) error {
	for _, v := range [...]int{w, h, l} {
		if v < 1 || v > math.MaxUint16 {
			return fmt.Errorf("%w: %d×%d×%d", ErrInvalidDimensions, w, h, l)
		}
	}
	return nil
}

func (s *DiskStore) setDims(w, h, l int) {
	s.width, s.height, s.length = w, h, l
	s.area = w * l
}

func (s *DiskStore) fileSize() int64 {
	return HeaderSize + 2*int64(s.Volume())
}

// Path returns the path of the backing file.
func (s *DiskStore) Path() string { return s.path }

// Dimensions returns width, height and length of the volume.
func (s *DiskStore) Dimensions() (width, height, length int) {
	return s.width, s.height, s.length
}

// Volume returns the number of cells.
func (s *DiskStore) Volume() int {
	return s.width * s.height * s.length
}

// Index returns the cell index of x, y, z.
func (s *DiskStore) Index(x, y, z int) int {
	return x + y*s.area + z*s.width
}

func (s *DiskStore) contains(x, y, z int) bool {
	return x >= 0 && x < s.width && y >= 0 && y < s.height && z >= 0 && z < s.length
}

// SetDimensions resizes the volume and rewrites the header. Cells are not
// moved, so existing contents are only meaningful if the width and length
// are unchanged.
func (s *DiskStore) SetDimensions(width, height, length int) error {
	if err := checkDimensions(width, height, length); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	s.setDims(width, height, length)
	if err := s.f.Truncate(s.fileSize()); err != nil {
		return fmt.Errorf("resize clipboard: %w", err)
	}
	s.last = -1
	return s.writeDimsLocked()
}

func (s *DiskStore) writeDimsLocked() error {
	var b [6]byte
	binary.BigEndian.PutUint16(b[0:], uint16(s.width))
	binary.BigEndian.PutUint16(b[2:], uint16(s.height))
	binary.BigEndian.PutUint16(b[4:], uint16(s.length))
	if _, err := s.f.WriteAt(b[:], offDims); err != nil {
		return fmt.Errorf("write clipboard header: %w", err)
	}
	return nil
}

// SetOrigin stores the origin offset in the header. Components are
// truncated to 16 bits.
func (s *DiskStore) SetOrigin(x, y, z int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return err
	}
	var b [6]byte
	binary.BigEndian.PutUint16(b[0:], uint16(int16(x)))
	binary.BigEndian.PutUint16(b[2:], uint16(int16(y)))
	binary.BigEndian.PutUint16(b[4:], uint16(int16(z)))
	if _, err := s.f.WriteAt(b[:], offOrigin); err != nil {
		return fmt.Errorf("write clipboard origin: %w", err)
	}
	return nil
}

// Origin reads the origin offset from the header.
func (s *DiskStore) Origin() (x, y, z int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return 0, 0, 0, err
	}
	var b [6]byte
	if _, err := s.f.ReadAt(b[:], offOrigin); err != nil {
		return 0, 0, 0, fmt.Errorf("read clipboard origin: %w", err)
	}
	return int(int16(binary.BigEndian.Uint16(b[0:]))),
		int(int16(binary.BigEndian.Uint16(b[2:]))),
		int(int16(binary.BigEndian.Uint16(b[4:]))), nil
}

// Block returns the block at x, y, z with its tile data.
func (s *DiskStore) Block(x, y, z int) world.Block {
	if !s.contains(x, y, z) {
		return world.Air
	}
	b := world.BlockFromCombined(s.Combined(s.Index(x, y, z)))
	if world.HasNBT(b.ID) {
		b.NBT = s.tiles.get(x, y, z)
	}
	return b
}

// SetBlock stores b at x, y, z. For blocks that carry tile data, b.NBT
// replaces any stored tile; other blocks drop it.
func (s *DiskStore) SetBlock(x, y, z int, b world.Block) bool {
	if !s.contains(x, y, z) {
		return false
	}
	if !s.SetCombined(s.Index(x, y, z), b.Combined()) {
		return false
	}
	if world.HasNBT(b.ID) {
		s.tiles.set(x, y, z, b.NBT)
	} else {
		s.tiles.set(x, y, z, nil)
	}
	return true
}

// SetTile stores tile data for x, y, z. A nil tag removes it.
func (s *DiskStore) SetTile(x, y, z int, tag world.Tag) bool {
	if !s.contains(x, y, z) {
		return false
	}
	s.tiles.set(x, y, z, tag)
	return true
}

// Tile returns the tile data stored for x, y, z.
func (s *DiskStore) Tile(x, y, z int) (world.Tag, bool) {
	t := s.tiles.get(x, y, z)
	return t, t != nil
}

// TileCount returns the number of stored tiles.
func (s *DiskStore) TileCount() int {
	return s.tiles.len()
}

// Combined returns the cell at index i, or 0 if it cannot be read.
func (s *DiskStore) Combined(i int) uint16 {
	c, err := s.update(i, true, nil)
	if err != nil {
		s.log.Error("failed to read clipboard cell", "index", i, "error", err)
		return 0
	}
	return c
}

// SetCombined overwrites the cell at index i.
func (s *DiskStore) SetCombined(i int, combined uint16) bool {
	_, err := s.update(i, false, func(uint16) uint16 { return combined })
	if err != nil {
		s.log.Error("failed to write clipboard cell", "index", i, "error", err)
		return false
	}
	return true
}

// SetID replaces the block id of the cell at index i, keeping its data.
func (s *DiskStore) SetID(i, id int) {
	s.modify(i, func(c uint16) uint16 {
		return world.Combined(id, world.CellData(c))
	})
}

// SetData replaces the data value of the cell at index i, keeping its id.
func (s *DiskStore) SetData(i, data int) {
	s.modify(i, func(c uint16) uint16 {
		return world.Combined(world.CellID(c), data)
	})
}

// SetAdd adds add to the block id of the cell at index i. add holds the high
// bits of an id above 255, already shifted left by 8.
func (s *DiskStore) SetAdd(i, add int) {
	s.modify(i, func(c uint16) uint16 {
		return c + uint16(add<<4)
	})
}

func (s *DiskStore) modify(i int, fn func(uint16) uint16) {
	if _, err := s.update(i, true, fn); err != nil {
		s.log.Error("failed to update clipboard cell", "index", i, "error", err)
	}
}

// update reads the cell at index i if read is set and, if fn is non-nil,
// writes fn of it back. Runs of increasing indexes skip the seek.
func (s *DiskStore) update(i int, read bool, fn func(uint16) uint16) (uint16, error) {
	if i < 0 || i >= s.Volume() {
		return 0, fmt.Errorf("index %d outside volume of %d", i, s.Volume())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenLocked(); err != nil {
		return 0, err
	}
	s.lastAccess = s.opts.Now()

	off := HeaderSize + 2*int64(i)
	if s.last < 0 || i != s.last+1 {
		if _, err := s.f.Seek(off, io.SeekStart); err != nil {
			s.last = -1
			return 0, err
		}
	}
	// The offset is unknown until the cell has been fully handled.
	s.last = -1

	var b [2]byte
	if read {
		if _, err := io.ReadFull(s.f, b[:]); err != nil {
			return 0, err
		}
		if fn == nil {
			s.last = i
			return binary.BigEndian.Uint16(b[:]), nil
		}
		if _, err := s.f.Seek(off, io.SeekStart); err != nil {
			return 0, err
		}
	}
	c := fn(binary.BigEndian.Uint16(b[:]))
	binary.BigEndian.PutUint16(b[:], c)
	if _, err := s.f.Write(b[:]); err != nil {
		return 0, err
	}
	s.last = i
	return c, nil
}
