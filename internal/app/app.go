// Package app wires a queue, its dispatcher, an in-memory world and the
// clipboard store together behind a small command console.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/OCharnyshevich/blockqueue/internal/authority"
	"github.com/OCharnyshevich/blockqueue/internal/clipboard"
	"github.com/OCharnyshevich/blockqueue/internal/config"
	"github.com/OCharnyshevich/blockqueue/internal/gamedata"
	"github.com/OCharnyshevich/blockqueue/internal/memworld"
	"github.com/OCharnyshevich/blockqueue/internal/queue"
	"github.com/OCharnyshevich/blockqueue/internal/storage"
	"github.com/OCharnyshevich/blockqueue/pkg/world"
	"github.com/OCharnyshevich/blockqueue/pkg/world/gen"
)

// App owns the authoritative executor and everything that runs on it.
type App struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *storage.Storage
	blocks  *gamedata.Blocks
	exec    *authority.Executor
	world   *memworld.World
	queue   *queue.Queue
	disp    *queue.Dispatcher
	clip    map[uuid.UUID]*clipboard.DiskStore
	current uuid.UUID

	closeOnce sync.Once
	closeErr  error
}

// New builds an App from cfg. The dispatcher starts ticking until ctx ends
// or Close is called.
func New(ctx context.Context, cfg *config.Config, store *storage.Storage, log *slog.Logger) (*App, error) {
	blocks, err := LoadMaterials(cfg.Materials)
	if err != nil {
		return nil, err
	}

	var generator gen.Generator
	switch cfg.GeneratorType {
	case "empty":
		generator = gen.EmptyGenerator{}
	default:
		generator = gen.NewFlatGenerator(0)
	}

	exec := authority.New(ctx, log)
	w := memworld.New(memworld.Config{
		Log:       log,
		Generator: generator,
		Materials: blocks,
		NoSky:     cfg.NoSky,
	})
	q := queue.New(queue.Config{
		Log:       log,
		World:     w,
		Materials: blocks,
		Executor:  exec,
		ChunkWait: cfg.ChunkWait(),
		Workers:   cfg.OptimizeWorkers,
	})
	disp := queue.NewDispatcher(q, queue.DispatcherConfig{
		Interval:   cfg.TickInterval(),
		Budget:     cfg.TickBudget(),
		MaxBatches: cfg.MaxBatchesPerTick,
	})
	disp.Start(ctx)

	log.Info("block queue started",
		"generator", cfg.GeneratorType,
		"materials", cfg.Materials,
		"blocks", blocks.Len(),
		"noSky", cfg.NoSky,
		"chunkWait", cfg.ChunkWait(),
		"tick", cfg.TickInterval(),
	)

	return &App{
		cfg:    cfg,
		log:    log,
		store:  store,
		blocks: blocks,
		exec:   exec,
		world:  w,
		queue:  q,
		disp:   disp,
		clip:   make(map[uuid.UUID]*clipboard.DiskStore),
	}, nil
}

// LoadMaterials returns the registered block registry called name, or reads
// name as a blocks.json file.
func LoadMaterials(name string) (*gamedata.Blocks, error) {
	if slices.Contains(gamedata.RegisteredVersions(), name) {
		return gamedata.Load(name)
	}
	blocks, err := gamedata.LoadBlocksFile(name)
	if err != nil {
		return nil, fmt.Errorf("materials %q: %w", name, err)
	}
	return blocks, nil
}

// Queue returns the block queue.
func (a *App) Queue() *queue.Queue { return a.queue }

// World returns the world batches are applied to.
func (a *App) World() *memworld.World { return a.world }

// Close stops the dispatcher, applies what is still pending and releases the
// clipboards. Clipboard files are kept. Later calls return the first result.
func (a *App) Close() error {
	a.closeOnce.Do(func() { a.closeErr = a.close() })
	return a.closeErr
}

func (a *App) close() error {
	var errs []error
	if err := a.disp.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.disp.Flush(context.Background()); err != nil {
		errs = append(errs, fmt.Errorf("flush on close: %w", err))
	}
	for _, cb := range a.clip {
		if err := cb.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.exec.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Region is an inclusive box of block positions.
type Region struct {
	Min, Max world.BlockPos
}

// NewRegion returns the box spanned by two corners.
func NewRegion(a, b world.BlockPos) Region {
	return Region{
		Min: world.BlockPos{X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)},
		Max: world.BlockPos{X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)},
	}
}

// Size returns the width, height and length of r.
func (r Region) Size() (w, h, l int) {
	return r.Max.X - r.Min.X + 1, r.Max.Y - r.Min.Y + 1, r.Max.Z - r.Min.Z + 1
}

// Volume returns the number of blocks in r.
func (r Region) Volume() int {
	w, h, l := r.Size()
	return w * h * l
}

// Fill queues b for every position in r and waits until the batches are
// applied. It returns the number of blocks queued.
func (a *App) Fill(ctx context.Context, r Region, b world.Block) (int, error) {
	e := a.queue.Editor()
	var n int
	for y := r.Min.Y; y <= r.Max.Y; y++ {
		if y < 0 || y >= world.Height {
			continue
		}
		for z := r.Min.Z; z <= r.Max.Z; z++ {
			for x := r.Min.X; x <= r.Max.X; x++ {
				e.SetBlock(x, y, z, b.ID, b.Data)
				if b.NBT != nil {
					e.SetTile(x, y, z, world.CloneTag(b.NBT))
				}
				n++
			}
		}
	}
	a.log.Debug("fill queued", "blocks", n, "batches", a.queue.Size())
	return n, a.disp.Flush(ctx)
}

// Copy reads r into a new clipboard file. Cells are read through a queue
// Reader, so unloaded chunks are loaded first. The clipboard origin is r's
// minimum corner.
func (a *App) Copy(ctx context.Context, r Region) (uuid.UUID, *clipboard.DiskStore, error) {
	if err := a.disp.Flush(ctx); err != nil {
		return uuid.Nil, nil, err
	}
	id, path := a.store.NewClipboardPath()
	w, h, l := r.Size()
	cb, err := clipboard.Create(path, w, h, l, a.clipboardOptions())
	if err != nil {
		return uuid.Nil, nil, err
	}
	if err := cb.SetOrigin(r.Min.X, r.Min.Y, r.Min.Z); err != nil {
		cb.Remove()
		return uuid.Nil, nil, err
	}

	rd := a.queue.Reader()
	i := 0
	for y := 0; y < h; y++ {
		for z := 0; z < l; z++ {
			for x := 0; x < w; x++ {
				c, err := rd.CombinedBlock(ctx, r.Min.X+x, r.Min.Y+y, r.Min.Z+z)
				if err != nil {
					cb.Remove()
					return uuid.Nil, nil, fmt.Errorf("copy %d,%d,%d: %w", r.Min.X+x, r.Min.Y+y, r.Min.Z+z, err)
				}
				if c != 0 {
					cb.SetCombined(i, c)
				}
				i++
			}
		}
	}
	// Tile data and entities are only visible through the world itself.
	cb.ForEach(func(x, y, z int, b world.Block) {
		if !world.HasNBT(b.ID) {
			return
		}
		if wb := a.world.Block(r.Min.X+x, r.Min.Y+y, r.Min.Z+z); wb.NBT != nil {
			cb.SetTile(x, y, z, world.CloneTag(wb.NBT))
		}
	}, false)
	a.copyEntities(r, cb)

	a.clip[id] = cb
	a.current = id
	a.log.Info("copied region", "clipboard", id, "size", fmt.Sprintf("%d×%d×%d", w, h, l))
	return id, cb, nil
}

func (a *App) copyEntities(r Region, cb *clipboard.DiskStore) {
	minX, minZ := world.ChunkOf(r.Min.X, r.Min.Z)
	maxX, maxZ := world.ChunkOf(r.Max.X, r.Max.Z)
	for cx := minX; cx <= maxX; cx++ {
		for cz := minZ; cz <= maxZ; cz++ {
			for _, e := range a.world.Entities(cx, cz) {
				p := e.BlockPos()
				if p.X < r.Min.X || p.X > r.Max.X || p.Y < r.Min.Y || p.Y > r.Max.Y || p.Z < r.Min.Z || p.Z > r.Max.Z {
					continue
				}
				e.ID = uuid.Nil
				e.Pos = e.Pos.Sub(vec(r.Min))
				cb.CreateEntity(e)
			}
		}
	}
}

// Clipboard returns an open clipboard, opening its file from storage if
// needed. A nil id means the most recent copy.
func (a *App) Clipboard(id uuid.UUID) (*clipboard.DiskStore, error) {
	if id == uuid.Nil {
		id = a.current
	}
	if cb, ok := a.clip[id]; ok {
		return cb, nil
	}
	if id == uuid.Nil {
		return nil, errors.New("no clipboard")
	}
	cb, err := clipboard.Open(a.store.ClipboardPath(id), a.clipboardOptions())
	if err != nil {
		return nil, err
	}
	a.clip[id] = cb
	a.current = id
	return cb, nil
}

// Paste queues the non-air blocks and the entities of cb with its minimum
// corner at at, and waits until they are applied. It returns the number of
// blocks queued.
func (a *App) Paste(ctx context.Context, cb *clipboard.DiskStore, at world.BlockPos) (int, error) {
	e := a.queue.Editor()
	var n int
	err := cb.ForEach(func(x, y, z int, b world.Block) {
		wx, wy, wz := at.X+x, at.Y+y, at.Z+z
		e.SetBlock(wx, wy, wz, b.ID, b.Data)
		if b.NBT != nil {
			e.SetTile(wx, wy, wz, world.CloneTag(b.NBT))
		}
		n++
	}, false)
	if err != nil {
		return n, err
	}
	for _, ent := range cb.Entities() {
		ent.ID = uuid.New()
		ent.Pos = ent.Pos.Add(vec(at))
		e.SetEntity(ent)
	}
	return n, a.disp.Flush(ctx)
}

// Forget closes and deletes a clipboard. A nil id means the most recent
// copy.
func (a *App) Forget(id uuid.UUID) error {
	if id == uuid.Nil {
		id = a.current
	}
	cb, err := a.Clipboard(id)
	if err != nil {
		return err
	}
	delete(a.clip, id)
	if a.current == id {
		a.current = uuid.Nil
	}
	return cb.Remove()
}

func (a *App) clipboardOptions() clipboard.Options {
	return clipboard.Options{
		Log:           a.log,
		IdleTimeout:   a.cfg.IdleTimeout(),
		CheckInterval: a.cfg.IdleCheck(),
	}
}

func vec(p world.BlockPos) mgl64.Vec3 {
	return mgl64.Vec3{float64(p.X), float64(p.Y), float64(p.Z)}
}
