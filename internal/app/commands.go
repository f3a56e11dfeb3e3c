package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/OCharnyshevich/blockqueue/internal/queue"
	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

type command struct {
	name    string
	usage   string
	desc    string
	handler func(ctx context.Context, a *App, out io.Writer, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "help", usage: "help", desc: "Show available commands", handler: cmdHelp},
		{name: "set", usage: "set <x> <y> <z> <block>", desc: "Queue one block", handler: cmdSet},
		{name: "fill", usage: "fill <x1> <y1> <z1> <x2> <y2> <z2> <block>", desc: "Fill a box and apply it", handler: cmdFill},
		{name: "get", usage: "get <x> <y> <z>", desc: "Show the applied block and its light", handler: cmdGet},
		{name: "spawn", usage: "spawn <type> <x> <y> <z>", desc: "Queue an entity", handler: cmdSpawn},
		{name: "biome", usage: "biome <x> <z> <id>", desc: "Queue a biome change", handler: cmdBiome},
		{name: "copy", usage: "copy <x1> <y1> <z1> <x2> <y2> <z2>", desc: "Copy a box into a new clipboard", handler: cmdCopy},
		{name: "paste", usage: "paste <x> <y> <z> [clipboard]", desc: "Paste a clipboard", handler: cmdPaste},
		{name: "clipboards", usage: "clipboards", desc: "List clipboard files", handler: cmdClipboards},
		{name: "forget", usage: "forget [clipboard]", desc: "Delete a clipboard", handler: cmdForget},
		{name: "flush", usage: "flush", desc: "Apply every pending batch", handler: cmdFlush},
		{name: "optimize", usage: "optimize", desc: "Compact pending batches", handler: cmdOptimize},
		{name: "clear", usage: "clear", desc: "Drop pending batches", handler: cmdClear},
		{name: "regen", usage: "regen <cx> <cz>", desc: "Regenerate a chunk", handler: cmdRegen},
		{name: "stage", usage: "stage [active|inactive|none]", desc: "Show or set the queue stage", handler: cmdStage},
		{name: "status", usage: "status", desc: "Show queue and world state", handler: cmdStatus},
	}
}

// ErrUnknownCommand is returned by Exec for a command name it does not know.
var ErrUnknownCommand = errors.New("unknown command")

// usageError reports bad arguments for a command.
type usageError struct{ usage string }

func (e usageError) Error() string { return "usage: " + e.usage }

// Exec runs one console line and writes its output to out. Blank lines and
// lines starting with # are ignored.
func (a *App) Exec(ctx context.Context, line string, out io.Writer) error {
	parts := strings.Fields(line)
	if len(parts) == 0 || strings.HasPrefix(parts[0], "#") {
		return nil
	}
	name := strings.ToLower(parts[0])
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		err := cmd.handler(ctx, a, out, parts[1:])
		var ue usageError
		if errors.As(err, &ue) {
			return usageError{usage: cmd.usage}
		}
		return err
	}
	return fmt.Errorf("%w: %s (type help for a list of commands)", ErrUnknownCommand, name)
}

var errUsage = usageError{}

func cmdHelp(_ context.Context, _ *App, out io.Writer, _ []string) error {
	for _, cmd := range commands {
		fmt.Fprintf(out, "%-48s %s\n", cmd.usage, cmd.desc)
	}
	return nil
}

func cmdSet(_ context.Context, a *App, out io.Writer, args []string) error {
	if len(args) != 4 {
		return errUsage
	}
	p, err := parsePos(args[:3])
	if err != nil {
		return err
	}
	b, err := a.parseBlock(args[3])
	if err != nil {
		return err
	}
	a.queue.Editor().SetBlock(p.X, p.Y, p.Z, b.ID, b.Data)
	fmt.Fprintf(out, "queued %d:%d at %d %d %d (%d batches pending)\n", b.ID, b.Data, p.X, p.Y, p.Z, a.queue.Size())
	return nil
}

func cmdFill(ctx context.Context, a *App, out io.Writer, args []string) error {
	if len(args) != 7 {
		return errUsage
	}
	r, err := parseRegion(args[:6])
	if err != nil {
		return err
	}
	b, err := a.parseBlock(args[6])
	if err != nil {
		return err
	}
	n, err := a.Fill(ctx, r, b)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "filled %d blocks with %d:%d\n", n, b.ID, b.Data)
	return nil
}

func cmdGet(ctx context.Context, a *App, out io.Writer, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	p, err := parsePos(args)
	if err != nil {
		return err
	}
	rd := a.queue.Reader()
	c, err := rd.CombinedBlock(ctx, p.X, p.Y, p.Z)
	if err != nil {
		return err
	}
	light, err := rd.Light(ctx, p.X, p.Y, p.Z)
	if err != nil {
		return err
	}
	ob, err := rd.OpacityBrightness(ctx, p.X, p.Y, p.Z)
	if err != nil {
		return err
	}
	id, data := world.CellID(c), world.CellData(c)
	name := "unknown"
	if info, ok := a.blocks.ByID(id); ok {
		name = info.Name
	}
	fmt.Fprintf(out, "%d %d %d: %s (%d:%d) light=%d opacity=%d brightness=%d\n",
		p.X, p.Y, p.Z, name, id, data, light, ob>>8, ob&0xFF)
	if b := a.world.Block(p.X, p.Y, p.Z); b.NBT != nil {
		fmt.Fprintf(out, "tile: %v\n", b.NBT)
	}
	return nil
}

func cmdSpawn(_ context.Context, a *App, out io.Writer, args []string) error {
	if len(args) != 4 {
		return errUsage
	}
	var v mgl64.Vec3
	for i, s := range args[1:] {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("coordinate %q: %w", s, err)
		}
		v[i] = f
	}
	e := world.NewEntity(args[0], v)
	a.queue.Editor().SetEntity(e)
	fmt.Fprintf(out, "queued %s %s\n", e.Type, e.ID)
	return nil
}

func cmdBiome(_ context.Context, a *App, out io.Writer, args []string) error {
	if len(args) != 3 {
		return errUsage
	}
	x, errX := strconv.Atoi(args[0])
	z, errZ := strconv.Atoi(args[1])
	id, errB := strconv.ParseUint(args[2], 10, 8)
	if err := errors.Join(errX, errZ, errB); err != nil {
		return err
	}
	a.queue.Editor().SetBiome(x, z, byte(id))
	fmt.Fprintf(out, "queued biome %d at %d %d\n", id, x, z)
	return nil
}

func cmdCopy(ctx context.Context, a *App, out io.Writer, args []string) error {
	if len(args) != 6 {
		return errUsage
	}
	r, err := parseRegion(args)
	if err != nil {
		return err
	}
	id, cb, err := a.Copy(ctx, r)
	if err != nil {
		return err
	}
	w, h, l := cb.Dimensions()
	fmt.Fprintf(out, "copied %d×%d×%d to clipboard %s (%d tiles, %d entities)\n",
		w, h, l, id, cb.TileCount(), len(cb.Entities()))
	return nil
}

func cmdPaste(ctx context.Context, a *App, out io.Writer, args []string) error {
	if len(args) != 3 && len(args) != 4 {
		return errUsage
	}
	p, err := parsePos(args[:3])
	if err != nil {
		return err
	}
	var id uuid.UUID
	if len(args) == 4 {
		if id, err = uuid.Parse(args[3]); err != nil {
			return fmt.Errorf("clipboard id: %w", err)
		}
	}
	cb, err := a.Clipboard(id)
	if err != nil {
		return err
	}
	n, err := a.Paste(ctx, cb, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "pasted %d blocks at %d %d %d\n", n, p.X, p.Y, p.Z)
	return nil
}

func cmdClipboards(_ context.Context, a *App, out io.Writer, _ []string) error {
	ids, err := a.store.Clipboards()
	if err != nil {
		return err
	}
	for _, id := range ids {
		mark := " "
		if id == a.current {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %s\n", mark, id)
	}
	fmt.Fprintf(out, "%d clipboards in %s\n", len(ids), a.store.ClipboardDir())
	return nil
}

func cmdForget(_ context.Context, a *App, out io.Writer, args []string) error {
	var id uuid.UUID
	switch len(args) {
	case 0:
	case 1:
		var err error
		if id, err = uuid.Parse(args[0]); err != nil {
			return fmt.Errorf("clipboard id: %w", err)
		}
	default:
		return errUsage
	}
	if err := a.Forget(id); err != nil {
		return err
	}
	fmt.Fprintln(out, "clipboard deleted")
	return nil
}

func cmdFlush(ctx context.Context, a *App, out io.Writer, _ []string) error {
	n := a.queue.Size()
	if err := a.disp.Flush(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "applied %d batches\n", n)
	return nil
}

func cmdOptimize(ctx context.Context, a *App, out io.Writer, _ []string) error {
	if err := a.queue.Optimize(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "optimized %d batches\n", a.queue.Size())
	return nil
}

func cmdClear(_ context.Context, a *App, out io.Writer, _ []string) error {
	fmt.Fprintf(out, "dropped %d batches\n", a.queue.Clear())
	return nil
}

func cmdRegen(ctx context.Context, a *App, out io.Writer, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	cx, errX := strconv.ParseInt(args[0], 10, 32)
	cz, errZ := strconv.ParseInt(args[1], 10, 32)
	if err := errors.Join(errX, errZ); err != nil {
		return err
	}
	ok, err := a.queue.RegenerateChunk(ctx, int32(cx), int32(cz))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("chunk %d,%d was not regenerated", cx, cz)
	}
	fmt.Fprintf(out, "regenerated chunk %d,%d\n", cx, cz)
	return nil
}

func cmdStage(_ context.Context, a *App, out io.Writer, args []string) error {
	switch len(args) {
	case 0:
	case 1:
		var s queue.Stage
		switch strings.ToLower(args[0]) {
		case "active":
			s = queue.StageActive
		case "inactive":
			s = queue.StageInactive
		case "none":
			s = queue.StageNone
		default:
			return errUsage
		}
		a.queue.SetStage(s)
	default:
		return errUsage
	}
	fmt.Fprintf(out, "stage: %s\n", a.queue.Stage())
	return nil
}

func cmdStatus(_ context.Context, a *App, out io.Writer, _ []string) error {
	fmt.Fprintf(out, "pending batches: %d\n", a.queue.Size())
	fmt.Fprintf(out, "stage: %s\n", a.queue.Stage())
	fmt.Fprintf(out, "loaded chunks: %d\n", a.world.LoadedChunks())
	fmt.Fprintf(out, "open clipboards: %d\n", len(a.clip))
	return nil
}

// parseBlock accepts "id", "id:data", "name" or "name:data". Names may carry
// the minecraft: namespace.
func (a *App) parseBlock(s string) (world.Block, error) {
	name, dataStr, hasData := strings.Cut(strings.TrimPrefix(s, "minecraft:"), ":")
	var b world.Block
	if id, err := strconv.Atoi(name); err == nil {
		b.ID = id
	} else if info, ok := a.blocks.ByName(name); ok {
		b.ID = info.ID
	} else {
		return b, fmt.Errorf("unknown block %q", name)
	}
	if hasData {
		d, err := strconv.Atoi(dataStr)
		if err != nil || d < 0 || d > 15 {
			return b, fmt.Errorf("block data %q must be 0-15", dataStr)
		}
		b.Data = d
	}
	if b.ID < 0 || b.ID > 4095 {
		return b, fmt.Errorf("block id %d out of range", b.ID)
	}
	return b, nil
}

func parsePos(args []string) (world.BlockPos, error) {
	var v [3]int
	for i, s := range args {
		n, err := strconv.Atoi(s)
		if err != nil {
			return world.BlockPos{}, fmt.Errorf("coordinate %q: %w", s, err)
		}
		v[i] = n
	}
	return world.BlockPos{X: v[0], Y: v[1], Z: v[2]}, nil
}

func parseRegion(args []string) (Region, error) {
	a, err := parsePos(args[:3])
	if err != nil {
		return Region{}, err
	}
	b, err := parsePos(args[3:6])
	if err != nil {
		return Region{}, err
	}
	return NewRegion(a, b), nil
}
