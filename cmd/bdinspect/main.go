// Command bdinspect prints the header of a clipboard file and a histogram of
// the blocks it holds.
package main

import (
	"cmp"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/OCharnyshevich/blockqueue/internal/app"
	"github.com/OCharnyshevich/blockqueue/internal/clipboard"
	"github.com/OCharnyshevich/blockqueue/pkg/world"
)

func main() {
	var (
		materials = flag.String("materials", "pc-1.8", "built-in block data version or path to a blocks.json")
		top       = flag.Int("top", 20, "histogram rows to print (0 = all)")
		withData  = flag.Bool("data", false, "count id:data pairs instead of ids")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] file.bd...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	blocks, err := app.LoadMaterials(*materials)
	if err != nil {
		log.Error("load materials", "error", err)
		os.Exit(1)
	}

	code := 0
	for _, path := range flag.Args() {
		if err := inspect(os.Stdout, log, path, func(id int) string {
			if b, ok := blocks.ByID(id); ok {
				return b.Name
			}
			return "unknown"
		}, *top, *withData); err != nil {
			log.Error("inspect", "path", path, "error", err)
			code = 1
		}
	}
	os.Exit(code)
}

type count struct {
	cell uint16
	n    int
}

func inspect(out io.Writer, log *slog.Logger, path string, name func(id int) string, top int, withData bool) error {
	s, err := clipboard.Open(path, clipboard.Options{Log: log})
	if err != nil {
		return err
	}
	defer s.Close()

	w, h, l := s.Dimensions()
	ox, oy, oz, err := s.Origin()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s\n  size    %d×%d×%d (%d cells)\n  origin  %d %d %d\n", path, w, h, l, s.Volume(), ox, oy, oz)

	hist := make(map[uint16]int)
	nonAir := 0
	err = s.ForEach(func(_, _, _ int, b world.Block) {
		c := world.Combined(b.ID, 0)
		if withData {
			c = b.Combined()
		}
		hist[c]++
		nonAir++
	}, false)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  blocks  %d non-air, %d kinds\n", nonAir, len(hist))

	counts := make([]count, 0, len(hist))
	for c, n := range hist {
		counts = append(counts, count{c, n})
	}
	slices.SortFunc(counts, func(a, b count) int {
		return cmp.Or(cmp.Compare(b.n, a.n), cmp.Compare(a.cell, b.cell))
	})
	if top > 0 && len(counts) > top {
		counts = counts[:top]
	}
	for _, c := range counts {
		id := world.CellID(c.cell)
		label := fmt.Sprint(id)
		if withData {
			label = fmt.Sprintf("%d:%d", id, world.CellData(c.cell))
		}
		fmt.Fprintf(out, "  %8d  %-7s %s\n", c.n, label, name(id))
	}
	return nil
}
