// Command dmd downloads block data from minecraft-data and checks that it
// decodes, so it can be passed to blockqueue with -materials.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	get "github.com/hashicorp/go-getter"

	"github.com/OCharnyshevich/blockqueue/internal/gamedata"
)

func main() {
	var (
		base     = flag.String("base", "https://github.com/PrismarineJS/minecraft-data.git", "base url")
		platform = flag.String("platform", "pc", "platform of the data")
		ver      = flag.String("version", "1.8", "game version")
		out      = flag.String("o", "./data", "output dir path")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(log, *base, *platform, *ver, *out); err != nil {
		log.Error("download failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, base, platform, ver, out string) error {
	switch {
	case out == "":
		return fmt.Errorf("output dir path required")
	case platform == "":
		return fmt.Errorf("platform required")
	case ver == "":
		return fmt.Errorf("version required")
	}

	path := filepath.Join(out, fmt.Sprintf("%s-%s", platform, ver))
	if err := os.RemoveAll(path); err != nil {
		return err
	}

	// https://github.com/PrismarineJS/minecraft-data/tree/master/data/pc/1.8
	url := fmt.Sprintf("git::%s//data/%s/%s", base, platform, ver)
	log.Info("start downloading", "url", url, "path", path)
	if err := get.Get(path, url); err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}

	blocksPath := filepath.Join(path, "blocks.json")
	blocks, err := gamedata.LoadBlocksFile(blocksPath)
	if err != nil {
		return err
	}
	log.Info("done downloading", "materials", blocksPath, "blocks", blocks.Len())
	return nil
}
