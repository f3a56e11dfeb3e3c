package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/OCharnyshevich/blockqueue/internal/app"
	"github.com/OCharnyshevich/blockqueue/internal/config"
	"github.com/OCharnyshevich/blockqueue/internal/storage"
)

func main() {
	cfg := config.DefaultConfig()

	dir := flag.String("dir", ".", "data directory holding config.toml and clipboards")
	script := flag.String("script", "", "run console commands from this file instead of stdin")
	save := flag.Bool("save-config", false, "write the effective config to config.toml")
	flag.IntVar(&cfg.ChunkWaitMS, "chunk-wait", cfg.ChunkWaitMS, "milliseconds a read waits for a chunk load (0 = skip unloaded chunks)")
	flag.IntVar(&cfg.OptimizeWorkers, "workers", cfg.OptimizeWorkers, "goroutines used to optimize batches (0 = GOMAXPROCS)")
	flag.IntVar(&cfg.TickIntervalMS, "tick", cfg.TickIntervalMS, "dispatcher tick in milliseconds")
	flag.IntVar(&cfg.TickBudgetMS, "tick-budget", cfg.TickBudgetMS, "milliseconds spent applying batches per tick")
	flag.IntVar(&cfg.MaxBatchesPerTick, "max-batches", cfg.MaxBatchesPerTick, "batches applied per tick (0 = no cap)")
	flag.StringVar(&cfg.ClipboardDir, "clipboard-dir", cfg.ClipboardDir, "clipboard directory, relative to -dir")
	flag.IntVar(&cfg.IdleTimeoutMS, "idle-timeout", cfg.IdleTimeoutMS, "close idle clipboard files after this many milliseconds")
	flag.IntVar(&cfg.IdleCheckMS, "idle-check", cfg.IdleCheckMS, "clipboard idle check interval in milliseconds")
	flag.BoolVar(&cfg.NoSky, "no-sky", cfg.NoSky, "world without sky light")
	flag.StringVar(&cfg.GeneratorType, "generator", cfg.GeneratorType, "world generator: flat or empty")
	flag.StringVar(&cfg.Materials, "materials", cfg.Materials, "built-in block data version or path to a blocks.json")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := storage.New(*dir, "", log)
	if err != nil {
		log.Error("open data directory", "error", err)
		os.Exit(1)
	}
	fromFile := config.DefaultConfig()
	if loaded, err := store.LoadConfig(fromFile); err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	} else if loaded {
		config.Merge(cfg, fromFile, explicit)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *save {
		if err := store.SaveConfig(cfg); err != nil {
			log.Error("save config", "error", err)
			os.Exit(1)
		}
		log.Info("saved config", "path", store.ConfigPath())
	}
	if store, err = storage.New(*dir, cfg.ClipboardDir, log); err != nil {
		log.Error("open clipboard directory", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, store, log)
	if err != nil {
		log.Error("start", "error", err)
		os.Exit(1)
	}

	in := io.Reader(os.Stdin)
	if *script != "" {
		f, err := os.Open(*script)
		if err != nil {
			log.Error("open script", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	code := console(ctx, a, in, *script == "")
	if err := a.Close(); err != nil {
		log.Error("shutdown", "error", err)
		code = 1
	}
	os.Exit(code)
}

// console runs lines from in until EOF or ctx ends. A script stops at the
// first failing command; an interactive session keeps going.
func console(ctx context.Context, a *app.App, in io.Reader, interactive bool) int {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if interactive {
			fmt.Fprint(os.Stdout, "> ")
		}
		select {
		case <-ctx.Done():
			return 0
		case line, ok := <-lines:
			if !ok {
				return 0
			}
			if err := a.Exec(ctx, line, os.Stdout); err != nil {
				fmt.Fprintln(os.Stderr, err)
				if !interactive {
					return 1
				}
			}
		}
	}
}
