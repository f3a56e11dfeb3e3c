package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config holds the settings of the queue, the dispatcher and the clipboard
// store.
type Config struct {
	ChunkWaitMS       int    `toml:"chunk_wait_ms"`        // wait for an off-thread chunk load (0 = skip unloaded chunks)
	OptimizeWorkers   int    `toml:"optimize_workers"`     // 0 = GOMAXPROCS
	TickIntervalMS    int    `toml:"tick_interval_ms"`     // dispatcher tick
	TickBudgetMS      int    `toml:"tick_budget_ms"`       // time spent applying batches per tick
	MaxBatchesPerTick int    `toml:"max_batches_per_tick"` // 0 = no cap
	ClipboardDir      string `toml:"clipboard_dir"`
	IdleTimeoutMS     int    `toml:"idle_timeout_ms"` // close idle clipboard files after this long
	IdleCheckMS       int    `toml:"idle_check_ms"`
	NoSky             bool   `toml:"no_sky"`
	GeneratorType     string `toml:"generator_type"` // "flat" or "empty"
	Materials         string `toml:"materials"`      // blocks.json path or a built-in version name
	LogLevel          string `toml:"log_level"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ChunkWaitMS:    1000,
		TickIntervalMS: 50,
		TickBudgetMS:   25,
		ClipboardDir:   "clipboard",
		IdleTimeoutMS:  10000,
		IdleCheckMS:    200,
		GeneratorType:  "flat",
		Materials:      "pc-1.8",
		LogLevel:       "info",
	}
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["chunk-wait"] {
		cfg.ChunkWaitMS = fromFile.ChunkWaitMS
	}
	if !explicitFlags["workers"] {
		cfg.OptimizeWorkers = fromFile.OptimizeWorkers
	}
	if !explicitFlags["tick"] {
		cfg.TickIntervalMS = fromFile.TickIntervalMS
	}
	if !explicitFlags["tick-budget"] {
		cfg.TickBudgetMS = fromFile.TickBudgetMS
	}
	if !explicitFlags["max-batches"] {
		cfg.MaxBatchesPerTick = fromFile.MaxBatchesPerTick
	}
	if !explicitFlags["clipboard-dir"] {
		cfg.ClipboardDir = fromFile.ClipboardDir
	}
	if !explicitFlags["idle-timeout"] {
		cfg.IdleTimeoutMS = fromFile.IdleTimeoutMS
	}
	if !explicitFlags["idle-check"] {
		cfg.IdleCheckMS = fromFile.IdleCheckMS
	}
	if !explicitFlags["no-sky"] {
		cfg.NoSky = fromFile.NoSky
	}
	if !explicitFlags["generator"] {
		cfg.GeneratorType = fromFile.GeneratorType
	}
	if !explicitFlags["materials"] {
		cfg.Materials = fromFile.Materials
	}
	if !explicitFlags["log-level"] {
		cfg.LogLevel = fromFile.LogLevel
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	for name, v := range map[string]int{
		"chunk_wait_ms":        c.ChunkWaitMS,
		"optimize_workers":     c.OptimizeWorkers,
		"tick_budget_ms":       c.TickBudgetMS,
		"max_batches_per_tick": c.MaxBatchesPerTick,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	if c.TickIntervalMS <= 0 {
		return fmt.Errorf("tick_interval_ms must be positive, got %d", c.TickIntervalMS)
	}
	if c.IdleTimeoutMS <= 0 || c.IdleCheckMS <= 0 {
		return errors.New("idle_timeout_ms and idle_check_ms must be positive")
	}
	switch c.GeneratorType {
	case "flat", "empty":
	default:
		return fmt.Errorf("unknown generator_type %q", c.GeneratorType)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) ChunkWait() time.Duration    { return ms(c.ChunkWaitMS) }
func (c *Config) TickInterval() time.Duration { return ms(c.TickIntervalMS) }
func (c *Config) TickBudget() time.Duration   { return ms(c.TickBudgetMS) }
func (c *Config) IdleTimeout() time.Duration  { return ms(c.IdleTimeoutMS) }
func (c *Config) IdleCheck() time.Duration    { return ms(c.IdleCheckMS) }

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// ParseLevel converts a level name such as "debug" to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}
