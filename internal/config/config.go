package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPath names the environment variable that overrides DefaultPath.
const (
	EnvPath     = "FALLSPAWN_CONFIG"
	DefaultPath = "config/fallspawn.toml"
)

type Config struct {
	Loop        LoopConfig        `toml:"loop"`
	Spawner     SpawnerConfig     `toml:"spawner"`
	Scene       SceneConfig       `toml:"scene"`
	Collectible CollectibleConfig `toml:"collectible"`
	Scripting   ScriptingConfig   `toml:"scripting"`
	Database    DatabaseConfig    `toml:"database"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Logging     LoggingConfig     `toml:"logging"`
}

type LoopConfig struct {
	TickRate time.Duration `toml:"tick_rate"`
}

// SpawnerConfig holds the spawner table path and the values a table entry
// falls back to when it leaves a field out.
type SpawnerConfig struct {
	Table     string        `toml:"table"`
	BatchSize int           `toml:"batch_size"`
	XOrigin   float32       `toml:"x_origin"`
	XSpacing  float32       `toml:"x_spacing"`
	SpawnY    float32       `toml:"spawn_y"`
	Interval  time.Duration `toml:"interval"`
	Alignment int           `toml:"alignment"`
}

type SceneConfig struct {
	FallSpeedMin float32 `toml:"fall_speed_min"`
	FallSpeedMax float32 `toml:"fall_speed_max"`
	FloorY       float32 `toml:"floor_y"`
	MaxEntities  int     `toml:"max_entities"`
	Seed         int64   `toml:"seed"` // 0 = seed from the clock
}

type CollectibleConfig struct {
	Enabled  bool          `toml:"enabled"`
	Kind     string        `toml:"kind"`
	Interval time.Duration `toml:"interval"`
	SpawnY   float32       `toml:"spawn_y"`
	XMin     float32       `toml:"x_min"`
	XMax     float32       `toml:"x_max"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"` // empty = no Lua placement
}

type DatabaseConfig struct {
	DSN             string        `toml:"dsn"` // empty = no batch ledger
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

type LedgerConfig struct {
	FlushEvery int `toml:"flush_every"` // ticks between ledger writes
}

type MetricsConfig struct {
	ListenAddress string `toml:"listen_address"` // empty = no endpoint
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Path returns the config file path from the environment or the default.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Loop.TickRate <= 0:
		return fmt.Errorf("loop.tick_rate must be positive, got %s", c.Loop.TickRate)
	case c.Scene.FallSpeedMin <= 0 || c.Scene.FallSpeedMax < c.Scene.FallSpeedMin:
		return fmt.Errorf("scene fall speed range [%g, %g] is invalid", c.Scene.FallSpeedMin, c.Scene.FallSpeedMax)
	case c.Ledger.FlushEvery <= 0:
		return fmt.Errorf("ledger.flush_every must be positive, got %d", c.Ledger.FlushEvery)
	case c.Collectible.Enabled && c.Collectible.Kind == "":
		return fmt.Errorf("collectible.kind is empty")
	case c.Collectible.Enabled && c.Collectible.Interval <= 0:
		return fmt.Errorf("collectible.interval must be positive, got %s", c.Collectible.Interval)
	case c.Collectible.Enabled && c.Collectible.XMax < c.Collectible.XMin:
		return fmt.Errorf("collectible x range [%g, %g] is invalid", c.Collectible.XMin, c.Collectible.XMax)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Loop: LoopConfig{
			TickRate: 50 * time.Millisecond,
		},
		Spawner: SpawnerConfig{
			Table:     "data/yaml/spawners.yaml",
			BatchSize: 6,
			XOrigin:   -5,
			XSpacing:  2,
			SpawnY:    5,
			Interval:  time.Second,
			Alignment: 16,
		},
		Scene: SceneConfig{
			FallSpeedMin: 1,
			FallSpeedMax: 5,
			FloorY:       -5,
			MaxEntities:  4096,
		},
		Collectible: CollectibleConfig{
			Enabled:  true,
			Kind:     "collectible",
			Interval: 3 * time.Second,
			SpawnY:   5,
			XMin:     -5,
			XMax:     5,
		},
		Scripting: ScriptingConfig{
			Dir: "scripts",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Ledger: LedgerConfig{
			FlushEvery: 20,
		},
		Metrics: MetricsConfig{
			ListenAddress: "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
