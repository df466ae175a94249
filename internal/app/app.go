package app

import (
	"context"
	"fmt"
	"time"

	"github.com/l1jgo/fallspawn/internal/config"
	"github.com/l1jgo/fallspawn/internal/core/event"
	coresys "github.com/l1jgo/fallspawn/internal/core/system"
	"github.com/l1jgo/fallspawn/internal/data"
	"github.com/l1jgo/fallspawn/internal/metrics"
	"github.com/l1jgo/fallspawn/internal/scripting"
	"github.com/l1jgo/fallspawn/internal/spawn"
	"github.com/l1jgo/fallspawn/internal/system"
	"github.com/l1jgo/fallspawn/internal/world"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Ledger stores batch rows and knows the last sequence of each spawner.
type Ledger interface {
	system.BatchStore
	LastSeq(ctx context.Context, spawner string) (uint64, error)
}

// Options are the optional outer services.
type Options struct {
	Registerer prometheus.Registerer // nil: no metrics
	Ledger     Ledger                // nil: batches are not recorded
}

// App is one assembled simulation: scene, spawners and the systems that
// drive them, registered on a single runner.
type App struct {
	log *zap.Logger
	bus *event.Bus

	scene        *world.Scene
	runner       *coresys.Runner
	controllers  []*spawn.Controller
	collectibles *system.CollectibleSystem
	cleanup      *system.CleanupSystem
	ledger       *system.LedgerSystem
	engine       *scripting.Engine
}

// New builds the scene and one controller per entry of the spawner table.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	table, err := data.LoadSpawnerTable(cfg.Spawner.Table, spawnDefaults(cfg.Spawner))
	if err != nil {
		return nil, fmt.Errorf("spawner table: %w", err)
	}
	// A spawner drains by polling its kind tag; pooled collectibles sharing
	// that tag would never let it drain.
	if cfg.Collectible.Enabled {
		if def := table.ByKind(cfg.Collectible.Kind); def != nil {
			return nil, fmt.Errorf("collectible kind %q is also the kind of spawner %q", cfg.Collectible.Kind, def.Config.Name)
		}
	}

	a := &App{
		log:    log,
		bus:    event.NewBus(),
		runner: coresys.NewRunner(),
	}
	a.scene = world.NewScene(world.SceneConfig{
		FallSpeedMin: cfg.Scene.FallSpeedMin,
		FallSpeedMax: cfg.Scene.FallSpeedMax,
		FloorY:       cfg.Scene.FloorY,
		MaxEntities:  cfg.Scene.MaxEntities,
		Seed:         cfg.Scene.Seed,
	}, log.Named("scene"))

	var spawnerMetrics *metrics.Spawner
	var poolMetrics *metrics.Pool
	if opts.Registerer != nil {
		spawnerMetrics = metrics.NewSpawner(opts.Registerer)
		if cfg.Collectible.Enabled {
			poolMetrics = metrics.NewPool(opts.Registerer, cfg.Collectible.Kind)
		}
	}

	if needsLua(table) {
		if cfg.Scripting.Dir == "" {
			log.Warn("lua placement requested without a scripting dir, using linear placement")
		} else {
			a.engine, err = scripting.NewEngine(cfg.Scripting.Dir, log.Named("lua"))
			if err != nil {
				return nil, fmt.Errorf("scripting: %w", err)
			}
		}
	}

	for _, def := range table.All() {
		linear := spawn.LinearPlacer{XOrigin: def.Config.XOrigin, XSpacing: def.Config.XSpacing, SpawnY: def.Config.SpawnY}
		var placer spawn.Placer = linear
		if def.Placement == data.PlacementLua && a.engine != nil {
			placer = a.engine.Placer(def.Config, linear)
		}
		ctrl, err := spawn.NewController(def.Config, spawn.Deps{
			Scene:   a.scene,
			Placer:  placer,
			Bus:     a.bus,
			Metrics: spawnerMetrics,
			Log:     log.Named("spawn"),
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		if opts.Ledger != nil {
			seq, err := opts.Ledger.LastSeq(ctx, def.Config.Name)
			if err != nil {
				a.Close()
				return nil, err
			}
			ctrl.ResumeFrom(seq)
		}
		a.controllers = append(a.controllers, ctrl)
		a.runner.Register(ctrl)
		log.Info("spawner ready",
			zap.String("spawner", def.Config.Name),
			zap.String("kind", def.Config.Kind),
			zap.Int("batch_size", def.Config.BatchSize),
			zap.Duration("interval", def.Config.Interval),
			zap.String("placement", def.Placement),
			zap.Uint64("last_seq", ctrl.Seq()),
		)
	}

	a.runner.Register(system.NewEventDispatchSystem(a.bus))
	a.runner.Register(system.NewFallSystem(a.scene))
	if cfg.Collectible.Enabled {
		a.collectibles = system.NewCollectibleSystem(system.CollectibleConfig{
			Kind:     cfg.Collectible.Kind,
			Interval: cfg.Collectible.Interval,
			SpawnY:   cfg.Collectible.SpawnY,
			XMin:     cfg.Collectible.XMin,
			XMax:     cfg.Collectible.XMax,
		}, a.scene, poolMetrics, log.Named("collectible"))
		a.runner.Register(a.collectibles)
	}
	if opts.Ledger != nil {
		a.ledger = system.NewLedgerSystem(a.bus, opts.Ledger, cfg.Ledger.FlushEvery, log.Named("ledger"))
		a.runner.Register(a.ledger)
	}
	a.cleanup = system.NewCleanupSystem(a.scene.World())
	a.runner.Register(a.cleanup)

	return a, nil
}

func spawnDefaults(c config.SpawnerConfig) spawn.Config {
	d := spawn.DefaultConfig()
	if c.BatchSize > 0 {
		d.BatchSize = c.BatchSize
	}
	d.XOrigin = c.XOrigin
	d.XSpacing = c.XSpacing
	d.SpawnY = c.SpawnY
	if c.Interval > 0 {
		d.Interval = c.Interval
	}
	if c.Alignment > 0 {
		d.Alignment = c.Alignment
	}
	return d
}

func needsLua(t *data.SpawnerTable) bool {
	for _, def := range t.All() {
		if def.Placement == data.PlacementLua {
			return true
		}
	}
	return false
}

// Tick advances the simulation by dt.
func (a *App) Tick(dt time.Duration) {
	a.runner.Tick(dt)
}

// Teardown destroys every live batch and collectible, flushes the destroy
// queue and delivers the resulting events, then writes out the ledger.
func (a *App) Teardown(ctx context.Context) error {
	for _, c := range a.controllers {
		c.Teardown()
	}
	if a.collectibles != nil {
		a.collectibles.Teardown()
	}
	n := a.scene.World().FlushDestroyQueue()
	a.bus.Drain()
	a.log.Info("teardown complete", zap.Int("destroyed", n), zap.Int("live", a.scene.World().Live()))

	if a.ledger == nil {
		return nil
	}
	if err := a.ledger.Flush(ctx); err != nil {
		return fmt.Errorf("flush batch ledger: %w", err)
	}
	return nil
}

// Close releases the Lua VM. Call Teardown first to release the arenas.
func (a *App) Close() {
	if a.engine != nil {
		a.engine.Close()
		a.engine = nil
	}
}

func (a *App) Bus() *event.Bus                  { return a.bus }
func (a *App) Scene() *world.Scene              { return a.scene }
func (a *App) Controllers() []*spawn.Controller { return a.controllers }
func (a *App) Ticks() uint64                    { return a.runner.Ticks() }

// Controller returns the named spawner's controller, or nil.
func (a *App) Controller(name string) *spawn.Controller {
	for _, c := range a.controllers {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Collectibles returns the collectible system, nil when disabled.
func (a *App) Collectibles() *system.CollectibleSystem { return a.collectibles }
