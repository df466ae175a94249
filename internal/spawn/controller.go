package spawn

import (
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/fallspawn/internal/core/arena"
	"github.com/l1jgo/fallspawn/internal/core/ecs"
	"github.com/l1jgo/fallspawn/internal/core/event"
	coresys "github.com/l1jgo/fallspawn/internal/core/system"
	"github.com/l1jgo/fallspawn/internal/metrics"
	"go.uber.org/zap"
)

// State is the controller's position in the batch lifecycle.
type State int

const (
	StateIdle State = iota
	StateSpawning
	StateActive
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpawning:
		return "spawning"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	}
	return "unknown"
}

// Config describes one spawner.
type Config struct {
	Name      string
	Kind      string // tag given to every entity of the batch
	BatchSize int
	XOrigin   float32
	XSpacing  float32
	SpawnY    float32
	Interval  time.Duration // idle time before the next batch
	Alignment int           // arena alignment in bytes
}

func DefaultConfig() Config {
	return Config{
		Name:      "falling",
		Kind:      "falling",
		BatchSize: 6,
		XOrigin:   -5,
		XSpacing:  2,
		SpawnY:    5,
		Interval:  time.Second,
		Alignment: 16,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Name == "":
		return errors.New("spawner name is empty")
	case c.Kind == "":
		return fmt.Errorf("spawner %s: kind is empty", c.Name)
	case c.BatchSize <= 0:
		return fmt.Errorf("spawner %s: batch size %d", c.Name, c.BatchSize)
	case c.Interval <= 0:
		return fmt.Errorf("spawner %s: interval %s", c.Name, c.Interval)
	case c.Alignment <= 0 || c.Alignment&(c.Alignment-1) != 0:
		return fmt.Errorf("spawner %s: alignment %d is not a power of two", c.Name, c.Alignment)
	}
	return nil
}

// Deps are the collaborators of a Controller. Only Scene is required.
type Deps struct {
	Scene   Scene
	Placer  Placer // nil: LinearPlacer from Config
	Bus     *event.Bus
	Metrics *metrics.Spawner
	Log     *zap.Logger
}

// Controller spawns a batch every Interval of idle time, keeps the batch's
// spawn records in an arena it owns, and releases that arena once every
// entity of the batch has been destroyed. Runs in the spawn phase, game loop
// goroutine only.
type Controller struct {
	cfg     Config
	scene   Scene
	placer  Placer
	bus     *event.Bus
	metrics *metrics.Spawner
	log     *zap.Logger

	state   State
	timer   time.Duration
	spawned bool
	arena   *arena.Arena
	records []Record // arena-backed, one per batch element
	handles *HandleSet

	seq        uint64
	drainTicks int
	pollsAtSet int
}

func NewController(cfg Config, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Scene == nil {
		return nil, fmt.Errorf("spawner %s: no scene", cfg.Name)
	}
	placer := deps.Placer
	if placer == nil {
		placer = LinearPlacer{XOrigin: cfg.XOrigin, XSpacing: cfg.XSpacing, SpawnY: cfg.SpawnY}
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		cfg:     cfg,
		scene:   deps.Scene,
		placer:  placer,
		bus:     deps.Bus,
		metrics: deps.Metrics,
		log:     log.With(zap.String("spawner", cfg.Name)),
		handles: NewHandleSet(cfg.Kind, deps.Scene),
	}, nil
}

func (c *Controller) Phase() coresys.Phase { return coresys.PhaseSpawn }

func (c *Controller) Update(dt time.Duration) {
	switch c.state {
	case StateIdle:
		c.timer += dt
		if c.timer >= c.cfg.Interval {
			c.spawnBatch()
		}
	case StateActive:
		c.state = StateDraining
		c.drain()
	case StateDraining:
		c.drain()
	}
}

func (c *Controller) spawnBatch() {
	c.state = StateSpawning
	c.seq++
	n := c.cfg.BatchSize

	// Every instantiation request goes out before the arena exists, so the
	// arena is sized from a batch size that is already fixed.
	created := make([]ecs.EntityID, 0, n)
	for i := 0; i < n; i++ {
		h, err := c.scene.Instantiate(c.cfg.Kind)
		if err != nil {
			c.abort(created, nil, fmt.Errorf("instantiate %d/%d: %w", i+1, n, err))
			return
		}
		created = append(created, h)
	}

	a, err := arena.New(RecordSize*n, c.cfg.Alignment)
	if err != nil {
		c.abort(created, nil, err)
		return
	}
	region, err := a.Allocate(RecordSize, n)
	if err != nil {
		c.abort(created, a, err)
		return
	}
	records, err := arena.Slots[Record](a, region)
	if err != nil {
		c.abort(created, a, err)
		return
	}

	for i, h := range created {
		x, y := c.placer.Position(i)
		records[i] = Record{StartX: x, StartY: y}
		rec := &records[i]
		c.scene.Place(h, rec.StartX, rec.StartY)
	}

	// Placement has consumed every record; nothing outside the controller
	// refers to them any more.
	a.Reset()

	c.arena = a
	c.records = records
	c.handles.Refresh()
	c.pollsAtSet = c.handles.Polls()
	c.drainTicks = 0
	c.timer = 0
	c.spawned = true
	c.state = StateActive

	c.log.Debug("batch spawned",
		zap.Uint64("seq", c.seq),
		zap.Int("size", n),
		zap.Int("arena_bytes", a.Size()),
		zap.Int("tagged", c.handles.Len()),
	)
	if c.metrics != nil {
		c.metrics.BatchesSpawned.WithLabelValues(c.cfg.Name).Inc()
		c.metrics.EntitiesSpawned.WithLabelValues(c.cfg.Name).Add(float64(n))
		c.metrics.ArenaBytes.WithLabelValues(c.cfg.Name).Set(float64(a.Size()))
		c.metrics.LiveHandles.WithLabelValues(c.cfg.Name).Set(float64(c.handles.Len()))
	}
	event.Emit(c.bus, event.BatchSpawned{
		Spawner:    c.cfg.Name,
		Kind:       c.cfg.Kind,
		Seq:        c.seq,
		Size:       n,
		ArenaBytes: a.Size(),
		At:         time.Now(),
	})
}

// abort unwinds a half-built batch: destroys whatever was instantiated,
// releases the arena and drops back to idle with a fresh timer.
func (c *Controller) abort(created []ecs.EntityID, a *arena.Arena, err error) {
	for _, h := range created {
		c.scene.Destroy(h)
	}
	if a != nil {
		a.Release()
	}
	c.arena = nil
	c.records = nil
	c.handles.Clear()
	c.spawned = false
	c.timer = 0
	c.state = StateIdle

	reason := abortReason(err)
	if errors.Is(err, arena.ErrReleased) {
		c.log.DPanic("arena used after release", zap.Uint64("seq", c.seq), zap.Error(err))
	} else {
		c.log.Error("batch aborted",
			zap.Uint64("seq", c.seq),
			zap.String("reason", reason),
			zap.Int("destroyed", len(created)),
			zap.Error(err),
		)
	}
	if c.metrics != nil {
		c.metrics.BatchesAborted.WithLabelValues(c.cfg.Name, reason).Inc()
		c.metrics.ArenaBytes.WithLabelValues(c.cfg.Name).Set(0)
	}
	event.Emit(c.bus, event.BatchAborted{
		Spawner: c.cfg.Name,
		Seq:     c.seq,
		Reason:  err.Error(),
		At:      time.Now(),
	})
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, arena.ErrExhausted):
		return "exhausted"
	case errors.Is(err, arena.ErrReleased):
		return "released"
	case errors.Is(err, arena.ErrAllocation):
		return "allocation"
	}
	return "instantiate"
}

// drain polls the tag once and retires the batch when nothing is left.
func (c *Controller) drain() {
	c.drainTicks++
	live := c.handles.Refresh()
	if c.metrics != nil {
		c.metrics.HandlePolls.WithLabelValues(c.cfg.Name).Inc()
		c.metrics.LiveHandles.WithLabelValues(c.cfg.Name).Set(float64(live))
	}
	if !c.handles.Empty() {
		return
	}
	c.retire()
}

func (c *Controller) retire() {
	polls := c.handles.Polls() - c.pollsAtSet
	c.releaseBatch()
	c.state = StateIdle

	c.log.Debug("batch retired",
		zap.Uint64("seq", c.seq),
		zap.Int("drain_ticks", c.drainTicks),
		zap.Int("polls", polls),
	)
	if c.metrics != nil {
		c.metrics.BatchesRetired.WithLabelValues(c.cfg.Name).Inc()
		c.metrics.DrainTicks.WithLabelValues(c.cfg.Name).Observe(float64(c.drainTicks))
	}
	event.Emit(c.bus, event.BatchRetired{
		Spawner:    c.cfg.Name,
		Seq:        c.seq,
		DrainTicks: c.drainTicks,
		Polls:      polls,
		At:         time.Now(),
	})
}

// releaseBatch zeroes the records, frees the arena and clears the spawned
// flag. Safe to call with nothing live.
func (c *Controller) releaseBatch() {
	for i := range c.records {
		c.records[i].Dispose()
	}
	c.records = nil
	if c.arena != nil {
		c.arena.Release()
		c.arena = nil
	}
	c.spawned = false
	if c.metrics != nil {
		c.metrics.ArenaBytes.WithLabelValues(c.cfg.Name).Set(0)
	}
}

// Teardown destroys every entity of the live batch without waiting for it to
// drain, releases the arena and returns to idle. It can run in any state and
// repeated calls do nothing.
func (c *Controller) Teardown() {
	destroyed := 0
	c.handles.Each(func(h ecs.EntityID) {
		c.scene.Destroy(h)
		c.handles.Invalidate(h)
		destroyed++
	})
	wasLive := c.spawned
	c.releaseBatch()
	c.handles.Clear()
	c.timer = 0
	c.state = StateIdle

	if !wasLive && destroyed == 0 {
		return
	}
	c.log.Info("batch torn down", zap.Uint64("seq", c.seq), zap.Int("destroyed", destroyed))
	if c.metrics != nil {
		c.metrics.BatchesTornDown.WithLabelValues(c.cfg.Name).Inc()
		c.metrics.LiveHandles.WithLabelValues(c.cfg.Name).Set(0)
	}
	event.Emit(c.bus, event.BatchTornDown{
		Spawner:   c.cfg.Name,
		Seq:       c.seq,
		Destroyed: destroyed,
		At:        time.Now(),
	})
}

// ResumeFrom continues batch numbering after seq.
func (c *Controller) ResumeFrom(seq uint64) { c.seq = seq }

func (c *Controller) Name() string        { return c.cfg.Name }
func (c *Controller) Config() Config      { return c.cfg }
func (c *Controller) State() State        { return c.state }
func (c *Controller) Spawned() bool       { return c.spawned }
func (c *Controller) Seq() uint64         { return c.seq }
func (c *Controller) Handles() *HandleSet { return c.handles }

// Timer returns the idle time accumulated toward the next batch.
func (c *Controller) Timer() time.Duration { return c.timer }

// ArenaSize returns the live arena's capacity, 0 when none is held.
func (c *Controller) ArenaSize() int {
	if c.arena == nil {
		return 0
	}
	return c.arena.Size()
}

// Records returns the live batch's records, nil when idle. The slice aliases
// arena memory.
func (c *Controller) Records() []Record { return c.records }
