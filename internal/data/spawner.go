package data

import (
	"fmt"
	"os"
	"time"

	"github.com/l1jgo/fallspawn/internal/spawn"
	"gopkg.in/yaml.v3"
)

// Placement modes of a spawner entry.
const (
	PlacementLinear = "linear"
	PlacementLua    = "lua"
)

// SpawnerEntry is one spawner as written in spawners.yaml. Omitted fields
// take the defaults passed to LoadSpawnerTable.
type SpawnerEntry struct {
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"`
	BatchSize *int     `yaml:"batch_size"`
	XOrigin   *float32 `yaml:"x_origin"`
	XSpacing  *float32 `yaml:"x_spacing"`
	SpawnY    *float32 `yaml:"spawn_y"`
	Interval  *float64 `yaml:"interval"` // seconds
	Alignment *int     `yaml:"alignment"`
	Placement string   `yaml:"placement"`
}

type spawnerFile struct {
	Spawners []SpawnerEntry `yaml:"spawners"`
}

// SpawnerDef is a validated spawner ready to build a controller from.
type SpawnerDef struct {
	Config    spawn.Config
	Placement string
}

// SpawnerTable holds the spawners in file order.
type SpawnerTable struct {
	defs   []SpawnerDef
	byName map[string]int
	byKind map[string]int
}

// LoadSpawnerTable loads spawners.yaml. Names must be unique and so must
// kinds, since a batch is tracked by its kind tag.
func LoadSpawnerTable(path string, defaults spawn.Config) (*SpawnerTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawner table: %w", err)
	}
	var f spawnerFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse spawner table: %w", err)
	}
	if len(f.Spawners) == 0 {
		return nil, fmt.Errorf("spawner table %s: no spawners", path)
	}

	t := &SpawnerTable{
		defs:   make([]SpawnerDef, 0, len(f.Spawners)),
		byName: make(map[string]int, len(f.Spawners)),
		byKind: make(map[string]int, len(f.Spawners)),
	}
	for i := range f.Spawners {
		def, err := f.Spawners[i].resolve(defaults)
		if err != nil {
			return nil, fmt.Errorf("spawner table %s entry %d: %w", path, i, err)
		}
		name := def.Config.Name
		if _, dup := t.byName[name]; dup {
			return nil, fmt.Errorf("spawner table %s: duplicate spawner %q", path, name)
		}
		if other, dup := t.byKind[def.Config.Kind]; dup {
			return nil, fmt.Errorf("spawner table %s: spawners %q and %q share kind %q",
				path, t.defs[other].Config.Name, name, def.Config.Kind)
		}
		t.byKind[def.Config.Kind] = len(t.defs)
		t.byName[name] = len(t.defs)
		t.defs = append(t.defs, def)
	}
	return t, nil
}

func (e *SpawnerEntry) resolve(d spawn.Config) (SpawnerDef, error) {
	cfg := d
	cfg.Name = e.Name
	cfg.Kind = e.Kind
	if cfg.Kind == "" {
		cfg.Kind = e.Name
	}
	if e.BatchSize != nil {
		cfg.BatchSize = *e.BatchSize
	}
	if e.XOrigin != nil {
		cfg.XOrigin = *e.XOrigin
	}
	if e.XSpacing != nil {
		cfg.XSpacing = *e.XSpacing
	}
	if e.SpawnY != nil {
		cfg.SpawnY = *e.SpawnY
	}
	if e.Interval != nil {
		cfg.Interval = time.Duration(*e.Interval * float64(time.Second))
	}
	if e.Alignment != nil {
		cfg.Alignment = *e.Alignment
	}
	if err := cfg.Validate(); err != nil {
		return SpawnerDef{}, err
	}

	placement := e.Placement
	switch placement {
	case "":
		placement = PlacementLinear
	case PlacementLinear, PlacementLua:
	default:
		return SpawnerDef{}, fmt.Errorf("spawner %s: unknown placement %q", cfg.Name, placement)
	}
	return SpawnerDef{Config: cfg, Placement: placement}, nil
}

// All returns the spawners in file order.
func (t *SpawnerTable) All() []SpawnerDef {
	return t.defs
}

// Get returns the named spawner, or nil if none.
func (t *SpawnerTable) Get(name string) *SpawnerDef {
	i, ok := t.byName[name]
	if !ok {
		return nil
	}
	return &t.defs[i]
}

// ByKind returns the spawner whose batches carry kind, or nil if none.
func (t *SpawnerTable) ByKind(kind string) *SpawnerDef {
	i, ok := t.byKind[kind]
	if !ok {
		return nil
	}
	return &t.defs[i]
}

// Count returns the number of spawners loaded.
func (t *SpawnerTable) Count() int {
	return len(t.defs)
}
