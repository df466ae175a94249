package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/l1jgo/fallspawn/internal/spawn"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// APIVersion is exposed to scripts as the API_VERSION global.
const APIVersion = 1

// Engine wraps a single gopher-lua VM for placement scripts.
// Single-goroutine access only (game loop).
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(APIVersion))

	e := &Engine{vm: vm, log: log}

	// Core helpers first, then the spawn scripts that may use them.
	for _, sub := range []string{"core", "spawn"} {
		if err := e.loadDir(filepath.Join(scriptsDir, sub)); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// HasFunc reports whether a global Lua function with the given name exists.
func (e *Engine) HasFunc(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// PlacementContext is what spawn_position receives for one batch element.
type PlacementContext struct {
	Spawner   string
	Kind      string
	Index     int
	BatchSize int
	XOrigin   float32
	XSpacing  float32
	SpawnY    float32
}

// SpawnPosition calls the Lua spawn_position function. ok is false when the
// function is missing, fails or returns something other than {x=, y=}.
func (e *Engine) SpawnPosition(ctx PlacementContext) (x, y float32, ok bool) {
	fn := e.vm.GetGlobal("spawn_position")
	if fn == lua.LNil {
		e.log.Error("lua function spawn_position not found")
		return 0, 0, false
	}

	t := e.vm.NewTable()
	t.RawSetString("spawner", lua.LString(ctx.Spawner))
	t.RawSetString("kind", lua.LString(ctx.Kind))
	t.RawSetString("index", lua.LNumber(ctx.Index))
	t.RawSetString("batch_size", lua.LNumber(ctx.BatchSize))
	t.RawSetString("x_origin", lua.LNumber(ctx.XOrigin))
	t.RawSetString("x_spacing", lua.LNumber(ctx.XSpacing))
	t.RawSetString("spawn_y", lua.LNumber(ctx.SpawnY))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua spawn_position error", zap.String("spawner", ctx.Spawner), zap.Error(err))
		return 0, 0, false
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua spawn_position returned non-table", zap.String("spawner", ctx.Spawner))
		return 0, 0, false
	}
	lx, xok := rt.RawGetString("x").(lua.LNumber)
	ly, yok := rt.RawGetString("y").(lua.LNumber)
	if !xok || !yok {
		e.log.Error("lua spawn_position returned no x/y", zap.String("spawner", ctx.Spawner))
		return 0, 0, false
	}
	return float32(lx), float32(ly), true
}

// Placer returns a spawn.Placer backed by spawn_position. Elements the script
// cannot place fall back to fallback.
func (e *Engine) Placer(cfg spawn.Config, fallback spawn.Placer) spawn.Placer {
	return &luaPlacer{engine: e, cfg: cfg, fallback: fallback}
}

type luaPlacer struct {
	engine   *Engine
	cfg      spawn.Config
	fallback spawn.Placer
}

func (p *luaPlacer) Position(i int) (float32, float32) {
	x, y, ok := p.engine.SpawnPosition(PlacementContext{
		Spawner:   p.cfg.Name,
		Kind:      p.cfg.Kind,
		Index:     i,
		BatchSize: p.cfg.BatchSize,
		XOrigin:   p.cfg.XOrigin,
		XSpacing:  p.cfg.XSpacing,
		SpawnY:    p.cfg.SpawnY,
	})
	if !ok {
		return p.fallback.Position(i)
	}
	return x, y
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
