package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/l1jgo/fallspawn/internal/app"
	"github.com/l1jgo/fallspawn/internal/audio"
	"github.com/l1jgo/fallspawn/internal/config"
	"github.com/l1jgo/fallspawn/internal/core/ecs"
	"github.com/l1jgo/fallspawn/internal/core/event"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// The terminal belongs to the view; log to a file instead.
	log, err := newFileLogger("fall-sandbox.log", cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	sim, err := app.New(context.Background(), cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer sim.Close()

	cue := audio.NewCue()
	if err := cue.Initialize(); err != nil {
		log.Warn("audio unavailable, running silent", zap.Error(err))
	}
	defer cue.Close()
	event.Subscribe(sim.Bus(), func(ev event.BatchSpawned) { cue.Batch(ev.Size) })
	event.Subscribe(sim.Bus(), func(ev event.BatchTornDown) { cue.Teardown() })

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	v := &view{screen: screen, sim: sim, floor: cfg.Scene.FloorY}
	v.loop(cfg.Loop.TickRate)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sim.Teardown(ctx)
}

// view draws the scene in world units: x in [-10, 10] across the terminal
// width and y from spawnTop down to the floor across its height.
type view struct {
	screen tcell.Screen
	sim    *app.App
	floor  float32
	last   string
}

const (
	worldHalfWidth = 10
	spawnTop       = 7
)

func (v *view) loop(tickRate time.Duration) {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := v.screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	last := time.Now()
	for {
		select {
		case ev := <-eventChan:
			if !v.handleInput(ev) {
				return
			}
		case now := <-ticker.C:
			v.sim.Tick(now.Sub(last))
			last = now
			v.draw()
		}
	}
}

func (v *view) handleInput(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if ev.Key() == tcell.KeyRune {
			switch ev.Rune() {
			case 'q':
				return false
			case 'x':
				if err := v.sim.Teardown(context.Background()); err != nil {
					v.last = "teardown: " + err.Error()
				} else {
					v.last = "teardown"
				}
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
	}
	return true
}

func (v *view) draw() {
	v.screen.Clear()
	w, h := v.screen.Size()
	if w < 10 || h < 4 {
		v.screen.Show()
		return
	}
	field := h - 2

	v.sim.Scene().Visible(func(_ ecs.EntityID, kind string, x, y float32) {
		col, row, ok := project(x, y, v.floor, w, field)
		if !ok {
			return
		}
		r, style := glyph(kind)
		v.screen.SetContent(col, row, r, nil, style)
	})

	floorStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	for col := 0; col < w; col++ {
		v.screen.SetContent(col, field, '─', nil, floorStyle)
	}

	status := fmt.Sprintf(" tick %d ", v.sim.Ticks())
	for _, c := range v.sim.Controllers() {
		status += fmt.Sprintf("│ %s %s seq=%d live=%d arena=%dB ", c.Name(), c.State(), c.Seq(), c.Handles().Len(), c.ArenaSize())
	}
	if col := v.sim.Collectibles(); col != nil {
		status += fmt.Sprintf("│ pool active=%d free=%d ", col.Active(), col.Free())
	}
	status += "│ x teardown  q quit"
	if v.last != "" {
		status += "  [" + v.last + "]"
	}
	drawText(v.screen, 0, h-1, status, tcell.StyleDefault.Reverse(true))
	v.screen.Show()
}

// project maps world coordinates to a cell. Points outside the field are
// not drawn.
func project(x, y, floor float32, width, height int) (col, row int, ok bool) {
	fx := (float64(x) + worldHalfWidth) / (2 * worldHalfWidth)
	fy := (spawnTop - float64(y)) / (spawnTop - float64(floor))
	col = int(math.Round(fx * float64(width-1)))
	row = int(math.Round(fy * float64(height-1)))
	if col < 0 || col >= width || row < 0 || row >= height {
		return 0, 0, false
	}
	return col, row, true
}

func glyph(kind string) (rune, tcell.Style) {
	switch kind {
	case "collectible":
		return '◆', tcell.StyleDefault.Foreground(tcell.ColorYellow)
	case "falling":
		return '●', tcell.StyleDefault.Foreground(tcell.ColorGreen)
	}
	return '○', tcell.StyleDefault.Foreground(tcell.ColorAqua)
}

func drawText(s tcell.Screen, col, row int, text string, style tcell.Style) {
	w, _ := s.Size()
	for _, r := range text {
		if col >= w {
			return
		}
		s.SetContent(col, row, r, nil, style)
		col++
	}
	for ; col < w; col++ {
		s.SetContent(col, row, ' ', nil, style)
	}
}

func newFileLogger(path, level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.OutputPaths = []string{path}
	zapCfg.ErrorOutputPaths = []string{path}
	if err := zapCfg.Level.UnmarshalText([]byte(level)); err != nil {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zapCfg.Build()
}
