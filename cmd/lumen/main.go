// lumen - Terminal glTF Viewer
// Renders GLB files in the terminal through the software device.
//
// Controls:
//
//	Mouse drag  - Orbit (yaw/pitch)
//	Scroll      - Zoom in/out
//	W/S         - Pitch up/down
//	A/D         - Yaw left/right
//	+/-         - Zoom
//	Space       - Apply random impulse
//	R           - Reset view
//	Esc         - Quit
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	uv "github.com/charmbracelet/ultraviolet"

	"github.com/taigrr/lumen/pkg/math3d"
	"github.com/taigrr/lumen/pkg/models"
	"github.com/taigrr/lumen/pkg/raster"
	"github.com/taigrr/lumen/pkg/render"
	"github.com/taigrr/lumen/pkg/scene"
)

func main() {
	cfg, path, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(2)
	}

	if err := run(cfg, path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	render.SetLogger(logger)
	models.SetLogger(logger)
	return func() { f.Close() }, nil
}

// input is the viewer state touched by terminal events. Events are queued
// and applied on the render goroutine.
type input struct {
	dragging   bool
	lastX      int
	lastY      int
	pitch, yaw float64
}

func run(cfg Config, path string) error {
	bgR, bgG, bgB, err := cfg.BackgroundColor()
	if err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	graph, err := models.Load(path)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	stage := NewStage(graph, scene.NewBasicProgram(), cfg)
	render.Logger().Info("model loaded", slog.String("path", path), slog.Int("triangles", stage.Triangles))

	term := uv.DefaultTerminal()
	width, height, err := term.GetSize()
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := term.Start(); err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}
	term.EnterAltScreen()
	term.HideCursor()
	term.Resize(width, height)

	// Any-event mouse tracking in SGR mode.
	fmt.Fprint(os.Stdout, "\x1b[?1003h")
	fmt.Fprint(os.Stdout, "\x1b[?1006h")
	defer func() {
		fmt.Fprint(os.Stdout, "\x1b[?1003l")
		fmt.Fprint(os.Stdout, "\x1b[?1006l")
		term.ExitAltScreen()
		term.ShowCursor()
		term.Shutdown(context.Background())
	}()

	opts := render.DefaultOptions()
	opts.Width, opts.Height = raster.CellSize(width, height)
	opts.ClearColor = math3d.V4(float64(bgR)/255, float64(bgG)/255, float64(bgB)/255, 1)
	opts.PointLights = cfg.Lights
	opts.Cull = cfg.Cull
	opts.Offscreen = cfg.Offscreen

	camera := scene.NewCamera()
	camera.SetClipPlanes(0.1, 100)
	dev := raster.NewDevice(opts.Width, opts.Height)
	renderer := render.New(dev, stage.Root, camera, opts)
	defer renderer.Dispose()

	orbit := NewOrbit(cfg.FPS, cfg.Distance)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan uv.Event, 64)
	go func() {
		for ev := range term.Events() {
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	var in input
	const torque = 3.0
	handle := func(ev uv.Event) {
		switch ev := ev.(type) {
		case uv.WindowSizeEvent:
			width, height = ev.Width, ev.Height
			term.Erase()
			term.Resize(width, height)
			renderer.Resize(raster.CellSize(width, height))

		case uv.KeyPressEvent:
			switch {
			case ev.MatchString("escape", "ctrl+c"):
				cancel()
			case ev.MatchString("r"):
				orbit.Reset()
			case ev.MatchString("w", "up"):
				in.pitch = torque
			case ev.MatchString("s", "down"):
				in.pitch = -torque
			case ev.MatchString("a", "left"):
				in.yaw = -torque
			case ev.MatchString("d", "right"):
				in.yaw = torque
			case ev.MatchString("space"):
				orbit.Impulse((rand.Float64()-0.5)*0.5, (rand.Float64()-0.5)*1.5)
			case ev.MatchString("+", "="):
				orbit.Zoom(0.8)
			case ev.MatchString("-", "_"):
				orbit.Zoom(1.25)
			}

		case uv.KeyReleaseEvent:
			switch {
			case ev.MatchString("w", "up", "s", "down"):
				in.pitch = 0
			case ev.MatchString("a", "left", "d", "right"):
				in.yaw = 0
			}

		case uv.MouseClickEvent:
			in.dragging = true
			in.lastX, in.lastY = ev.X, ev.Y

		case uv.MouseReleaseEvent:
			in.dragging = false

		case uv.MouseMotionEvent:
			if in.dragging {
				orbit.Impulse(float64(ev.Y-in.lastY)*0.02, -float64(ev.X-in.lastX)*0.03)
				in.lastX, in.lastY = ev.X, ev.Y
			}

		case uv.MouseWheelEvent:
			switch ev.Button {
			case uv.MouseWheelUp:
				orbit.Zoom(0.9)
			case uv.MouseWheelDown:
				orbit.Zoom(1.1)
			}
		}
	}

	loop := render.NewLoop(nil, cfg.FPS)
	loop.OnFrame(func(f render.Frame) error {
	drain:
		for {
			select {
			case ev := <-events:
				handle(ev)
			default:
				break drain
			}
		}

		dt := min(f.Delta.Seconds(), 0.1)
		orbit.Impulse(in.pitch*dt, in.yaw*dt)
		// Key release events are not reported by every terminal.
		in.pitch *= 0.9
		in.yaw *= 0.9
		orbit.Update()
		orbit.Apply(camera)

		graph.Loader().Poll()
		if err := renderer.Render(f.Time); err != nil {
			return fmt.Errorf("render: %w", err)
		}
		dev.Screen().Draw(term, uv.Rect(0, 0, width, height))
		if err := term.Display(); err != nil {
			return fmt.Errorf("display: %w", err)
		}
		return nil
	})

	err = loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
