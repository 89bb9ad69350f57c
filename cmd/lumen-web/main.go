//go:build js && wasm

// lumen-web renders a GLB file into a canvas with WebGL2.
//
// The page must contain <canvas id="lumen">. The model URL is read from the
// "model" query parameter and defaults to model.glb next to the page. Drag
// to orbit, scroll to zoom.
package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"syscall/js"

	"github.com/taigrr/lumen/pkg/math3d"
	"github.com/taigrr/lumen/pkg/models"
	"github.com/taigrr/lumen/pkg/render"
	"github.com/taigrr/lumen/pkg/scene"
	"github.com/taigrr/lumen/pkg/webgl"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	render.SetLogger(logger)
	models.SetLogger(logger)

	if err := run(); err != nil {
		logger.Error("lumen-web failed", slog.Any("err", err))
		return
	}
	select {}
}

func modelURL() string {
	params := js.Global().Get("URLSearchParams").New(js.Global().Get("location").Get("search"))
	if u := params.Call("get", "model"); !u.IsNull() {
		return u.String()
	}
	return "model.glb"
}

type view struct {
	yaw, pitch float64
	distance   float64
	dragging   bool
	lastX      float64
	lastY      float64
}

func run() error {
	canvas := js.Global().Get("document").Call("getElementById", "lumen")
	if canvas.IsNull() {
		return fmt.Errorf("no canvas with id lumen")
	}
	dev, err := webgl.New(canvas)
	if err != nil {
		return err
	}

	urls := webgl.BlobURLs{}
	url := modelURL()
	data, err := urls.Fetch(url)
	if err != nil {
		return err
	}
	c, err := models.ParseGLB(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", url, err)
	}
	graph, err := models.Resolve(c, models.ResolveOptions{URLs: urls})
	if err != nil {
		return fmt.Errorf("resolve %s: %w", url, err)
	}

	root := scene.NewNode("root")
	model := graph.Instantiate(scene.NewBasicProgram())
	root.Add(model)
	ambient := scene.NewNode("ambient")
	ambient.Attach(scene.NewAmbientLight(math3d.V3(1, 1, 1), 0.35))
	root.Add(ambient)
	key := scene.NewNode("key-light")
	key.SetPosition(math3d.V3(2, 3, 3))
	key.Attach(scene.NewPointLight(math3d.V3(1, 1, 1), 6))
	root.Add(key)

	opts := render.DefaultOptions()
	opts.Width = canvas.Get("clientWidth").Int()
	opts.Height = canvas.Get("clientHeight").Int()
	opts.PixelRatio = js.Global().Get("devicePixelRatio").Float()
	camera := scene.NewCamera()
	renderer := render.New(dev, root, camera, opts)
	dev.HandleContextLoss(renderer)

	v := &view{pitch: 0.3, distance: 4}
	listen(canvas, v)

	loop := render.NewLoop(nil, 60)
	loop.OnFrame(func(f render.Frame) error {
		w, h := canvas.Get("clientWidth").Int(), canvas.Get("clientHeight").Int()
		if rw, rh := renderer.Size(); rw != w || rh != h {
			renderer.Resize(w, h)
		}
		camera.Orbit(math3d.Vec3{}, v.distance, v.yaw, v.pitch)
		graph.Loader().Poll()
		return renderer.Render(f.Time)
	})

	var tick js.Func
	tick = js.FuncOf(func(js.Value, []js.Value) any {
		if _, err := loop.Step(); err != nil {
			render.Logger().Error("frame failed", slog.Any("err", err))
		}
		js.Global().Call("requestAnimationFrame", tick)
		return nil
	})
	js.Global().Call("requestAnimationFrame", tick)
	return nil
}

func listen(canvas js.Value, v *view) {
	on := func(event string, fn func(e js.Value)) {
		canvas.Call("addEventListener", event, js.FuncOf(func(_ js.Value, args []js.Value) any {
			fn(args[0])
			return nil
		}))
	}
	on("pointerdown", func(e js.Value) {
		v.dragging = true
		v.lastX, v.lastY = e.Get("clientX").Float(), e.Get("clientY").Float()
	})
	on("pointerup", func(js.Value) { v.dragging = false })
	on("pointermove", func(e js.Value) {
		if !v.dragging {
			return
		}
		x, y := e.Get("clientX").Float(), e.Get("clientY").Float()
		v.yaw -= (x - v.lastX) * 0.01
		v.pitch = max(-math.Pi/2+0.01, min(math.Pi/2-0.01, v.pitch+(y-v.lastY)*0.01))
		v.lastX, v.lastY = x, y
	})
	on("wheel", func(e js.Value) {
		e.Call("preventDefault")
		v.distance = max(0.5, min(50, v.distance*math.Pow(1.001, e.Get("deltaY").Float())))
	})
}
