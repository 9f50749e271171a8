//go:build js && wasm

// Command oxy-raw-web draws the sphere on the #glcanvas canvas of its host page.
//
// Query parameters x, y and animate override the defaults. Keys as in oxy-raw.
package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"syscall/js"

	"github.com/Carmen-Shannon/oxy-raw/common"
	"github.com/Carmen-Shannon/oxy-raw/config"
	"github.com/Carmen-Shannon/oxy-raw/engine/mesh"
	"github.com/Carmen-Shannon/oxy-raw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-raw/engine/renderer/webgl"
)

const canvasSelector = "#glcanvas"

var (
	//go:embed shaders/sphere.vert.glsl
	vertexShader string

	//go:embed shaders/sphere.frag.glsl
	fragmentShader string
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// queryOverrides applies the page URL's query parameters to cfg.
func queryOverrides(cfg *config.Config) {
	params := js.Global().Get("URLSearchParams").New(js.Global().Get("location").Get("search"))
	intParam := func(name string, dst *int) {
		if v := params.Call("get", name); !v.IsNull() {
			if n, err := strconv.Atoi(v.String()); err == nil {
				*dst = n
			}
		}
	}
	intParam("x", &cfg.Sphere.XSegments)
	intParam("y", &cfg.Sphere.YSegments)
	if v := params.Call("get", "animate"); !v.IsNull() {
		cfg.Render.Animate, _ = strconv.ParseBool(v.String())
	}
}

func run() error {
	cfg := config.Default()
	queryOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := cfg.Log.NewLogger(os.Stdout)
	if err != nil {
		return err
	}

	clearColor, err := common.ColorFromSlice(cfg.Render.ClearColor)
	if err != nil {
		return err
	}
	scheduler := webgl.NewAnimationFrameScheduler()
	defer scheduler.Release()

	r := renderer.NewRenderer(webgl.NewBackend(),
		renderer.WithClearColor(clearColor),
		renderer.WithScheduler(scheduler),
		renderer.WithLogger(logger),
		renderer.WithAnimation(cfg.Render.Animate),
		renderer.WithProfiling(cfg.Render.Profiling),
	)
	defer r.Release()

	if err := r.BindContextSelector(webgl.NewDocumentResolver(), canvasSelector); err != nil {
		return err
	}
	if err := r.CompileAndLink(vertexShader, fragmentShader); err != nil {
		return err
	}
	g, err := mesh.GenerateSphere(cfg.Sphere.XSegments, cfg.Sphere.YSegments)
	if err != nil {
		return err
	}
	if err := r.LoadBuffers(g, cfg.Render.Color); err != nil {
		return err
	}
	logger.Info("sphere loaded", "vertices", g.VertexCount(), "indices", g.IndexCount())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	release := listenKeys(r, cfg.Render.Animate, cancel, logger)
	defer release()

	// paused loops return nil; the page stays alive until Esc
	for ctx.Err() == nil {
		if err := r.RenderLoop(ctx, nil); err != nil {
			return err
		}
		<-resumed
	}
	return nil
}

// resumed receives when Space restarts a paused loop or Esc ends the page.
var resumed = make(chan struct{}, 1)

func listenKeys(r renderer.Renderer, animate bool, quit context.CancelFunc, logger *slog.Logger) func() {
	paused := false
	notify := func() {
		select {
		case resumed <- struct{}{}:
		default:
		}
	}
	handler := js.FuncOf(func(this js.Value, args []js.Value) any {
		switch args[0].Get("key").String() {
		case " ":
			paused = !paused
			if paused {
				r.Stop()
			} else {
				notify()
			}
			logger.Info("frame loop", "paused", paused)
		case "a", "A":
			animate = !animate
			r.SetAnimation(animate)
		case "r", "R":
			r.ResetTransform()
		case "Escape":
			quit()
			notify()
		}
		return nil
	})
	document := js.Global().Get("document")
	document.Call("addEventListener", "keydown", handler)
	return func() {
		document.Call("removeEventListener", "keydown", handler)
		handler.Release()
	}
}
