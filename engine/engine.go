//go:build !js

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-raw/common"
	"github.com/Carmen-Shannon/oxy-raw/config"
	"github.com/Carmen-Shannon/oxy-raw/engine/mesh"
	"github.com/Carmen-Shannon/oxy-raw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-raw/engine/surface"
	"github.com/Carmen-Shannon/oxy-raw/engine/window"
)

// MainSurface is the registry name of the engine window.
const MainSurface = "main"

// engine implements the Engine interface.
// The window message pump runs on the calling goroutine, the frame loop on its own.
type engine struct {
	cfg    config.Config
	logger *slog.Logger

	window   window.Window
	backend  renderer.Backend
	renderer renderer.Renderer
	registry *surface.Registry

	vertexSource   string
	fragmentSource string
	onFrame        func()

	// touched only on the message pump goroutine
	ctx      context.Context
	paused   bool
	animate  bool
	loopDone chan struct{}
	err      error

	errs chan error
}

// Engine wires a window, a WebGPU backend and a renderer into the sphere viewer.
type Engine interface {
	// Window returns the engine window.
	Window() window.Window

	// Renderer returns the renderer driving the window.
	Renderer() renderer.Renderer

	// Run generates the sphere, sets the renderer up and pumps window messages until the window closes,
	// ctx is cancelled or a frame fails. Everything is released before Run returns.
	// Run must be called from the goroutine that created the engine.
	//
	// Parameters:
	//   - ctx: cancels the viewer
	//
	// Returns:
	//   - error: the setup or frame error, nil on a normal close
	Run(ctx context.Context) error
}

// NewEngine creates the window, backend and renderer described by cfg.
// It must be called from the main goroutine.
//
// Parameters:
//   - cfg: a validated configuration
//   - options: functional options
//
// Returns:
//   - Engine: the engine, ready to Run
//   - error: error if the shaders or the window could not be created
func NewEngine(cfg config.Config, options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		cfg:     cfg,
		logger:  slog.Default(),
		animate: cfg.Render.Animate,
		errs:    make(chan error, 1),
	}
	for _, opt := range options {
		opt(e)
	}

	if e.vertexSource == "" || e.fragmentSource == "" {
		vs, fs, err := loadShaders(cfg.Shaders.Vertex, cfg.Shaders.Fragment)
		if err != nil {
			return nil, err
		}
		e.vertexSource = common.Coalesce(e.vertexSource, vs)
		e.fragmentSource = common.Coalesce(e.fragmentSource, fs)
	}

	if e.window == nil {
		w, err := window.NewWindow(
			window.WithTitle(cfg.Window.Title),
			window.WithSize(cfg.Window.Width, cfg.Window.Height),
		)
		if err != nil {
			return nil, err
		}
		e.window = w
	}

	if e.backend == nil {
		presentMode := renderer.PresentModeVSync
		if cfg.Render.PresentMode == config.PresentUncapped {
			presentMode = renderer.PresentModeUncapped
		}
		e.backend = renderer.NewWGPUBackend(
			renderer.WithPresentMode(presentMode),
			renderer.WithForceSoftwareRenderer(cfg.Render.ForceSoftware),
			renderer.WithBackendLogger(e.logger),
		)
	}

	if e.renderer == nil {
		clearColor, err := common.ColorFromSlice(cfg.Render.ClearColor)
		if err != nil {
			return nil, err
		}
		e.renderer = renderer.NewRenderer(e.backend,
			renderer.WithClearColor(clearColor),
			renderer.WithScheduler(renderer.NewTickerScheduler(cfg.Render.FrameRate)),
			renderer.WithLogger(e.logger),
			renderer.WithProfiling(cfg.Render.Profiling),
			renderer.WithAnimation(cfg.Render.Animate),
		)
	}

	e.registry = surface.NewRegistry()
	if err := e.registry.Register(MainSurface, e.window); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

// generate builds the sphere, on a worker pool when more than one worker is configured.
func (e *engine) generate() (mesh.Geometry, error) {
	var opts []mesh.SphereBuilderOption
	if e.cfg.Sphere.Workers > 1 {
		pool := worker.NewDynamicWorkerPool(e.cfg.Sphere.Workers, e.cfg.Sphere.YSegments, time.Second)
		defer pool.Stop()
		opts = append(opts, mesh.WithWorkerPool(pool))
	}

	start := time.Now()
	g, err := mesh.GenerateSphere(e.cfg.Sphere.XSegments, e.cfg.Sphere.YSegments, opts...)
	if err != nil {
		return mesh.Geometry{}, err
	}
	e.logger.Info("sphere generated",
		"x_segments", e.cfg.Sphere.XSegments,
		"y_segments", e.cfg.Sphere.YSegments,
		"vertices", g.VertexCount(),
		"indices", g.IndexCount(),
		"elapsed", time.Since(start),
	)
	return g, nil
}

// setup runs the renderer through context, program and buffers.
func (e *engine) setup() error {
	g, err := e.generate()
	if err != nil {
		return fmt.Errorf("generate sphere: %w", err)
	}
	if err := e.renderer.BindContextSelector(e.registry, "#"+MainSurface); err != nil {
		return err
	}
	if err := e.renderer.CompileAndLink(e.vertexSource, e.fragmentSource); err != nil {
		return err
	}
	return e.renderer.LoadBuffers(g, e.cfg.Render.Color)
}

func (e *engine) Run(ctx context.Context) error {
	defer e.shutdown()

	if err := e.setup(); err != nil {
		return err
	}

	e.ctx = ctx
	e.window.SetResizeCallback(e.handleResize)
	e.window.SetKeyDownCallback(e.handleKey)
	e.window.SetUpdateCallback(e.handleUpdate)

	e.startLoop()
	e.window.ProcessMessages()
	return e.err
}

// startLoop runs the frame loop on its own goroutine once the previous loop has returned.
func (e *engine) startLoop() {
	prev := e.loopDone
	done := make(chan struct{})
	e.loopDone = done

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		if err := e.renderer.RenderLoop(e.ctx, e.onFrame); err != nil {
			select {
			case e.errs <- err:
			default:
				e.logger.Error("dropped render loop error", "error", err)
			}
		}
	}()
}

// handleUpdate runs once per message pump iteration.
func (e *engine) handleUpdate() {
	select {
	case <-e.ctx.Done():
		e.window.RequestClose()
	case err := <-e.errs:
		e.err = err
		e.window.RequestClose()
	default:
	}
}

func (e *engine) handleResize(width, height int) {
	if err := e.renderer.Resize(width, height); err != nil {
		e.logger.Error("resize failed", "width", width, "height", height, "error", err)
	}
}

func (e *engine) handleKey(keyCode uint32) {
	switch keyCode {
	case common.KeySpace:
		e.paused = !e.paused
		if e.paused {
			e.renderer.Stop()
		} else {
			e.startLoop()
		}
		e.logger.Info("frame loop", "paused", e.paused, "frames", e.renderer.Frames())
	case common.KeyA:
		e.animate = !e.animate
		e.renderer.SetAnimation(e.animate)
	case common.KeyR:
		e.renderer.ResetTransform()
	case common.KeyEsc:
		e.window.RequestClose()
	}
}

// shutdown releases the renderer before the window it draws to.
func (e *engine) shutdown() {
	e.renderer.Release()
	if e.loopDone != nil {
		<-e.loopDone
	}
	e.registry.Unregister(MainSurface)
	if err := e.window.Close(); err != nil {
		e.logger.Warn("close window", "error", err)
	}
}
