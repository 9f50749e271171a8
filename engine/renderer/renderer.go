package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-raw/common"
	"github.com/Carmen-Shannon/oxy-raw/engine/mesh"
	"github.com/Carmen-Shannon/oxy-raw/engine/profiler"
	"github.com/Carmen-Shannon/oxy-raw/engine/surface"
)

// Names the program is expected to declare. Any of them may be absent.
const (
	AttribVertexPosition = "vertexPosition"
	AttribVertexColor    = "vertexColor"
	UniformRotateMatrix  = "rotateMatrix"
	UniformModelMatrix   = "modelMatrix"
)

const (
	positionComponents = 3
	colorComponents    = 4
)

// locations caches the attribute and uniform locations of the linked program, -1 when absent.
type locations struct {
	position int
	color    int
	rotate   int
	model    int
}

// renderLoop is one running frame loop. done closes after err is set.
type renderLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	joined int
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu sync.Mutex

	backend   Backend
	logger    *slog.Logger
	scheduler FrameScheduler
	profiler  *profiler.Profiler

	state    State
	surface  surface.Surface
	viewport common.Viewport

	vertexShader   Handle
	fragmentShader Handle
	program        Handle
	loc            locations

	positionBuffer Handle
	colorBuffer    Handle
	indexBuffer    Handle
	indexCount     int

	clearColor    common.Color
	transform     Transform
	oscillator    Oscillator
	initialOsc    Oscillator
	animate       bool
	releaseOnStop bool

	frames uint64
	loop   *renderLoop
	cmd    DrawCommand
}

// Renderer is a raw render pipeline: one program, three immutable buffers and one indexed draw per frame.
//
// Setup runs in order BindContext, CompileAndLink, LoadBuffers, then RenderLoop. An operation called out of
// order returns a *StateError and changes nothing. A failed setup step releases whatever it created.
type Renderer interface {
	// BindContext acquires a graphics context for the given surface.
	// The viewport is reset to cover the whole surface.
	//
	// Parameters:
	//   - s: the surface to draw to
	//
	// Returns:
	//   - error: ErrInvalidSurface, ErrContextUnavailable or a *StateError
	BindContext(s surface.Surface) error

	// BindContextSelector resolves selector through resolver and binds the resulting surface.
	//
	// Parameters:
	//   - resolver: maps the selector to a surface
	//   - selector: the surface name, "#name" or "name"
	//
	// Returns:
	//   - error: ErrInvalidSurface if nothing drawable matches, otherwise as BindContext
	BindContextSelector(resolver surface.Resolver, selector string) error

	// SetViewport sets the device viewport rectangle in pixels. Valid in any state after BindContext.
	//
	// Returns:
	//   - error: a *StateError before BindContext, or an error for a negative size
	SetViewport(x, y, width, height int) error

	// CompileAndLink compiles both stages and links them into the program, caching the locations of
	// vertexPosition, vertexColor, rotateMatrix and modelMatrix.
	//
	// Parameters:
	//   - vertexSource: the vertex stage source
	//   - fragmentSource: the fragment stage source
	//
	// Returns:
	//   - error: *ShaderCompileError, *ProgramLinkError or *StateError
	CompileAndLink(vertexSource, fragmentSource string) error

	// LoadBuffers uploads positions, colors and indices. color is either one RGBA value broadcast to every
	// vertex, one RGBA value per vertex, or nil for opaque white.
	//
	// Parameters:
	//   - geometry: the positions and indices to draw
	//   - color: the color data
	//
	// Returns:
	//   - error: an error wrapping ErrInvalidGeometry, a device error, or a *StateError
	LoadBuffers(geometry mesh.Geometry, color []float32) error

	// RenderLoop runs frames until ctx is cancelled, Stop is called or a frame fails. The first frame is
	// drawn immediately, every later frame after one yield to the FrameScheduler. onFrame, if not nil, runs
	// at the start of every frame on the render goroutine.
	//
	// A call made while the loop is already running joins it: it blocks until the running loop exits and
	// returns the same result. A joiner whose own ctx ends first returns ctx.Err() and leaves the loop running.
	//
	// Parameters:
	//   - ctx: cancels the loop
	//   - onFrame: per-frame hook
	//
	// Returns:
	//   - error: nil on cancellation or Stop, a *DriverDrawError when a frame fails, or a *StateError
	RenderLoop(ctx context.Context, onFrame func()) error

	// Stop cancels a running loop. It is safe to call at any time and more than once.
	Stop()

	// Resize reconfigures the drawable and resets the viewport to cover it.
	//
	// Returns:
	//   - error: a *StateError before BindContext, or a device error
	Resize(width, height int) error

	// SetAnimation toggles the scale bounce and the rotation advance.
	SetAnimation(enabled bool)

	// ResetTransform returns the rotation and the scale oscillator to their initial values.
	ResetTransform()

	// Release stops a running loop and tears everything down in reverse acquisition order: index, color and
	// position buffers, program, shaders, context. The renderer returns to StateUninitialized.
	// Release must not be called from onFrame.
	Release()

	State() State

	// Frames returns the number of frames drawn successfully since the renderer was created.
	Frames() uint64
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer that drives the given backend.
//
// Parameters:
//   - backend: the device backend
//   - options: functional options
//
// Returns:
//   - Renderer: the renderer, in StateUninitialized
func NewRenderer(backend Backend, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		backend:    backend,
		logger:     slog.Default(),
		clearColor: common.ColorBlack,
		transform:  NewTransform(),
		oscillator: NewOscillator(),
		loc:        locations{-1, -1, -1, -1},
	}
	for _, opt := range options {
		opt(r)
	}
	if r.scheduler == nil {
		r.scheduler = NewTickerScheduler(DefaultFrameRate)
	}
	r.initialOsc = r.oscillator
	return r
}

func (r *renderer) BindContext(s surface.Surface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateUninitialized {
		return &StateError{Op: "BindContext", Have: r.state, Want: StateUninitialized}
	}
	if s == nil {
		return fmt.Errorf("bind context: nil surface: %w", ErrInvalidSurface)
	}
	if err := r.backend.BindContext(s); err != nil {
		return fmt.Errorf("bind context: %w", err)
	}

	r.surface = s
	r.viewport = common.Viewport{Width: s.Width(), Height: s.Height()}
	r.backend.SetViewport(r.viewport)
	r.state = StateContextBound
	r.logger.Debug("context bound", "width", s.Width(), "height", s.Height())
	return nil
}

func (r *renderer) BindContextSelector(resolver surface.Resolver, selector string) error {
	if st := r.State(); st != StateUninitialized {
		return &StateError{Op: "BindContextSelector", Have: st, Want: StateUninitialized}
	}
	if resolver == nil {
		return fmt.Errorf("bind context %q: no resolver: %w", selector, ErrInvalidSurface)
	}
	s, err := resolver.Resolve(selector)
	if err != nil {
		return fmt.Errorf("bind context: %w", err)
	}
	return r.BindContext(s)
}

func (r *renderer) SetViewport(x, y, width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state < StateContextBound {
		return &StateError{Op: "SetViewport", Have: r.state, Want: StateContextBound}
	}
	if width < 0 || height < 0 {
		return fmt.Errorf("set viewport: negative size %dx%d", width, height)
	}
	r.viewport = common.Viewport{X: x, Y: y, Width: width, Height: height}
	r.backend.SetViewport(r.viewport)
	return nil
}

func (r *renderer) CompileAndLink(vertexSource, fragmentSource string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateContextBound {
		return &StateError{Op: "CompileAndLink", Have: r.state, Want: StateContextBound}
	}

	vs, err := r.backend.CompileShader(StageVertex, vertexSource)
	if err != nil {
		return &ShaderCompileError{Stage: StageVertex, Log: err.Error()}
	}
	fs, err := r.backend.CompileShader(StageFragment, fragmentSource)
	if err != nil {
		r.backend.DeleteShader(vs)
		return &ShaderCompileError{Stage: StageFragment, Log: err.Error()}
	}
	prog, err := r.backend.LinkProgram(vs, fs)
	if err != nil {
		if prog != 0 {
			r.backend.DeleteProgram(prog)
		}
		r.backend.DeleteShader(fs)
		r.backend.DeleteShader(vs)
		return &ProgramLinkError{Log: err.Error()}
	}

	r.vertexShader, r.fragmentShader, r.program = vs, fs, prog
	r.loc = locations{
		position: r.backend.AttribLocation(prog, AttribVertexPosition),
		color:    r.backend.AttribLocation(prog, AttribVertexColor),
		rotate:   r.backend.UniformLocation(prog, UniformRotateMatrix),
		model:    r.backend.UniformLocation(prog, UniformModelMatrix),
	}
	r.state = StateProgramLinked
	r.logger.Debug("program linked",
		"position", r.loc.position, "color", r.loc.color, "rotate", r.loc.rotate, "model", r.loc.model)
	return nil
}

// expandColor returns one RGBA value per vertex.
func expandColor(color []float32, vertexCount int) ([]float32, error) {
	switch len(color) {
	case 0:
		color = common.ColorWhite.Slice()
		fallthrough
	case colorComponents:
		out := make([]float32, colorComponents*vertexCount)
		for i := 0; i < len(out); i += colorComponents {
			copy(out[i:], color)
		}
		return out, nil
	case colorComponents * vertexCount:
		return color, nil
	default:
		return nil, fmt.Errorf("%w: color has %d floats, want 4 or %d", ErrInvalidGeometry, len(color), colorComponents*vertexCount)
	}
}

func (r *renderer) LoadBuffers(geometry mesh.Geometry, color []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateProgramLinked {
		return &StateError{Op: "LoadBuffers", Have: r.state, Want: StateProgramLinked}
	}
	if err := geometry.Validate(); err != nil {
		return fmt.Errorf("load buffers: %w", err)
	}
	colors, err := expandColor(color, geometry.VertexCount())
	if err != nil {
		return fmt.Errorf("load buffers: %w", err)
	}

	var created []Handle
	rollback := func() {
		for i := len(created) - 1; i >= 0; i-- {
			r.backend.DeleteBuffer(created[i])
		}
	}

	uploads := []struct {
		name string
		kind BufferKind
		data []byte
	}{
		{"position", BufferVertex, geometry.VertexBytes()},
		{"color", BufferVertex, common.SliceToBytes(colors)},
		{"index", BufferIndex, geometry.IndexBytes()},
	}
	for _, u := range uploads {
		h, err := r.backend.CreateBuffer(u.kind, u.data)
		if err != nil {
			rollback()
			return fmt.Errorf("load buffers: create %s buffer: %w", u.name, err)
		}
		created = append(created, h)
	}

	r.positionBuffer, r.colorBuffer, r.indexBuffer = created[0], created[1], created[2]
	r.indexCount = geometry.IndexCount()
	r.state = StateBuffersLoaded
	r.logger.Debug("buffers loaded", "vertices", geometry.VertexCount(), "indices", r.indexCount)
	return nil
}

func (r *renderer) RenderLoop(ctx context.Context, onFrame func()) error {
	r.mu.Lock()
	if l := r.loop; l != nil {
		l.joined++
		r.logger.Debug("joining running render loop", "callers", l.joined+1)
		r.mu.Unlock()
		select {
		case <-l.done:
			return l.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.state != StateBuffersLoaded {
		st := r.state
		r.mu.Unlock()
		return &StateError{Op: "RenderLoop", Have: st, Want: StateBuffersLoaded}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l := &renderLoop{cancel: cancel, done: make(chan struct{})}
	r.loop = l
	r.state = StateRendering
	r.mu.Unlock()

	go r.handleRender(loopCtx, l, onFrame)

	<-l.done
	return l.err
}

// handleRender is the render goroutine. It owns the loop until it exits, then hands the state back.
func (r *renderer) handleRender(ctx context.Context, l *renderLoop, onFrame func()) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	err := r.runFrames(ctx, onFrame)
	if err != nil {
		r.logger.Error("render loop stopped", "error", err)
	}

	r.mu.Lock()
	r.loop = nil
	if r.state == StateRendering {
		r.state = StateBuffersLoaded
	}
	release := r.releaseOnStop
	r.mu.Unlock()

	if release {
		r.Release()
	}

	l.cancel()
	l.err = err
	close(l.done)
}

func (r *renderer) runFrames(ctx context.Context, onFrame func()) error {
	for {
		if err := r.frame(onFrame); err != nil {
			return err
		}
		if err := r.scheduler.Next(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("frame scheduler: %w", err)
		}
	}
}

// frame runs one iteration: hook, oscillator, model matrix, draw.
func (r *renderer) frame(onFrame func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &DriverDrawError{Frame: r.Frames() + 1, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()

	if onFrame != nil {
		onFrame()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.oscillator.Update(r.animate)
	if r.animate {
		r.transform.Angle += RotationStep
	}
	r.transform.Rebuild(r.oscillator.Scale)

	if err := r.draw(); err != nil {
		return &DriverDrawError{Frame: r.frames + 1, Err: err}
	}
	r.frames++
	if r.profiler != nil {
		r.profiler.Tick()
	}
	return nil
}

// draw issues one frame to the backend. Locations of -1 are skipped. The caller holds r.mu.
func (r *renderer) draw() error {
	cmd := &r.cmd
	cmd.Program = r.program
	cmd.ClearColor = r.clearColor
	cmd.ClearDepth = 1
	cmd.DepthFunc = DepthLessEqual
	cmd.Viewport = r.viewport
	cmd.Topology = TopologyTriangleStrip
	cmd.IndexBuffer = r.indexBuffer
	cmd.IndexCount = r.indexCount

	cmd.Attributes = cmd.Attributes[:0]
	if r.loc.position >= 0 {
		cmd.Attributes = append(cmd.Attributes, AttribBinding{Location: r.loc.position, Buffer: r.positionBuffer, Components: positionComponents})
	}
	if r.loc.color >= 0 {
		cmd.Attributes = append(cmd.Attributes, AttribBinding{Location: r.loc.color, Buffer: r.colorBuffer, Components: colorComponents})
	}

	cmd.Uniforms = cmd.Uniforms[:0]
	if r.loc.rotate >= 0 {
		cmd.Uniforms = append(cmd.Uniforms, UniformBinding{Location: r.loc.rotate, Matrix: r.transform.Rotate})
	}
	if r.loc.model >= 0 {
		cmd.Uniforms = append(cmd.Uniforms, UniformBinding{Location: r.loc.model, Matrix: r.transform.Model})
	}

	return r.backend.Draw(cmd)
}

func (r *renderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loop != nil {
		r.loop.cancel()
	}
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state < StateContextBound {
		return &StateError{Op: "Resize", Have: r.state, Want: StateContextBound}
	}
	if width <= 0 || height <= 0 {
		// minimized windows report a zero size
		return nil
	}
	if err := r.backend.Resize(width, height); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	r.viewport = common.Viewport{Width: width, Height: height}
	r.backend.SetViewport(r.viewport)
	return nil
}

func (r *renderer) SetAnimation(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.animate = enabled
}

func (r *renderer) ResetTransform() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transform = NewTransform()
	r.oscillator = r.initialOsc
}

func (r *renderer) Release() {
	r.mu.Lock()
	l := r.loop
	r.mu.Unlock()
	if l != nil {
		l.cancel()
		<-l.done
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateUninitialized {
		return
	}
	for _, h := range []Handle{r.indexBuffer, r.colorBuffer, r.positionBuffer} {
		if h != 0 {
			r.backend.DeleteBuffer(h)
		}
	}
	if r.program != 0 {
		r.backend.DeleteProgram(r.program)
	}
	for _, h := range []Handle{r.fragmentShader, r.vertexShader} {
		if h != 0 {
			r.backend.DeleteShader(h)
		}
	}
	r.backend.Release()

	r.indexBuffer, r.colorBuffer, r.positionBuffer = 0, 0, 0
	r.program, r.fragmentShader, r.vertexShader = 0, 0, 0
	r.indexCount = 0
	r.loc = locations{-1, -1, -1, -1}
	r.surface = nil
	r.viewport = common.Viewport{}
	r.state = StateUninitialized
	r.logger.Debug("renderer released")
}

func (r *renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

