package renderer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-raw/common"
	"github.com/Carmen-Shannon/oxy-raw/engine/mesh"
	"github.com/Carmen-Shannon/oxy-raw/engine/surface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testVertexSource   = "vertex source"
	testFragmentSource = "fragment source"
)

// immediateScheduler never waits.
type immediateScheduler struct{}

func (immediateScheduler) Next(ctx context.Context) error { return ctx.Err() }

func newTestRenderer(t *testing.T, opts ...RendererBuilderOption) (*renderer, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	opts = append([]RendererBuilderOption{WithScheduler(immediateScheduler{})}, opts...)
	return NewRenderer(fb, opts...).(*renderer), fb
}

func testSphere(t *testing.T) mesh.Geometry {
	t.Helper()
	g, err := mesh.GenerateSphere(2, 2)
	require.NoError(t, err)
	return g
}

// loadedRenderer runs the full setup up to StateBuffersLoaded.
func loadedRenderer(t *testing.T, opts ...RendererBuilderOption) (*renderer, *fakeBackend) {
	t.Helper()
	r, fb := newTestRenderer(t, opts...)
	require.NoError(t, r.BindContext(surface.Static{W: 640, H: 480}))
	require.NoError(t, r.CompileAndLink(testVertexSource, testFragmentSource))
	require.NoError(t, r.LoadBuffers(testSphere(t), nil))
	require.Equal(t, StateBuffersLoaded, r.State())
	return r, fb
}

// stopAfter cancels the loop once n frames were drawn.
func stopAfter(fb *fakeBackend, n int, cancel context.CancelFunc) {
	fb.onDraw = func(drawn int) error {
		if drawn == n {
			cancel()
		}
		return nil
	}
}

func TestNewRendererDefaults(t *testing.T) {
	r := NewRenderer(newFakeBackend()).(*renderer)
	assert.Equal(t, StateUninitialized, r.State())
	assert.Equal(t, common.ColorBlack, r.clearColor)
	assert.Equal(t, NewOscillator(), r.oscillator)
	assert.False(t, r.animate)
	assert.IsType(t, &TickerScheduler{}, r.scheduler)
	assert.Nil(t, r.profiler)
}

func TestBindContext(t *testing.T) {
	r, fb := newTestRenderer(t)
	require.NoError(t, r.BindContext(surface.Static{W: 640, H: 480}))
	assert.Equal(t, StateContextBound, r.State())
	assert.Equal(t, common.Viewport{Width: 640, Height: 480}, fb.viewport)

	err := r.BindContext(surface.Static{W: 1, H: 1})
	var se *StateError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StateContextBound, se.Have)
	assert.Equal(t, StateUninitialized, se.Want)
}

func TestBindContextErrors(t *testing.T) {
	r, _ := newTestRenderer(t)
	assert.ErrorIs(t, r.BindContext(nil), ErrInvalidSurface)
	assert.Equal(t, StateUninitialized, r.State())

	r, fb := newTestRenderer(t)
	fb.bindErr = ErrContextUnavailable
	assert.ErrorIs(t, r.BindContext(surface.Static{W: 1, H: 1}), ErrContextUnavailable)
	assert.Equal(t, StateUninitialized, r.State())
}

func TestBindContextSelector(t *testing.T) {
	reg := surface.NewRegistry()
	require.NoError(t, reg.Register("main", surface.Static{W: 320, H: 200}))

	r, fb := newTestRenderer(t)
	assert.ErrorIs(t, r.BindContextSelector(reg, "#missing"), ErrInvalidSurface)
	assert.ErrorIs(t, r.BindContextSelector(nil, "#main"), ErrInvalidSurface)
	assert.Equal(t, StateUninitialized, r.State())
	assert.Empty(t, fb.Calls())

	require.NoError(t, r.BindContextSelector(reg, "#main"))
	assert.Equal(t, StateContextBound, r.State())
	assert.Equal(t, common.Viewport{Width: 320, Height: 200}, fb.viewport)

	assert.ErrorIs(t, r.BindContextSelector(reg, "main"), ErrInvalidState)
}

func TestSetViewport(t *testing.T) {
	r, fb := newTestRenderer(t)
	assert.ErrorIs(t, r.SetViewport(0, 0, 10, 10), ErrInvalidState)

	require.NoError(t, r.BindContext(surface.Static{W: 640, H: 480}))
	require.NoError(t, r.SetViewport(10, 20, 300, 200))
	assert.Equal(t, common.Viewport{X: 10, Y: 20, Width: 300, Height: 200}, fb.viewport)
	assert.Equal(t, StateContextBound, r.State())

	assert.Error(t, r.SetViewport(0, 0, -1, 10))
	assert.Equal(t, common.Viewport{X: 10, Y: 20, Width: 300, Height: 200}, fb.viewport)
}

func TestCompileAndLinkOutOfOrder(t *testing.T) {
	r, fb := newTestRenderer(t)
	err := r.CompileAndLink(testVertexSource, testFragmentSource)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateUninitialized, r.State())
	assert.Empty(t, fb.Calls())
}

func TestCompileAndLink(t *testing.T) {
	r, _ := newTestRenderer(t)
	require.NoError(t, r.BindContext(surface.Static{W: 1, H: 1}))
	require.NoError(t, r.CompileAndLink(testVertexSource, testFragmentSource))
	assert.Equal(t, StateProgramLinked, r.State())
	assert.Equal(t, locations{position: 0, color: 1, rotate: 0, model: 1}, r.loc)
	assert.Equal(t, Handle(3), r.program)
}

func TestCompileAndLinkVertexFailure(t *testing.T) {
	r, fb := newTestRenderer(t)
	require.NoError(t, r.BindContext(surface.Static{W: 1, H: 1}))

	err := r.CompileAndLink("syntax error", testFragmentSource)
	var ce *ShaderCompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StageVertex, ce.Stage)
	assert.Contains(t, ce.Log, "syntax error")
	assert.Equal(t, StateContextBound, r.State())
	assert.Zero(t, fb.Live())
}

func TestCompileAndLinkFragmentFailure(t *testing.T) {
	r, fb := newTestRenderer(t)
	require.NoError(t, r.BindContext(surface.Static{W: 1, H: 1}))

	err := r.CompileAndLink(testVertexSource, "syntax error")
	var ce *ShaderCompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StageFragment, ce.Stage)
	assert.Equal(t, StateContextBound, r.State())
	assert.Contains(t, fb.Calls(), "DeleteShader 1")
	assert.Zero(t, fb.Live())

	// the context stays usable
	require.NoError(t, r.CompileAndLink(testVertexSource, testFragmentSource))
}

func TestCompileAndLinkLinkFailure(t *testing.T) {
	r, fb := newTestRenderer(t)
	require.NoError(t, r.BindContext(surface.Static{W: 1, H: 1}))

	err := r.CompileAndLink(testVertexSource, "link error")
	var le *ProgramLinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "varying mismatch", le.Log)
	assert.Equal(t, StateContextBound, r.State())
	assert.Equal(t, []string{
		"BindContext",
		"CompileShader vertex",
		"CompileShader fragment",
		"LinkProgram",
		"DeleteProgram 3",
		"DeleteShader 2",
		"DeleteShader 1",
	}, fb.Calls())
	assert.Zero(t, fb.Live())
}

func TestLoadBuffersBeforeLink(t *testing.T) {
	r, fb := newTestRenderer(t)
	require.NoError(t, r.BindContext(surface.Static{W: 1, H: 1}))

	err := r.LoadBuffers(testSphere(t), nil)
	var se *StateError
	require.ErrorAs(t, err, &se)
	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.Equal(t, "LoadBuffers", se.Op)
	assert.Equal(t, StateContextBound, se.Have)
	assert.Equal(t, StateProgramLinked, se.Want)
	assert.Equal(t, StateContextBound, r.State())
	assert.Equal(t, []string{"BindContext"}, fb.Calls())
}

func TestLoadBuffers(t *testing.T) {
	r, fb := loadedRenderer(t)
	assert.Equal(t, 24, r.indexCount)
	assert.Equal(t, Handle(4), r.positionBuffer)
	assert.Equal(t, Handle(5), r.colorBuffer)
	assert.Equal(t, Handle(6), r.indexBuffer)

	assert.Len(t, fb.buffers[4], 9*3*4)
	assert.Len(t, fb.buffers[6], 24*2)

	// nil color is opaque white for every vertex
	colors := fb.buffers[5]
	require.Len(t, colors, 9*4*4)
	white := common.SliceToBytes(common.ColorWhite.Slice())
	for i := 0; i < 9; i++ {
		assert.Equal(t, white, colors[i*16:(i+1)*16], "vertex %d", i)
	}
}

func TestLoadBuffersColor(t *testing.T) {
	g := testSphere(t)

	broadcast, err := expandColor([]float32{0.2, 0.4, 0.6, 1}, g.VertexCount())
	require.NoError(t, err)
	require.Len(t, broadcast, 36)
	assert.Equal(t, []float32{0.2, 0.4, 0.6, 1}, broadcast[32:])

	perVertex := make([]float32, 36)
	for i := range perVertex {
		perVertex[i] = float32(i)
	}
	got, err := expandColor(perVertex, g.VertexCount())
	require.NoError(t, err)
	assert.Equal(t, perVertex, got)

	_, err = expandColor([]float32{1, 1, 1}, g.VertexCount())
	assert.ErrorIs(t, err, ErrInvalidGeometry)
}

func TestLoadBuffersInvalid(t *testing.T) {
	r, fb := newTestRenderer(t)
	require.NoError(t, r.BindContext(surface.Static{W: 1, H: 1}))
	require.NoError(t, r.CompileAndLink(testVertexSource, testFragmentSource))

	bad := mesh.Geometry{Vertices: []float32{0, 0, 0}, Indices: []uint16{0, 1}}
	assert.ErrorIs(t, r.LoadBuffers(bad, nil), ErrInvalidGeometry)
	assert.ErrorIs(t, r.LoadBuffers(testSphere(t), []float32{1, 0}), ErrInvalidGeometry)
	assert.Equal(t, StateProgramLinked, r.State())
	assert.Empty(t, fb.buffers)
}

func TestLoadBuffersRollback(t *testing.T) {
	r, fb := newTestRenderer(t)
	require.NoError(t, r.BindContext(surface.Static{W: 1, H: 1}))
	require.NoError(t, r.CompileAndLink(testVertexSource, testFragmentSource))

	oom := errors.New("out of memory")
	fb.bufferErr[2] = oom
	err := r.LoadBuffers(testSphere(t), nil)
	assert.ErrorIs(t, err, oom)
	assert.Equal(t, StateProgramLinked, r.State())

	calls := fb.Calls()
	assert.Equal(t, []string{"CreateBuffer 4", "CreateBuffer 5", "DeleteBuffer 5", "DeleteBuffer 4"}, calls[len(calls)-4:])
	assert.Empty(t, fb.buffers)
}

func TestRenderLoopOutOfOrder(t *testing.T) {
	r, _ := newTestRenderer(t)
	require.NoError(t, r.BindContext(surface.Static{W: 1, H: 1}))
	err := r.RenderLoop(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, StateContextBound, r.State())
}

func TestRenderLoopDraws(t *testing.T) {
	r, fb := loadedRenderer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopAfter(fb, 5, cancel)

	var hooks atomic.Int32
	err := r.RenderLoop(ctx, func() { hooks.Add(1) })
	require.NoError(t, err)

	assert.Equal(t, uint64(5), r.Frames())
	assert.Equal(t, int32(5), hooks.Load())
	assert.Equal(t, StateBuffersLoaded, r.State())

	draws := fb.Draws()
	require.Len(t, draws, 5)
	identity := common.NewIdentity()
	for _, d := range draws {
		assert.Equal(t, Handle(3), d.Program)
		assert.Equal(t, common.ColorBlack, d.ClearColor)
		assert.Equal(t, float32(1), d.ClearDepth)
		assert.Equal(t, DepthLessEqual, d.DepthFunc)
		assert.Equal(t, TopologyTriangleStrip, d.Topology)
		assert.Equal(t, common.Viewport{Width: 640, Height: 480}, d.Viewport)
		assert.Equal(t, Handle(6), d.IndexBuffer)
		assert.Equal(t, 24, d.IndexCount)
		assert.Equal(t, []AttribBinding{
			{Location: 0, Buffer: 4, Components: 3},
			{Location: 1, Buffer: 5, Components: 4},
		}, d.Attributes)

		// frozen by default: scale stays 1 and nothing rotates
		require.Len(t, d.Uniforms, 2)
		assert.Equal(t, UniformBinding{Location: 0, Matrix: identity}, d.Uniforms[0])
		assert.Equal(t, UniformBinding{Location: 1, Matrix: identity}, d.Uniforms[1])
	}

	// the loop can be started again
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	stopAfter(fb, 6, cancel2)
	require.NoError(t, r.RenderLoop(ctx2, nil))
	assert.Equal(t, uint64(6), r.Frames())
}

func TestRenderLoopAnimation(t *testing.T) {
	r, fb := loadedRenderer(t, WithAnimation(true))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopAfter(fb, 2, cancel)
	require.NoError(t, r.RenderLoop(ctx, nil))

	draws := fb.Draws()
	require.Len(t, draws, 2)

	var want common.Mat4
	common.BuildModelMatrix(want[:], RotationStep, 0.99)
	assert.InDeltaSlice(t, want[:], draws[0].Uniforms[1].Matrix[:], 1e-6)

	common.BuildModelMatrix(want[:], 2*RotationStep, 0.98)
	assert.InDeltaSlice(t, want[:], draws[1].Uniforms[1].Matrix[:], 1e-6)

	assert.Equal(t, common.NewIdentity(), draws[1].Uniforms[0].Matrix)
}

func TestRenderLoopSkipsMissingLocations(t *testing.T) {
	r, fb := newTestRenderer(t)
	fb.missing[AttribVertexColor] = true
	fb.missing[UniformModelMatrix] = true

	require.NoError(t, r.BindContext(surface.Static{W: 1, H: 1}))
	require.NoError(t, r.CompileAndLink(testVertexSource, testFragmentSource))
	assert.Equal(t, -1, r.loc.color)
	assert.Equal(t, -1, r.loc.model)
	require.NoError(t, r.LoadBuffers(testSphere(t), nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopAfter(fb, 1, cancel)
	require.NoError(t, r.RenderLoop(ctx, nil))

	d := fb.Draws()[0]
	assert.Equal(t, []AttribBinding{{Location: 0, Buffer: 4, Components: 3}}, d.Attributes)
	require.Len(t, d.Uniforms, 1)
	assert.Equal(t, 0, d.Uniforms[0].Location)
}

func TestRenderLoopDrawError(t *testing.T) {
	r, fb := loadedRenderer(t)
	lost := errors.New("device lost")
	fb.onDraw = func(n int) error {
		if n == 3 {
			return lost
		}
		return nil
	}

	err := r.RenderLoop(context.Background(), nil)
	var de *DriverDrawError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uint64(3), de.Frame)
	assert.ErrorIs(t, err, lost)

	// not rescheduled after the failure
	assert.Len(t, fb.Draws(), 3)
	assert.Equal(t, uint64(2), r.Frames())
	assert.Equal(t, StateBuffersLoaded, r.State())
}

func TestRenderLoopPanic(t *testing.T) {
	r, _ := loadedRenderer(t)
	err := r.RenderLoop(context.Background(), func() { panic("boom") })

	var de *DriverDrawError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uint64(1), de.Frame)
	assert.Contains(t, de.Error(), "boom")
	assert.Equal(t, StateBuffersLoaded, r.State())
}

func TestRenderLoopJoin(t *testing.T) {
	sched := NewManualScheduler()
	r, _ := loadedRenderer(t, WithScheduler(sched))

	first := make(chan error, 1)
	go func() { first <- r.RenderLoop(context.Background(), nil) }()
	require.Eventually(t, func() bool { return r.State() == StateRendering }, time.Second, time.Millisecond)

	var joinerHook atomic.Bool
	second := make(chan error, 1)
	go func() { second <- r.RenderLoop(context.Background(), func() { joinerHook.Store(true) }) }()
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.loop != nil && r.loop.joined == 1
	}, time.Second, time.Millisecond)

	step, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sched.Step(step))
	require.NoError(t, sched.Step(step))

	r.Stop()
	r.Stop()
	assert.NoError(t, <-first)
	assert.NoError(t, <-second)
	assert.False(t, joinerHook.Load())
	assert.Equal(t, uint64(3), r.Frames())
	assert.Equal(t, StateBuffersLoaded, r.State())
}

func TestRenderLoopJoinerContext(t *testing.T) {
	sched := NewManualScheduler()
	r, _ := loadedRenderer(t, WithScheduler(sched))

	done := make(chan error, 1)
	go func() { done <- r.RenderLoop(context.Background(), nil) }()
	require.Eventually(t, func() bool { return r.State() == StateRendering }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.RenderLoop(ctx, nil), context.Canceled)
	assert.Equal(t, StateRendering, r.State())

	r.Stop()
	assert.NoError(t, <-done)
}

func TestStopWithoutLoop(t *testing.T) {
	r, _ := loadedRenderer(t)
	r.Stop()
	assert.Equal(t, StateBuffersLoaded, r.State())
}

func TestRelease(t *testing.T) {
	r, fb := loadedRenderer(t)
	before := len(fb.Calls())

	r.Release()
	assert.Equal(t, []string{
		"DeleteBuffer 6",
		"DeleteBuffer 5",
		"DeleteBuffer 4",
		"DeleteProgram 3",
		"DeleteShader 2",
		"DeleteShader 1",
		"Release",
	}, fb.Calls()[before:])
	assert.Equal(t, StateUninitialized, r.State())
	assert.Zero(t, fb.Live())

	// a second release is a no-op and the renderer can be set up again
	r.Release()
	assert.Len(t, fb.Calls(), before+7)
	require.NoError(t, r.BindContext(surface.Static{W: 1, H: 1}))
}

func TestReleaseStopsLoop(t *testing.T) {
	r, fb := loadedRenderer(t, WithScheduler(NewManualScheduler()))
	done := make(chan error, 1)
	go func() { done <- r.RenderLoop(context.Background(), nil) }()
	require.Eventually(t, func() bool { return r.State() == StateRendering }, time.Second, time.Millisecond)

	r.Release()
	assert.NoError(t, <-done)
	assert.Equal(t, StateUninitialized, r.State())
	assert.Zero(t, fb.Live())
}

func TestReleaseOnStop(t *testing.T) {
	r, fb := loadedRenderer(t, WithReleaseOnStop(true))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopAfter(fb, 1, cancel)

	require.NoError(t, r.RenderLoop(ctx, nil))
	assert.Equal(t, StateUninitialized, r.State())
	assert.Zero(t, fb.Live())
}

func TestResize(t *testing.T) {
	r, fb := newTestRenderer(t)
	assert.ErrorIs(t, r.Resize(100, 100), ErrInvalidState)

	require.NoError(t, r.BindContext(surface.Static{W: 640, H: 480}))
	require.NoError(t, r.SetViewport(5, 5, 10, 10))
	require.NoError(t, r.Resize(1024, 768))
	assert.Equal(t, common.Viewport{Width: 1024, Height: 768}, fb.viewport)
	assert.Contains(t, fb.Calls(), "Resize 1024x768")

	// minimized
	require.NoError(t, r.Resize(0, 0))
	assert.Equal(t, common.Viewport{Width: 1024, Height: 768}, fb.viewport)
}

func TestSetAnimation(t *testing.T) {
	r, fb := loadedRenderer(t)
	r.SetAnimation(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopAfter(fb, 1, cancel)
	require.NoError(t, r.RenderLoop(ctx, nil))
	assert.InDelta(t, 0.99, r.oscillator.Scale, 1e-6)
	assert.InDelta(t, RotationStep, r.transform.Angle, 1e-9)
}

func TestResetTransform(t *testing.T) {
	osc := Oscillator{Scale: 0.8, Change: 0.01, Min: 0.5, Max: 0.9, Step: 0.01}
	r, fb := loadedRenderer(t, WithAnimation(true), WithOscillator(osc))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopAfter(fb, 3, cancel)
	require.NoError(t, r.RenderLoop(ctx, nil))
	require.NotEqual(t, osc, r.oscillator)

	r.ResetTransform()
	assert.Equal(t, osc, r.oscillator)
	assert.Equal(t, NewTransform(), r.transform)
}

func TestWithProfiling(t *testing.T) {
	r, _ := newTestRenderer(t, WithProfiling(true))
	assert.NotNil(t, r.profiler)

	r, _ = newTestRenderer(t, WithProfiling(true), WithProfiling(false))
	assert.Nil(t, r.profiler)
}
