//go:build !js

package renderer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Carmen-Shannon/oxy-raw/common"
	"github.com/Carmen-Shannon/oxy-raw/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-raw/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-raw/engine/surface"
	"github.com/cogentcore/webgpu/wgpu"
)

// WGPUSurface is a surface the WebGPU backend can present to, such as a glfw window.
type WGPUSurface interface {
	surface.Surface
	SurfaceDescriptor() *wgpu.SurfaceDescriptor
}

const depthFormat = wgpu.TextureFormatDepth24Plus

type wgpuShader struct {
	stage      ShaderStage
	source     string
	entryPoint string
	module     *wgpu.ShaderModule
}

type wgpuProgram struct {
	pipeline  *wgpu.RenderPipeline
	layout    *wgpu.PipelineLayout
	providers []bind_group_provider.BindGroupProvider

	// inputs are the vertex inputs in slot order.
	inputs   []shader.VertexInput
	uniforms []shader.Uniform
}

func (p *wgpuProgram) release() {
	for _, prov := range p.providers {
		prov.Release()
	}
	if p.pipeline != nil {
		p.pipeline.Release()
	}
	if p.layout != nil {
		p.layout.Release()
	}
}

// slot returns the vertex buffer slot feeding a location.
func (p *wgpuProgram) slot(location int) (int, shader.VertexInput, bool) {
	for i, in := range p.inputs {
		if in.Location == location {
			return i, in, true
		}
	}
	return 0, shader.VertexInput{}, false
}

type wgpuBuffer struct {
	kind   BufferKind
	buffer *wgpu.Buffer
}

// wgpuBackend implements Backend on WebGPU. Shader objects are WGSL modules, a program is a render
// pipeline with one vertex buffer slot per @location input and one uniform buffer per var<uniform>.
// Uniform locations encode group<<8 | binding.
type wgpuBackend struct {
	mu     sync.Mutex
	logger *slog.Logger

	forceFallbackAdapter bool
	presentMode          PresentMode

	instance      *wgpu.Instance
	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceFormat wgpu.TextureFormat
	width, height int
	depthTexture  *wgpu.Texture
	depthView     *wgpu.TextureView
	viewport      common.Viewport

	next     Handle
	shaders  map[Handle]*wgpuShader
	programs map[Handle]*wgpuProgram
	buffers  map[Handle]*wgpuBuffer
}

var _ Backend = &wgpuBackend{}

// NewWGPUBackend creates a WebGPU Backend. No device is acquired until BindContext.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - Backend: the backend
func NewWGPUBackend(options ...WGPUBackendOption) Backend {
	b := &wgpuBackend{
		logger:      slog.Default(),
		presentMode: PresentModeVSync,
		shaders:     make(map[Handle]*wgpuShader),
		programs:    make(map[Handle]*wgpuProgram),
		buffers:     make(map[Handle]*wgpuBuffer),
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *wgpuBackend) handle() Handle {
	b.next++
	return b.next
}

func (b *wgpuBackend) BindContext(s surface.Surface) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ws, ok := s.(WGPUSurface)
	if !ok {
		return fmt.Errorf("%T cannot provide a WebGPU surface: %w", s, ErrInvalidSurface)
	}
	desc := ws.SurfaceDescriptor()
	if desc == nil {
		return fmt.Errorf("no surface descriptor: %w", ErrInvalidSurface)
	}

	b.instance = wgpu.CreateInstance(nil)
	if b.instance == nil {
		return fmt.Errorf("create instance: %w", ErrContextUnavailable)
	}
	b.surface = b.instance.CreateSurface(desc)
	if b.surface == nil {
		b.releaseContext()
		return fmt.Errorf("create surface: %w", ErrInvalidSurface)
	}

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.releaseContext()
		return fmt.Errorf("request adapter: %v: %w", err, ErrContextUnavailable)
	}
	b.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Raw Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		b.releaseContext()
		return fmt.Errorf("request device: %v: %w", err, ErrContextUnavailable)
	}
	b.device = d
	b.queue = d.GetQueue()

	if err := b.configureSurface(s.Width(), s.Height()); err != nil {
		b.releaseContext()
		return err
	}
	b.logger.Debug("webgpu context bound", "format", b.surfaceFormat, "width", b.width, "height", b.height)
	return nil
}

// configureSurface (re)configures the swapchain and the depth attachment. The caller holds b.mu.
func (b *wgpuBackend) configureSurface(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("surface size %dx%d: %w", width, height, ErrInvalidSurface)
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	if len(capabilities.Formats) == 0 {
		return fmt.Errorf("surface reports no formats: %w", ErrInvalidSurface)
	}
	b.surfaceFormat = capabilities.Formats[0]

	presentMode := wgpu.PresentModeFifo
	if b.presentMode == PresentModeUncapped {
		presentMode = wgpu.PresentModeImmediate
	}
	alphaMode := wgpu.CompositeAlphaModeAuto
	if len(capabilities.AlphaModes) > 0 {
		alphaMode = capabilities.AlphaModes[0]
	}

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   alphaMode,
	})

	b.releaseDepth()
	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        depthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create depth texture: %w", err)
	}
	depthView, err := depthTexture.CreateView(nil)
	if err != nil {
		depthTexture.Release()
		return fmt.Errorf("create depth view: %w", err)
	}
	b.depthTexture, b.depthView = depthTexture, depthView
	b.width, b.height = width, height
	return nil
}

func (b *wgpuBackend) releaseDepth() {
	if b.depthView != nil {
		b.depthView.Release()
		b.depthView = nil
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
		b.depthTexture = nil
	}
}

// releaseContext drops the device objects in reverse acquisition order. The caller holds b.mu.
func (b *wgpuBackend) releaseContext() {
	b.releaseDepth()
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

func (b *wgpuBackend) Resize(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.device == nil {
		return ErrContextUnavailable
	}
	return b.configureSurface(width, height)
}

func (b *wgpuBackend) SetViewport(v common.Viewport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewport = v
}

func (b *wgpuBackend) CompileShader(stage ShaderStage, source string) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return 0, ErrContextUnavailable
	}

	reflectStage := shader.StageVertex
	if stage == StageFragment {
		reflectStage = shader.StageFragment
	}
	entry := shader.ParseEntryPoint(source, reflectStage)
	if entry == "" {
		return 0, fmt.Errorf("no @%s entry point", reflectStage)
	}

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: stage.String() + " shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	})
	if err != nil {
		return 0, err
	}

	h := b.handle()
	b.shaders[h] = &wgpuShader{stage: stage, source: source, entryPoint: entry, module: module}
	return h, nil
}

func (b *wgpuBackend) DeleteShader(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.shaders[h]; ok {
		s.module.Release()
		delete(b.shaders, h)
	}
}

// mergeUniforms joins the uniform declarations of both stages, widening the visibility of shared bindings.
func mergeUniforms(vs, fs []shader.Uniform) ([]shader.Uniform, map[[2]int]wgpu.ShaderStage) {
	visibility := make(map[[2]int]wgpu.ShaderStage)
	var merged []shader.Uniform
	add := func(list []shader.Uniform, stage wgpu.ShaderStage) {
		for _, u := range list {
			key := [2]int{u.Group, u.Binding}
			if _, seen := visibility[key]; !seen {
				merged = append(merged, u)
			}
			visibility[key] |= stage
		}
	}
	add(vs, wgpu.ShaderStageVertex)
	add(fs, wgpu.ShaderStageFragment)
	return merged, visibility
}

func (b *wgpuBackend) LinkProgram(vertex, fragment Handle) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vs, fs := b.shaders[vertex], b.shaders[fragment]
	if vs == nil || vs.stage != StageVertex {
		return 0, fmt.Errorf("handle %d is not a vertex shader", vertex)
	}
	if fs == nil || fs.stage != StageFragment {
		return 0, fmt.Errorf("handle %d is not a fragment shader", fragment)
	}

	prog := &wgpuProgram{inputs: shader.ParseVertexInputs(vs.source)}
	uniforms, visibility := mergeUniforms(shader.ParseUniforms(vs.source), shader.ParseUniforms(fs.source))
	prog.uniforms = uniforms

	if err := b.createUniforms(prog, visibility); err != nil {
		prog.release()
		return 0, err
	}

	layouts := make([]*wgpu.BindGroupLayout, len(prog.providers))
	for i, p := range prog.providers {
		layouts[i] = p.BindGroupLayout()
	}
	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Raw Pipeline Layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		prog.release()
		return 0, err
	}
	prog.layout = layout

	vertexLayouts := make([]wgpu.VertexBufferLayout, len(prog.inputs))
	for i, in := range prog.inputs {
		vertexLayouts[i] = wgpu.VertexBufferLayout{
			ArrayStride: in.Size,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{{
				Format:         in.Format,
				Offset:         0,
				ShaderLocation: uint32(in.Location),
			}},
		}
	}

	pipeline, err := b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Raw Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs.module,
			EntryPoint: vs.entryPoint,
			Buffers:    vertexLayouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs.module,
			EntryPoint: fs.entryPoint,
			Targets: []wgpu.ColorTargetState{{
				Format:    b.surfaceFormat,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:         wgpu.PrimitiveTopologyTriangleStrip,
			StripIndexFormat: wgpu.IndexFormatUint16,
			FrontFace:        wgpu.FrontFaceCCW,
			CullMode:         wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            depthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLessEqual,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
	})
	if err != nil {
		prog.release()
		return 0, err
	}
	prog.pipeline = pipeline

	h := b.handle()
	b.programs[h] = prog
	return h, nil
}

// createUniforms creates one provider per @group with a uniform buffer per binding.
// Groups must be contiguous from 0 because every group of the pipeline layout needs a bind group.
func (b *wgpuBackend) createUniforms(prog *wgpuProgram, visibility map[[2]int]wgpu.ShaderStage) error {
	byGroup := make(map[int][]shader.Uniform)
	for _, u := range prog.uniforms {
		if u.Size == 0 {
			return fmt.Errorf("uniform %q has a type of unknown size", u.Name)
		}
		byGroup[u.Group] = append(byGroup[u.Group], u)
	}

	for g := 0; g < len(byGroup); g++ {
		list, ok := byGroup[g]
		if !ok {
			return fmt.Errorf("uniform groups must be contiguous from 0, group %d is empty", g)
		}

		entries := make([]wgpu.BindGroupLayoutEntry, len(list))
		for i, u := range list {
			entries[i] = wgpu.BindGroupLayoutEntry{
				Binding:    uint32(u.Binding),
				Visibility: visibility[[2]int{u.Group, u.Binding}],
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: u.Size,
				},
			}
		}
		bgl, err := b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("Uniform Group %d Layout", g),
			Entries: entries,
		})
		if err != nil {
			return fmt.Errorf("create bind group layout %d: %w", g, err)
		}

		opts := []bind_group_provider.BindGroupProviderOption{bind_group_provider.WithBindGroupLayout(bgl)}
		for _, u := range list {
			buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
				Label: u.Name,
				Size:  u.Size,
				Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
			})
			if err != nil {
				// hand over what was created so prog.release frees it
				prog.providers = append(prog.providers, bind_group_provider.NewBindGroupProvider(u.Name, g, opts...))
				return fmt.Errorf("create uniform buffer %q: %w", u.Name, err)
			}
			opts = append(opts, bind_group_provider.WithBuffer(u.Binding, buf))
		}
		provider := bind_group_provider.NewBindGroupProvider(fmt.Sprintf("Uniform Group %d", g), g, opts...)
		prog.providers = append(prog.providers, provider)

		bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   provider.Label() + " Bind Group",
			Layout:  bgl,
			Entries: provider.Entries(),
		})
		if err != nil {
			return fmt.Errorf("create bind group %d: %w", g, err)
		}
		provider.SetBindGroup(bg)
	}
	return nil
}

func (b *wgpuBackend) DeleteProgram(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.programs[h]; ok {
		p.release()
		delete(b.programs, h)
	}
}

func (b *wgpuBackend) AttribLocation(program Handle, name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.programs[program]; ok {
		for _, in := range p.inputs {
			if in.Name == name {
				return in.Location
			}
		}
	}
	return -1
}

func (b *wgpuBackend) UniformLocation(program Handle, name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.programs[program]; ok {
		for _, u := range p.uniforms {
			if u.Name == name {
				return u.Group<<8 | u.Binding
			}
		}
	}
	return -1
}

func (b *wgpuBackend) CreateBuffer(kind BufferKind, data []byte) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.device == nil {
		return 0, ErrContextUnavailable
	}
	if len(data) == 0 {
		return 0, errors.New("empty buffer")
	}

	usage := wgpu.BufferUsageVertex
	label := "Vertex Buffer"
	if kind == BufferIndex {
		usage = wgpu.BufferUsageIndex
		label = "Index Buffer"
	}
	// mapped-at-creation sizes must be 4 byte aligned
	if pad := len(data) % 4; pad != 0 {
		data = append(append(make([]byte, 0, len(data)+4-pad), data...), make([]byte, 4-pad)...)
	}

	buf, err := b.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: data,
		Usage:    usage,
	})
	if err != nil {
		return 0, err
	}

	h := b.handle()
	b.buffers[h] = &wgpuBuffer{kind: kind, buffer: buf}
	return h, nil
}

func (b *wgpuBackend) DeleteBuffer(h Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if buf, ok := b.buffers[h]; ok {
		buf.buffer.Release()
		delete(b.buffers, h)
	}
}

// validate resolves every binding of cmd before any frame resource is acquired.
func (b *wgpuBackend) validate(cmd *DrawCommand) (*wgpuProgram, []bind_group_provider.BufferWrite, error) {
	if b.device == nil {
		return nil, nil, ErrContextUnavailable
	}
	prog := b.programs[cmd.Program]
	if prog == nil {
		return nil, nil, fmt.Errorf("unknown program %d", cmd.Program)
	}
	if cmd.Topology != TopologyTriangleStrip || cmd.DepthFunc != DepthLessEqual {
		return nil, nil, errors.New("pipeline is built for triangle strips with less-equal depth")
	}
	if len(cmd.Attributes) != len(prog.inputs) {
		return nil, nil, fmt.Errorf("program has %d vertex inputs, %d bound", len(prog.inputs), len(cmd.Attributes))
	}
	for _, a := range cmd.Attributes {
		_, in, ok := prog.slot(a.Location)
		if !ok {
			return nil, nil, fmt.Errorf("no vertex input at location %d", a.Location)
		}
		if uint64(a.Components*4) != in.Size {
			return nil, nil, fmt.Errorf("vertex input %q takes %d bytes, bound %d floats", in.Name, in.Size, a.Components)
		}
		if buf := b.buffers[a.Buffer]; buf == nil || buf.kind != BufferVertex {
			return nil, nil, fmt.Errorf("location %d: %d is not a vertex buffer", a.Location, a.Buffer)
		}
	}
	if buf := b.buffers[cmd.IndexBuffer]; buf == nil || buf.kind != BufferIndex {
		return nil, nil, fmt.Errorf("%d is not an index buffer", cmd.IndexBuffer)
	}

	writes := make([]bind_group_provider.BufferWrite, 0, len(cmd.Uniforms))
	for _, u := range cmd.Uniforms {
		group, binding := u.Location>>8, u.Location&0xFF
		if group >= len(prog.providers) || prog.providers[group].Buffer(binding) == nil {
			return nil, nil, fmt.Errorf("no uniform at location %d", u.Location)
		}
		writes = append(writes, bind_group_provider.BufferWrite{
			Provider: prog.providers[group],
			Binding:  binding,
			Data:     common.SliceToBytes(u.Matrix[:]),
		})
	}
	return prog, writes, nil
}

func (b *wgpuBackend) Draw(cmd *DrawCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	prog, writes, err := b.validate(cmd)
	if err != nil {
		return err
	}
	for _, w := range writes {
		if err := b.queue.WriteBuffer(w.Provider.Buffer(w.Binding), w.Offset, w.Data); err != nil {
			return fmt.Errorf("write uniform: %w", err)
		}
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquire surface texture: %w", err)
	}
	defer surfaceTexture.Release()

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	c := cmd.ClearColor
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(c.R), G: float64(c.G), B: float64(c.B), A: float64(c.A)},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: cmd.ClearDepth,
		},
	})

	pass.SetPipeline(prog.pipeline)
	if vp := clampViewport(cmd.Viewport, b.width, b.height); !vp.Empty() {
		pass.SetViewport(float32(vp.X), float32(vp.Y), float32(vp.Width), float32(vp.Height), 0, 1)
	}
	for _, p := range prog.providers {
		pass.SetBindGroup(uint32(p.Group()), p.BindGroup(), nil)
	}
	for _, a := range cmd.Attributes {
		slot, _, _ := prog.slot(a.Location)
		pass.SetVertexBuffer(uint32(slot), b.buffers[a.Buffer].buffer, 0, wgpu.WholeSize)
	}
	pass.SetIndexBuffer(b.buffers[cmd.IndexBuffer].buffer, wgpu.IndexFormatUint16, 0, wgpu.WholeSize)
	pass.DrawIndexed(uint32(cmd.IndexCount), 1, 0, 0, 0)
	pass.End()
	pass.Release()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer commandBuffer.Release()

	b.queue.Submit(commandBuffer)
	b.surface.Present()
	return nil
}

// clampViewport keeps v inside the drawable, since WebGPU rejects viewports outside the attachment.
func clampViewport(v common.Viewport, width, height int) common.Viewport {
	x0, y0 := min(max(v.X, 0), width), min(max(v.Y, 0), height)
	x1, y1 := min(max(v.X+v.Width, 0), width), min(max(v.Y+v.Height, 0), height)
	return common.Viewport{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func (b *wgpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for h, buf := range b.buffers {
		buf.buffer.Release()
		delete(b.buffers, h)
	}
	for h, p := range b.programs {
		p.release()
		delete(b.programs, h)
	}
	for h, s := range b.shaders {
		s.module.Release()
		delete(b.shaders, h)
	}
	b.releaseContext()
	b.viewport = common.Viewport{}
}
