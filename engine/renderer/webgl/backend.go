//go:build js && wasm

package webgl

import (
	"errors"
	"fmt"
	"sync"
	"syscall/js"

	"github.com/Carmen-Shannon/oxy-raw/common"
	"github.com/Carmen-Shannon/oxy-raw/engine/renderer"
	"github.com/Carmen-Shannon/oxy-raw/engine/surface"
)

// program is a linked WebGL program. Uniform locations are indexes into uniforms.
type program struct {
	obj      js.Value
	uniforms []js.Value
	names    map[string]int
}

// backend implements renderer.Backend on a WebGL2 context.
type backend struct {
	mu     sync.Mutex
	canvas *Canvas
	gl     js.Value
	consts glConsts

	viewport common.Viewport
	scratch  js.Value

	next     renderer.Handle
	shaders  map[renderer.Handle]js.Value
	programs map[renderer.Handle]*program
	buffers  map[renderer.Handle]js.Value
}

var _ renderer.Backend = &backend{}

// NewBackend creates a WebGL2 backend. The context is acquired by BindContext.
func NewBackend() renderer.Backend {
	return &backend{
		shaders:  make(map[renderer.Handle]js.Value),
		programs: make(map[renderer.Handle]*program),
		buffers:  make(map[renderer.Handle]js.Value),
	}
}

func (b *backend) handle() renderer.Handle {
	b.next++
	return b.next
}

func (b *backend) BindContext(s surface.Surface) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := s.(*Canvas)
	if !ok {
		return fmt.Errorf("%T is not a canvas: %w", s, renderer.ErrInvalidSurface)
	}
	gl := c.el.Call("getContext", "webgl2")
	if gl.IsUndefined() || gl.IsNull() {
		return fmt.Errorf("webgl2: %w", renderer.ErrContextUnavailable)
	}
	b.canvas, b.gl = c, gl
	b.consts = readConsts(gl)
	b.scratch = js.Global().Get("Float32Array").New(16)
	return nil
}

func (b *backend) Resize(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.canvas == nil {
		return renderer.ErrContextUnavailable
	}
	b.canvas.SetSize(width, height)
	return nil
}

func (b *backend) SetViewport(v common.Viewport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.viewport = v
}

func (b *backend) CompileShader(stage renderer.ShaderStage, source string) (renderer.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.gl.Truthy() {
		return 0, renderer.ErrContextUnavailable
	}
	shaderType := b.consts.vertexShader
	if stage == renderer.StageFragment {
		shaderType = b.consts.fragmentShader
	}
	shader := b.gl.Call("createShader", shaderType)
	if !shader.Truthy() {
		return 0, errors.New("createShader returned null")
	}
	b.gl.Call("shaderSource", shader, source)
	b.gl.Call("compileShader", shader)
	if !b.gl.Call("getShaderParameter", shader, b.consts.compileStatus).Bool() {
		log := b.gl.Call("getShaderInfoLog", shader).String()
		b.gl.Call("deleteShader", shader)
		return 0, errors.New(log)
	}

	h := b.handle()
	b.shaders[h] = shader
	return h, nil
}

func (b *backend) DeleteShader(h renderer.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.shaders[h]; ok {
		b.gl.Call("deleteShader", s)
		delete(b.shaders, h)
	}
}

// LinkProgram returns the program handle together with a link error so the caller can delete it.
func (b *backend) LinkProgram(vertex, fragment renderer.Handle) (renderer.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	vs, okv := b.shaders[vertex]
	fs, okf := b.shaders[fragment]
	if !okv || !okf {
		return 0, fmt.Errorf("unknown shader handles %d, %d", vertex, fragment)
	}

	obj := b.gl.Call("createProgram")
	if !obj.Truthy() {
		return 0, errors.New("createProgram returned null")
	}
	b.gl.Call("attachShader", obj, vs)
	b.gl.Call("attachShader", obj, fs)
	b.gl.Call("linkProgram", obj)

	h := b.handle()
	b.programs[h] = &program{obj: obj, names: make(map[string]int)}
	if !b.gl.Call("getProgramParameter", obj, b.consts.linkStatus).Bool() {
		return h, errors.New(b.gl.Call("getProgramInfoLog", obj).String())
	}
	return h, nil
}

func (b *backend) DeleteProgram(h renderer.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.programs[h]; ok {
		b.gl.Call("deleteProgram", p.obj)
		delete(b.programs, h)
	}
}

func (b *backend) AttribLocation(prog renderer.Handle, name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.programs[prog]
	if !ok {
		return -1
	}
	return b.gl.Call("getAttribLocation", p.obj, name).Int()
}

func (b *backend) UniformLocation(prog renderer.Handle, name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.programs[prog]
	if !ok {
		return -1
	}
	if i, ok := p.names[name]; ok {
		return i
	}
	loc := b.gl.Call("getUniformLocation", p.obj, name)
	if loc.IsNull() {
		return -1
	}
	p.uniforms = append(p.uniforms, loc)
	p.names[name] = len(p.uniforms) - 1
	return len(p.uniforms) - 1
}

func (b *backend) CreateBuffer(kind renderer.BufferKind, data []byte) (renderer.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.gl.Truthy() {
		return 0, renderer.ErrContextUnavailable
	}
	target := b.consts.arrayBuffer
	if kind == renderer.BufferIndex {
		target = b.consts.elementArrayBuffer
	}
	buf := b.gl.Call("createBuffer")
	if !buf.Truthy() {
		return 0, errors.New("createBuffer returned null")
	}
	b.gl.Call("bindBuffer", target, buf)
	b.gl.Call("bufferData", target, uint8Array(data), b.consts.staticDraw)

	h := b.handle()
	b.buffers[h] = buf
	return h, nil
}

func (b *backend) DeleteBuffer(h renderer.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if buf, ok := b.buffers[h]; ok {
		b.gl.Call("deleteBuffer", buf)
		delete(b.buffers, h)
	}
}

func (b *backend) depthFunc(f renderer.DepthFunc) int {
	switch f {
	case renderer.DepthLess:
		return b.consts.less
	case renderer.DepthAlways:
		return b.consts.always
	}
	return b.consts.lequal
}

func (b *backend) mode(t renderer.Topology) int {
	if t == renderer.TopologyTriangleList {
		return b.consts.triangles
	}
	return b.consts.triangleStrip
}

func (b *backend) Draw(cmd *renderer.DrawCommand) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.gl.Truthy() || b.gl.Call("isContextLost").Bool() {
		return renderer.ErrContextUnavailable
	}
	p, ok := b.programs[cmd.Program]
	if !ok {
		return fmt.Errorf("unknown program %d", cmd.Program)
	}
	index, ok := b.buffers[cmd.IndexBuffer]
	if !ok {
		return fmt.Errorf("unknown index buffer %d", cmd.IndexBuffer)
	}

	gl, c := b.gl, b.consts
	vp := cmd.Viewport
	gl.Call("viewport", vp.X, vp.Y, vp.Width, vp.Height)
	gl.Call("clearColor", cmd.ClearColor.R, cmd.ClearColor.G, cmd.ClearColor.B, cmd.ClearColor.A)
	gl.Call("clearDepth", cmd.ClearDepth)
	gl.Call("enable", c.depthTest)
	gl.Call("depthFunc", b.depthFunc(cmd.DepthFunc))
	gl.Call("clear", c.colorBufferBit|c.depthBufferBit)

	gl.Call("useProgram", p.obj)
	for _, a := range cmd.Attributes {
		buf, ok := b.buffers[a.Buffer]
		if !ok {
			return fmt.Errorf("unknown vertex buffer %d", a.Buffer)
		}
		gl.Call("bindBuffer", c.arrayBuffer, buf)
		gl.Call("vertexAttribPointer", a.Location, a.Components, c.floatType, false, 0, 0)
		gl.Call("enableVertexAttribArray", a.Location)
	}
	for _, u := range cmd.Uniforms {
		if u.Location < 0 || u.Location >= len(p.uniforms) {
			return fmt.Errorf("unknown uniform location %d", u.Location)
		}
		for i, v := range u.Matrix {
			b.scratch.SetIndex(i, v)
		}
		gl.Call("uniformMatrix4fv", p.uniforms[u.Location], false, b.scratch)
	}

	gl.Call("bindBuffer", c.elementArrayBuffer, index)
	gl.Call("drawElements", b.mode(cmd.Topology), cmd.IndexCount, c.unsignedShort, 0)

	if code := gl.Call("getError").Int(); code != c.noError {
		return fmt.Errorf("webgl error 0x%04x", code)
	}
	return nil
}

func (b *backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.gl.Truthy() {
		for h, buf := range b.buffers {
			b.gl.Call("deleteBuffer", buf)
			delete(b.buffers, h)
		}
		for h, p := range b.programs {
			b.gl.Call("deleteProgram", p.obj)
			delete(b.programs, h)
		}
		for h, s := range b.shaders {
			b.gl.Call("deleteShader", s)
			delete(b.shaders, h)
		}
	}
	b.canvas, b.gl = nil, js.Undefined()
	b.viewport = common.Viewport{}
}

// uint8Array copies data into a new Uint8Array.
func uint8Array(data []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	return arr
}
