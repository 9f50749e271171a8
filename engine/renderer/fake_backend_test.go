package renderer

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-raw/common"
	"github.com/Carmen-Shannon/oxy-raw/engine/surface"
)

// fakeBackend records every device call. Sources containing "syntax error" fail to compile and a fragment
// source containing "link error" fails to link.
type fakeBackend struct {
	mu sync.Mutex

	next     Handle
	calls    []string
	live     map[Handle]string
	buffers  map[Handle][]byte
	draws    []DrawCommand
	viewport common.Viewport
	sources  map[Handle]string

	bindErr   error
	bufferErr map[int]error // keyed by 0-based CreateBuffer call
	bufferN   int
	onDraw    func(n int) error
	missing   map[string]bool
}

var _ Backend = &fakeBackend{}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		live:      make(map[Handle]string),
		buffers:   make(map[Handle][]byte),
		sources:   make(map[Handle]string),
		bufferErr: make(map[int]error),
		missing:   make(map[string]bool),
	}
}

func (f *fakeBackend) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeBackend) alloc(kind string) Handle {
	f.next++
	f.live[f.next] = kind
	return f.next
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Draws() []DrawCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DrawCommand(nil), f.draws...)
}

func (f *fakeBackend) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *fakeBackend) BindContext(s surface.Surface) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("BindContext")
	return f.bindErr
}

func (f *fakeBackend) Resize(width, height int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Resize %dx%d", width, height)
	return nil
}

func (f *fakeBackend) SetViewport(v common.Viewport) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewport = v
}

func (f *fakeBackend) CompileShader(stage ShaderStage, source string) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CompileShader %s", stage)
	if strings.Contains(source, "syntax error") {
		return 0, errors.New("ERROR: 0:1: syntax error")
	}
	h := f.alloc("shader")
	f.sources[h] = source
	return h, nil
}

func (f *fakeBackend) DeleteShader(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteShader %d", h)
	delete(f.live, h)
}

func (f *fakeBackend) LinkProgram(vertex, fragment Handle) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LinkProgram")
	h := f.alloc("program")
	if strings.Contains(f.sources[fragment], "link error") {
		return h, errors.New("varying mismatch")
	}
	return h, nil
}

func (f *fakeBackend) DeleteProgram(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteProgram %d", h)
	delete(f.live, h)
}

var fakeLocations = map[string]int{
	AttribVertexPosition: 0,
	AttribVertexColor:    1,
	UniformRotateMatrix:  0,
	UniformModelMatrix:   1,
}

func (f *fakeBackend) AttribLocation(program Handle, name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if loc, ok := fakeLocations[name]; ok && !f.missing[name] {
		return loc
	}
	return -1
}

func (f *fakeBackend) UniformLocation(program Handle, name string) int {
	return f.AttribLocation(program, name)
}

func (f *fakeBackend) CreateBuffer(kind BufferKind, data []byte) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.bufferN
	f.bufferN++
	if err := f.bufferErr[n]; err != nil {
		return 0, err
	}
	h := f.alloc("buffer")
	f.buffers[h] = append([]byte(nil), data...)
	f.record("CreateBuffer %d", h)
	return h, nil
}

func (f *fakeBackend) DeleteBuffer(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteBuffer %d", h)
	delete(f.live, h)
	delete(f.buffers, h)
}

func (f *fakeBackend) Draw(cmd *DrawCommand) error {
	f.mu.Lock()
	c := *cmd
	c.Attributes = append([]AttribBinding(nil), cmd.Attributes...)
	c.Uniforms = append([]UniformBinding(nil), cmd.Uniforms...)
	f.draws = append(f.draws, c)
	n := len(f.draws)
	hook := f.onDraw
	f.mu.Unlock()

	if hook != nil {
		return hook(n)
	}
	return nil
}

func (f *fakeBackend) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Release")
	f.live = make(map[Handle]string)
}
