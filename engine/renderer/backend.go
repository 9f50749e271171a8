package renderer

import (
	"github.com/Carmen-Shannon/oxy-raw/common"
	"github.com/Carmen-Shannon/oxy-raw/engine/surface"
)

// Handle is an opaque, non-zero reference to a device object owned by a Backend.
type Handle uint32

// ShaderStage identifies a programmable stage.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageFragment
)

func (s ShaderStage) String() string {
	if s == StageFragment {
		return "fragment"
	}
	return "vertex"
}

// BufferKind selects the binding target of a device buffer.
type BufferKind int

const (
	// BufferVertex holds float32 vertex attribute data.
	BufferVertex BufferKind = iota

	// BufferIndex holds uint16 element indices.
	BufferIndex
)

// Topology is the primitive assembly mode of a draw.
type Topology int

const (
	TopologyTriangleStrip Topology = iota
	TopologyTriangleList
)

// DepthFunc is the depth comparison of a draw.
type DepthFunc int

const (
	DepthLessEqual DepthFunc = iota
	DepthLess
	DepthAlways
)

// AttribBinding feeds one vertex attribute location from a tightly packed float32 buffer.
type AttribBinding struct {
	Location   int
	Buffer     Handle
	Components int
}

// UniformBinding uploads one 4x4 float matrix to a uniform location.
type UniformBinding struct {
	Location int
	Matrix   common.Mat4
}

// DrawCommand is everything a Backend needs to render one frame: clear, state, bindings and one indexed draw.
type DrawCommand struct {
	Program    Handle
	ClearColor common.Color
	ClearDepth float32
	DepthFunc  DepthFunc
	Viewport   common.Viewport
	Topology   Topology

	Attributes []AttribBinding
	Uniforms   []UniformBinding

	IndexBuffer Handle
	IndexCount  int
}

// Backend is the device interface the Renderer drives. Implementations wrap a concrete graphics API.
// Locations follow GL semantics: a name the program does not use resolves to -1.
type Backend interface {
	// BindContext acquires a graphics context for s.
	// Errors wrap ErrContextUnavailable or ErrInvalidSurface.
	BindContext(s surface.Surface) error

	// Resize reconfigures the drawable to width x height pixels.
	Resize(width, height int) error

	SetViewport(v common.Viewport)

	// CompileShader compiles one stage. On failure the backend deletes anything it created and the error
	// text is the compiler log.
	CompileShader(stage ShaderStage, source string) (Handle, error)
	DeleteShader(h Handle)

	// LinkProgram links a vertex and fragment shader. On failure the returned handle, if non-zero, still
	// needs DeleteProgram and the error text is the linker log.
	LinkProgram(vertex, fragment Handle) (Handle, error)
	DeleteProgram(h Handle)

	AttribLocation(program Handle, name string) int
	UniformLocation(program Handle, name string) int

	// CreateBuffer uploads data into a new immutable buffer.
	CreateBuffer(kind BufferKind, data []byte) (Handle, error)
	DeleteBuffer(h Handle)

	// Draw renders and presents one frame.
	Draw(cmd *DrawCommand) error

	// Release drops the graphics context. Objects not deleted before are released with it.
	Release()
}
