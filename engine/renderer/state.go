package renderer

// State is the lifecycle stage of a Renderer.
type State int

const (
	// StateUninitialized is the initial state, and the state after Release.
	StateUninitialized State = iota

	// StateContextBound means a graphics context is bound to a surface.
	StateContextBound

	// StateProgramLinked means a shader program is linked and its locations are cached.
	StateProgramLinked

	// StateBuffersLoaded means the position, color and index buffers are uploaded.
	StateBuffersLoaded

	// StateRendering means the frame loop is running.
	StateRendering
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateContextBound:
		return "context-bound"
	case StateProgramLinked:
		return "program-linked"
	case StateBuffersLoaded:
		return "buffers-loaded"
	case StateRendering:
		return "rendering"
	default:
		return "unknown"
	}
}
