package renderer

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-raw/engine/mesh"
	"github.com/Carmen-Shannon/oxy-raw/engine/surface"
)

var (
	// ErrContextUnavailable is returned when the environment cannot provide a second generation graphics context.
	ErrContextUnavailable = errors.New("graphics context unavailable")

	// ErrInvalidSurface is returned when a surface handle or selector does not identify a drawable target.
	ErrInvalidSurface = surface.ErrInvalidSurface

	// ErrInvalidState is matched by every *StateError.
	ErrInvalidState = errors.New("invalid renderer state")

	// ErrInvalidGeometry is returned by LoadBuffers for malformed geometry or color data.
	ErrInvalidGeometry = mesh.ErrInvalidGeometry
)

// StateError reports an operation called out of order. The renderer state is unchanged.
type StateError struct {
	Op   string
	Have State
	Want State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: renderer is %s, want %s", e.Op, e.Have, e.Want)
}

// Is makes errors.Is(err, ErrInvalidState) hold for every StateError.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// ShaderCompileError carries the compiler log of a failed shader stage.
type ShaderCompileError struct {
	Stage ShaderStage
	Log   string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("compile %s shader: %s", e.Stage, e.Log)
}

// ProgramLinkError carries the linker log of a failed program link.
type ProgramLinkError struct {
	Log string
}

func (e *ProgramLinkError) Error() string {
	return "link program: " + e.Log
}

// DriverDrawError reports a failed frame. Frame is the 1-based index of the frame that failed.
type DriverDrawError struct {
	Frame uint64
	Err   error
}

func (e *DriverDrawError) Error() string {
	return fmt.Sprintf("draw frame %d: %v", e.Frame, e.Err)
}

func (e *DriverDrawError) Unwrap() error {
	return e.Err
}
