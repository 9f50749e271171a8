package common

// Virtual key codes for cross-platform input handling.
// These values match GLFW key codes which use ASCII values for printable keys.
// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Key
const (
	KeyA     = 65  // A key (ASCII), toggles animation
	KeyR     = 82  // R key (ASCII), resets the transform
	KeySpace = 32  // Spacebar (ASCII), pauses and resumes the frame loop
	KeyEsc   = 256 // Escape key (GLFW)
)
