// Package device holds the error type for local media devices (camera,
// speaker). A device failure disables only the subsystem that owns it.
package device

import "fmt"

// Kind names the device that failed.
type Kind string

const (
	Camera  Kind = "camera"
	Speaker Kind = "speaker"
)

// Error reports an unavailable device or a denied permission.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
