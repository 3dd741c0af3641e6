package app

// Key binding constants used in handleKey. Printable keys go to the input
// line, so every command sits on a control chord.
const (
	KeyQuit       = "ctrl+c"
	KeySend       = "enter"
	KeyBackspace  = "backspace"
	KeyToggleMute = "ctrl+t"
	KeyToggleCam  = "ctrl+w"
	KeyRetry      = "ctrl+r"
	KeyClose      = "esc"
	KeyUp         = "up"
	KeyDown       = "down"
)
