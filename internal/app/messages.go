package app

import (
	"time"

	"github.com/astar313/ARIS/internal/playback"
	"github.com/astar313/ARIS/internal/session"
)

// StartSessionMsg asks the model to create a fresh session client.
type StartSessionMsg struct{}

// SessionEventMsg wraps an event from the session client created as
// generation Gen. Events from replaced clients are dropped.
type SessionEventMsg struct {
	Gen   uint64
	Event session.Event
}

// SessionEndedMsg is sent when a client's Run returns.
type SessionEndedMsg struct {
	Gen uint64
	Err error
}

// SendFailedMsg carries an outbound write error. Suppressed sends never
// produce one.
type SendFailedMsg struct {
	Err error
}

// PlaybackDoneMsg reports a scheduled audio buffer finishing.
type PlaybackDoneMsg struct {
	Completion playback.Completion
}

// AudioActivatedMsg reports the result of creating the audio output.
type AudioActivatedMsg struct {
	Err error
}

// WebcamStartedMsg reports the result of a camera acquisition started as
// generation Gen.
type WebcamStartedMsg struct {
	Gen uint64
	Err error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ClockTickMsg refreshes the footer clock.
type ClockTickMsg struct {
	Time time.Time
}
