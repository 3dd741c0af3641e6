// Package conversation derives the user-facing conversational status from
// transport, mute, listening and playback events. Reduce is pure: the
// caller owns the State value and feeds every event through it.
package conversation

// Visualizer is the single status shown by the assistant visualizer.
type Visualizer int

const (
	Idle Visualizer = iota
	Listening
	Speaking
	Processing
)

func (v Visualizer) String() string {
	switch v {
	case Listening:
		return "listening"
	case Speaking:
		return "speaking"
	case Processing:
		return "processing"
	default:
		return "idle"
	}
}

// Connection is the transport lifecycle state.
type Connection int

const (
	Disconnected Connection = iota
	Connecting
	Connected
)

func (c Connection) String() string {
	switch c {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Status text shown in the status bar.
const (
	TextInitializing    = "Initializing..."
	TextConnecting      = "Connecting..."
	TextMuted           = "Connected. Mic is Muted."
	TextReady           = "Connected. Ready."
	TextDisconnected    = "Disconnected."
	TextReconnectFailed = "Disconnected. Could not reach the server."
)

// State is the complete conversational state.
type State struct {
	Connection Connection
	Muted      bool
	Listening  bool
	Visualizer Visualizer
	StatusText string

	// Terminal is set once the reconnect budget is spent; cleared by the
	// next successful connect.
	Terminal bool
}

// Initial returns the state before any transport activity. The mic starts
// muted.
func Initial() State {
	return State{
		Connection: Disconnected,
		Muted:      true,
		Visualizer: Idle,
		StatusText: TextInitializing,
	}
}

// Event is anything that can change State.
type Event interface{ conversationEvent() }

// ConnectingEvent marks a dial attempt (first or retry).
type ConnectingEvent struct{ Attempt int }

// ConnectedEvent marks a completed handshake.
type ConnectedEvent struct{}

// DisconnectedEvent marks an explicit or network disconnect.
type DisconnectedEvent struct{}

// ReconnectFailedEvent marks exhaustion of the reconnect budget.
type ReconnectFailedEvent struct{}

// MuteEvent sets the mute flag.
type MuteEvent struct{ Muted bool }

// ListeningEvent reports the voice-capture collaborator starting or
// stopping to listen.
type ListeningEvent struct{ Listening bool }

// PlaybackStartedEvent marks the first sample of a scheduled buffer.
type PlaybackStartedEvent struct{}

// PlaybackEndedEvent marks a buffer finishing; Pending is how many
// scheduled buffers remain.
type PlaybackEndedEvent struct{ Pending int }

// MessageSentEvent marks a user-initiated outbound text message.
type MessageSentEvent struct{}

func (ConnectingEvent) conversationEvent()      {}
func (ConnectedEvent) conversationEvent()       {}
func (DisconnectedEvent) conversationEvent()    {}
func (ReconnectFailedEvent) conversationEvent() {}
func (MuteEvent) conversationEvent()            {}
func (ListeningEvent) conversationEvent()       {}
func (PlaybackStartedEvent) conversationEvent() {}
func (PlaybackEndedEvent) conversationEvent()   {}
func (MessageSentEvent) conversationEvent()     {}

// Reduce applies ev to s and returns the new state.
//
// Precedence: a disconnect resets to idle and clears listening; a playback
// start asserts speaking over anything; a sent message asserts processing
// until speaking, idle or a disconnect replaces it. Mute never touches the
// visualizer.
func Reduce(s State, ev Event) State {
	switch e := ev.(type) {
	case ConnectingEvent:
		s.Connection = Connecting
		if e.Attempt == 0 && !s.Terminal {
			s.StatusText = TextConnecting
		}

	case ConnectedEvent:
		s.Connection = Connected
		s.Terminal = false
		s.StatusText = idleText(s.Muted)

	case DisconnectedEvent:
		s = disconnect(s)
		s.StatusText = TextDisconnected

	case ReconnectFailedEvent:
		s = disconnect(s)
		s.Terminal = true
		s.StatusText = TextReconnectFailed

	case MuteEvent:
		s.Muted = e.Muted
		if s.Connection == Connected {
			s.StatusText = idleText(s.Muted)
		}

	case ListeningEvent:
		if s.Connection != Connected {
			return s
		}
		if e.Listening && s.Muted {
			return s
		}
		s.Listening = e.Listening
		switch {
		case e.Listening && s.Visualizer == Idle:
			s.Visualizer = Listening
		case !e.Listening && s.Visualizer == Listening:
			s.Visualizer = Idle
		}

	case PlaybackStartedEvent:
		s.Visualizer = Speaking

	case PlaybackEndedEvent:
		if e.Pending > 0 || s.Visualizer != Speaking {
			return s
		}
		if s.Listening {
			s.Visualizer = Listening
		} else {
			s.Visualizer = Idle
		}

	case MessageSentEvent:
		if s.Connection == Connected {
			s.Visualizer = Processing
		}
	}
	return s
}

func disconnect(s State) State {
	s.Connection = Disconnected
	s.Listening = false
	s.Visualizer = Idle
	return s
}

func idleText(muted bool) string {
	if muted {
		return TextMuted
	}
	return TextReady
}
