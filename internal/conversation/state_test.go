package conversation

import "testing"

func connected(muted bool) State {
	s := Initial()
	s = Reduce(s, MuteEvent{Muted: muted})
	s = Reduce(s, ConnectingEvent{})
	return Reduce(s, ConnectedEvent{})
}

func TestInitial(t *testing.T) {
	s := Initial()
	if s.Connection != Disconnected {
		t.Errorf("connection = %v, want disconnected", s.Connection)
	}
	if !s.Muted {
		t.Error("initial state should be muted")
	}
	if s.Visualizer != Idle {
		t.Errorf("visualizer = %v, want idle", s.Visualizer)
	}
	if s.StatusText != TextInitializing {
		t.Errorf("status = %q", s.StatusText)
	}
}

func TestConnectTextFollowsMute(t *testing.T) {
	if s := connected(true); s.StatusText != TextMuted {
		t.Errorf("muted status = %q, want %q", s.StatusText, TextMuted)
	}
	if s := connected(false); s.StatusText != TextReady {
		t.Errorf("unmuted status = %q, want %q", s.StatusText, TextReady)
	}
}

func TestDisconnectResetsAndIsIdempotent(t *testing.T) {
	s := connected(false)
	s = Reduce(s, ListeningEvent{Listening: true})
	s = Reduce(s, PlaybackStartedEvent{})

	once := Reduce(s, DisconnectedEvent{})
	if once.Visualizer != Idle {
		t.Errorf("visualizer = %v, want idle", once.Visualizer)
	}
	if once.Listening {
		t.Error("listening should be cleared")
	}
	if once.Connection != Disconnected {
		t.Errorf("connection = %v", once.Connection)
	}
	if once.StatusText != TextDisconnected {
		t.Errorf("status = %q", once.StatusText)
	}

	twice := Reduce(once, DisconnectedEvent{})
	if twice != once {
		t.Errorf("second disconnect changed state: %+v -> %+v", once, twice)
	}
}

func TestStrayCompletionAfterDisconnect(t *testing.T) {
	s := connected(true)
	s = Reduce(s, PlaybackStartedEvent{})
	if s.Visualizer != Speaking {
		t.Fatalf("visualizer = %v, want speaking", s.Visualizer)
	}

	s = Reduce(s, DisconnectedEvent{})
	if s.Visualizer != Idle {
		t.Fatalf("visualizer = %v, want idle", s.Visualizer)
	}

	s = Reduce(s, PlaybackEndedEvent{Pending: 0})
	if s.Visualizer != Idle {
		t.Errorf("stray completion moved visualizer to %v", s.Visualizer)
	}
}

func TestPlaybackLifecycle(t *testing.T) {
	s := connected(true)

	s = Reduce(s, PlaybackStartedEvent{})
	s = Reduce(s, PlaybackStartedEvent{})
	if s.Visualizer != Speaking {
		t.Fatalf("visualizer = %v, want speaking", s.Visualizer)
	}

	s = Reduce(s, PlaybackEndedEvent{Pending: 1})
	if s.Visualizer != Speaking {
		t.Errorf("with a buffer pending visualizer = %v, want speaking", s.Visualizer)
	}

	s = Reduce(s, PlaybackEndedEvent{Pending: 0})
	if s.Visualizer != Idle {
		t.Errorf("visualizer = %v, want idle", s.Visualizer)
	}
}

func TestPlaybackStartOverridesProcessing(t *testing.T) {
	s := connected(true)
	s = Reduce(s, MessageSentEvent{})
	if s.Visualizer != Processing {
		t.Fatalf("visualizer = %v, want processing", s.Visualizer)
	}
	s = Reduce(s, PlaybackStartedEvent{})
	if s.Visualizer != Speaking {
		t.Errorf("visualizer = %v, want speaking", s.Visualizer)
	}
}

func TestCompletionDoesNotClobberNewerProcessing(t *testing.T) {
	s := connected(true)
	s = Reduce(s, PlaybackStartedEvent{})
	s = Reduce(s, MessageSentEvent{})
	s = Reduce(s, PlaybackEndedEvent{Pending: 0})
	if s.Visualizer != Processing {
		t.Errorf("visualizer = %v, want processing", s.Visualizer)
	}
}

func TestMessageSentIgnoredWhileDisconnected(t *testing.T) {
	s := Reduce(Initial(), MessageSentEvent{})
	if s.Visualizer != Idle {
		t.Errorf("visualizer = %v, want idle", s.Visualizer)
	}
}

func TestMuteNeverChangesVisualizer(t *testing.T) {
	s := connected(false)
	s = Reduce(s, PlaybackStartedEvent{})

	s = Reduce(s, MuteEvent{Muted: true})
	if s.Visualizer != Speaking {
		t.Errorf("visualizer = %v, want speaking", s.Visualizer)
	}
	if s.StatusText != TextMuted {
		t.Errorf("status = %q, want %q", s.StatusText, TextMuted)
	}
}

func TestUnmuteWhileDisconnectedShowsReadyOnlyAfterConnect(t *testing.T) {
	s := connected(true)
	s = Reduce(s, DisconnectedEvent{})

	s = Reduce(s, MuteEvent{Muted: false})
	if s.StatusText == TextReady {
		t.Fatal("status shows ready while disconnected")
	}
	if s.StatusText != TextDisconnected {
		t.Errorf("status = %q, want %q", s.StatusText, TextDisconnected)
	}

	s = Reduce(s, ConnectingEvent{Attempt: 1})
	if s.StatusText == TextReady {
		t.Fatal("status shows ready while connecting")
	}

	s = Reduce(s, ConnectedEvent{})
	if s.StatusText != TextReady {
		t.Errorf("status = %q, want %q", s.StatusText, TextReady)
	}
}

func TestListening(t *testing.T) {
	s := connected(false)
	s = Reduce(s, ListeningEvent{Listening: true})
	if !s.Listening || s.Visualizer != Listening {
		t.Fatalf("state = %+v, want listening", s)
	}

	// speaking takes over and returns to listening afterwards
	s = Reduce(s, PlaybackStartedEvent{})
	s = Reduce(s, ListeningEvent{Listening: true})
	if s.Visualizer != Speaking {
		t.Errorf("visualizer = %v, want speaking", s.Visualizer)
	}
	s = Reduce(s, PlaybackEndedEvent{})
	if s.Visualizer != Listening {
		t.Errorf("visualizer = %v, want listening", s.Visualizer)
	}

	s = Reduce(s, ListeningEvent{Listening: false})
	if s.Listening || s.Visualizer != Idle {
		t.Errorf("state = %+v, want idle", s)
	}
}

func TestListeningIgnoredWhenMutedOrDisconnected(t *testing.T) {
	s := connected(true)
	s = Reduce(s, ListeningEvent{Listening: true})
	if s.Listening {
		t.Error("listening while muted")
	}

	s = Reduce(Initial(), ListeningEvent{Listening: true})
	if s.Listening {
		t.Error("listening while disconnected")
	}
}

func TestReconnectFailedIsTerminal(t *testing.T) {
	s := connected(true)
	s = Reduce(s, DisconnectedEvent{})
	s = Reduce(s, ConnectingEvent{Attempt: 1})
	s = Reduce(s, ReconnectFailedEvent{})

	if !s.Terminal {
		t.Error("terminal should be set")
	}
	if s.Connection != Disconnected || s.Visualizer != Idle {
		t.Errorf("state = %+v", s)
	}
	if s.StatusText != TextReconnectFailed {
		t.Errorf("status = %q", s.StatusText)
	}

	s = Reduce(s, ConnectingEvent{Attempt: 0})
	if s.StatusText != TextReconnectFailed {
		t.Errorf("retry overwrote terminal status: %q", s.StatusText)
	}
	s = Reduce(s, ConnectedEvent{})
	if s.Terminal {
		t.Error("terminal should clear on connect")
	}
}
