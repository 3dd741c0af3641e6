package session

import (
	"errors"
	"testing"
)

type stubConn struct {
	connected bool
	frames    []string
}

func (s *stubConn) Connected() bool { return s.connected }

func (s *stubConn) SendFrame(dataURL string) error {
	s.frames = append(s.frames, dataURL)
	return nil
}

func TestRelayFollowsCurrentClient(t *testing.T) {
	var r Relay
	if r.Connected() {
		t.Error("empty relay reports connected")
	}
	if err := r.SendFrame("x"); !errors.Is(err, ErrSendSuppressed) {
		t.Errorf("send on empty relay = %v, want ErrSendSuppressed", err)
	}

	first := &stubConn{connected: true}
	r.Set(first)
	r.SendFrame("a")

	second := &stubConn{connected: false}
	r.Set(second)
	if r.Connected() {
		t.Error("relay should report the new client's state")
	}
	r.SendFrame("b")

	if len(first.frames) != 1 || first.frames[0] != "a" {
		t.Errorf("first frames = %v", first.frames)
	}
	if len(second.frames) != 1 || second.frames[0] != "b" {
		t.Errorf("second frames = %v", second.frames)
	}
}
