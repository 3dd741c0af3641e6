package session

import "sync"

// Conn is the outbound half of a Client.
type Conn interface {
	Connected() bool
	SendFrame(dataURL string) error
}

// Relay forwards frame sends to whichever client is current. The console
// replaces its client on every mute toggle and retry, while the capture
// throttle holds one Sender for its whole life.
type Relay struct {
	mu   sync.RWMutex
	conn Conn
}

// Set swaps the current client. nil detaches.
func (r *Relay) Set(c Conn) {
	r.mu.Lock()
	r.conn = c
	r.mu.Unlock()
}

func (r *Relay) current() Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conn
}

// Connected reports whether the current client is connected.
func (r *Relay) Connected() bool {
	c := r.current()
	return c != nil && c.Connected()
}

// SendFrame sends through the current client.
func (r *Relay) SendFrame(dataURL string) error {
	c := r.current()
	if c == nil {
		return ErrSendSuppressed
	}
	return c.SendFrame(dataURL)
}
