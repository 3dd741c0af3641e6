package db

import (
	"sync"

	"go.uber.org/zap"
)

type recordOp struct {
	sender Sender
	text   string
	extend bool // append to the open assistant message
	brk    bool // close the open assistant message; no row
}

// Recorder writes the conversation log from a single goroutine so rows land
// in the order the console produced them. Calls never block the caller; if
// the queue is full the entry is dropped and logged.
type Recorder struct {
	store     *Store
	serverURL string
	log       *zap.Logger

	mu     sync.Mutex
	closed bool
	ops    chan recordOp
	done   chan struct{}
}

// NewRecorder starts a session row and the writer goroutine.
func NewRecorder(store *Store, serverURL string, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recorder{
		store:     store,
		serverURL: serverURL,
		log:       log,
		ops:       make(chan recordOp, 256),
		done:      make(chan struct{}),
	}
	go r.run()
	return r
}

// User records a message typed by the user.
func (r *Recorder) User(text string) {
	r.enqueue(recordOp{sender: SenderUser, text: text})
}

// Assistant records a text chunk. When extend is set the chunk is appended
// to the current assistant message instead of starting a new one.
func (r *Recorder) Assistant(text string, extend bool) {
	r.enqueue(recordOp{sender: SenderAssistant, text: text, extend: extend})
}

// Break ends the open assistant message, so the next chunk starts a new row
// even if it asks to extend. Called when the session drops or is replaced.
func (r *Recorder) Break() {
	r.enqueue(recordOp{brk: true})
}

func (r *Recorder) enqueue(op recordOp) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.ops <- op:
	default:
		r.log.Warn("history queue full, dropping entry", zap.String("sender", string(op.sender)))
	}
}

// Close drains queued entries and stamps the session end.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.ops)
	}
	r.mu.Unlock()
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)

	sess, err := r.store.StartSession(r.serverURL)
	if err != nil {
		r.log.Warn("history disabled", zap.Error(err))
		for range r.ops {
		}
		return
	}

	var openID string
	for op := range r.ops {
		if op.brk {
			openID = ""
			continue
		}
		if op.extend && openID != "" {
			if err := r.store.AppendText(openID, op.text); err != nil {
				r.log.Warn("append history text", zap.Error(err))
			}
			continue
		}
		m, err := r.store.AppendMessage(sess.ID, op.sender, op.text)
		if err != nil {
			r.log.Warn("append history message", zap.Error(err))
			openID = ""
			continue
		}
		if op.sender == SenderAssistant {
			openID = m.ID
		} else {
			openID = ""
		}
	}

	if err := r.store.EndSession(sess.ID); err != nil {
		r.log.Warn("end history session", zap.Error(err))
	}
}
