// Package playback schedules decoded assistant audio on an output device.
//
// Playback is best-effort and low latency: every Enqueue starts its buffer
// "now" on the output and returns immediately. Buffers that arrive in a
// burst may overlap on outputs that do not serialize them; the engine does
// not hold a strictly ordered hand-off queue and never blocks the caller on
// playback completion.
package playback

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/astar313/ARIS/internal/metrics"
	"github.com/astar313/ARIS/internal/pcm"
)

// Buffer is a mono buffer ready for output.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the buffer's playback length.
func (b Buffer) Duration() time.Duration {
	return pcm.Duration(len(b.Samples), b.SampleRate)
}

// Output is an audio output context. Schedule starts buf immediately and
// calls done once it has finished playing. done may be called from any
// goroutine.
type Output interface {
	Schedule(buf Buffer, done func()) error
	Close() error
}

// OutputFactory creates the output context on first activation.
type OutputFactory func() (Output, error)

// Completion reports a buffer finishing. Pending is the number of
// scheduled buffers still playing after this one.
type Completion struct {
	Pending    int
	Generation uint64
}

// Engine owns the output context and the pending-buffer count.
type Engine struct {
	factory OutputFactory
	log     *zap.Logger
	metrics *metrics.Metrics

	// activating serializes Activate; mu is never held across the factory.
	activating sync.Mutex

	mu         sync.Mutex
	out        Output
	pending    int
	generation uint64
	closed     bool

	completions chan Completion
	done        chan struct{}
}

// NewEngine creates an engine. No output exists until Activate.
func NewEngine(factory OutputFactory, log *zap.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		factory:     factory,
		log:         log,
		metrics:     m,
		completions: make(chan Completion, 64),
		done:        make(chan struct{}),
	}
}

// ErrClosed is returned by Activate after Close.
var ErrClosed = errors.New("playback engine closed")

// Activate creates the output context if it does not exist yet. It is
// called on the first user interaction.
func (e *Engine) Activate() error {
	e.activating.Lock()
	defer e.activating.Unlock()

	e.mu.Lock()
	closed, active := e.closed, e.out != nil
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if active {
		return nil
	}

	out, err := e.factory()
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		_ = out.Close()
		return ErrClosed
	}
	e.out = out
	e.mu.Unlock()
	e.log.Info("audio output activated")
	return nil
}

// Active reports whether an output context exists.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out != nil
}

// Generation identifies the current output context. Completions carrying
// an older generation belong to abandoned sources.
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Completions delivers a Completion for every finished buffer of the
// current generation.
func (e *Engine) Completions() <-chan Completion {
	return e.completions
}

// Done is closed when the engine is closed.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Enqueue schedules samples for immediate playback and reports whether a
// buffer was scheduled. Without an output context the chunk is dropped.
func (e *Engine) Enqueue(samples []float32, sampleRate int) bool {
	if len(samples) == 0 {
		return false
	}
	buf := Buffer{Samples: samples, SampleRate: sampleRate}

	e.mu.Lock()
	if e.out == nil {
		e.mu.Unlock()
		if e.metrics != nil {
			e.metrics.ChunksDropped.Inc()
		}
		return false
	}
	out := e.out
	gen := e.generation
	e.pending++
	pending := e.pending
	e.mu.Unlock()

	if err := out.Schedule(buf, func() { e.finish(gen) }); err != nil {
		e.mu.Lock()
		if e.generation == gen && e.pending > 0 {
			e.pending--
		}
		e.mu.Unlock()
		e.log.Warn("schedule audio buffer", zap.Error(err))
		return false
	}

	if e.metrics != nil {
		e.metrics.PendingBuffers.Set(float64(pending))
		e.metrics.ScheduledSeconds.Add(buf.Duration().Seconds())
	}
	e.log.Debug("scheduled audio buffer",
		zap.Int("samples", len(samples)),
		zap.Int("pending", pending))
	return true
}

func (e *Engine) finish(gen uint64) {
	e.mu.Lock()
	if e.closed || gen != e.generation {
		e.mu.Unlock()
		return
	}
	if e.pending > 0 {
		e.pending--
	}
	c := Completion{Pending: e.pending, Generation: gen}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.PendingBuffers.Set(float64(c.Pending))
	}

	select {
	case e.completions <- c:
	case <-e.done:
	}
}

// Close closes the output context. Scheduled sources are abandoned; their
// completions are never delivered.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.generation++
	e.pending = 0
	out := e.out
	e.out = nil
	close(e.done)
	e.mu.Unlock()

	if out != nil {
		return out.Close()
	}
	return nil
}
