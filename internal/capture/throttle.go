// Package capture samples a live camera at a fixed wall-clock interval and
// hands each frame to the transport as a JPEG data URL.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/astar313/ARIS/internal/device"
	"github.com/astar313/ARIS/internal/metrics"
)

// Camera opens a live video stream.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open camera. Latest returns the most recent complete frame,
// or false while the camera has not produced one yet.
type Stream interface {
	Latest() (image.Image, bool)
	Stop() error
}

// Sender is the outbound side of the transport.
type Sender interface {
	Connected() bool
	SendFrame(dataURL string) error
}

// Config controls cadence and encoding.
type Config struct {
	Interval time.Duration
	Quality  int // JPEG 1-100
}

// ErrStopped is returned by Start when Stop ran during acquisition.
var ErrStopped = errors.New("capture stopped")

// Throttle runs the capture loop. Start and Stop may be called from
// different goroutines.
type Throttle struct {
	cam     Camera
	sender  Sender
	cfg     Config
	log     *zap.Logger
	metrics *metrics.Metrics

	// newTicker is swapped in tests.
	newTicker func(time.Duration) (<-chan time.Time, func())

	mu     sync.Mutex
	gen    uint64
	stream Stream
	cancel context.CancelFunc
	sends  sync.WaitGroup
}

// NewThrottle creates an inactive throttle.
func NewThrottle(cam Camera, sender Sender, cfg Config, log *zap.Logger, m *metrics.Metrics) *Throttle {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = 70
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Throttle{
		cam:     cam,
		sender:  sender,
		cfg:     cfg,
		log:     log,
		metrics: m,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Active reports whether the loop is running.
func (t *Throttle) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stream != nil
}

// Start acquires the camera and starts the tick loop. It blocks only for
// acquisition. A camera failure is returned as a *device.Error and leaves
// nothing held. Starting an active throttle is a no-op.
func (t *Throttle) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.stream != nil {
		t.mu.Unlock()
		return nil
	}
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	stream, err := t.cam.Open(ctx)
	if err != nil {
		var de *device.Error
		if errors.As(err, &de) {
			return err
		}
		return &device.Error{Kind: device.Camera, Op: "open", Err: err}
	}

	t.mu.Lock()
	if gen != t.gen || ctx.Err() != nil {
		// Stop ran while we were acquiring.
		t.mu.Unlock()
		_ = stream.Stop()
		return ErrStopped
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	t.stream = stream
	t.cancel = cancel
	ticks, stopTicker := t.newTicker(t.cfg.Interval)
	t.mu.Unlock()

	t.log.Info("webcam capture started", zap.Duration("interval", t.cfg.Interval))
	go t.loop(loopCtx, stream, ticks, stopTicker)
	return nil
}

// Stop halts the loop and releases the camera. Idempotent; also cancels a
// Start that is still acquiring.
func (t *Throttle) Stop() {
	t.mu.Lock()
	t.gen++
	stream := t.stream
	cancel := t.cancel
	t.stream = nil
	t.cancel = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		if err := stream.Stop(); err != nil {
			t.log.Warn("stop camera", zap.Error(err))
		}
		t.log.Info("webcam capture stopped")
	}
}

// Wait blocks until detached sends have returned.
func (t *Throttle) Wait() {
	t.sends.Wait()
}

func (t *Throttle) loop(ctx context.Context, stream Stream, ticks <-chan time.Time, stopTicker func()) {
	defer stopTicker()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			if ctx.Err() != nil {
				return
			}
			t.tick(stream)
		}
	}
}

func (t *Throttle) tick(stream Stream) {
	if !t.sender.Connected() {
		return
	}
	frame, ok := stream.Latest()
	if !ok {
		return
	}

	dataURL, size, err := EncodeDataURL(frame, t.cfg.Quality)
	if err != nil {
		t.log.Warn("encode frame", zap.Error(err))
		return
	}
	if t.metrics != nil {
		t.metrics.FramesCaptured.Inc()
		t.metrics.FrameBytes.Observe(float64(size))
	}

	t.sends.Add(1)
	go func() {
		defer t.sends.Done()
		if err := t.sender.SendFrame(dataURL); err != nil {
			t.log.Debug("send frame", zap.Error(err))
			return
		}
		if t.metrics != nil {
			t.metrics.FramesSent.Inc()
		}
	}()
}

// EncodeDataURL encodes img as JPEG and wraps it in a data URL. size is the
// JPEG byte count.
func EncodeDataURL(img image.Image, quality int) (string, int, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", 0, fmt.Errorf("jpeg encode: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), buf.Len(), nil
}
