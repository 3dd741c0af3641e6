package playback

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/astar313/ARIS/internal/device"
	"github.com/astar313/ARIS/internal/pcm"
)

// SilentOutput plays nothing; it only keeps time. Used when no speaker is
// wanted.
type SilentOutput struct {
	mu     sync.Mutex
	closed bool
}

// NewSilentOutput returns an output that fires completions after each
// buffer's duration.
func NewSilentOutput() *SilentOutput {
	return &SilentOutput{}
}

// Schedule implements Output.
func (s *SilentOutput) Schedule(buf Buffer, done func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errOutputClosed
	}
	time.AfterFunc(buf.Duration(), done)
	return nil
}

// Close implements Output. Pending timers are left to fire; the engine
// discards their completions.
func (s *SilentOutput) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var errOutputClosed = errors.New("output closed")

// FFPlayConfig configures the ffplay speaker.
type FFPlayConfig struct {
	Path       string
	SampleRate int
	Volume     int // 0-100, passed to ffplay as given; 0 is silent
}

func ffplayArgs(cfg FFPlayConfig) []string {
	vol := min(max(cfg.Volume, 0), 100)
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-volume", fmt.Sprintf("%d", vol),
		"-nodisp",
		"-f", "s16le",
		"-ch_layout", "mono",
		"-ar", fmt.Sprintf("%d", cfg.SampleRate),
		"-i", "-",
	}
}

// FFPlayOutput streams PCM16LE to an ffplay process on stdin. Writes go
// through one goroutine so bytes reach ffplay in scheduling order;
// completion is timed from the moment of scheduling.
type FFPlayOutput struct {
	cfg   FFPlayConfig
	log   *zap.Logger
	cmd   *exec.Cmd
	stdin io.WriteCloser

	writes chan []byte

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewFFPlayOutput starts ffplay. A failure to start is a *device.Error.
func NewFFPlayOutput(cfg FFPlayConfig, log *zap.Logger) (*FFPlayOutput, error) {
	if cfg.Path == "" {
		cfg.Path = "ffplay"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = pcm.DefaultSampleRate
	}
	if log == nil {
		log = zap.NewNop()
	}

	cmd := exec.Command(cfg.Path, ffplayArgs(cfg)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &device.Error{Kind: device.Speaker, Op: "open", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &device.Error{Kind: device.Speaker, Op: "start", Err: err}
	}

	o := &FFPlayOutput{
		cfg:    cfg,
		log:    log,
		cmd:    cmd,
		stdin:  stdin,
		writes: make(chan []byte, 256),
	}
	o.wg.Add(1)
	go o.writeLoop()
	log.Info("ffplay speaker started", zap.String("path", cfg.Path), zap.Int("sampleRate", cfg.SampleRate))
	return o, nil
}

// Schedule implements Output. Buffers at a different rate than the
// speaker are written as-is; the caller is expected to use one rate.
func (o *FFPlayOutput) Schedule(buf Buffer, done func()) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return errOutputClosed
	}

	select {
	case o.writes <- pcm.ToS16LE(buf.Samples):
	default:
		return fmt.Errorf("speaker write queue full")
	}
	time.AfterFunc(buf.Duration(), done)
	return nil
}

func (o *FFPlayOutput) writeLoop() {
	defer o.wg.Done()
	for p := range o.writes {
		if _, err := o.stdin.Write(p); err != nil {
			o.log.Warn("write to ffplay", zap.Error(err))
			// drain so Schedule never blocks on a dead process
			for range o.writes {
			}
			return
		}
	}
}

// Close stops ffplay. Audio still queued is discarded.
func (o *FFPlayOutput) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.writes)
	o.mu.Unlock()

	_ = o.stdin.Close()
	if o.cmd.Process != nil {
		_ = o.cmd.Process.Kill()
	}
	o.wg.Wait()
	_ = o.cmd.Wait()
	return nil
}
