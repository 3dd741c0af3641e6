package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/astar313/ARIS/internal/device"
)

// FFmpegConfig selects the capture device and frame geometry.
type FFmpegConfig struct {
	Path   string
	Device string // avfoundation index, v4l2 path, or dshow name
	Width  int
	Height int
	FPS    int
}

// FFmpegCamera captures frames by running ffmpeg and reading rawvideo
// rgb24 from its stdout.
type FFmpegCamera struct {
	cfg FFmpegConfig
	log *zap.Logger
}

// NewFFmpegCamera returns a camera backed by the ffmpeg executable.
func NewFFmpegCamera(cfg FFmpegConfig, log *zap.Logger) *FFmpegCamera {
	if cfg.Path == "" {
		cfg.Path = "ffmpeg"
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = 640, 480
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 5
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FFmpegCamera{cfg: cfg, log: log}
}

// inputArgs returns the platform-specific ffmpeg input flags.
func (c *FFmpegCamera) inputArgs() []string {
	size := fmt.Sprintf("%dx%d", c.cfg.Width, c.cfg.Height)
	switch runtime.GOOS {
	case "darwin":
		dev := c.cfg.Device
		if dev == "" {
			dev = "0"
		}
		// `<video>:none` keeps the microphone closed.
		return []string{"-f", "avfoundation", "-framerate", "30", "-video_size", size, "-i", dev + ":none"}
	case "windows":
		return []string{"-f", "dshow", "-video_size", size, "-i", "video=" + c.cfg.Device}
	default:
		dev := c.cfg.Device
		if dev == "" || !strings.HasPrefix(dev, "/") {
			dev = "/dev/video" + strings.TrimPrefix(dev, "video")
			if dev == "/dev/video" {
				dev = "/dev/video0"
			}
		}
		return []string{"-f", "v4l2", "-video_size", size, "-i", dev}
	}
}

// Open starts ffmpeg and waits for the first frame so that permission and
// device errors surface here.
func (c *FFmpegCamera) Open(ctx context.Context) (Stream, error) {
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, c.inputArgs()...)
	args = append(args,
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", c.cfg.FPS, c.cfg.Width, c.cfg.Height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"-",
	)

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, c.cfg.Path, args...)
	cmd.WaitDelay = 2 * time.Second
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &device.Error{Kind: device.Camera, Op: "open", Err: err}
	}
	stderr, _ := cmd.StderrPipe()
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &device.Error{Kind: device.Camera, Op: "start", Err: err}
	}

	s := &ffmpegStream{
		cmd:        cmd,
		cancel:     cancel,
		width:      c.cfg.Width,
		height:     c.cfg.Height,
		first:      make(chan struct{}),
		exited:     make(chan struct{}),
		stderrDone: make(chan struct{}),
	}
	go s.logStderr(stderr, c.log)
	go s.readFrames(bufio.NewReaderSize(stdout, 3*c.cfg.Width*c.cfg.Height))

	select {
	case <-s.first:
		return s, nil
	case <-s.exited:
		s.waitReaders()
		err := s.exitErr()
		_ = s.Stop()
		return nil, &device.Error{Kind: device.Camera, Op: "read", Err: err}
	case <-ctx.Done():
		_ = s.Stop()
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		_ = s.Stop()
		return nil, &device.Error{Kind: device.Camera, Op: "read", Err: errors.New("no frame within 10s")}
	}
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	width  int
	height int

	mu      sync.Mutex
	latest  *image.RGBA
	lastErr error
	stderr  string

	first      chan struct{}
	firstOnce  sync.Once
	exited     chan struct{}
	stderrDone chan struct{}
	stopOnce   sync.Once
}

func (s *ffmpegStream) readFrames(r io.Reader) {
	defer close(s.exited)
	frameLen := 3 * s.width * s.height
	raw := make([]byte, frameLen)
	for {
		if _, err := io.ReadFull(r, raw); err != nil {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
			return
		}
		img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
		for i, j := 0, 0; i < frameLen; i, j = i+3, j+4 {
			img.Pix[j] = raw[i]
			img.Pix[j+1] = raw[i+1]
			img.Pix[j+2] = raw[i+2]
			img.Pix[j+3] = 0xff
		}
		s.mu.Lock()
		s.latest = img
		s.mu.Unlock()
		s.firstOnce.Do(func() { close(s.first) })
	}
}

func (s *ffmpegStream) logStderr(r io.Reader, log *zap.Logger) {
	defer close(s.stderrDone)
	if r == nil {
		return
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		s.mu.Lock()
		s.stderr = line
		s.mu.Unlock()
		log.Debug("ffmpeg", zap.String("line", line))
	}
}

// waitReaders waits for the stdout and stderr readers to hit EOF. A
// grandchild holding a pipe open is cut off by the timeout.
func (s *ffmpegStream) waitReaders() {
	timeout := time.After(2 * time.Second)
	for _, ch := range []chan struct{}{s.exited, s.stderrDone} {
		select {
		case <-ch:
		case <-timeout:
			return
		}
	}
}

func (s *ffmpegStream) exitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stderr != "" {
		return errors.New(s.stderr)
	}
	if s.lastErr != nil {
		return s.lastErr
	}
	return errors.New("ffmpeg exited")
}

// Latest implements Stream.
func (s *ffmpegStream) Latest() (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil, false
	}
	return s.latest, true
}

// Stop kills ffmpeg and reaps it. Wait closes the pipes, so both readers
// must have returned first.
func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		s.cancel()
		s.waitReaders()
		_ = s.cmd.Wait()
	})
	return nil
}
