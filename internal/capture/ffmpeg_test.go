package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/astar313/ARIS/internal/device"
)

// writeFakeFFmpeg writes a shell script standing in for ffmpeg.
func writeFakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestFFmpegOpenReportsStderrReason(t *testing.T) {
	path := writeFakeFFmpeg(t, `echo "Permission denied" >&2
exit 1`)
	cam := NewFFmpegCamera(FFmpegConfig{Path: path, Width: 4, Height: 2}, zaptest.NewLogger(t))

	for i := 0; i < 50; i++ {
		stream, err := cam.Open(context.Background())
		if err == nil {
			stream.Stop()
			t.Fatalf("open %d: expected error", i)
		}
		var de *device.Error
		if !errors.As(err, &de) || de.Kind != device.Camera {
			t.Fatalf("open %d: err = %v, want camera device error", i, err)
		}
		if !strings.Contains(err.Error(), "Permission denied") {
			t.Fatalf("open %d: err = %q, want ffmpeg's reason", i, err)
		}
	}
}

func TestFFmpegOpenDeliversFirstFrame(t *testing.T) {
	// one 4x2 rgb24 frame, then idle until killed
	path := writeFakeFFmpeg(t, `head -c 24 /dev/zero
exec sleep 30`)
	cam := NewFFmpegCamera(FFmpegConfig{Path: path, Width: 4, Height: 2}, zaptest.NewLogger(t))

	stream, err := cam.Open(context.Background())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	img, ok := stream.Latest()
	if !ok {
		t.Fatal("no frame after open")
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 2 {
		t.Errorf("frame = %dx%d, want 4x2", b.Dx(), b.Dy())
	}
	if err := stream.Stop(); err != nil {
		t.Errorf("stop: %v", err)
	}
	if err := stream.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}
}
