package main

import (
	"os"
	"testing"

	"github.com/astar313/ARIS/internal/config"
	"github.com/astar313/ARIS/internal/playback"
)

func TestLoadConfigFlagOverrides(t *testing.T) {
	t.Setenv("ARIS_SERVER_URL", "ws://env-host:5000/ws")
	chdir(t, t.TempDir())

	cfg, err := loadConfig(options{
		url:         "http://flag-host:8080",
		noSpeaker:   true,
		logLevel:    "debug",
		metricsAddr: ":9191",
		historyPath: "/tmp/aris-test.sqlite",
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.URL != "http://flag-host:8080" {
		t.Errorf("Server.URL = %q, want flag value", cfg.Server.URL)
	}
	if !cfg.Audio.NoSpeaker {
		t.Error("Audio.NoSpeaker = false, want true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Metrics.Address != ":9191" {
		t.Errorf("Metrics.Address = %q, want %q", cfg.Metrics.Address, ":9191")
	}
	if cfg.History.Path != "/tmp/aris-test.sqlite" {
		t.Errorf("History.Path = %q, want flag value", cfg.History.Path)
	}
}

func TestLoadConfigEnvWithoutFlags(t *testing.T) {
	t.Setenv("ARIS_SERVER_URL", "ws://env-host:5000/ws")
	chdir(t, t.TempDir())

	cfg, err := loadConfig(options{})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Server.URL != "ws://env-host:5000/ws" {
		t.Errorf("Server.URL = %q, want env value", cfg.Server.URL)
	}
}

func TestLoadConfigRejectsBadFlagURL(t *testing.T) {
	chdir(t, t.TempDir())

	if _, err := loadConfig(options{url: "ftp://nope"}); err == nil {
		t.Error("expected error for ftp scheme")
	}
}

func TestSilentOutputFactory(t *testing.T) {
	factory := outputFactory(config.AudioConfig{NoSpeaker: true, SampleRate: 24000}, nil)
	out, err := factory()
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	if _, ok := out.(*playback.SilentOutput); !ok {
		t.Errorf("output = %T, want *playback.SilentOutput", out)
	}
	_ = out.Close()
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore chdir: %v", err)
		}
	})
}
