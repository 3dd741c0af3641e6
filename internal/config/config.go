// Package config loads console settings from an optional YAML file, a .env
// file, and ARIS_* environment variables, in that order of precedence
// (later wins).
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete console configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Audio   AudioConfig   `yaml:"audio"`
	Webcam  WebcamConfig  `yaml:"webcam"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	History HistoryConfig `yaml:"history"`
}

// ServerConfig describes the assistant endpoint and reconnect policy.
type ServerConfig struct {
	URL               string        `yaml:"url"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
}

// AudioConfig controls inbound audio playback.
type AudioConfig struct {
	SampleRate int    `yaml:"sample_rate"`
	NoSpeaker  bool   `yaml:"no_speaker"`
	FFplayPath string `yaml:"ffplay_path"`
	Volume     int    `yaml:"volume"` // 0-100
}

// WebcamConfig controls frame capture.
type WebcamConfig struct {
	Interval   time.Duration `yaml:"interval"`
	Quality    int           `yaml:"quality"` // JPEG 1-100
	Width      int           `yaml:"width"`
	Height     int           `yaml:"height"`
	Device     string        `yaml:"device"`
	FFmpegPath string        `yaml:"ffmpeg_path"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

// MetricsConfig enables an optional Prometheus listener.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// HistoryConfig locates the conversation history database.
type HistoryConfig struct {
	Path  string `yaml:"path"`
	Limit int    `yaml:"limit"`
}

// DataDir returns the default directory for logs and history.
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".aris")
}

// Default returns the built-in configuration.
func Default() Config {
	dir := DataDir()
	return Config{
		Server: ServerConfig{
			URL:               "ws://localhost:5000/ws",
			ReconnectAttempts: 5,
			ReconnectDelay:    time.Second,
			HandshakeTimeout:  10 * time.Second,
		},
		Audio: AudioConfig{
			SampleRate: 24000,
			FFplayPath: "ffplay",
			Volume:     80,
		},
		Webcam: WebcamConfig{
			Interval:   2 * time.Second,
			Quality:    70,
			Width:      640,
			Height:     480,
			Device:     "0",
			FFmpegPath: "ffmpeg",
		},
		Logging: LoggingConfig{
			Level: "info",
			Path:  filepath.Join(dir, "aris.log"),
		},
		History: HistoryConfig{
			Path:  filepath.Join(dir, "aris.sqlite"),
			Limit: 200,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// non-empty), then .env and the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// .env is optional
	_ = godotenv.Load()

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from ARIS_* variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("ARIS_SERVER_URL", &c.Server.URL)
	str("ARIS_LOG_LEVEL", &c.Logging.Level)
	str("ARIS_LOG_PATH", &c.Logging.Path)
	str("ARIS_METRICS_ADDR", &c.Metrics.Address)
	str("ARIS_HISTORY_PATH", &c.History.Path)
	str("ARIS_FFPLAY_PATH", &c.Audio.FFplayPath)
	str("ARIS_FFMPEG_PATH", &c.Webcam.FFmpegPath)
	str("ARIS_CAMERA_DEVICE", &c.Webcam.Device)

	if err := num("ARIS_RECONNECT_ATTEMPTS", &c.Server.ReconnectAttempts); err != nil {
		return err
	}
	if err := dur("ARIS_RECONNECT_DELAY", &c.Server.ReconnectDelay); err != nil {
		return err
	}
	if err := dur("ARIS_FRAME_INTERVAL", &c.Webcam.Interval); err != nil {
		return err
	}
	if v := strings.TrimSpace(getenv("ARIS_NO_SPEAKER")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ARIS_NO_SPEAKER: %w", err)
		}
		c.Audio.NoSpeaker = b
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Webcam.Validate(); err != nil {
		return fmt.Errorf("webcam config: %w", err)
	}
	if c.History.Limit < 0 {
		return fmt.Errorf("history config: limit must be >= 0, got %d", c.History.Limit)
	}
	return nil
}

// Validate validates the server section.
func (s *ServerConfig) Validate() error {
	if strings.TrimSpace(s.URL) == "" {
		return fmt.Errorf("url cannot be empty")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return fmt.Errorf("url scheme must be ws, wss, http or https, got %q", u.Scheme)
	}
	if s.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect_attempts must be >= 0, got %d", s.ReconnectAttempts)
	}
	if s.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be > 0, got %v", s.ReconnectDelay)
	}
	return nil
}

// Validate validates the audio section.
func (a *AudioConfig) Validate() error {
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be > 0, got %d", a.SampleRate)
	}
	if a.Volume < 0 || a.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", a.Volume)
	}
	return nil
}

// Validate validates the webcam section.
func (w *WebcamConfig) Validate() error {
	if w.Interval <= 0 {
		return fmt.Errorf("interval must be > 0, got %v", w.Interval)
	}
	if w.Quality < 1 || w.Quality > 100 {
		return fmt.Errorf("quality must be between 1 and 100, got %d", w.Quality)
	}
	if w.Width <= 0 || w.Height <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", w.Width, w.Height)
	}
	return nil
}
