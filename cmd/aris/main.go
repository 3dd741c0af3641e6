// Command aris is a terminal console for the ARIS realtime assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/astar313/ARIS/internal/app"
	"github.com/astar313/ARIS/internal/capture"
	"github.com/astar313/ARIS/internal/config"
	"github.com/astar313/ARIS/internal/db"
	"github.com/astar313/ARIS/internal/logger"
	"github.com/astar313/ARIS/internal/metrics"
	"github.com/astar313/ARIS/internal/playback"
	"github.com/astar313/ARIS/internal/session"
)

type options struct {
	configPath  string
	url         string
	noSpeaker   bool
	logLevel    string
	metricsAddr string
	historyPath string
	noHistory   bool
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	var opt options
	flag.StringVar(&opt.configPath, "config", strings.TrimSpace(os.Getenv("ARIS_CONFIG")), "Path to YAML config file (optional; also reads ARIS_CONFIG)")
	flag.StringVar(&opt.url, "url", "", "Assistant server URL (ws(s):// or http(s)://); overrides config")
	flag.BoolVar(&opt.noSpeaker, "no-speaker", false, "Do not spawn ffplay; still time playback so the visualizer works")
	flag.StringVar(&opt.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	flag.StringVar(&opt.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flag.StringVar(&opt.historyPath, "history", "", "Conversation history database path; overrides config")
	flag.BoolVar(&opt.noHistory, "no-history", false, "Do not load or record conversation history")
	flag.Parse()

	cfg, err := loadConfig(opt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aris: %v\n", err)
		return 2
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "aris: logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, opt.noHistory, log); err != nil {
		log.Error("console exited with error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "aris: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads the config file and environment, then applies flag
// overrides and validates the result again.
func loadConfig(opt options) (*config.Config, error) {
	cfg, err := config.Load(opt.configPath)
	if err != nil {
		return nil, err
	}
	if opt.url != "" {
		cfg.Server.URL = opt.url
	}
	if opt.noSpeaker {
		cfg.Audio.NoSpeaker = true
	}
	if opt.logLevel != "" {
		cfg.Logging.Level = opt.logLevel
	}
	if opt.metricsAddr != "" {
		cfg.Metrics.Address = opt.metricsAddr
	}
	if opt.historyPath != "" {
		cfg.History.Path = opt.historyPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func run(cfg *config.Config, noHistory bool, log *zap.Logger) error {
	m := metrics.New(nil)
	if cfg.Metrics.Address != "" {
		srv := serveMetrics(cfg.Metrics.Address, log)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	serverURL, err := session.WebSocketURL(cfg.Server.URL)
	if err != nil {
		return fmt.Errorf("server url: %w", err)
	}

	var (
		history  []db.Message
		recorder *db.Recorder
	)
	if !noHistory {
		store, err := db.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer store.Close()

		history, err = store.RecentMessages(cfg.History.Limit)
		if err != nil {
			log.Warn("failed to load history", zap.Error(err))
		}
		if prev, err := store.LatestSession(); err == nil && prev != nil {
			fields := []zap.Field{zap.String("id", prev.ID), zap.Time("startedAt", prev.StartedAt)}
			if prev.EndedAt == nil {
				// Crashed or killed before the recorder could close it.
				fields = append(fields, zap.Bool("unterminated", true))
			}
			log.Info("previous session", fields...)
		}
		// The model closes the recorder on quit; Close is idempotent.
		recorder = db.NewRecorder(store, serverURL, log)
		defer recorder.Close()
	}

	engine := playback.NewEngine(outputFactory(cfg.Audio, log), log, m)
	defer engine.Close()

	relay := &session.Relay{}
	cam := capture.NewFFmpegCamera(capture.FFmpegConfig{
		Path:   cfg.Webcam.FFmpegPath,
		Device: cfg.Webcam.Device,
		Width:  cfg.Webcam.Width,
		Height: cfg.Webcam.Height,
	}, log)
	webcam := capture.NewThrottle(cam, relay, capture.Config{
		Interval: cfg.Webcam.Interval,
		Quality:  cfg.Webcam.Quality,
	}, log, m)
	defer func() {
		webcam.Stop()
		webcam.Wait()
	}()

	clientCfg := session.Config{
		URL:                  serverURL,
		MaxReconnectAttempts: cfg.Server.ReconnectAttempts,
		ReconnectDelay:       cfg.Server.ReconnectDelay,
		HandshakeTimeout:     cfg.Server.HandshakeTimeout,
	}

	model := app.New(app.Options{
		NewClient: func() app.Client {
			return session.NewClient(clientCfg, log, m)
		},
		Relay:      relay,
		Engine:     engine,
		Webcam:     webcam,
		Recorder:   recorder,
		History:    history,
		SampleRate: cfg.Audio.SampleRate,
		Log:        log,
		Metrics:    m,
	})

	log.Info("console starting",
		zap.String("server", serverURL),
		zap.Bool("noSpeaker", cfg.Audio.NoSpeaker),
		zap.Int("history", len(history)))

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run console: %w", err)
	}
	log.Info("console stopped")
	return nil
}

// outputFactory picks the speaker. Nothing is spawned until the engine
// activates on the first key press.
func outputFactory(cfg config.AudioConfig, log *zap.Logger) playback.OutputFactory {
	if cfg.NoSpeaker {
		return func() (playback.Output, error) {
			return playback.NewSilentOutput(), nil
		}
	}
	return func() (playback.Output, error) {
		out, err := playback.NewFFPlayOutput(playback.FFPlayConfig{
			Path:       cfg.FFplayPath,
			SampleRate: cfg.SampleRate,
			Volume:     cfg.Volume,
		}, log)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}

func serveMetrics(addr string, log *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics listener stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	log.Info("serving metrics", zap.String("addr", addr))
	return srv
}
