// Package metrics exposes Prometheus instruments for the media pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the console.
type Metrics struct {
	// Transport
	EventsReceived    *prometheus.CounterVec
	Reconnects        prometheus.Counter
	ReconnectFailures prometheus.Counter
	SendsSuppressed   prometheus.Counter
	SendFailures      *prometheus.CounterVec

	// Audio
	AudioChunks      prometheus.Counter
	DecodeErrors     prometheus.Counter
	ChunksDropped    prometheus.Counter
	PendingBuffers   prometheus.Gauge
	ScheduledSeconds prometheus.Counter

	// Video
	FramesCaptured prometheus.Counter
	FramesSent     prometheus.Counter
	FrameBytes     prometheus.Histogram
}

// New creates and registers all metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		EventsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aris_events_received_total",
			Help: "Inbound transport events by name",
		}, []string{"event"}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "aris_reconnect_attempts_total",
			Help: "Automatic reconnect attempts",
		}),
		ReconnectFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "aris_reconnect_exhausted_total",
			Help: "Times the reconnect budget was exhausted",
		}),
		SendsSuppressed: f.NewCounter(prometheus.CounterOpts{
			Name: "aris_sends_suppressed_total",
			Help: "Outbound actions skipped while disconnected",
		}),
		SendFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aris_send_failures_total",
			Help: "Outbound writes that failed, by event",
		}, []string{"event"}),

		AudioChunks: f.NewCounter(prometheus.CounterOpts{
			Name: "aris_audio_chunks_total",
			Help: "Inbound audio chunks received",
		}),
		DecodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "aris_decode_errors_total",
			Help: "Audio chunks dropped because the payload was malformed",
		}),
		ChunksDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "aris_audio_chunks_dropped_total",
			Help: "Audio chunks dropped because no output was active",
		}),
		PendingBuffers: f.NewGauge(prometheus.GaugeOpts{
			Name: "aris_playback_pending_buffers",
			Help: "Scheduled buffers that have not finished playing",
		}),
		ScheduledSeconds: f.NewCounter(prometheus.CounterOpts{
			Name: "aris_playback_scheduled_seconds_total",
			Help: "Seconds of audio scheduled for playback",
		}),

		FramesCaptured: f.NewCounter(prometheus.CounterOpts{
			Name: "aris_frames_captured_total",
			Help: "Webcam frames rasterized",
		}),
		FramesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "aris_frames_sent_total",
			Help: "Webcam frames written to the transport",
		}),
		FrameBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "aris_frame_size_bytes",
			Help:    "Size of encoded JPEG frames",
			Buckets: prometheus.ExponentialBuckets(4096, 2, 10), // 4KB to ~2MB
		}),
	}
}
