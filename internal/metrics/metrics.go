package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MoodTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mia_avatar_mood_transitions_total",
			Help: "Total number of mood transitions",
		},
		[]string{"to", "source"},
	)

	CurrentMood = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mia_avatar_mood",
			Help: "1 for the current mood, 0 otherwise",
		},
		[]string{"mood"},
	)

	Busy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mia_avatar_busy",
			Help: "1 while a chat request is in flight",
		},
	)

	ModelLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mia_avatar_model_loads_total",
			Help: "Model load outcomes by category",
		},
		[]string{"category", "outcome"},
	)

	ModelLoadSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mia_avatar_model_load_seconds",
			Help:    "Model load latency in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"category"},
	)

	CaptionsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mia_avatar_captions_started_total",
			Help: "Total number of captions started",
		},
		[]string{"mood"},
	)

	FrameSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mia_avatar_frame_seconds",
			Help:    "Time spent computing one animation frame",
			Buckets: prometheus.ExponentialBuckets(0.00005, 2, 10),
		},
	)

	PendingTimers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mia_avatar_pending_timers",
			Help: "Number of live scheduled callbacks",
		},
	)

	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mia_avatar_stream_clients",
			Help: "Number of connected renderer clients",
		},
	)

	StreamCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mia_avatar_stream_commands_total",
			Help: "Commands received from renderer clients",
		},
		[]string{"type", "status"},
	)

	FeedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mia_avatar_feed_events_total",
			Help: "Activity feed events by type",
		},
		[]string{"type"},
	)
)

// SetMood flips the current mood gauge.
func SetMood(current string, all []string) {
	for _, m := range all {
		v := 0.0
		if m == current {
			v = 1
		}
		CurrentMood.WithLabelValues(m).Set(v)
	}
}
