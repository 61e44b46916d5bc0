package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all monitor metrics
type Metrics struct {
	// Frame processing counters
	FramesProcessed atomic.Uint64
	PeopleCount     atomic.Uint64 // count from the most recent detection
	MinPeople       atomic.Uint64

	// Alerting
	AlertsEmitted atomic.Uint64
	NotifySent    atomic.Uint64
	NotifyErrors  atomic.Uint64

	// Error counters
	DetectErrors    atomic.Uint64
	IndicatorErrors atomic.Uint64
	DisplayErrors   atomic.Uint64
	RecorderErrors  atomic.Uint64
	EventErrors     atomic.Uint64

	// Latency tracking
	DetectLatencyMs atomic.Uint64
	FrameLatencyMs  atomic.Uint64

	// Stream client tracking
	ActiveClients atomic.Uint64
	TotalClients  atomic.Uint64

	// Recording state
	RecordingActive   atomic.Uint64 // 0 = inactive, 1 = active
	RecordingsStarted atomic.Uint64
	RecordingFrames   atomic.Uint64

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.registerPrometheusMetrics()

	return m
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name  string
		help  string
		value *atomic.Uint64
	}{
		{"people_monitor_frames_processed_total", "Total frames run through detection", &m.FramesProcessed},
		{"people_monitor_people_count", "People detected in the most recent frame", &m.PeopleCount},
		{"people_monitor_min_people", "Configured minimum head count", &m.MinPeople},
		{"people_monitor_alerts_total", "Total alerts emitted", &m.AlertsEmitted},
		{"people_monitor_notifications_sent_total", "Total notifications delivered", &m.NotifySent},
		{"people_monitor_notification_errors_total", "Total notification failures", &m.NotifyErrors},
		{"people_monitor_detect_errors_total", "Total detector failures", &m.DetectErrors},
		{"people_monitor_indicator_errors_total", "Total indicator failures", &m.IndicatorErrors},
		{"people_monitor_display_errors_total", "Total display sink failures", &m.DisplayErrors},
		{"people_monitor_recorder_errors_total", "Total recording I/O failures", &m.RecorderErrors},
		{"people_monitor_event_errors_total", "Total event store failures", &m.EventErrors},
		{"people_monitor_detect_latency_ms", "Latest detection latency in milliseconds", &m.DetectLatencyMs},
		{"people_monitor_frame_latency_ms", "Latest capture to display latency in milliseconds", &m.FrameLatencyMs},
		{"people_monitor_stream_active_clients", "Number of active MJPEG stream clients", &m.ActiveClients},
		{"people_monitor_stream_total_clients", "Total MJPEG stream clients connected", &m.TotalClients},
		{"people_monitor_recording_active", "Recording active (0=inactive, 1=active)", &m.RecordingActive},
		{"people_monitor_recordings_started_total", "Total incident recordings opened", &m.RecordingsStarted},
		{"people_monitor_recording_frames_total", "Total frames written to recordings", &m.RecordingFrames},
	}

	for _, g := range gauges {
		value := g.value
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(value.Load()) },
		))
	}
}

// UpdateFrameLatency records the age of a frame when it leaves the loop
func (m *Metrics) UpdateFrameLatency(captureTime time.Time) {
	latency := time.Since(captureTime).Milliseconds()
	if latency < 0 {
		latency = 0
	}
	m.FrameLatencyMs.Store(uint64(latency))
}

// UpdateDetectLatency records the duration of the latest detector call
func (m *Metrics) UpdateDetectLatency(d time.Duration) {
	m.DetectLatencyMs.Store(uint64(d.Milliseconds()))
}

// SetRecording flips the recording gauge
func (m *Metrics) SetRecording(active bool) {
	if active {
		m.RecordingActive.Store(1)
		return
	}
	m.RecordingActive.Store(0)
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
