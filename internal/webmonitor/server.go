// Package webmonitor serves the live annotated stream, loop status and
// metrics over HTTP.
package webmonitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dj-oyu/people-count-monitor/internal/events"
	"github.com/dj-oyu/people-count-monitor/internal/logger"
	"github.com/dj-oyu/people-count-monitor/internal/metrics"
	"github.com/dj-oyu/people-count-monitor/internal/monitor"
	"github.com/dj-oyu/people-count-monitor/internal/recorder"
)

// EventLister reads recent alerts and recordings
type EventLister interface {
	RecentAlerts(ctx context.Context, limit int) ([]events.Alert, error)
	RecentRecordings(ctx context.Context, limit int) ([]events.Recording, error)
}

// Sources are the read-only views the server reports on. State is
// required; the rest may be nil.
type Sources struct {
	State     func() monitor.State
	Recording func() recorder.RecordingStatus
	Tracker   *Tracker
	Frames    *FrameBroadcaster
	Events    EventLister
	Metrics   *metrics.Metrics
}

// Server serves the monitor endpoints.
type Server struct {
	cfg     Config
	src     Sources
	status  *StatusBroadcaster
	started time.Time
	now     func() time.Time

	httpServer *http.Server
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewServer returns a configured monitor server.
func NewServer(cfg Config, src Sources) *Server {
	defaults := DefaultConfig()
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = defaults.StatusInterval
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaults.HistorySize
	}
	if cfg.EventsLimit <= 0 {
		cfg.EventsLimit = defaults.EventsLimit
	}
	if src.Tracker == nil {
		src.Tracker = NewTracker(cfg.HistorySize)
	}
	if src.Frames == nil {
		src.Frames = NewFrameBroadcaster(src.Metrics)
	}

	s := &Server{
		cfg:     cfg,
		src:     src,
		started: time.Now(),
		now:     time.Now,
	}
	s.status = NewStatusBroadcaster(s.snapshot, cfg.StatusInterval)
	return s
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/api/recording/status", s.handleRecordingStatus)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/health", s.handleHealth)
	if s.src.Metrics != nil {
		mux.Handle("/metrics", s.src.Metrics.Handler())
	}

	return mux
}

// Start begins the status broadcaster and listens on cfg.Addr in the
// background.
func (s *Server) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.status.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		logger.Info("HTTP", "Web monitor listening on %s", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP", "Server error: %v", err)
		}
	}()
}

// Shutdown disconnects streaming clients and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.cancel()
	s.status.Close()
	s.src.Frames.Close()

	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	return err
}

// Frames returns the broadcaster fed by the web display sink.
func (s *Server) Frames() *FrameBroadcaster {
	return s.src.Frames
}

// Tracker returns the observer to register with the monitor loop.
func (s *Server) Tracker() *Tracker {
	return s.src.Tracker
}

func (s *Server) snapshot() StatusPayload {
	st := s.src.State()
	fps, history := s.src.Tracker.Snapshot()
	now := s.now()

	payload := StatusPayload{
		Monitor: MonitorStats{
			Running:              st.Running,
			FramesProcessed:      st.FramesProcessed,
			CurrentFPS:           fps,
			PeopleCount:          st.LastCount,
			MinPeople:            st.MinPeople,
			BelowMinimum:         st.FramesProcessed > 0 && st.LastCount < st.MinPeople,
			AlertsEmitted:        st.AlertsEmitted,
			LastAlertTime:        unixSeconds(st.LastAlertTime),
			RecordingActive:      st.RecordingActive,
			CurrentRecordingPath: st.CurrentRecordingPath,
			LastError:            st.LastError,
		},
		CountHistory:  history,
		StreamClients: s.src.Frames.ClientCount(),
		Timestamp:     unixSeconds(now),
	}
	if !st.StartedAt.IsZero() {
		payload.Monitor.UptimeSeconds = now.Sub(st.StartedAt).Seconds()
	}
	if s.src.Recording != nil {
		rs := s.src.Recording()
		payload.Recording = &rs
	}
	return payload
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, frameCh := s.src.Frames.Subscribe()
	defer s.src.Frames.Unsubscribe(id)
	streamMJPEGFromChannel(r.Context(), w, frameCh)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.snapshot())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.status.Subscribe()
	defer s.status.Unsubscribe(id)

	// Content negotiation based on Accept header
	accept := r.Header.Get("Accept")
	useProtobuf := strings.Contains(accept, "application/protobuf") ||
		strings.Contains(accept, "application/x-protobuf")

	initial, err := s.status.Serialize()
	if err != nil {
		logger.Error("SSE", "Failed to serialize status: %v", err)
	}
	streamStatusEventsFromChannel(r.Context(), w, initial, eventCh, useProtobuf)
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	if s.src.Recording == nil {
		writeJSON(w, recorder.RecordingStatus{})
		return
	}
	writeJSON(w, s.src.Recording())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.src.Events == nil {
		writeJSONWithStatus(w, map[string]any{"error": "event store is not configured"}, http.StatusNotFound)
		return
	}

	alerts, err := s.src.Events.RecentAlerts(r.Context(), s.cfg.EventsLimit)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
		return
	}
	recordings, err := s.src.Events.RecentRecordings(r.Context(), s.cfg.EventsLimit)
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, http.StatusInternalServerError)
		return
	}

	payload := EventsPayload{Alerts: alerts, Recordings: recordings}
	if payload.Alerts == nil {
		payload.Alerts = []events.Alert{}
	}
	if payload.Recordings == nil {
		payload.Recordings = []events.Recording{}
	}
	writeJSON(w, payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.src.State()
	status := "ok"
	code := http.StatusOK
	if !st.Running {
		status = "stopped"
		code = http.StatusServiceUnavailable
	}
	writeJSONWithStatus(w, map[string]any{
		"status":         status,
		"stream_clients": s.src.Frames.ClientCount(),
		"recording":      st.RecordingActive,
	}, code)
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":%q}`, err.Error())
	}
}
