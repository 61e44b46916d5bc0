// Package monitor runs the people count loop: capture, detect, indicate,
// record, alert and display.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dj-oyu/people-count-monitor/internal/annotate"
	"github.com/dj-oyu/people-count-monitor/internal/capture"
	"github.com/dj-oyu/people-count-monitor/internal/detect"
	"github.com/dj-oyu/people-count-monitor/internal/display"
	"github.com/dj-oyu/people-count-monitor/internal/events"
	"github.com/dj-oyu/people-count-monitor/internal/indicator"
	"github.com/dj-oyu/people-count-monitor/internal/logger"
	"github.com/dj-oyu/people-count-monitor/internal/metrics"
	"github.com/dj-oyu/people-count-monitor/internal/recorder"
	"github.com/dj-oyu/people-count-monitor/internal/timeutil"
	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

var (
	// ErrAlreadyRunning is returned by Start while the loop is running
	ErrAlreadyRunning = errors.New("monitor already running")
	// ErrStopped is returned by Start once the loop has run; its
	// resources are released and cannot be reused
	ErrStopped = errors.New("monitor already stopped")
)

// eventTimeout bounds event store writes
const eventTimeout = 2 * time.Second

// Recorder is the incident recording lifecycle used by the loop
type Recorder interface {
	Start(width, height int) error
	Write(frame *types.Frame) error
	Stop() (recorder.RecordingStatus, error)
	IsRecording() bool
	Path() string
}

// EventSink persists alerts and closed recordings
type EventSink interface {
	RecordAlert(ctx context.Context, a events.Alert) error
	RecordRecording(ctx context.Context, r events.Recording) error
}

// Notifier delivers alert messages
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Observer is called once per processed frame from the loop goroutine
type Observer interface {
	ObserveFrame(r Result)
}

// Result describes one processed frame
type Result struct {
	Seq       uint64
	Timestamp time.Time
	Count     int
	MinPeople int
	People    []types.Detection
	Alerted   bool
	Recording bool
}

// Options are the loop thresholds and timings
type Options struct {
	MinPeople     int
	AlertInterval time.Duration
	FrameDelay    time.Duration
	// DetectTimeout bounds a single detector call; zero disables it.
	DetectTimeout time.Duration
}

// Components are the collaborators driven by the loop. Source and
// Detector are required; everything else is optional.
type Components struct {
	Source     capture.Source
	Detector   detect.Detector
	Indicator  indicator.Indicator
	Recorder   Recorder
	Continuous Recorder
	Notifier   Notifier
	Display    display.Sink
	Events     EventSink
	Metrics    *metrics.Metrics
	Clock      timeutil.Clock
	Observers  []Observer
}

// State is a snapshot of the loop state
type State struct {
	Running              bool      `json:"running"`
	StartedAt            time.Time `json:"started_at"`
	LastAlertTime        time.Time `json:"last_alert_time"`
	RecordingActive      bool      `json:"recording_active"`
	CurrentRecordingPath string    `json:"current_recording_path,omitempty"`
	LastCount            int       `json:"last_count"`
	MinPeople            int       `json:"min_people"`
	FramesProcessed      uint64    `json:"frames_processed"`
	AlertsEmitted        uint64    `json:"alerts_emitted"`
	LastError            string    `json:"last_error,omitempty"`
}

// Monitor owns the frame source, the recorders and the indicator for the
// lifetime of one run.
type Monitor struct {
	opts     Options
	c        Components
	triState bool

	mu      sync.RWMutex
	state   State
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

// AlertMessage is the text logged and sent when the head count is low
func AlertMessage(count int) string {
	return fmt.Sprintf("SECURITY ALERT: Only %d person(s) detected in sensitive project area!", count)
}

// New validates the components and fills defaults for optional ones
func New(opts Options, c Components) (*Monitor, error) {
	if c.Source == nil {
		return nil, errors.New("monitor: frame source is required")
	}
	if c.Detector == nil {
		return nil, errors.New("monitor: detector is required")
	}
	if opts.MinPeople < 0 {
		return nil, fmt.Errorf("monitor: min people must be >= 0, got %d", opts.MinPeople)
	}
	if c.Indicator == nil {
		c.Indicator = indicator.None{}
	}
	if c.Display == nil {
		c.Display = display.None{}
	}
	if c.Clock == nil {
		c.Clock = timeutil.RealClock{}
	}
	if c.Metrics != nil {
		c.Metrics.MinPeople.Store(uint64(opts.MinPeople))
	}

	return &Monitor{
		opts:     opts,
		c:        c,
		triState: indicator.IsTriState(c.Indicator),
		state:    State{MinPeople: opts.MinPeople},
		done:     make(chan struct{}),
	}, nil
}

// Start launches the loop and returns immediately
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Running {
		return ErrAlreadyRunning
	}
	if m.started {
		return ErrStopped
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.started = true
	m.cancel = cancel
	m.state.Running = true
	m.state.StartedAt = m.c.Clock.Now()

	go m.run(runCtx)
	return nil
}

// Stop cancels the loop, waits for the in-flight frame and returns the
// resource release error, if any. Stop before Start is a no-op.
func (m *Monitor) Stop() error {
	m.mu.RLock()
	started, cancel := m.started, m.cancel
	m.mu.RUnlock()

	if !started {
		return nil
	}
	cancel()
	<-m.done
	return m.releaseErr
}

// Close stops the loop if it ran and releases resources in any case
func (m *Monitor) Close() error {
	if err := m.Stop(); err != nil {
		return err
	}
	return m.release()
}

// Done is closed when the loop has exited and released its resources
func (m *Monitor) Done() <-chan struct{} {
	return m.done
}

// State returns a snapshot of the loop state
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)
	defer m.release()
	defer m.update(func(s *State) { s.Running = false })

	logger.Info("Monitor", "Monitoring started (minimum people: %d, alert interval: %v)",
		m.opts.MinPeople, m.opts.AlertInterval)

	for {
		if ctx.Err() != nil {
			logger.Info("Monitor", "Monitoring stopped")
			return
		}

		if err := m.processFrame(ctx); err != nil {
			if ctx.Err() != nil {
				logger.Info("Monitor", "Monitoring stopped")
				return
			}
			logger.Error("Monitor", "Failed to grab frame: %v", err)
			m.update(func(s *State) { s.LastError = err.Error() })
			return
		}

		select {
		case <-ctx.Done():
		case <-m.c.Clock.After(m.opts.FrameDelay):
		}
	}
}

// processFrame runs one iteration. Only frame acquisition errors are
// returned; everything else is logged and counted.
func (m *Monitor) processFrame(ctx context.Context) error {
	frame, err := m.c.Source.Next(ctx)
	if err != nil {
		return err
	}
	if frame == nil {
		return capture.ErrNoFrame
	}

	people, err := m.detect(ctx, frame)
	if err != nil {
		logger.Error("Monitor", "Detection failed on frame %d: %v", frame.Seq, err)
		if m.c.Metrics != nil {
			m.c.Metrics.DetectErrors.Add(1)
			m.c.Metrics.FramesProcessed.Add(1)
		}
		m.update(func(s *State) {
			s.FramesProcessed++
			s.LastError = err.Error()
		})
		return nil
	}
	count := len(people)

	m.setIndicator(count)

	annotated := annotate.Frame(frame, people, m.opts.MinPeople)
	now := m.c.Clock.Now()
	alerted := false

	if count < m.opts.MinPeople {
		m.recordIncident(annotated)
		if m.alertDue(now) {
			m.alert(ctx, count, now)
			alerted = true
		}
	} else {
		m.stopIncident(ctx)
	}

	m.recordContinuous(annotated)

	if err := m.c.Display.Show(annotated, count, m.opts.MinPeople); err != nil {
		logger.Error("Monitor", "Display error: %v", err)
		if m.c.Metrics != nil {
			m.c.Metrics.DisplayErrors.Add(1)
		}
	}

	recording := m.c.Recorder != nil && m.c.Recorder.IsRecording()
	var path string
	if recording {
		path = m.c.Recorder.Path()
	}
	m.update(func(s *State) {
		s.FramesProcessed++
		s.LastCount = count
		s.LastError = ""
		s.RecordingActive = recording
		s.CurrentRecordingPath = path
	})

	if m.c.Metrics != nil {
		m.c.Metrics.FramesProcessed.Add(1)
		m.c.Metrics.PeopleCount.Store(uint64(count))
		m.c.Metrics.UpdateFrameLatency(frame.Timestamp)
	}

	result := Result{
		Seq:       frame.Seq,
		Timestamp: frame.Timestamp,
		Count:     count,
		MinPeople: m.opts.MinPeople,
		People:    people,
		Alerted:   alerted,
		Recording: recording,
	}
	for _, o := range m.c.Observers {
		o.ObserveFrame(result)
	}
	return nil
}

func (m *Monitor) detect(ctx context.Context, frame *types.Frame) ([]types.Detection, error) {
	detectCtx := ctx
	if m.opts.DetectTimeout > 0 {
		var cancel context.CancelFunc
		detectCtx, cancel = context.WithTimeout(ctx, m.opts.DetectTimeout)
		defer cancel()
	}

	start := time.Now()
	dets, err := m.c.Detector.Detect(detectCtx, frame)
	if m.c.Metrics != nil {
		m.c.Metrics.UpdateDetectLatency(time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return detect.People(dets), nil
}

func (m *Monitor) setIndicator(count int) {
	state := indicator.StateFor(count, m.opts.MinPeople, m.triState)
	if err := m.c.Indicator.SetState(state); err != nil {
		logger.Error("Monitor", "Failed to update indicator to %s: %v", state, err)
		if m.c.Metrics != nil {
			m.c.Metrics.IndicatorErrors.Add(1)
		}
	}
}

func (m *Monitor) alertDue(now time.Time) bool {
	m.mu.RLock()
	last := m.state.LastAlertTime
	m.mu.RUnlock()
	return last.IsZero() || now.Sub(last) >= m.opts.AlertInterval
}

func (m *Monitor) alert(ctx context.Context, count int, now time.Time) {
	msg := AlertMessage(count)
	logger.Warn("Monitor", "%s", msg)

	m.update(func(s *State) {
		s.LastAlertTime = now
		s.AlertsEmitted++
	})
	if m.c.Metrics != nil {
		m.c.Metrics.AlertsEmitted.Add(1)
	}

	if m.c.Notifier != nil {
		// Per-channel failures are already logged by the notifier.
		if err := m.c.Notifier.Send(ctx, msg); err != nil {
			logger.Debug("Monitor", "Alert delivery incomplete: %v", err)
		}
	}

	m.storeEvent(ctx, func(ctx context.Context, e EventSink) error {
		return e.RecordAlert(ctx, events.Alert{
			OccurredAt:  now,
			PeopleCount: count,
			MinPeople:   m.opts.MinPeople,
			Message:     msg,
		})
	})
}

// recordIncident opens the incident recording if needed and appends frame
func (m *Monitor) recordIncident(frame *types.Frame) {
	rec := m.c.Recorder
	if rec == nil {
		return
	}

	if !rec.IsRecording() {
		if err := rec.Start(frame.Width, frame.Height); err != nil {
			logger.Error("Monitor", "Error starting video recording: %v", err)
			m.recorderError()
			return
		}
		logger.Info("Monitor", "Started video recording: %s", rec.Path())
		if m.c.Metrics != nil {
			m.c.Metrics.RecordingsStarted.Add(1)
			m.c.Metrics.SetRecording(true)
		}
	}

	if err := rec.Write(frame); err != nil {
		logger.Error("Monitor", "Error writing video frame: %v", err)
		m.recorderError()
		return
	}
	if m.c.Metrics != nil {
		m.c.Metrics.RecordingFrames.Add(1)
	}
}

func (m *Monitor) stopIncident(ctx context.Context) {
	rec := m.c.Recorder
	if rec == nil || !rec.IsRecording() {
		return
	}
	m.closeRecording(ctx, rec)
	if m.c.Metrics != nil {
		m.c.Metrics.SetRecording(false)
	}
}

func (m *Monitor) closeRecording(ctx context.Context, rec Recorder) error {
	status, err := rec.Stop()
	if err != nil {
		logger.Error("Monitor", "Error stopping video recording: %v", err)
		m.recorderError()
	} else {
		logger.Info("Monitor", "Stopped video recording: %s (%d frames)", status.Path, status.FrameCount)
	}

	if status.Path != "" {
		m.storeEvent(ctx, func(ctx context.Context, e EventSink) error {
			return e.RecordRecording(ctx, events.Recording{
				ID:        status.ID,
				Path:      status.Path,
				StartedAt: status.StartTime,
				StoppedAt: status.StartTime.Add(time.Duration(status.Duration) * time.Millisecond),
				Frames:    status.FrameCount,
			})
		})
	}
	return err
}

func (m *Monitor) recordContinuous(frame *types.Frame) {
	rec := m.c.Continuous
	if rec == nil {
		return
	}
	if !rec.IsRecording() {
		if err := rec.Start(frame.Width, frame.Height); err != nil {
			logger.Error("Monitor", "Error starting continuous recording: %v", err)
			m.recorderError()
			return
		}
		logger.Info("Monitor", "Started continuous recording: %s", rec.Path())
	}
	if err := rec.Write(frame); err != nil {
		logger.Error("Monitor", "Error writing continuous frame: %v", err)
		m.recorderError()
	}
}

func (m *Monitor) recorderError() {
	if m.c.Metrics != nil {
		m.c.Metrics.RecorderErrors.Add(1)
	}
}

// storeEvent writes to the event store with its own timeout so a stopped
// loop can still record the final recording.
func (m *Monitor) storeEvent(ctx context.Context, write func(context.Context, EventSink) error) {
	if m.c.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()

	if err := write(ctx, m.c.Events); err != nil {
		logger.Error("Monitor", "Failed to store event: %v", err)
		if m.c.Metrics != nil {
			m.c.Metrics.EventErrors.Add(1)
		}
	}
}

func (m *Monitor) update(fn func(s *State)) {
	m.mu.Lock()
	fn(&m.state)
	m.mu.Unlock()
}

// release closes the recordings, the frame source, the indicator and the
// display exactly once.
func (m *Monitor) release() error {
	m.releaseOnce.Do(func() {
		var errs []error
		ctx := context.Background()

		if rec := m.c.Recorder; rec != nil && rec.IsRecording() {
			if err := m.closeRecording(ctx, rec); err != nil {
				errs = append(errs, err)
			}
		}
		if rec := m.c.Continuous; rec != nil && rec.IsRecording() {
			if err := m.closeRecording(ctx, rec); err != nil {
				errs = append(errs, err)
			}
		}
		if m.c.Metrics != nil {
			m.c.Metrics.SetRecording(false)
		}
		if err := m.c.Source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("release frame source: %w", err))
		}
		if err := m.c.Indicator.Close(); err != nil {
			errs = append(errs, fmt.Errorf("release indicator: %w", err))
		}
		if err := m.c.Display.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close display: %w", err))
		}

		m.update(func(s *State) {
			s.RecordingActive = false
			s.CurrentRecordingPath = ""
		})
		m.releaseErr = errors.Join(errs...)
		if m.releaseErr != nil {
			logger.Warn("Monitor", "Cleanup finished with errors: %v", m.releaseErr)
		} else {
			logger.Info("Monitor", "Resources released")
		}
	})
	return m.releaseErr
}
