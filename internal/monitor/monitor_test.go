package monitor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/people-count-monitor/internal/capture"
	"github.com/dj-oyu/people-count-monitor/internal/events"
	"github.com/dj-oyu/people-count-monitor/internal/metrics"
	"github.com/dj-oyu/people-count-monitor/internal/recorder"
	"github.com/dj-oyu/people-count-monitor/internal/timeutil"
	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

var testEpoch = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// fakeSource yields n frames, then fails with ErrNoFrame or blocks until
// cancelled when block is set.
type fakeSource struct {
	n     int
	block bool

	mu     sync.Mutex
	calls  int
	closes int
}

func (s *fakeSource) Next(ctx context.Context) (*types.Frame, error) {
	s.mu.Lock()
	s.calls++
	seq := s.calls
	s.mu.Unlock()

	if seq > s.n {
		if !s.block {
			return nil, capture.ErrNoFrame
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	return types.NewFrame(img, uint64(seq), testEpoch), nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSource) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// fakeDetector returns counts[i] people plus one chair for call i. err is
// returned on every call, or only on the first failFirst calls when set.
type fakeDetector struct {
	counts    []int
	err       error
	failFirst int

	mu    sync.Mutex
	calls int
}

func (d *fakeDetector) Detect(ctx context.Context, frame *types.Frame) ([]types.Detection, error) {
	d.mu.Lock()
	i := d.calls
	d.calls++
	d.mu.Unlock()

	if d.err != nil && (d.failFirst == 0 || i < d.failFirst) {
		return nil, d.err
	}
	count := 0
	if i < len(d.counts) {
		count = d.counts[i]
	}
	dets := []types.Detection{{ClassID: 56, ClassName: "chair", Confidence: 0.9, BBox: types.BoundingBox{X1: 1, Y1: 1, X2: 5, Y2: 5}}}
	for p := 0; p < count; p++ {
		dets = append(dets, types.Detection{
			ClassID:    types.ClassPersonID,
			ClassName:  types.ClassPersonName,
			Confidence: 0.8,
			BBox:       types.BoundingBox{X1: 2 + p, Y1: 2, X2: 20 + p, Y2: 40},
		})
	}
	return dets, nil
}

type fakeIndicator struct {
	tri bool

	mu     sync.Mutex
	states []types.IndicatorState
	closes int
}

func (f *fakeIndicator) SetState(s types.IndicatorState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, s)
	return nil
}

func (f *fakeIndicator) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeIndicator) TriState() bool { return f.tri }

// fakeRecorder logs start, write:<seq> and stop calls
type fakeRecorder struct {
	startErr error

	mu        sync.Mutex
	log       []string
	recording bool
	opened    int
	frames    uint64
}

func (r *fakeRecorder) Start(w, h int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.opened++
	r.recording = true
	r.frames = 0
	r.log = append(r.log, "start")
	return nil
}

func (r *fakeRecorder) Write(f *types.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return recorder.ErrNotRecording
	}
	r.frames++
	r.log = append(r.log, fmt.Sprintf("write:%d", f.Seq))
	return nil
}

func (r *fakeRecorder) Stop() (recorder.RecordingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return recorder.RecordingStatus{}, recorder.ErrNotRecording
	}
	r.recording = false
	r.log = append(r.log, "stop")
	return recorder.RecordingStatus{
		ID:         fmt.Sprintf("rec-%d", r.opened),
		Path:       r.pathLocked(),
		FrameCount: r.frames,
		StartTime:  testEpoch,
	}, nil
}

func (r *fakeRecorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

func (r *fakeRecorder) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pathLocked()
}

func (r *fakeRecorder) pathLocked() string {
	return fmt.Sprintf("monitoring_logs/security_recording_%d.avi", r.opened)
}

func (r *fakeRecorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

type fakeNotifier struct {
	err error

	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Send(ctx context.Context, msg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type fakeEvents struct {
	mu         sync.Mutex
	alerts     []events.Alert
	recordings []events.Recording
}

func (e *fakeEvents) RecordAlert(ctx context.Context, a events.Alert) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerts = append(e.alerts, a)
	return nil
}

func (e *fakeEvents) RecordRecording(ctx context.Context, r events.Recording) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recordings = append(e.recordings, r)
	return nil
}

type fakeObserver struct {
	mu      sync.Mutex
	results []Result
}

func (o *fakeObserver) ObserveFrame(r Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results = append(o.results, r)
}

type harness struct {
	source    *fakeSource
	detector  *fakeDetector
	indicator *fakeIndicator
	recorder  *fakeRecorder
	notifier  *fakeNotifier
	events    *fakeEvents
	observer  *fakeObserver
	clock     *timeutil.MockClock
	metrics   *metrics.Metrics
	monitor   *Monitor
}

func newHarness(t *testing.T, counts []int) *harness {
	t.Helper()
	h := &harness{
		source:    &fakeSource{n: len(counts)},
		detector:  &fakeDetector{counts: counts},
		indicator: &fakeIndicator{},
		recorder:  &fakeRecorder{},
		notifier:  &fakeNotifier{},
		events:    &fakeEvents{},
		observer:  &fakeObserver{},
		clock:     timeutil.NewMockClock(testEpoch),
		metrics:   metrics.New(),
	}
	return h
}

func (h *harness) build(t *testing.T, opts Options) *Monitor {
	t.Helper()
	m, err := New(opts, Components{
		Source:    h.source,
		Detector:  h.detector,
		Indicator: h.indicator,
		Recorder:  h.recorder,
		Notifier:  h.notifier,
		Events:    h.events,
		Metrics:   h.metrics,
		Clock:     h.clock,
		Observers: []Observer{h.observer},
	})
	require.NoError(t, err)
	h.monitor = m
	return m
}

func waitDone(t *testing.T, m *Monitor) {
	t.Helper()
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("monitor loop did not finish")
	}
}

func runToEnd(t *testing.T, h *harness, opts Options) *Monitor {
	t.Helper()
	m := h.build(t, opts)
	require.NoError(t, m.Start(context.Background()))
	waitDone(t, m)
	return m
}

func TestScenarioRecordingAndThrottledAlerts(t *testing.T) {
	opts := Options{MinPeople: 2, AlertInterval: 2500 * time.Millisecond, FrameDelay: time.Second}
	h := newHarness(t, []int{0, 1, 3, 3, 1})
	m := runToEnd(t, h, opts)

	assert.Equal(t, []string{
		"start", "write:1", // opens at frame 1
		"write:2",          // still below at frame 2
		"stop",             // count 3 closes it at frame 3
		"start", "write:5", // reopens at frame 5
		"stop",             // released when the source runs dry
	}, h.recorder.calls())

	assert.Equal(t, []string{AlertMessage(0), AlertMessage(1)}, h.notifier.messages())
	assert.Len(t, h.events.alerts, 2)
	assert.Len(t, h.events.recordings, 2)
	assert.Equal(t, uint64(2), h.events.recordings[0].Frames)

	state := m.State()
	assert.False(t, state.Running)
	assert.Equal(t, uint64(5), state.FramesProcessed)
	assert.Equal(t, uint64(2), state.AlertsEmitted)
	assert.Equal(t, 1, state.LastCount)
	assert.True(t, state.LastAlertTime.Equal(testEpoch.Add(4*time.Second)))
	assert.False(t, state.RecordingActive)
	assert.Equal(t, 1, h.source.closeCount())
}

func TestAlertMessage(t *testing.T) {
	assert.Equal(t, "SECURITY ALERT: Only 1 person(s) detected in sensitive project area!", AlertMessage(1))
}

func TestAlertsThrottledRegardlessOfFrameRate(t *testing.T) {
	for _, delay := range []time.Duration{50 * time.Millisecond, time.Second} {
		t.Run(delay.String(), func(t *testing.T) {
			counts := make([]int, 40)
			opts := Options{MinPeople: 2, AlertInterval: 5 * time.Second, FrameDelay: delay}
			h := newHarness(t, counts)
			runToEnd(t, h, opts)

			elapsed := time.Duration(len(counts)-1) * delay
			maxAlerts := int(elapsed/opts.AlertInterval) + 1
			assert.LessOrEqual(t, len(h.notifier.messages()), maxAlerts)
			assert.GreaterOrEqual(t, len(h.notifier.messages()), 1)
		})
	}
}

func TestCountEqualToMinimumIsNotAnIncident(t *testing.T) {
	opts := Options{MinPeople: 2, AlertInterval: time.Second, FrameDelay: time.Second}
	h := newHarness(t, []int{2, 2, 2})
	runToEnd(t, h, opts)

	assert.Empty(t, h.notifier.messages())
	assert.Empty(t, h.recorder.calls())
	assert.Equal(t, []types.IndicatorState{types.IndicatorOK, types.IndicatorOK, types.IndicatorOK}, h.indicator.states)
}

func TestIndicatorStates(t *testing.T) {
	counts := []int{0, 1, 2, 3}
	opts := Options{MinPeople: 2, AlertInterval: time.Second, FrameDelay: time.Millisecond}

	h := newHarness(t, counts)
	runToEnd(t, h, opts)
	assert.Equal(t, []types.IndicatorState{
		types.IndicatorAlert, types.IndicatorAlert, types.IndicatorOK, types.IndicatorOK,
	}, h.indicator.states)

	tri := newHarness(t, counts)
	tri.indicator.tri = true
	runToEnd(t, tri, opts)
	assert.Equal(t, []types.IndicatorState{
		types.IndicatorAlert, types.IndicatorOff, types.IndicatorOK, types.IndicatorOK,
	}, tri.indicator.states)
}

func TestSourceFailureStopsAfterTwoFrames(t *testing.T) {
	opts := Options{MinPeople: 2, AlertInterval: time.Second, FrameDelay: time.Second}
	h := newHarness(t, []int{0, 0})
	m := runToEnd(t, h, opts)

	assert.Equal(t, 3, h.source.calls)
	assert.Len(t, h.indicator.states, 2)
	assert.Equal(t, []string{"start", "write:1", "write:2", "stop"}, h.recorder.calls())
	assert.Equal(t, 1, h.source.closeCount())
	assert.Equal(t, 1, h.indicator.closes)

	state := m.State()
	assert.False(t, state.Running)
	assert.Contains(t, state.LastError, capture.ErrNoFrame.Error())

	// Stop after a fatal exit is a no-op and does not release twice
	require.NoError(t, m.Stop())
	assert.Equal(t, 1, h.source.closeCount())
}

func TestStopImmediatelyAfterStart(t *testing.T) {
	opts := Options{MinPeople: 2, FrameDelay: time.Millisecond}
	h := newHarness(t, nil)
	h.source.block = true
	m := h.build(t, opts)

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Stop())

	select {
	case <-m.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	assert.Equal(t, 1, h.source.closeCount())
	assert.Equal(t, 1, h.indicator.closes)
	assert.False(t, m.State().Running)

	require.NoError(t, m.Stop())
	assert.Equal(t, 1, h.source.closeCount())
	assert.ErrorIs(t, m.Start(context.Background()), ErrStopped)
}

func TestStopClosesOpenRecording(t *testing.T) {
	opts := Options{MinPeople: 2, AlertInterval: time.Hour, FrameDelay: time.Millisecond}
	h := newHarness(t, []int{1})
	h.source.block = true
	m := h.build(t, opts)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return m.State().FramesProcessed == 1 }, 5*time.Second, time.Millisecond)
	assert.True(t, m.State().RecordingActive)
	assert.NotEmpty(t, m.State().CurrentRecordingPath)

	require.NoError(t, m.Stop())
	assert.Equal(t, []string{"start", "write:1", "stop"}, h.recorder.calls())
	assert.False(t, m.State().RecordingActive)
	assert.Len(t, h.events.recordings, 1)
}

func TestStartTwiceIsRejected(t *testing.T) {
	opts := Options{MinPeople: 2, FrameDelay: time.Millisecond}
	h := newHarness(t, nil)
	h.source.block = true
	m := h.build(t, opts)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyRunning)
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	opts := Options{MinPeople: 2}
	h := newHarness(t, nil)
	m := h.build(t, opts)

	require.NoError(t, m.Stop())
	assert.Equal(t, 0, h.source.closeCount())

	require.NoError(t, m.Close())
	assert.Equal(t, 1, h.source.closeCount())
}

func TestParentContextCancelStopsLoop(t *testing.T) {
	opts := Options{MinPeople: 2, FrameDelay: time.Millisecond}
	h := newHarness(t, nil)
	h.source.block = true
	m := h.build(t, opts)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx))
	cancel()
	waitDone(t, m)
	assert.Equal(t, 1, h.source.closeCount())
	assert.Empty(t, m.State().LastError)
}

func TestNotifierFailureDoesNotStopLoop(t *testing.T) {
	opts := Options{MinPeople: 2, AlertInterval: time.Second, FrameDelay: time.Second}
	h := newHarness(t, []int{0, 0, 0})
	h.notifier.err = errors.New("smtp: 535 authentication failed")
	m := runToEnd(t, h, opts)

	assert.Equal(t, uint64(3), m.State().FramesProcessed)
	assert.Len(t, h.notifier.messages(), 3)
}

func TestRecordingOpenFailureIsNotFatal(t *testing.T) {
	opts := Options{MinPeople: 2, AlertInterval: time.Hour, FrameDelay: time.Second}
	h := newHarness(t, []int{0, 0})
	h.recorder.startErr = errors.New("disk full")
	m := runToEnd(t, h, opts)

	assert.Equal(t, uint64(2), m.State().FramesProcessed)
	assert.Empty(t, h.recorder.calls())
	assert.Equal(t, uint64(2), h.metrics.RecorderErrors.Load())
	assert.Len(t, h.notifier.messages(), 1)
}

func TestDetectorErrorSkipsFrame(t *testing.T) {
	opts := Options{MinPeople: 2, FrameDelay: time.Second}
	h := newHarness(t, []int{0, 0})
	h.source.block = true
	h.detector.err = errors.New("inference server unavailable")
	m := h.build(t, opts)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool {
		return m.State().FramesProcessed == 2
	}, 5*time.Second, 5*time.Millisecond)

	state := m.State()
	assert.Contains(t, state.LastError, "inference server unavailable")
	require.NoError(t, m.Stop())

	assert.Empty(t, h.indicator.states)
	assert.Empty(t, h.recorder.calls())
	assert.Equal(t, uint64(2), h.metrics.DetectErrors.Load())
}

func TestDetectorRecoveryClearsLastError(t *testing.T) {
	opts := Options{MinPeople: 2, FrameDelay: time.Second}
	h := newHarness(t, []int{0, 3})
	h.source.block = true
	h.detector.err = errors.New("inference server unavailable")
	h.detector.failFirst = 1
	m := h.build(t, opts)

	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool {
		return m.State().FramesProcessed == 2
	}, 5*time.Second, 5*time.Millisecond)

	state := m.State()
	assert.Empty(t, state.LastError)
	assert.Equal(t, 3, state.LastCount)
	require.NoError(t, m.Stop())
}

func TestObserversAndMetrics(t *testing.T) {
	opts := Options{MinPeople: 2, AlertInterval: time.Hour, FrameDelay: time.Second}
	h := newHarness(t, []int{1, 4})
	runToEnd(t, h, opts)

	require.Len(t, h.observer.results, 2)
	first, second := h.observer.results[0], h.observer.results[1]
	assert.Equal(t, 1, first.Count)
	assert.True(t, first.Alerted)
	assert.True(t, first.Recording)
	assert.Len(t, first.People, 1, "non-person detections are dropped")
	assert.Equal(t, 4, second.Count)
	assert.False(t, second.Recording)

	assert.Equal(t, uint64(2), h.metrics.FramesProcessed.Load())
	assert.Equal(t, uint64(4), h.metrics.PeopleCount.Load())
	assert.Equal(t, uint64(2), h.metrics.MinPeople.Load())
	assert.Equal(t, uint64(1), h.metrics.RecordingsStarted.Load())
	assert.Equal(t, uint64(0), h.metrics.RecordingActive.Load())
}

func TestPacingUsesFrameDelay(t *testing.T) {
	opts := Options{MinPeople: 0, FrameDelay: 50 * time.Millisecond}
	h := newHarness(t, []int{0, 0, 0})
	runToEnd(t, h, opts)

	assert.Equal(t, []time.Duration{50 * time.Millisecond, 50 * time.Millisecond, 50 * time.Millisecond}, h.clock.Sleeps())
}

func TestNewRequiresSourceAndDetector(t *testing.T) {
	_, err := New(Options{}, Components{Detector: &fakeDetector{}})
	assert.Error(t, err)
	_, err = New(Options{}, Components{Source: &fakeSource{}})
	assert.Error(t, err)
	_, err = New(Options{MinPeople: -1}, Components{Source: &fakeSource{}, Detector: &fakeDetector{}})
	assert.Error(t, err)
}

func TestContinuousRecordingCoversEveryFrame(t *testing.T) {
	opts := Options{MinPeople: 2, AlertInterval: time.Minute, FrameDelay: time.Second}
	h := newHarness(t, []int{3, 0, 3})
	continuous := &fakeRecorder{}

	m, err := New(opts, Components{
		Source:     h.source,
		Detector:   h.detector,
		Recorder:   h.recorder,
		Continuous: continuous,
		Events:     h.events,
		Clock:      h.clock,
	})
	require.NoError(t, err)
	require.NoError(t, m.Start(context.Background()))
	waitDone(t, m)

	assert.Equal(t, []string{"start", "write:1", "write:2", "write:3", "stop"}, continuous.calls())
	assert.Equal(t, []string{"start", "write:2", "stop"}, h.recorder.calls())
	assert.Len(t, h.events.recordings, 2)
}
