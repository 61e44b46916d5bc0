package webmonitor

import (
	"sync"
	"time"

	"github.com/dj-oyu/people-count-monitor/internal/monitor"
)

// Tracker keeps the recent head count history and frame rate. It is
// registered as a monitor.Observer.
type Tracker struct {
	historySize int

	mu          sync.Mutex
	history     []CountSample // newest first
	lastCount   int
	hasLast     bool
	windowStart time.Time
	windowCount int
	currentFPS  float64
}

// NewTracker keeps up to historySize count changes.
func NewTracker(historySize int) *Tracker {
	if historySize <= 0 {
		historySize = DefaultConfig().HistorySize
	}
	return &Tracker{historySize: historySize}
}

// ObserveFrame implements monitor.Observer.
func (t *Tracker) ObserveFrame(r monitor.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.updateFPSLocked(r.Timestamp)

	if t.hasLast && t.lastCount == r.Count {
		return
	}
	t.lastCount = r.Count
	t.hasLast = true

	sample := CountSample{
		FrameNumber:  r.Seq,
		Timestamp:    unixSeconds(r.Timestamp),
		PeopleCount:  r.Count,
		BelowMinimum: r.Count < r.MinPeople,
	}
	t.history = append([]CountSample{sample}, t.history...)
	if len(t.history) > t.historySize {
		t.history = t.history[:t.historySize]
	}
}

// updateFPSLocked measures frames over windows of at least one second.
func (t *Tracker) updateFPSLocked(ts time.Time) {
	if t.windowStart.IsZero() {
		t.windowStart = ts
		t.windowCount = 0
	}
	t.windowCount++

	elapsed := ts.Sub(t.windowStart)
	if elapsed >= time.Second {
		t.currentFPS = float64(t.windowCount-1) / elapsed.Seconds()
		t.windowStart = ts
		t.windowCount = 1
	}
}

// Snapshot returns the current frame rate and a copy of the history.
func (t *Tracker) Snapshot() (float64, []CountSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	history := make([]CountSample, len(t.history))
	copy(history, t.history)
	return t.currentFPS, history
}

func unixSeconds(ts time.Time) float64 {
	if ts.IsZero() {
		return 0
	}
	return float64(ts.UnixNano()) / float64(time.Second)
}
