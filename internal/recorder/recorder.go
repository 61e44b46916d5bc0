package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dj-oyu/people-count-monitor/internal/timeutil"
	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

// Errors returned by Recorder
var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

// TimestampLayout is the file name timestamp format (YYYYMMDD_HHMMSS)
const TimestampLayout = "20060102_150405"

// FileName returns <prefix>_<YYYYMMDD_HHMMSS>.<ext>
func FileName(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format(TimestampLayout), ext)
}

// Recorder owns at most one open recording
type Recorder struct {
	mu        sync.RWMutex
	sink      Sink
	basePath  string
	prefix    string
	fps       float64
	clock     timeutil.Clock
	handle    Handle
	id        string
	filename  string
	path      string
	recording bool

	frameCount   uint64
	bytesWritten uint64
	startTime    time.Time
	stopTime     time.Time
}

// NewRecorder creates a recorder writing <prefix>_<timestamp> files under basePath
func NewRecorder(sink Sink, basePath, prefix string, fps float64, clock timeutil.Clock) *Recorder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Recorder{
		sink:     sink,
		basePath: basePath,
		prefix:   prefix,
		fps:      fps,
		clock:    clock,
	}
}

// Start opens a new recording sized for the given frame
func (r *Recorder) Start(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return ErrAlreadyRecording
	}

	if err := os.MkdirAll(r.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create recording directory: %w", err)
	}

	now := r.clock.Now()
	filename, err := r.uniqueName(now)
	if err != nil {
		return err
	}
	path := filepath.Join(r.basePath, filename)

	handle, err := r.sink.Open(path, width, height, r.fps)
	if err != nil {
		return fmt.Errorf("failed to open recording %s: %w", filename, err)
	}

	r.handle = handle
	r.id = uuid.NewString()
	r.filename = filename
	r.path = path
	r.recording = true
	r.frameCount = 0
	r.bytesWritten = 0
	r.startTime = now
	r.stopTime = time.Time{}

	return nil
}

// maxSameSecond bounds the _N suffixes tried for one timestamp
const maxSameSecond = 100

// uniqueName avoids clobbering a clip opened earlier in the same second
func (r *Recorder) uniqueName(now time.Time) (string, error) {
	ext := r.sink.Ext()
	name := FileName(r.prefix, ext, now)
	base := name[:len(name)-len(ext)-1]
	for i := 1; i <= maxSameSecond; i++ {
		_, err := os.Stat(filepath.Join(r.basePath, name))
		if errors.Is(err, os.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check recording path %s: %w", name, err)
		}
		name = fmt.Sprintf("%s_%d.%s", base, i, ext)
	}
	return "", fmt.Errorf("too many recordings named %s in one second", base)
}

// Write appends a frame to the open recording
func (r *Recorder) Write(frame *types.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return ErrNotRecording
	}
	if err := r.handle.Write(frame); err != nil {
		return err
	}
	r.frameCount++
	if bc, ok := r.handle.(byteCounter); ok {
		r.bytesWritten = bc.BytesWritten()
	}
	return nil
}

// Stop closes the open recording and returns its final status
func (r *Recorder) Stop() (RecordingStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return RecordingStatus{}, ErrNotRecording
	}

	r.recording = false
	r.stopTime = r.clock.Now()
	err := r.handle.Close()
	r.handle = nil

	status := r.statusLocked()
	if err != nil {
		return status, fmt.Errorf("failed to close recording %s: %w", r.filename, err)
	}
	return status, nil
}

// IsRecording returns true if currently recording
func (r *Recorder) IsRecording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// Path returns the path of the current (or last) recording
func (r *Recorder) Path() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.path
}

// GetStatus returns the current recording status
func (r *Recorder) GetStatus() RecordingStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statusLocked()
}

func (r *Recorder) statusLocked() RecordingStatus {
	var duration time.Duration
	switch {
	case r.recording:
		duration = r.clock.Since(r.startTime)
	case !r.stopTime.IsZero():
		duration = r.stopTime.Sub(r.startTime)
	}

	return RecordingStatus{
		ID:           r.id,
		Recording:    r.recording,
		Filename:     r.filename,
		Path:         r.path,
		FrameCount:   r.frameCount,
		BytesWritten: r.bytesWritten,
		Duration:     duration.Milliseconds(),
		StartTime:    r.startTime,
	}
}

// Close stops any open recording
func (r *Recorder) Close() error {
	if r.IsRecording() {
		_, err := r.Stop()
		return err
	}
	return nil
}

// RecordingStatus holds the current recording status
type RecordingStatus struct {
	ID           string    `json:"id,omitempty"`
	Recording    bool      `json:"recording"`
	Filename     string    `json:"filename"`
	Path         string    `json:"path,omitempty"`
	FrameCount   uint64    `json:"frame_count"`
	BytesWritten uint64    `json:"bytes_written"`
	Duration     int64     `json:"duration_ms"`
	StartTime    time.Time `json:"start_time"`
}
