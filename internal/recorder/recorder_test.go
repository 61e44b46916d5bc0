package recorder

import (
	"bytes"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/people-count-monitor/internal/timeutil"
	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

var start = time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)

func frame(seq uint64) *types.Frame {
	return types.NewFrame(image.NewRGBA(image.Rect(0, 0, 16, 16)), seq, start)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "security_recording_20260314_092653.avi", FileName("security_recording", "avi", start))
	assert.Equal(t, "continuous_recording_20260314_092653.mp4", FileName("continuous_recording", "mp4", start))
}

func TestRecorderLifecycle(t *testing.T) {
	dir := t.TempDir()
	clock := timeutil.NewMockClock(start)
	r := NewRecorder(NewMJPEGSink(80), dir, "security_recording", 10, clock)

	assert.False(t, r.IsRecording())
	require.NoError(t, r.Start(16, 16))
	assert.True(t, r.IsRecording())
	assert.ErrorIs(t, r.Start(16, 16), ErrAlreadyRecording, "at most one open recording")

	require.NoError(t, r.Write(frame(1)))
	require.NoError(t, r.Write(frame(2)))
	clock.Advance(3 * time.Second)

	status, err := r.Stop()
	require.NoError(t, err)
	assert.False(t, status.Recording)
	assert.Equal(t, uint64(2), status.FrameCount)
	assert.Equal(t, int64(3000), status.Duration)
	assert.NotEmpty(t, status.ID)
	assert.Equal(t, filepath.Join(dir, "security_recording_20260314_092653.mjpeg"), status.Path)

	data, err := os.ReadFile(status.Path)
	require.NoError(t, err)
	assert.Equal(t, status.BytesWritten, uint64(len(data)))

	_, err = jpeg.Decode(bytes.NewReader(data))
	assert.NoError(t, err, "first frame decodes")
}

func TestRecorderStopWhenIdle(t *testing.T) {
	r := NewRecorder(NewMJPEGSink(80), t.TempDir(), "x", 10, nil)
	_, err := r.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)
	assert.ErrorIs(t, r.Write(frame(1)), ErrNotRecording)
	assert.NoError(t, r.Close())
}

func TestRecorderDoesNotClobberSameSecond(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(NewMJPEGSink(80), dir, "security_recording", 10, timeutil.NewMockClock(start))

	require.NoError(t, r.Start(16, 16))
	first := r.Path()
	_, err := r.Stop()
	require.NoError(t, err)

	require.NoError(t, r.Start(16, 16))
	second := r.Path()
	require.NoError(t, r.Close())

	assert.NotEqual(t, first, second)
	assert.Equal(t, "security_recording_20260314_092653_1.mjpeg", filepath.Base(second))
}

func TestRecorderOpenFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	r := NewRecorder(NewMJPEGSink(80), filepath.Join(blocker, "sub"), "x", 10, nil)
	assert.Error(t, r.Start(16, 16))
	assert.False(t, r.IsRecording())
}

func TestRecorderStartFailsOnUnusablePath(t *testing.T) {
	r := NewRecorder(NewMJPEGSink(80), t.TempDir(), strings.Repeat("a", 300), 10, nil)

	done := make(chan error, 1)
	go func() { done <- r.Start(64, 48) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}
	assert.False(t, r.IsRecording())
}
