package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dj-oyu/people-count-monitor/internal/logger"
	"github.com/dj-oyu/people-count-monitor/pkg/types"
)

const maxPartBytes = 16 << 20

// MJPEGSource reads frames from an HTTP multipart/x-mixed-replace stream,
// the format served by IP cameras and by our own /stream endpoint.
type MJPEGSource struct {
	url    string
	client *http.Client

	// streamCtx lives until Close so per-call contexts do not tear down
	// the body between frames.
	streamCtx context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu    sync.Mutex
	body  io.ReadCloser
	parts *multipart.Reader
	seq   uint64
	now   func() time.Time
}

// NewMJPEGSource creates a source for the given stream URL.
// The connection is opened lazily on the first Next call.
func NewMJPEGSource(url string, client *http.Client) *MJPEGSource {
	if client == nil {
		client = &http.Client{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MJPEGSource{
		url:       url,
		client:    client,
		streamCtx: ctx,
		cancel:    cancel,
		now:       time.Now,
	}
}

// connect opens the stream
func (s *MJPEGSource) connect() error {
	req, err := http.NewRequestWithContext(s.streamCtx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		resp.Body.Close()
		return fmt.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	boundary := strings.TrimPrefix(params["boundary"], "--")
	if boundary == "" {
		resp.Body.Close()
		return fmt.Errorf("multipart stream has no boundary")
	}

	s.body = resp.Body
	s.parts = multipart.NewReader(resp.Body, boundary)

	logger.Info("Capture", "Connected to MJPEG stream %s", s.url)
	return nil
}

// Next returns the next decoded frame. Any stream failure is reported as
// ErrNoFrame. Cancelling ctx aborts the stream.
func (s *MJPEGSource) Next(ctx context.Context) (*types.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamCtx.Err() != nil {
		return nil, ErrNoFrame
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	if s.parts == nil {
		if err := s.connect(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
		}
	}

	for {
		part, err := s.parts.NextPart()
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: stream ended", ErrNoFrame)
			}
			return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
		}

		data, err := io.ReadAll(io.LimitReader(part, maxPartBytes))
		part.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
		}
		if len(data) == 0 {
			continue
		}

		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			logger.Warn("Capture", "Skipping undecodable part: %v", err)
			continue
		}

		s.seq++
		return types.NewFrame(img, s.seq, s.now()), nil
	}
}

// Close releases the stream connection. Safe to call more than once and
// from another goroutine while Next is blocked.
func (s *MJPEGSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.body != nil {
			err = s.body.Close()
		}
	})
	return err
}
