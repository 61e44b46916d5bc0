package webmonitor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dj-oyu/people-count-monitor/internal/logger"
	"github.com/dj-oyu/people-count-monitor/internal/metrics"
)

// hub fans values out to subscribed clients. Slow clients miss values
// instead of blocking the publisher.
type hub[T any] struct {
	name    string
	mu      sync.Mutex
	clients map[int]chan T
	nextID  int
	closed  bool
}

func newHub[T any](name string) *hub[T] {
	return &hub[T]{name: name, clients: make(map[int]chan T)}
}

func (h *hub[T]) subscribe() (int, <-chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan T, 2) // Buffer 2 values to avoid blocking
	if h.closed {
		close(ch)
		return id, ch
	}
	h.clients[id] = ch

	logger.Debug(h.name, "Client #%d subscribed (total clients: %d)", id, len(h.clients))
	return id, ch
}

func (h *hub[T]) unsubscribe(id int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.clients[id]
	if !ok {
		return false
	}
	close(ch)
	delete(h.clients, id)
	logger.Debug(h.name, "Client #%d unsubscribed (remaining clients: %d)", id, len(h.clients))
	return true
}

func (h *hub[T]) broadcast(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.clients {
		select {
		case ch <- v:
		default:
			// Client too slow, skip this value for this client
		}
	}
}

func (h *hub[T]) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// close disconnects every client; later subscribers get a closed channel.
func (h *hub[T]) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.clients {
		close(ch)
		delete(h.clients, id)
	}
}

// FrameBroadcaster fans annotated JPEG frames out to MJPEG clients. It
// implements display.Publisher.
type FrameBroadcaster struct {
	hub     *hub[[]byte]
	metrics *metrics.Metrics
}

// NewFrameBroadcaster creates a frame broadcaster. m may be nil.
func NewFrameBroadcaster(m *metrics.Metrics) *FrameBroadcaster {
	return &FrameBroadcaster{
		hub:     newHub[[]byte]("FrameBroadcaster"),
		metrics: m,
	}
}

// Subscribe adds a new client and returns a channel for receiving frames.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan []byte) {
	id, ch := fb.hub.subscribe()
	if fb.metrics != nil {
		fb.metrics.TotalClients.Add(1)
		fb.metrics.ActiveClients.Store(uint64(fb.hub.count()))
	}
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	if fb.hub.unsubscribe(id) && fb.hub.count() == 0 {
		logger.Info("FrameBroadcaster", "No clients remaining - frame encoding will be skipped")
	}
	if fb.metrics != nil {
		fb.metrics.ActiveClients.Store(uint64(fb.hub.count()))
	}
}

// Publish sends an encoded frame to every client.
func (fb *FrameBroadcaster) Publish(jpegData []byte) {
	fb.hub.broadcast(jpegData)
}

// ClientCount returns the number of connected stream clients.
func (fb *FrameBroadcaster) ClientCount() int {
	return fb.hub.count()
}

// Close disconnects all stream clients.
func (fb *FrameBroadcaster) Close() {
	fb.hub.close()
	if fb.metrics != nil {
		fb.metrics.ActiveClients.Store(0)
	}
}

// SerializedEvent holds pre-serialized data in both formats.
// This avoids redundant serialization when broadcasting to multiple clients.
type SerializedEvent struct {
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // Pre-serialized Protobuf Struct (base64 encoded for SSE)
}

// StatusBroadcaster periodically publishes the status payload to SSE
// clients.
type StatusBroadcaster struct {
	hub      *hub[*SerializedEvent]
	provider func() StatusPayload
	interval time.Duration
}

// NewStatusBroadcaster creates a broadcaster for status events.
func NewStatusBroadcaster(provider func() StatusPayload, interval time.Duration) *StatusBroadcaster {
	return &StatusBroadcaster{
		hub:      newHub[*SerializedEvent]("StatusBroadcaster"),
		provider: provider,
		interval: interval,
	}
}

// Subscribe adds a new client and returns a channel for receiving status events.
func (sb *StatusBroadcaster) Subscribe() (int, <-chan *SerializedEvent) {
	return sb.hub.subscribe()
}

// Unsubscribe removes a client.
func (sb *StatusBroadcaster) Unsubscribe(id int) {
	sb.hub.unsubscribe(id)
}

// Run publishes a status event every interval until ctx is done, then
// disconnects all clients.
func (sb *StatusBroadcaster) Run(ctx context.Context) {
	logger.Info("StatusBroadcaster", "Starting status event broadcaster (interval=%v)...", sb.interval)
	ticker := time.NewTicker(sb.interval)
	defer ticker.Stop()
	defer sb.hub.close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sb.hub.count() == 0 {
				continue
			}
			event, err := sb.Serialize()
			if err != nil {
				logger.Error("StatusBroadcaster", "%v", err)
				continue
			}
			sb.hub.broadcast(event)
		}
	}
}

// Close disconnects all clients.
func (sb *StatusBroadcaster) Close() {
	sb.hub.close()
}

// Serialize renders the current status in both wire formats.
func (sb *StatusBroadcaster) Serialize() (*SerializedEvent, error) {
	return serializeStatus(sb.provider())
}

func serializeStatus(payload StatusPayload) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("JSON marshal error: %w", err)
	}

	// structpb only accepts JSON-shaped values
	var fields map[string]any
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return nil, fmt.Errorf("JSON decode error: %w", err)
	}
	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("protobuf struct error: %w", err)
	}
	pbData, err := proto.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("protobuf marshal error: %w", err)
	}

	return &SerializedEvent{
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}
