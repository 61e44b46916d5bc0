package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"github.com/dj-oyu/people-count-monitor/internal/metrics"
)

type fakeNotifier struct {
	name  string
	err   error
	delay time.Duration

	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Send(ctx context.Context, msg string) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	f.msgs = append(f.msgs, msg)
	f.mu.Unlock()
	return f.err
}

func TestFanoutDeliversToAll(t *testing.T) {
	m := metrics.New()
	a := &fakeNotifier{name: "a"}
	b := &fakeNotifier{name: "b"}
	f := NewFanout(time.Second, m, a, b)

	require.NoError(t, f.Send(context.Background(), "hello"))
	assert.Equal(t, []string{"hello"}, a.msgs)
	assert.Equal(t, []string{"hello"}, b.msgs)
	assert.Equal(t, uint64(2), m.NotifySent.Load())
}

func TestFanoutIsolatesFailures(t *testing.T) {
	m := metrics.New()
	bad := &fakeNotifier{name: "Slack", err: errors.New("invalid_auth")}
	good := &fakeNotifier{name: "Email"}
	f := NewFanout(time.Second, m, bad, good)

	err := f.Send(context.Background(), "alert")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Slack")
	assert.Equal(t, []string{"alert"}, good.msgs, "other channels still delivered")
	assert.Equal(t, uint64(1), m.NotifyErrors.Load())
	assert.Equal(t, uint64(1), m.NotifySent.Load())
}

func TestFanoutTimeout(t *testing.T) {
	slow := &fakeNotifier{name: "slow", delay: time.Minute}
	f := NewFanout(20*time.Millisecond, nil, slow)

	start := time.Now()
	err := f.Send(context.Background(), "alert")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestFanoutEmpty(t *testing.T) {
	assert.NoError(t, NewFanout(time.Second, nil).Send(context.Background(), "x"))
}

func TestSlackPostsToChannel(t *testing.T) {
	var got struct {
		channel, text string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat.postMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		got.channel = r.FormValue("channel")
		got.text = r.FormValue("text")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"channel":"C123","ts":"1700000000.000100"}`))
	}))
	defer srv.Close()

	s := NewSlack("xoxb-test", "#team-alerts", srv.URL+"/")
	require.NoError(t, s.Send(context.Background(), "SECURITY ALERT"))
	assert.Equal(t, "#team-alerts", got.channel)
	assert.Equal(t, "SECURITY ALERT", got.text)
}

func TestSlackAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	s := NewSlack("xoxb-test", "#missing", srv.URL+"/")
	err := s.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

type fakeMailer struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeMailer) DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error {
	f.sent = append(f.sent, msgs...)
	return f.err
}

func TestEmailBuildsAlertMessage(t *testing.T) {
	mailer := &fakeMailer{}
	e := &Email{from: "monitor@example.com", to: "security@example.com", client: mailer}

	require.NoError(t, e.Send(context.Background(), "Only 1 person(s) detected"))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, []string{EmailSubject}, mailer.sent[0].GetGenHeader(mail.HeaderSubject))

	rcpts, err := mailer.sent[0].GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"<security@example.com>"}, rcpts)
}

func TestEmailRejectsBadRecipient(t *testing.T) {
	e := &Email{from: "monitor@example.com", to: "not an address", client: &fakeMailer{}}
	assert.Error(t, e.Send(context.Background(), "x"))
}

func TestEmailDeliveryFailure(t *testing.T) {
	e := &Email{from: "a@example.com", to: "b@example.com", client: &fakeMailer{err: errors.New("535 auth failed")}}
	err := e.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "535")
}

type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakePublisher struct {
	topic   string
	qos     byte
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.topic = topic
	p.qos = qos
	p.payload = payload.([]byte)
	return &doneToken{err: p.err}
}

func (p *fakePublisher) Disconnect(uint) {}

func TestMQTTPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQTT(pub, "people-monitor/alerts")
	n.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, n.Send(context.Background(), "alert!"))
	assert.Equal(t, "people-monitor/alerts", pub.topic)
	assert.Equal(t, byte(1), pub.qos)

	var got AlertPayload
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, "alert!", got.Message)
	assert.NotEmpty(t, got.ID)
	assert.True(t, got.Timestamp.Equal(n.now()))
}

func TestMQTTPublishError(t *testing.T) {
	n := NewMQTT(&fakePublisher{err: errors.New("not connected")}, "t")
	assert.Error(t, n.Send(context.Background(), "x"))
}
