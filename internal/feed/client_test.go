package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulopkrisztian-prog/Mia/internal/bus"
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
)

type fakeController struct {
	mu       sync.Mutex
	calls    []string
	busy     bool
	mood     mood.Mood
	x, y     float32
	classify *mood.Classifier
}

func newFakeController() *fakeController {
	return &fakeController{mood: mood.Idle, classify: mood.NewClassifier(nil)}
}

func (f *fakeController) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeController) SetMood(m mood.Mood) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("mood:" + string(m))
	changed := f.mood != m
	f.mood = m
	return changed
}

func (f *fakeController) SetBusy(busy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record(fmt.Sprintf("busy:%t", busy))
	f.busy = busy
}

func (f *fakeController) SetPointer(x, y float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("pointer")
	f.x, f.y = x, y
}

func (f *fakeController) RequestDispatched() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("request")
	f.busy = true
	f.mood = mood.Thinking
}

func (f *fakeController) ResponseArrived(text string) mood.Mood {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	f.mood = f.classify.ForResponse(text)
	f.record("response:" + string(f.mood))
	return f.mood
}

func (f *fakeController) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type recorder struct {
	mu     sync.Mutex
	events []bus.EventType
}

func (r *recorder) Publish(e bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.Type)
}

func (r *recorder) has(t bus.EventType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == t {
			return true
		}
	}
	return false
}

// sseHandler writes body as an event stream and holds the connection open
// until the client goes away.
func sseHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, body)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	}
}

func runClient(t *testing.T, c *Client) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	return cancel, done
}

func TestEventsDriveController(t *testing.T) {
	body := ": keepalive\n\n" +
		"event: request\ndata: {}\n\n" +
		"event: response\ndata: {\"text\":\"A fatal error occurred\"}\n\n" +
		"event: busy\ndata: {\"busy\":true}\n\n" +
		"event: mood\ndata: {\"mood\":\"Speaking\"}\n\n" +
		"event: mood\ndata: {\"mood\":\"sleepy\"}\n\n" +
		"event: pointer\ndata: {\"x\":0.25,\"y\":-0.5}\n\n" +
		"event: unknown\ndata: {}\n\n" +
		"event: response\ndata: not json\n\n"

	mux := http.NewServeMux()
	mux.HandleFunc(DefaultPath, sseHandler(body))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctrl := newFakeController()
	rec := &recorder{}
	c := New(srv.URL+"/", ctrl, Options{Publisher: rec, Logger: zerolog.Nop()})

	cancel, done := runClient(t, c)
	require.Eventually(t, func() bool { return len(ctrl.snapshot()) == 5 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, c.IsConnected())
	assert.True(t, rec.has(bus.EventTypeConnected))

	assert.Equal(t, []string{
		"request",
		"response:scared",
		"busy:true",
		"mood:speaking",
		"pointer",
	}, ctrl.snapshot())

	ctrl.mu.Lock()
	assert.Equal(t, float32(0.25), ctrl.x)
	assert.Equal(t, float32(-0.5), ctrl.y)
	ctrl.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, c.IsConnected())
}

func TestLongResponseIsDelivered(t *testing.T) {
	text := strings.Repeat("all good here ", 5*1024) + "danger"
	require.Greater(t, len(text), 64*1024)
	body := "event: request\ndata: {}\n\n" +
		"event: response\ndata: {\"text\":\"" + text + "\"}\n\n"

	srv := httptest.NewServer(sseHandler(body))
	defer srv.Close()

	ctrl := newFakeController()
	c := New(srv.URL, ctrl, Options{Path: "/", Logger: zerolog.Nop()})
	cancel, done := runClient(t, c)
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return len(ctrl.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"request", "response:scared"}, ctrl.snapshot())

	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	assert.False(t, ctrl.busy)
}

func TestOversizeEventIsSkipped(t *testing.T) {
	huge := strings.Repeat("x", 10*1024)
	body := "event: request\ndata: {}\n\n" +
		"event: response\ndata: {\"text\":\"" + huge + "\"}\n\n" +
		"event: response\ndata: {\"text\":\"short answer\"}\n\n"

	srv := httptest.NewServer(sseHandler(body))
	defer srv.Close()

	ctrl := newFakeController()
	c := New(srv.URL, ctrl, Options{Path: "/", MaxEventBytes: 1024, Logger: zerolog.Nop()})
	cancel, done := runClient(t, c)
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return len(ctrl.snapshot()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"request", "response:speaking"}, ctrl.snapshot())
	assert.True(t, c.IsConnected(), "stream survives the skipped event")
	assert.Equal(t, 1, c.Attempts())
}

func TestLineSplitter(t *testing.T) {
	s := &lineSplitter{max: 4}

	adv, tok, err := s.split([]byte("abc\r\nrest"), false)
	require.NoError(t, err)
	assert.Equal(t, 5, adv)
	assert.Equal(t, "abc", string(tok))

	adv, tok, _ = s.split([]byte("toolong"), false)
	assert.Equal(t, 7, adv)
	assert.Nil(t, tok)

	adv, tok, _ = s.split([]byte("tail\nok\n"), false)
	assert.Equal(t, 5, adv)
	assert.Nil(t, tok)
	assert.Equal(t, 1, s.dropped)

	adv, tok, _ = s.split([]byte("ok\n"), false)
	assert.Equal(t, 3, adv)
	assert.Equal(t, "ok", string(tok))

	adv, tok, _ = s.split([]byte("ab"), false)
	assert.Zero(t, adv)
	assert.Nil(t, tok)
}

func TestReconnectsAfterFailure(t *testing.T) {
	var hits atomic.Int32
	stream := sseHandler("event: request\ndata: {}\n\n")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		stream(w, r)
	}))
	defer srv.Close()

	ctrl := newFakeController()
	rec := &recorder{}
	c := New(srv.URL, ctrl, Options{
		ReconnectDelay:    5 * time.Millisecond,
		MaxReconnectDelay: 20 * time.Millisecond,
		Publisher:         rec,
		Logger:            zerolog.Nop(),
	})

	cancel, done := runClient(t, c)
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return len(ctrl.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, c.Attempts())
	assert.True(t, rec.has(bus.EventTypeError))
}

func TestRejectsNonEventStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := New(srv.URL, newFakeController(), Options{Logger: zerolog.Nop()})
	err := c.stream(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected content-type")
	assert.False(t, c.IsConnected())
}

func TestOptionsDefaults(t *testing.T) {
	c := New("http://backend:8080/", newFakeController(), Options{})
	assert.Equal(t, "http://backend:8080"+DefaultPath, c.url)
	assert.Equal(t, 3*time.Second, c.opts.ReconnectDelay)
	assert.Equal(t, 60*time.Second, c.opts.MaxReconnectDelay)
	assert.Equal(t, DefaultMaxEventBytes, c.opts.MaxEventBytes)
}
