// Package stream serves the avatar to an external renderer: frame snapshots
// and bus events go out over a WebSocket, host commands come back in.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/fulopkrisztian-prog/Mia/internal/bus"
	"github.com/fulopkrisztian-prog/Mia/internal/controller"
	"github.com/fulopkrisztian-prog/Mia/internal/logging"
	"github.com/fulopkrisztian-prog/Mia/internal/metrics"
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
)

const (
	sendBuffer   = 64
	maxCommandKB = 64
)

// Controller is the part of the avatar controller the stream drives.
type Controller interface {
	SetMood(m mood.Mood) bool
	SetBusy(busy bool)
	SetPointer(x, y float32)
	RequestDispatched()
	ResponseArrived(text string) mood.Mood
	ReloadAsset(cat mood.Category) error
	Snapshot() controller.Snapshot
}

type Options struct {
	Addr           string
	BroadcastHz    float64
	WriteTimeout   time.Duration
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// Server fans frames out to every connected client. Slow clients are
// dropped rather than allowed to stall the frame loop.
type Server struct {
	ctrl     Controller
	opts     Options
	log      zerolog.Logger
	upgrader websocket.Upgrader
	limiter  *rate.Limiter

	mu      sync.RWMutex
	clients map[*client]struct{}

	httpServer *http.Server
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func New(ctrl Controller, opts Options) *Server {
	if opts.BroadcastHz <= 0 {
		opts.BroadcastHz = 30
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	s := &Server{
		ctrl:    ctrl,
		opts:    opts,
		log:     opts.Logger.With().Str("component", "stream").Logger(),
		limiter: rate.NewLimiter(rate.Limit(opts.BroadcastHz), 1),
		clients: make(map[*client]struct{}),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// Handler routes /ws, /healthz, /api/snapshot and /metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start serves until ctx is done, then shuts the server down and
// disconnects every client.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info().Str("addr", s.opts.Addr).Msg("Starting renderer stream")

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("stream server: %w", err)
	case <-ctx.Done():
		s.CloseClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Broadcast sends fs to every client, throttled to the configured rate. It
// reports whether the frame was sent.
func (s *Server) Broadcast(fs controller.FrameState) bool {
	if !s.limiter.Allow() {
		return false
	}
	if s.Clients() == 0 {
		return true
	}
	s.send(Message{Type: MessageFrame, Frame: &fs})
	return true
}

// PublishEvent forwards a bus event to every client. It has the bus
// handler signature so it can be subscribed directly.
func (s *Server) PublishEvent(e bus.Event) {
	s.send(Message{Type: MessageEvent, Event: &e})
}

// PublishLog forwards a log entry to every client. It has the logging
// callback signature. Entries logged by the stream itself are not forwarded.
func (s *Server) PublishLog(e logging.LogEntry) {
	if e.Component == "stream" || s.Clients() == 0 {
		return
	}
	s.send(Message{Type: MessageLog, Log: &e})
}

func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// CloseClients disconnects everyone.
func (s *Server) CloseClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		s.dropLocked(c)
	}
}

func (s *Server) send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Str("type", msg.Type).Msg("Failed to encode message")
		return
	}

	// Log only after unlocking: log entries may be forwarded back into send.
	s.mu.Lock()
	dropped := 0
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.dropLocked(c)
			dropped++
		}
	}
	s.mu.Unlock()

	if dropped > 0 {
		s.log.Warn().Int("clients", dropped).Msg("Dropped slow renderer clients")
	}
}

func (s *Server) add(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	metrics.StreamClients.Set(float64(n))
}

func (s *Server) drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(c)
}

func (s *Server) dropLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
	metrics.StreamClients.Set(float64(len(s.clients)))
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxCommandKB * 1024)

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	snap := s.ctrl.Snapshot()
	if data, err := json.Marshal(Message{Type: MessageSnapshot, Snapshot: &snap}); err == nil {
		c.send <- data
	}
	s.add(c)
	s.log.Info().Str("remote", r.RemoteAddr).Msg("Renderer connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writePump(c)
	}()

	s.readPump(c)
	s.drop(c)
	<-done
	s.log.Info().Str("remote", r.RemoteAddr).Msg("Renderer disconnected")
}

func (s *Server) writePump(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.log.Debug().Err(err).Msg("Write to renderer failed")
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) readPump(c *client) {
	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("Renderer read failed")
			}
			return
		}

		ack := s.handle(cmd)
		status := "ok"
		if !ack.OK {
			status = "error"
		}
		metrics.StreamCommands.WithLabelValues(cmd.Type, status).Inc()

		data, err := json.Marshal(Message{Type: MessageAck, Ack: &ack})
		if err != nil {
			continue
		}
		if !s.reply(c, data) {
			return
		}
	}
}

// reply queues data for c unless c was already dropped.
func (s *Server) reply(c *client, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; !ok {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		s.dropLocked(c)
		return false
	}
}

func (s *Server) handle(cmd Command) Ack {
	ack := Ack{ID: cmd.ID, OK: true}
	fail := func(err error) Ack {
		ack.OK = false
		ack.Error = err.Error()
		return ack
	}

	switch cmd.Type {
	case CommandMood:
		m, err := mood.Parse(cmd.Mood)
		if err != nil {
			return fail(err)
		}
		s.ctrl.SetMood(m)
		ack.Mood = m
	case CommandBusy:
		s.ctrl.SetBusy(cmd.Busy)
	case CommandPointer:
		s.ctrl.SetPointer(cmd.X, cmd.Y)
	case CommandRequest:
		s.ctrl.RequestDispatched()
		ack.Mood = mood.Thinking
	case CommandResponse:
		ack.Mood = s.ctrl.ResponseArrived(cmd.Text)
	case CommandReload:
		cat, err := mood.ParseCategory(cmd.Category)
		if err != nil {
			return fail(err)
		}
		if err := s.ctrl.ReloadAsset(cat); err != nil {
			return fail(err)
		}
	case CommandSnapshot:
		ack.Mood = s.ctrl.Snapshot().Mood
	default:
		return fail(fmt.Errorf("unknown command type %q", cmd.Type))
	}
	return ack
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"mounted": snap.Mounted,
		"mood":    snap.Mood,
		"model":   snap.Model,
		"clients": s.Clients(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.ctrl.Snapshot())
}
