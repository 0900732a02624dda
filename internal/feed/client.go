// Package feed follows the chat backend's activity stream over SSE and turns
// its events into controller calls, so the avatar reacts to conversations it
// does not carry itself.
package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fulopkrisztian-prog/Mia/internal/bus"
	"github.com/fulopkrisztian-prog/Mia/internal/metrics"
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
)

// DefaultPath is the activity endpoint relative to the backend URL.
const DefaultPath = "/api/v1/chat/events"

// Event names understood on the stream.
const (
	EventRequest  = "request"
	EventResponse = "response"
	EventBusy     = "busy"
	EventMood     = "mood"
	EventPointer  = "pointer"
)

// Controller is what the feed drives.
type Controller interface {
	SetMood(m mood.Mood) bool
	SetBusy(busy bool)
	SetPointer(x, y float32)
	RequestDispatched()
	ResponseArrived(text string) mood.Mood
}

type Options struct {
	Path              string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	MaxEventBytes     int
	HTTPClient        *http.Client
	Publisher         bus.Publisher
	Logger            zerolog.Logger
}

type responseEvent struct {
	Text string `json:"text"`
}

type busyEvent struct {
	Busy bool `json:"busy"`
}

type moodEvent struct {
	Mood string `json:"mood"`
}

type pointerEvent struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Client keeps one SSE connection open, reconnecting with exponential
// backoff when it drops.
type Client struct {
	url    string
	ctrl   Controller
	opts   Options
	client *http.Client
	logger zerolog.Logger

	mu        sync.RWMutex
	connected bool
	attempts  int
}

func New(baseURL string, ctrl Controller, opts Options) *Client {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	if opts.MaxReconnectDelay < opts.ReconnectDelay {
		opts.MaxReconnectDelay = 60 * time.Second
		if opts.MaxReconnectDelay < opts.ReconnectDelay {
			opts.MaxReconnectDelay = opts.ReconnectDelay
		}
	}
	if opts.MaxEventBytes <= 0 {
		opts.MaxEventBytes = DefaultMaxEventBytes
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 0, // No timeout for SSE
		}
	}
	return &Client{
		url:    strings.TrimSuffix(baseURL, "/") + opts.Path,
		ctrl:   ctrl,
		opts:   opts,
		client: httpClient,
		logger: opts.Logger.With().Str("component", "feed").Logger(),
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Attempts counts connection attempts so far.
func (c *Client) Attempts() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.attempts
}

// Run maintains the connection until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.opts.ReconnectDelay
	failures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := c.stream(ctx)
		c.setConnected(false)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			// Clean end of stream; reconnect right away with a fresh backoff.
			backoff = c.opts.ReconnectDelay
			failures = 0
			c.publish(bus.EventTypeDisconnected, nil)
			continue
		}

		failures++
		c.publish(bus.EventTypeError, map[string]any{"error": err.Error(), "failures": failures})
		if failures >= 3 {
			if failures == 3 {
				c.logger.Warn().
					Err(err).
					Int("failures", failures).
					Msg("Activity feed not available, will retry less frequently")
			} else {
				c.logger.Debug().Int("failures", failures).Msg("Activity feed still unavailable")
			}
			backoff = c.opts.MaxReconnectDelay
		} else {
			c.logger.Warn().Err(err).Msg("Activity feed connection failed, reconnecting...")
		}

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}

		if backoff < c.opts.MaxReconnectDelay {
			backoff *= 2
			if backoff > c.opts.MaxReconnectDelay {
				backoff = c.opts.MaxReconnectDelay
			}
		}
	}
}

func (c *Client) stream(ctx context.Context) error {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		return fmt.Errorf("unexpected content-type: %s (expected text/event-stream)", ct)
	}

	c.setConnected(true)
	c.logger.Info().Str("url", c.url).Msg("Connected to activity feed")
	c.publish(bus.EventTypeConnected, map[string]any{"url": c.url})

	lines := &lineSplitter{max: c.opts.MaxEventBytes}
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), c.opts.MaxEventBytes+1)
	scanner.Split(lines.split)

	var eventType string
	var dataLines []string
	dropped := 0
	oversize := false

	for scanner.Scan() {
		if lines.dropped != dropped {
			// A line of the current event was too long; skip the whole event.
			dropped = lines.dropped
			oversize = true
			dataLines = nil
		}
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if !oversize {
				dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			}
		case line == "" && oversize:
			metrics.FeedEvents.WithLabelValues("oversize").Inc()
			c.logger.Warn().
				Str("type", eventType).
				Int("limit", c.opts.MaxEventBytes).
				Msg("Skipping oversize feed event")
			eventType = ""
			oversize = false
		case line == "" && len(dataLines) > 0:
			c.handleEvent(eventType, strings.Join(dataLines, "\n"))
			eventType = ""
			dataLines = nil
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}

func (c *Client) handleEvent(eventType, data string) {
	metrics.FeedEvents.WithLabelValues(eventType).Inc()

	switch eventType {
	case EventRequest:
		c.ctrl.RequestDispatched()

	case EventResponse:
		var ev responseEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to parse response event")
			return
		}
		m := c.ctrl.ResponseArrived(ev.Text)
		c.logger.Debug().Str("mood", string(m)).Int("chars", len(ev.Text)).Msg("Response arrived")

	case EventBusy:
		var ev busyEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to parse busy event")
			return
		}
		c.ctrl.SetBusy(ev.Busy)

	case EventMood:
		var ev moodEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to parse mood event")
			return
		}
		m, err := mood.Parse(ev.Mood)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Ignoring mood event")
			return
		}
		c.ctrl.SetMood(m)

	case EventPointer:
		var ev pointerEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to parse pointer event")
			return
		}
		c.ctrl.SetPointer(ev.X, ev.Y)

	default:
		c.logger.Debug().Str("type", eventType).Msg("Unknown event type")
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *Client) publish(t bus.EventType, data map[string]any) {
	if c.opts.Publisher == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["source"] = "feed"
	c.opts.Publisher.Publish(bus.Event{Type: t, Data: data})
}
