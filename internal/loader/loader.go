// Package loader keeps exactly one avatar model attached for the current
// mood category. Loads run off the controller's thread; their results rejoin
// it through the guard and are dropped if the wanted category moved on.
package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fulopkrisztian-prog/Mia/internal/bus"
	"github.com/fulopkrisztian-prog/Mia/internal/metrics"
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/rig"
	"github.com/fulopkrisztian-prog/Mia/internal/sched"
)

var (
	ErrClosed       = errors.New("loader closed")
	ErrNotActive    = errors.New("category is not active")
	ErrLoadInFlight = errors.New("load already in flight")
)

// Stats counts load outcomes since the loader was created.
type Stats struct {
	Started   int `json:"started"`
	Attached  int `json:"attached"`
	Discarded int `json:"discarded"`
	Failed    int `json:"failed"`
}

type Options struct {
	Source Source
	Guard  sched.Guard
	Logger zerolog.Logger

	// OnActivate runs inside the guard right after a model attaches and
	// before the previous one is disposed.
	OnActivate func(h *rig.Humanoid, cat mood.Category)

	Publisher bus.Publisher
}

// Loader is single-flight: at most one load runs at a time. Every method
// except Wait must be called inside the guard.
type Loader struct {
	src        Source
	guard      sched.Guard
	log        zerolog.Logger
	onActivate func(*rig.Humanoid, mood.Category)
	pub        bus.Publisher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	desired   mood.Category
	loading   mood.Category
	inFlight  bool
	ticket    string
	active    *rig.Humanoid
	activeCat mood.Category
	closed    bool
	stats     Stats
}

func New(opts Options) *Loader {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		src:        opts.Source,
		guard:      opts.Guard,
		log:        opts.Logger,
		onActivate: opts.OnActivate,
		pub:        opts.Publisher,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// EnsureLoaded records cat as the wanted category and starts a load unless
// one is already running or cat is already attached.
func (l *Loader) EnsureLoaded(cat mood.Category) {
	if l.closed {
		return
	}
	l.desired = cat
	if l.inFlight {
		return
	}
	if l.active != nil && l.activeCat == cat {
		return
	}
	l.start(cat)
}

// Reload re-reads the attached category, e.g. after its asset changed on disk.
func (l *Loader) Reload(cat mood.Category) error {
	switch {
	case l.closed:
		return ErrClosed
	case l.inFlight:
		return ErrLoadInFlight
	case l.active == nil || l.activeCat != cat:
		return ErrNotActive
	}
	l.start(cat)
	return nil
}

func (l *Loader) start(cat mood.Category) {
	ticket := uuid.NewString()
	l.inFlight = true
	l.loading = cat
	l.ticket = ticket
	l.stats.Started++
	metrics.ModelLoads.WithLabelValues(string(cat), "started").Inc()

	l.log.Debug().Str("category", string(cat)).Str("ticket", ticket).Msg("Loading model")

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		begin := time.Now()
		h, err := l.src.Load(l.ctx, cat)
		elapsed := time.Since(begin)
		l.guard.Do(func() { l.complete(ticket, cat, h, err, elapsed) })
	}()
}

func (l *Loader) complete(ticket string, cat mood.Category, h *rig.Humanoid, err error, elapsed time.Duration) {
	if ticket != l.ticket || l.closed {
		if h != nil {
			h.Dispose()
		}
		return
	}
	l.inFlight = false
	metrics.ModelLoadSeconds.WithLabelValues(string(cat)).Observe(elapsed.Seconds())

	if err != nil {
		l.stats.Failed++
		metrics.ModelLoads.WithLabelValues(string(cat), "failed").Inc()
		l.log.Error().Err(err).Str("category", string(cat)).Msg("Model load failed, keeping previous model")
		l.publish(bus.EventTypeModelLoadFailed, cat, nil, map[string]any{"error": err.Error()})

		// Do not spin on a broken asset; only chase a different wish.
		if l.desired != cat && !l.isActive(l.desired) {
			l.start(l.desired)
		}
		return
	}

	if cat != l.desired {
		h.Dispose()
		l.stats.Discarded++
		metrics.ModelLoads.WithLabelValues(string(cat), "discarded").Inc()
		l.log.Debug().
			Str("category", string(cat)).
			Str("desired", string(l.desired)).
			Msg("Discarding stale model")
		l.publish(bus.EventTypeModelDiscarded, cat, h, nil)

		if !l.isActive(l.desired) {
			l.start(l.desired)
		}
		return
	}

	prev, prevCat := l.active, l.activeCat
	l.active = h
	l.activeCat = cat
	l.stats.Attached++
	metrics.ModelLoads.WithLabelValues(string(cat), "attached").Inc()

	if l.onActivate != nil {
		l.onActivate(h, cat)
	}
	if prev != nil && prev != h {
		prev.Dispose()
		l.publish(bus.EventTypeModelDisposed, prevCat, prev, nil)
	}

	l.log.Info().
		Str("category", string(cat)).
		Str("model", h.Name).
		Str("format", string(h.Format)).
		Dur("elapsed", elapsed).
		Msg("Model attached")
	l.publish(bus.EventTypeModelLoaded, cat, h, map[string]any{"elapsed_ms": elapsed.Milliseconds()})
}

func (l *Loader) isActive(cat mood.Category) bool {
	return l.active != nil && l.activeCat == cat
}

// Active returns the attached model, if any.
func (l *Loader) Active() (*rig.Humanoid, mood.Category, bool) {
	if l.active == nil {
		return nil, "", false
	}
	return l.active, l.activeCat, true
}

// Loading returns the category of the in-flight load, if any.
func (l *Loader) Loading() (mood.Category, bool) {
	return l.loading, l.inFlight
}

func (l *Loader) Desired() mood.Category {
	return l.desired
}

func (l *Loader) Stats() Stats {
	return l.stats
}

// Close cancels any in-flight load and disposes the attached model. A load
// that finishes afterwards is disposed on arrival.
func (l *Loader) Close() {
	if l.closed {
		return
	}
	l.closed = true
	l.cancel()
	if l.active != nil {
		l.active.Dispose()
		l.publish(bus.EventTypeModelDisposed, l.activeCat, l.active, nil)
		l.active = nil
	}
}

// Wait blocks until every load goroutine has returned. It must be called
// outside the guard.
func (l *Loader) Wait() {
	l.wg.Wait()
}

func (l *Loader) publish(t bus.EventType, cat mood.Category, h *rig.Humanoid, extra map[string]any) {
	if l.pub == nil {
		return
	}
	data := map[string]any{"category": string(cat)}
	if h != nil {
		data["model_id"] = h.ID
		data["model"] = h.Name
	}
	for k, v := range extra {
		data[k] = v
	}
	l.pub.Publish(bus.Event{Type: t, Data: data})
}
