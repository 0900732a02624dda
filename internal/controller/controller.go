// Package controller owns every piece of the avatar: the mood cell, the idle
// randomizer, the model loader, the animator with its blink cycle and the
// caption engine. All of them run on one logical thread: public methods,
// timer callbacks and load completions are serialized by a single guard.
package controller

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/fulopkrisztian-prog/Mia/internal/animator"
	"github.com/fulopkrisztian-prog/Mia/internal/bus"
	"github.com/fulopkrisztian-prog/Mia/internal/caption"
	"github.com/fulopkrisztian-prog/Mia/internal/idle"
	"github.com/fulopkrisztian-prog/Mia/internal/loader"
	"github.com/fulopkrisztian-prog/Mia/internal/metrics"
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/rig"
	"github.com/fulopkrisztian-prog/Mia/internal/sched"
)

// RevertGroup holds the pending return to idle after a chat response.
const RevertGroup = "chat.revert"

const maxFrameDelta = 100 * time.Millisecond

var ErrUnmounted = errors.New("controller unmounted")

type Options struct {
	Clock  sched.Clock
	Source loader.Source
	Rand   *rand.Rand

	Pack      *caption.Pack
	Humanizer caption.Humanizer
	Timing    caption.Timing
	Motion    animator.Params
	Idle      idle.Config

	AlarmTerms  []string
	RevertAfter time.Duration
	HistorySize int

	Publisher bus.Publisher
	Logger    zerolog.Logger
}

// FrameState is what a renderer needs to draw one frame.
type FrameState struct {
	Seq      uint64        `json:"seq"`
	At       time.Time     `json:"at"`
	Elapsed  float64       `json:"elapsed"`
	Mood     mood.Mood     `json:"mood"`
	Busy     bool          `json:"busy"`
	Category mood.Category `json:"category,omitempty"`
	Model    *rig.Pose     `json:"model,omitempty"`
	Caption  caption.State `json:"caption"`
}

// Snapshot summarizes the controller for status pages and tests.
type Snapshot struct {
	Mounted    bool              `json:"mounted"`
	Mood       mood.Mood         `json:"mood"`
	Generation uint64            `json:"generation"`
	Busy       bool              `json:"busy"`
	Active     mood.Category     `json:"active,omitempty"`
	Model      string            `json:"model,omitempty"`
	Loading    mood.Category     `json:"loading,omitempty"`
	Desired    mood.Category     `json:"desired,omitempty"`
	Loads      loader.Stats      `json:"loads"`
	Caption    caption.State     `json:"caption"`
	Captions   int               `json:"captions"`
	Blinks     int               `json:"blinks"`
	Pulses     int               `json:"pulses"`
	Timers     int               `json:"timers"`
	Frames     uint64            `json:"frames"`
	History    []mood.Transition `json:"history,omitempty"`
}

type Controller struct {
	guard *sched.Mutex
	reg   *sched.Registry
	clock sched.Clock
	log   zerolog.Logger
	pub   bus.Publisher

	state    *mood.State
	classify *mood.Classifier
	idle     *idle.Randomizer
	loader   *loader.Loader
	anim     *animator.Animator
	blink    *animator.Blink
	captions *caption.Engine

	revertAfter time.Duration
	pointerX    float32
	pointerY    float32
	busy        bool
	mounted     bool
	unmounted   bool
	frames      uint64
}

// New wires the components together. Nothing runs until Mount.
func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = sched.System()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Source == nil {
		opts.Source = loader.PlaceholderSource{}
	}
	if opts.Timing.Default == 0 && opts.Timing.HideBase == 0 {
		opts.Timing = caption.DefaultTiming()
	}
	if opts.Humanizer == (caption.Humanizer{}) {
		opts.Humanizer = caption.DefaultHumanizer()
	}
	if opts.RevertAfter <= 0 {
		opts.RevertAfter = 2000 * time.Millisecond
	}

	c := &Controller{
		guard:       &sched.Mutex{},
		clock:       opts.Clock,
		log:         opts.Logger.With().Str("component", "controller").Logger(),
		pub:         opts.Publisher,
		classify:    mood.NewClassifier(opts.AlarmTerms),
		anim:        animator.New(opts.Motion),
		revertAfter: opts.RevertAfter,
	}
	c.reg = sched.NewRegistry(opts.Clock, c.guard)
	c.state = mood.NewState(opts.HistorySize, opts.Clock.Now)
	c.idle = idle.New(opts.Idle, c.state, c.reg, opts.Rand, componentLogger(opts.Logger, "idle"))
	c.blink = animator.NewBlink(c.reg, opts.Rand, opts.Motion)
	c.captions = caption.NewEngine(c.reg, opts.Rand, caption.Options{
		Pack:      opts.Pack,
		Humanizer: opts.Humanizer,
		Timing:    opts.Timing,
		Publisher: opts.Publisher,
		Logger:    componentLogger(opts.Logger, "caption"),
	})
	c.loader = loader.New(loader.Options{
		Source:     opts.Source,
		Guard:      c.guard,
		Logger:     componentLogger(opts.Logger, "loader"),
		OnActivate: c.onActivate,
		Publisher:  opts.Publisher,
	})

	c.state.Subscribe(c.onTransition)
	metrics.SetMood(string(mood.Idle), moodNames())
	return c
}

func componentLogger(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// Mount loads the model for the current mood and starts the idle randomizer.
func (c *Controller) Mount() error {
	var err error
	c.guard.Do(func() {
		if c.unmounted {
			err = ErrUnmounted
			return
		}
		if c.mounted {
			return
		}
		c.mounted = true
		c.loader.EnsureLoaded(c.state.Current().Category())
		c.idle.SetBusy(c.busy)
		c.idle.Start()
		c.log.Info().Str("mood", string(c.state.Current())).Msg("Avatar controller mounted")
	})
	return err
}

// Unmount cancels every timer, drops the model and waits for in-flight loads
// to return. It is safe to call more than once.
func (c *Controller) Unmount() {
	c.guard.Do(func() {
		if c.unmounted {
			return
		}
		c.unmounted = true
		c.mounted = false
		c.idle.Stop()
		c.blink.Stop()
		c.captions.Clear()
		c.reg.Close()
		c.loader.Close()
		metrics.PendingTimers.Set(0)
		c.log.Info().Msg("Avatar controller unmounted")
	})
	c.loader.Wait()
}

// SetMood applies a mood signal from the host. It reports whether the mood
// actually changed.
func (c *Controller) SetMood(m mood.Mood) bool {
	var changed bool
	c.guard.Do(func() {
		_, changed = c.state.Set(m, mood.SourceHost)
	})
	return changed
}

func (c *Controller) Mood() mood.Mood {
	return c.state.Current()
}

// SetBusy suspends the idle randomizer while a request is in flight.
func (c *Controller) SetBusy(busy bool) {
	c.guard.Do(func() { c.setBusy(busy) })
}

func (c *Controller) setBusy(busy bool) {
	if c.busy == busy {
		return
	}
	c.busy = busy
	if c.mounted {
		c.idle.SetBusy(busy)
	}
	v := 0.0
	if busy {
		v = 1
	}
	metrics.Busy.Set(v)
	c.log.Debug().Bool("busy", busy).Msg("Busy changed")
	c.publish(bus.EventTypeBusyChanged, map[string]any{"busy": busy})
}

// RequestDispatched marks a chat request in flight and shows Thinking.
func (c *Controller) RequestDispatched() {
	c.guard.Do(func() {
		c.setBusy(true)
		c.reg.CancelGroup(RevertGroup)
		c.state.Set(mood.Thinking, mood.SourceChat)
	})
}

// ResponseArrived ends the request, shows Speaking or Scared depending on
// the text and returns to Idle after the display window unless another
// transition happens first. It returns the mood chosen for the response.
func (c *Controller) ResponseArrived(text string) mood.Mood {
	var m mood.Mood
	c.guard.Do(func() {
		c.setBusy(false)
		m = c.classify.ForResponse(text)
		c.state.Set(m, mood.SourceChat)

		gen := c.state.Generation()
		c.reg.CancelGroup(RevertGroup)
		c.reg.After(RevertGroup, c.revertAfter, func() {
			if _, ok := c.state.RevertIfCurrent(gen, mood.SourceRevert); !ok {
				c.log.Debug().Uint64("generation", gen).Msg("Response revert superseded")
			}
		})
	})
	return m
}

// SetPointer sets the head-tracking target in normalized screen space.
func (c *Controller) SetPointer(x, y float32) {
	c.guard.Do(func() {
		c.pointerX = clampUnit(x)
		c.pointerY = clampUnit(y)
	})
}

// Frame advances the animation by dt and returns the resulting state. Long
// stalls are clamped so a dropped frame does not jump the animation.
func (c *Controller) Frame(dt time.Duration) FrameState {
	begin := time.Now()
	var fs FrameState
	c.guard.Do(func() {
		if dt < 0 {
			dt = 0
		}
		if dt > maxFrameDelta {
			dt = maxFrameDelta
		}

		h, cat, _ := c.loader.Active()
		current := c.state.Current()
		c.anim.Step(h, dt.Seconds(), animator.Input{
			Mood:     current,
			Typing:   c.captions.Typing(),
			PointerX: c.pointerX,
			PointerY: c.pointerY,
		})

		c.frames++
		fs = FrameState{
			Seq:      c.frames,
			At:       c.clock.Now(),
			Elapsed:  c.anim.Elapsed(),
			Mood:     current,
			Busy:     c.busy,
			Category: cat,
			Caption:  c.captions.State(),
		}
		if h != nil {
			pose := h.Pose()
			fs.Model = &pose
		}
		metrics.PendingTimers.Set(float64(c.reg.Len()))
	})
	metrics.FrameSeconds.Observe(time.Since(begin).Seconds())
	return fs
}

// Run steps frames at fps until ctx is done, handing each one to sink.
func (c *Controller) Run(ctx context.Context, fps int, sink func(FrameState)) error {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			fs := c.Frame(dt)
			if sink != nil {
				sink(fs)
			}
		}
	}
}

func (c *Controller) Caption() caption.State {
	var s caption.State
	c.guard.Do(func() { s = c.captions.State() })
	return s
}

// ReloadAsset re-reads the model for cat if it is the attached one.
func (c *Controller) ReloadAsset(cat mood.Category) error {
	var err error
	c.guard.Do(func() {
		if c.unmounted {
			err = ErrUnmounted
			return
		}
		err = c.loader.Reload(cat)
	})
	return err
}

// PendingTimers is the number of live scheduled callbacks.
func (c *Controller) PendingTimers() int {
	return c.reg.Len()
}

func (c *Controller) Snapshot() Snapshot {
	var s Snapshot
	c.guard.Do(func() {
		s = Snapshot{
			Mounted:    c.mounted,
			Mood:       c.state.Current(),
			Generation: c.state.Generation(),
			Busy:       c.busy,
			Desired:    c.loader.Desired(),
			Loads:      c.loader.Stats(),
			Caption:    c.captions.State(),
			Captions:   c.captions.Started(),
			Blinks:     c.blink.Count(),
			Pulses:     c.idle.Pulses(),
			Timers:     c.reg.Len(),
			Frames:     c.frames,
			History:    c.state.History(0),
		}
		if h, cat, ok := c.loader.Active(); ok {
			s.Active = cat
			s.Model = h.Name
		}
		if cat, ok := c.loader.Loading(); ok {
			s.Loading = cat
		}
	})
	return s
}

func (c *Controller) onTransition(tr mood.Transition) {
	metrics.MoodTransitions.WithLabelValues(string(tr.To), string(tr.Source)).Inc()
	metrics.SetMood(string(tr.To), moodNames())
	c.log.Debug().
		Str("from", string(tr.From)).
		Str("to", string(tr.To)).
		Str("source", string(tr.Source)).
		Uint64("generation", tr.Generation).
		Msg("Mood changed")
	c.publish(bus.EventTypeMoodChanged, map[string]any{
		"from":       string(tr.From),
		"to":         string(tr.To),
		"source":     string(tr.Source),
		"generation": tr.Generation,
	})

	if !c.mounted {
		return
	}
	c.loader.EnsureLoaded(tr.To.Category())
	if c.captions.OnTransition(tr) {
		metrics.CaptionsStarted.WithLabelValues(string(tr.To)).Inc()
	}
}

func (c *Controller) onActivate(h *rig.Humanoid, _ mood.Category) {
	c.blink.Start(h)
}

func (c *Controller) publish(t bus.EventType, data map[string]any) {
	if c.pub == nil {
		return
	}
	c.pub.Publish(bus.Event{Type: t, Data: data})
}

func moodNames() []string {
	names := make([]string, len(mood.All))
	for i, m := range mood.All {
		names[i] = string(m)
	}
	return names
}

func clampUnit(v float32) float32 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
