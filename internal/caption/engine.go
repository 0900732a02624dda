// Package caption renders the avatar's short "thought" captions: a phrase
// picked for the new mood, typed out one rune at a time, held for a while
// and faded away.
package caption

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fulopkrisztian-prog/Mia/internal/bus"
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/sched"
)

// Group is the registry group holding caption timers.
const Group = "caption"

type Phase string

const (
	PhaseHidden    Phase = "hidden"
	PhaseTyping    Phase = "typing"
	PhaseDisplayed Phase = "displayed"
	PhaseFadingOut Phase = "fading_out"
)

// State is a snapshot of the current caption.
type State struct {
	ID       string    `json:"id,omitempty"`
	Source   string    `json:"source,omitempty"`
	Text     string    `json:"text"`
	Revealed int       `json:"revealed"`
	Length   int       `json:"length"`
	Typing   bool      `json:"typing"`
	Visible  bool      `json:"visible"`
	Mood     mood.Mood `json:"mood,omitempty"`
	Phase    Phase     `json:"phase"`
}

type Options struct {
	Pack      *Pack
	Humanizer Humanizer
	Timing    Timing
	Publisher bus.Publisher
	Logger    zerolog.Logger
}

// Engine owns at most one caption. It is not safe for concurrent use; the
// registry guard serializes its timer callbacks with the caller.
type Engine struct {
	reg    *sched.Registry
	rng    *rand.Rand
	pack   *Pack
	human  Humanizer
	timing Timing
	pub    bus.Publisher
	log    zerolog.Logger

	state   State
	text    []rune
	last    string
	typing  *sched.Handle
	started int
}

func NewEngine(reg *sched.Registry, rng *rand.Rand, opts Options) *Engine {
	if opts.Pack == nil {
		opts.Pack = DefaultPack()
	}
	return &Engine{
		reg:    reg,
		rng:    rng,
		pack:   opts.Pack,
		human:  opts.Humanizer,
		timing: opts.Timing,
		pub:    opts.Publisher,
		log:    opts.Logger,
		state:  State{Phase: PhaseHidden},
	}
}

// OnTransition starts a new caption when the mood actually changed to a mood
// with phrases. Any previous caption's timers are cancelled first.
func (e *Engine) OnTransition(tr mood.Transition) bool {
	if tr.From == tr.To || tr.To == mood.Idle {
		return false
	}
	phrases := e.pack.Phrases[tr.To]
	if len(phrases) == 0 {
		return false
	}

	e.reg.CancelGroup(Group)
	e.typing = nil

	text := e.human.Apply(e.rng, tr.To, e.pick(phrases), e.pack)
	e.text = []rune(text)
	e.state = State{
		ID:      uuid.NewString(),
		Source:  text,
		Length:  len(e.text),
		Typing:  true,
		Visible: true,
		Mood:    tr.To,
		Phase:   PhaseTyping,
	}
	e.started++

	e.log.Debug().
		Str("caption_id", e.state.ID).
		Str("mood", string(tr.To)).
		Str("text", text).
		Msg("Caption started")
	e.publish(bus.EventTypeCaptionStarted)

	e.typing = e.reg.Every(Group, e.timing.Interval(tr.To), e.tick)
	return true
}

func (e *Engine) pick(phrases []string) string {
	candidates := phrases
	if len(phrases) > 1 && e.last != "" {
		candidates = make([]string, 0, len(phrases))
		for _, p := range phrases {
			if p != e.last {
				candidates = append(candidates, p)
			}
		}
		if len(candidates) == 0 {
			candidates = phrases
		}
	}
	p := candidates[e.rng.Intn(len(candidates))]
	e.last = p
	return p
}

func (e *Engine) tick() {
	if e.state.Phase != PhaseTyping {
		return
	}
	if e.state.Revealed < len(e.text) {
		e.state.Revealed++
	}
	if e.state.Revealed < len(e.text) {
		return
	}

	e.typing.Cancel()
	e.typing = nil
	e.state.Typing = false
	e.state.Phase = PhaseDisplayed
	e.publish(bus.EventTypeCaptionRevealed)

	e.reg.After(Group, e.timing.HideAfter(len(e.text)), e.hide)
}

func (e *Engine) hide() {
	e.state.Visible = false
	e.state.Phase = PhaseFadingOut
	e.publish(bus.EventTypeCaptionHidden)

	e.reg.After(Group, e.timing.Fade, e.finish)
}

func (e *Engine) finish() {
	e.state = State{Phase: PhaseHidden}
	e.text = nil
}

// Clear cancels every caption timer and hides the caption immediately.
func (e *Engine) Clear() {
	e.reg.CancelGroup(Group)
	e.typing = nil
	e.finish()
}

// State returns the current caption with its revealed prefix.
func (e *Engine) State() State {
	s := e.state
	if s.Revealed > 0 && s.Revealed <= len(e.text) {
		s.Text = string(e.text[:s.Revealed])
	}
	return s
}

// Typing reports whether a caption is still being revealed.
func (e *Engine) Typing() bool {
	return e.state.Typing
}

// Humanizer returns the decorations applied to new captions.
func (e *Engine) Humanizer() Humanizer {
	return e.human
}

// Started counts captions started since the engine was created.
func (e *Engine) Started() int {
	return e.started
}

func (e *Engine) publish(t bus.EventType) {
	if e.pub == nil {
		return
	}
	e.pub.Publish(bus.Event{Type: t, Data: map[string]any{
		"id":    e.state.ID,
		"mood":  string(e.state.Mood),
		"text":  e.state.Source,
		"phase": string(e.state.Phase),
	}})
}
