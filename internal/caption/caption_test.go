package caption

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulopkrisztian-prog/Mia/internal/bus"
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/sched"
)

type recorder struct {
	mu     sync.Mutex
	events []bus.Event
}

func (r *recorder) Publish(e bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []bus.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bus.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestEngine(pack *Pack) (*Engine, *sched.Registry, *sched.Manual, *recorder) {
	clock := sched.NewManual(time.Unix(0, 0))
	reg := sched.NewRegistry(clock, &sched.Mutex{})
	rec := &recorder{}
	e := NewEngine(reg, rand.New(rand.NewSource(42)), Options{
		Pack:      pack,
		Timing:    DefaultTiming(),
		Publisher: rec,
		Logger:    zerolog.Nop(),
	})
	return e, reg, clock, rec
}

func edge(from, to mood.Mood) mood.Transition {
	return mood.Transition{From: from, To: to}
}

func TestDefaultPackHasNoEmptyPhrases(t *testing.T) {
	p := DefaultPack()
	require.NoError(t, p.Validate())
	for _, m := range mood.Transient {
		assert.Len(t, p.Phrases[m], 5, m)
		for _, s := range p.Phrases[m] {
			assert.NotEmpty(t, strings.TrimSpace(s))
		}
	}
	assert.Empty(t, p.Phrases[mood.Idle])
}

func TestValidateRejectsBadPacks(t *testing.T) {
	p := DefaultPack()
	p.Phrases[mood.Speaking] = []string{"ok", "  "}
	assert.ErrorIs(t, p.Validate(), ErrEmptyPhrase)

	p = DefaultPack()
	p.Phrases[mood.Idle] = []string{"zzz"}
	assert.Error(t, p.Validate())

	p = DefaultPack()
	p.Phrases[mood.Mood("bored")] = []string{"meh"}
	assert.ErrorIs(t, p.Validate(), mood.ErrUnknownMood)

	p = DefaultPack()
	delete(p.Phrases, mood.Scared)
	assert.ErrorIs(t, p.Validate(), ErrEmptyPhrase)
}

func TestLoadPackMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hu.yaml")
	body := `
phrases:
  thinking:
    - "Gondolkodom..."
    - "Egy pillanat."
fillers: ["Hmm… "]
closing: "Mit gondolsz?"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	p, err := LoadPack(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Gondolkodom...", "Egy pillanat."}, p.Phrases[mood.Thinking])
	assert.Equal(t, DefaultPack().Phrases[mood.Speaking], p.Phrases[mood.Speaking])
	assert.Equal(t, "Mit gondolsz?", p.Closing)
}

func TestLoadPackRejectsEmptyEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("phrases:\n  scared: [\"\"]\n"), 0o644))

	_, err := LoadPack(path)
	assert.ErrorIs(t, err, ErrEmptyPhrase)
}

func TestHumanizer(t *testing.T) {
	pack := DefaultPack()
	pack.Fillers = []string{"Hmm… "}
	rng := rand.New(rand.NewSource(1))

	none := Humanizer{}
	assert.Equal(t, "Let me explain.", none.Apply(rng, mood.Speaking, "Let me explain.", pack))

	all := Humanizer{FillerChance: 1, EllipsisChance: 1, ClosingChance: 1}
	assert.Equal(t, "Hmm… let me explain… What do you think?",
		all.Apply(rng, mood.Speaking, "Let me explain.", pack))

	// Scared captions never get a filler.
	assert.Equal(t, "Oh no… What do you think?", all.Apply(rng, mood.Scared, "Oh no.", pack))

	assert.Equal(t, "Hmm… I know.", Humanizer{FillerChance: 1}.Apply(rng, mood.Thinking, "I know.", pack))
}

func TestTiming(t *testing.T) {
	tm := DefaultTiming()
	assert.Equal(t, 55*time.Millisecond, tm.Interval(mood.Thinking))
	assert.Equal(t, 35*time.Millisecond, tm.Interval(mood.Speaking))
	assert.Equal(t, 28*time.Millisecond, tm.Interval(mood.Scared))
	assert.Equal(t, 40*time.Millisecond, tm.Interval(mood.Idle))

	assert.Equal(t, 61500*time.Millisecond, tm.HideAfter(10))
	assert.Equal(t, 75*time.Second, tm.HideAfter(500))
}

func TestEngineLifecycle(t *testing.T) {
	pack := DefaultPack()
	pack.Phrases[mood.Thinking] = []string{"Hi there"}
	e, reg, clock, rec := newTestEngine(pack)

	require.True(t, e.OnTransition(edge(mood.Idle, mood.Thinking)))
	s := e.State()
	assert.Equal(t, PhaseTyping, s.Phase)
	assert.True(t, s.Typing)
	assert.True(t, s.Visible)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "", s.Text)

	clock.Advance(55 * time.Millisecond)
	assert.Equal(t, "H", e.State().Text)

	clock.Advance(3 * 55 * time.Millisecond)
	assert.Equal(t, "Hi t", e.State().Text)

	// 8 runes in total.
	clock.Advance(4 * 55 * time.Millisecond)
	s = e.State()
	assert.Equal(t, "Hi there", s.Text)
	assert.Equal(t, PhaseDisplayed, s.Phase)
	assert.False(t, s.Typing)
	assert.True(t, s.Visible)
	assert.Equal(t, 1, reg.Pending(Group))

	clock.Advance(60*time.Second + 8*150*time.Millisecond - time.Millisecond)
	assert.Equal(t, PhaseDisplayed, e.State().Phase)

	clock.Advance(time.Millisecond)
	s = e.State()
	assert.Equal(t, PhaseFadingOut, s.Phase)
	assert.False(t, s.Visible)

	clock.Advance(400 * time.Millisecond)
	assert.Equal(t, PhaseHidden, e.State().Phase)
	assert.Equal(t, 0, reg.Pending(Group))

	assert.Equal(t, []bus.EventType{
		bus.EventTypeCaptionStarted,
		bus.EventTypeCaptionRevealed,
		bus.EventTypeCaptionHidden,
	}, rec.types())
}

func TestEngineIgnoresIdleAndNonEdges(t *testing.T) {
	e, reg, _, _ := newTestEngine(nil)

	assert.False(t, e.OnTransition(edge(mood.Thinking, mood.Idle)))
	assert.False(t, e.OnTransition(edge(mood.Speaking, mood.Speaking)))
	assert.Equal(t, 0, e.Started())
	assert.Equal(t, 0, reg.Len())
}

func TestEnginePreemptsPreviousCaption(t *testing.T) {
	e, reg, clock, _ := newTestEngine(nil)

	e.OnTransition(edge(mood.Idle, mood.Thinking))
	first := e.State().ID
	clock.Advance(200 * time.Millisecond)

	e.OnTransition(edge(mood.Thinking, mood.Speaking))
	second := e.State()
	assert.NotEqual(t, first, second.ID)
	assert.Equal(t, mood.Speaking, second.Mood)
	assert.Equal(t, 0, second.Revealed)
	assert.Equal(t, 1, reg.Pending(Group), "only one typing interval")

	clock.Advance(35 * time.Millisecond)
	assert.Equal(t, 1, e.State().Revealed)

	// Thinking -> Speaking -> Idle yields exactly two captions.
	assert.False(t, e.OnTransition(edge(mood.Speaking, mood.Idle)))
	assert.Equal(t, 2, e.Started())
	assert.True(t, e.Typing(), "idle does not cut a caption short")
}

func TestEngineAvoidsImmediateRepeat(t *testing.T) {
	pack := DefaultPack()
	pack.Phrases[mood.Thinking] = []string{"a", "b"}
	e, _, _, _ := newTestEngine(pack)

	prev := ""
	for i := 0; i < 20; i++ {
		e.OnTransition(edge(mood.Idle, mood.Thinking))
		cur := e.State().Source
		assert.NotEqual(t, prev, cur)
		prev = cur
	}
}

func TestEngineClear(t *testing.T) {
	e, reg, clock, _ := newTestEngine(nil)
	e.OnTransition(edge(mood.Idle, mood.Scared))
	clock.Advance(100 * time.Millisecond)

	e.Clear()
	assert.Equal(t, PhaseHidden, e.State().Phase)
	assert.False(t, e.Typing())
	assert.Equal(t, 0, reg.Len())
}
