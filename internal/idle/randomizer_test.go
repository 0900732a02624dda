package idle

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/sched"
)

type fixture struct {
	clock *sched.Manual
	reg   *sched.Registry
	state *mood.State
	r     *Randomizer
}

func newFixture(seed int64) *fixture {
	clock := sched.NewManual(time.Unix(0, 0))
	reg := sched.NewRegistry(clock, &sched.Mutex{})
	state := mood.NewState(16, clock.Now)
	r := New(DefaultConfig(), state, reg, rand.New(rand.NewSource(seed)), zerolog.Nop())
	return &fixture{clock: clock, reg: reg, state: state, r: r}
}

// advanceUntilPulse steps the clock until the first pulse changes the mood.
func advanceUntilPulse(t *testing.T, f *fixture) {
	t.Helper()
	start := f.r.Pulses()
	for i := 0; i < 150 && f.r.Pulses() == start; i++ {
		f.clock.Advance(100 * time.Millisecond)
	}
	require.Greater(t, f.r.Pulses(), start, "no pulse within 15s")
}

func TestPulseSetsTransientMoodAndReverts(t *testing.T) {
	f := newFixture(1)
	var seen []mood.Transition
	f.state.Subscribe(func(tr mood.Transition) { seen = append(seen, tr) })

	f.r.Start()
	assert.Equal(t, 1, f.reg.Pending(PulseGroup))

	advanceUntilPulse(t, f)
	require.Len(t, seen, 1)
	assert.Equal(t, mood.SourceIdle, seen[0].Source)
	assert.Contains(t, mood.Transient, seen[0].To)
	assert.Equal(t, 1, f.reg.Pending(RevertGroup))

	f.clock.Advance(2 * time.Second)
	assert.Equal(t, mood.Idle, f.state.Current())
	assert.Equal(t, mood.SourceRevert, seen[len(seen)-1].Source)
}

func TestPulseRespectsPeriodBounds(t *testing.T) {
	f := newFixture(3)
	for i := 0; i < 500; i++ {
		d := f.r.nextPeriod()
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.Less(t, d, 15*time.Second)
	}
}

func TestBusySuspendsAndResumes(t *testing.T) {
	f := newFixture(2)
	f.r.Start()
	f.r.SetBusy(true)
	assert.True(t, f.r.Busy())
	assert.Equal(t, 0, f.reg.Pending(PulseGroup))

	f.clock.Advance(time.Minute)
	assert.Equal(t, 0, f.r.Pulses())
	assert.Equal(t, mood.Idle, f.state.Current())

	f.r.SetBusy(false)
	assert.Equal(t, 1, f.reg.Pending(PulseGroup))
	f.clock.Advance(15 * time.Second)
	assert.GreaterOrEqual(t, f.r.Pulses(), 1)
}

func TestBusyKeepsPendingRevert(t *testing.T) {
	f := newFixture(4)
	f.r.Start()
	advanceUntilPulse(t, f)
	require.NotEqual(t, mood.Idle, f.state.Current())

	f.r.SetBusy(true)
	assert.Equal(t, 0, f.reg.Pending(PulseGroup))
	assert.Equal(t, 1, f.reg.Pending(RevertGroup))
	f.r.SetBusy(false)

	f.clock.Advance(2 * time.Second)
	assert.Equal(t, mood.Idle, f.state.Current())

	pulses := f.r.Pulses()
	f.clock.Advance(time.Minute)
	assert.Greater(t, f.r.Pulses(), pulses, "randomizer keeps pulsing")
}

func TestBusyRevertStillLandsWhileBusy(t *testing.T) {
	f := newFixture(9)
	f.r.Start()
	advanceUntilPulse(t, f)

	f.r.SetBusy(true)
	f.clock.Advance(2 * time.Second)
	assert.Equal(t, mood.Idle, f.state.Current())
	assert.Equal(t, 0, f.reg.Pending(PulseGroup))
}

func TestRealTransitionWinsOverStaleRevert(t *testing.T) {
	f := newFixture(5)
	f.r.Start()
	advanceUntilPulse(t, f)
	require.NotEqual(t, mood.Idle, f.state.Current())

	// A real response lands while the idle revert is pending.
	f.state.Set(mood.Thinking, mood.SourceChat)
	f.state.Set(mood.Speaking, mood.SourceChat)

	f.clock.Advance(2 * time.Second)
	assert.Equal(t, mood.Speaking, f.state.Current())
}

func TestPulseSkipsWhenNotIdle(t *testing.T) {
	f := newFixture(6)
	f.state.Set(mood.Speaking, mood.SourceChat)
	f.r.Start()

	f.clock.Advance(15 * time.Second)
	assert.Equal(t, 0, f.r.Pulses())
	assert.Equal(t, mood.Speaking, f.state.Current())
	assert.Equal(t, 1, f.reg.Pending(PulseGroup), "keeps pulsing")
}

func TestDisabledNeverPulses(t *testing.T) {
	f := newFixture(7)
	cfg := DefaultConfig()
	cfg.Enabled = false
	r := New(cfg, f.state, f.reg, rand.New(rand.NewSource(7)), zerolog.Nop())
	r.Start()
	assert.Equal(t, 0, f.reg.Len())
}

func TestStopCancelsEverything(t *testing.T) {
	f := newFixture(8)
	f.r.Start()
	f.clock.Advance(15 * time.Second)
	f.r.Stop()
	assert.Equal(t, 0, f.reg.Len())
}
