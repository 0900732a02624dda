// Package idle makes the avatar look alive between conversations by briefly
// flashing a random mood every few seconds.
package idle

import (
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/sched"
)

const (
	PulseGroup  = "idle.pulse"
	RevertGroup = "idle.revert"
)

type Config struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	MinPeriod time.Duration `mapstructure:"min_period" yaml:"min_period"`
	MaxPeriod time.Duration `mapstructure:"max_period" yaml:"max_period"`
	Hold      time.Duration `mapstructure:"hold" yaml:"hold"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		MinPeriod: 5000 * time.Millisecond,
		MaxPeriod: 15000 * time.Millisecond,
		Hold:      2000 * time.Millisecond,
	}
}

// Randomizer schedules pulses while the system is not busy. A pulse that
// finds the mood at Idle picks a transient mood and schedules a revert that
// only applies if nothing else changed the mood in between.
type Randomizer struct {
	cfg   Config
	state *mood.State
	reg   *sched.Registry
	rng   *rand.Rand
	log   zerolog.Logger

	running bool
	busy    bool
	pulses  int
}

func New(cfg Config, state *mood.State, reg *sched.Registry, rng *rand.Rand, logger zerolog.Logger) *Randomizer {
	d := DefaultConfig()
	if cfg.MinPeriod <= 0 {
		cfg.MinPeriod = d.MinPeriod
	}
	if cfg.MaxPeriod <= cfg.MinPeriod {
		cfg.MaxPeriod = cfg.MinPeriod + time.Millisecond
	}
	if cfg.Hold <= 0 {
		cfg.Hold = d.Hold
	}
	return &Randomizer{
		cfg:   cfg,
		state: state,
		reg:   reg,
		rng:   rng,
		log:   logger,
	}
}

// Start begins pulsing unless disabled or busy.
func (r *Randomizer) Start() {
	if !r.cfg.Enabled || r.running {
		return
	}
	r.running = true
	r.schedule()
}

// Stop cancels the pending pulse and revert.
func (r *Randomizer) Stop() {
	r.running = false
	r.reg.CancelGroup(PulseGroup)
	r.reg.CancelGroup(RevertGroup)
}

// SetBusy suspends pulsing while a request is in flight and resumes a fresh
// period once it ends. A pending revert stays scheduled: it is
// generation-guarded, so it only lands if nothing replaced the pulsed mood.
func (r *Randomizer) SetBusy(busy bool) {
	if busy == r.busy {
		return
	}
	r.busy = busy
	if busy {
		r.reg.CancelGroup(PulseGroup)
		return
	}
	r.schedule()
}

func (r *Randomizer) Busy() bool {
	return r.busy
}

// Pulses counts pulses that changed the mood.
func (r *Randomizer) Pulses() int {
	return r.pulses
}

func (r *Randomizer) schedule() {
	if !r.running || r.busy {
		return
	}
	r.reg.CancelGroup(PulseGroup)
	r.reg.After(PulseGroup, r.nextPeriod(), r.pulse)
}

func (r *Randomizer) nextPeriod() time.Duration {
	span := int64(r.cfg.MaxPeriod - r.cfg.MinPeriod)
	return r.cfg.MinPeriod + time.Duration(r.rng.Int63n(span))
}

func (r *Randomizer) pulse() {
	if !r.running || r.busy {
		return
	}
	defer r.schedule()

	if r.state.Current() != mood.Idle {
		return
	}
	pick := mood.Transient[r.rng.Intn(len(mood.Transient))]
	tr, ok := r.state.Set(pick, mood.SourceIdle)
	if !ok {
		return
	}
	r.pulses++
	r.log.Debug().Str("mood", string(pick)).Uint64("generation", tr.Generation).Msg("Idle pulse")

	gen := tr.Generation
	r.reg.After(RevertGroup, r.cfg.Hold, func() {
		if _, ok := r.state.RevertIfCurrent(gen, mood.SourceRevert); !ok {
			r.log.Debug().Uint64("generation", gen).Msg("Idle revert superseded")
		}
	})
}
