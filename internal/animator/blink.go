package animator

import (
	"math/rand"
	"time"

	"github.com/fulopkrisztian-prog/Mia/internal/rig"
	"github.com/fulopkrisztian-prog/Mia/internal/sched"
)

// BlinkGroup is the registry group owned by the blink cycle.
const BlinkGroup = "blink"

// Blink closes the eyes, reopens them after a short hold, then waits a
// random gap before the next blink. It is bound to one model at a time.
type Blink struct {
	reg *sched.Registry
	rng *rand.Rand

	closed time.Duration
	minGap time.Duration
	maxGap time.Duration

	model *rig.Humanoid
	count int
}

func NewBlink(reg *sched.Registry, rng *rand.Rand, params Params) *Blink {
	params = params.withDefaults()
	return &Blink{
		reg:    reg,
		rng:    rng,
		closed: params.BlinkClosed,
		minGap: params.BlinkMinGap,
		maxGap: params.BlinkMaxGap,
	}
}

// Start binds the cycle to h and blinks immediately. Any cycle bound to a
// previous model is cancelled first.
func (b *Blink) Start(h *rig.Humanoid) {
	b.Stop()
	b.model = h
	b.close()
}

// Stop cancels pending blink timers.
func (b *Blink) Stop() {
	b.reg.CancelGroup(BlinkGroup)
	b.model = nil
}

// Count is the number of blinks started so far.
func (b *Blink) Count() int {
	return b.count
}

func (b *Blink) close() {
	h := b.model
	if h == nil || h.Disposed() {
		return
	}
	h.Weights.Set(rig.ExprBlink, 1)
	b.count++
	b.reg.After(BlinkGroup, b.closed, b.open)
}

func (b *Blink) open() {
	h := b.model
	if h == nil || h.Disposed() {
		return
	}
	h.Weights.Set(rig.ExprBlink, 0)
	b.reg.After(BlinkGroup, b.nextGap(), b.close)
}

func (b *Blink) nextGap() time.Duration {
	span := int64(b.maxGap - b.minGap)
	return b.minGap + time.Duration(b.rng.Int63n(span))
}
