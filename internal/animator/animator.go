// Package animator turns the current mood, typing activity and pointer
// position into per-frame bone rotations and expression weights, and runs
// the independent blink cycle.
package animator

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/rig"
)

// Input is everything a frame reads besides the model itself.
type Input struct {
	Mood     mood.Mood
	Typing   bool
	PointerX float32 // -1 (left) to +1 (right)
	PointerY float32 // -1 (bottom) to +1 (top)
}

type Animator struct {
	params  Params
	elapsed float64
}

func New(params Params) *Animator {
	return &Animator{params: params.withDefaults()}
}

func (a *Animator) Params() Params {
	return a.params
}

// Elapsed is the animation time in seconds since the animator started.
func (a *Animator) Elapsed() float64 {
	return a.elapsed
}

func (a *Animator) Reset() {
	a.elapsed = 0
}

// Step applies one frame to h. The order is fixed: model clock, expression
// reset, mood mapping, typing mouth, head tracking, arm sway, bob.
func (a *Animator) Step(h *rig.Humanoid, dt float64, in Input) {
	if dt < 0 {
		dt = 0
	}
	a.elapsed += dt
	if h == nil || h.Disposed() {
		return
	}
	t := a.elapsed

	h.Advance(dt)

	h.Weights.ResetExceptBlink()

	if e, ok := ExpressionFor(in.Mood); ok {
		h.Weights.Set(e.Channel, e.Weight)
	}

	if in.Typing {
		mouth := float32(math.Abs(math.Sin(t*a.params.MouthFrequency))) * a.params.MouthAmplitude
		h.Weights.Set(rig.ExprAa, mouth)
	}

	a.trackHead(h, in)
	a.swayArms(h, t)
	a.bob(h, t)
}

func (a *Animator) trackHead(h *rig.Humanoid, in Input) {
	cur, ok := h.BoneEuler(rig.BoneHead)
	if !ok {
		return
	}
	yaw := clamp(in.PointerX, -1, 1) * a.params.HeadYawScale
	pitch := -clamp(in.PointerY, -1, 1) * a.params.HeadPitchScale
	k := a.params.HeadSmoothing

	cur[0] = lerp(cur[0], pitch, k)
	cur[1] = lerp(cur[1], yaw, k)
	h.SetBoneEuler(rig.BoneHead, cur)
}

func (a *Animator) swayArms(h *rig.Humanoid, t float64) {
	s := float32(math.Sin(2*math.Pi*t/a.params.ArmPeriod.Seconds())) * a.params.ArmAmplitude

	if left, ok := h.BoneEuler(rig.BoneLeftUpperArm); ok {
		left[2] = -a.params.ArmRest + s
		h.SetBoneEuler(rig.BoneLeftUpperArm, left)
	}
	if right, ok := h.BoneEuler(rig.BoneRightUpperArm); ok {
		right[2] = a.params.ArmRest - s
		h.SetBoneEuler(rig.BoneRightUpperArm, right)
	}
}

func (a *Animator) bob(h *rig.Humanoid, t float64) {
	y := a.params.BobBase + float32(math.Sin(2*math.Pi*t/a.params.BobPeriod.Seconds()))*a.params.BobAmplitude
	p := h.Position()
	h.SetPosition(mgl32.Vec3{p[0], y, p[2]})
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
