// Package rig models the parts of a humanoid avatar the controller animates:
// named bones, facial expression channels, figure placement and a model
// clock. Meshes and materials stay with the renderer.
package rig

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type Bone string

const (
	BoneHips          Bone = "hips"
	BoneSpine         Bone = "spine"
	BoneChest         Bone = "chest"
	BoneNeck          Bone = "neck"
	BoneHead          Bone = "head"
	BoneLeftUpperArm  Bone = "leftUpperArm"
	BoneRightUpperArm Bone = "rightUpperArm"
	BoneLeftLowerArm  Bone = "leftLowerArm"
	BoneRightLowerArm Bone = "rightLowerArm"
)

// Bones lists the bones the rig tracks.
var Bones = []Bone{
	BoneHips, BoneSpine, BoneChest, BoneNeck, BoneHead,
	BoneLeftUpperArm, BoneRightUpperArm, BoneLeftLowerArm, BoneRightLowerArm,
}

type Format string

const (
	FormatVRM0        Format = "vrm0"
	FormatVRM1        Format = "vrm1"
	FormatGLTF        Format = "gltf"
	FormatPlaceholder Format = "placeholder"
)

// Joint is a bound bone: the glTF node it drives, its rest orientation and
// the Euler offset currently applied on top of it.
type Joint struct {
	Node  int
	Rest  mgl32.Quat
	Euler mgl32.Vec3
}

// Rotation returns the rest orientation composed with the Euler offset.
func (j *Joint) Rotation() mgl32.Quat {
	offset := mgl32.AnglesToQuat(j.Euler[0], j.Euler[1], j.Euler[2], mgl32.XYZ)
	return j.Rest.Mul(offset).Normalize()
}

// Humanoid is one loaded avatar model.
type Humanoid struct {
	ID     string
	Name   string
	Source string
	Format Format

	Weights ExpressionWeights

	position mgl32.Vec3
	facing   float32

	joints      map[Bone]*Joint
	expressions map[string]bool

	elapsed  float64
	disposed bool
}

func newHumanoid(name, source string, format Format) *Humanoid {
	h := &Humanoid{
		ID:          uuid.NewString(),
		Name:        name,
		Source:      source,
		Format:      format,
		joints:      make(map[Bone]*Joint),
		expressions: make(map[string]bool),
	}
	if format == FormatVRM0 {
		// VRM 0.x models face -Z.
		h.facing = math.Pi
	}
	return h
}

// Joint returns the bound joint for b.
func (h *Humanoid) Joint(b Bone) (*Joint, bool) {
	j, ok := h.joints[b]
	return j, ok
}

// SetBoneEuler sets the Euler offset of b. It reports false when the model
// has no such bone.
func (h *Humanoid) SetBoneEuler(b Bone, euler mgl32.Vec3) bool {
	j, ok := h.joints[b]
	if !ok {
		return false
	}
	j.Euler = euler
	return true
}

func (h *Humanoid) BoneEuler(b Bone) (mgl32.Vec3, bool) {
	j, ok := h.joints[b]
	if !ok {
		return mgl32.Vec3{}, false
	}
	return j.Euler, true
}

func (h *Humanoid) BoneCount() int {
	return len(h.joints)
}

// HasExpression reports whether the model defines a preset or target with
// the given canonical name.
func (h *Humanoid) HasExpression(name string) bool {
	return h.expressions[canonicalExpression(name)]
}

// ExpressionNames returns the model's own expression names.
func (h *Humanoid) ExpressionNames() []string {
	out := make([]string, 0, len(h.expressions))
	for n := range h.expressions {
		out = append(out, n)
	}
	return out
}

// Resolve returns the model expression that drives logical channel e.
func (h *Humanoid) Resolve(e Expression) (string, bool) {
	candidates, ok := expressionFallbacks[e]
	if !ok {
		candidates = []string{e.String()}
	}
	for _, c := range candidates {
		if h.expressions[c] {
			return c, true
		}
	}
	return "", false
}

func (h *Humanoid) Position() mgl32.Vec3 {
	return h.position
}

func (h *Humanoid) SetPosition(p mgl32.Vec3) {
	h.position = p
}

// Facing is the yaw applied to the whole figure, in radians.
func (h *Humanoid) Facing() float32 {
	return h.facing
}

// Advance moves the model clock forward by dt seconds.
func (h *Humanoid) Advance(dt float64) {
	if dt > 0 {
		h.elapsed += dt
	}
}

func (h *Humanoid) Elapsed() float64 {
	return h.elapsed
}

// Dispose releases the model. A disposed humanoid must not be attached again.
func (h *Humanoid) Dispose() {
	h.disposed = true
	h.joints = map[Bone]*Joint{}
}

func (h *Humanoid) Disposed() bool {
	return h.disposed
}

// BonePose is one bone's rotation in both Euler and quaternion form.
type BonePose struct {
	Euler [3]float32 `json:"euler"`
	Quat  [4]float32 `json:"quat"`
}

// Pose is a renderer-facing copy of the model's current state.
type Pose struct {
	ModelID     string             `json:"model_id"`
	Name        string             `json:"name"`
	Position    [3]float32         `json:"position"`
	Facing      float32            `json:"facing"`
	Bones       map[Bone]BonePose  `json:"bones"`
	Expressions map[string]float32 `json:"expressions"`
	// Channels holds the raw non-zero weights by canonical channel name,
	// before they are resolved onto the model's own expression names.
	Channels    map[string]float32 `json:"channels,omitempty"`
}

// Pose snapshots bones and resolved expression weights.
func (h *Humanoid) Pose() Pose {
	p := Pose{
		ModelID:     h.ID,
		Name:        h.Name,
		Position:    [3]float32{h.position[0], h.position[1], h.position[2]},
		Facing:      h.facing,
		Bones:       make(map[Bone]BonePose, len(h.joints)),
		Expressions: make(map[string]float32),
		Channels:    h.Weights.ToMap(),
	}
	for b, j := range h.joints {
		q := j.Rotation()
		p.Bones[b] = BonePose{
			Euler: [3]float32{j.Euler[0], j.Euler[1], j.Euler[2]},
			Quat:  [4]float32{q.V[0], q.V[1], q.V[2], q.W},
		}
	}
	for i := Expression(0); i < ExpressionCount; i++ {
		name, ok := h.Resolve(i)
		if !ok {
			continue
		}
		if w := h.Weights.Get(i); w >= p.Expressions[name] {
			p.Expressions[name] = w
		}
	}
	return p
}
