package rig

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vrm1Fixture = `{
  "asset": {"version": "2.0"},
  "extensionsUsed": ["VRMC_vrm"],
  "nodes": [
    {"name": "Root"},
    {"name": "Head", "rotation": [0, 0, 0, 1]},
    {"name": "L_Arm"},
    {"name": "R_Arm"}
  ],
  "extensions": {
    "VRMC_vrm": {
      "specVersion": "1.0",
      "meta": {"name": "Mia"},
      "humanoid": {"humanBones": {
        "hips": {"node": 0},
        "head": {"node": 1},
        "leftUpperArm": {"node": 2},
        "rightUpperArm": {"node": 3},
        "leftFoot": {"node": 0}
      }},
      "expressions": {
        "preset": {"happy": {}, "aa": {}, "blink": {}, "neutral": {}},
        "custom": {"Scared": {}}
      }
    }
  }
}`

const vrm0Fixture = `{
  "asset": {"version": "2.0"},
  "extensionsUsed": ["VRM"],
  "nodes": [{"name": "J_Bip_C_Head"}, {"name": "J_Bip_L_UpperArm"}],
  "extensions": {
    "VRM": {
      "meta": {"title": "Old Mia"},
      "humanoid": {"humanBones": [
        {"bone": "head", "node": 0},
        {"bone": "leftUpperArm", "node": 1},
        {"bone": "rightUpperArm", "node": 9}
      ]},
      "blendShapeMaster": {"blendShapeGroups": [
        {"name": "Joy", "presetName": "joy"},
        {"name": "A", "presetName": "a"},
        {"name": "Blink_L", "presetName": "blink_l"},
        {"name": "Thinking", "presetName": "unknown"}
      ]}
    }
  }
}`

const plainFixture = `{
  "asset": {"version": "2.0"},
  "nodes": [
    {"name": "mixamorig:Hips"},
    {"name": "mixamorig:Head"},
    {"name": "mixamorig:LeftArm"},
    {"name": "mixamorig:LeftForeArm"},
    {"name": "mixamorig:RightArm"}
  ],
  "meshes": [{"primitives": [], "extras": {"targetNames": ["Surprised", "aa"]}}]
}`

func writeFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadVRM1(t *testing.T) {
	h, err := LoadFile(writeFixture(t, "Mia_Neutral.gltf", vrm1Fixture))
	require.NoError(t, err)

	assert.Equal(t, FormatVRM1, h.Format)
	assert.Equal(t, "Mia", h.Name)
	assert.NotEmpty(t, h.ID)
	assert.Equal(t, 4, h.BoneCount())
	assert.Zero(t, h.Facing())

	j, ok := h.Joint(BoneHead)
	require.True(t, ok)
	assert.Equal(t, 1, j.Node)

	assert.True(t, h.HasExpression("happy"))
	assert.True(t, h.HasExpression("scared"))

	name, ok := h.Resolve(ExprSurprised)
	require.True(t, ok)
	assert.Equal(t, "scared", name)
}

func TestLoadVRM0NormalizesPresets(t *testing.T) {
	h, err := LoadFile(writeFixture(t, "old.gltf", vrm0Fixture))
	require.NoError(t, err)

	assert.Equal(t, FormatVRM0, h.Format)
	assert.Equal(t, "Old Mia", h.Name)
	assert.InDelta(t, math.Pi, h.Facing(), 1e-6)

	// Out-of-range node indices are ignored.
	assert.Equal(t, 2, h.BoneCount())

	assert.True(t, h.HasExpression("happy"))
	assert.True(t, h.HasExpression("aa"))
	assert.True(t, h.HasExpression("blinkLeft"))

	name, ok := h.Resolve(ExprNeutral)
	require.True(t, ok)
	assert.Equal(t, "thinking", name)
}

func TestLoadPlainGLTFByNodeName(t *testing.T) {
	h, err := LoadFile(writeFixture(t, "plain.gltf", plainFixture))
	require.NoError(t, err)

	assert.Equal(t, FormatGLTF, h.Format)
	assert.Equal(t, "plain", h.Name)

	left, ok := h.Joint(BoneLeftUpperArm)
	require.True(t, ok)
	assert.Equal(t, 2, left.Node)

	fore, ok := h.Joint(BoneLeftLowerArm)
	require.True(t, ok)
	assert.Equal(t, 3, fore.Node)

	assert.True(t, h.HasExpression("surprised"))
	_, ok = h.Resolve(ExprHappy)
	assert.False(t, ok)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.vrm"))
	assert.Error(t, err)

	_, err = LoadFile(writeFixture(t, "empty.gltf", `{"asset": {"version": "2.0"}}`))
	assert.ErrorIs(t, err, ErrNoBones)
}

func TestExpressionWeightsClampAndReset(t *testing.T) {
	var w ExpressionWeights
	w.Set(ExprHappy, 1.7)
	w.Set(ExprSad, -1)
	w.Set(ExprBlink, 1)
	w.Set(Expression(99), 1)

	assert.Equal(t, float32(1), w.Get(ExprHappy))
	assert.Equal(t, float32(0), w.Get(ExprSad))

	w.ResetExceptBlink()
	assert.Equal(t, float32(0), w.Get(ExprHappy))
	assert.Equal(t, float32(1), w.Get(ExprBlink))
	assert.Equal(t, map[string]float32{"blink": 1}, w.ToMap())

	w.Reset()
	assert.Empty(t, w.ToMap())
}

func TestPlaceholderPose(t *testing.T) {
	h := NewPlaceholder("neutral")
	assert.Equal(t, len(Bones), h.BoneCount())

	require.True(t, h.SetBoneEuler(BoneHead, mgl32.Vec3{0, 0.4, 0}))
	h.Weights.Set(ExprHappy, 0.4)
	h.SetPosition(mgl32.Vec3{0, -1.4, 0})
	h.Advance(0.5)
	h.Advance(-1)
	assert.InDelta(t, 0.5, h.Elapsed(), 1e-9)

	p := h.Pose()
	assert.Equal(t, h.ID, p.ModelID)
	assert.Equal(t, float32(-1.4), p.Position[1])
	assert.InDelta(t, 0.4, p.Expressions["happy"], 1e-6)
	assert.Equal(t, map[string]float32{"happy": 0.4}, p.Channels)

	head := p.Bones[BoneHead]
	assert.InDelta(t, 0.4, head.Euler[1], 1e-6)
	// A pure yaw of 0.4 rad has y = sin(0.2), w = cos(0.2).
	assert.InDelta(t, math.Sin(0.2), head.Quat[1], 1e-5)
	assert.InDelta(t, math.Cos(0.2), head.Quat[3], 1e-5)

	h.Dispose()
	assert.True(t, h.Disposed())
	assert.False(t, h.SetBoneEuler(BoneHead, mgl32.Vec3{}))
}
