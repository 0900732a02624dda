package rig

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

const (
	extVRM0 = "VRM"
	extVRM1 = "VRMC_vrm"
)

var ErrNoBones = errors.New("model has no humanoid bones")

type vrm1Extension struct {
	SpecVersion string `json:"specVersion"`
	Meta        struct {
		Name string `json:"name"`
	} `json:"meta"`
	Humanoid struct {
		HumanBones map[string]struct {
			Node int `json:"node"`
		} `json:"humanBones"`
	} `json:"humanoid"`
	Expressions struct {
		Preset map[string]json.RawMessage `json:"preset"`
		Custom map[string]json.RawMessage `json:"custom"`
	} `json:"expressions"`
}

type vrm0Extension struct {
	Meta struct {
		Title string `json:"title"`
	} `json:"meta"`
	Humanoid struct {
		HumanBones []struct {
			Bone string `json:"bone"`
			Node int    `json:"node"`
		} `json:"humanBones"`
	} `json:"humanoid"`
	BlendShapeMaster struct {
		BlendShapeGroups []struct {
			Name       string `json:"name"`
			PresetName string `json:"presetName"`
		} `json:"blendShapeGroups"`
	} `json:"blendShapeMaster"`
}

// LoadFile parses a .vrm, .glb or .gltf file into a Humanoid.
func LoadFile(path string) (*Humanoid, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	h, err := FromDocument(doc, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return h, nil
}

// FromDocument binds bones and expressions from a decoded glTF document.
// VRM 1.0 and 0.x extensions are preferred; plain glTF falls back to node
// names and morph target names.
func FromDocument(doc *gltf.Document, source string) (*Humanoid, error) {
	name := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	var h *Humanoid
	switch {
	case hasExtension(doc, extVRM1):
		var ext vrm1Extension
		if err := decodeExtension(doc, extVRM1, &ext); err != nil {
			return nil, err
		}
		h = newHumanoid(name, source, FormatVRM1)
		if ext.Meta.Name != "" {
			h.Name = ext.Meta.Name
		}
		for bone, hb := range ext.Humanoid.HumanBones {
			h.bind(doc, Bone(bone), hb.Node)
		}
		for preset := range ext.Expressions.Preset {
			h.expressions[canonicalExpression(preset)] = true
		}
		for custom := range ext.Expressions.Custom {
			h.expressions[canonicalExpression(custom)] = true
		}

	case hasExtension(doc, extVRM0):
		var ext vrm0Extension
		if err := decodeExtension(doc, extVRM0, &ext); err != nil {
			return nil, err
		}
		h = newHumanoid(name, source, FormatVRM0)
		if ext.Meta.Title != "" {
			h.Name = ext.Meta.Title
		}
		for _, hb := range ext.Humanoid.HumanBones {
			h.bind(doc, Bone(hb.Bone), hb.Node)
		}
		for _, g := range ext.BlendShapeMaster.BlendShapeGroups {
			preset := g.PresetName
			if preset == "" || preset == "unknown" {
				preset = g.Name
			}
			if preset != "" {
				h.expressions[canonicalExpression(preset)] = true
			}
		}

	default:
		h = newHumanoid(name, source, FormatGLTF)
		bindByNodeName(doc, h)
	}

	if len(h.expressions) == 0 {
		for _, t := range morphTargetNames(doc) {
			h.expressions[canonicalExpression(t)] = true
		}
	}

	if len(h.joints) == 0 {
		return nil, ErrNoBones
	}
	return h, nil
}

func hasExtension(doc *gltf.Document, name string) bool {
	if doc.Extensions == nil {
		return false
	}
	_, ok := doc.Extensions[name]
	return ok
}

// decodeExtension round-trips the extension value through JSON; unknown
// extensions arrive either as raw JSON or as generic maps.
func decodeExtension(doc *gltf.Document, name string, v any) error {
	raw, err := json.Marshal(doc.Extensions[name])
	if err != nil {
		return fmt.Errorf("encode %s extension: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s extension: %w", name, err)
	}
	return nil
}

func (h *Humanoid) bind(doc *gltf.Document, b Bone, node int) {
	if node < 0 || node >= len(doc.Nodes) || doc.Nodes[node] == nil {
		return
	}
	if !isTracked(b) {
		return
	}
	r := doc.Nodes[node].Rotation
	rest := mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}}
	if rest.Len() == 0 {
		rest = mgl32.QuatIdent()
	}
	h.joints[b] = &Joint{Node: node, Rest: rest}
}

func isTracked(b Bone) bool {
	for _, t := range Bones {
		if t == b {
			return true
		}
	}
	return false
}

var boneAliases = map[Bone][]string{
	BoneHips:          {"hips", "pelvis"},
	BoneSpine:         {"spine"},
	BoneChest:         {"chest", "spine1"},
	BoneNeck:          {"neck"},
	BoneHead:          {"head"},
	BoneLeftUpperArm:  {"leftupperarm", "lupperarm", "upperarml", "leftarm"},
	BoneRightUpperArm: {"rightupperarm", "rupperarm", "upperarmr", "rightarm"},
	BoneLeftLowerArm:  {"leftlowerarm", "llowerarm", "lowerarml", "leftforearm"},
	BoneRightLowerArm: {"rightlowerarm", "rlowerarm", "lowerarmr", "rightforearm"},
}

// bindByNodeName matches common rig naming schemes (VRoid J_Bip_*, Mixamo)
// by suffix after stripping separators.
func bindByNodeName(doc *gltf.Document, h *Humanoid) {
	for i, n := range doc.Nodes {
		if n == nil || n.Name == "" {
			continue
		}
		key := normalizeNodeName(n.Name)
		for _, b := range Bones {
			if _, done := h.joints[b]; done {
				continue
			}
			if matchesAlias(key, boneAliases[b]) {
				h.bind(doc, b, i)
				break
			}
		}
	}
}

func matchesAlias(key string, aliases []string) bool {
	for _, a := range aliases {
		if strings.HasSuffix(key, a) {
			return true
		}
	}
	return false
}

func normalizeNodeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func morphTargetNames(doc *gltf.Document) []string {
	var names []string
	for _, m := range doc.Meshes {
		if m == nil || m.Extras == nil {
			continue
		}
		raw, err := json.Marshal(m.Extras)
		if err != nil {
			continue
		}
		var extras struct {
			TargetNames []string `json:"targetNames"`
		}
		if json.Unmarshal(raw, &extras) == nil {
			names = append(names, extras.TargetNames...)
		}
	}
	return names
}
