package rig

import "github.com/go-gl/mathgl/mgl32"

// NewPlaceholder builds a synthetic humanoid with every tracked bone and the
// full VRM 1.0 preset set. It stands in when no model file is configured.
func NewPlaceholder(name string) *Humanoid {
	h := newHumanoid(name, "placeholder:"+name, FormatPlaceholder)
	for i, b := range Bones {
		h.joints[b] = &Joint{Node: i, Rest: mgl32.QuatIdent()}
	}
	for _, n := range ExpressionNames {
		h.expressions[n] = true
	}
	return h
}
