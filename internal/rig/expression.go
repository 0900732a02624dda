package rig

// Expression is a logical facial channel driven by the animator. Names follow
// the VRM 1.0 preset set.
type Expression int

const (
	ExprNeutral Expression = iota
	ExprHappy
	ExprAngry
	ExprSad
	ExprRelaxed
	ExprSurprised
	ExprAa
	ExprIh
	ExprOu
	ExprEe
	ExprOh
	ExprBlink
	ExprBlinkLeft
	ExprBlinkRight
	ExpressionCount
)

var ExpressionNames = [ExpressionCount]string{
	"neutral",
	"happy",
	"angry",
	"sad",
	"relaxed",
	"surprised",
	"aa",
	"ih",
	"ou",
	"ee",
	"oh",
	"blink",
	"blinkLeft",
	"blinkRight",
}

func (e Expression) String() string {
	if e < 0 || e >= ExpressionCount {
		return "unknown"
	}
	return ExpressionNames[e]
}

// IsBlink reports whether e belongs to the blink cycle rather than the
// per-frame mood mapping.
func (e Expression) IsBlink() bool {
	return e == ExprBlink || e == ExprBlinkLeft || e == ExprBlinkRight
}

// expressionFallbacks lists model preset names to try, in order, when
// binding a logical channel.
var expressionFallbacks = map[Expression][]string{
	ExprSurprised: {"surprised", "scared"},
	ExprNeutral:   {"neutral", "thinking"},
}

// vrm0Presets maps VRM 0.x blend shape presets onto VRM 1.0 names.
var vrm0Presets = map[string]string{
	"a":         "aa",
	"i":         "ih",
	"u":         "ou",
	"e":         "ee",
	"o":         "oh",
	"joy":       "happy",
	"sorrow":    "sad",
	"fun":       "relaxed",
	"blink_l":   "blinkLeft",
	"blink_r":   "blinkRight",
	"lookup":    "lookUp",
	"lookdown":  "lookDown",
	"lookleft":  "lookLeft",
	"lookright": "lookRight",
}

// canonicalExpression normalizes a preset or morph target name.
func canonicalExpression(name string) string {
	lower := toLowerASCII(name)
	if v, ok := vrm0Presets[lower]; ok {
		return v
	}
	for _, n := range ExpressionNames {
		if toLowerASCII(n) == lower {
			return n
		}
	}
	return lower
}

// ExpressionWeights holds one weight in [0,1] per logical channel.
type ExpressionWeights [ExpressionCount]float32

func (w *ExpressionWeights) Set(e Expression, value float32) {
	if e < 0 || e >= ExpressionCount {
		return
	}
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	w[e] = value
}

func (w *ExpressionWeights) Get(e Expression) float32 {
	if e < 0 || e >= ExpressionCount {
		return 0
	}
	return w[e]
}

func (w *ExpressionWeights) Reset() {
	for i := range w {
		w[i] = 0
	}
}

// ResetExceptBlink zeroes every channel the blink cycle does not own.
func (w *ExpressionWeights) ResetExceptBlink() {
	for i := range w {
		if !Expression(i).IsBlink() {
			w[i] = 0
		}
	}
}

// ToMap returns the non-zero channels keyed by name.
func (w *ExpressionWeights) ToMap() map[string]float32 {
	m := make(map[string]float32)
	for i, v := range w {
		if v != 0 {
			m[ExpressionNames[i]] = v
		}
	}
	return m
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
