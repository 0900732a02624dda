package caption

import (
	"math/rand"
	"strings"

	"github.com/fulopkrisztian-prog/Mia/internal/mood"
)

// Humanizer decorates a phrase so repeated captions read less canned. Each
// decoration is rolled independently.
type Humanizer struct {
	FillerChance   float64 `mapstructure:"filler_chance" yaml:"filler_chance"`
	EllipsisChance float64 `mapstructure:"ellipsis_chance" yaml:"ellipsis_chance"`
	ClosingChance  float64 `mapstructure:"closing_chance" yaml:"closing_chance"`
}

func DefaultHumanizer() Humanizer {
	return Humanizer{
		FillerChance:   0.4,
		EllipsisChance: 0.25,
		ClosingChance:  0.15,
	}
}

const ellipsis = "…"

// Apply returns phrase with an optional leading filler (never for Scared),
// trailing ellipsis and closing remark.
func (h Humanizer) Apply(rng *rand.Rand, m mood.Mood, phrase string, pack *Pack) string {
	filler := m != mood.Scared && rng.Float64() < h.FillerChance
	trail := rng.Float64() < h.EllipsisChance
	closing := rng.Float64() < h.ClosingChance

	out := phrase
	if filler && len(pack.Fillers) > 0 {
		out = pack.Fillers[rng.Intn(len(pack.Fillers))] + lowerFirst(out)
	}
	if trail {
		out = strings.TrimRight(out, ".") + ellipsis
	}
	if closing && pack.Closing != "" {
		out = out + " " + pack.Closing
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	// Keep "I" and contractions like "I'm" capitalized.
	if s[0] == 'I' && (len(s) == 1 || s[1] == ' ' || s[1] == '\'') {
		return s
	}
	r := []rune(s)
	r[0] = []rune(strings.ToLower(string(r[0])))[0]
	return string(r)
}
