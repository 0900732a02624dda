package caption

import (
	"time"

	"github.com/fulopkrisztian-prog/Mia/internal/mood"
)

// Timing controls reveal speed and how long a caption stays up.
type Timing struct {
	Intervals    map[mood.Mood]time.Duration
	Default      time.Duration
	HideBase     time.Duration
	HidePerRune  time.Duration
	HideMaxExtra time.Duration
	Fade         time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Intervals: map[mood.Mood]time.Duration{
			mood.Thinking: 55 * time.Millisecond,
			mood.Speaking: 35 * time.Millisecond,
			mood.Scared:   28 * time.Millisecond,
		},
		Default:      40 * time.Millisecond,
		HideBase:     60 * time.Second,
		HidePerRune:  150 * time.Millisecond,
		HideMaxExtra: 15 * time.Second,
		Fade:         400 * time.Millisecond,
	}
}

// Interval is the delay between revealed runes for m.
func (t Timing) Interval(m mood.Mood) time.Duration {
	if d, ok := t.Intervals[m]; ok && d > 0 {
		return d
	}
	if t.Default > 0 {
		return t.Default
	}
	return 40 * time.Millisecond
}

// HideAfter is how long a fully revealed caption of n runes stays visible.
func (t Timing) HideAfter(n int) time.Duration {
	extra := time.Duration(n) * t.HidePerRune
	if extra > t.HideMaxExtra {
		extra = t.HideMaxExtra
	}
	return t.HideBase + extra
}
