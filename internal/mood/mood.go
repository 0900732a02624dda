// Package mood holds the avatar's discrete activity state and the rules that
// map chat activity onto it.
package mood

import (
	"errors"
	"fmt"
	"strings"
)

type Mood string

const (
	Idle     Mood = "idle"
	Thinking Mood = "thinking"
	Speaking Mood = "speaking"
	Scared   Mood = "scared"
)

// All lists every mood in display order.
var All = []Mood{Idle, Thinking, Speaking, Scared}

// Transient lists the moods the idle randomizer may pick from.
var Transient = []Mood{Thinking, Speaking, Scared}

var ErrUnknownMood = errors.New("unknown mood")

// Parse accepts a mood name in any case.
func Parse(s string) (Mood, error) {
	m := Mood(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMood, s)
	}
	return m, nil
}

func (m Mood) Valid() bool {
	switch m {
	case Idle, Thinking, Speaking, Scared:
		return true
	}
	return false
}

func (m Mood) String() string {
	return string(m)
}

// Category selects which model asset is shown for this mood.
func (m Mood) Category() Category {
	return CategoryFor(m)
}

// Category names one of the two avatar model assets.
type Category string

const (
	CategoryNeutral Category = "neutral"
	CategoryScared  Category = "scared"
)

// Categories lists both asset categories.
var Categories = []Category{CategoryNeutral, CategoryScared}

func CategoryFor(m Mood) Category {
	if m == Scared {
		return CategoryScared
	}
	return CategoryNeutral
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryNeutral, CategoryScared:
		return c, nil
	}
	return "", fmt.Errorf("unknown category: %q", s)
}

func (c Category) String() string {
	return string(c)
}

// Source records who asked for a transition.
type Source string

const (
	SourceChat   Source = "chat"
	SourceIdle   Source = "idle"
	SourceRevert Source = "revert"
	SourceHost   Source = "host"
)
