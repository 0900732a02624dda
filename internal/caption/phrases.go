package caption

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fulopkrisztian-prog/Mia/internal/mood"
)

var ErrEmptyPhrase = errors.New("empty caption phrase")

// Pack is the text a caption is built from.
type Pack struct {
	Phrases map[mood.Mood][]string `yaml:"phrases"`
	Fillers []string               `yaml:"fillers"`
	Closing string                 `yaml:"closing"`
}

func DefaultPack() *Pack {
	return &Pack{
		Phrases: map[mood.Mood][]string{
			mood.Thinking: {
				"Let me think about that.",
				"Where did I put that thought?",
				"Connecting the dots.",
				"One moment, sorting this out.",
				"Thinking it through.",
			},
			mood.Speaking: {
				"Here's what I found.",
				"Oh, I know this one!",
				"Let me explain.",
				"This part is fun.",
				"Got it, listen.",
			},
			mood.Scared: {
				"Wait, that sounds serious.",
				"Oh no.",
				"That is frightening.",
				"Please be careful!",
				"I don't like the sound of that.",
			},
		},
		Fillers: []string{"Hmm… ", "Well… ", "Oh… ", "Let's see… ", "Okay… "},
		Closing: "What do you think?",
	}
}

// LoadPack reads a YAML pack and merges it over the built-in one. Moods
// missing from the file keep the built-in phrases.
func LoadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrase pack: %w", err)
	}

	var overlay Pack
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parse phrase pack: %w", err)
	}

	pack := DefaultPack()
	pack.Merge(&overlay)
	if err := pack.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pack, nil
}

// Merge replaces per-mood lists, fillers and the closing remark with the
// non-empty values from other.
func (p *Pack) Merge(other *Pack) {
	if other == nil {
		return
	}
	if p.Phrases == nil {
		p.Phrases = make(map[mood.Mood][]string)
	}
	for m, list := range other.Phrases {
		if len(list) > 0 {
			p.Phrases[m] = list
		}
	}
	if len(other.Fillers) > 0 {
		p.Fillers = other.Fillers
	}
	if other.Closing != "" {
		p.Closing = other.Closing
	}
}

// Validate rejects unknown moods, idle phrases and empty entries so a
// zero-length caption can never be produced.
func (p *Pack) Validate() error {
	for m, list := range p.Phrases {
		if !m.Valid() {
			return fmt.Errorf("%w: %q", mood.ErrUnknownMood, m)
		}
		if m == mood.Idle && len(list) > 0 {
			return errors.New("idle mood cannot have caption phrases")
		}
		for i, s := range list {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%w: %s[%d]", ErrEmptyPhrase, m, i)
			}
		}
	}
	for _, m := range mood.Transient {
		if len(p.Phrases[m]) == 0 {
			return fmt.Errorf("%w: no phrases for %s", ErrEmptyPhrase, m)
		}
	}
	return nil
}
