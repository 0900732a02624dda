package mood

import "strings"

// DefaultAlarmTerms trigger the scared pose when they appear in a response.
var DefaultAlarmTerms = []string{
	"death",
	"dead",
	"kill",
	"danger",
	"emergency",
	"fatal",
	"suicide",
	"halál",
	"halott",
	"veszély",
	"vészhelyzet",
	"baleset",
}

// Classifier picks the display mood for an assistant response.
type Classifier struct {
	terms []string
}

// NewClassifier lowercases terms once. Empty terms are dropped; a nil or
// empty list falls back to DefaultAlarmTerms.
func NewClassifier(terms []string) *Classifier {
	if len(terms) == 0 {
		terms = DefaultAlarmTerms
	}
	c := &Classifier{}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			c.terms = append(c.terms, t)
		}
	}
	return c
}

// ForResponse returns Scared when text contains any alarm term, else Speaking.
func (c *Classifier) ForResponse(text string) Mood {
	if c.Alarming(text) {
		return Scared
	}
	return Speaking
}

func (c *Classifier) Alarming(text string) bool {
	lower := strings.ToLower(text)
	for _, t := range c.terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// Terms returns the normalized term list.
func (c *Classifier) Terms() []string {
	out := make([]string, len(c.terms))
	copy(out, c.terms)
	return out
}
