package animator

import (
	"github.com/fulopkrisztian-prog/Mia/internal/mood"
	"github.com/fulopkrisztian-prog/Mia/internal/rig"
)

// MoodExpression is the single channel a mood drives and its weight.
type MoodExpression struct {
	Channel rig.Expression
	Weight  float32
}

var moodExpressions = map[mood.Mood]MoodExpression{
	mood.Thinking: {Channel: rig.ExprNeutral, Weight: 0.8},
	mood.Scared:   {Channel: rig.ExprSurprised, Weight: 1.0},
	mood.Speaking: {Channel: rig.ExprHappy, Weight: 0.4},
}

// ExpressionFor returns the mapped channel for m. Idle has none.
func ExpressionFor(m mood.Mood) (MoodExpression, bool) {
	e, ok := moodExpressions[m]
	return e, ok
}
