package mood

import (
	"sync"
	"time"
)

// Transition is one real change of mood.
type Transition struct {
	From       Mood      `json:"from"`
	To         Mood      `json:"to"`
	Generation uint64    `json:"generation"`
	Source     Source    `json:"source"`
	At         time.Time `json:"at"`
}

// Listener is notified after every real transition, outside the state lock.
type Listener func(Transition)

// State is the single mood cell. Writes are read-after-write consistent and
// setting the current value again is a no-op.
type State struct {
	mu sync.RWMutex

	current    Mood
	generation uint64

	history     []Transition
	historySize int

	listeners []Listener
	now       func() time.Time
}

// NewState creates a state starting at Idle. now may be nil.
func NewState(historySize int, now func() time.Time) *State {
	if historySize <= 0 {
		historySize = 32
	}
	if now == nil {
		now = time.Now
	}
	return &State{
		current:     Idle,
		historySize: historySize,
		history:     make([]Transition, 0, historySize),
		now:         now,
	}
}

// Subscribe registers l for every subsequent transition.
func (s *State) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *State) Current() Mood {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Generation increments on every real transition.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Set changes the mood. It reports false, and notifies nobody, when m is
// already current or not a valid mood.
func (s *State) Set(m Mood, src Source) (Transition, bool) {
	s.mu.Lock()
	if !m.Valid() || m == s.current {
		s.mu.Unlock()
		return Transition{}, false
	}
	tr := s.apply(m, src)
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(tr)
	}
	return tr, true
}

// RevertIfCurrent returns to Idle only when no transition happened since
// generation gen.
func (s *State) RevertIfCurrent(gen uint64, src Source) (Transition, bool) {
	s.mu.Lock()
	if s.generation != gen || s.current == Idle {
		s.mu.Unlock()
		return Transition{}, false
	}
	tr := s.apply(Idle, src)
	listeners := s.listeners
	s.mu.Unlock()

	for _, l := range listeners {
		l(tr)
	}
	return tr, true
}

func (s *State) apply(m Mood, src Source) Transition {
	s.generation++
	tr := Transition{
		From:       s.current,
		To:         m,
		Generation: s.generation,
		Source:     src,
		At:         s.now(),
	}
	s.current = m

	s.history = append(s.history, tr)
	if len(s.history) > s.historySize {
		s.history = s.history[1:]
	}
	return tr
}

// History returns up to n of the most recent transitions, oldest first.
func (s *State) History(n int) []Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.history) {
		n = len(s.history)
	}
	out := make([]Transition, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}
