package sched

import (
	"sync"
	"time"
)

// Registry hands out cancellable timer handles and guarantees that a
// cancelled handle's callback never runs, even when the underlying timer
// already fired and is waiting on the guard.
type Registry struct {
	clock Clock
	guard Guard

	mu      sync.Mutex
	nextID  uint64
	handles map[uint64]*Handle
	closed  bool
}

// Handle is a scheduled one-shot or repeating callback.
type Handle struct {
	id       uint64
	group    string
	interval time.Duration
	fn       func()
	reg      *Registry

	// guarded by reg.mu
	stopper Stopper
	done    bool
}

// NewRegistry creates a registry whose callbacks run inside guard.
func NewRegistry(clock Clock, guard Guard) *Registry {
	if clock == nil {
		clock = System()
	}
	if guard == nil {
		guard = &Mutex{}
	}
	return &Registry{
		clock:   clock,
		guard:   guard,
		handles: make(map[uint64]*Handle),
	}
}

// Clock returns the clock the registry schedules against.
func (r *Registry) Clock() Clock {
	return r.clock
}

// After runs f once after d.
func (r *Registry) After(group string, d time.Duration, f func()) *Handle {
	return r.schedule(group, d, 0, f)
}

// Every runs f every interval until the handle is cancelled.
func (r *Registry) Every(group string, interval time.Duration, f func()) *Handle {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return r.schedule(group, interval, interval, f)
}

func (r *Registry) schedule(group string, d, interval time.Duration, f func()) *Handle {
	h := &Handle{group: group, interval: interval, fn: f, reg: r}

	r.mu.Lock()
	if r.closed {
		h.done = true
		r.mu.Unlock()
		return h
	}
	r.nextID++
	h.id = r.nextID
	r.handles[h.id] = h
	r.mu.Unlock()

	r.arm(h, d)
	return h
}

func (r *Registry) arm(h *Handle, d time.Duration) {
	s := r.clock.AfterFunc(d, func() {
		r.guard.Do(func() { r.fire(h) })
	})

	r.mu.Lock()
	if h.done {
		r.mu.Unlock()
		s.Stop()
		return
	}
	h.stopper = s
	r.mu.Unlock()
}

func (r *Registry) fire(h *Handle) {
	r.mu.Lock()
	if h.done {
		r.mu.Unlock()
		return
	}
	if h.interval == 0 {
		h.done = true
		delete(r.handles, h.id)
	}
	r.mu.Unlock()

	h.fn()

	if h.interval > 0 {
		r.mu.Lock()
		alive := !h.done
		r.mu.Unlock()
		if alive {
			r.arm(h, h.interval)
		}
	}
}

// CancelGroup cancels every pending handle in group and returns how many
// were cancelled.
func (r *Registry) CancelGroup(group string) int {
	return r.cancelWhere(func(h *Handle) bool { return h.group == group })
}

// CancelAll cancels every pending handle.
func (r *Registry) CancelAll() int {
	return r.cancelWhere(func(*Handle) bool { return true })
}

// Close cancels everything and makes further scheduling a no-op.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.CancelAll()
}

func (r *Registry) cancelWhere(match func(*Handle) bool) int {
	r.mu.Lock()
	var stoppers []Stopper
	n := 0
	for id, h := range r.handles {
		if !match(h) {
			continue
		}
		h.done = true
		delete(r.handles, id)
		if h.stopper != nil {
			stoppers = append(stoppers, h.stopper)
		}
		n++
	}
	r.mu.Unlock()

	for _, s := range stoppers {
		s.Stop()
	}
	return n
}

// Pending returns the number of live handles in group.
func (r *Registry) Pending(group string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.handles {
		if h.group == group {
			n++
		}
	}
	return n
}

// Len returns the number of live handles across all groups.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Cancel stops the handle. It reports whether the handle was still live.
func (h *Handle) Cancel() bool {
	if h == nil || h.reg == nil {
		return false
	}
	r := h.reg
	r.mu.Lock()
	if h.done {
		r.mu.Unlock()
		return false
	}
	h.done = true
	delete(r.handles, h.id)
	s := h.stopper
	r.mu.Unlock()

	if s != nil {
		s.Stop()
	}
	return true
}

// Active reports whether the handle can still fire.
func (h *Handle) Active() bool {
	if h == nil || h.reg == nil {
		return false
	}
	h.reg.mu.Lock()
	defer h.reg.mu.Unlock()
	return !h.done
}

// Group returns the group the handle was scheduled under.
func (h *Handle) Group() string {
	if h == nil {
		return ""
	}
	return h.group
}
