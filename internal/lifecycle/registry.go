package lifecycle

import (
	"sync"
	"time"
)

// Registry holds one Controller per owner key, typically a session ID, so every browser
// session gets its own component instance.
type Registry[T any] struct {
	mu        sync.Mutex
	opts      Options
	idleTTL   time.Duration
	items     map[string]*Controller[T]
	lastSweep time.Time
	now       func() time.Time
}

// NewRegistry constructs a registry. Controllers untouched for idleTTL and not loading are
// evicted lazily; a zero idleTTL keeps them forever.
func NewRegistry[T any](opts Options, idleTTL time.Duration) *Registry[T] {
	return &Registry[T]{
		opts:    opts,
		idleTTL: idleTTL,
		items:   make(map[string]*Controller[T]),
		now:     time.Now,
	}
}

// For returns the controller owned by key, creating it in PhaseIdle.
func (r *Registry[T]) For(key string) *Controller[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	ctrl, ok := r.items[key]
	if !ok {
		ctrl = New[T](r.opts)
		r.items[key] = ctrl
	}
	return ctrl
}

// Peek returns the controller for key without creating one.
func (r *Registry[T]) Peek(key string) (*Controller[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctrl, ok := r.items[key]
	return ctrl, ok
}

// Len reports the number of live controllers.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Sweep evicts idle controllers immediately and returns how many were removed.
func (r *Registry[T]) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictLocked(r.now())
}

func (r *Registry[T]) sweepLocked() {
	if r.idleTTL <= 0 {
		return
	}
	now := r.now()
	if now.Sub(r.lastSweep) < r.idleTTL {
		return
	}
	r.evictLocked(now)
}

func (r *Registry[T]) evictLocked(now time.Time) int {
	r.lastSweep = now
	if r.idleTTL <= 0 {
		return 0
	}
	removed := 0
	for key, ctrl := range r.items {
		idle, busy := ctrl.idleSince(now)
		if busy || idle < r.idleTTL {
			continue
		}
		delete(r.items, key)
		removed++
	}
	return removed
}
