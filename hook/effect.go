package hook

import "sync"

// Effect decides whether a callback runs for a given change-detection key.
// It stands in for a host framework's effect system: the hook hands it the
// current dependencies on every render and the effect calls fn when they
// warrant a new fetch.
type Effect[K comparable] interface {
	Run(key K, fn func())
}

// DepsEffect runs fn on the first call and again whenever key differs from
// the previous key by ==. Pointer members compare by identity, so a freshly
// allocated value counts as a change even when its contents are equal.
type DepsEffect[K comparable] struct {
	mu      sync.Mutex
	started bool
	last    K
}

// NewDepsEffect returns an effect that has not run yet.
func NewDepsEffect[K comparable]() *DepsEffect[K] {
	return &DepsEffect[K]{}
}

func (e *DepsEffect[K]) Run(key K, fn func()) {
	e.mu.Lock()
	if e.started && e.last == key {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.last = key
	e.mu.Unlock()

	fn()
}

// Reset makes the next Run call fn regardless of key.
func (e *DepsEffect[K]) Reset() {
	e.mu.Lock()
	e.started = false
	e.mu.Unlock()
}

// EffectFunc adapts a plain function to Effect.
type EffectFunc[K comparable] func(key K, fn func())

func (f EffectFunc[K]) Run(key K, fn func()) { f(key, fn) }
