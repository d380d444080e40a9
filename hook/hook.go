// Package hook binds a fetch to a host component's lifecycle and exposes the
// result as observable loading, data and error state.
//
// The host calls Render on every render pass with the current URL and
// options. An Effect compares these dependencies with the previous pass and
// starts a new fetch only when they changed. State moves from Loading to
// either Succeeded (Data set) or Failed (Err set) and stays there until the
// dependencies change again.
//
//	h := hook.New(hook.FromClient[User](client))
//	defer h.Detach()
//	unsubscribe := h.Subscribe(func(s hook.State[User]) { view.Update(s) })
//	defer unsubscribe()
//	h.Render(ctx, "https://api.example.com/users/1", opts)
//
// Results of fetches that were superseded by a newer dependency change are
// discarded, so a slow earlier response cannot overwrite a newer one.
// WithoutGenerationGuard switches to last-writer-wins.
package hook

import (
	"context"
	"errors"
	"sync"

	"github.com/gaborage/go-fetchkit/httpclient"
	"github.com/gaborage/go-fetchkit/logger"
)

// ErrDetached is returned by Refetch after Detach.
var ErrDetached = errors.New("hook: detached")

// Deps are the change-detection inputs of a FetchHook. Options compares by
// pointer identity.
type Deps struct {
	URL     string
	Options *httpclient.RequestOptions
}

// Fetcher performs the call for a hook.
type Fetcher[T any] func(ctx context.Context, url string, opts *httpclient.RequestOptions) (T, error)

// FromClient adapts an httpclient.Client to a Fetcher decoding JSON into T.
func FromClient[T any](c *httpclient.Client) Fetcher[T] {
	return func(ctx context.Context, url string, opts *httpclient.RequestOptions) (T, error) {
		return httpclient.CallJSON[T](ctx, c, url, opts)
	}
}

// State is a snapshot of the hook's observable fields.
type State[T any] struct {
	Data    T
	HasData bool
	Err     error
	Loading bool
}

// Succeeded reports whether the last fetch produced data.
func (s State[T]) Succeeded() bool { return !s.Loading && s.HasData && s.Err == nil }

// Failed reports whether the last fetch failed.
func (s State[T]) Failed() bool { return !s.Loading && s.Err != nil }

// Option configures a FetchHook.
type Option func(*config)

type config struct {
	effect Effect[Deps]
	log    logger.Logger
	guard  bool
}

// WithEffect replaces the default DepsEffect.
func WithEffect(e Effect[Deps]) Option {
	return func(c *config) {
		if e != nil {
			c.effect = e
		}
	}
}

// WithLogger sets the logger for fetch lifecycle debug events.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}

// WithoutGenerationGuard lets every fetch write its result, so whichever
// overlapping fetch resolves last wins.
func WithoutGenerationGuard() Option {
	return func(c *config) { c.guard = false }
}

// FetchHook holds the state for one component instance.
type FetchHook[T any] struct {
	fetch  Fetcher[T]
	effect Effect[Deps]
	log    logger.Logger
	guard  bool

	mu          sync.Mutex
	state       State[T]
	generation  uint64
	lastDeps    Deps
	hasDeps     bool
	detached    bool
	subscribers map[uint64]func(State[T])
	nextSubID   uint64
	queue       []delivery[T]
	draining    bool

	inflight sync.WaitGroup
}

// delivery is one state change waiting to be sent to its subscribers.
type delivery[T any] struct {
	subs  []func(State[T])
	state State[T]
}

// New creates a hook in the initial Loading state. No fetch starts until Render.
func New[T any](fetch Fetcher[T], opts ...Option) *FetchHook[T] {
	cfg := config{log: logger.Nop(), guard: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.effect == nil {
		cfg.effect = NewDepsEffect[Deps]()
	}
	return &FetchHook[T]{
		fetch:       fetch,
		effect:      cfg.effect,
		log:         cfg.log,
		guard:       cfg.guard,
		state:       State[T]{Loading: true},
		subscribers: make(map[uint64]func(State[T])),
	}
}

// Render is called by the host on each render pass. It starts a fetch when
// the effect reports changed dependencies and returns the current state.
func (h *FetchHook[T]) Render(ctx context.Context, url string, opts *httpclient.RequestOptions) State[T] {
	deps := Deps{URL: url, Options: opts}
	h.effect.Run(deps, func() { h.start(ctx, deps) })
	return h.State()
}

// Refetch starts a fetch with the dependencies of the last Render,
// bypassing change detection.
func (h *FetchHook[T]) Refetch(ctx context.Context) error {
	h.mu.Lock()
	deps, ok, detached := h.lastDeps, h.hasDeps, h.detached
	h.mu.Unlock()

	if detached {
		return ErrDetached
	}
	if ok {
		h.start(ctx, deps)
	}
	return nil
}

// State returns the current snapshot.
func (h *FetchHook[T]) State() State[T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Subscribe registers fn to receive every state change. The returned function
// removes the subscription.
func (h *FetchHook[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextSubID
	h.nextSubID++
	h.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, id)
			h.mu.Unlock()
		})
	}
}

// Detach ends the component's lifetime. Fetches already running complete
// but their results are dropped, and later renders start nothing.
func (h *FetchHook[T]) Detach() {
	h.mu.Lock()
	h.detached = true
	clear(h.subscribers)
	h.queue = nil
	h.mu.Unlock()
}

// Wait blocks until every started fetch has returned.
func (h *FetchHook[T]) Wait() {
	h.inflight.Wait()
}

func (h *FetchHook[T]) start(ctx context.Context, deps Deps) {
	h.mu.Lock()
	if h.detached {
		h.mu.Unlock()
		return
	}
	h.generation++
	gen := h.generation
	h.lastDeps = deps
	h.hasDeps = true
	h.state.Loading = true
	h.inflight.Add(1)
	h.log.Debug().Str("url", deps.URL).Uint64("generation", gen).Msg("Fetch started")
	h.publishLocked()

	go func() {
		defer h.inflight.Done()
		data, err := h.fetch(ctx, deps.URL, deps.Options)
		h.complete(gen, deps.URL, data, err)
	}()
}

func (h *FetchHook[T]) complete(gen uint64, url string, data T, err error) {
	h.mu.Lock()
	if h.detached {
		h.mu.Unlock()
		h.log.Debug().Str("url", url).Msg("Fetch result dropped after detach")
		return
	}
	if h.guard && gen != h.generation {
		h.mu.Unlock()
		h.log.Debug().Str("url", url).Uint64("generation", gen).Msg("Stale fetch result discarded")
		return
	}

	if err != nil {
		var zero T
		h.state = State[T]{Data: zero, Err: err}
	} else {
		h.state = State[T]{Data: data, HasData: true}
	}
	if err != nil {
		h.log.Debug().Str("url", url).Err(err).Msg("Fetch failed")
	}
	h.publishLocked()
}

// publishLocked queues the current state for the current subscribers and
// releases h.mu. Deliveries leave in the order the states were written: the
// first publisher drains the queue while later ones only append to it.
// Subscribers run without h.mu held and may call back into the hook.
func (h *FetchHook[T]) publishLocked() {
	h.queue = append(h.queue, delivery[T]{subs: h.subscriberList(), state: h.state})
	if h.draining {
		h.mu.Unlock()
		return
	}
	h.draining = true
	for len(h.queue) > 0 {
		d := h.queue[0]
		h.queue = h.queue[1:]
		h.mu.Unlock()
		notify(d.subs, d.state)
		h.mu.Lock()
	}
	h.draining = false
	h.mu.Unlock()
}

// subscriberList must be called with h.mu held.
func (h *FetchHook[T]) subscriberList() []func(State[T]) {
	subs := make([]func(State[T]), 0, len(h.subscribers))
	for _, fn := range h.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func notify[T any](subs []func(State[T]), s State[T]) {
	for _, fn := range subs {
		fn(s)
	}
}
