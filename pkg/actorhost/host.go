package actorhost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gracevcs/grace-server/pkg/log"
	"github.com/gracevcs/grace-server/pkg/metrics"
)

// Actor is the contract every virtual actor implements. The host
// guarantees at most one live instance per (kind, id) and that calls
// into it execute one at a time in arrival order.
type Actor interface {
	Kind() string
	ID() string

	// Activate rebuilds in-memory state from durable state. It runs on
	// first use and again after the actor marked itself poisoned.
	Activate(ctx context.Context) error

	// Poisoned reports whether the last turn left in-memory state in
	// doubt; the next turn re-runs Activate before executing.
	Poisoned() bool
}

// ReminderReceiver is implemented by actors that accept timer-driven
// re-entry. Delivery happens under normal turn discipline.
type ReminderReceiver interface {
	ReceiveReminder(ctx context.Context, name string, payload []byte, due time.Time, period time.Duration) error
}

// Factory constructs an actor instance for an id.
type Factory func(id string) Actor

// DefaultIdleEviction is how long an actor may sit unused before the
// host releases its instance.
const DefaultIdleEviction = 30 * time.Minute

// Host provides the virtual-actor abstraction: single-active-instance
// placement and serial turn dispatch per (kind, id).
type Host struct {
	mu        sync.Mutex
	factories map[string]Factory
	refs      map[string]*Ref
	idleAfter time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewHost creates a host. A non-positive idleAfter falls back to
// DefaultIdleEviction.
func NewHost(idleAfter time.Duration) *Host {
	if idleAfter <= 0 {
		idleAfter = DefaultIdleEviction
	}
	return &Host{
		factories: make(map[string]Factory),
		refs:      make(map[string]*Ref),
		idleAfter: idleAfter,
		stopCh:    make(chan struct{}),
	}
}

// RegisterKind binds an actor kind to its constructor.
func (h *Host) RegisterKind(kind string, factory Factory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.factories[kind] = factory
}

// Start begins the idle eviction loop.
func (h *Host) Start() {
	go h.evictLoop()
}

// Stop stops the eviction loop.
func (h *Host) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func refKey(kind, id string) string { return kind + "/" + id }

// Proxy returns the single live Ref for (kind, id), materializing the
// actor on first use. Activation itself is deferred to the first turn.
func (h *Host) Proxy(kind, id string) (*Ref, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := refKey(kind, id)
	if ref, ok := h.refs[key]; ok {
		return ref, nil
	}

	factory, ok := h.factories[kind]
	if !ok {
		return nil, fmt.Errorf("unknown actor kind: %s", kind)
	}

	ref := &Ref{
		host:     h,
		kind:     kind,
		id:       id,
		actor:    factory(id),
		lastUsed: time.Now(),
	}
	h.refs[key] = ref
	metrics.ActorsActive.WithLabelValues(kind).Inc()
	return ref, nil
}

// DeliverReminder re-enters the owning actor with a fired reminder,
// under the same turn discipline as regular calls.
func (h *Host) DeliverReminder(ctx context.Context, kind, id, name string, payload []byte, due time.Time, period time.Duration) error {
	ref, err := h.Proxy(kind, id)
	if err != nil {
		return err
	}
	return ref.Invoke(ctx, "ReceiveReminder:"+name, func(ctx context.Context, actor Actor) error {
		receiver, ok := actor.(ReminderReceiver)
		if !ok {
			return fmt.Errorf("actor kind %s does not receive reminders", kind)
		}
		return receiver.ReceiveReminder(ctx, name, payload, due, period)
	})
}

func (h *Host) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.evictIdle()
		case <-h.stopCh:
			return
		}
	}
}

func (h *Host) evictIdle() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-h.idleAfter)
	for key, ref := range h.refs {
		// Only evict refs with no turn in flight.
		if !ref.mu.TryLock() {
			continue
		}
		if ref.lastUsed.Before(cutoff) {
			ref.evicted = true
			delete(h.refs, key)
			metrics.ActorsActive.WithLabelValues(ref.kind).Dec()
		}
		ref.mu.Unlock()
	}
}

// Ref is a typed invocation handle for a single actor instance.
type Ref struct {
	host  *Host
	kind  string
	id    string
	actor Actor

	mu        sync.Mutex
	activated bool
	evicted   bool
	lastUsed  time.Time
}

// Actor exposes the underlying instance. Only call inside Invoke.
func (r *Ref) Actor() Actor { return r.actor }

// Invoke runs one turn, handing fn the live actor instance. The Pre
// hook re-runs Activate for fresh or poisoned instances; the Post hook
// records duration and outcome.
func (r *Ref) Invoke(ctx context.Context, op string, fn func(ctx context.Context, actor Actor) error) error {
	for {
		r.mu.Lock()
		if !r.evicted {
			break
		}
		// Lost the race against idle eviction; re-resolve the ref.
		r.mu.Unlock()
		next, err := r.host.Proxy(r.kind, r.id)
		if err != nil {
			return err
		}
		r = next
	}
	defer r.mu.Unlock()

	r.lastUsed = time.Now()
	logger := log.WithActor(r.kind, r.id)
	if cid := CorrelationFrom(ctx); cid != "" {
		logger = logger.With().Str("correlation_id", cid).Logger()
	}

	timer := metrics.NewTimer()
	logger.Debug().Str("op", op).Msg("turn start")

	if !r.activated || r.actor.Poisoned() {
		if err := r.actor.Activate(ctx); err != nil {
			metrics.ActorTurnsTotal.WithLabelValues(r.kind, "activate_error").Inc()
			logger.Error().Err(err).Str("op", op).Msg("activation failed")
			return err
		}
		r.activated = true
		metrics.ActorActivationsTotal.WithLabelValues(r.kind).Inc()
	}

	err := fn(ctx, r.actor)

	timer.ObserveDuration(metrics.ActorTurnDuration.WithLabelValues(r.kind))
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.ActorTurnsTotal.WithLabelValues(r.kind, outcome).Inc()
	logger.Debug().Str("op", op).Dur("duration", timer.Elapsed()).Str("outcome", outcome).Msg("turn end")
	return err
}

// Call invokes one typed turn against the actor at (kind, id).
func Call[T Actor](ctx context.Context, h *Host, kind, id, op string, fn func(ctx context.Context, actor T) error) error {
	ref, err := h.Proxy(kind, id)
	if err != nil {
		return err
	}
	return ref.Invoke(ctx, op, func(ctx context.Context, actor Actor) error {
		typed, ok := actor.(T)
		if !ok {
			return fmt.Errorf("actor kind %s has unexpected type %T", kind, actor)
		}
		return fn(ctx, typed)
	})
}
