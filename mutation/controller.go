// Package mutation applies local state changes before the server confirms
// them, then reconciles with the server's answer or rolls back.
package mutation

import (
	"context"
	"errors"
	"sync"

	"github.com/habedi/microfeed/pkg/metrics"
	"github.com/rs/zerolog/log"
)

// State is where an entity is in its mutation lifecycle.
type State int

const (
	Stable State = iota
	Pending
	Reconciled
	RolledBack
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Reconciled:
		return "reconciled"
	case RolledBack:
		return "rolled_back"
	default:
		return "stable"
	}
}

var (
	// ErrInFlight is returned when a mutation for the same key has not settled yet.
	ErrInFlight = errors.New("a change for this item is already in progress")
	// ErrDetached is returned once the controller is closed.
	ErrDetached = errors.New("mutation controller is closed")
	// ErrConflict is returned when the server keeps reporting a different
	// value than the one asked for.
	ErrConflict = errors.New("the server reports a different state than requested")
)

// Observer is told about state changes, after the controller's lock is
// released. Calls are serialized, and for one key they arrive in the order the
// changes happened; a change already superseded by a newer one is not
// reported. An observer must not call Apply.
type Observer[T any] func(key string, state State, value T)

// RemoteFunc performs the server call for next and returns the server's
// authoritative value.
type RemoteFunc[T any] func(ctx context.Context, next T) (T, error)

type entry[T any] struct {
	value    T
	snapshot T
	state    State
}

// Controller runs one optimistic state machine per key.
type Controller[T any] struct {
	mu       sync.Mutex
	entries  map[string]*entry[T]
	observer Observer[T]
	closed   bool
	seq      uint64

	notifyMu  sync.Mutex
	delivered map[string]uint64
}

// NewController returns a controller. observer may be nil.
func NewController[T any](observer Observer[T]) *Controller[T] {
	return &Controller[T]{
		entries:   map[string]*entry[T]{},
		observer:  observer,
		delivered: map[string]uint64{},
	}
}

// Set records v as the settled value of key. It does nothing and returns
// false while a mutation for key is pending.
func (c *Controller[T]) Set(key string, v T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok && e.state == Pending {
		return false
	}
	c.entries[key] = &entry[T]{value: v, state: Stable}
	return true
}

// Get returns the current local value and state of key.
func (c *Controller[T]) Get(key string) (T, State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, Stable, false
	}
	return e.value, e.state, true
}

// Pending reports whether a mutation for key is in flight.
func (c *Controller[T]) Pending(key string) bool {
	_, st, _ := c.Get(key)
	return st == Pending
}

// Forget drops a settled key.
func (c *Controller[T]) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.state != Pending {
		delete(c.entries, key)
	}
}

// Apply computes the optimistic value from the current one, publishes it, then
// runs remote. On success the server's value replaces the optimistic one; on
// failure the previous value is restored exactly and remote's error returned.
// A second Apply for a key that is still pending fails with ErrInFlight and
// changes nothing.
func (c *Controller[T]) Apply(ctx context.Context, key string, optimistic func(T) T, remote RemoteFunc[T]) (T, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		var zero T
		return zero, ErrDetached
	}
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{}
		c.entries[key] = e
	}
	if e.state == Pending {
		current := e.value
		c.mu.Unlock()
		metrics.Mutations.WithLabelValues(metrics.OutcomeSuppressed).Inc()
		log.Debug().Str("key", key).Msg("Mutation suppressed, another one is in flight")
		return current, ErrInFlight
	}
	e.snapshot = e.value
	e.value = optimistic(e.value)
	e.state = Pending
	next := e.value
	seq := c.next()
	c.mu.Unlock()
	c.notify(key, seq, Pending, next)

	result, err := remote(ctx, next)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		metrics.Mutations.WithLabelValues(metrics.OutcomeDetached).Inc()
		log.Debug().Str("key", key).Msg("Ignoring mutation result after close")
		var zero T
		return zero, ErrDetached
	}
	if err != nil {
		e.value = e.snapshot
		e.state = RolledBack
		restored := e.value
		seq = c.next()
		c.mu.Unlock()
		metrics.Mutations.WithLabelValues(metrics.OutcomeRolledBack).Inc()
		log.Debug().Err(err).Str("key", key).Msg("Mutation rolled back")
		c.notify(key, seq, RolledBack, restored)
		return restored, err
	}
	e.value = result
	e.state = Reconciled
	seq = c.next()
	c.mu.Unlock()
	metrics.Mutations.WithLabelValues(metrics.OutcomeReconciled).Inc()
	c.notify(key, seq, Reconciled, result)
	return result, nil
}

// Close detaches the controller. Results that arrive afterwards are dropped.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// next numbers a state change. Callers hold mu.
func (c *Controller[T]) next() uint64 {
	c.seq++
	return c.seq
}

// notify reports change seq of key unless a later change was reported first.
func (c *Controller[T]) notify(key string, seq uint64, st State, v T) {
	if c.observer == nil {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if seq <= c.delivered[key] {
		return
	}
	c.delivered[key] = seq
	c.observer(key, st, v)
}
