// engine.go: Batching engine that owns the buffer and runs delivery cycles
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults applied by New for non-positive options.
const (
	DefaultMaxRetries   = 3
	DefaultMaxBatchSize = 50
)

// Options configures an Engine.
type Options struct {
	// MaxRetries bounds the delivery attempts of a single item.
	MaxRetries int

	// MaxBatchSize is both the largest slice pulled per cycle and the buffer
	// length at which Submit triggers a cycle immediately.
	MaxBatchSize int

	// DeliveryTimeout bounds each destination dispatch.
	DeliveryTimeout time.Duration

	// FailurePolicy selects which items are recycled after a failed cycle.
	FailurePolicy FailurePolicy

	// OnDrop is called once for each item discarded after its last attempt.
	OnDrop func(Item)

	// OnCycleError is called with the joined dispatch errors of a failed cycle.
	OnCycleError func(error)

	// Metrics is optional.
	Metrics *Metrics
}

// Engine buffers submitted items and delivers them in cycles through a
// Coordinator. At most one cycle runs at a time.
type Engine struct {
	opts        Options
	coordinator *Coordinator

	mu       sync.Mutex
	buffer   Buffer
	inFlight bool
	done     chan struct{}
}

// New creates an Engine that delivers through handler.
func New(handler Handler, opts Options) (*Engine, error) {
	if handler == nil {
		return nil, errors.New("queue: delivery handler is required")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = DefaultMaxBatchSize
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = DefaultDeliveryTimeout
	}

	return &Engine{
		opts:        opts,
		coordinator: NewCoordinator(handler, opts.DeliveryTimeout),
	}, nil
}

// Submit appends a record to the buffer. It never blocks on delivery and
// never fails. Reaching MaxBatchSize triggers a cycle.
func (e *Engine) Submit(destination string, payload any) {
	e.mu.Lock()
	e.buffer.Push(newItem(destination, payload))
	n := e.buffer.Len()
	e.mu.Unlock()

	e.opts.Metrics.observeSubmit(n)

	if n >= e.opts.MaxBatchSize {
		e.TriggerCycle()
	}
}

// TriggerCycle starts a cycle unless one is already running or the buffer is
// empty. It reports whether a new cycle was started.
func (e *Engine) TriggerCycle() bool {
	_, started := e.startCycle()
	return started
}

// startCycle returns the completion channel of the running cycle, starting a
// new one when idle with a non-empty buffer. The channel is nil when there
// is nothing to wait for.
func (e *Engine) startCycle() (<-chan struct{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inFlight {
		return e.done, false
	}
	if e.buffer.Len() == 0 {
		return nil, false
	}

	slice := e.buffer.TakeFront(e.opts.MaxBatchSize)
	done := make(chan struct{})
	e.inFlight = true
	e.done = done

	go e.runCycle(slice, done)
	return done, true
}

// runCycle delivers one slice and settles its items. Cycles are never
// cancelled; each dispatch is bounded by the delivery timeout instead.
func (e *Engine) runCycle(slice []Item, done chan struct{}) {
	start := time.Now()
	ctx := context.Background()

	groups := GroupByDestination(slice)
	results := make([]groupResult, len(groups))

	var g errgroup.Group
	for i, group := range groups {
		g.Go(func() error {
			err := e.coordinator.Deliver(ctx, group.Destination, group.Items)
			results[i] = groupResult{group: group, err: err}
			return err
		})
	}
	cycleErr := g.Wait()

	failed := e.opts.FailurePolicy.failedItems(slice, results)
	retry, dropped := Recycle(failed, e.opts.MaxRetries)

	e.mu.Lock()
	e.buffer.Append(retry...)
	n := e.buffer.Len()
	e.mu.Unlock()

	if cycleErr != nil && e.opts.OnCycleError != nil {
		var errs []error
		for _, r := range results {
			if r.err != nil {
				errs = append(errs, r.err)
			}
		}
		e.opts.OnCycleError(errors.Join(errs...))
	}
	if e.opts.OnDrop != nil {
		for _, item := range dropped {
			e.opts.OnDrop(item)
		}
	}
	e.opts.Metrics.observeCycle(len(slice)-len(failed), len(retry), len(dropped), n,
		cycleErr != nil, time.Since(start).Seconds())

	e.mu.Lock()
	e.inFlight = false
	e.done = nil
	e.mu.Unlock()
	close(done)
}

// Drain waits for the running cycle, then runs one more cycle if the buffer
// still holds items and waits for it too. It does not loop: items recycled
// by that final cycle stay buffered. ctx bounds only the wait.
func (e *Engine) Drain(ctx context.Context) error {
	e.mu.Lock()
	running := e.done
	e.mu.Unlock()

	if running != nil {
		if err := wait(ctx, running); err != nil {
			return err
		}
	}

	if next, _ := e.startCycle(); next != nil {
		return wait(ctx, next)
	}
	return nil
}

func wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TakeAll empties the buffer and returns its items without delivering them.
// Items of a cycle in flight are not included.
func (e *Engine) TakeAll() []Item {
	e.mu.Lock()
	items := e.buffer.TakeAll()
	e.mu.Unlock()

	e.opts.Metrics.observeBufferLen(0)
	return items
}

// Resolve settles the in-flight dispatch for destination. See
// Coordinator.Resolve.
func (e *Engine) Resolve(destination string, err error) bool {
	return e.coordinator.Resolve(destination, err)
}

// Len returns the number of buffered items, excluding a cycle in flight.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Len()
}

// InFlight reports whether a cycle is running.
func (e *Engine) InFlight() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight
}

// PendingDispatches returns the number of unresolved dispatches.
func (e *Engine) PendingDispatches() int {
	return e.coordinator.Pending()
}

// Options returns the effective options after defaults.
func (e *Engine) Options() Options {
	return e.opts
}
