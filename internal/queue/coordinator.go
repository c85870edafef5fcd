// coordinator.go: Request/response correlation between the engine and an asynchronous sender
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

	"github.com/google/uuid"
)

// DefaultDeliveryTimeout bounds how long a dispatch waits for its sender.
const DefaultDeliveryTimeout = 10 * time.Second

var (
	// ErrDeliveryTimeout is returned when a sender never resolves a dispatch.
	ErrDeliveryTimeout = errors.New("queue: batch delivery timed out")

	// ErrDeliveryFailed is used when a sender fails a dispatch without a cause.
	ErrDeliveryFailed = errors.New("queue: batch delivery failed")
)

// Dispatch is a single outstanding delivery of one destination group. The
// sender resolves it exactly once with Succeed or Fail; later calls are
// ignored.
type Dispatch struct {
	// ID correlates the dispatch across goroutines and logs.
	ID string

	// Destination is the ingestion route of every item in the group.
	Destination string

	// Items are the grouped records, oldest first.
	Items []Item

	once sync.Once
	done chan error
}

func newDispatch(destination string, items []Item) *Dispatch {
	return &Dispatch{
		ID:          uuid.NewString(),
		Destination: destination,
		Items:       items,
		done:        make(chan error, 1),
	}
}

// Payloads returns the item payloads in order.
func (d *Dispatch) Payloads() []any {
	return Group{Destination: d.Destination, Items: d.Items}.Payloads()
}

// Succeed reports that the group was delivered.
func (d *Dispatch) Succeed() {
	d.resolve(nil)
}

// Fail reports that the group could not be delivered.
func (d *Dispatch) Fail(err error) {
	if err == nil {
		err = ErrDeliveryFailed
	}
	d.resolve(err)
}

// resolve reports whether this call settled the dispatch.
func (d *Dispatch) resolve(err error) bool {
	settled := false
	d.once.Do(func() {
		d.done <- err
		settled = true
	})
	return settled
}

// Handler is notified of every new dispatch and must eventually resolve it.
// It runs on its own goroutine and may return before the dispatch settles.
type Handler func(d *Dispatch)

// Coordinator hands destination groups to a Handler and waits for the
// correlated outcome.
type Coordinator struct {
	handler Handler
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*Dispatch
}

// NewCoordinator creates a Coordinator. A non-positive timeout selects
// DefaultDeliveryTimeout.
func NewCoordinator(handler Handler, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &Coordinator{
		handler: handler,
		timeout: timeout,
		pending: make(map[string]*Dispatch),
	}
}

// Deliver notifies the handler of a group and blocks until the dispatch is
// resolved, the delivery timeout fires or ctx is done. The dispatch is always
// retired before Deliver returns.
func (c *Coordinator) Deliver(ctx context.Context, destination string, items []Item) error {
	d := newDispatch(destination, items)

	c.mu.Lock()
	c.pending[d.ID] = d
	c.mu.Unlock()
	defer c.retire(d)

	go c.handler(d)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case err := <-d.done:
		return err
	case <-timer.C:
		// If the sender won the race, its outcome is what we read back.
		d.resolve(ErrDeliveryTimeout)
		return <-d.done
	case <-ctx.Done():
		d.resolve(ctx.Err())
		return <-d.done
	}
}

// Resolve settles the pending dispatch for destination, for senders that
// reply by destination rather than holding the *Dispatch. A nil err marks
// success. It reports whether a pending dispatch was found.
func (c *Coordinator) Resolve(destination string, err error) bool {
	c.mu.Lock()
	var match *Dispatch
	for _, d := range c.pending {
		if d.Destination == destination {
			match = d
			break
		}
	}
	c.mu.Unlock()

	if match == nil {
		return false
	}
	if err != nil {
		match.Fail(err)
	} else {
		match.Succeed()
	}
	return true
}

// Pending returns the number of dispatches awaiting resolution.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Coordinator) retire(d *Dispatch) {
	c.mu.Lock()
	delete(c.pending, d.ID)
	c.mu.Unlock()
}
