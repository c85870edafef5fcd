// page.go: Lifecycle driver for hosts that may be torn down at any moment
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"sync"
	"time"

	"github.com/agilira/iris-writer-logsicle/internal/queue"
)

// VisibilityState is the host's visibility as reported by its page events.
type VisibilityState int

const (
	Visible VisibilityState = iota
	Hidden
)

// String returns the state name.
func (s VisibilityState) String() string {
	if s == Hidden {
		return "hidden"
	}
	return "visible"
}

// PageEvents is a source of host lifecycle notifications. Each subscription
// returns a function that removes the listener.
type PageEvents interface {
	OnVisibilityChange(func(VisibilityState)) (remove func())
	OnBeforeUnload(func()) (remove func())
}

// Teardown is the part of the engine the page driver needs.
type Teardown interface {
	Cycler
	TakeAll() []queue.Item
}

// BeaconFunc sends one destination group without waiting for, or reporting,
// the outcome.
type BeaconFunc func(destination string, payloads []any)

// PageDriver triggers cycles on a timer like ProcessDriver and flushes the
// whole buffer through a one-way beacon when the host is hidden or about to
// unload.
type PageDriver struct {
	timer  *flushTimer
	engine Teardown
	beacon BeaconFunc

	mu       sync.Mutex
	removers []func()
}

// NewPageDriver creates a stopped driver. A nil beacon disables the teardown
// flush: the hooks then leave the buffer untouched.
func NewPageDriver(engine Teardown, interval time.Duration, beacon BeaconFunc) *PageDriver {
	return &PageDriver{
		timer:  newFlushTimer(engine, interval),
		engine: engine,
		beacon: beacon,
	}
}

// Start arms the periodic timer.
func (d *PageDriver) Start() {
	d.timer.start()
}

// Attach subscribes the teardown hooks to events. Listeners are removed by
// Stop.
func (d *PageDriver) Attach(events PageEvents) {
	removeVisibility := events.OnVisibilityChange(d.VisibilityChanged)
	removeUnload := events.OnBeforeUnload(d.BeforeUnload)

	d.mu.Lock()
	d.removers = append(d.removers, removeVisibility, removeUnload)
	d.mu.Unlock()
}

// VisibilityChanged flushes synchronously when the host becomes hidden.
func (d *PageDriver) VisibilityChanged(state VisibilityState) {
	if state == Hidden {
		d.FlushSync()
	}
}

// BeforeUnload flushes synchronously.
func (d *PageDriver) BeforeUnload() {
	d.FlushSync()
}

// FlushSync takes the entire buffer, groups it by destination and beacons
// each group once. There is no retry: the host may already be gone. It
// returns the number of groups handed to the beacon.
func (d *PageDriver) FlushSync() int {
	if d.beacon == nil {
		return 0
	}

	items := d.engine.TakeAll()
	if len(items) == 0 {
		return 0
	}

	groups := queue.GroupByDestination(items)
	for _, group := range groups {
		d.beacon(group.Destination, group.Payloads())
	}
	return len(groups)
}

// Stop cancels the timer and detaches every event listener. Buffered items
// are left in place.
func (d *PageDriver) Stop() {
	d.timer.stop()

	d.mu.Lock()
	removers := d.removers
	d.removers = nil
	d.mu.Unlock()

	for _, remove := range removers {
		if remove != nil {
			remove()
		}
	}
}

// Running reports whether the periodic timer is armed.
func (d *PageDriver) Running() bool {
	return d.timer.running()
}
