// timer.go: Re-arming flush timer shared by the lifecycle drivers
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"sync"
	"time"
)

// DefaultFlushInterval is used when a driver is created with a non-positive
// interval.
const DefaultFlushInterval = time.Second

// Cycler is the part of the engine a timer drives.
type Cycler interface {
	TriggerCycle() bool
}

// flushTimer calls TriggerCycle every interval until stopped. It re-arms a
// time.AfterFunc timer rather than owning a goroutine; Go timers never keep
// a process alive.
type flushTimer struct {
	cycler   Cycler
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newFlushTimer(cycler Cycler, interval time.Duration) *flushTimer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &flushTimer{cycler: cycler, interval: interval}
}

func (t *flushTimer) start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.timer != nil {
		return
	}
	t.arm()
}

// arm must be called with mu held.
func (t *flushTimer) arm() {
	t.timer = time.AfterFunc(t.interval, func() {
		t.cycler.TriggerCycle()

		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.stopped {
			t.arm()
		}
	})
}

func (t *flushTimer) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *flushTimer) running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && t.timer != nil
}
