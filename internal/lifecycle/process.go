// process.go: Lifecycle driver for long-running host processes
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package lifecycle

import "time"

// ProcessDriver triggers a cycle on a fixed interval. Process exit is
// handled through a Registry, not by the driver.
type ProcessDriver struct {
	timer *flushTimer
}

// NewProcessDriver creates a stopped driver.
func NewProcessDriver(cycler Cycler, interval time.Duration) *ProcessDriver {
	return &ProcessDriver{timer: newFlushTimer(cycler, interval)}
}

// Start arms the periodic timer. Starting twice is a no-op.
func (d *ProcessDriver) Start() {
	d.timer.start()
}

// Stop cancels the periodic timer. Buffered items are left in place.
func (d *ProcessDriver) Stop() {
	d.timer.stop()
}

// Running reports whether the periodic timer is armed.
func (d *ProcessDriver) Running() bool {
	return d.timer.running()
}
