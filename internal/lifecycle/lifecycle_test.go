// lifecycle_test.go: Process and page driver tests
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agilira/iris-writer-logsicle/internal/queue"
)

type countingCycler struct {
	calls atomic.Int32
}

func (c *countingCycler) TriggerCycle() bool {
	c.calls.Add(1)
	return false
}

func TestProcessDriver_TicksUntilStopped(t *testing.T) {
	cycler := &countingCycler{}
	d := NewProcessDriver(cycler, 10*time.Millisecond)
	d.Start()
	d.Start()

	deadline := time.After(2 * time.Second)
	for cycler.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d ticks observed", cycler.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	d.Stop()
	if d.Running() {
		t.Error("Running() = true after Stop")
	}

	settled := cycler.calls.Load()
	time.Sleep(50 * time.Millisecond)
	// One callback may already have been executing when Stop ran.
	if got := cycler.calls.Load(); got > settled+1 {
		t.Errorf("timer kept firing after Stop: %d -> %d", settled, got)
	}
}

func TestProcessDriver_DefaultInterval(t *testing.T) {
	d := NewProcessDriver(&countingCycler{}, 0)
	if d.timer.interval != DefaultFlushInterval {
		t.Errorf("interval = %v, want %v", d.timer.interval, DefaultFlushInterval)
	}
}

func TestProcessDriver_StopBeforeStart(t *testing.T) {
	d := NewProcessDriver(&countingCycler{}, time.Millisecond)
	d.Stop()
	d.Start()
	if d.Running() {
		t.Error("driver started after Stop")
	}
}

// beaconRecorder captures one-way transmissions.
type beaconRecorder struct {
	mu    sync.Mutex
	sends map[string][]any
	calls int
}

func (b *beaconRecorder) send(destination string, payloads []any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sends == nil {
		b.sends = make(map[string][]any)
	}
	b.sends[destination] = append(b.sends[destination], payloads...)
	b.calls++
}

func newIdleEngine(t *testing.T) *queue.Engine {
	t.Helper()
	e, err := queue.New(func(d *queue.Dispatch) { d.Succeed() }, queue.Options{MaxBatchSize: 50})
	if err != nil {
		t.Fatalf("queue.New() error = %v", err)
	}
	return e
}

func TestPageDriver_TeardownSendsOneBeaconPerDestination(t *testing.T) {
	engine := newIdleEngine(t)
	rec := &beaconRecorder{}
	d := NewPageDriver(engine, time.Hour, rec.send)

	engine.Submit("/ingest/app", 1)
	engine.Submit("/ingest/event", 2)
	engine.Submit("/ingest/app", 3)
	engine.Submit("/ingest/app", 4)
	engine.Submit("/ingest/event", 5)

	d.VisibilityChanged(Hidden)

	if rec.calls != 2 {
		t.Fatalf("beacon called %d times, want 2", rec.calls)
	}
	if got := rec.sends["/ingest/app"]; len(got) != 3 {
		t.Errorf("app group = %v, want 3 payloads", got)
	}
	if got := rec.sends["/ingest/event"]; len(got) != 2 {
		t.Errorf("event group = %v, want 2 payloads", got)
	}
	if engine.Len() != 0 {
		t.Errorf("buffer holds %d items after teardown, want 0", engine.Len())
	}
	if engine.InFlight() {
		t.Error("teardown started an asynchronous cycle")
	}
}

func TestPageDriver_VisibleDoesNothing(t *testing.T) {
	engine := newIdleEngine(t)
	rec := &beaconRecorder{}
	d := NewPageDriver(engine, time.Hour, rec.send)

	engine.Submit("/ingest/app", 1)
	d.VisibilityChanged(Visible)

	if rec.calls != 0 || engine.Len() != 1 {
		t.Errorf("visible state flushed: calls=%d len=%d", rec.calls, engine.Len())
	}
}

func TestPageDriver_BeaconDisabled(t *testing.T) {
	engine := newIdleEngine(t)
	d := NewPageDriver(engine, time.Hour, nil)

	engine.Submit("/ingest/app", 1)
	d.BeforeUnload()

	if n := d.FlushSync(); n != 0 {
		t.Errorf("FlushSync() = %d with beacons disabled", n)
	}
	if engine.Len() != 1 {
		t.Errorf("buffer cleared with beacons disabled: len=%d", engine.Len())
	}
}

func TestPageDriver_EmptyBuffer(t *testing.T) {
	rec := &beaconRecorder{}
	d := NewPageDriver(newIdleEngine(t), time.Hour, rec.send)
	if n := d.FlushSync(); n != 0 || rec.calls != 0 {
		t.Errorf("FlushSync on empty buffer sent %d groups", n)
	}
}

// fakePage is an in-memory PageEvents source.
type fakePage struct {
	mu         sync.Mutex
	visibility map[int]func(VisibilityState)
	unload     map[int]func()
	next       int
}

func newFakePage() *fakePage {
	return &fakePage{
		visibility: make(map[int]func(VisibilityState)),
		unload:     make(map[int]func()),
	}
}

func (p *fakePage) OnVisibilityChange(fn func(VisibilityState)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.visibility[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.visibility, id)
		p.mu.Unlock()
	}
}

func (p *fakePage) OnBeforeUnload(fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	p.unload[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.unload, id)
		p.mu.Unlock()
	}
}

func (p *fakePage) hide() {
	p.mu.Lock()
	fns := make([]func(VisibilityState), 0, len(p.visibility))
	for _, fn := range p.visibility {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(Hidden)
	}
}

func (p *fakePage) listeners() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.visibility) + len(p.unload)
}

func TestPageDriver_AttachAndStop(t *testing.T) {
	engine := newIdleEngine(t)
	rec := &beaconRecorder{}
	page := newFakePage()

	d := NewPageDriver(engine, time.Hour, rec.send)
	d.Start()
	d.Attach(page)

	if page.listeners() != 2 {
		t.Fatalf("attached %d listeners, want 2", page.listeners())
	}

	engine.Submit("/ingest/batch", "x")
	page.hide()
	if rec.calls != 1 {
		t.Errorf("hidden event sent %d beacons, want 1", rec.calls)
	}

	d.Stop()
	if page.listeners() != 0 {
		t.Errorf("%d listeners left after Stop", page.listeners())
	}
	if d.Running() {
		t.Error("timer still running after Stop")
	}
}

func TestPageDriver_TimerTriggersCycles(t *testing.T) {
	delivered := make(chan int, 1)
	engine, err := queue.New(func(d *queue.Dispatch) {
		delivered <- len(d.Items)
		d.Succeed()
	}, queue.Options{})
	if err != nil {
		t.Fatalf("queue.New() error = %v", err)
	}

	d := NewPageDriver(engine, 10*time.Millisecond, nil)
	d.Start()
	defer d.Stop()

	engine.Submit("/ingest/app", 1)
	select {
	case n := <-delivered:
		if n != 1 {
			t.Errorf("delivered %d items, want 1", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never triggered a cycle")
	}
}

func TestVisibilityState_String(t *testing.T) {
	if Hidden.String() != "hidden" || Visible.String() != "visible" {
		t.Errorf("unexpected names %q %q", Hidden, Visible)
	}
}
