// registry.go: Process-wide shutdown registry that drains every client on exit
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	goerrors "github.com/agilira/go-errors"
	"github.com/agilira/iris"
)

// ErrCodeInvalidTarget marks a nil or otherwise unusable registration.
const ErrCodeInvalidTarget goerrors.ErrorCode = "LOGSICLE_INVALID_TARGET"

// DefaultDrainTimeout bounds a broadcast started by a signal or a panic.
const DefaultDrainTimeout = 30 * time.Second

// Target is anything that can flush its pending records.
type Target interface {
	Flush(ctx context.Context) error
}

// Registry fans a shutdown out to every registered target. It does not own
// the targets: Remove is expected when a target shuts down on its own.
type Registry struct {
	logger  *iris.Logger
	timeout time.Duration

	mu          sync.Mutex
	targets     []Target
	broadcasted bool
}

// NewRegistry creates an empty registry. logger may be nil.
func NewRegistry(logger *iris.Logger) *Registry {
	return &Registry{logger: logger, timeout: DefaultDrainTimeout}
}

// SetLogger replaces the registry logger.
func (r *Registry) SetLogger(logger *iris.Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Add registers a target.
func (r *Registry) Add(t Target) error {
	if t == nil {
		return goerrors.New(ErrCodeInvalidTarget, "shutdown target must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, t)
	return nil
}

// Remove unregisters a target. Unknown targets are ignored.
func (r *Registry) Remove(t Target) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, registered := range r.targets {
		if registered == t {
			r.targets = append(r.targets[:i], r.targets[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets)
}

// Broadcast flushes every registered target concurrently and waits for all
// of them. Only the first call does any work.
func (r *Registry) Broadcast(ctx context.Context) error {
	r.mu.Lock()
	if r.broadcasted {
		r.mu.Unlock()
		return nil
	}
	r.broadcasted = true
	targets := append([]Target(nil), r.targets...)
	r.mu.Unlock()

	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = t.Flush(ctx)
		}()
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		r.log(iris.Error, "error flushing logsicle clients", iris.Err(err))
	}
	return err
}

// Broadcasted reports whether Broadcast has run.
func (r *Registry) Broadcasted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.broadcasted
}

// HandleSignals drains every target when the process receives SIGINT or
// SIGTERM, then calls exit(0). exit defaults to os.Exit. The returned
// function stops listening; cancelling ctx does the same.
func (r *Registry) HandleSignals(ctx context.Context, exit func(code int)) (stop func()) {
	if exit == nil {
		exit = os.Exit
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once
	stop = func() { once.Do(func() { close(done) }) }

	go func() {
		defer signal.Stop(signals)

		select {
		case sig := <-signals:
			r.log(iris.Info, "gracefully shutting down", iris.String("signal", sig.String()))
			r.drain()
			exit(0)
		case <-ctx.Done():
		case <-done:
		}
	}()

	return stop
}

// RecoverAndDrain must be deferred directly. On panic it drains every target
// and re-panics with the original value.
func (r *Registry) RecoverAndDrain() {
	v := recover()
	if v == nil {
		return
	}
	r.log(iris.Error, "panic, shutting down", iris.String("panic", fmt.Sprint(v)))
	r.drain()
	panic(v)
}

// WarnIfUnclean logs a warning when the process is about to exit with
// registered targets that were never drained. It reports whether it warned.
func (r *Registry) WarnIfUnclean() bool {
	r.mu.Lock()
	unclean := !r.broadcasted && len(r.targets) > 0
	r.mu.Unlock()

	if unclean {
		r.log(iris.Warn, "process exiting without proper shutdown, some logs may be lost")
	}
	return unclean
}

func (r *Registry) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	_ = r.Broadcast(ctx)
}

func (r *Registry) log(level iris.Level, msg string, fields ...iris.Field) {
	r.mu.Lock()
	logger := r.logger
	r.mu.Unlock()
	if logger == nil {
		return
	}

	switch level {
	case iris.Error:
		logger.Error(msg, fields...)
	case iris.Warn:
		logger.Warn(msg, fields...)
	default:
		logger.Info(msg, fields...)
	}
}
