// shutdown.go: Process-wide shutdown helpers
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package logsiclewriter

import (
	"context"
	"errors"
	"net/http"

	goerrors "github.com/agilira/go-errors"
	"github.com/agilira/iris"

	"github.com/agilira/iris-writer-logsicle/internal/lifecycle"
)

// ShutdownRegistry drains every registered client once, on a signal, a
// panic or an explicit Broadcast.
type ShutdownRegistry = lifecycle.Registry

// VisibilityState is the host visibility reported to page clients
type VisibilityState = lifecycle.VisibilityState

// PageEvents is a source of host visibility and unload notifications
type PageEvents = lifecycle.PageEvents

// Visibility states
const (
	Visible = lifecycle.Visible
	Hidden  = lifecycle.Hidden
)

// DefaultShutdownRegistry is joined by process clients without a
// Config.Registry.
var DefaultShutdownRegistry = lifecycle.NewRegistry(nil)

// NewShutdownRegistry creates an isolated registry. logger may be nil.
func NewShutdownRegistry(logger *iris.Logger) *ShutdownRegistry {
	return lifecycle.NewRegistry(logger)
}

// ShutdownAll flushes every client in DefaultShutdownRegistry.
func ShutdownAll(ctx context.Context) error {
	return DefaultShutdownRegistry.Broadcast(ctx)
}

// ShutdownServer flushes every client in registry (DefaultShutdownRegistry
// when nil) and then shuts srv down. The server is shut down even when the
// flush fails.
func ShutdownServer(ctx context.Context, registry *ShutdownRegistry, srv *http.Server) error {
	if srv == nil {
		return goerrors.New(ErrCodeInvalidTarget, "server must not be nil")
	}
	if registry == nil {
		registry = DefaultShutdownRegistry
	}
	flushErr := registry.Broadcast(ctx)
	return errors.Join(flushErr, srv.Shutdown(ctx))
}
