// errors.go: Error codes returned by the Logsicle writer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package logsiclewriter

import (
	goerrors "github.com/agilira/go-errors"

	"github.com/agilira/iris-writer-logsicle/internal/lifecycle"
	"github.com/agilira/iris-writer-logsicle/internal/queue"
)

// Error codes, checked with goerrors.HasCode.
const (
	// ErrCodeInvalidConfig is returned for a missing or malformed configuration.
	ErrCodeInvalidConfig goerrors.ErrorCode = "LOGSICLE_INVALID_CONFIG"

	// ErrCodeInvalidTarget is returned when registering an unusable shutdown target.
	ErrCodeInvalidTarget = lifecycle.ErrCodeInvalidTarget

	// ErrCodeMissingChannel is returned by Event().Send without a channel.
	ErrCodeMissingChannel goerrors.ErrorCode = "LOGSICLE_MISSING_CHANNEL"

	// ErrCodeDelivery wraps transport failures passed to Config.OnError.
	ErrCodeDelivery goerrors.ErrorCode = "LOGSICLE_DELIVERY_FAILED"

	// ErrCodeWrongEnvironment is returned for page operations on a process client.
	ErrCodeWrongEnvironment goerrors.ErrorCode = "LOGSICLE_WRONG_ENVIRONMENT"
)

// Errors reported by the delivery engine.
var (
	ErrDeliveryTimeout = queue.ErrDeliveryTimeout
	ErrDeliveryFailed  = queue.ErrDeliveryFailed
)
