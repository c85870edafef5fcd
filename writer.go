// writer.go: iris.SyncWriter forwarding iris records to Logsicle
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package logsiclewriter

import (
	"context"
	"time"

	"github.com/agilira/iris"
)

// DefaultCloseTimeout bounds the flush performed by Writer.Close
const DefaultCloseTimeout = 30 * time.Second

// Writer implements iris.SyncWriter for the Logsicle ingestion API
type Writer struct {
	client *Client
	owned  bool
}

// NewWriter creates a process client and a writer that owns it: Close
// shuts the client down.
func NewWriter(config Config) (*Writer, error) {
	client, err := New(config)
	if err != nil {
		return nil, err
	}
	return &Writer{client: client, owned: true}, nil
}

// Writer returns an iris.SyncWriter sharing this client. Closing it only
// flushes.
func (c *Client) Writer() *Writer {
	return &Writer{client: c}
}

// WriteRecord implements iris.SyncWriter
func (w *Writer) WriteRecord(record *iris.Record) error {
	w.client.app.Log(record.Msg, LogOptions{Level: mapLevel(record.Level)})
	return nil
}

// Close flushes remaining records and, for an owned client, shuts it down
func (w *Writer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultCloseTimeout)
	defer cancel()

	if w.owned {
		return w.client.Shutdown(ctx)
	}
	return w.client.Flush(ctx)
}

// Client returns the underlying client.
func (w *Writer) Client() *Client {
	return w.client
}

func mapLevel(level iris.Level) Level {
	switch level {
	case iris.Debug:
		return LevelDebug
	case iris.Info:
		return LevelInfo
	case iris.Warn:
		return LevelWarning
	case iris.Error:
		return LevelError
	case iris.DPanic, iris.Panic, iris.Fatal:
		return LevelFatal
	default:
		return LevelInfo
	}
}
