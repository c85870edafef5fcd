// app.go: Structured application log records
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package logsiclewriter

import (
	"time"

	"github.com/agilira/go-timecache"
)

// Level is the severity of an application log record
type Level string

// Log levels, least to most severe
const (
	LevelTrace   Level = "trace"
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// LogOptions carries the optional parts of an application log record
type LogOptions struct {
	// Level defaults to LevelInfo
	Level Level

	// Fields is additional structured data
	Fields map[string]any

	// Caller is the file or module that produced the record
	Caller string

	// Function is the function that produced the record
	Function string

	// Host overrides the client host
	Host string

	// Timestamp defaults to now
	Timestamp time.Time
}

// AppLogEntry is the body posted to /ingest/app
type AppLogEntry struct {
	ProjectID   string         `json:"project_id"`
	Level       Level          `json:"level"`
	Message     string         `json:"message"`
	Fields      map[string]any `json:"fields"`
	Caller      string         `json:"caller,omitempty"`
	Function    string         `json:"function,omitempty"`
	ServiceName string         `json:"service_name"`
	Version     string         `json:"version"`
	Environment string         `json:"environment"`
	Host        string         `json:"host"`
	Timestamp   string         `json:"timestamp"`
}

// AppLogger queues application log records on its client
type AppLogger struct {
	client *Client
}

// Log queues one record. It never blocks on delivery.
func (a *AppLogger) Log(message string, opts LogOptions) {
	a.client.Submit(DestinationApp, a.entry(message, opts))
}

func (a *AppLogger) entry(message string, opts LogOptions) AppLogEntry {
	config := a.client.config

	entry := AppLogEntry{
		ProjectID:   config.ProjectID,
		Level:       opts.Level,
		Message:     message,
		Fields:      opts.Fields,
		Caller:      opts.Caller,
		Function:    opts.Function,
		ServiceName: config.ServiceName,
		Version:     config.Version,
		Environment: config.Environment,
		Host:        opts.Host,
		Timestamp:   formatTimestamp(opts.Timestamp),
	}
	if entry.Level == "" {
		entry.Level = LevelInfo
	}
	if entry.Fields == nil {
		entry.Fields = map[string]any{}
	}
	if entry.Host == "" {
		entry.Host = a.client.host
	}
	return entry
}

func (a *AppLogger) logAt(level Level, message string, opts []LogOptions) {
	var o LogOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	o.Level = level
	a.Log(message, o)
}

// Trace queues a trace record
func (a *AppLogger) Trace(message string, opts ...LogOptions) { a.logAt(LevelTrace, message, opts) }

// Debug queues a debug record
func (a *AppLogger) Debug(message string, opts ...LogOptions) { a.logAt(LevelDebug, message, opts) }

// Info queues an info record
func (a *AppLogger) Info(message string, opts ...LogOptions) { a.logAt(LevelInfo, message, opts) }

// Warning queues a warning record
func (a *AppLogger) Warning(message string, opts ...LogOptions) {
	a.logAt(LevelWarning, message, opts)
}

// Error queues an error record
func (a *AppLogger) Error(message string, opts ...LogOptions) { a.logAt(LevelError, message, opts) }

// Fatal queues a fatal record. It does not exit.
func (a *AppLogger) Fatal(message string, opts ...LogOptions) { a.logAt(LevelFatal, message, opts) }

// formatTimestamp renders t, or the cached current time when t is zero, in
// UTC with millisecond precision.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Unix(0, timecache.CachedTimeNano())
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
