// console.go: Forwarding of standard log output as application records
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package logsiclewriter

import (
	"io"
	"log"
	"strings"
	"sync"
)

// ConsoleTransport turns plain text output into application log records.
type ConsoleTransport struct {
	app *AppLogger

	mu           sync.Mutex
	intercepting bool
	previous     io.Writer
}

// Writer returns an io.Writer that copies everything to out (when non-nil)
// and queues each non-empty line as a record at level.
func (c *ConsoleTransport) Writer(level Level, out io.Writer) io.Writer {
	return &consoleWriter{app: c.app, level: level, out: out}
}

// Intercept redirects the standard logger through the client. Output still
// reaches the previous destination. Calling it twice is a no-op.
func (c *ConsoleTransport) Intercept() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.intercepting {
		return
	}

	c.previous = log.Writer()
	log.SetOutput(c.Writer(LevelInfo, c.previous))
	c.intercepting = true
}

// Restore puts the standard logger back.
func (c *ConsoleTransport) Restore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.intercepting {
		return
	}

	log.SetOutput(c.previous)
	c.previous = nil
	c.intercepting = false
}

// Intercepting reports whether the standard logger is redirected.
func (c *ConsoleTransport) Intercepting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intercepting
}

type consoleWriter struct {
	app   *AppLogger
	level Level
	out   io.Writer
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	var err error
	if w.out != nil {
		_, err = w.out.Write(p)
	}

	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		w.app.Log(line, LogOptions{Level: w.level})
	}
	return len(p), err
}
