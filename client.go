// client.go: Logsicle client wiring the queue engine, transport and lifecycle drivers
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package logsiclewriter

import (
	"context"
	"os"
	"sync"

	goerrors "github.com/agilira/go-errors"
	"github.com/agilira/iris"

	"github.com/agilira/iris-writer-logsicle/internal/lifecycle"
	"github.com/agilira/iris-writer-logsicle/internal/queue"
)

// Item is a buffered record as seen by Config.OnDrop
type Item = queue.Item

type driver interface {
	Start()
	Stop()
	Running() bool
}

// Client buffers records and delivers them to Logsicle in the background.
// Use New in long-running processes and NewPage in hosts that report
// visibility and unload events.
type Client struct {
	config    Config
	host      string
	engine    *queue.Engine
	transport *HTTPTransport
	metrics   *queue.Metrics

	driver   driver
	page     *lifecycle.PageDriver
	registry *lifecycle.Registry

	app     *AppLogger
	event   *EventSender
	console *ConsoleTransport

	stopOnce sync.Once
}

// New creates a client for a long-running process. The client starts its
// flush timer and joins Config.Registry (DefaultShutdownRegistry when nil)
// so a signal or ShutdownAll drains it.
func New(config Config) (*Client, error) {
	c, err := newClient(config)
	if err != nil {
		return nil, err
	}

	if c.host == "" {
		if hostname, err := os.Hostname(); err == nil {
			c.host = hostname
		} else {
			c.host = "unknown"
		}
	}

	c.driver = lifecycle.NewProcessDriver(c.engine, c.config.Queue.FlushInterval)
	c.registry = c.config.Registry
	if c.registry == nil {
		c.registry = DefaultShutdownRegistry
	}
	if err := c.registry.Add(c); err != nil {
		return nil, err
	}

	c.driver.Start()
	return c, nil
}

// NewPage creates a client for a page-lifecycle host. When the host is
// hidden or unloading, the buffer is handed to one-way beacon requests
// unless Config.Page.DisableBeacon is set. Wire the host events with
// AttachPageEvents or call VisibilityChanged and BeforeUnload directly.
func NewPage(config Config) (*Client, error) {
	c, err := newClient(config)
	if err != nil {
		return nil, err
	}
	if c.host == "" {
		c.host = "unknown"
	}

	var beacon lifecycle.BeaconFunc
	if !c.config.Page.DisableBeacon {
		beacon = c.transport.Beacon
	}
	c.page = lifecycle.NewPageDriver(c.engine, c.config.Queue.FlushInterval, beacon)
	c.driver = c.page

	c.driver.Start()
	return c, nil
}

func newClient(config Config) (*Client, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	metrics, err := queue.NewMetrics(config.Registerer)
	if err != nil {
		return nil, goerrors.Wrap(err, ErrCodeInvalidConfig, "registering metrics")
	}

	c := &Client{
		config:    config,
		host:      config.Host,
		transport: NewHTTPTransport(config),
		metrics:   metrics,
	}

	policy := queue.RecycleSlice
	if config.Queue.RecycleFailedGroupsOnly {
		policy = queue.RecycleFailedGroups
	}

	c.engine, err = queue.New(c.deliver, queue.Options{
		MaxRetries:      config.Queue.MaxRetries,
		MaxBatchSize:    config.Queue.MaxBatchSize,
		DeliveryTimeout: config.Queue.DeliveryTimeout,
		FailurePolicy:   policy,
		OnDrop:          c.handleDrop,
		OnCycleError:    c.handleCycleError,
		Metrics:         metrics,
	})
	if err != nil {
		return nil, err
	}

	c.app = &AppLogger{client: c}
	c.event = &EventSender{client: c}
	c.console = &ConsoleTransport{app: c.app}
	return c, nil
}

// deliver runs one dispatch through the HTTP transport and replies to it.
// The request context expires with the dispatch.
func (c *Client) deliver(d *queue.Dispatch) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Queue.DeliveryTimeout)
	defer cancel()

	if err := c.transport.Deliver(ctx, d.Destination, d.Payloads()); err != nil {
		c.handleError(err)
		d.Fail(err)
		return
	}
	d.Succeed()
}

// Submit queues a payload for destination. It never blocks on delivery.
func (c *Client) Submit(destination string, payload any) {
	c.engine.Submit(destination, payload)
}

// Flush delivers everything buffered, including records recycled by a
// running cycle, and returns when the buffer is empty or ctx is done.
func (c *Client) Flush(ctx context.Context) error {
	return c.engine.Drain(ctx)
}

// Shutdown flushes, stops the client and leaves its shutdown registry.
func (c *Client) Shutdown(ctx context.Context) error {
	err := c.Flush(ctx)
	c.Stop()
	return err
}

// Stop cancels the flush timer and detaches page listeners without
// flushing. Buffered records stay in place.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		c.driver.Stop()
		c.console.Restore()
		if c.registry != nil {
			c.registry.Remove(c)
		}
	})
}

// Running reports whether the flush timer is armed.
func (c *Client) Running() bool {
	return c.driver.Running()
}

// Pending returns the number of buffered records.
func (c *Client) Pending() int {
	return c.engine.Len()
}

// AttachPageEvents subscribes the teardown flush to a host event source.
// Listeners are removed by Stop.
func (c *Client) AttachPageEvents(events PageEvents) error {
	if c.page == nil {
		return goerrors.New(ErrCodeWrongEnvironment, "page events require a client created with NewPage")
	}
	c.page.Attach(events)
	return nil
}

// VisibilityChanged reports a host visibility change. Hidden flushes the
// buffer through beacons. It is a no-op on process clients.
func (c *Client) VisibilityChanged(state VisibilityState) {
	if c.page != nil {
		c.page.VisibilityChanged(state)
	}
}

// BeforeUnload reports imminent host teardown. It is a no-op on process
// clients.
func (c *Client) BeforeUnload() {
	if c.page != nil {
		c.page.BeforeUnload()
	}
}

// BaseURL returns the versioned API root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL()
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// App returns the structured application logger.
func (c *Client) App() *AppLogger {
	return c.app
}

// Event returns the event sender.
func (c *Client) Event() *EventSender {
	return c.event
}

// Console returns the standard log interceptor.
func (c *Client) Console() *ConsoleTransport {
	return c.console
}

func (c *Client) handleError(err error) {
	if c.config.OnError != nil && err != nil {
		c.config.OnError(err)
	}
}

func (c *Client) handleCycleError(err error) {
	if c.config.Debug && c.config.Logger != nil {
		c.config.Logger.Error("error processing log queue", iris.Err(err))
	}
}

func (c *Client) handleDrop(item Item) {
	if c.config.Debug && c.config.Logger != nil {
		c.config.Logger.Warn("dropping record after max retries",
			iris.String("destination", item.Destination),
			iris.Int("retry_count", item.RetryCount))
	}
	if c.config.OnDrop != nil {
		c.config.OnDrop(item)
	}
}
