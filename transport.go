// transport.go: HTTP delivery to the Logsicle ingestion API
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package logsiclewriter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	goerrors "github.com/agilira/go-errors"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Ingestion destinations.
const (
	DestinationApp   = "/ingest/app"
	DestinationEvent = "/ingest/event"
	DestinationBatch = "/ingest/batch"
)

// batchBody wraps the payloads of a batch destination.
type batchBody struct {
	Items []any `json:"items"`
}

// HTTPTransport posts payloads to the ingestion API. Single-item
// destinations (/ingest/app, /ingest/event) get one request per payload;
// every other destination receives the whole group as {"items": [...]}.
type HTTPTransport struct {
	baseURL string
	apiKey  string
	client  *http.Client
	opts    TransportOptions
	beacon  time.Duration
	limiter *rate.Limiter
}

// NewHTTPTransport creates a transport for a config with defaults applied.
func NewHTTPTransport(config Config) *HTTPTransport {
	t := &HTTPTransport{
		baseURL: config.BaseURL(),
		apiKey:  config.APIKey,
		client:  config.HTTPClient,
		opts:    config.Transport,
		beacon:  config.Page.BeaconTimeout,
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: config.Transport.Timeout}
	}
	if config.Transport.RateLimit > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(config.Transport.RateLimit), config.Transport.RateBurst)
	}
	return t
}

func singleItem(destination string) bool {
	return destination == DestinationApp || destination == DestinationEvent
}

// Deliver sends every payload of a destination group and reports the first
// failure.
func (t *HTTPTransport) Deliver(ctx context.Context, destination string, payloads []any) error {
	if !singleItem(destination) {
		return t.send(ctx, destination, batchBody{Items: payloads})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range payloads {
		g.Go(func() error { return t.send(gctx, destination, p) })
	}
	return g.Wait()
}

// Beacon fires one-way requests for a group and returns immediately.
// Outcomes are not observed.
func (t *HTTPTransport) Beacon(destination string, payloads []any) {
	bodies := payloads
	if !singleItem(destination) {
		bodies = []any{batchBody{Items: payloads}}
	}

	for _, v := range bodies {
		body, contentType, contentEncoding, err := t.encode(v)
		if err != nil {
			continue
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), t.beacon)
			defer cancel()
			resp, err := t.post(ctx, destination, body, contentType, contentEncoding)
			if err == nil {
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
			}
		}()
	}
}

func (t *HTTPTransport) encode(v any) (body []byte, contentType, contentEncoding string, err error) {
	var payload []byte
	switch t.opts.Encoding {
	case EncodingCBOR:
		payload, err = cbor.Marshal(v)
		contentType = "application/cbor"
	default:
		payload, err = json.Marshal(v)
		contentType = "application/json"
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	if !t.opts.EnableCompression {
		return payload, contentType, "", nil
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return nil, "", "", fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, "", "", fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), contentType, "gzip", nil
}

func (t *HTTPTransport) post(ctx context.Context, destination string, body []byte, contentType, contentEncoding string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+destination, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	if contentEncoding != "" {
		req.Header.Set("Content-Encoding", contentEncoding)
	}
	return t.client.Do(req)
}

func (t *HTTPTransport) send(ctx context.Context, destination string, v any) error {
	body, contentType, contentEncoding, err := t.encode(v)
	if err != nil {
		return goerrors.Wrap(err, ErrCodeDelivery, "encoding payload")
	}

	var lastErr error
	for attempt := 0; attempt <= t.opts.Retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, t.backoff(attempt)); err != nil {
				break
			}
		}
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				lastErr = err
				break
			}
		}

		resp, err := t.post(ctx, destination, body, contentType, contentEncoding)
		if err != nil {
			lastErr = fmt.Errorf("failed to send request: %w", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		lastErr = fmt.Errorf("logsicle API error: status %d", resp.StatusCode)

		// Don't retry on client errors (4xx)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break
		}
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return goerrors.Wrap(lastErr, ErrCodeDelivery, fmt.Sprintf("delivering to %s", destination))
}

// backoff doubles RetryDelay per attempt up to MaxRetryDelay.
func (t *HTTPTransport) backoff(attempt int) time.Duration {
	delay, limit := t.opts.RetryDelay, t.opts.MaxRetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if limit > 0 && delay >= limit {
			return limit
		}
	}
	if limit > 0 && delay > limit {
		return limit
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
