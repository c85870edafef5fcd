// integration_e2e_test.go: Logsicle writer e2e tests against a mock ingestion API
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package logsiclewriter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agilira/iris"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
)

// LogsicleRequest represents a request received by the mock server
type LogsicleRequest struct {
	Path            string
	Authorization   string
	ContentType     string
	ContentEncoding string
	Body            []byte
}

// mockLogsicle is an in-memory ingestion API. Bodies are stored
// decompressed.
type mockLogsicle struct {
	t      *testing.T
	server *httptest.Server
	status atomic.Int32

	mu       sync.Mutex
	requests []LogsicleRequest
}

func newMockLogsicle(t *testing.T) *mockLogsicle {
	t.Helper()
	m := &mockLogsicle{t: t}
	m.status.Store(http.StatusAccepted)
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockLogsicle) handle(w http.ResponseWriter, r *http.Request) {
	var reader io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			m.t.Errorf("Invalid gzip body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		m.t.Errorf("Failed to read request body: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.requests = append(m.requests, LogsicleRequest{
		Path:            r.URL.Path,
		Authorization:   r.Header.Get("Authorization"),
		ContentType:     r.Header.Get("Content-Type"),
		ContentEncoding: r.Header.Get("Content-Encoding"),
		Body:            body,
	})
	m.mu.Unlock()

	w.WriteHeader(int(m.status.Load()))
}

func (m *mockLogsicle) received() []LogsicleRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LogsicleRequest(nil), m.requests...)
}

// waitFor polls until n requests have arrived.
func (m *mockLogsicle) waitFor(n int, timeout time.Duration) []LogsicleRequest {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := m.received(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	return m.received()
}

// testConfig points a config at the mock server with an isolated registry
// and a flush timer that never fires during a test.
func testConfig(m *mockLogsicle) Config {
	return Config{
		APIKey:      "test-api-key-12345",
		ProjectID:   "proj-1",
		Endpoint:    Endpoint{APIURL: m.server.URL},
		ServiceName: "integration-test",
		Environment: "e2e",
		Version:     "1.0.0-test",
		Host:        "test-host",
		Registry:    NewShutdownRegistry(nil),
		Queue:       QueueOptions{FlushInterval: time.Hour},
		Transport:   TransportOptions{Retries: -1},
	}
}

// TestEndToEndIntegration tests the complete data flow from writer to mock Logsicle API
func TestEndToEndIntegration(t *testing.T) {
	mock := newMockLogsicle(t)

	config := testConfig(mock)
	config.Queue.MaxBatchSize = 3
	config.Queue.FlushInterval = 50 * time.Millisecond
	config.OnError = func(err error) {
		t.Logf("❌ Logsicle writer error: %v", err)
	}

	writer, err := NewWriter(config)
	if err != nil {
		t.Fatalf("Failed to create Logsicle writer: %v", err)
	}

	testRecords := []*iris.Record{
		{Level: iris.Info, Msg: "Integration test started"},
		{Level: iris.Debug, Msg: "Debug information for testing"},
		{Level: iris.Warn, Msg: "Warning message for test verification"},
		{Level: iris.Error, Msg: "Error message to test error handling"},
		{Level: iris.Info, Msg: "Final test message"},
	}

	for i, record := range testRecords {
		if err := writer.WriteRecord(record); err != nil {
			t.Errorf("❌ Failed to write record %d: %v", i+1, err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	requests := mock.received()
	if len(requests) != len(testRecords) {
		t.Fatalf("❌ Expected %d requests, got %d", len(testRecords), len(requests))
	}

	wantLevels := map[string]Level{
		"Integration test started":              LevelInfo,
		"Debug information for testing":         LevelDebug,
		"Warning message for test verification": LevelWarning,
		"Error message to test error handling":  LevelError,
		"Final test message":                    LevelInfo,
	}

	for i, req := range requests {
		if req.Path != "/v1/ingest/app" {
			t.Errorf("❌ Request %d path = %s, want /v1/ingest/app", i+1, req.Path)
		}
		if req.Authorization != "Bearer "+config.APIKey {
			t.Errorf("❌ Missing or incorrect Authorization in request %d", i+1)
		}
		if req.ContentType != "application/json" {
			t.Errorf("❌ Missing or incorrect Content-Type in request %d", i+1)
		}

		var entry AppLogEntry
		if err := json.Unmarshal(req.Body, &entry); err != nil {
			t.Fatalf("❌ Request %d is not an app record: %v", i+1, err)
		}
		want, ok := wantLevels[entry.Message]
		if !ok {
			t.Errorf("❌ Unexpected message %q", entry.Message)
			continue
		}
		delete(wantLevels, entry.Message)

		if entry.Level != want {
			t.Errorf("❌ %q level = %s, want %s", entry.Message, entry.Level, want)
		}
		if entry.ProjectID != "proj-1" || entry.ServiceName != config.ServiceName ||
			entry.Environment != "e2e" || entry.Version != "1.0.0-test" || entry.Host != "test-host" {
			t.Errorf("❌ Incorrect tags in request %d: %+v", i+1, entry)
		}
		if _, err := time.Parse(time.RFC3339, entry.Timestamp); err != nil {
			t.Errorf("❌ Invalid timestamp %q: %v", entry.Timestamp, err)
		}
	}

	if len(wantLevels) != 0 {
		t.Errorf("❌ Missing messages: %v", wantLevels)
	}
	t.Logf("✅ End-to-end integration test passed: %d requests", len(requests))
}

func TestCompressionIntegration(t *testing.T) {
	mock := newMockLogsicle(t)

	config := testConfig(mock)
	config.Transport.EnableCompression = true

	client, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Stop()

	client.App().Info("Compression test message 1 - this message should be compressed")
	client.App().Warning("Compression test message 2 - this message should also be compressed")

	if err := client.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	requests := mock.received()
	if len(requests) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(requests))
	}
	for _, req := range requests {
		if req.ContentEncoding != "gzip" {
			t.Errorf("Content-Encoding = %q, want gzip", req.ContentEncoding)
		}
		if !strings.Contains(string(req.Body), "Compression test message") {
			t.Errorf("Decompressed body missing message: %s", req.Body)
		}
	}
	t.Log("✅ Compression integration test completed successfully")
}

func TestBatchDestinationIntegration(t *testing.T) {
	mock := newMockLogsicle(t)

	client, err := New(testConfig(mock))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Stop()

	for i := range 4 {
		client.Submit(DestinationBatch, map[string]any{"n": i})
	}
	if err := client.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	requests := mock.received()
	if len(requests) != 1 {
		t.Fatalf("Expected one batch request, got %d", len(requests))
	}
	if requests[0].Path != "/v1/ingest/batch" {
		t.Errorf("path = %s, want /v1/ingest/batch", requests[0].Path)
	}

	var body struct {
		Items []map[string]int `json:"items"`
	}
	if err := json.Unmarshal(requests[0].Body, &body); err != nil {
		t.Fatalf("Invalid batch body: %v", err)
	}
	if len(body.Items) != 4 {
		t.Fatalf("batch carried %d items, want 4", len(body.Items))
	}
	for i, item := range body.Items {
		if item["n"] != i {
			t.Errorf("item %d = %v, order not preserved", i, item)
		}
	}
}

func TestCBORIntegration(t *testing.T) {
	mock := newMockLogsicle(t)

	config := testConfig(mock)
	config.Transport.Encoding = EncodingCBOR

	client, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Stop()

	if err := client.Event().Send("deploy", EventOptions{ChannelName: "releases", Tags: []string{"v2"}}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := client.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	requests := mock.received()
	if len(requests) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(requests))
	}
	if requests[0].ContentType != "application/cbor" {
		t.Errorf("Content-Type = %q, want application/cbor", requests[0].ContentType)
	}

	var entry EventEntry
	if err := cbor.Unmarshal(requests[0].Body, &entry); err != nil {
		t.Fatalf("Invalid CBOR body: %v", err)
	}
	if entry.Name != "deploy" || entry.Channel != "releases" || len(entry.Tags) != 1 {
		t.Errorf("Unexpected event: %+v", entry)
	}
}

func TestRetryThenDropIntegration(t *testing.T) {
	mock := newMockLogsicle(t)
	mock.status.Store(http.StatusServiceUnavailable)

	var dropped atomic.Int32
	var errs atomic.Int32
	config := testConfig(mock)
	config.Queue.MaxRetries = 2
	config.OnDrop = func(Item) { dropped.Add(1) }
	config.OnError = func(error) { errs.Add(1) }

	client, err := New(config)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	defer client.Stop()

	client.App().Error("will never arrive")

	// First cycle fails and recycles, second exhausts the record.
	for attempt := 1; attempt <= 2; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Flush(ctx)
		cancel()
		if err != nil {
			t.Fatalf("Flush() attempt %d error = %v", attempt, err)
		}
	}

	if got := len(mock.received()); got != 2 {
		t.Errorf("server saw %d attempts, want 2", got)
	}
	if dropped.Load() != 1 {
		t.Errorf("dropped %d records, want 1", dropped.Load())
	}
	if errs.Load() != 2 {
		t.Errorf("OnError called %d times, want 2", errs.Load())
	}
	if client.Pending() != 0 {
		t.Errorf("Pending() = %d after drop, want 0", client.Pending())
	}
}

func ExampleNew() {
	client, err := New(Config{APIKey: "key", ProjectID: "proj", Registry: NewShutdownRegistry(nil)})
	if err != nil {
		fmt.Println(err)
		return
	}
	defer client.Stop()

	fmt.Println(client.BaseURL())
	// Output: https://api.logsicle.com/v1
}
