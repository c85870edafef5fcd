// Package logsiclewriter provides a Logsicle ingestion client and an iris
// writer built on it.
//
// Records are buffered in memory and delivered in the background. Each
// delivery cycle takes up to MaxBatchSize records, groups them by
// destination and sends the groups concurrently. A failed cycle puts its
// records back at the front of the buffer; a record that has used its last
// attempt is dropped and reported through Config.OnDrop.
//
// # Basic Usage
//
//	client, err := logsiclewriter.New(logsiclewriter.Config{
//		APIKey:      "your-logsicle-api-key",
//		ProjectID:   "your-project-id",
//		ServiceName: "my-service",
//		Environment: "production",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Shutdown(context.Background())
//
//	client.App().Info("user signed in", logsiclewriter.LogOptions{
//		Fields: map[string]any{"user_id": 42},
//	})
//	_ = client.Event().Send("signup", logsiclewriter.EventOptions{ChannelName: "growth"})
//
// # Iris
//
// Writer implements iris.SyncWriter:
//
//	writer, err := logsiclewriter.NewWriter(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer writer.Close()
//
// # Configuration
//
//   - APIKey, ProjectID: required
//   - Endpoint: API URL and version (default: https://api.logsicle.com, v1)
//   - Environment, ServiceName, Version: record tags
//   - Queue.FlushInterval: periodic cycle cadence (default: 1s)
//   - Queue.MaxRetries: attempts per record (default: 3)
//   - Queue.MaxBatchSize: records per cycle and immediate trigger (default: 50)
//   - Queue.DeliveryTimeout: bound on each destination dispatch (default: 10s)
//   - Transport: HTTP timeout, in-request retries, gzip, CBOR, rate limit
//   - Page.DisableBeacon: turns off the teardown flush of page clients
//
// LoadConfig reads the same options from a YAML or JSONC file.
//
// # Lifecycle
//
// Process clients created with New join a ShutdownRegistry.
// DefaultShutdownRegistry.HandleSignals drains every client on SIGINT or
// SIGTERM, and ShutdownServer drains them before stopping an http.Server.
//
// Page clients created with NewPage flush the whole buffer through one-way
// requests, one per destination, when the host reports that it is hidden
// or unloading.
package logsiclewriter
