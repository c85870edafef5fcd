// main.go: logsicle-forward pipes newline-delimited records from stdin to Logsicle
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/iris"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logsiclewriter "github.com/agilira/iris-writer-logsicle"
)

type options struct {
	configPath  string
	apiKey      string
	projectID   string
	apiURL      string
	destination string
	level       string
	debug       bool
	metricsAddr string
	drain       time.Duration
}

func parseOptions(args []string) (options, error) {
	fs := flashflags.New("logsicle-forward")
	configPath := fs.String("config", "", "YAML or JSONC config file")
	apiKey := fs.String("api-key", "", "Logsicle API key (default $LOGSICLE_API_KEY)")
	projectID := fs.String("project-id", "", "Logsicle project ID (default $LOGSICLE_PROJECT_ID)")
	apiURL := fs.String("api-url", "", "Ingestion API URL")
	destination := fs.String("destination", logsiclewriter.DestinationApp, "Destination for JSON records")
	level := fs.String("level", string(logsiclewriter.LevelInfo), "Level for plain text lines")
	debug := fs.Bool("debug", false, "Log internal errors and dropped records")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	drain := fs.Duration("drain-timeout", 30*time.Second, "Maximum time to drain on exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return options{
		configPath:  *configPath,
		apiKey:      *apiKey,
		projectID:   *projectID,
		apiURL:      *apiURL,
		destination: *destination,
		level:       *level,
		debug:       *debug,
		metricsAddr: *metricsAddr,
		drain:       *drain,
	}, nil
}

func buildConfig(opts options) (logsiclewriter.Config, error) {
	var config logsiclewriter.Config
	if opts.configPath != "" {
		loaded, err := logsiclewriter.LoadConfig(opts.configPath)
		if err != nil {
			return config, err
		}
		config = loaded
	}

	if opts.apiKey != "" {
		config.APIKey = opts.apiKey
	} else if config.APIKey == "" {
		config.APIKey = os.Getenv("LOGSICLE_API_KEY")
	}
	if opts.projectID != "" {
		config.ProjectID = opts.projectID
	} else if config.ProjectID == "" {
		config.ProjectID = os.Getenv("LOGSICLE_PROJECT_ID")
	}
	if opts.apiURL != "" {
		config.Endpoint.APIURL = opts.apiURL
	}
	config.Debug = config.Debug || opts.debug
	return config, nil
}

func newLogger(debug bool) (*iris.Logger, error) {
	level := iris.Info
	if debug {
		level = iris.Debug
	}
	logger, err := iris.New(iris.Config{
		Level:   level,
		Output:  iris.WrapWriter(os.Stderr),
		Encoder: iris.NewTextEncoder(),
	})
	if err != nil {
		return nil, err
	}
	logger.Start()
	return logger, nil
}

// forward submits every line of r. JSON objects go to destination as-is;
// anything else becomes an application record at level.
func forward(r io.Reader, client *logsiclewriter.Client, destination string, level logsiclewriter.Level) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	n := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record map[string]any
		if json.Valid(line) && json.Unmarshal(line, &record) == nil && record != nil {
			client.Submit(destination, record)
		} else {
			client.App().Log(string(line), logsiclewriter.LogOptions{Level: level})
		}
		n++
	}
	return n, scanner.Err()
}

func run(args []string, stdin io.Reader) error {
	opts, err := parseOptions(args)
	if err != nil {
		return err
	}

	logger, err := newLogger(opts.debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	config, err := buildConfig(opts)
	if err != nil {
		return err
	}

	registry := logsiclewriter.NewShutdownRegistry(logger)
	reg := prometheus.NewRegistry()
	config.Logger = logger
	config.Registry = registry
	config.Registerer = reg
	config.OnError = func(err error) {
		logger.Warn("delivery failed", iris.Err(err))
	}

	client, err := logsiclewriter.New(config)
	if err != nil {
		return err
	}

	var server *http.Server
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		server = &http.Server{Addr: opts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", iris.Err(err))
			}
		}()
		logger.Info("serving metrics", iris.String("addr", opts.metricsAddr))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := registry.HandleSignals(ctx, nil)
	defer stop()
	defer registry.RecoverAndDrain()

	n, readErr := forward(stdin, client, opts.destination, logsiclewriter.Level(opts.level))
	logger.Info("input closed", iris.Int("records", n))

	drainCtx, drainCancel := context.WithTimeout(context.Background(), opts.drain)
	defer drainCancel()

	var shutdownErr error
	if server != nil {
		shutdownErr = logsiclewriter.ShutdownServer(drainCtx, registry, server)
	} else {
		shutdownErr = registry.Broadcast(drainCtx)
	}
	client.Stop()

	if pending := client.Pending(); pending > 0 {
		logger.Warn("records left undelivered", iris.Int("pending", pending))
	}
	return errors.Join(readErr, shutdownErr)
}

func main() {
	if err := run(os.Args[1:], os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "logsicle-forward: %v\n", err)
		os.Exit(1)
	}
}
