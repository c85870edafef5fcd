// config.go: Configuration, defaults and config file loading for the Logsicle writer
//
// Copyright (c) 2025 AGILira
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package logsiclewriter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	goerrors "github.com/agilira/go-errors"
	"github.com/agilira/iris"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the Logsicle client
type Config struct {
	// APIKey is the Logsicle API key, sent as a bearer token
	APIKey string

	// ProjectID is stamped on every payload
	ProjectID string

	// Endpoint overrides the ingestion API location
	Endpoint Endpoint

	// Environment to tag logs with ("development", "staging", "production" or custom)
	Environment string

	// ServiceName to tag logs with
	ServiceName string

	// Version to tag logs with
	Version string

	// Host to tag logs with. Defaults to os.Hostname for process clients.
	Host string

	// Debug enables diagnostic logging of internal errors and dropped records
	Debug bool

	// Queue tunes batching and retries
	Queue QueueOptions

	// Transport tunes the HTTP transport
	Transport TransportOptions

	// Page tunes the page-lifecycle environment
	Page PageOptions

	// OnError is an optional callback for handling delivery errors
	OnError func(error)

	// OnDrop is an optional callback for records dropped after their last retry
	OnDrop func(Item)

	// Logger receives diagnostics when set
	Logger *iris.Logger

	// Registerer receives the queue metrics when set
	Registerer prometheus.Registerer

	// Registry is the shutdown registry process clients join.
	// Defaults to DefaultShutdownRegistry.
	Registry *ShutdownRegistry

	// HTTPClient overrides the client used for requests
	HTTPClient *http.Client
}

// Endpoint locates the ingestion API
type Endpoint struct {
	// APIURL is the scheme and host, e.g. "https://api.logsicle.com"
	APIURL string

	// Version is the API version appended as "/v<Version>"
	Version int
}

// QueueOptions tunes the batching engine
type QueueOptions struct {
	// FlushInterval is the periodic cycle cadence
	FlushInterval time.Duration

	// MaxRetries bounds delivery attempts per record
	MaxRetries int

	// MaxBatchSize caps a cycle and triggers one when reached
	MaxBatchSize int

	// DeliveryTimeout bounds each destination dispatch
	DeliveryTimeout time.Duration

	// RecycleFailedGroupsOnly retries only the destinations that failed
	// instead of the whole cycle
	RecycleFailedGroupsOnly bool
}

// TransportOptions tunes HTTP delivery
type TransportOptions struct {
	// Timeout for a single HTTP request
	Timeout time.Duration

	// Retries is the number of in-request retry attempts; negative disables them
	Retries int

	// RetryDelay is the first backoff delay, doubled per attempt
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff delay
	MaxRetryDelay time.Duration

	// EnableCompression enables gzip compression for request bodies
	EnableCompression bool

	// Encoding is "json" (default) or "cbor"
	Encoding string

	// RateLimit caps requests per second; zero means unlimited
	RateLimit float64

	// RateBurst is the limiter burst size
	RateBurst int
}

// PageOptions tunes the page-lifecycle environment
type PageOptions struct {
	// DisableBeacon turns off the one-way teardown flush
	DisableBeacon bool

	// BeaconTimeout bounds each one-way request
	BeaconTimeout time.Duration
}

// Defaults
const (
	DefaultAPIURL        = "https://api.logsicle.com"
	DefaultAPIVersion    = 1
	DefaultEnvironment   = "development"
	DefaultServiceName   = "default-service"
	DefaultVersion       = "1.0.0"
	EncodingJSON         = "json"
	EncodingCBOR         = "cbor"
	defaultBeaconTimeout = 5 * time.Second
)

// withDefaults validates the config and fills every unset option.
func (config Config) withDefaults() (Config, error) {
	if config.APIKey == "" {
		return config, goerrors.New(ErrCodeInvalidConfig, "API key is required")
	}
	if config.ProjectID == "" {
		return config, goerrors.New(ErrCodeInvalidConfig, "project ID is required")
	}

	if config.Endpoint.APIURL == "" {
		config.Endpoint.APIURL = DefaultAPIURL
	}
	if config.Endpoint.Version <= 0 {
		config.Endpoint.Version = DefaultAPIVersion
	}
	if config.Environment == "" {
		config.Environment = DefaultEnvironment
	}
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}
	if config.Version == "" {
		config.Version = DefaultVersion
	}

	if config.Queue.FlushInterval <= 0 {
		config.Queue.FlushInterval = time.Second
	}
	if config.Queue.MaxRetries <= 0 {
		config.Queue.MaxRetries = 3
	}
	if config.Queue.MaxBatchSize <= 0 {
		config.Queue.MaxBatchSize = 50
	}
	if config.Queue.DeliveryTimeout <= 0 {
		config.Queue.DeliveryTimeout = 10 * time.Second
	}

	if config.Transport.Timeout <= 0 {
		config.Transport.Timeout = 10 * time.Second
	}
	if config.Transport.Retries == 0 {
		config.Transport.Retries = 3
	} else if config.Transport.Retries < 0 {
		config.Transport.Retries = 0
	}
	if config.Transport.RetryDelay <= 0 {
		config.Transport.RetryDelay = 500 * time.Millisecond
	}
	if config.Transport.MaxRetryDelay <= 0 {
		config.Transport.MaxRetryDelay = 5 * time.Second
	}
	switch config.Transport.Encoding {
	case "":
		config.Transport.Encoding = EncodingJSON
	case EncodingJSON, EncodingCBOR:
	default:
		return config, goerrors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported encoding %q", config.Transport.Encoding))
	}
	if config.Transport.RateLimit < 0 {
		return config, goerrors.New(ErrCodeInvalidConfig, "rate limit must not be negative")
	}
	if config.Transport.RateLimit > 0 && config.Transport.RateBurst <= 0 {
		config.Transport.RateBurst = 1
	}

	if config.Page.BeaconTimeout <= 0 {
		config.Page.BeaconTimeout = defaultBeaconTimeout
	}

	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: config.Transport.Timeout}
	}
	return config, nil
}

// BaseURL returns the versioned API root, e.g. "https://api.logsicle.com/v1".
func (config Config) BaseURL() string {
	apiURL := config.Endpoint.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	version := config.Endpoint.Version
	if version <= 0 {
		version = DefaultAPIVersion
	}
	return fmt.Sprintf("%s/v%d", strings.TrimRight(apiURL, "/"), version)
}

// fileConfig is the on-disk layout read by LoadConfig. Durations are
// expressed in milliseconds.
type fileConfig struct {
	APIKey      string `yaml:"api_key" json:"api_key"`
	ProjectID   string `yaml:"project_id" json:"project_id"`
	Environment string `yaml:"environment" json:"environment"`
	ServiceName string `yaml:"service_name" json:"service_name"`
	Version     string `yaml:"version" json:"version"`
	Host        string `yaml:"host" json:"host"`
	Debug       bool   `yaml:"debug" json:"debug"`

	Endpoint struct {
		APIURL  string `yaml:"api_url" json:"api_url"`
		Version int    `yaml:"v" json:"v"`
	} `yaml:"endpoint" json:"endpoint"`

	QueueOptions struct {
		FlushIntervalMs         int  `yaml:"flush_interval_ms" json:"flush_interval_ms"`
		MaxRetries              int  `yaml:"max_retries" json:"max_retries"`
		MaxBatchSize            int  `yaml:"max_batch_size" json:"max_batch_size"`
		DeliveryTimeoutMs       int  `yaml:"delivery_timeout_ms" json:"delivery_timeout_ms"`
		RecycleFailedGroupsOnly bool `yaml:"recycle_failed_groups_only" json:"recycle_failed_groups_only"`
	} `yaml:"queue_options" json:"queue_options"`

	Transport struct {
		TimeoutMs    int     `yaml:"timeout_ms" json:"timeout_ms"`
		Retries      int     `yaml:"retries" json:"retries"`
		RetryDelayMs int     `yaml:"retry_delay_ms" json:"retry_delay_ms"`
		Compression  bool    `yaml:"compression" json:"compression"`
		Encoding     string  `yaml:"encoding" json:"encoding"`
		RateLimit    float64 `yaml:"rate_limit" json:"rate_limit"`
		RateBurst    int     `yaml:"rate_burst" json:"rate_burst"`
	} `yaml:"transport" json:"transport"`

	BrowserOptions struct {
		UseBeacon *bool `yaml:"use_beacon" json:"use_beacon"`
	} `yaml:"browser_options" json:"browser_options"`
}

// LoadConfig reads a YAML (.yaml, .yml) or JSON with comments (.json,
// .jsonc) config file. LOGSICLE_API_KEY and LOGSICLE_PROJECT_ID fill the
// credentials when the file leaves them empty. Defaults are applied by New.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, goerrors.Wrap(err, ErrCodeInvalidConfig, "reading config file")
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &fc)
	case ".json", ".jsonc":
		err = json.Unmarshal(jsonc.ToJSON(raw), &fc)
	default:
		return Config{}, goerrors.New(ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported config file extension %q", ext))
	}
	if err != nil {
		return Config{}, goerrors.Wrap(err, ErrCodeInvalidConfig, "parsing config file")
	}

	if fc.APIKey == "" {
		fc.APIKey = os.Getenv("LOGSICLE_API_KEY")
	}
	if fc.ProjectID == "" {
		fc.ProjectID = os.Getenv("LOGSICLE_PROJECT_ID")
	}
	return fc.toConfig(), nil
}

func (fc fileConfig) toConfig() Config {
	ms := func(n int) time.Duration { return time.Duration(n) * time.Millisecond }

	config := Config{
		APIKey:      fc.APIKey,
		ProjectID:   fc.ProjectID,
		Environment: fc.Environment,
		ServiceName: fc.ServiceName,
		Version:     fc.Version,
		Host:        fc.Host,
		Debug:       fc.Debug,
		Endpoint: Endpoint{
			APIURL:  fc.Endpoint.APIURL,
			Version: fc.Endpoint.Version,
		},
		Queue: QueueOptions{
			FlushInterval:           ms(fc.QueueOptions.FlushIntervalMs),
			MaxRetries:              fc.QueueOptions.MaxRetries,
			MaxBatchSize:            fc.QueueOptions.MaxBatchSize,
			DeliveryTimeout:         ms(fc.QueueOptions.DeliveryTimeoutMs),
			RecycleFailedGroupsOnly: fc.QueueOptions.RecycleFailedGroupsOnly,
		},
		Transport: TransportOptions{
			Timeout:           ms(fc.Transport.TimeoutMs),
			Retries:           fc.Transport.Retries,
			RetryDelay:        ms(fc.Transport.RetryDelayMs),
			EnableCompression: fc.Transport.Compression,
			Encoding:          fc.Transport.Encoding,
			RateLimit:         fc.Transport.RateLimit,
			RateBurst:         fc.Transport.RateBurst,
		},
	}
	if fc.BrowserOptions.UseBeacon != nil {
		config.Page.DisableBeacon = !*fc.BrowserOptions.UseBeacon
	}
	return config
}
