// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	shimerrors "github.com/tombee/taskshim/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

const (
	// DefaultTemporalAddress is the frontend address used when AP_TEMPORAL_ADDR is unset.
	DefaultTemporalAddress = "localhost:7233"
	// DefaultTaskQueue is the task queue used when AP_TASK_QUEUE is unset.
	DefaultTaskQueue = "fake-task-revision-id"
	// DefaultNamespace is the namespace used when AP_NAMESPACE is unset.
	DefaultNamespace = "default"
	// DefaultChunkSize is the largest protocol line emitted without chunking.
	DefaultChunkSize = 8192
)

// Config represents the complete taskshim configuration.
type Config struct {
	Temporal TemporalConfig `yaml:"temporal"`
	Task     TaskConfig     `yaml:"task"`
	Protocol ProtocolConfig `yaml:"protocol"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Store    StoreConfig    `yaml:"store"`
}

// TemporalConfig configures the connection to the durable-execution engine.
type TemporalConfig struct {
	// Address is the Temporal frontend host:port.
	// Environment: AP_TEMPORAL_ADDR
	// Default: localhost:7233
	Address string `yaml:"address"`

	// Namespace is the Temporal namespace.
	// Environment: AP_NAMESPACE
	// Default: default
	Namespace string `yaml:"namespace"`

	// TaskQueue is the queue the worker polls. The platform sets it to the
	// task revision id.
	// Environment: AP_TASK_QUEUE
	// Default: fake-task-revision-id
	TaskQueue string `yaml:"task_queue"`

	// ShutdownTimeout bounds how long the worker waits for in-flight
	// activities when stopping.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// TaskConfig selects the task entrypoint.
type TaskConfig struct {
	// Runtime is "standard" or "workflow".
	// Environment: AP_RUNTIME
	Runtime string `yaml:"runtime"`

	// Entrypoint is the source file or directory holding the task.
	// Environment: AP_ENTRYPOINT
	Entrypoint string `yaml:"entrypoint,omitempty"`

	// EntrypointFunc is the exported function to invoke.
	// Environment: AP_ENTRYPOINT_FUNC
	// Default: Main
	EntrypointFunc string `yaml:"entrypoint_func,omitempty"`

	// ParamSlugsPositional passes each parameter as its own argument.
	// Environment: AP_PARAM_SLUGS_POSITIONAL
	ParamSlugsPositional bool `yaml:"param_slugs_positional,omitempty"`
}

// ProtocolConfig configures the output protocol encoder.
type ProtocolConfig struct {
	// ChunkSize is the maximum protocol line length before chunking.
	// Environment: AP_CHUNK_SIZE
	// Default: 8192
	ChunkSize int `yaml:"chunk_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig configures the prometheus listener.
type MetricsConfig struct {
	// Addr is the host:port for /metrics. Empty disables the listener.
	// Environment: AP_METRICS_ADDR
	Addr string `yaml:"addr,omitempty"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP collector endpoint. Empty disables export.
	// Environment: OTEL_EXPORTER_OTLP_ENDPOINT
	Endpoint string `yaml:"endpoint,omitempty"`

	// ServiceName is reported as service.name.
	ServiceName string `yaml:"service_name,omitempty"`

	// Protocol is "http/protobuf" or "grpc".
	// Environment: OTEL_EXPORTER_OTLP_PROTOCOL
	// Default: http/protobuf
	Protocol string `yaml:"protocol,omitempty"`

	// Insecure disables TLS to the collector.
	// Environment: OTEL_EXPORTER_OTLP_INSECURE
	Insecure bool `yaml:"insecure,omitempty"`

	// Stdout writes spans to stderr instead of a collector.
	Stdout bool `yaml:"stdout,omitempty"`
}

// StoreConfig configures the run history database.
type StoreConfig struct {
	// Path is the sqlite database file.
	// Environment: TASKSHIM_STORE
	// Default: <data dir>/runs.db
	Path string `yaml:"path,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Temporal: TemporalConfig{
			Address:         DefaultTemporalAddress,
			Namespace:       DefaultNamespace,
			TaskQueue:       DefaultTaskQueue,
			ShutdownTimeout: 10 * time.Second,
		},
		Task: TaskConfig{
			Runtime:        "standard",
			EntrypointFunc: "Main",
		},
		Protocol: ProtocolConfig{
			ChunkSize: DefaultChunkSize,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "taskshim",
			Protocol:    "http/protobuf",
		},
	}
}

// ResolvePath returns the config file to load: the explicit path if set,
// otherwise AP_CONFIG.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return os.Getenv("AP_CONFIG")
}

// Load loads configuration from environment variables and optionally from a YAML file.
// Environment variables take precedence over file-based configuration.
// If configPath is empty, only environment variables are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &shimerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	// Apply defaults to any zero values (handles minimal configs)
	cfg.applyDefaults()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, &shimerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Temporal.Address == "" {
		c.Temporal.Address = d.Temporal.Address
	}
	if c.Temporal.Namespace == "" {
		c.Temporal.Namespace = d.Temporal.Namespace
	}
	if c.Temporal.TaskQueue == "" {
		c.Temporal.TaskQueue = d.Temporal.TaskQueue
	}
	if c.Temporal.ShutdownTimeout == 0 {
		c.Temporal.ShutdownTimeout = d.Temporal.ShutdownTimeout
	}
	if c.Task.Runtime == "" {
		c.Task.Runtime = d.Task.Runtime
	}
	if c.Task.EntrypointFunc == "" {
		c.Task.EntrypointFunc = d.Task.EntrypointFunc
	}
	if c.Protocol.ChunkSize == 0 {
		c.Protocol.ChunkSize = d.Protocol.ChunkSize
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = d.Tracing.ServiceName
	}
	if c.Tracing.Protocol == "" {
		c.Tracing.Protocol = d.Tracing.Protocol
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	// Expand home directory if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables. Malformed
// numeric or boolean values are reported rather than ignored so a
// misconfigured deployment fails at startup.
func (c *Config) loadFromEnv() error {
	if val := os.Getenv("AP_TEMPORAL_ADDR"); val != "" {
		c.Temporal.Address = val
	}
	if val := os.Getenv("AP_NAMESPACE"); val != "" {
		c.Temporal.Namespace = val
	}
	if val := os.Getenv("AP_TASK_QUEUE"); val != "" {
		c.Temporal.TaskQueue = val
	}

	if val := os.Getenv("AP_RUNTIME"); val != "" {
		c.Task.Runtime = strings.ToLower(val)
	}
	if val := os.Getenv("AP_ENTRYPOINT"); val != "" {
		c.Task.Entrypoint = val
	}
	if val := os.Getenv("AP_ENTRYPOINT_FUNC"); val != "" {
		c.Task.EntrypointFunc = val
	}
	if val := os.Getenv("AP_PARAM_SLUGS_POSITIONAL"); val != "" {
		b, err := strconv.ParseBool(val)
		if err != nil {
			return &shimerrors.ConfigError{Key: "AP_PARAM_SLUGS_POSITIONAL", Reason: "must be a boolean", Cause: err}
		}
		c.Task.ParamSlugsPositional = b
	}

	if val := os.Getenv("AP_CHUNK_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return &shimerrors.ConfigError{Key: "AP_CHUNK_SIZE", Reason: "must be an integer", Cause: err}
		}
		c.Protocol.ChunkSize = n
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}

	if val := os.Getenv("AP_METRICS_ADDR"); val != "" {
		c.Metrics.Addr = val
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"); val != "" {
		c.Tracing.Protocol = strings.ToLower(val)
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"); val != "" {
		c.Tracing.Insecure = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("TASKSHIM_STORE"); val != "" {
		c.Store.Path = val
	}

	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Temporal.Address == "" {
		errs = append(errs, "temporal.address is required")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	if c.Temporal.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Sprintf("temporal.shutdown_timeout must not be negative, got %v", c.Temporal.ShutdownTimeout))
	}

	switch c.Task.Runtime {
	case "standard", "workflow":
	default:
		errs = append(errs, fmt.Sprintf("task.runtime must be one of [standard, workflow], got %q", c.Task.Runtime))
	}

	// A chunk must hold at least one full UTF-8 rune.
	if c.Protocol.ChunkSize < 4 {
		errs = append(errs, fmt.Sprintf("protocol.chunk_size must be at least 4, got %d", c.Protocol.ChunkSize))
	}

	switch c.Tracing.Protocol {
	case "http/protobuf", "grpc":
	default:
		errs = append(errs, fmt.Sprintf("tracing.protocol must be one of [http/protobuf, grpc], got %q", c.Tracing.Protocol))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// IsWorkflow reports whether the task runs under the durable engine.
func (c *Config) IsWorkflow() bool {
	return c.Task.Runtime == "workflow"
}

// StorePath returns the run history database path, falling back to the
// data directory.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "runs.db"), nil
}
