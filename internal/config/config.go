package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	DefaultWorkers          = 5
	DefaultCassandraThreads = 10
	DefaultOutputDir        = "results"
	DefaultContainer        = "some-scylla"
	DefaultKillGrace        = 5 * time.Second
)

type Config struct {
	NodeIP           string        `mapstructure:"node_ip"`
	Workers          int           `mapstructure:"threads"`
	Durations        []int         `mapstructure:"duration"`
	CassandraThreads int           `mapstructure:"cassandra_threads"`
	OutputDir        string        `mapstructure:"output_dir"`
	Container        string        `mapstructure:"container"`
	StressBinary     string        `mapstructure:"stress_binary"`
	StressMode       string        `mapstructure:"stress_mode"`
	MaxParallel      int           `mapstructure:"max_parallel"`
	LaunchRate       float64       `mapstructure:"launch_rate"`
	KillGrace        time.Duration `mapstructure:"kill_grace"`
	JSONOutput       bool          `mapstructure:"json_output"`
	YAMLOutput       bool          `mapstructure:"yaml_output"`
	MetricsFile      string        `mapstructure:"metrics_file"`
	Thresholds       []string      `mapstructure:"thresholds"`
	Progress         bool          `mapstructure:"progress"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
	ConfigFile       string        `mapstructure:"-"`
	Tracing          TracingConfig `mapstructure:"tracing"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`     // OTLP collector address
	Protocol    string  `mapstructure:"protocol"`     // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"` // defaults to OTEL_SERVICE_NAME or crankstress
	SampleRate  float64 `mapstructure:"sample_rate"`  // 0.0 - 1.0
	Insecure    bool    `mapstructure:"insecure"`     // plaintext exporter connection
	Propagate   *bool   `mapstructure:"propagate"`    // pass trace context to workers (default: when enabled)
}

// Enabled reports whether an OTLP endpoint is configured, directly or via the
// standard OTEL_EXPORTER_OTLP_ENDPOINT variable.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// MismatchError reports a duration list whose length differs from the worker count.
type MismatchError struct {
	Durations int
	Workers   int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("number of durations (%d) does not match number of workers (%d)", e.Durations, e.Workers)
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the configuration. A duration/worker count mismatch is reported
// on its own as *MismatchError, before any other check.
func (c Config) Validate() error {
	if len(c.Durations) > 0 && len(c.Durations) != c.Workers {
		return &MismatchError{Durations: len(c.Durations), Workers: c.Workers}
	}

	var issues []string
	if strings.TrimSpace(c.NodeIP) == "" {
		issues = append(issues, "node-ip is required (use --help for usage information)")
	}
	if c.Workers < 1 {
		issues = append(issues, "threads must be >= 1")
	}
	if len(c.Durations) == 0 {
		issues = append(issues, "duration is required: one value in seconds per worker")
	}
	for i, d := range c.Durations {
		if d <= 0 {
			issues = append(issues, fmt.Sprintf("duration[%d] must be > 0, got %d", i, d))
		}
	}
	if c.CassandraThreads < 1 {
		issues = append(issues, "cassandra-threads must be >= 1")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		issues = append(issues, "output-dir must not be empty")
	}
	if c.MaxParallel < 0 {
		issues = append(issues, "max-parallel must be >= 0")
	}
	if c.LaunchRate < 0 {
		issues = append(issues, "launch-rate must be >= 0")
	}
	if c.KillGrace < 0 {
		issues = append(issues, "kill-grace must be >= 0")
	}
	if c.JSONOutput && c.YAMLOutput {
		issues = append(issues, "json-output and yaml-output are mutually exclusive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log-format %q is not supported (use console or json)", c.LogFormat))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

// Warnings lists settings that are valid but worth a second look.
func (c Config) Warnings() []string {
	var warnings []string
	if c.Workers > 64 {
		warnings = append(warnings, fmt.Sprintf("High worker count configured (%d processes). Ensure the target node and load host can take it.", c.Workers))
	}
	if c.CassandraThreads > 1000 {
		warnings = append(warnings, fmt.Sprintf("High cassandra-stress thread count configured (%d per worker).", c.CassandraThreads))
	}
	if c.MaxParallel > 0 && c.MaxParallel < c.Workers {
		warnings = append(warnings, fmt.Sprintf("max-parallel (%d) is below the worker count (%d); workers will run in waves.", c.MaxParallel, c.Workers))
	}
	return warnings
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol %q is not supported (use grpc or http)", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing sample-rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
