package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crankstress --node-ip <addr> --duration <s,s,...> [flags]",
		Short:         "Run parallel cassandra-stress workers and aggregate their results",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Workload flags
	flags.String("node-ip", "", "Node address cassandra-stress connects to")
	flags.String("duration", "", "Comma-separated durations in seconds, one per worker (e.g. 60,60,120)")
	flags.IntP("threads", "n", DefaultWorkers, "Number of concurrent cassandra-stress workers")
	flags.Int("cassandra-threads", DefaultCassandraThreads, "Threads inside each cassandra-stress worker")
	flags.String("container", DefaultContainer, "Container to run cassandra-stress in via docker exec (empty runs it on the host)")
	flags.String("stress-binary", "cassandra-stress", "cassandra-stress executable")
	flags.String("stress-mode", "write", "cassandra-stress command (write, mixed, ...)")

	// Execution flags
	flags.StringP("output-dir", "o", DefaultOutputDir, "Directory for per-worker output files")
	flags.Int("max-parallel", 0, "Maximum workers running at once (0 means all)")
	flags.Float64("launch-rate", 0, "Worker launches per second (0 means launch all at once)")
	flags.Duration("kill-grace", DefaultKillGrace, "Time between SIGTERM and SIGKILL when a run is interrupted")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("yaml-output", false, "Emit YAML formatted output")
	flags.String("metrics-file", "", "Write the summary as Prometheus text format to this file")
	flags.StringSlice("threshold", nil, "Summary thresholds (repeatable, e.g., 'latency_p99:avg < 20')")
	flags.Bool("progress", false, "Print worker progress to stderr while the run is active")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "console", "Log format: 'console' or 'json'")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported to the collector")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.Bool("tracing-insecure", false, "Use a plaintext connection to the collector")
	flags.Bool("tracing-propagate", false, "Pass TRACEPARENT to worker processes")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("node-ip") {
		val, err := fs.GetString("node-ip")
		if err != nil {
			return err
		}
		cfg.NodeIP = strings.TrimSpace(val)
	}
	if fs.Changed("duration") {
		val, err := fs.GetString("duration")
		if err != nil {
			return err
		}
		durations, err := parseDurationList(val)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Durations = durations
	}
	if fs.Changed("threads") {
		val, err := fs.GetInt("threads")
		if err != nil {
			return err
		}
		cfg.Workers = val
	}
	if fs.Changed("cassandra-threads") {
		val, err := fs.GetInt("cassandra-threads")
		if err != nil {
			return err
		}
		cfg.CassandraThreads = val
	}
	if fs.Changed("container") {
		val, err := fs.GetString("container")
		if err != nil {
			return err
		}
		cfg.Container = strings.TrimSpace(val)
	}
	if fs.Changed("stress-binary") {
		val, err := fs.GetString("stress-binary")
		if err != nil {
			return err
		}
		cfg.StressBinary = strings.TrimSpace(val)
	}
	if fs.Changed("stress-mode") {
		val, err := fs.GetString("stress-mode")
		if err != nil {
			return err
		}
		cfg.StressMode = strings.TrimSpace(val)
	}
	if fs.Changed("output-dir") {
		val, err := fs.GetString("output-dir")
		if err != nil {
			return err
		}
		cfg.OutputDir = val
	}
	if fs.Changed("max-parallel") {
		val, err := fs.GetInt("max-parallel")
		if err != nil {
			return err
		}
		cfg.MaxParallel = val
	}
	if fs.Changed("launch-rate") {
		val, err := fs.GetFloat64("launch-rate")
		if err != nil {
			return err
		}
		cfg.LaunchRate = val
	}
	if fs.Changed("kill-grace") {
		val, err := fs.GetDuration("kill-grace")
		if err != nil {
			return err
		}
		cfg.KillGrace = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("yaml-output") {
		val, err := fs.GetBool("yaml-output")
		if err != nil {
			return err
		}
		cfg.YAMLOutput = val
	}
	if fs.Changed("metrics-file") {
		val, err := fs.GetString("metrics-file")
		if err != nil {
			return err
		}
		cfg.MetricsFile = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}
	if fs.Changed("progress") {
		val, err := fs.GetBool("progress")
		if err != nil {
			return err
		}
		cfg.Progress = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = val
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = val
	}
	return applyTracingFlagOverrides(&cfg.Tracing, fs)
}

func applyTracingFlagOverrides(t *TracingConfig, fs *pflag.FlagSet) error {
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		t.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		t.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		t.Insecure = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		t.Propagate = &val
	}
	return nil
}
