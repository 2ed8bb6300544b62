package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := defaultConfig()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.NodeIP = strings.TrimSpace(cfg.NodeIP)
	cfg.OutputDir = strings.TrimSpace(cfg.OutputDir)
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(cfg.Tracing.Protocol))

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Workers:          DefaultWorkers,
		CassandraThreads: DefaultCassandraThreads,
		OutputDir:        DefaultOutputDir,
		Container:        DefaultContainer,
		StressBinary:     "cassandra-stress",
		StressMode:       "write",
		KillGrace:        DefaultKillGrace,
		LogLevel:         "info",
		LogFormat:        "console",
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "node_ip", "nodeip", "node-ip"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("node_ip: %w", err)
		}
		cfg.NodeIP = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "threads", "workers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("threads: %w", err)
		}
		cfg.Workers = val
	}

	if raw, ok := lookupSetting(settings, "duration", "durations"); ok {
		val, err := asIntList(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Durations = val
	}

	if raw, ok := lookupSetting(settings, "cassandra_threads", "cassandrathreads", "cassandra-threads"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("cassandra_threads: %w", err)
		}
		cfg.CassandraThreads = val
	}

	if raw, ok := lookupSetting(settings, "output_dir", "outputdir", "output-dir"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output_dir: %w", err)
		}
		cfg.OutputDir = val
	}

	if raw, ok := lookupSetting(settings, "container"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("container: %w", err)
		}
		cfg.Container = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "stress_binary", "stressbinary", "stress-binary"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("stress_binary: %w", err)
		}
		if val = strings.TrimSpace(val); val != "" {
			cfg.StressBinary = val
		}
	}

	if raw, ok := lookupSetting(settings, "stress_mode", "stressmode", "stress-mode"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("stress_mode: %w", err)
		}
		if val = strings.TrimSpace(val); val != "" {
			cfg.StressMode = val
		}
	}

	if raw, ok := lookupSetting(settings, "max_parallel", "maxparallel", "max-parallel"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_parallel: %w", err)
		}
		cfg.MaxParallel = val
	}

	if raw, ok := lookupSetting(settings, "launch_rate", "launchrate", "launch-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("launch_rate: %w", err)
		}
		cfg.LaunchRate = val
	}

	if raw, ok := lookupSetting(settings, "kill_grace", "killgrace", "kill-grace"); ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("kill_grace: %w", err)
		}
		cfg.KillGrace = val
	}

	if raw, ok := lookupSetting(settings, "json_output", "jsonoutput", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("json_output: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "yaml_output", "yamloutput", "yaml-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("yaml_output: %w", err)
		}
		cfg.YAMLOutput = val
	}

	if raw, ok := lookupSetting(settings, "metrics_file", "metricsfile", "metrics-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metrics_file: %w", err)
		}
		cfg.MetricsFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "progress"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("progress: %w", err)
		}
		cfg.Progress = val
	}

	if raw, ok := lookupSetting(settings, "log_level", "loglevel", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		cfg.LogLevel = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "log_format", "logformat", "log-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_format: %w", err)
		}
		cfg.LogFormat = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := parseTracing(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func parseTracing(t *TracingConfig, value interface{}) error {
	if value == nil {
		return nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		t.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		t.Protocol = val
	}
	if raw, ok := lookupSetting(settings, "service_name", "servicename", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		t.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return nil
}
