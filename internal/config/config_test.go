package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/crankstress/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{"--node-ip", "10.0.0.5"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.NodeIP != "10.0.0.5" {
		t.Errorf("NodeIP = %q, want 10.0.0.5", cfg.NodeIP)
	}
	if cfg.Workers != config.DefaultWorkers {
		t.Errorf("Workers = %d, want %d", cfg.Workers, config.DefaultWorkers)
	}
	if cfg.CassandraThreads != config.DefaultCassandraThreads {
		t.Errorf("CassandraThreads = %d, want %d", cfg.CassandraThreads, config.DefaultCassandraThreads)
	}
	if cfg.OutputDir != "results" {
		t.Errorf("OutputDir = %q, want results", cfg.OutputDir)
	}
	if cfg.Container != "some-scylla" {
		t.Errorf("Container = %q, want some-scylla", cfg.Container)
	}
	if cfg.KillGrace != 5*time.Second {
		t.Errorf("KillGrace = %s, want 5s", cfg.KillGrace)
	}
	if cfg.LogFormat != "console" {
		t.Errorf("LogFormat = %q, want console", cfg.LogFormat)
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("Tracing.SampleRate = %v, want 1.0", cfg.Tracing.SampleRate)
	}
	if len(cfg.Durations) != 0 {
		t.Errorf("Durations = %v, want empty", cfg.Durations)
	}
}

func TestLoadNoArgsRequestsHelp(t *testing.T) {
	_, err := config.NewLoader().Load(nil)
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load(nil) error = %v, want ErrHelpRequested", err)
	}
}

func TestLoadFlags(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{
		"--node-ip", " 192.168.1.20 ",
		"--duration", "60, 90,120",
		"--threads", "3",
		"--cassandra-threads", "25",
		"--container", "",
		"--max-parallel", "2",
		"--launch-rate", "0.5",
		"--kill-grace", "2s",
		"--threshold", "latency_p99:avg < 20",
		"--threshold", "workers_failed:count == 0",
		"--log-format", "JSON",
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.NodeIP != "192.168.1.20" {
		t.Errorf("NodeIP = %q, want 192.168.1.20", cfg.NodeIP)
	}
	want := []int{60, 90, 120}
	if len(cfg.Durations) != len(want) {
		t.Fatalf("Durations = %v, want %v", cfg.Durations, want)
	}
	for i := range want {
		if cfg.Durations[i] != want[i] {
			t.Errorf("Durations[%d] = %d, want %d", i, cfg.Durations[i], want[i])
		}
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
	if cfg.CassandraThreads != 25 {
		t.Errorf("CassandraThreads = %d, want 25", cfg.CassandraThreads)
	}
	if cfg.Container != "" {
		t.Errorf("Container = %q, want empty", cfg.Container)
	}
	if cfg.MaxParallel != 2 {
		t.Errorf("MaxParallel = %d, want 2", cfg.MaxParallel)
	}
	if cfg.LaunchRate != 0.5 {
		t.Errorf("LaunchRate = %v, want 0.5", cfg.LaunchRate)
	}
	if cfg.KillGrace != 2*time.Second {
		t.Errorf("KillGrace = %s, want 2s", cfg.KillGrace)
	}
	if len(cfg.Thresholds) != 2 {
		t.Errorf("Thresholds = %v, want 2 entries", cfg.Thresholds)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--node-ip", "h", "--duration", "60,abc"})
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "abc") {
		t.Errorf("Load() error = %q, want mention of the bad token", err)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{
		"node_ip": "10.1.1.1",
		"threads": 2,
		"duration": [30, 45],
		"cassandra_threads": 16,
		"output_dir": "out",
		"kill_grace": "1s",
		"json_output": true,
		"thresholds": ["op_rate:sum > 1000"],
		"tracing": {"endpoint": "localhost:4317", "insecure": true, "sample_rate": 0.25}
	}`), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--cassandra-threads", "8"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.NodeIP != "10.1.1.1" {
		t.Errorf("NodeIP = %q, want 10.1.1.1", cfg.NodeIP)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if len(cfg.Durations) != 2 || cfg.Durations[0] != 30 || cfg.Durations[1] != 45 {
		t.Errorf("Durations = %v, want [30 45]", cfg.Durations)
	}
	if cfg.CassandraThreads != 8 {
		t.Errorf("CassandraThreads = %d, want flag override 8", cfg.CassandraThreads)
	}
	if cfg.OutputDir != "out" {
		t.Errorf("OutputDir = %q, want out", cfg.OutputDir)
	}
	if cfg.KillGrace != time.Second {
		t.Errorf("KillGrace = %s, want 1s", cfg.KillGrace)
	}
	if !cfg.JSONOutput {
		t.Error("JSONOutput = false, want true")
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("Thresholds = %v, want 1 entry", cfg.Thresholds)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || !cfg.Tracing.Insecure || cfg.Tracing.SampleRate != 0.25 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoadConfigFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := strings.Join([]string{
		"node_ip: scylla-1",
		"threads: 3",
		"duration: \"10,20,30\"",
		"container: scylla-test",
		"max_parallel: 1",
		"launch_rate: 2",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.NodeIP != "scylla-1" {
		t.Errorf("NodeIP = %q, want scylla-1", cfg.NodeIP)
	}
	if len(cfg.Durations) != 3 || cfg.Durations[2] != 30 {
		t.Errorf("Durations = %v, want [10 20 30]", cfg.Durations)
	}
	if cfg.Container != "scylla-test" {
		t.Errorf("Container = %q, want scylla-test", cfg.Container)
	}
	if cfg.MaxParallel != 1 {
		t.Errorf("MaxParallel = %d, want 1", cfg.MaxParallel)
	}
	if cfg.LaunchRate != 2 {
		t.Errorf("LaunchRate = %v, want 2", cfg.LaunchRate)
	}
}

func TestValidateMismatch(t *testing.T) {
	cfg := config.Config{
		NodeIP:           "h",
		Workers:          3,
		Durations:        []int{60, 60},
		CassandraThreads: 10,
		OutputDir:        "results",
	}
	err := cfg.Validate()
	var mismatch *config.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Validate() error = %v, want *MismatchError", err)
	}
	if mismatch.Durations != 2 || mismatch.Workers != 3 {
		t.Errorf("MismatchError = %+v, want {2 3}", mismatch)
	}
}

func TestValidateMismatchReportedFirst(t *testing.T) {
	cfg := config.Config{Workers: 1, Durations: []int{1, 2}}
	var mismatch *config.MismatchError
	if err := cfg.Validate(); !errors.As(err, &mismatch) {
		t.Fatalf("Validate() error = %v, want *MismatchError ahead of other issues", err)
	}
}

func TestConfigValidationErrors(t *testing.T) {
	valid := config.Config{
		NodeIP:           "h",
		Workers:          1,
		Durations:        []int{10},
		CassandraThreads: 1,
		OutputDir:        "results",
	}

	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   []string
	}{
		{
			name:   "missing node",
			mutate: func(c *config.Config) { c.NodeIP = " " },
			want:   []string{"node-ip"},
		},
		{
			name:   "missing durations",
			mutate: func(c *config.Config) { c.Durations = nil },
			want:   []string{"duration is required"},
		},
		{
			name: "non-positive values",
			mutate: func(c *config.Config) {
				c.Durations = []int{0}
				c.CassandraThreads = 0
				c.MaxParallel = -1
				c.LaunchRate = -1
				c.KillGrace = -time.Second
			},
			want: []string{"duration[0]", "cassandra-threads", "max-parallel", "launch-rate", "kill-grace"},
		},
		{
			name: "output conflict",
			mutate: func(c *config.Config) {
				c.JSONOutput = true
				c.YAMLOutput = true
			},
			want: []string{"mutually exclusive"},
		},
		{
			name: "tracing",
			mutate: func(c *config.Config) {
				c.Tracing.Protocol = "udp"
				c.Tracing.SampleRate = 2
			},
			want: []string{"protocol", "sample-rate"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want error")
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() error %q missing %q", err.Error(), want)
				}
			}
		})
	}
}

func TestWarnings(t *testing.T) {
	cfg := config.Config{Workers: 100, MaxParallel: 10, CassandraThreads: 10}
	warnings := cfg.Warnings()
	if len(warnings) != 2 {
		t.Fatalf("Warnings() = %v, want 2 entries", warnings)
	}
}
