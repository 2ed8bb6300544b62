package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{float64(10), "10"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestScalarCoercionErrors(t *testing.T) {
	if _, err := asInt(2.5); err == nil {
		t.Error("asInt(2.5) error = nil, want error for a fractional thread count")
	}
	if _, err := asInt(true); err == nil {
		t.Error("asInt(true) error = nil, want error")
	}
	if _, err := asString([]interface{}{"a"}); err == nil {
		t.Error("asString(list) error = nil, want error")
	}
	if _, err := asDuration("soon"); err == nil {
		t.Error(`asDuration("soon") error = nil, want error`)
	}
	if _, err := asIntList([]interface{}{60, 1.5}); err == nil {
		t.Error("asIntList([60 1.5]) error = nil, want error")
	}
	if got, err := asFloat64("0.25"); err != nil || got != 0.25 {
		t.Errorf(`asFloat64("0.25") = %v, %v`, got, err)
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{"15", 15 * time.Second},
		{10, 10 * time.Second},
		{2.5, 2500 * time.Millisecond},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsIntList(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    []int
		wantErr bool
	}{
		{name: "nil", input: nil, want: nil},
		{name: "ints", input: []int{1, 2}, want: []int{1, 2}},
		{name: "yaml list", input: []interface{}{60, "90"}, want: []int{60, 90}},
		{name: "single number", input: 45, want: []int{45}},
		{name: "comma string", input: "5, 10,15", want: []int{5, 10, 15}},
		{name: "blank string", input: "  ", want: nil},
		{name: "bad token", input: "5,x", wantErr: true},
		{name: "trailing comma", input: "5,", wantErr: true},
		{name: "unsupported", input: map[string]int{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asIntList(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("asIntList(%v) error = nil, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("asIntList(%v) error = %v", tt.input, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("asIntList(%v) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("asIntList(%v)[%d] = %d, want %d", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := defaultConfig()
	settings := map[string]interface{}{
		"nodeip":    "10.0.0.1",
		"threads":   2,
		"duration":  []interface{}{10, 20},
		"container": "",
		"tracing": map[string]interface{}{
			"Endpoint":  "collector:4318",
			"protocol":  "http",
			"propagate": false,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.NodeIP != "10.0.0.1" {
		t.Errorf("NodeIP = %q, want 10.0.0.1", cfg.NodeIP)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if len(cfg.Durations) != 2 {
		t.Errorf("Durations = %v, want 2 entries", cfg.Durations)
	}
	if cfg.Container != "" {
		t.Errorf("Container = %q, want empty", cfg.Container)
	}
	if cfg.StressBinary != "cassandra-stress" {
		t.Errorf("StressBinary = %q, want default", cfg.StressBinary)
	}
	if cfg.Tracing.Endpoint != "collector:4318" || cfg.Tracing.Protocol != "http" {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.Tracing.Propagate == nil || *cfg.Tracing.Propagate {
		t.Errorf("Tracing.Propagate = %v, want explicit false", cfg.Tracing.Propagate)
	}
}

func TestApplyConfigSettingsRejectsBadTypes(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"threads":  {"threads": "many"},
		"duration": {"duration": "1,two"},
		"tracing":  {"tracing": "not-a-map"},
	}
	for name, settings := range cases {
		t.Run(name, func(t *testing.T) {
			if err := applyConfigSettings(defaultConfig(), settings); err == nil {
				t.Fatalf("applyConfigSettings(%v) error = nil, want error", settings)
			}
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := defaultConfig()
	cfg.NodeIP = "from-file"

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"--node-ip=from-flag",
		"--duration=7,8",
		"-n", "2",
		"--tracing-propagate",
		"--tracing-protocol=HTTP",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.NodeIP != "from-flag" {
		t.Errorf("NodeIP = %q, want from-flag", cfg.NodeIP)
	}
	if len(cfg.Durations) != 2 || cfg.Durations[1] != 8 {
		t.Errorf("Durations = %v, want [7 8]", cfg.Durations)
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if cfg.CassandraThreads != DefaultCassandraThreads {
		t.Errorf("CassandraThreads = %d, want untouched default", cfg.CassandraThreads)
	}
	if cfg.Tracing.Propagate == nil || !*cfg.Tracing.Propagate {
		t.Errorf("Tracing.Propagate = %v, want true", cfg.Tracing.Propagate)
	}
	if cfg.Tracing.Protocol != "http" {
		t.Errorf("Tracing.Protocol = %q, want http", cfg.Tracing.Protocol)
	}
}
