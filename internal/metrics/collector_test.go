package metrics_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/torosent/crankstress/internal/metrics"
)

type notStarted struct{}

func (notStarted) Error() string       { return "exec: not found" }
func (notStarted) LaunchFailure() bool { return true }

func TestCollectorDurationStats(t *testing.T) {
	c := metrics.NewCollector()

	c.RecordWorker(10*time.Second, 0, nil)
	c.RecordWorker(20*time.Second, 0, nil)
	c.RecordWorker(30*time.Second, 1, errors.New("exit status 1"))

	stats := c.Stats(31 * time.Second)

	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.Succeeded != 2 || stats.Failed != 1 {
		t.Errorf("Succeeded/Failed = %d/%d, want 2/1", stats.Succeeded, stats.Failed)
	}
	if stats.MinDuration != 10*time.Second {
		t.Errorf("MinDuration = %s, want 10s", stats.MinDuration)
	}
	if stats.MaxDuration != 30*time.Second {
		t.Errorf("MaxDuration = %s, want 30s", stats.MaxDuration)
	}
	if stats.MeanDuration != 20*time.Second {
		t.Errorf("MeanDuration = %s, want 20s", stats.MeanDuration)
	}
	if stats.ExitCodes[0] != 2 || stats.ExitCodes[1] != 1 {
		t.Errorf("ExitCodes = %v, want map[0:2 1:1]", stats.ExitCodes)
	}
	if got := stats.FailureRate(); got < 0.33 || got > 0.34 {
		t.Errorf("FailureRate() = %v, want 1/3", got)
	}
}

func TestCollectorLaunchFailures(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordWorker(5*time.Second, 0, nil)
	c.RecordWorker(time.Millisecond, -1, fmt.Errorf("worker 1: %w", notStarted{}))

	stats := c.Stats(0)
	if stats.LaunchFailures != 1 || stats.Failed != 1 {
		t.Errorf("LaunchFailures/Failed = %d/%d, want 1/1", stats.LaunchFailures, stats.Failed)
	}
	if stats.MinDuration != 5*time.Second {
		t.Errorf("MinDuration = %s, want 5s (launch failures carry no duration)", stats.MinDuration)
	}
	if _, ok := stats.ExitCodes[-1]; ok {
		t.Errorf("ExitCodes = %v, want no entry for -1", stats.ExitCodes)
	}
}

func TestCollectorCanceled(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordWorker(time.Second, -1, fmt.Errorf("worker 0: %w", context.Canceled))
	if got := c.Stats(0).Canceled; got != 1 {
		t.Errorf("Canceled = %d, want 1", got)
	}
}

func TestPercentilesCalculations(t *testing.T) {
	c := metrics.NewCollector()

	for i := 1; i <= 100; i++ {
		c.RecordWorker(time.Duration(i)*time.Second, 0, nil)
	}

	stats := c.Stats(0)

	if stats.P50Duration < 49*time.Second || stats.P50Duration > 51*time.Second {
		t.Errorf("P50Duration = %s, want ~50s", stats.P50Duration)
	}
	if stats.P90Duration < 89*time.Second || stats.P90Duration > 91*time.Second {
		t.Errorf("P90Duration = %s, want ~90s", stats.P90Duration)
	}
	if stats.P99Duration < 98*time.Second || stats.P99Duration > 100*time.Second {
		t.Errorf("P99Duration = %s, want ~99s", stats.P99Duration)
	}
}

func TestEmptyCollector(t *testing.T) {
	stats := metrics.NewCollector().Stats(time.Second)
	if stats.Total != 0 || stats.MeanDuration != 0 || stats.P99Duration != 0 {
		t.Errorf("Stats() = %+v, want zero values", stats)
	}
	if stats.FailureRate() != 0 {
		t.Errorf("FailureRate() = %v, want 0", stats.FailureRate())
	}
}

func TestJSONReportSchema(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordWorker(15*time.Second, 0, nil)

	data, err := json.Marshal(c.Stats(16 * time.Second))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	requiredFields := []string{"total", "succeeded", "failed", "launch_failures", "min_duration_s", "max_duration_s", "mean_duration_s", "p50_duration_s", "p90_duration_s", "p99_duration_s", "elapsed_s", "exit_codes"}
	for _, field := range requiredFields {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := metrics.NewCollector()

	var wg sync.WaitGroup
	workers := 10
	recordsPerWorker := 100

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < recordsPerWorker; j++ {
				c.RecordWorker(time.Second, 0, nil)
			}
		}()
	}
	wg.Wait()

	if got, want := c.Completed(), int64(workers*recordsPerWorker); got != want {
		t.Errorf("Completed() = %d, want %d", got, want)
	}
}
