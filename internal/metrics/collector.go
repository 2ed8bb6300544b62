package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// launchFailure is implemented by errors describing a worker whose process
// never started.
type launchFailure interface {
	LaunchFailure() bool
}

// Collector records per-worker outcomes in a thread-safe manner.
type Collector struct {
	mu             sync.Mutex
	hist           *hdrhistogram.Histogram
	succeeded      int64
	failed         int64
	launchFailures int64
	canceled       int64
	minDuration    time.Duration
	maxDuration    time.Duration
	sumDuration    time.Duration
	exitCodes      map[int]int
}

// Stats represents aggregated run statistics.
type Stats struct {
	Total          int64         `json:"total" yaml:"total"`
	Succeeded      int64         `json:"succeeded" yaml:"succeeded"`
	Failed         int64         `json:"failed" yaml:"failed"`
	LaunchFailures int64         `json:"launch_failures" yaml:"launch_failures"`
	Canceled       int64         `json:"canceled" yaml:"canceled"`
	MinDuration    time.Duration `json:"-" yaml:"-"`
	MaxDuration    time.Duration `json:"-" yaml:"-"`
	MeanDuration   time.Duration `json:"-" yaml:"-"`
	P50Duration    time.Duration `json:"-" yaml:"-"`
	P90Duration    time.Duration `json:"-" yaml:"-"`
	P99Duration    time.Duration `json:"-" yaml:"-"`
	Elapsed        time.Duration `json:"-" yaml:"-"`

	// JSON-friendly second fields.
	MinDurationSec  float64     `json:"min_duration_s" yaml:"min_duration_s"`
	MaxDurationSec  float64     `json:"max_duration_s" yaml:"max_duration_s"`
	MeanDurationSec float64     `json:"mean_duration_s" yaml:"mean_duration_s"`
	P50DurationSec  float64     `json:"p50_duration_s" yaml:"p50_duration_s"`
	P90DurationSec  float64     `json:"p90_duration_s" yaml:"p90_duration_s"`
	P99DurationSec  float64     `json:"p99_duration_s" yaml:"p99_duration_s"`
	ElapsedSec      float64     `json:"elapsed_s" yaml:"elapsed_s"`
	ExitCodes       map[int]int `json:"exit_codes,omitempty" yaml:"exit_codes,omitempty"`
}

// FailureRate returns the fraction of recorded workers that failed.
func (s Stats) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Total)
}

func NewCollector() *Collector {
	// Track worker wall-clock time from 1ms up to 24h with 3 significant figures.
	h := hdrhistogram.New(1, 24*60*60*1000, 3)
	return &Collector{
		hist:      h,
		exitCodes: make(map[int]int),
	}
}

// RecordWorker records one terminated worker. exitCode is -1 for workers that
// never ran or were killed by a signal; such codes are not tallied.
func (c *Collector) RecordWorker(duration time.Duration, exitCode int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lf launchFailure
	launchFailed := err != nil && errors.As(err, &lf) && lf.LaunchFailure()

	if !launchFailed {
		ms := duration.Milliseconds()
		if ms < c.hist.LowestTrackableValue() {
			ms = c.hist.LowestTrackableValue()
		}
		if ms > c.hist.HighestTrackableValue() {
			ms = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(ms)
		c.sumDuration += duration
		if c.hist.TotalCount() == 1 || duration < c.minDuration {
			c.minDuration = duration
		}
		if duration > c.maxDuration {
			c.maxDuration = duration
		}
	}

	if exitCode >= 0 {
		c.exitCodes[exitCode]++
	}

	switch {
	case err == nil:
		c.succeeded++
	case launchFailed:
		c.failed++
		c.launchFailures++
	default:
		c.failed++
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.canceled++
	}
}

// Completed returns the number of workers recorded so far.
func (c *Collector) Completed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.succeeded + c.failed
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Total:          c.succeeded + c.failed,
		Succeeded:      c.succeeded,
		Failed:         c.failed,
		LaunchFailures: c.launchFailures,
		Canceled:       c.canceled,
		MinDuration:    c.minDuration,
		MaxDuration:    c.maxDuration,
		Elapsed:        elapsed,
	}

	if n := c.hist.TotalCount(); n > 0 {
		stats.MeanDuration = time.Duration(int64(c.sumDuration) / n)
		stats.P50Duration = time.Duration(c.hist.ValueAtQuantile(50)) * time.Millisecond
		stats.P90Duration = time.Duration(c.hist.ValueAtQuantile(90)) * time.Millisecond
		stats.P99Duration = time.Duration(c.hist.ValueAtQuantile(99)) * time.Millisecond
	}

	stats.MinDurationSec = stats.MinDuration.Seconds()
	stats.MaxDurationSec = stats.MaxDuration.Seconds()
	stats.MeanDurationSec = stats.MeanDuration.Seconds()
	stats.P50DurationSec = stats.P50Duration.Seconds()
	stats.P90DurationSec = stats.P90Duration.Seconds()
	stats.P99DurationSec = stats.P99Duration.Seconds()
	stats.ElapsedSec = elapsed.Seconds()

	if len(c.exitCodes) > 0 {
		stats.ExitCodes = make(map[int]int, len(c.exitCodes))
		for k, v := range c.exitCodes {
			stats.ExitCodes[k] = v
		}
	}

	return stats
}
