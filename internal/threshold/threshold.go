package threshold

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/crankstress/internal/metrics"
	"github.com/torosent/crankstress/internal/stresslog"
)

// Threshold represents a run assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "latency_p99", "workers_failed"
	Aggregate string  // e.g., "avg", "sum", "stddev", "count", "rate"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// supported lists the aggregates each metric accepts.
var supported = map[string][]string{
	"op_rate":         {"sum"},
	"latency_mean":    {"avg"},
	"latency_p99":     {"avg"},
	"latency_max":     {"stddev"},
	"workers_failed":  {"count", "rate"},
	"worker_duration": {"min", "max", "avg", "p50", "p90", "p99"},
}

var thresholdPattern = regexp.MustCompile(`^([a-z_0-9]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Evaluator evaluates thresholds against a run's summary and statistics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against the aggregated summary and run stats.
func (e *Evaluator) Evaluate(summary stresslog.Summary, stats metrics.Stats) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, evaluateOne(t, summary, stats))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func evaluateOne(t Threshold, summary stresslog.Summary, stats metrics.Stats) Result {
	actual, err := extractMetricValue(t, summary, stats)
	if err != nil {
		return Result{
			Threshold: t,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value),
	}
}

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "op_rate:sum > 50000"           (summed WRITE op rate, op/s)
// - "latency_mean:avg < 5"          (average of mean latencies, ms)
// - "latency_p99:avg < 20"          (average of 99th percentiles, ms)
// - "latency_max:stddev < 100"      (sample stddev of max latencies, ms)
// - "workers_failed:count == 0"     (failed workers)
// - "workers_failed:rate < 0.5"     (failed workers as a fraction)
// - "worker_duration:max < 700"     (worker wall-clock time, seconds)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'latency_p99:avg < 20')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	aggregates, ok := supported[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: op_rate, latency_mean, latency_p99, latency_max, workers_failed, worker_duration)", metric)
	}
	if !slices.Contains(aggregates, aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(aggregates, ", "))
	}
	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errs []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errs = append(errs, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errs, "; "))
	}

	return result, nil
}

func isValidOperator(operator string) bool {
	valid := []string{"<", "<=", ">", ">=", "=="}
	for _, v := range valid {
		if operator == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, summary stresslog.Summary, stats metrics.Stats) (float64, error) {
	switch t.Metric {
	case "op_rate":
		return summary.OpRateSum, nil
	case "latency_mean":
		return summary.LatencyMeanAvg, nil
	case "latency_p99":
		return summary.LatencyP99Avg, nil
	case "latency_max":
		return summary.LatencyMaxStddev, nil
	case "workers_failed":
		return extractFailureMetric(t.Aggregate, stats)
	case "worker_duration":
		return extractDurationMetric(t.Aggregate, stats)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

func extractFailureMetric(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "count":
		return float64(stats.Failed), nil
	case "rate":
		return stats.FailureRate(), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for workers_failed (use 'count' or 'rate')", aggregate)
	}
}

func extractDurationMetric(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "min":
		return stats.MinDurationSec, nil
	case "max":
		return stats.MaxDurationSec, nil
	case "avg":
		return stats.MeanDurationSec, nil
	case "p50":
		return stats.P50DurationSec, nil
	case "p90":
		return stats.P90DurationSec, nil
	case "p99":
		return stats.P99DurationSec, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for worker_duration", aggregate)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
