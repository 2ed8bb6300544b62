package output

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/crankstress/internal/metrics"
	"github.com/torosent/crankstress/internal/runner"
	"github.com/torosent/crankstress/internal/stresslog"
	"github.com/torosent/crankstress/internal/threshold"
)

// Report is everything known about a finished run.
type Report struct {
	RunID      string            `json:"run_id" yaml:"run_id"`
	Target     string            `json:"target,omitempty" yaml:"target,omitempty"`
	OutputDir  string            `json:"output_dir" yaml:"output_dir"`
	Elapsed    time.Duration     `json:"-" yaml:"-"`
	ElapsedSec float64           `json:"elapsed_s" yaml:"elapsed_s"`
	Summary    stresslog.Summary `json:"summary" yaml:"summary"`
	Workers    []WorkerRow       `json:"workers" yaml:"workers"`
	Stats      metrics.Stats     `json:"stats" yaml:"stats"`
	Thresholds *ThresholdSummary `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// WorkerRow describes one worker in a report.
type WorkerRow struct {
	Index       int     `json:"index" yaml:"index"`
	DurationSec int     `json:"duration_s" yaml:"duration_s"`
	Artifact    string  `json:"artifact" yaml:"artifact"`
	ExitCode    int     `json:"exit_code" yaml:"exit_code"`
	ElapsedSec  float64 `json:"elapsed_s" yaml:"elapsed_s"`
	Lines       int     `json:"lines" yaml:"lines"`
	Status      string  `json:"status" yaml:"status"`
	Error       string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// ThresholdSummary is the serialisable form of threshold results.
type ThresholdSummary struct {
	Total   int                   `json:"total" yaml:"total"`
	Passed  int                   `json:"passed" yaml:"passed"`
	Failed  int                   `json:"failed" yaml:"failed"`
	Results []ThresholdResultJSON `json:"results" yaml:"results"`
}

type ThresholdResultJSON struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Metric    string  `json:"metric" yaml:"metric"`
	Aggregate string  `json:"aggregate" yaml:"aggregate"`
	Operator  string  `json:"operator" yaml:"operator"`
	Expected  float64 `json:"expected" yaml:"expected"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// MarshalJSON renders a non-finite actual value as null.
func (r ThresholdResultJSON) MarshalJSON() ([]byte, error) {
	type plain ThresholdResultJSON
	var actual *float64
	if !math.IsNaN(r.Actual) && !math.IsInf(r.Actual, 0) {
		actual = &r.Actual
	}
	return json.Marshal(struct {
		plain
		Actual *float64 `json:"actual"`
	}{plain: plain(r), Actual: actual})
}

// NewReport assembles a Report from the orchestrator result, the aggregation
// over its artifacts, the collected stats and any threshold results.
func NewReport(res runner.Result, agg stresslog.Aggregation, stats metrics.Stats, results []threshold.Result) Report {
	rep := Report{
		RunID:      res.RunID,
		OutputDir:  res.OutputDir,
		Elapsed:    res.Duration,
		ElapsedSec: res.Duration.Seconds(),
		Summary:    agg.Summary,
		Stats:      stats,
		Workers:    make([]WorkerRow, 0, len(res.Outcomes)),
	}
	for _, o := range res.Outcomes {
		if rep.Target == "" {
			rep.Target = o.Spec.Target
		}
		row := WorkerRow{
			Index:       o.Spec.Index,
			DurationSec: o.Spec.Duration,
			Artifact:    o.Artifact,
			ExitCode:    o.ExitCode,
			ElapsedSec:  o.Duration.Seconds(),
			Lines:       agg.Lines[o.Artifact],
			Status:      workerStatus(o),
		}
		if o.Err != nil {
			row.Error = o.Err.Error()
		}
		rep.Workers = append(rep.Workers, row)
	}
	if len(results) > 0 {
		rep.Thresholds = summarizeThresholds(results)
	}
	return rep
}

func workerStatus(o runner.Outcome) string {
	switch {
	case o.Err == nil:
		return "ok"
	case !o.Launched():
		return "not started"
	case o.Canceled:
		return "canceled"
	default:
		return "failed"
	}
}

func summarizeThresholds(results []threshold.Result) *ThresholdSummary {
	ts := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, r := range results {
		ts.Results[i] = ThresholdResultJSON{
			Threshold: r.Threshold.Raw,
			Metric:    r.Threshold.Metric,
			Aggregate: r.Threshold.Aggregate,
			Operator:  r.Threshold.Operator,
			Expected:  r.Threshold.Value,
			Actual:    r.Actual,
			Pass:      r.Pass,
		}
		if r.Pass {
			ts.Passed++
		} else {
			ts.Failed++
		}
	}
	return ts
}

// PrintSummary writes the four summary lines of a run.
func PrintSummary(w io.Writer, s stresslog.Summary) {
	fmt.Fprintf(w, "Op rate sum: %s op/s\n", formatValue(s.OpRateSum))
	fmt.Fprintf(w, "Average Latency mean: %s ms\n", formatValue(s.LatencyMeanAvg))
	fmt.Fprintf(w, "Average Latency 99th percentile: %s ms\n", formatValue(s.LatencyP99Avg))
	fmt.Fprintf(w, "Standard deviation of Latency max: %s ms\n", formatValue(s.LatencyMaxStddev))
}

// formatValue prints v unrounded and without an exponent.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// PrintReport outputs a human-readable report: run header, worker table,
// summary and threshold results.
func PrintReport(w io.Writer, rep Report) {
	fmt.Fprintln(w, "\n--- Stress Run Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", rep.RunID)
	if rep.Target != "" {
		fmt.Fprintf(w, "Target:            %s\n", rep.Target)
	}
	fmt.Fprintf(w, "Workers:           %d\n", len(rep.Workers))
	fmt.Fprintf(w, "Succeeded:         %d\n", rep.Stats.Succeeded)
	fmt.Fprintf(w, "Failed:            %d\n", rep.Stats.Failed)
	if rep.Stats.LaunchFailures > 0 {
		fmt.Fprintf(w, "Not started:       %d\n", rep.Stats.LaunchFailures)
	}
	fmt.Fprintf(w, "Wall time:         %s\n", rep.Elapsed.Round(time.Millisecond))

	if len(rep.Workers) > 0 {
		fmt.Fprintln(w, "\nWorkers:")
		for _, row := range rep.Workers {
			fmt.Fprintf(w, "  - #%d: %s, exit=%d, duration=%ds, elapsed=%.1fs, lines=%d, artifact=%s\n",
				row.Index, row.Status, row.ExitCode, row.DurationSec, row.ElapsedSec, row.Lines, row.Artifact)
			if row.Error != "" {
				fmt.Fprintf(w, "      error: %s\n", row.Error)
			}
		}
	}

	if rep.Stats.Total > rep.Stats.LaunchFailures {
		fmt.Fprintln(w, "\nWorker Duration:")
		fmt.Fprintf(w, "  Min:             %s\n", rep.Stats.MinDuration.Round(time.Millisecond))
		fmt.Fprintf(w, "  Max:             %s\n", rep.Stats.MaxDuration.Round(time.Millisecond))
		fmt.Fprintf(w, "  Mean:            %s\n", rep.Stats.MeanDuration.Round(time.Millisecond))
		fmt.Fprintf(w, "  P90:             %s\n", rep.Stats.P90Duration)
	}

	fmt.Fprintln(w, "\nSummary:")
	PrintSummary(w, rep.Summary)

	if rep.Thresholds != nil {
		fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", rep.Thresholds.Passed, rep.Thresholds.Total)
		for _, r := range rep.Thresholds.Results {
			status := "PASS"
			if !r.Pass {
				status = "FAIL"
			}
			fmt.Fprintf(w, "  %s %s (actual %.2f)\n", status, r.Threshold, r.Actual)
		}
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, rep Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}
