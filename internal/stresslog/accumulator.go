package stresslog

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies which metric family a line belongs to.
type Kind int

const (
	KindNone Kind = iota
	KindMax
	KindP99
	KindMean
	KindOpRate
)

func (k Kind) String() string {
	switch k {
	case KindMax:
		return "latency_max"
	case KindP99:
		return "latency_p99"
	case KindMean:
		return "latency_mean"
	case KindOpRate:
		return "op_rate"
	default:
		return "none"
	}
}

// Labels matched against the text left of the first colon, in priority order.
const (
	labelMax    = "Latency max"
	labelP99    = "Latency 99th percentile"
	labelMean   = "Latency mean"
	labelOpRate = "Op rate"
	writePhase  = "WRITE"
)

// Sample is one recognised metric value.
type Sample struct {
	Kind  Kind
	Value float64
}

// ParseLine classifies a single output line. ok is false for lines without a
// "label : value" shape, with a non-numeric value, or with an unknown label.
func ParseLine(line string) (Sample, bool) {
	label, rest, found := strings.Cut(line, ":")
	if !found {
		return Sample{}, false
	}
	label = strings.TrimSpace(label)
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Sample{}, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", ""), 64)
	if err != nil {
		return Sample{}, false
	}

	switch {
	case strings.Contains(label, labelMax):
		return Sample{Kind: KindMax, Value: value}, true
	case strings.Contains(label, labelP99):
		return Sample{Kind: KindP99, Value: value}, true
	case strings.Contains(label, labelMean):
		return Sample{Kind: KindMean, Value: value}, true
	case strings.Contains(label, labelOpRate) && strings.Contains(line, writePhase):
		return Sample{Kind: KindOpRate, Value: value}, true
	default:
		return Sample{}, false
	}
}

// Accumulator is the running state of a log fold. It is a value: Add and
// ProcessLine return the next state and never modify the receiver's samples.
type Accumulator struct {
	OpRateSum   float64   `json:"op_rate_sum"`
	MeanSamples []float64 `json:"latency_mean_samples"`
	P99Samples  []float64 `json:"latency_p99_samples"`
	MaxSamples  []float64 `json:"latency_max_samples"`
}

// Add folds one sample into the state. Each call copies the affected sample
// slice; Fold uses push on a private copy instead.
func (a Accumulator) Add(s Sample) Accumulator {
	switch s.Kind {
	case KindMax:
		a.MaxSamples = append(slices.Clip(a.MaxSamples), s.Value)
	case KindP99:
		a.P99Samples = append(slices.Clip(a.P99Samples), s.Value)
	case KindMean:
		a.MeanSamples = append(slices.Clip(a.MeanSamples), s.Value)
	case KindOpRate:
		a.OpRateSum += s.Value
	}
	return a
}

// push appends s in place. The caller must own the sample slices.
func (a *Accumulator) push(s Sample) {
	switch s.Kind {
	case KindMax:
		a.MaxSamples = append(a.MaxSamples, s.Value)
	case KindP99:
		a.P99Samples = append(a.P99Samples, s.Value)
	case KindMean:
		a.MeanSamples = append(a.MeanSamples, s.Value)
	case KindOpRate:
		a.OpRateSum += s.Value
	}
}

func (a Accumulator) clone() Accumulator {
	a.MaxSamples = slices.Clone(a.MaxSamples)
	a.P99Samples = slices.Clone(a.P99Samples)
	a.MeanSamples = slices.Clone(a.MeanSamples)
	return a
}

// ProcessLine folds one raw line into the state. Unrecognised lines are ignored.
func (a Accumulator) ProcessLine(line string) Accumulator {
	s, ok := ParseLine(line)
	if !ok {
		return a
	}
	return a.Add(s)
}

// Reduce is the value-returning fold step. Fold produces the same state.
func Reduce(acc Accumulator, line string) Accumulator {
	return acc.ProcessLine(line)
}

// Summary is the final result of an aggregation.
type Summary struct {
	LatencyMeanAvg   float64 `json:"latency_mean_avg" yaml:"latency_mean_avg"`
	LatencyP99Avg    float64 `json:"latency_p99_avg" yaml:"latency_p99_avg"`
	LatencyMaxStddev float64 `json:"latency_max_stddev" yaml:"latency_max_stddev"`
	OpRateSum        float64 `json:"op_rate_sum" yaml:"op_rate_sum"`
}

// MarshalJSON renders NaN and infinite values as null. cassandra-stress reports
// NaN latencies for phases that completed no operations.
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		LatencyMeanAvg   *float64 `json:"latency_mean_avg"`
		LatencyP99Avg    *float64 `json:"latency_p99_avg"`
		LatencyMaxStddev *float64 `json:"latency_max_stddev"`
		OpRateSum        *float64 `json:"op_rate_sum"`
	}{
		LatencyMeanAvg:   finite(s.LatencyMeanAvg),
		LatencyP99Avg:    finite(s.LatencyP99Avg),
		LatencyMaxStddev: finite(s.LatencyMaxStddev),
		OpRateSum:        finite(s.OpRateSum),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Summarize computes the aggregate statistics of the accumulated samples.
func (a Accumulator) Summarize() Summary {
	return Summary{
		LatencyMeanAvg:   mean(a.MeanSamples),
		LatencyP99Avg:    mean(a.P99Samples),
		LatencyMaxStddev: sampleStddev(a.MaxSamples),
		OpRateSum:        a.OpRateSum,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStddev uses the n-1 denominator; fewer than two values yield 0.
func sampleStddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
