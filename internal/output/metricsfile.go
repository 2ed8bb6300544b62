package output

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "crankstress"

// WriteMetricsFile writes the report in the Prometheus text exposition format,
// suitable for the node_exporter textfile collector. The file is replaced
// atomically.
func WriteMetricsFile(path string, rep Report) error {
	return prometheus.WriteToTextfile(path, reportRegistry(rep))
}

func reportRegistry(rep Report) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	labels := prometheus.Labels{"run_id": rep.RunID}

	gauge := func(name, help string, value float64) {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		})
		g.Set(value)
		reg.MustRegister(g)
	}

	gauge("op_rate_sum", "Sum of WRITE op rates over all workers, in op/s.", rep.Summary.OpRateSum)
	gauge("latency_mean_avg_ms", "Average of the workers' mean latencies, in ms.", rep.Summary.LatencyMeanAvg)
	gauge("latency_p99_avg_ms", "Average of the workers' 99th percentile latencies, in ms.", rep.Summary.LatencyP99Avg)
	gauge("latency_max_stddev_ms", "Sample standard deviation of the workers' max latencies, in ms.", rep.Summary.LatencyMaxStddev)
	gauge("run_elapsed_seconds", "Wall-clock time of the run.", rep.ElapsedSec)

	workers := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "workers",
		Help:        "Workers by final status.",
		ConstLabels: labels,
	}, []string{"status"})
	workers.WithLabelValues("succeeded").Set(float64(rep.Stats.Succeeded))
	workers.WithLabelValues("failed").Set(float64(rep.Stats.Failed))
	workers.WithLabelValues("not_started").Set(float64(rep.Stats.LaunchFailures))
	reg.MustRegister(workers)

	elapsed := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   metricsNamespace,
		Name:        "worker_elapsed_seconds",
		Help:        "Wall-clock time of each worker process.",
		ConstLabels: labels,
	}, []string{"worker", "exit_code"})
	for _, row := range rep.Workers {
		elapsed.WithLabelValues(strconv.Itoa(row.Index), strconv.Itoa(row.ExitCode)).Set(row.ElapsedSec)
	}
	reg.MustRegister(elapsed)

	if rep.Thresholds != nil {
		passed := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "threshold_passed",
			Help:        "1 when the threshold passed, 0 otherwise.",
			ConstLabels: labels,
		}, []string{"threshold"})
		for _, r := range rep.Thresholds.Results {
			v := 0.0
			if r.Pass {
				v = 1
			}
			passed.WithLabelValues(r.Threshold).Set(v)
		}
		reg.MustRegister(passed)
	}

	return reg
}
