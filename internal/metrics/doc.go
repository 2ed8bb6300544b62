// Package metrics collects run statistics about cassandra-stress workers.
//
// The central [Collector] type is fed once per terminated worker:
//
//	collector := metrics.NewCollector()
//	collector.RecordWorker(outcome.Duration, outcome.ExitCode, outcome.Err)
//	stats := collector.Stats(elapsed)
//
// Worker wall-clock durations go into an HDR histogram, so [Stats] carries
// P50, P90 and P99 alongside min, max and mean. Workers that never started are
// counted as failures and as launch failures but contribute no duration.
//
// The Collector is safe for concurrent use.
package metrics
