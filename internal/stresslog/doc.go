// Package stresslog turns raw cassandra-stress output into aggregate statistics.
//
// The package has three layers:
//   - [Source] streams trimmed lines from one artifact file. Every call to
//     [Source.Lines] reopens the file, so a source can be read any number of times.
//   - [Accumulator] is a value-type reducer. [Accumulator.ProcessLine] returns the
//     next state; lines that do not carry a recognised metric leave it unchanged.
//   - [Aggregate] folds every artifact through one accumulator, in artifact order
//     and then line order, and returns the final [Summary].
//
// # Recognised lines
//
// A line contributes when it has the shape "label : value ..." and the first token
// of the value parses as a float once thousands separators are removed:
//
//	Op rate                   :   12,345 op/s  [WRITE: 12,345 op/s]
//	Latency mean              :    1.2 ms [WRITE: 1.2 ms]
//	Latency 99th percentile   :    4.5 ms [WRITE: 4.5 ms]
//	Latency max               :   87.3 ms [WRITE: 87.3 ms]
//
// Labels are matched by substring with a fixed priority (max, 99th percentile,
// mean, op rate); only op-rate lines mentioning WRITE are summed.
package stresslog
