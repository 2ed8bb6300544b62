package stresslog

// Aggregation is a Summary together with per-artifact bookkeeping.
type Aggregation struct {
	Summary     Summary
	Accumulator Accumulator
	// Lines counts the lines read from each artifact, keyed by path.
	Lines map[string]int
}

// Fold drives every line of every artifact through acc, in the given order.
// The first unreadable artifact aborts the fold. acc itself is not modified.
func Fold(acc Accumulator, paths []string) (Accumulator, map[string]int, error) {
	acc = acc.clone()
	counts := make(map[string]int, len(paths))
	for _, path := range paths {
		src, err := Open(path)
		if err != nil {
			return acc, counts, err
		}
		n := 0
		for line, err := range src.Lines() {
			if err != nil {
				return acc, counts, err
			}
			if sample, ok := ParseLine(line); ok {
				acc.push(sample)
			}
			n++
		}
		counts[path] = n
	}
	return acc, counts, nil
}

// Aggregate folds all artifacts through a single accumulator and summarizes it.
func Aggregate(paths []string) (Summary, error) {
	agg, err := AggregateDetailed(paths)
	if err != nil {
		return Summary{}, err
	}
	return agg.Summary, nil
}

// AggregateDetailed is Aggregate but also returns the final accumulator and line counts.
func AggregateDetailed(paths []string) (Aggregation, error) {
	acc, counts, err := Fold(Accumulator{}, paths)
	if err != nil {
		return Aggregation{}, err
	}
	return Aggregation{
		Summary:     acc.Summarize(),
		Accumulator: acc,
		Lines:       counts,
	}, nil
}
