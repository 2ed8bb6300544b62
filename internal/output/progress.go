package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/torosent/crankstress/internal/metrics"
)

// ProgressReporter displays worker progress while a run is active.
type ProgressReporter struct {
	collector *metrics.Collector
	total     int
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter for a run of total workers
// that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, total int, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		total:     total,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and terminates the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	wrote := false
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, p.line())
			wrote = true
		case <-p.done:
			if wrote {
				fmt.Fprintln(p.writer, p.line())
			}
			return
		}
	}
}

func (p *ProgressReporter) line() string {
	elapsed := time.Since(p.start)
	stats := p.collector.Stats(elapsed)
	line := fmt.Sprintf("\rWorkers: %d/%d done | Failed: %d | Elapsed: %s",
		stats.Total, p.total, stats.Failed, elapsed.Round(time.Second))
	if stats.LaunchFailures > 0 {
		line += fmt.Sprintf(" | Not started: %d", stats.LaunchFailures)
	}
	return line
}
