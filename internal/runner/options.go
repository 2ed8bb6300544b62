package runner

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

const (
	DefaultOutputDir = "results"
	defaultKillGrace = 5 * time.Second
)

// Options configure the Runner.
type Options struct {
	OutputDir      string                                 // artifact directory, created if absent
	Builder        CommandBuilder                         // worker command factory (default StressCommand)
	MaxParallel    int                                    // workers running at once (0 means all)
	LaunchRate     float64                                // worker launches per second (0 means no pacing)
	KillGrace      time.Duration                          // SIGTERM to SIGKILL delay when cancelled
	RunID          string                                 // run identifier (default: new ULID)
	Logger         *zerolog.Logger                        // structured logger (default: disabled)
	Tracer         trace.Tracer                           // span source (default: no-op)
	PropagateTrace bool                                   // pass TRACEPARENT to worker processes
	OnWorkerStart  func(WorkerSpec)                       // called before a worker is launched
	OnWorkerDone   func(Outcome)                          // called after a worker terminates
	LimiterFactory func(perSecond float64) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.OutputDir == "" {
		o.OutputDir = DefaultOutputDir
	}
	if o.Builder == nil {
		o.Builder = StressCommand{Container: DefaultContainer}
	}
	if o.MaxParallel < 0 {
		o.MaxParallel = 0
	}
	if o.LaunchRate < 0 {
		o.LaunchRate = 0
	}
	if o.KillGrace <= 0 {
		o.KillGrace = defaultKillGrace
	}
	if o.RunID == "" {
		o.RunID = ulid.Make().String()
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("crankstress")
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(perSecond float64) *rate.Limiter {
			if perSecond <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one spaces launches evenly.
			return rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}
