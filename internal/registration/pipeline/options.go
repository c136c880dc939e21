package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"evfeed/internal/registration/metrics"
)

// FailurePolicy selects what a run does after the sink rejects a record.
type FailurePolicy string

const (
	// FailurePolicyContinue keeps publishing and reports the failures at the end.
	FailurePolicyContinue FailurePolicy = "continue"
	// FailurePolicyAbort stops at the first rejected record.
	FailurePolicyAbort FailurePolicy = "abort"
)

// ParseFailurePolicy maps a config value onto a FailurePolicy. Empty means
// continue.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", FailurePolicyContinue:
		return FailurePolicyContinue, nil
	case FailurePolicyAbort:
		return FailurePolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}

const (
	defaultProgressEvery    = 100
	defaultBreakerThreshold = 5
	defaultFlushTimeout     = 30 * time.Second
)

// Option configures the Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for progress and failure reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithProgress reports every n published records to fn. A nil fn logs the
// notification instead; n <= 0 disables progress reporting.
func WithProgress(n int, fn func(Progress)) Option {
	return func(p *Pipeline) {
		p.progressEvery = n
		p.onProgress = fn
	}
}

// WithFailurePolicy sets the behavior after a submit failure.
func WithFailurePolicy(policy FailurePolicy) Option {
	return func(p *Pipeline) {
		p.policy = policy
	}
}

// WithBreakerThreshold sets how many consecutive submit failures mark the sink
// as unusable.
func WithBreakerThreshold(n int) Option {
	return func(p *Pipeline) {
		p.breakerThreshold = n
	}
}

// WithRateLimit throttles submissions to perSecond records. Zero or negative
// leaves the run unthrottled.
func WithRateLimit(perSecond float64) Option {
	return func(p *Pipeline) {
		if perSecond <= 0 {
			p.limiter = nil
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		p.runID = id
	}
}

// WithFlushTimeout bounds the final flush when the run context is already
// cancelled.
func WithFlushTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.flushTimeout = d
	}
}

// WithTracer sets the tracer used for the run span.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}
