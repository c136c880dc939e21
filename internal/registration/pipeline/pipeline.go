// Package pipeline drives registration rows from a source, through
// normalization and the validity gate, into a broker sink.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"evfeed/internal/registration"
	"evfeed/internal/registration/metrics"
	"evfeed/internal/registration/ports"
	"evfeed/pkg/platform/sentinel"
)

var (
	// ErrSourceUnavailable means the source could not be opened or read
	// before the first row. Nothing was published.
	ErrSourceUnavailable = fmt.Errorf("source %w", sentinel.ErrUnavailable)

	// ErrSinkTransport wraps every failure reported by the sink.
	ErrSinkTransport = fmt.Errorf("sink %w", sentinel.ErrTransport)
)

// Summary is the terminal result of a run. Published + Skipped + Failed is
// the number of rows read from the source.
type Summary struct {
	RunID           string `json:"run_id"`
	Published       int    `json:"published"`
	Skipped         int    `json:"skipped"`
	Failed          int    `json:"failed"`
	TerminatedEarly bool   `json:"terminated_early"`
}

func (s Summary) read() int {
	return s.Published + s.Skipped + s.Failed
}

// Progress is a periodic, purely observational notification.
type Progress struct {
	Published int
	Make      string
	Model     string
	City      string
}

// Opener opens the source for one run.
type Opener func(ctx context.Context) (ports.Source, error)

// Pipeline publishes every valid registration row to one topic, in source
// order. It is not safe for concurrent runs.
type Pipeline struct {
	sink   ports.Sink
	topic  string
	runID  string
	policy FailurePolicy

	breakerThreshold int
	progressEvery    int
	onProgress       func(Progress)
	limiter          *rate.Limiter
	flushTimeout     time.Duration
	normalize        func(registration.RawRecord) registration.Record

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New creates a pipeline publishing to topic through sink.
func New(sink ports.Sink, topic string, opts ...Option) (*Pipeline, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}

	p := &Pipeline{
		sink:          sink,
		topic:         topic,
		runID:         uuid.NewString(),
		policy:        FailurePolicyContinue,
		progressEvery: defaultProgressEvery,
		flushTimeout:  defaultFlushTimeout,
		normalize:     registration.Normalize,
		logger:        slog.New(slog.DiscardHandler),
		tracer:        otel.Tracer("evfeed/pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RunID identifies this pipeline's run in logs and message headers.
func (p *Pipeline) RunID() string {
	return p.runID
}

// RunSource opens the source and runs it. An open failure is reported as
// ErrSourceUnavailable. Sources implementing io.Closer are closed afterwards.
func (p *Pipeline) RunSource(ctx context.Context, open Opener) (Summary, error) {
	src, err := open(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "source unavailable", "run_id", p.runID, "error", err)
		return Summary{RunID: p.runID, TerminatedEarly: true}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	if closer, ok := src.(io.Closer); ok {
		defer func() {
			if cerr := closer.Close(); cerr != nil {
				p.logger.WarnContext(ctx, "close source", "error", cerr)
			}
		}()
	}
	return p.Run(ctx, src)
}

// Run drains src, submitting each publishable record to the sink, then
// flushes the sink before returning. Transport failures are joined into the
// returned error; the summary is always valid.
func (p *Pipeline) Run(ctx context.Context, src ports.Source) (Summary, error) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("messaging.destination.name", p.topic),
		attribute.String("evfeed.run_id", p.runID),
	))
	defer span.End()

	sum := Summary{RunID: p.runID}
	breaker := newFailureBreaker(p.breakerThreshold)

	var (
		runErr        error
		transportErrs []error
	)

loop:
	for {
		raw, err := src.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			break loop
		case errors.Is(err, ports.ErrMalformedRow):
			sum.Skipped++
			p.metrics.IncSkipped(metrics.ReasonMalformed)
			p.logger.DebugContext(ctx, "skipping malformed row", "error", err)
			continue
		case errors.Is(err, sentinel.ErrUnavailable) && sum.read() == 0:
			sum.TerminatedEarly = true
			span.SetStatus(codes.Error, "source unavailable")
			return sum, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		case ctx.Err() != nil:
			sum.TerminatedEarly = true
			runErr = ctx.Err()
			break loop
		default:
			sum.TerminatedEarly = true
			runErr = fmt.Errorf("read source: %w", err)
			break loop
		}

		rec, reason, ok := p.prepare(ctx, raw)
		if !ok {
			sum.Skipped++
			p.metrics.IncSkipped(reason)
			continue
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				sum.TerminatedEarly = true
				runErr = err
				break loop
			}
		}

		if err := p.sink.Submit(ctx, p.topic, rec); err != nil {
			sum.Failed++
			p.metrics.AddFailed(1)
			transportErrs = append(transportErrs, fmt.Errorf("%w: submit record %d: %w", ErrSinkTransport, sum.read(), err))
			p.logger.WarnContext(ctx, "submit failed",
				"run_id", p.runID,
				"dol_vehicle_id", rec.DOLVehicleID,
				"consecutive_failures", breaker.Failures()+1,
				"error", err,
			)

			if ctx.Err() != nil {
				sum.TerminatedEarly = true
				runErr = ctx.Err()
				break loop
			}
			tripped := breaker.RecordFailure()
			if p.policy == FailurePolicyAbort || tripped || errors.Is(err, sentinel.ErrClosed) {
				sum.TerminatedEarly = true
				break loop
			}
			continue
		}
		breaker.RecordSuccess()

		sum.Published++
		p.metrics.IncSubmitted()
		p.reportProgress(ctx, sum.Published, &rec)
	}

	if err := p.flush(ctx, &sum); err != nil {
		transportErrs = append(transportErrs, err)
	}
	p.metrics.AddPublished(sum.Published)

	p.metrics.ObserveRun(time.Since(start))
	span.SetAttributes(
		attribute.Int("evfeed.published", sum.Published),
		attribute.Int("evfeed.skipped", sum.Skipped),
		attribute.Int("evfeed.failed", sum.Failed),
		attribute.Bool("evfeed.terminated_early", sum.TerminatedEarly),
	)

	err := errors.Join(runErr, errors.Join(transportErrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "run finished with errors")
	}
	return sum, err
}

// prepare normalizes and gates one row. A panic in either step is absorbed
// and the row is skipped.
func (p *Pipeline) prepare(ctx context.Context, raw registration.RawRecord) (rec registration.Record, reason string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "normalization panicked, skipping row", "panic", r)
			rec, reason, ok = registration.Record{}, metrics.ReasonPanic, false
		}
	}()

	rec = p.normalize(raw)
	if !registration.IsPublishable(rec) {
		return rec, metrics.ReasonInvalid, false
	}
	return rec, "", true
}

// flush is the end-of-run barrier. It runs even after cancellation so records
// already handed to the sink are settled; delivery failures it reports are
// moved from published to failed.
func (p *Pipeline) flush(ctx context.Context, sum *Summary) error {
	flushCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), p.flushTimeout)
		defer cancel()
	}

	err := p.sink.Flush(flushCtx)
	if err == nil {
		return nil
	}

	var derr *ports.DeliveryError
	if errors.As(err, &derr) {
		n := min(derr.Failed, sum.Published)
		sum.Published -= n
		sum.Failed += n
		p.metrics.AddFailed(n)
	}
	p.logger.ErrorContext(ctx, "flush failed", "run_id", p.runID, "error", err)
	return fmt.Errorf("%w: flush: %w", ErrSinkTransport, err)
}

func (p *Pipeline) reportProgress(ctx context.Context, published int, rec *registration.Record) {
	if p.progressEvery <= 0 || published%p.progressEvery != 0 {
		return
	}
	vehicleMake, model, city := rec.Sample()
	progress := Progress{Published: published, Make: vehicleMake, Model: model, City: city}
	if p.onProgress != nil {
		p.onProgress(progress)
		return
	}
	p.logger.InfoContext(ctx, "sent vehicles",
		"count", progress.Published,
		"make", progress.Make,
		"model", progress.Model,
		"city", progress.City,
	)
}
