package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"evfeed/internal/platform/config"
	"evfeed/internal/platform/httpserver"
	"evfeed/internal/platform/kafka/producer"
	"evfeed/internal/platform/redis"
	"evfeed/internal/registration/metrics"
	"evfeed/internal/registration/pipeline"
	"evfeed/internal/registration/ports"
	"evfeed/internal/registration/source"
)

const opsShutdownTimeout = 5 * time.Second

// run wires the sink, metrics and ops server around one pipeline run and
// logs the terminal summary.
func run(ctx context.Context, cfg config.Producer, log *slog.Logger) (pipeline.Summary, error) {
	runID := uuid.NewString()
	log = log.With("run_id", runID)

	policy, err := pipeline.ParseFailurePolicy(cfg.FailurePolicy)
	if err != nil {
		return pipeline.Summary{RunID: runID}, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Input first: a missing file wins over an unreachable broker.
	src, err := source.Open(cfg.CSVPath)
	if err != nil {
		err = fmt.Errorf("%w: %w", pipeline.ErrSourceUnavailable, err)
		logSourceUnavailable(log, cfg.CSVPath, err)
		return pipeline.Summary{RunID: runID, TerminatedEarly: true}, err
	}

	sink, err := newSink(ctx, cfg, runID, log)
	if err != nil {
		_ = src.Close()
		return pipeline.Summary{RunID: runID}, fmt.Errorf("%w: %w", pipeline.ErrSinkTransport, err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			log.Warn("close sink", "error", cerr)
		}
	}()

	p, err := pipeline.New(sink, cfg.Topic,
		pipeline.WithRunID(runID),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
		pipeline.WithProgress(cfg.ProgressEvery, nil),
		pipeline.WithFailurePolicy(policy),
		pipeline.WithBreakerThreshold(cfg.BreakerThreshold),
		pipeline.WithRateLimit(cfg.RatePerSecond),
	)
	if err != nil {
		_ = src.Close()
		return pipeline.Summary{RunID: runID}, err
	}

	log.Info("starting producer",
		"csv", cfg.CSVPath,
		"sink", cfg.Sink,
		"topic", cfg.Topic,
		"failure_policy", string(policy),
	)

	var (
		sum    pipeline.Summary
		runErr error
	)
	g, gctx := errgroup.WithContext(ctx)

	var ops *http.Server
	if cfg.MetricsAddr != "" {
		ops = httpserver.New(cfg.MetricsAddr, httpserver.NewOpsRouter(reg))
		g.Go(func() error {
			log.Info("ops server listening", "addr", cfg.MetricsAddr)
			if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			if ops == nil {
				return
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), opsShutdownTimeout)
			defer cancel()
			if err := ops.Shutdown(shutdownCtx); err != nil {
				log.Warn("ops server shutdown", "error", err)
			}
		}()

		sum, runErr = p.RunSource(gctx, func(context.Context) (ports.Source, error) {
			return src, nil
		})
		return nil
	})

	opsErr := g.Wait()

	attrs := []any{
		"published", sum.Published,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"terminated_early", sum.TerminatedEarly,
	}
	switch {
	case errors.Is(runErr, pipeline.ErrSourceUnavailable):
		logSourceUnavailable(log, cfg.CSVPath, runErr)
	case runErr != nil:
		log.Error("finished with errors", append(attrs, "error", runErr)...)
	default:
		log.Info("finished", attrs...)
	}

	return sum, errors.Join(runErr, opsErr)
}

func logSourceUnavailable(log *slog.Logger, path string, err error) {
	log.Error("input file not found, place the registration export at the configured csv path",
		"csv", path, "error", err)
}

// newSink builds the configured broker sink. Kafka connects lazily; Redis is
// pinged up front.
func newSink(ctx context.Context, cfg config.Producer, runID string, log *slog.Logger) (ports.Sink, error) {
	switch cfg.Sink {
	case config.SinkRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return redis.NewStreamSink(client.Client,
			redis.WithMaxLen(cfg.Redis.StreamMaxLen),
			redis.WithRunID(runID),
			redis.WithLogger(log),
		), nil
	default:
		sink, err := producer.New(cfg.Kafka,
			producer.WithRunID(runID),
			producer.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		if cfg.Kafka.CreateTopic {
			if err := sink.EnsureTopic(ctx, cfg.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
				_ = sink.Close()
				return nil, err
			}
		}
		return sink, nil
	}
}
