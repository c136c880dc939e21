package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"evfeed/internal/registration"
	"evfeed/pkg/platform/sentinel"
)

// Stream entry field names.
const (
	FieldKey     = "key"
	FieldRunID   = "run_id"
	FieldPayload = "payload"
)

// StreamSink publishes each record as one entry on the Redis stream named by
// the topic. XADD is synchronous, so there is nothing to flush.
type StreamSink struct {
	client redis.UniversalClient
	maxLen int64
	runID  string
	logger *slog.Logger
}

// StreamOption configures the StreamSink.
type StreamOption func(*StreamSink)

// WithMaxLen caps each stream at roughly n entries. Zero leaves it unbounded.
func WithMaxLen(n int64) StreamOption {
	return func(s *StreamSink) {
		s.maxLen = n
	}
}

// WithRunID tags every entry with the run identifier.
func WithRunID(id string) StreamOption {
	return func(s *StreamSink) {
		s.runID = id
	}
}

// WithLogger sets a logger for close errors.
func WithLogger(logger *slog.Logger) StreamOption {
	return func(s *StreamSink) {
		s.logger = logger
	}
}

// NewStreamSink creates a sink over an existing client. The sink owns the
// client from here on and closes it on Close.
func NewStreamSink(client redis.UniversalClient, opts ...StreamOption) *StreamSink {
	s := &StreamSink{
		client: client,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit appends rec to the topic stream.
func (s *StreamSink) Submit(ctx context.Context, topic string, rec registration.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: topic,
		Values: []any{
			FieldKey, string(rec.MessageKey()),
			FieldRunID, s.runID,
			FieldPayload, payload,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return fmt.Errorf("xadd %s: %w: %w", topic, sentinel.ErrClosed, err)
		}
		return fmt.Errorf("xadd %s: %w: %w", topic, sentinel.ErrTransport, err)
	}
	return nil
}

// Flush is a no-op; every Submit has already been acknowledged.
func (s *StreamSink) Flush(ctx context.Context) error {
	return ctx.Err()
}

// Close releases the client.
func (s *StreamSink) Close() error {
	if err := s.client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		s.logger.Warn("close redis client", "error", err)
		return err
	}
	return nil
}
