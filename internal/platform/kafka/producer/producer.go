// Package producer publishes canonical registration records to Kafka.
//
// Submit hands records to the franz-go client, which batches and retries in
// the background. Delivery outcomes arrive on promises; Flush waits for all of
// them and reports the ones that failed as a ports.DeliveryError.
package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"evfeed/internal/platform/config"
	"evfeed/internal/registration"
	"evfeed/internal/registration/ports"
	"evfeed/pkg/platform/sentinel"
)

// HeaderRunID carries the producing run's identifier on every record.
const HeaderRunID = "run_id"

// Sink implements ports.Sink over a kgo.Client.
type Sink struct {
	client *kgo.Client
	runID  string
	logger *slog.Logger

	closed atomic.Bool

	mu       sync.Mutex
	failed   int
	firstErr error
}

// Option configures the Sink.
type Option func(*Sink)

// WithRunID tags every record with the run identifier header.
func WithRunID(id string) Option {
	return func(s *Sink) {
		s.runID = id
	}
}

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

// New builds a producer client for cfg. No connection is made until the
// first record or admin request.
func New(cfg config.KafkaConfig, opts ...Option) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers: %w", sentinel.ErrInvalidConfig)
	}

	kopts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.ClientID != "" {
		kopts = append(kopts, kgo.ClientID(cfg.ClientID))
	}
	if cfg.Linger > 0 {
		kopts = append(kopts, kgo.ProducerLinger(cfg.Linger))
	}
	if cfg.DeliveryTimeout > 0 {
		kopts = append(kopts, kgo.RecordDeliveryTimeout(cfg.DeliveryTimeout))
	}

	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return newSink(client, opts...), nil
}

func newSink(client *kgo.Client, opts ...Option) *Sink {
	s := &Sink{
		client: client,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit encodes rec and queues it for topic. A nil return means the client
// accepted the record; delivery is confirmed by Flush.
func (s *Sink) Submit(ctx context.Context, topic string, rec registration.Record) error {
	if s.closed.Load() {
		return fmt.Errorf("produce to %s: %w", topic, sentinel.ErrClosed)
	}

	r, err := s.buildRecord(topic, rec)
	if err != nil {
		return err
	}

	s.client.Produce(ctx, r, s.onDelivery)
	return nil
}

func (s *Sink) buildRecord(topic string, rec registration.Record) (*kgo.Record, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	r := &kgo.Record{
		Topic: topic,
		Key:   rec.MessageKey(),
		Value: payload,
	}
	if s.runID != "" {
		r.Headers = append(r.Headers, kgo.RecordHeader{Key: HeaderRunID, Value: []byte(s.runID)})
	}
	return r, nil
}

func (s *Sink) onDelivery(r *kgo.Record, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.failed++
	if s.firstErr == nil {
		s.firstErr = err
	}
	s.mu.Unlock()

	s.logger.Warn("kafka delivery failed",
		"topic", r.Topic,
		"key", string(r.Key),
		"error", err,
	)
}

// Flush blocks until every queued record is acknowledged or failed. Failures
// since the previous Flush are returned as a *ports.DeliveryError and reset.
func (s *Sink) Flush(ctx context.Context) error {
	if s.closed.Load() {
		return fmt.Errorf("flush: %w", sentinel.ErrClosed)
	}
	flushErr := s.client.Flush(ctx)

	s.mu.Lock()
	failed, firstErr := s.failed, s.firstErr
	s.failed, s.firstErr = 0, nil
	s.mu.Unlock()

	if failed > 0 {
		derr := &ports.DeliveryError{Failed: failed, Err: fmt.Errorf("%w: %w", sentinel.ErrTransport, firstErr)}
		return errors.Join(derr, flushErr)
	}
	if flushErr != nil {
		return fmt.Errorf("flush: %w", flushErr)
	}
	return nil
}

// Close releases the client. Records still buffered are failed, so callers
// flush first.
func (s *Sink) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.client.Close()
	return nil
}

// Ping checks that at least one seed broker answers.
func (s *Sink) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("kafka ping: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

// EnsureTopic creates topic when it does not exist yet. An existing topic is
// left untouched regardless of its partition count.
func (s *Sink) EnsureTopic(ctx context.Context, topic string, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(s.client)

	resps, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w: %w", topic, sentinel.ErrUnavailable, err)
	}
	resp, ok := resps[topic]
	if !ok {
		return fmt.Errorf("create topic %s: no response from broker: %w", topic, sentinel.ErrUnavailable)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}
