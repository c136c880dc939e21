package ports

import (
	"context"
	"errors"
	"fmt"

	"evfeed/internal/registration"
)

// ErrMalformedRow marks a single unreadable source row. Sources returning it
// stay usable and the next call to Next moves on.
var ErrMalformedRow = errors.New("malformed row")

// Source yields raw rows in file order. Next returns io.EOF once the source
// is exhausted.
type Source interface {
	Next(ctx context.Context) (registration.RawRecord, error)
}

// Sink delivers canonical records to a broker topic. Submit may buffer; Flush
// blocks until every accepted submission has been handed off or failed.
type Sink interface {
	Submit(ctx context.Context, topic string, rec registration.Record) error
	Flush(ctx context.Context) error
	Close() error
}

// DeliveryError reports submissions that Submit accepted but the broker
// later rejected. Failed is the number of such records.
type DeliveryError struct {
	Failed int
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%d record(s) failed delivery: %v", e.Failed, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
