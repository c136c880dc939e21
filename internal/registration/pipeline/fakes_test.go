package pipeline

import (
	"context"
	"fmt"
	"io"

	"evfeed/internal/registration"
	"evfeed/internal/registration/ports"
)

// memorySink records submissions in order. submitErr, when set, decides the
// error for the nth submission (1-indexed).
type memorySink struct {
	topics    []string
	records   []registration.Record
	submits   int
	flushes   int
	closed    bool
	submitErr func(n int) error
	flushErr  error
}

func (s *memorySink) Submit(_ context.Context, topic string, rec registration.Record) error {
	s.submits++
	if s.submitErr != nil {
		if err := s.submitErr(s.submits); err != nil {
			return err
		}
	}
	s.topics = append(s.topics, topic)
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) Flush(context.Context) error {
	s.flushes++
	return s.flushErr
}

func (s *memorySink) Close() error {
	s.closed = true
	return nil
}

// sliceSource replays rows, then io.EOF. errs injects an error at a position
// instead of the row there.
type sliceSource struct {
	rows   []registration.RawRecord
	errs   map[int]error
	pos    int
	closed bool
}

func (s *sliceSource) Next(ctx context.Context) (registration.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	i := s.pos
	s.pos++
	if err, ok := s.errs[i]; ok {
		return nil, err
	}
	return s.rows[i], nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

var _ ports.Source = (*sliceSource)(nil)
var _ ports.Sink = (*memorySink)(nil)

func text(s string) *string { return &s }

// vehicleRow builds a publishable row whose DOL id identifies it.
func vehicleRow(id int) registration.RawRecord {
	return registration.RawRecord{
		registration.ColumnVIN:           text(fmt.Sprintf("5YJ3E1EB%02d", id%100)),
		registration.ColumnMake:          text("TESLA"),
		registration.ColumnModel:         text("MODEL 3"),
		registration.ColumnCity:          text("Seattle"),
		registration.ColumnElectricRange: text("220"),
		registration.ColumnDOLVehicleID:  text(fmt.Sprint(id)),
	}
}

// invalidRow has everything except a VIN.
func invalidRow(id int) registration.RawRecord {
	row := vehicleRow(id)
	delete(row, registration.ColumnVIN)
	return row
}

func ids(recs []registration.Record) []int {
	out := make([]int, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.DOLVehicleID)
	}
	return out
}
