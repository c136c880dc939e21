// Package source reads registration rows from a delimited export.
package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"evfeed/internal/registration"
	"evfeed/internal/registration/ports"
	"evfeed/pkg/platform/sentinel"
)

// CSV streams rows from a header-first delimited file.
type CSV struct {
	reader *csv.Reader
	closer io.Closer
	header []string
	line   int
}

// Option configures the CSV reader.
type Option func(*csv.Reader)

// WithComma overrides the field delimiter (default ',').
func WithComma(r rune) Option {
	return func(cr *csv.Reader) {
		cr.Comma = r
	}
}

// Open opens path and reads its header row. Failure to open or to read the
// header is reported as sentinel.ErrUnavailable.
func Open(path string, opts ...Option) (*CSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, sentinel.ErrUnavailable, err)
	}
	src, err := newCSV(f, f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return src, nil
}

// NewReader wraps an already-open stream. Closing the returned source does
// not close r.
func NewReader(r io.Reader, opts ...Option) (*CSV, error) {
	return newCSV(r, nil, opts...)
}

func newCSV(r io.Reader, closer io.Closer, opts ...Option) (*CSV, error) {
	// Exports saved from spreadsheet tools often carry a UTF-8 BOM.
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(bufio.NewReader(decoded))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	for _, opt := range opts {
		opt(cr)
	}

	src := &CSV{reader: cr, closer: closer}

	header, err := cr.Read()
	switch {
	case errors.Is(err, io.EOF):
		return src, nil
	case err != nil:
		return nil, fmt.Errorf("read header: %w: %w", sentinel.ErrUnavailable, err)
	}
	src.header = append([]string(nil), header...)
	src.line = 1
	return src, nil
}

// Header returns the column names read from the first row.
func (s *CSV) Header() []string {
	return s.header
}

// Next returns the next row keyed by header. Columns missing from a short
// row are absent; cells beyond the header are dropped.
func (s *CSV) Next(ctx context.Context) (registration.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.header == nil {
		return nil, io.EOF
	}

	fields, err := s.reader.Read()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			s.line = perr.Line
			return nil, fmt.Errorf("line %d: %w: %w", perr.Line, ports.ErrMalformedRow, err)
		}
		return nil, err
	}
	s.line, _ = s.reader.FieldPos(0)

	row := make(registration.RawRecord, len(s.header))
	for i, name := range s.header {
		if i >= len(fields) {
			break
		}
		value := fields[i]
		row[name] = &value
	}
	return row, nil
}

// Line is the 1-indexed source line of the most recent row.
func (s *CSV) Line() int {
	return s.line
}

// Close releases the underlying file, if this source opened it.
func (s *CSV) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
