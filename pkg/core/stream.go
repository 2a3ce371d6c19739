package core

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrStreamClosed is returned by Next after Close.
var ErrStreamClosed = errors.New("stream closed")

// RowReader is the cursor contract a RowStream reads from. Both database/sql
// and pgx result sets are adapted to it by their owners.
type RowReader interface {
	Next() bool
	Values() ([]any, error)
	Err() error
	Close() error
}

// RowStream packs rows from a RowReader into batches of at most blockSize rows.
type RowStream struct {
	reader    RowReader
	columns   []Column
	blockSize int

	done      bool
	closed    bool
	closeOnce sync.Once
	closeErr  error
	onClose   func()
}

// NewRowStream returns a stream over r. onClose, when set, runs once after the
// reader has been closed.
func NewRowStream(r RowReader, columns []Column, blockSize int, onClose func()) *RowStream {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &RowStream{
		reader:    r,
		columns:   columns,
		blockSize: blockSize,
		onClose:   onClose,
	}
}

// Columns returns the result set layout.
func (s *RowStream) Columns() []Column {
	return s.columns
}

// Next returns the next batch, or io.EOF once the reader is exhausted.
func (s *RowStream) Next(ctx context.Context) (*Batch, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.done {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := &Batch{Columns: s.columns}
	for len(b.Rows) < s.blockSize {
		if !s.reader.Next() {
			s.done = true
			if err := s.reader.Err(); err != nil {
				return nil, err
			}
			break
		}
		vals, err := s.reader.Values()
		if err != nil {
			return nil, err
		}
		b.Rows = append(b.Rows, vals)
	}

	if len(b.Rows) == 0 {
		return nil, io.EOF
	}
	return b, nil
}

// Close releases the underlying reader.
func (s *RowStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		s.closeErr = s.reader.Close()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.closeErr
}

var _ BatchStream = (*RowStream)(nil)
