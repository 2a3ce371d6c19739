package core

import (
	"context"
	"errors"
	"io"
)

// DefaultBlockSize is the number of rows packed into one batch unless the
// engine is configured otherwise.
const DefaultBlockSize = 65536

// Batch is a chunk of rows sharing one column layout.
type Batch struct {
	Columns []Column
	Rows    [][]any
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// BatchStream is a finite, non-restartable sequence of batches.
//
// Next returns io.EOF once the stream is exhausted. Close releases any
// connection or cursor held by the stream; it is safe to call more than once
// and must be called even when the stream is abandoned early.
type BatchStream interface {
	Columns() []Column
	Next(ctx context.Context) (*Batch, error)
	Close() error
}

// Drain pulls every batch from s into fn and closes s.
func Drain(ctx context.Context, s BatchStream, fn func(*Batch) error) (err error) {
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	for {
		b, err := s.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
	}
}
