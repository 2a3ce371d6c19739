package dictionary

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/leapstack-labs/leapdict/pkg/dictsource"
)

var testStructure = []core.Column{{Name: "id", Type: "BIGINT"}, {Name: "value", Type: "VARCHAR"}}

// fakeState is shared by a fake source and its clones.
type fakeState struct {
	mu       sync.Mutex
	rows     [][]any
	loadErr  error
	midErr   error
	gate     chan struct{}
	loads    atomic.Int32
	clones   atomic.Int32
	closes   atomic.Int32
	modified bool
}

func (s *fakeState) setRows(rows [][]any) {
	s.mu.Lock()
	s.rows = rows
	s.mu.Unlock()
}

type fakeSource struct {
	state *fakeState
	local bool
}

func newFakeSource(rows ...[]any) *fakeSource {
	return &fakeSource{state: &fakeState{rows: rows, modified: true}}
}

func (f *fakeSource) LoadAll(ctx context.Context) (core.BatchStream, error) {
	f.state.loads.Add(1)
	if f.state.gate != nil {
		select {
		case <-f.state.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	if f.state.loadErr != nil {
		return nil, f.state.loadErr
	}
	return core.NewRowStream(&fakeReader{rows: f.state.rows, err: f.state.midErr}, testStructure, 1, nil), nil
}

func (f *fakeSource) LoadID(context.Context, uint64) (core.BatchStream, error) {
	return nil, &dictsource.UnsupportedOperationError{Source: f.String(), Op: "LoadID"}
}

func (f *fakeSource) LoadIDs(context.Context, []uint64) (core.BatchStream, error) {
	return nil, &dictsource.UnsupportedOperationError{Source: f.String(), Op: "LoadIDs"}
}

func (f *fakeSource) IsModified() bool            { return f.state.modified }
func (f *fakeSource) SupportsSelectiveLoad() bool { return false }
func (f *fakeSource) Local() bool                 { return f.local }
func (f *fakeSource) String() string              { return "fake" }

func (f *fakeSource) Clone() (dictsource.Source, error) {
	f.state.clones.Add(1)
	return &fakeSource{state: f.state, local: f.local}, nil
}

func (f *fakeSource) Close() error {
	f.state.closes.Add(1)
	return nil
}

// fakeReader yields rows, then fails with err if set.
type fakeReader struct {
	rows [][]any
	pos  int
	err  error
}

func (r *fakeReader) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeReader) Values() ([]any, error) { return r.rows[r.pos-1], nil }
func (r *fakeReader) Err() error             { return r.err }
func (r *fakeReader) Close() error           { return nil }

var errBroken = errors.New("connection reset by peer")
