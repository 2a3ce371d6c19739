package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/leapdict/internal/dictionary"
	"github.com/leapstack-labs/leapdict/internal/metrics"
	"github.com/leapstack-labs/leapdict/internal/state"
	"github.com/leapstack-labs/leapdict/internal/testutil"
	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/leapstack-labs/leapdict/pkg/dictsource"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var structure = []core.Column{{Name: "id"}, {Name: "value"}}

type rowsReader struct {
	rows [][]any
	pos  int
}

func (r *rowsReader) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}
func (r *rowsReader) Values() ([]any, error) { return r.rows[r.pos-1], nil }
func (r *rowsReader) Err() error             { return nil }
func (r *rowsReader) Close() error           { return nil }

type staticSource struct {
	rows   [][]any
	err    error
	closed *atomic.Int32
}

func newStaticSource(rows ...[]any) *staticSource {
	return &staticSource{rows: rows, closed: &atomic.Int32{}}
}

func (s *staticSource) LoadAll(context.Context) (core.BatchStream, error) {
	if s.err != nil {
		return nil, s.err
	}
	return core.NewRowStream(&rowsReader{rows: s.rows}, structure, 0, nil), nil
}
func (s *staticSource) LoadID(context.Context, uint64) (core.BatchStream, error) {
	return nil, dictsource.ErrUnsupported
}
func (s *staticSource) LoadIDs(context.Context, []uint64) (core.BatchStream, error) {
	return nil, dictsource.ErrUnsupported
}
func (s *staticSource) IsModified() bool            { return true }
func (s *staticSource) SupportsSelectiveLoad() bool { return false }
func (s *staticSource) Close() error                { s.closed.Add(1); return nil }
func (s *staticSource) String() string              { return "static" }

func (s *staticSource) Clone() (dictsource.Source, error) {
	return &staticSource{rows: s.rows, err: s.err, closed: &atomic.Int32{}}, nil
}

func newServer(t *testing.T, src *staticSource) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	mt := metrics.New(reg)
	m := dictionary.NewManager(
		[]*dictionary.Dictionary{dictionary.New("events", structure, time.Hour, src)},
		dictionary.WithMetrics(mt),
	)
	return New(Config{Manager: m, Gatherer: reg, Logger: testutil.NewTestLogger(t)})
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRoutes_LookupAndList(t *testing.T) {
	s := newServer(t, newStaticSource([]any{int64(1), "a"}, []any{int64(2), "b"}))
	h := s.Routes()

	rec := do(t, h, http.MethodGet, "/dictionaries/events/1")
	assert.Equal(t, http.StatusNotFound, rec.Code, "nothing loaded yet")

	rec = do(t, h, http.MethodPost, "/dictionaries/events/reload")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/dictionaries/events/2")
	require.Equal(t, http.StatusOK, rec.Code)
	var row map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, "b", row["value"])

	rec = do(t, h, http.MethodGet, "/dictionaries/")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []DictionaryStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "events", list[0].Name)
	assert.Equal(t, 2, list[0].Rows)
	assert.Equal(t, "unknown", list[0].Path, "static sources cannot tell their path")
	assert.NotNil(t, list[0].LoadedAt)

	rec = do(t, h, http.MethodGet, "/metrics")
	assert.Contains(t, rec.Body.String(), `leapdict_rows{dictionary="events"} 2`)
}

func TestRoutes_Errors(t *testing.T) {
	src := newStaticSource()
	src.err = errors.New("connection refused")
	h := newServer(t, src).Routes()

	rec := do(t, h, http.MethodGet, "/dictionaries/missing/1")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/dictionaries/missing/reload")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/dictionaries/events/reload")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec = do(t, h, http.MethodPost, "/dictionaries/reload")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRoutes_HealthAndProcesses(t *testing.T) {
	h := newServer(t, newStaticSource()).Routes()

	rec := do(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", strings.TrimSpace(rec.Body.String()))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = do(t, h, http.MethodGet, "/processes")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestRoutes_History(t *testing.T) {
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(context.Background(), ":memory:"))
	t.Cleanup(func() { _ = store.Close() })

	m := dictionary.NewManager(
		[]*dictionary.Dictionary{dictionary.New("events", structure, time.Hour, newStaticSource([]any{int64(1), "a"}))},
		dictionary.WithHistory(store),
	)
	h := New(Config{Manager: m, History: store, Logger: testutil.NewTestLogger(t)}).Routes()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/dictionaries/events/reload").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/dictionaries/events/reload").Code)

	rec := do(t, h, http.MethodGet, "/history?dictionary=events&limit=1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var loads []LoadStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loads))
	require.Len(t, loads, 1)
	assert.Equal(t, "events", loads[0].Dictionary)
	assert.Equal(t, 1, loads[0].Rows)
	assert.Empty(t, loads[0].Error)

	rec = do(t, h, http.MethodGet, "/history?limit=-1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, newServer(t, newStaticSource()).Routes(), http.MethodGet, "/history")
	assert.Equal(t, http.StatusNotFound, rec.Code, "history disabled")
}

func TestReconfigure(t *testing.T) {
	defer goleak.VerifyNone(t)

	oldSrc := newStaticSource([]any{int64(1), "old"})
	newSrc := newStaticSource([]any{int64(1), "new"})

	s := newServer(t, oldSrc)
	s.rebuild = func(context.Context) (*dictionary.Manager, error) {
		return dictionary.NewManager([]*dictionary.Dictionary{
			dictionary.New("events", structure, time.Hour, newSrc),
		}), nil
	}
	s.tick = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.runReloads(ctx) }()

	require.NoError(t, s.Reconfigure(ctx))
	assert.Equal(t, int32(1), oldSrc.closed.Load(), "previous manager is closed")

	d, ok := s.Manager().Get("events")
	require.True(t, ok)
	row, ok := d.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "new", row["value"])

	cancel()
	require.NoError(t, <-done)
}

func TestReconfigure_FailureKeepsManager(t *testing.T) {
	s := newServer(t, newStaticSource())
	before := s.Manager()

	assert.Error(t, s.Reconfigure(context.Background()), "no rebuild configured")

	s.rebuild = func(context.Context) (*dictionary.Manager, error) {
		return nil, errors.New("invalid config")
	}
	assert.ErrorContains(t, s.Reconfigure(context.Background()), "invalid config")
	assert.Same(t, before, s.Manager())
}

func TestReconfigure_FailedLoadKeepsManager(t *testing.T) {
	defer goleak.VerifyNone(t)

	oldSrc := newStaticSource([]any{int64(1), "old"})
	s := newServer(t, oldSrc)
	require.NoError(t, s.Manager().ReloadAll(context.Background()))
	before := s.Manager()

	newSrc := newStaticSource()
	newSrc.err = errors.New("connection refused")
	s.rebuild = func(context.Context) (*dictionary.Manager, error) {
		return dictionary.NewManager([]*dictionary.Dictionary{
			dictionary.New("events", structure, time.Hour, newSrc),
		}), nil
	}

	assert.ErrorContains(t, s.Reconfigure(context.Background()), "connection refused")
	assert.Same(t, before, s.Manager())

	d, ok := s.Manager().Get("events")
	require.True(t, ok)
	row, ok := d.Lookup("1")
	require.True(t, ok, "the previous snapshot keeps serving")
	assert.Equal(t, "old", row["value"])

	assert.Zero(t, oldSrc.closed.Load(), "previous manager stays open")
	assert.Equal(t, int32(1), newSrc.closed.Load(), "rebuilt manager is closed")
}

func TestReconfigure_AfterServeClosesRebuiltManager(t *testing.T) {
	defer goleak.VerifyNone(t)

	oldSrc := newStaticSource([]any{int64(1), "old"})
	newSrc := newStaticSource([]any{int64(1), "new"})

	s := newServer(t, oldSrc)
	s.port = freePort(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	s.rebuild = func(context.Context) (*dictionary.Manager, error) {
		close(entered)
		<-release
		return dictionary.NewManager([]*dictionary.Dictionary{
			dictionary.New("events", structure, time.Hour, newSrc),
		}), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()

	reconfigured := make(chan error, 1)
	go func() { reconfigured <- s.Reconfigure(context.Background()) }()
	<-entered

	cancel()
	require.NoError(t, <-served)
	assert.Equal(t, int32(1), oldSrc.closed.Load())

	close(release)
	assert.ErrorIs(t, <-reconfigured, ErrServerClosed)
	assert.Equal(t, int32(1), newSrc.closed.Load(), "a manager built after shutdown is closed")
	assert.Equal(t, int32(1), oldSrc.closed.Load())
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port
}
