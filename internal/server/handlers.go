package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leapdict/internal/dictionary"
	"github.com/leapstack-labs/leapdict/internal/state"
	"github.com/leapstack-labs/leapdict/pkg/core"
	"github.com/leapstack-labs/leapdict/pkg/engine"
)

// DictionaryStatus is the JSON view of one dictionary.
type DictionaryStatus struct {
	Name      string     `json:"name"`
	Source    string     `json:"source"`
	Path      string     `json:"path"`
	Rows      int        `json:"rows"`
	LoadedAt  *time.Time `json:"loaded_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Status describes d.
func Status(d *dictionary.Dictionary) DictionaryStatus {
	st := DictionaryStatus{
		Name:   d.Name(),
		Source: d.Source().String(),
		Path:   dictionary.SourcePath(d.Source()),
		Rows:   d.Len(),
	}
	if at := d.LoadedAt(); !at.IsZero() {
		st.LoadedAt = &at
	}
	if err := d.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	m := s.Manager()
	out := make([]DictionaryStatus, 0, len(m.Names()))
	for _, name := range m.Names() {
		d, _ := m.Get(name)
		out = append(out, Status(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	key := chi.URLParam(r, "key")

	d, ok := s.Manager().Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, &dictionary.NotFoundError{Name: name})
		return
	}
	row, ok := d.Lookup(key)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "key not found", "key": key})
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	m := s.Manager()

	err := m.ReloadOne(r.Context(), name)
	var nf *dictionary.NotFoundError
	switch {
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
	default:
		d, _ := m.Get(name)
		writeJSON(w, http.StatusOK, Status(d))
	}
}

func (s *Server) handleReloadAll(w http.ResponseWriter, r *http.Request) {
	if err := s.Manager().ReloadAll(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	s.handleList(w, r)
}

func (s *Server) handleProcesses(w http.ResponseWriter, _ *http.Request) {
	var procs []engine.Process
	if s.engine != nil {
		procs = s.engine.Processes()
	}
	if procs == nil {
		procs = []engine.Process{}
	}
	writeJSON(w, http.StatusOK, procs)
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResult is the JSON view of a user query's result. Truncated is set
// when rows beyond the limit were dropped.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

const defaultQueryLimit = 1000

// handleQuery runs a user query on the local engine. It is listed under
// /processes while it runs.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusNotFound, errors.New("no local engine configured"))
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, errors.New("query is required"))
		return
	}

	limit := defaultQueryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	stream, err := s.engine.Execute(r.Context(), req.Query)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res := QueryResult{Columns: make([]string, 0, len(stream.Columns())), Rows: [][]any{}}
	for _, c := range stream.Columns() {
		res.Columns = append(res.Columns, c.Name)
	}
	err = core.Drain(r.Context(), stream, func(b *core.Batch) error {
		for _, row := range b.Rows {
			if len(res.Rows) == limit {
				res.Truncated = true
				return errQueryLimit
			}
			res.Rows = append(res.Rows, row)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errQueryLimit) {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

var errQueryLimit = errors.New("query row limit reached")

// LoadStatus is the JSON view of one recorded load.
type LoadStatus struct {
	Dictionary string    `json:"dictionary"`
	Source     string    `json:"source"`
	Path       string    `json:"path"`
	Rows       int       `json:"rows"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

const defaultHistoryLimit = 50

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, errors.New("load history is disabled"))
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}

	loads, err := s.history.ListLoads(r.Context(), r.URL.Query().Get("dictionary"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]LoadStatus, 0, len(loads))
	for _, rec := range loads {
		out = append(out, loadStatus(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func loadStatus(rec state.LoadRecord) LoadStatus {
	return LoadStatus{
		Dictionary: rec.Dictionary,
		Source:     rec.Source,
		Path:       rec.Path,
		Rows:       rec.Rows,
		StartedAt:  rec.StartedAt,
		DurationMS: rec.Duration.Milliseconds(),
		Error:      rec.Error,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
