package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Process is a running user query.
type Process struct {
	ID      string    `json:"id"`
	Query   string    `json:"query"`
	Started time.Time `json:"started"`
}

// ProcessList tracks running user queries. It is safe for concurrent use.
type ProcessList struct {
	mu    sync.Mutex
	procs map[string]Process
}

// NewProcessList returns an empty list.
func NewProcessList() *ProcessList {
	return &ProcessList{procs: make(map[string]Process)}
}

// Add registers query and returns its entry.
func (l *ProcessList) Add(query string) Process {
	p := Process{ID: uuid.New().String(), Query: query, Started: time.Now()}
	l.mu.Lock()
	l.procs[p.ID] = p
	l.mu.Unlock()
	return p
}

// Remove drops the entry with the given id.
func (l *ProcessList) Remove(id string) {
	l.mu.Lock()
	delete(l.procs, id)
	l.mu.Unlock()
}

// List returns running queries, oldest first.
func (l *ProcessList) List() []Process {
	l.mu.Lock()
	out := make([]Process, 0, len(l.procs))
	for _, p := range l.procs {
		out = append(out, p)
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// Len returns the number of running queries.
func (l *ProcessList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}
