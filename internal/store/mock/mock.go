// Package mock provides an in-memory test double for [store.Store].
//
// The mock records every method call for assertion in tests and exposes
// exported fields that control what it returns. It is safe for concurrent
// use via an internal [sync.Mutex].
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/MrWong99/meetscribe/internal/store"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

var _ store.Store = (*Store)(nil)

// Store is a configurable in-memory test double for [store.Store].
// Recordings saved through it are kept in memory and served by Get/List.
type Store struct {
	mu sync.Mutex

	calls []Call
	recs  map[string]store.Recording
	seq   int

	// Err, when non-nil, is returned by every method.
	Err error
}

// Calls returns a copy of all recorded method invocations.
func (m *Store) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *Store) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Save implements [store.Store]. Empty ids are assigned "rec-1", "rec-2", ….
func (m *Store) Save(ctx context.Context, rec store.Recording) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Save", Args: []any{rec}})
	if m.Err != nil {
		return "", m.Err
	}
	if m.recs == nil {
		m.recs = make(map[string]store.Recording)
	}
	if rec.ID == "" {
		m.seq++
		rec.ID = fmt.Sprintf("rec-%d", m.seq)
	}
	m.recs[rec.ID] = rec
	return rec.ID, nil
}

// Get implements [store.Store].
func (m *Store) Get(ctx context.Context, id string) (store.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Get", Args: []any{id}})
	if m.Err != nil {
		return store.Recording{}, m.Err
	}
	rec, ok := m.recs[id]
	if !ok {
		return store.Recording{}, store.ErrNotFound
	}
	return rec, nil
}

// List implements [store.Store]. Filtering honours MeetingName and Limit;
// time windows are applied against StartedAt.
func (m *Store) List(ctx context.Context, opts store.ListOpts) ([]store.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "List", Args: []any{opts}})
	if m.Err != nil {
		return nil, m.Err
	}
	out := []store.Recording{}
	for _, rec := range m.recs {
		if opts.MeetingName != "" && rec.MeetingName != opts.MeetingName {
			continue
		}
		if !opts.After.IsZero() && !rec.StartedAt.After(opts.After) {
			continue
		}
		if !opts.Before.IsZero() && !rec.StartedAt.Before(opts.Before) {
			continue
		}
		out = append(out, rec)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// Delete implements [store.Store].
func (m *Store) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Delete", Args: []any{id}})
	if m.Err != nil {
		return m.Err
	}
	delete(m.recs, id)
	return nil
}
