// Package mock provides in-memory test doubles for the memory layer
// interfaces.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	store := &mock.Store{}
//	store.RelevantResult = []memory.Record{{Content: "met the player"}}
//
//	// inject store into the system under test …
//
//	if got := store.CallCount("Relevant"); got != 1 {
//	    t.Errorf("expected 1 Relevant call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/veilgate/ludens/pkg/memory"
)

// Compile-time interface checks.
var (
	_ memory.Store         = (*Store)(nil)
	_ memory.SemanticIndex = (*SemanticIndex)(nil)
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// Store is a configurable test double for [memory.Store]. All exported *Err
// fields default to nil (success); all exported *Result fields default to
// nil (empty slice returned).
type Store struct {
	mu    sync.Mutex
	calls []Call

	// Appended collects every record passed to [Store.Append].
	Appended []memory.Record

	// AppendErr is returned by [Store.Append] when non-nil.
	AppendErr error

	// QueryResult is returned by [Store.Query].
	QueryResult []memory.Record

	// QueryErr is returned by [Store.Query] when non-nil.
	QueryErr error

	// RelevantResult is returned by [Store.Relevant].
	RelevantResult []memory.Record

	// RelevantErr is returned by [Store.Relevant] when non-nil.
	RelevantErr error

	// ForgetResult is returned by [Store.Forget].
	ForgetResult int

	// ForgetErr is returned by [Store.Forget] when non-nil.
	ForgetErr error
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

// Append implements [memory.Store].
func (m *Store) Append(_ context.Context, rec memory.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Append", Args: []any{rec}})
	m.Appended = append(m.Appended, rec)
	return m.AppendErr
}

// Query implements [memory.Store].
func (m *Store) Query(_ context.Context, npcID string, opts ...memory.QueryOpt) ([]memory.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Query", Args: []any{npcID, memory.ApplyQueryOpts(opts)}})
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if m.QueryResult == nil {
		return []memory.Record{}, nil
	}
	return m.QueryResult, nil
}

// Relevant implements [memory.Store].
func (m *Store) Relevant(_ context.Context, npcID, query string, limit int) ([]memory.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Relevant", Args: []any{npcID, query, limit}})
	if m.RelevantErr != nil {
		return nil, m.RelevantErr
	}
	if m.RelevantResult == nil {
		return []memory.Record{}, nil
	}
	return m.RelevantResult, nil
}

// Forget implements [memory.Store].
func (m *Store) Forget(_ context.Context, npcID string, maxAge time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Forget", Args: []any{npcID, maxAge}})
	return m.ForgetResult, m.ForgetErr
}

// Close implements [memory.Store].
func (m *Store) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Close"})
	return nil
}

// SemanticIndex is a configurable test double for [memory.SemanticIndex].
type SemanticIndex struct {
	mu    sync.Mutex
	calls []Call

	// Indexed collects every record passed to [SemanticIndex.Index].
	Indexed []memory.Record

	// IndexErr is returned by [SemanticIndex.Index] when non-nil.
	IndexErr error

	// SearchResult is returned by [SemanticIndex.Search].
	SearchResult []memory.Result

	// SearchErr is returned by [SemanticIndex.Search] when non-nil.
	SearchErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *SemanticIndex) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *SemanticIndex) CallCount(method string) int {
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

// Index implements [memory.SemanticIndex].
func (m *SemanticIndex) Index(_ context.Context, rec memory.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Index", Args: []any{rec}})
	m.Indexed = append(m.Indexed, rec)
	return m.IndexErr
}

// Search implements [memory.SemanticIndex].
func (m *SemanticIndex) Search(_ context.Context, npcID string, embedding []float32, topK int) ([]memory.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "Search", Args: []any{npcID, embedding, topK}})
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	if m.SearchResult == nil {
		return []memory.Result{}, nil
	}
	return m.SearchResult, nil
}
