// Package results holds the result model shared by the query sync and the
// display adapters of one tab.
package results

import (
	"fmt"
	"slices"
	"sync"

	"github.com/kailas-cloud/metasearch/internal/domain/search/result"
)

// Snapshot is a read-only copy of the model.
type Snapshot struct {
	// Hits is nil until the first search resolved.
	Hits    *int64
	RNAs    []result.FlatEntry
	Visible bool
}

// Listener receives a snapshot after every model change.
type Listener func(Snapshot)

type subscription struct {
	id int
	fn Listener
}

// Model is the single source of truth for search results.
// Save and SetStatus are its only writers.
type Model struct {
	mu      sync.RWMutex
	hits    *int64
	rnas    []result.FlatEntry
	visible bool

	subMu  sync.Mutex
	subs   []subscription
	nextID int
}

// New creates an empty model.
func New() *Model {
	return &Model{rnas: []result.FlatEntry{}}
}

// SetStatus marks results as visible. There is no way back.
func (m *Model) SetStatus() {
	m.mu.Lock()
	changed := !m.visible
	m.visible = true
	m.mu.Unlock()

	if changed {
		m.notify()
	}
}

// Status reports whether results are visible.
func (m *Model) Status() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.visible
}

// Save flattens resp into the model.
// A malformed response is stored as zero results and its error returned.
func (m *Model) Save(resp result.Response) error {
	page, err := result.Flatten(resp)
	if err != nil {
		err = fmt.Errorf("save results: %w", err)
	}

	hits := page.Hits
	m.mu.Lock()
	m.hits = &hits
	m.rnas = page.RNAs
	m.mu.Unlock()

	m.notify()
	return err
}

// Results returns the current snapshot.
func (m *Model) Results() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Subscribe registers fn and returns a function that removes it.
// fn runs synchronously after each change, in registration order, without
// any model lock held.
func (m *Model) Subscribe(fn Listener) func() {
	m.subMu.Lock()
	id := m.nextID
	m.nextID++
	m.subs = append(m.subs, subscription{id: id, fn: fn})
	m.subMu.Unlock()

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		m.subs = slices.DeleteFunc(m.subs, func(s subscription) bool { return s.id == id })
	}
}

func (m *Model) notify() {
	snap := m.Results()

	m.subMu.Lock()
	subs := slices.Clone(m.subs)
	m.subMu.Unlock()

	for _, s := range subs {
		s.fn(snap)
	}
}

func (m *Model) snapshotLocked() Snapshot {
	var hits *int64
	if m.hits != nil {
		h := *m.hits
		hits = &h
	}
	return Snapshot{
		Hits:    hits,
		RNAs:    slices.Clone(m.rnas),
		Visible: m.visible,
	}
}
