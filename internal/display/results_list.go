// Package display projects a tab's result model into what the page shows.
// Adapters only read the model; they are updated by subscription.
package display

import (
	"maps"
	"sync"

	"github.com/kailas-cloud/metasearch/internal/domain/search/result"
	"github.com/kailas-cloud/metasearch/internal/usecase/results"
)

// Item is one rendered result row.
type Item struct {
	ID          string         `json:"id"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Active      string         `json:"active,omitempty"`
	Length      string         `json:"length,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// View is the rendered result list.
type View struct {
	Visible bool   `json:"visible"`
	Hits    *int64 `json:"hits"`
	Items   []Item `json:"items"`
}

// Source is the part of the result model an adapter reads.
type Source interface {
	Results() results.Snapshot
	Subscribe(fn results.Listener) func()
}

// ResultsList keeps the latest View of a model.
type ResultsList struct {
	mu          sync.RWMutex
	view        View
	renders     int
	unsubscribe func()
}

// NewResultsList renders src now and after every change.
func NewResultsList(src Source) *ResultsList {
	l := &ResultsList{}
	l.render(src.Results())
	l.unsubscribe = src.Subscribe(l.render)
	return l
}

// View returns the latest rendering.
func (l *ResultsList) View() View {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view
}

// Renders returns how many times the view was rebuilt.
func (l *ResultsList) Renders() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.renders
}

// Close stops following the model.
func (l *ResultsList) Close() {
	l.unsubscribe()
}

func (l *ResultsList) render(snap results.Snapshot) {
	items := make([]Item, 0, len(snap.RNAs))
	for _, rna := range snap.RNAs {
		items = append(items, toItem(rna))
	}

	l.mu.Lock()
	l.view = View{Visible: snap.Visible, Hits: snap.Hits, Items: items}
	l.renders++
	l.mu.Unlock()
}

func toItem(e result.FlatEntry) Item {
	fields := maps.Clone(map[string]any(e))
	delete(fields, "fields")

	return Item{
		ID:          e.String("id"),
		Name:        e.String("name"),
		Description: e.String("description"),
		Active:      e.String("active"),
		Length:      e.String("length"),
		Fields:      fields,
	}
}
