// Package browser models the address bar of one tab.
package browser

import (
	"slices"
	"sync"
)

// Watcher is told about address changes the app did not make itself.
type Watcher func(url string)

type watch struct {
	id int
	fn Watcher
}

// Location is an address bar with a back/forward history.
//
// Push and Replace are app-initiated writes and are not reported to
// watchers. Navigate, Back and Forward are user actions and are.
type Location struct {
	mu      sync.Mutex
	history []string
	index   int
	left    string
	hasLeft bool

	watches []watch
	nextID  int
}

// New creates a Location showing initial.
func New(initial string) *Location {
	return &Location{history: []string{initial}}
}

// URL returns the current address.
func (l *Location) URL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.history[l.index]
}

// Push adds url as a new history entry, dropping any forward entries.
func (l *Location) Push(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pushLocked(url)
}

// Replace overwrites the current history entry.
func (l *Location) Replace(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history[l.index] = url
}

// Assign performs a full navigation away from the app.
// The tab keeps its last in-app address; Left reports the target.
func (l *Location) Assign(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.left = url
	l.hasLeft = true
}

// Left returns the target of the last full navigation, if any.
func (l *Location) Left() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.left, l.hasLeft
}

// Navigate is the user typing url into the address bar.
func (l *Location) Navigate(url string) {
	l.mu.Lock()
	l.pushLocked(url)
	l.mu.Unlock()

	l.notify(url)
}

// Back moves one entry back. It returns false at the start of history.
func (l *Location) Back() bool {
	return l.move(-1)
}

// Forward moves one entry forward. It returns false at the end of history.
func (l *Location) Forward() bool {
	return l.move(1)
}

// History returns a copy of the history entries and the current index.
func (l *Location) History() ([]string, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.history), l.index
}

// Watch registers fn and returns a function that removes it.
func (l *Location) Watch(fn Watcher) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.watches = append(l.watches, watch{id: id, fn: fn})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.watches = slices.DeleteFunc(l.watches, func(w watch) bool { return w.id == id })
	}
}

func (l *Location) move(delta int) bool {
	l.mu.Lock()
	next := l.index + delta
	if next < 0 || next >= len(l.history) {
		l.mu.Unlock()
		return false
	}
	l.index = next
	url := l.history[next]
	l.mu.Unlock()

	l.notify(url)
	return true
}

func (l *Location) pushLocked(url string) {
	l.history = append(l.history[:l.index+1], url)
	l.index = len(l.history) - 1
}

// notify runs watchers without the lock so they may write the address back.
func (l *Location) notify(url string) {
	l.mu.Lock()
	watches := slices.Clone(l.watches)
	l.mu.Unlock()

	for _, w := range watches {
		w.fn(url)
	}
}
