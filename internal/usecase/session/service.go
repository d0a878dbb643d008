package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/metasearch/internal/browser"
	"github.com/kailas-cloud/metasearch/internal/display"
	"github.com/kailas-cloud/metasearch/internal/domain"
	"github.com/kailas-cloud/metasearch/internal/domain/query"
	logpkg "github.com/kailas-cloud/metasearch/internal/logger"
	"github.com/kailas-cloud/metasearch/internal/metrics"
	"github.com/kailas-cloud/metasearch/internal/usecase/querysync"
	"github.com/kailas-cloud/metasearch/internal/usecase/results"
)

// DefaultMaxSessions bounds open tabs when Config.MaxSessions is zero.
const DefaultMaxSessions = 1000

// minSweepInterval is the shortest pause between two idle sweeps in Run.
const minSweepInterval = time.Second

// Config holds tab session settings.
type Config struct {
	MaxSessions int
	// IdleTTL closes tabs not used for this long. Zero keeps tabs until closed.
	IdleTTL time.Duration
	// LatestOnly drops responses of superseded searches in every tab.
	LatestOnly bool
}

// Tab is one page session: address bar, result model, query sync and result list.
type Tab struct {
	id       string
	created  time.Time
	lastUsed atomic.Int64 // unix nanoseconds
	loc      *browser.Location
	model    *results.Model
	sync     *querysync.Service
	list     *display.ResultsList
	unwatch  func()
}

// View is the externally visible state of a tab.
type View struct {
	ID           string          `json:"id"`
	URL          string          `json:"url"`
	Left         string          `json:"left,omitempty"`
	State        querysync.State `json:"state"`
	Query        query.Query     `json:"query"`
	InvalidQuery bool            `json:"invalid_query"`
	InFlight     int             `json:"in_flight"`
	LastError    string          `json:"last_error,omitempty"`
	Results      display.View    `json:"results"`
	CreatedAt    time.Time       `json:"created_at"`
	LastUsedAt   time.Time       `json:"last_used_at"`
}

// ID returns the tab identifier.
func (t *Tab) ID() string { return t.id }

// Wait blocks until the tab has no search in flight or ctx is done.
func (t *Tab) Wait(ctx context.Context) error {
	if err := t.sync.Wait(ctx); err != nil {
		return fmt.Errorf("wait for search: %w", err)
	}
	return nil
}

// View returns the current state of the tab.
func (t *Tab) View() View {
	snap := t.sync.Snapshot()
	v := View{
		ID:           t.id,
		URL:          t.loc.URL(),
		State:        snap.State,
		Query:        snap.Query,
		InvalidQuery: snap.Query.Invalid(),
		InFlight:     snap.InFlight,
		Results:      t.list.View(),
		CreatedAt:    t.created,
		LastUsedAt:   t.LastUsed(),
	}
	if left, ok := t.loc.Left(); ok {
		v.Left = left
	}
	if snap.LastError != nil {
		v.LastError = snap.LastError.Error()
	}
	return v
}

// LastError returns the error of the last rejected search.
func (t *Tab) LastError() error {
	return t.sync.Snapshot().LastError
}

// LastUsed returns when the tab was last opened or acted on.
func (t *Tab) LastUsed() time.Time {
	return time.Unix(0, t.lastUsed.Load()).UTC()
}

// Close detaches the tab's watchers. Searches still in flight finish into
// the detached model. Registered tabs are closed through Service.Close.
func (t *Tab) Close() {
	t.unwatch()
	t.list.Close()
}

func (t *Tab) touch(now time.Time) {
	t.lastUsed.Store(now.UnixNano())
}

// Service owns the open tabs.
type Service struct {
	search Searcher
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu   sync.RWMutex
	tabs map[string]*Tab
}

// New creates a session service.
func New(search Searcher, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		search: search,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		tabs:   make(map[string]*Tab),
	}
}

// Open creates a registered tab showing url and runs its initial load check.
// Idle tabs are evicted before the capacity check.
func (s *Service) Open(ctx context.Context, url string) (*Tab, error) {
	s.mu.Lock()
	evicted := s.evictIdleLocked()
	if len(s.tabs) >= s.cfg.MaxSessions {
		open := len(s.tabs)
		s.mu.Unlock()
		s.closeEvicted(evicted, open)
		return nil, fmt.Errorf("%w: limit %d", domain.ErrTooManySessions, s.cfg.MaxSessions)
	}
	t, tabCtx := s.newTab(ctx, url)
	s.tabs[t.id] = t
	open := len(s.tabs)
	s.mu.Unlock()

	s.closeEvicted(evicted, open)
	logpkg.FromContext(tabCtx).Debug("session opened", zap.String("url", t.loc.URL()))

	t.sync.Start(tabCtx)
	return t, nil
}

// Load creates a tab that is not registered and does not count against the
// session limit. The caller must Close it.
func (s *Service) Load(ctx context.Context, url string) *Tab {
	t, tabCtx := s.newTab(ctx, url)
	t.sync.Start(tabCtx)
	return t
}

func (s *Service) newTab(ctx context.Context, url string) (*Tab, context.Context) {
	if url == "" {
		url = "/"
	}
	id := uuid.NewString()

	// Address changes arrive outside any request, so the tab keeps its own context.
	tabCtx, tabLogger := logpkg.WithSession(context.WithoutCancel(ctx), s.logger, id)

	var opts []querysync.Option
	if s.cfg.LatestOnly {
		opts = append(opts, querysync.WithLatestOnly())
	}

	now := s.now()
	t := &Tab{
		id:      id,
		created: now.UTC(),
		loc:     browser.New(url),
		model:   results.New(),
	}
	t.touch(now)
	t.sync = querysync.New(s.search, t.loc, t.model, tabLogger, opts...)
	t.list = display.NewResultsList(t.model)
	t.unwatch = t.loc.Watch(func(u string) { t.sync.Observe(tabCtx, u) })
	return t, tabCtx
}

// Get returns an open tab and marks it used.
func (s *Service) Get(id string) (*Tab, error) {
	s.mu.RLock()
	t, ok := s.tabs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, domain.ErrSessionNotFound)
	}
	t.touch(s.now())
	return t, nil
}

// Submit submits the search form of a tab.
func (s *Service) Submit(ctx context.Context, id, text string) (*Tab, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := t.sync.Submit(ctx, text); err != nil {
		return t, fmt.Errorf("submit: %w", err)
	}
	return t, nil
}

// Navigate types url into the address bar of a tab.
func (s *Service) Navigate(_ context.Context, id, url string) (*Tab, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	t.loc.Navigate(url)
	return t, nil
}

// Back presses the back button of a tab. It is a no-op at the start of history.
func (s *Service) Back(_ context.Context, id string) (*Tab, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	t.loc.Back()
	return t, nil
}

// Forward presses the forward button of a tab. It is a no-op at the end of history.
func (s *Service) Forward(_ context.Context, id string) (*Tab, error) {
	t, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	t.loc.Forward()
	return t, nil
}

// Close removes a tab. Searches still in flight finish into the detached model.
func (s *Service) Close(id string) error {
	s.mu.Lock()
	t, ok := s.tabs[id]
	if ok {
		delete(s.tabs, id)
	}
	open := len(s.tabs)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %q: %w", id, domain.ErrSessionNotFound)
	}

	t.Close()
	metrics.OpenSessions.Set(float64(open))
	return nil
}

// EvictIdle closes every tab idle for longer than the idle TTL and returns
// how many were closed.
func (s *Service) EvictIdle() int {
	s.mu.Lock()
	evicted := s.evictIdleLocked()
	open := len(s.tabs)
	s.mu.Unlock()

	s.closeEvicted(evicted, open)
	return len(evicted)
}

// Run evicts idle tabs periodically until ctx is done.
// It returns at once when no idle TTL is configured.
func (s *Service) Run(ctx context.Context) {
	if s.cfg.IdleTTL <= 0 {
		return
	}
	interval := max(s.cfg.IdleTTL/2, minSweepInterval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				s.logger.Info("evicted idle sessions", zap.Int("count", n), zap.Int("open", s.Count()))
			}
		}
	}
}

func (s *Service) evictIdleLocked() []*Tab {
	if s.cfg.IdleTTL <= 0 {
		return nil
	}
	cutoff := s.now().Add(-s.cfg.IdleTTL)

	var evicted []*Tab
	for id, t := range s.tabs {
		if t.LastUsed().Before(cutoff) {
			delete(s.tabs, id)
			evicted = append(evicted, t)
		}
	}
	return evicted
}

func (s *Service) closeEvicted(evicted []*Tab, open int) {
	for _, t := range evicted {
		t.Close()
		s.logger.Debug("session evicted", zap.String("session_id", t.id), zap.Time("last_used", t.LastUsed()))
	}
	metrics.SessionsEvictedTotal.Add(float64(len(evicted)))
	metrics.OpenSessions.Set(float64(open))
}

// Count returns the number of open tabs.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tabs)
}

// Capacity returns the open tab limit.
func (s *Service) Capacity() int {
	return s.cfg.MaxSessions
}
