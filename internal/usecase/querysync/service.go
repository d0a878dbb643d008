package querysync

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/kailas-cloud/metasearch/internal/domain/address"
	"github.com/kailas-cloud/metasearch/internal/domain/query"
	"github.com/kailas-cloud/metasearch/internal/metrics"
)

// State is the sync state of a tab.
type State string

// Sync states.
const (
	Idle           State = "idle"
	SearchInFlight State = "searching"
	ResultsShown   State = "results"
)

// Snapshot is a read-only copy of the service state.
type Snapshot struct {
	State    State
	Query    query.Query
	URL      string
	InFlight int
	// LastError is the error of the last rejected search, cleared by the next resolve.
	LastError error
}

// Option configures a Service.
type Option func(*Service)

// WithLatestOnly drops responses of searches superseded by a newer launch.
// Without it the response that arrives last wins, even if it belongs to an
// older query.
func WithLatestOnly() Option {
	return func(s *Service) { s.latestOnly = true }
}

// launchOrigin tells how a search was triggered.
type launchOrigin int

const (
	fromSubmit launchOrigin = iota
	fromAddress
)

// Service keeps the address bar, the in-flight search and the result model in sync.
type Service struct {
	search     Searcher
	bar        AddressBar
	sink       ResultSink
	logger     *zap.Logger
	latestOnly bool

	mu       sync.Mutex
	query    query.Query
	lastURL  string
	started  bool
	inFlight int
	launched uint64
	resolved bool
	lastErr  error
	idle     chan struct{}
}

// New creates a Service. The current address of bar counts as already observed.
func New(search Searcher, bar AddressBar, sink ResultSink, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	idle := make(chan struct{})
	close(idle)

	s := &Service{
		search:  search,
		bar:     bar,
		sink:    sink,
		logger:  logger,
		lastURL: bar.URL(),
		idle:    idle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the initial load check once: when the tab opened on a search
// address, the embedded query is searched without user interaction.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true

	current := s.bar.URL()
	s.lastURL = current
	text, ok := address.QueryText(current)
	if !ok {
		return
	}
	s.launchFromAddressLocked(ctx, current, text)
}

// Observe handles an address change seen by the address watch.
func (s *Service) Observe(ctx context.Context, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if url == s.lastURL {
		return
	}
	s.lastURL = url

	if !address.IsSearch(url) {
		s.logger.Debug("leaving app", zap.String("url", url))
		s.bar.Assign(url)
		return
	}

	text, ok := address.QueryText(url)
	if !ok {
		s.logger.Debug("search address without query", zap.String("url", url))
		return
	}
	s.launchFromAddressLocked(ctx, url, text)
}

// Submit handles a search form submission.
// Invalid text returns a validation error and launches nothing.
func (s *Service) Submit(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.query.Text = text
	s.query.Submitted = true

	valid, err := query.Validate(text)
	if err != nil {
		return err
	}
	s.launchLocked(ctx, valid, fromSubmit)
	return nil
}

// Wait blocks until no search is in flight or ctx is done.
func (s *Service) Wait(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // caller's own context
	}
}

// Snapshot returns the current state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		State:     s.stateLocked(),
		Query:     s.query,
		URL:       s.lastURL,
		InFlight:  s.inFlight,
		LastError: s.lastErr,
	}
}

func (s *Service) launchFromAddressLocked(ctx context.Context, url, text string) {
	s.query.Text = text
	// Address text is searched as written; only form submissions are trimmed.
	if _, err := query.Validate(text); err != nil {
		s.logger.Debug("ignoring search address", zap.String("url", url), zap.Error(err))
		return
	}
	s.launchLocked(ctx, text, fromAddress)
}

// launchLocked makes results visible, writes the canonical search address
// and starts the search without waiting for it.
func (s *Service) launchLocked(ctx context.Context, text string, origin launchOrigin) {
	s.query.Text = text
	s.sink.SetStatus()

	canonical := address.ForQuery(text)
	if s.bar.URL() != canonical {
		if origin == fromAddress {
			s.bar.Replace(canonical)
		} else {
			s.bar.Push(canonical)
		}
	}
	s.lastURL = canonical

	if s.inFlight == 0 {
		s.idle = make(chan struct{})
	}
	s.inFlight++
	s.launched++
	seq := s.launched

	s.logger.Info("search launched", zap.String("query", text), zap.Uint64("seq", seq))

	// In-flight searches are never cancelled by newer ones.
	go s.run(context.WithoutCancel(ctx), seq, text)
}

func (s *Service) run(ctx context.Context, seq uint64, text string) {
	resp, err := s.search.Search(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.releaseLocked()

	if s.latestOnly && seq != s.launched {
		metrics.StaleResultsTotal.Inc()
		s.logger.Debug("dropping superseded search", zap.String("query", text), zap.Uint64("seq", seq))
		return
	}

	if err != nil {
		s.lastErr = err
		s.resolved = false
		s.logger.Warn("search failed", zap.String("query", text), zap.Uint64("seq", seq), zap.Error(err))
		return
	}

	if err := s.sink.Save(resp); err != nil {
		s.logger.Warn("search response stored as empty", zap.String("query", text), zap.Error(err))
	}
	s.query.Submitted = false
	s.lastErr = nil
	s.resolved = true
}

func (s *Service) releaseLocked() {
	s.inFlight--
	if s.inFlight == 0 {
		close(s.idle)
	}
}

func (s *Service) stateLocked() State {
	switch {
	case s.inFlight > 0:
		return SearchInFlight
	case s.resolved:
		return ResultsShown
	default:
		return Idle
	}
}
