package querysync

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/metasearch/internal/browser"
	"github.com/kailas-cloud/metasearch/internal/domain"
	"github.com/kailas-cloud/metasearch/internal/domain/address"
	"github.com/kailas-cloud/metasearch/internal/domain/search/result"
	"github.com/kailas-cloud/metasearch/internal/usecase/results"
)

// --- Mocks ---

type mockSearcher struct {
	mu    sync.Mutex
	calls []string
	gates map[string]chan struct{}
	errs  map[string]error
}

func newMockSearcher() *mockSearcher {
	return &mockSearcher{gates: map[string]chan struct{}{}, errs: map[string]error{}}
}

// hold makes searches for text block until the returned func is called.
func (m *mockSearcher) hold(text string) func() {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gates[text] = gate
	m.mu.Unlock()
	return func() { close(gate) }
}

func (m *mockSearcher) fail(text string, err error) {
	m.mu.Lock()
	m.errs[text] = err
	m.mu.Unlock()
}

func (m *mockSearcher) Search(_ context.Context, text string) (result.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	gate := m.gates[text]
	err := m.errs[text]
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return result.Response{}, err
	}
	return responseFor(text), nil
}

func (m *mockSearcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

// responseFor returns two entries whose description is the query text.
func responseFor(text string) result.Response {
	hits := int64(2)
	entry := func(id string) result.Entry {
		return result.Entry{
			"id": id,
			"fields": map[string]any{"field": []any{
				map[string]any{"@id": "description", "values": map[string]any{"value": text}},
			}},
		}
	}
	return result.Response{Result: &result.ResultSet{
		HitCount: &hits,
		Entries:  &result.Entries{Entry: []result.Entry{entry(text + "-1"), entry(text + "-2")}},
	}}
}

type tab struct {
	loc      *browser.Location
	model    *results.Model
	searcher *mockSearcher
	svc      *Service
}

func newTab(t *testing.T, initial string, opts ...Option) *tab {
	t.Helper()
	tb := &tab{
		loc:      browser.New(initial),
		model:    results.New(),
		searcher: newMockSearcher(),
	}
	tb.svc = New(tb.searcher, tb.loc, tb.model, zap.NewNop(), opts...)
	ctx := context.Background()
	tb.loc.Watch(func(url string) { tb.svc.Observe(ctx, url) })
	return tb
}

func (tb *tab) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := tb.svc.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func (tb *tab) description(t *testing.T) string {
	t.Helper()
	snap := tb.model.Results()
	if len(snap.RNAs) == 0 {
		return ""
	}
	return snap.RNAs[0].String("description")
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

// --- Tests ---

func TestSubmit_SearchesAndSyncsAddress(t *testing.T) {
	tb := newTab(t, "/")

	if err := tb.svc.Submit(context.Background(), "16S rRNA"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	text, ok := address.QueryText(tb.loc.URL())
	if !ok || text != "16S rRNA" {
		t.Errorf("address = %q, want search for %q", tb.loc.URL(), "16S rRNA")
	}
	if !tb.model.Status() {
		t.Error("results must be visible once a search is launched")
	}

	tb.wait(t)

	snap := tb.model.Results()
	if snap.Hits == nil || *snap.Hits != 2 {
		t.Fatalf("Hits = %v, want 2", snap.Hits)
	}
	if len(snap.RNAs) != 2 {
		t.Fatalf("len(RNAs) = %d, want 2", len(snap.RNAs))
	}
	for _, rna := range snap.RNAs {
		if rna.String("description") != "16S rRNA" {
			t.Errorf("description = %q", rna.String("description"))
		}
	}

	state := tb.svc.Snapshot()
	if state.State != ResultsShown {
		t.Errorf("State = %q, want %q", state.State, ResultsShown)
	}
	if state.Query.Submitted {
		t.Error("Submitted must be cleared once the search resolves")
	}
	if calls := tb.searcher.Calls(); !slices.Equal(calls, []string{"16S rRNA"}) {
		t.Errorf("calls = %v, want exactly one search", calls)
	}
}

func TestSubmit_TrimsText(t *testing.T) {
	tb := newTab(t, "/")

	if err := tb.svc.Submit(context.Background(), " 16S rRNA\t"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tb.wait(t)

	if got := tb.loc.URL(); got != "/search?q=16S+rRNA" {
		t.Errorf("address = %q, want /search?q=16S+rRNA", got)
	}
	if calls := tb.searcher.Calls(); !slices.Equal(calls, []string{"16S rRNA"}) {
		t.Errorf("calls = %v, want the trimmed text", calls)
	}
	if got := tb.svc.Snapshot().Query.Text; got != "16S rRNA" {
		t.Errorf("Query.Text = %q, want trimmed text", got)
	}
}

func TestObserve_AddressTextNotTrimmed(t *testing.T) {
	tb := newTab(t, "/")

	tb.loc.Navigate("/search?q=+tRNA")
	tb.wait(t)

	if calls := tb.searcher.Calls(); !slices.Equal(calls, []string{" tRNA"}) {
		t.Errorf("calls = %v, want the address text as written", calls)
	}
}

func TestSubmit_Invalid(t *testing.T) {
	tb := newTab(t, "/")

	err := tb.svc.Submit(context.Background(), "   ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	if len(tb.searcher.Calls()) != 0 {
		t.Error("invalid submission must not search")
	}
	if tb.loc.URL() != "/" {
		t.Errorf("address changed to %q", tb.loc.URL())
	}
	if tb.model.Status() {
		t.Error("invalid submission must not show results")
	}

	state := tb.svc.Snapshot()
	if state.State != Idle {
		t.Errorf("State = %q, want %q", state.State, Idle)
	}
	if !state.Query.Submitted || !state.Query.Invalid() {
		t.Error("form must show the validation error")
	}
}

func TestSubmit_ValidAfterInvalidClearsSubmitted(t *testing.T) {
	tb := newTab(t, "/")
	ctx := context.Background()

	_ = tb.svc.Submit(ctx, "")
	if err := tb.svc.Submit(ctx, "tRNA"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tb.wait(t)

	if tb.svc.Snapshot().Query.Submitted {
		t.Error("Submitted must be cleared after a valid search resolves")
	}
}

func TestStart_LaunchesFromSearchAddress(t *testing.T) {
	tb := newTab(t, "/search?q=mir-21")

	tb.svc.Start(context.Background())
	tb.svc.Start(context.Background())
	tb.wait(t)

	if calls := tb.searcher.Calls(); !slices.Equal(calls, []string{"mir-21"}) {
		t.Errorf("calls = %v, want one search for mir-21", calls)
	}
	if tb.description(t) != "mir-21" {
		t.Errorf("description = %q", tb.description(t))
	}
	if tb.svc.Snapshot().Query.Submitted {
		t.Error("initial load is not a form submission")
	}
}

func TestStart_NonSearchAddress(t *testing.T) {
	for _, initial := range []string{"/", "/rna/URS0000000001", "/search", "/search?q="} {
		t.Run(initial, func(t *testing.T) {
			tb := newTab(t, initial)
			tb.svc.Start(context.Background())

			if len(tb.searcher.Calls()) != 0 {
				t.Errorf("unexpected search for %q", initial)
			}
			if _, left := tb.loc.Left(); left {
				t.Error("initial load must not navigate away")
			}
			if tb.model.Status() {
				t.Error("results must stay hidden")
			}
		})
	}
}

func TestURLRoundTrip(t *testing.T) {
	texts := []string{"16S rRNA", "a&b=c", "plus+sign", "100%", "ünïcödé", " padded "}

	for _, text := range texts {
		t.Run(text, func(t *testing.T) {
			first := newTab(t, "/")
			if err := first.svc.Submit(context.Background(), text); err != nil {
				t.Fatalf("Submit: %v", err)
			}
			first.wait(t)

			second := newTab(t, first.loc.URL())
			second.svc.Start(context.Background())
			second.wait(t)

			calls := second.searcher.Calls()
			if len(calls) != 1 || calls[0] != text {
				t.Errorf("reloaded search = %q, want %q", calls, text)
			}
			if second.loc.URL() != first.loc.URL() {
				t.Errorf("reload rewrote address %q to %q", first.loc.URL(), second.loc.URL())
			}
		})
	}
}

func TestObserve_NonSearchNavigatesAway(t *testing.T) {
	tb := newTab(t, "/search?q=tRNA")
	tb.svc.Start(context.Background())
	tb.wait(t)

	tb.loc.Navigate("/about")

	target, left := tb.loc.Left()
	if !left || target != "/about" {
		t.Errorf("Left() = (%q, %v), want full navigation to /about", target, left)
	}
	if calls := tb.searcher.Calls(); len(calls) != 1 {
		t.Errorf("calls = %v, navigation away must not search", calls)
	}
}

func TestObserve_UnchangedAddressIsNoop(t *testing.T) {
	tb := newTab(t, "/")
	ctx := context.Background()

	tb.svc.Observe(ctx, "/search?q=tRNA")
	tb.svc.Observe(ctx, "/search?q=tRNA")
	tb.wait(t)

	if calls := tb.searcher.Calls(); len(calls) != 1 {
		t.Errorf("calls = %v, want exactly one", calls)
	}
}

func TestObserve_OwnWriteIsNoop(t *testing.T) {
	tb := newTab(t, "/")
	ctx := context.Background()

	if err := tb.svc.Submit(ctx, "tRNA"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tb.svc.Observe(ctx, tb.loc.URL())
	tb.wait(t)

	if calls := tb.searcher.Calls(); len(calls) != 1 {
		t.Errorf("calls = %v, the service's own address write must not search again", calls)
	}
}

func TestObserve_InitialAddressIsNoop(t *testing.T) {
	tb := newTab(t, "/search?q=tRNA")
	tb.svc.Observe(context.Background(), "/search?q=tRNA")

	if len(tb.searcher.Calls()) != 0 {
		t.Error("the address present at creation counts as already observed")
	}
}

func TestObserve_SearchWithoutQuery(t *testing.T) {
	tb := newTab(t, "/")
	tb.loc.Navigate("/search")

	if len(tb.searcher.Calls()) != 0 {
		t.Error("search address without q must not search")
	}
	if _, left := tb.loc.Left(); left {
		t.Error("search address must not navigate away")
	}
}

func TestBackForward_ReSearches(t *testing.T) {
	tb := newTab(t, "/")
	ctx := context.Background()

	for _, text := range []string{"alpha", "beta"} {
		if err := tb.svc.Submit(ctx, text); err != nil {
			t.Fatalf("Submit(%q): %v", text, err)
		}
		tb.wait(t)
	}

	if !tb.loc.Back() {
		t.Fatal("Back() = false")
	}
	tb.wait(t)
	if tb.description(t) != "alpha" {
		t.Errorf("after Back description = %q, want alpha", tb.description(t))
	}

	if !tb.loc.Forward() {
		t.Fatal("Forward() = false, history was truncated")
	}
	tb.wait(t)
	if tb.description(t) != "beta" {
		t.Errorf("after Forward description = %q, want beta", tb.description(t))
	}

	want := []string{"alpha", "beta", "alpha", "beta"}
	if calls := tb.searcher.Calls(); !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestNavigate_CanonicalizesWithoutNewHistoryEntry(t *testing.T) {
	tb := newTab(t, "/")

	tb.loc.Navigate("/search?q=16S rRNA")
	tb.wait(t)

	if tb.loc.URL() != address.ForQuery("16S rRNA") {
		t.Errorf("URL() = %q, want canonical %q", tb.loc.URL(), address.ForQuery("16S rRNA"))
	}
	history, _ := tb.loc.History()
	if len(history) != 2 {
		t.Errorf("history = %v, want the typed entry replaced in place", history)
	}
	if calls := tb.searcher.Calls(); !slices.Equal(calls, []string{"16S rRNA"}) {
		t.Errorf("calls = %v", calls)
	}
}

func TestSearchFailure_KeepsPreviousResults(t *testing.T) {
	tb := newTab(t, "/")
	ctx := context.Background()

	if err := tb.svc.Submit(ctx, "good"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tb.wait(t)

	tb.searcher.fail("bad", domain.NewHTTPError(502))
	if err := tb.svc.Submit(ctx, "bad"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tb.wait(t)

	if tb.description(t) != "good" {
		t.Errorf("description = %q, previous results must survive a failed search", tb.description(t))
	}
	if !tb.model.Status() {
		t.Error("results visibility must not be reset")
	}

	state := tb.svc.Snapshot()
	if state.State != Idle {
		t.Errorf("State = %q, want %q", state.State, Idle)
	}
	if !errors.Is(state.LastError, domain.ErrHTTP) {
		t.Errorf("LastError = %v, want ErrHTTP", state.LastError)
	}
	if state.InFlight != 0 {
		t.Errorf("InFlight = %d, want 0", state.InFlight)
	}

	if err := tb.svc.Submit(ctx, "good"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	tb.wait(t)
	if tb.svc.Snapshot().LastError != nil {
		t.Error("LastError must be cleared by the next resolved search")
	}
}

func TestSnapshot_InFlight(t *testing.T) {
	tb := newTab(t, "/")
	release := tb.searcher.hold("slow")

	if err := tb.svc.Submit(context.Background(), "slow"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	state := tb.svc.Snapshot()
	if state.State != SearchInFlight || state.InFlight != 1 {
		t.Errorf("snapshot = %+v, want one search in flight", state)
	}

	release()
	tb.wait(t)
	if tb.svc.Snapshot().State != ResultsShown {
		t.Error("expected results after release")
	}
}

func TestWait_RespectsContext(t *testing.T) {
	tb := newTab(t, "/")
	release := tb.searcher.hold("slow")
	defer release()

	if err := tb.svc.Submit(context.Background(), "slow"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := tb.svc.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait = %v, want deadline exceeded", err)
	}
}

func TestConcurrentSearches_LastResolveWins(t *testing.T) {
	tb := newTab(t, "/")
	ctx := context.Background()
	releaseOld := tb.searcher.hold("old")
	releaseNew := tb.searcher.hold("new")

	_ = tb.svc.Submit(ctx, "old")
	_ = tb.svc.Submit(ctx, "new")

	releaseNew()
	eventually(t, func() bool { return tb.description(t) == "new" })

	releaseOld()
	tb.wait(t)

	if tb.description(t) != "old" {
		t.Errorf("description = %q, the response resolving last wins", tb.description(t))
	}
	if tb.loc.URL() != address.ForQuery("new") {
		t.Errorf("address = %q, want the latest query", tb.loc.URL())
	}
}

func TestConcurrentSearches_LatestOnly(t *testing.T) {
	tb := newTab(t, "/", WithLatestOnly())
	ctx := context.Background()
	releaseOld := tb.searcher.hold("old")
	releaseNew := tb.searcher.hold("new")

	_ = tb.svc.Submit(ctx, "old")
	_ = tb.svc.Submit(ctx, "new")

	releaseNew()
	eventually(t, func() bool { return tb.description(t) == "new" })

	releaseOld()
	tb.wait(t)

	if tb.description(t) != "new" {
		t.Errorf("description = %q, superseded response must be dropped", tb.description(t))
	}
	if tb.svc.Snapshot().State != ResultsShown {
		t.Errorf("State = %q", tb.svc.Snapshot().State)
	}
}

func TestRepeatedIdenticalSearch_ReIssues(t *testing.T) {
	tb := newTab(t, "/")
	ctx := context.Background()

	for range 3 {
		if err := tb.svc.Submit(ctx, "tRNA"); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		tb.wait(t)
	}

	if calls := tb.searcher.Calls(); len(calls) != 3 {
		t.Errorf("calls = %v, identical searches are re-issued", calls)
	}
	history, _ := tb.loc.History()
	if len(history) != 2 {
		t.Errorf("history = %v, an unchanged address must not be pushed again", history)
	}
}
