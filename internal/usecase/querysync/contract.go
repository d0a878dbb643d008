package querysync

import (
	"context"

	"github.com/kailas-cloud/metasearch/internal/domain/search/result"
)

// Searcher fetches raw results for a query text.
type Searcher interface {
	Search(ctx context.Context, text string) (result.Response, error)
}

// AddressBar is the tab address the service keeps in sync.
// Push and Replace must not report the change back through Observe.
type AddressBar interface {
	URL() string
	Push(url string)
	Replace(url string)
	// Assign leaves the app with a full navigation.
	Assign(url string)
}

// ResultSink receives search results. It must not call back into the Service.
type ResultSink interface {
	SetStatus()
	Save(resp result.Response) error
}
