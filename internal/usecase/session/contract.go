package session

import (
	"context"

	"github.com/kailas-cloud/metasearch/internal/domain/search/result"
)

// Searcher fetches raw results for a query text. One Searcher serves all tabs.
type Searcher interface {
	Search(ctx context.Context, text string) (result.Response, error)
}
