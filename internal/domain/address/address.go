// Package address encodes the active query into an address bar URL and back.
//
// A search address has the path /search and the query text in the q
// parameter. Any other address belongs to the surrounding site and must be
// loaded with a full navigation.
package address

import (
	"net/url"
	"strings"
)

// SearchPath is the path that hosts search results.
const SearchPath = "/search"

// ParamQuery is the parameter carrying the query text.
const ParamQuery = "q"

// ForQuery returns the canonical search address for text.
func ForQuery(text string) string {
	v := url.Values{}
	v.Set(ParamQuery, text)
	return SearchPath + "?" + v.Encode()
}

// IsSearch reports whether raw points at the search results path.
func IsSearch(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasPrefix(u.Path, SearchPath)
}

// QueryText extracts the q parameter from a search address.
// ok is false for non-search addresses and for addresses without q.
// Pairs are split on & only, so a raw ; stays part of the text.
func QueryText(raw string) (text string, ok bool) {
	u, err := url.Parse(raw)
	if err != nil || !strings.HasPrefix(u.Path, SearchPath) {
		return "", false
	}
	for pair := range strings.SplitSeq(u.RawQuery, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if k, err := url.QueryUnescape(key); err != nil || k != ParamQuery {
			continue
		}
		text, err := url.QueryUnescape(value)
		if err != nil {
			return "", false
		}
		return text, true
	}
	return "", false
}
