package result

import (
	"fmt"
	"strconv"
	"strings"
)

// Response is the raw search index response, untrusted.
// Pointers distinguish absent members from zero values.
type Response struct {
	Result *ResultSet `json:"result"`
}

// ResultSet is the "result" member of a Response.
type ResultSet struct {
	HitCount *int64   `json:"hitCount"`
	Entries  *Entries `json:"entries"`
}

// Entries wraps the entry list.
type Entries struct {
	Entry []Entry `json:"entry"`
}

// Entry is a single index entry as sent by the index.
// Its field values live under fields.field as {"@id", "values": {"value"}} tuples.
type Entry map[string]any

// FlatEntry is an Entry with every field tuple promoted to a top-level key.
type FlatEntry map[string]any

// Page is a flattened response.
type Page struct {
	Hits int64       `json:"hits"`
	RNAs []FlatEntry `json:"rnas"`
}

// String renders the value under key for display.
// Missing keys render as "".
func (e FlatEntry) String(key string) string {
	return render(e[key])
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, render(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(t)
	}
}
