package result

import (
	"fmt"
	"maps"

	"github.com/kailas-cloud/metasearch/internal/domain"
)

const (
	keyFields = "fields"
	keyField  = "field"
	keyID     = "@id"
	keyValues = "values"
	keyValue  = "value"
)

// Flatten turns a raw response into a Page.
//
// Entry order is kept. Each entry is copied and every field tuple found in
// fields.field becomes entry[@id] = values.value; later duplicates win.
// Absent lists count as empty. A response without result.hitCount yields a
// zero Page and ErrMalformedResponse.
func Flatten(resp Response) (Page, error) {
	if resp.Result == nil || resp.Result.HitCount == nil {
		return Page{RNAs: []FlatEntry{}}, fmt.Errorf("%w: missing result.hitCount", domain.ErrMalformedResponse)
	}

	page := Page{Hits: *resp.Result.HitCount, RNAs: []FlatEntry{}}
	if resp.Result.Entries == nil {
		return page, nil
	}

	page.RNAs = make([]FlatEntry, 0, len(resp.Result.Entries.Entry))
	for _, entry := range resp.Result.Entries.Entry {
		if entry == nil {
			continue
		}
		page.RNAs = append(page.RNAs, flattenEntry(entry))
	}
	return page, nil
}

func flattenEntry(entry Entry) FlatEntry {
	flat := FlatEntry(maps.Clone(map[string]any(entry)))

	fields, _ := entry[keyFields].(map[string]any)
	list, _ := fields[keyField].([]any)
	for _, raw := range list {
		tuple, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, ok := tuple[keyID].(string)
		if !ok || id == "" {
			continue
		}
		var value any
		if values, ok := tuple[keyValues].(map[string]any); ok {
			value = values[keyValue]
		}
		flat[id] = value
	}
	return flat
}
