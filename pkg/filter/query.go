package filter

import (
	"net/url"
	"sort"
	"strings"
)

// Values renders m as query parameters, one value per non-empty key.
func Values[T ID](m *Map[T]) url.Values {
	values := url.Values{}
	for key, formatted := range FormatMultiEntityFilters(m) {
		values.Set(key, formatted)
	}
	return values
}

// ParseQuery rebuilds a selection from the `__in` parameters of values.
// Parameters without the suffix are ignored, as are keys whose value
// parses to no IDs. Keys are inserted in sorted order.
func ParseQuery(values url.Values) *Map[int64] {
	keys := make([]string, 0, len(values))
	for key := range values {
		if strings.HasSuffix(key, inSuffix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	m := NewMap[int64]()
	for _, key := range keys {
		var ids []int64
		for _, raw := range values[key] {
			ids = append(ids, ParseInFilter(raw)...)
		}
		if len(ids) == 0 {
			continue
		}
		m.Set(key, dedupe(ids))
	}
	return m
}
