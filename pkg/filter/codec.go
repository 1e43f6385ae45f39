package filter

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rpattn/aquamind/internal/numparse"
)

// NoFiltersApplied is the summary reported when every filter is empty.
const NoFiltersApplied = "No filters applied"

const inSuffix = "__in"

// FormatInFilter joins ids into the comma separated form used by `__in`
// query parameters. Duplicates are removed keeping first occurrence order.
// Empty string IDs are treated as absent. ok is false when nothing remains,
// so callers never receive an empty parameter value.
//
// Values are not validated here: FormatInFilter([]int{-1, 2}) is "-1,2".
func FormatInFilter[T ID](ids []T) (string, bool) {
	if len(ids) == 0 {
		return "", false
	}

	parts := make([]string, 0, len(ids))
	for _, id := range dedupe(ids) {
		s := formatID(reflect.ValueOf(id))
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, ","), true
}

// ParseInFilter splits a comma separated `__in` value back into IDs.
// Fragments that do not start with an integer, or that are not positive,
// are dropped without error.
func ParseInFilter(s string) []int64 {
	ids := []int64{}
	if s == "" {
		return ids
	}
	for _, part := range strings.Split(s, ",") {
		id, ok := numparse.LeadingInt(strings.TrimSpace(part))
		if !ok || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// FormatMultiEntityFilters formats every key of m, omitting keys whose
// IDs format to nothing.
func FormatMultiEntityFilters[T ID](m *Map[T]) map[string]string {
	formatted := make(map[string]string, m.Len())
	for key, ids := range m.All() {
		if value, ok := FormatInFilter(ids); ok {
			formatted[key] = value
		}
	}
	return formatted
}

// CreateFilterSummary describes m for display, e.g. "Hall: 3, Area: 1".
// Counts are the raw number of stored IDs, duplicates included.
func CreateFilterSummary[T ID](m *Map[T]) string {
	var parts []string
	for key, ids := range m.All() {
		if len(ids) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %d", Label(key), len(ids)))
	}
	if len(parts) == 0 {
		return NoFiltersApplied
	}
	return strings.Join(parts, ", ")
}

// EntityType strips the `__in` suffix from a filter key.
func EntityType(key string) string {
	return strings.TrimSuffix(key, inSuffix)
}

// Label turns a filter key such as "feed_container__in" into "Feed Container".
func Label(key string) string {
	words := strings.Split(EntityType(key), "_")
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + word[size:]
	}
	return strings.Join(words, " ")
}
