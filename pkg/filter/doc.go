// Package filter converts multi-entity selections into Django REST
// Framework `__in` query parameters and back.
//
// A selection is an ordered mapping from a filter key such as "hall__in"
// to the entity IDs chosen for it:
//
//	m := filter.NewMap[int64]()
//	m.Set("hall__in", []int64{1, 2, 3})
//	m.Set("area__in", []int64{10})
//
//	filter.FormatMultiEntityFilters(m) // {"hall__in": "1,2,3", "area__in": "10"}
//	filter.CreateFilterSummary(m)      // "Hall: 3, Area: 1"
//
// Formatting and parsing apply different sanitisation rules on purpose.
// FormatInFilter only removes duplicates, so a selection that fails
// ValidateEntityIDs can still produce a formatted string. ParseInFilter
// silently drops fragments that are not positive integers.
package filter
