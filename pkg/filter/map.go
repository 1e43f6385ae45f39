package filter

import (
	"iter"
	"slices"
	"sort"
)

// Map is an insertion-ordered mapping from filter key to entity IDs.
// A nil *Map behaves as an empty map for every read operation.
type Map[T ID] struct {
	keys   []string
	values map[string][]T
}

// NewMap returns an empty Map.
func NewMap[T ID]() *Map[T] {
	return &Map[T]{values: make(map[string][]T)}
}

// FromMap builds a Map from a plain map. Keys are inserted in sorted order
// since Go maps carry no ordering of their own.
func FromMap[T ID](m map[string][]T) *Map[T] {
	out := NewMap[T]()
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		out.Set(key, m[key])
	}
	return out
}

// Set replaces the IDs stored under key. A key that already exists keeps
// its position; a new key is appended.
func (m *Map[T]) Set(key string, ids []T) {
	if m.values == nil {
		m.values = make(map[string][]T)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = slices.Clone(ids)
}

// Get returns the IDs stored under key.
func (m *Map[T]) Get(key string) ([]T, bool) {
	if m == nil {
		return nil, false
	}
	ids, ok := m.values[key]
	return ids, ok
}

// Delete removes key and reports whether it was present.
func (m *Map[T]) Delete(key string) bool {
	if m == nil {
		return false
	}
	if _, ok := m.values[key]; !ok {
		return false
	}
	delete(m.values, key)
	if idx := slices.Index(m.keys, key); idx >= 0 {
		m.keys = slices.Delete(m.keys, idx, idx+1)
	}
	return true
}

// Len returns the number of keys, including keys holding no IDs.
func (m *Map[T]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Map[T]) Keys() []string {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// All iterates key/IDs pairs in insertion order.
func (m *Map[T]) All() iter.Seq2[string, []T] {
	return func(yield func(string, []T) bool) {
		if m == nil {
			return
		}
		for _, key := range m.keys {
			if !yield(key, m.values[key]) {
				return
			}
		}
	}
}

// Clone returns a deep copy of m.
func (m *Map[T]) Clone() *Map[T] {
	out := NewMap[T]()
	for key, ids := range m.All() {
		out.Set(key, ids)
	}
	return out
}
