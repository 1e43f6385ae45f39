package filter

import (
	"errors"
	"fmt"
	"reflect"
)

// DefaultMaxRecommended is the selection size above which a performance
// warning is attached.
const DefaultMaxRecommended = 100

// ErrNotArray is returned by ValidateValue for anything that is not a
// slice or array.
var ErrNotArray = errors.New("IDs must be an array")

// InvalidIDError reports the first ID in a set that is not a positive
// integer.
type InvalidIDError struct {
	Value any
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("Invalid ID: %v. IDs must be positive integers.", e.Value)
}

// ValidateEntityIDs checks that every ID is a finite integer greater than
// zero. Strings are coerced with parseInt prefix rules first. An empty set
// is valid. The first offending value invalidates the whole set.
func ValidateEntityIDs[T ID](ids []T) error {
	for _, id := range ids {
		if !positiveInteger(reflect.ValueOf(id)) {
			return &InvalidIDError{Value: id}
		}
	}
	return nil
}

// ValidateValue applies ValidateEntityIDs to a dynamically typed value, as
// produced by decoding YAML or JSON. Interface and pointer elements are
// unwrapped; nil elements and non-scalar elements are invalid IDs.
func ValidateValue(v any) error {
	_, err := coerce(v)
	return err
}

// CoerceIDs validates v like ValidateValue and converts it to int64 IDs.
func CoerceIDs(v any) ([]int64, error) {
	return coerce(v)
}

func coerce(v any) ([]int64, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, ErrNotArray
	}

	ids := make([]int64, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		el := rv.Index(i)
		for el.Kind() == reflect.Interface || el.Kind() == reflect.Pointer {
			if el.IsNil() {
				return nil, &InvalidIDError{Value: nil}
			}
			el = el.Elem()
		}
		n, ok := integerValue(el)
		if !ok || n <= 0 {
			return nil, &InvalidIDError{Value: el.Interface()}
		}
		ids = append(ids, n)
	}
	return ids, nil
}

// IsValidEntityID reports whether v is a number holding a positive whole
// value. Numeric strings are rejected, unlike ValidateEntityIDs.
func IsValidEntityID(v any) bool {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || !isNumericKind(rv.Kind()) {
		return false
	}
	return positiveInteger(rv)
}

// Optimization is the result of OptimizeEntityIDArray.
type Optimization[T ID] struct {
	IDs     []T
	Warning string
}

// OptimizeEntityIDArray deduplicates ids and attaches an advisory warning
// when more than maxRecommended remain. IDs are never truncated.
// maxRecommended <= 0 selects DefaultMaxRecommended; an explicit zero
// does not mean "warn on any selection".
func OptimizeEntityIDArray[T ID](ids []T, entityType string, maxRecommended int) Optimization[T] {
	if maxRecommended <= 0 {
		maxRecommended = DefaultMaxRecommended
	}
	unique := dedupe(ids)
	result := Optimization[T]{IDs: unique}
	if len(unique) > maxRecommended {
		result.Warning = fmt.Sprintf(
			"Filtering by %d %ss may impact performance. Consider narrowing your selection.",
			len(unique), entityType,
		)
	}
	return result
}
