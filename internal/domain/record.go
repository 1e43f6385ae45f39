package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// Record is one object returned by a Django REST list or detail endpoint.
// Numbers are decoded as json.Number so large IDs survive intact.
type Record map[string]any

// ID returns the record's integer "id" field.
func (r Record) ID() (int64, bool) {
	switch v := r["id"].(type) {
	case json.Number:
		id, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return id, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
