package store

import (
	"reflect"
	"time"
)

// Sizes follow the Firestore storage size rules closely enough to bound batch payloads.
const (
	docNameOverhead = 16
	scalarSize      = 8
	refSize         = 16
)

// EstimateSize returns the approximate stored size of a document at path.
func EstimateSize(path string, data Data) uint64 {
	return uint64(len(path)+1) + docNameOverhead + estimateMap(data) //nolint:gosec
}

func estimateMap(m map[string]any) uint64 {
	var n uint64
	for k, v := range m {
		n += uint64(len(k)+1) + estimateValue(v) //nolint:gosec
	}

	return n
}

func estimateValue(v any) uint64 {
	switch v := v.(type) {
	case nil, bool:
		return 1
	case string:
		return uint64(len(v) + 1) //nolint:gosec
	case []byte:
		return uint64(len(v) + 1) //nolint:gosec
	case time.Time:
		return scalarSize
	case map[string]any:
		return estimateMap(v)
	case []any:
		var n uint64
		for _, e := range v {
			n += estimateValue(e)
		}

		return n
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() { //nolint:exhaustive
	case reflect.Map:
		var n uint64
		iter := rv.MapRange()
		for iter.Next() {
			n += estimateValue(iter.Key().Interface()) + estimateValue(iter.Value().Interface())
		}

		return n
	case reflect.Slice, reflect.Array:
		var n uint64
		for i := range rv.Len() {
			n += estimateValue(rv.Index(i).Interface())
		}

		return n
	case reflect.String:
		return uint64(rv.Len() + 1) //nolint:gosec
	case reflect.Pointer, reflect.Struct:
		return refSize
	default:
		return scalarSize
	}
}
