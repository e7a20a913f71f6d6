// Package bsonval converts decoded BSON values into plain Go document values.
//
// Documents become map[string]any, arrays []any, dates time.Time, generic binary []byte, and
// 32-bit integers int64. Other BSON types are kept as decoded.
package bsonval

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Document normalizes every value of a decoded document.
func Document(doc bson.M) map[string]any {
	rv := make(map[string]any, len(doc))
	for k, v := range doc {
		rv[k] = Value(v)
	}

	return rv
}

// Value normalizes one decoded BSON value.
func Value(v any) any {
	switch v := v.(type) {
	case bson.D:
		rv := make(map[string]any, len(v))
		for _, e := range v {
			rv[e.Key] = Value(e.Value)
		}

		return rv
	case bson.M:
		return Document(v)
	case map[string]any:
		return Document(v)
	case bson.A:
		return values(v)
	case []any:
		return values(v)
	case bson.DateTime:
		return v.Time().UTC()
	case bson.Binary:
		if v.Subtype == bson.TypeBinaryGeneric {
			return v.Data
		}

		return v
	case int32:
		return int64(v)
	default:
		return v
	}
}

func values(a []any) []any {
	rv := make([]any, len(a))
	for i, e := range a {
		rv[i] = Value(e)
	}

	return rv
}
