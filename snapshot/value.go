package snapshot

import (
	"path"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/genproto/googleapis/type/latlng"

	"github.com/percona/percona-doctree-migrate/errors"
)

// Values Extended JSON cannot hold exactly are written as single-key objects keyed by a tag.
// A document map that itself has a single tag key is wrapped in tagMap.
const (
	tagTime = "@ts"  // RFC 3339 with nanoseconds
	tagGeo  = "@geo" // [latitude, longitude]
	tagRef  = "@ref" // full Firestore document name
	tagMap  = "@map"
)

func isTag(k string) bool {
	switch k {
	case tagTime, tagGeo, tagRef, tagMap:
		return true
	default:
		return false
	}
}

func encodeMap(m map[string]any) map[string]any {
	rv := make(map[string]any, len(m))
	for k, v := range m {
		rv[k] = encodeValue(v)
	}

	if len(m) == 1 {
		for k := range m {
			if isTag(k) {
				return map[string]any{tagMap: rv}
			}
		}
	}

	return rv
}

func encodeValue(v any) any {
	switch v := v.(type) {
	case time.Time:
		return map[string]any{tagTime: v.UTC().Format(time.RFC3339Nano)}
	case *latlng.LatLng:
		if v == nil {
			return nil
		}

		return map[string]any{tagGeo: []any{v.GetLatitude(), v.GetLongitude()}}
	case *firestore.DocumentRef:
		if v == nil {
			return nil
		}

		return map[string]any{tagRef: v.Path}
	case map[string]any:
		return encodeMap(v)
	case []any:
		rv := make([]any, len(v))
		for i, e := range v {
			rv[i] = encodeValue(e)
		}

		return rv
	default:
		return v
	}
}

func decodeMap(m map[string]any) (map[string]any, error) {
	if len(m) == 1 {
		for k, v := range m {
			if !isTag(k) {
				break
			}

			if k != tagMap {
				return nil, errors.Errorf("tagged value %q in document position", k)
			}

			inner, ok := v.(map[string]any)
			if !ok {
				return nil, errors.Errorf("%s: want object, got %T", tagMap, v)
			}

			return decodeEntries(inner)
		}
	}

	return decodeEntries(m)
}

func decodeEntries(m map[string]any) (map[string]any, error) {
	rv := make(map[string]any, len(m))
	for k, v := range m {
		d, err := decodeValue(v)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", k)
		}

		rv[k] = d
	}

	return rv, nil
}

func decodeValue(v any) (any, error) {
	switch v := v.(type) {
	case map[string]any:
		if len(v) == 1 {
			for k, e := range v {
				switch k {
				case tagTime:
					return decodeTime(e)
				case tagGeo:
					return decodeGeo(e)
				case tagRef:
					return decodeRef(e)
				}
			}
		}

		return decodeMap(v)
	case []any:
		rv := make([]any, len(v))
		for i, e := range v {
			d, err := decodeValue(e)
			if err != nil {
				return nil, errors.Wrapf(err, "index %d", i)
			}

			rv[i] = d
		}

		return rv, nil
	default:
		return v, nil
	}
}

func decodeTime(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, errors.Errorf("%s: want string, got %T", tagTime, v)
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, errors.Wrap(err, tagTime)
	}

	return t.UTC(), nil
}

func decodeGeo(v any) (any, error) {
	a, ok := v.([]any)
	if !ok || len(a) != 2 { //nolint:mnd
		return nil, errors.Errorf("%s: want [latitude, longitude]", tagGeo)
	}

	lat, ok1 := a[0].(float64)
	lng, ok2 := a[1].(float64)

	if !ok1 || !ok2 {
		return nil, errors.Errorf("%s: coordinates must be doubles", tagGeo)
	}

	return &latlng.LatLng{Latitude: lat, Longitude: lng}, nil
}

// decodeRef restores a reference by name only. The target store binds it to its own client.
func decodeRef(v any) (any, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, errors.Errorf("%s: want document name", tagRef)
	}

	return &firestore.DocumentRef{Path: s, ID: path.Base(s)}, nil
}
