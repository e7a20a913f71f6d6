package validate

import (
	"reflect"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/percona/percona-doctree-migrate/store"
)

// fieldString returns the string held by a string or *string field.
func fieldString(field reflect.Value) string {
	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return ""
		}

		field = field.Elem()
	}

	return field.String()
}

// unsetByteSize reports whether s leaves the option at its default.
func unsetByteSize(s string) bool {
	return s == "" || s == "0"
}

// validateByteSize checks that the field parses as a byte size such as "10MiB".
func validateByteSize(fl validator.FieldLevel) bool {
	s := fieldString(fl.Field())
	if unsetByteSize(s) {
		return true
	}

	_, err := humanize.ParseBytes(s)

	return err == nil
}

// compareByteSize parses the field and the tag parameter and applies ok to both.
// Tag usage: bytesizemin=1KB, bytesizemax=64MiB
func compareByteSize(ok func(v, limit uint64) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fieldString(fl.Field())
		if unsetByteSize(s) {
			return true
		}

		v, err := humanize.ParseBytes(s)
		if err != nil {
			return false
		}

		limit, err := humanize.ParseBytes(fl.Param())
		if err != nil {
			return false
		}

		return ok(v, limit)
	}
}

//nolint:gochecknoglobals
var (
	validateByteSizeMin = compareByteSize(func(v, limit uint64) bool { return v >= limit })
	validateByteSizeMax = compareByteSize(func(v, limit uint64) bool { return v <= limit })
)

// validateCollectionPath checks a collection path such as "users" or "users/u1/orders".
func validateCollectionPath(fl validator.FieldLevel) bool {
	s := fieldString(fl.Field())
	if s == "" {
		return true // presence is checked by "required"
	}

	return store.ValidateCollectionPath(s) == nil
}
