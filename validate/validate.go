// Package validate checks option structs with go-playground/validator and reports
// failures by option name.
package validate

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

//nolint:gochecknoglobals
var customValidators = map[string]validator.Func{
	"bytesize":    validateByteSize,
	"bytesizemin": validateByteSizeMin,
	"bytesizemax": validateByteSizeMax,
	"collpath":    validateCollectionPath,
}

// Validator returns the shared validator with the custom tags registered.
//
//nolint:gochecknoglobals
var Validator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	for tag, fn := range customValidators {
		err := v.RegisterValidation(tag, fn)
		if err != nil {
			panic("register validation " + tag + ": " + err.Error())
		}
	}

	v.RegisterTagNameFunc(optionName)

	return v
})

// optionName names a field by its mapstructure tag, which matches the flag name.
func optionName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("mapstructure"), ",")
	if name == "" || name == "-" {
		return fld.Name
	}

	return name
}

// Struct validates s and translates the failures.
func Struct(s any) error {
	return TranslateErrors(Validator().Struct(s))
}
