package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is a failed check of one option.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors lists every failed option of a struct.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}

	return strings.Join(msgs, "; ")
}

// TranslateErrors converts validator.ValidationErrors to ValidationErrors with messages
// phrased for the command line. Other errors are returned unchanged.
func TranslateErrors(err error) error {
	if err == nil {
		return nil
	}

	fieldErrors, ok := err.(validator.ValidationErrors) //nolint:errorlint
	if !ok {
		return err
	}

	errs := make(ValidationErrors, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		errs = append(errs, ValidationError{Field: fe.Field(), Message: message(fe)})
	}

	return errs
}

//nolint:gochecknoglobals
var fixedMessages = map[string]string{
	"required":      "is required",
	"bytesize":      "must be a valid byte size (e.g., '512KB', '10MiB')",
	"hostname_port": "must be a host:port address",
	"collpath":      "must be a collection path (e.g. 'users' or 'users/u1/orders')",
}

func message(fe validator.FieldError) string {
	if msg, ok := fixedMessages[fe.Tag()]; ok {
		return msg
	}

	switch fe.Tag() {
	case "gte", "min", "bytesizemin":
		return "must be at least " + fe.Param()
	case "lte", "max", "bytesizemax":
		return "must be at most " + fe.Param()
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
