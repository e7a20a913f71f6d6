// Package errors wraps the standard errors package with message-prefix wrapping.
package errors

import (
	"context"
	"errors"
	"fmt"
)

type wrappedError struct {
	cause error
	msg   string
}

func (w *wrappedError) Error() string {
	return w.msg + ": " + w.cause.Error()
}

func (w *wrappedError) Unwrap() error {
	return w.cause
}

// New calls [errors.New].
//
//go:inline
func New(text string) error {
	return errors.New(text) //nolint:err113
}

// Errorf calls [fmt.Errorf].
//
//go:inline
func Errorf(format string, vals ...any) error {
	return fmt.Errorf(format, vals...) //nolint:err113
}

// Wrap prefixes the cause with text. A nil cause stays nil.
func Wrap(cause error, text string) error {
	if cause == nil {
		return nil
	}

	if text == "" {
		return cause
	}

	return &wrappedError{cause: cause, msg: text}
}

// Wrapf is like [Wrap] with a formatted prefix.
func Wrapf(cause error, format string, vals ...any) error {
	if cause == nil {
		return nil
	}

	msg := fmt.Sprintf(format, vals...)
	if msg == "" {
		return cause
	}

	return &wrappedError{cause: cause, msg: msg}
}

// Unwrap calls [errors.Unwrap].
//
//go:inline
func Unwrap(err error) error {
	return errors.Unwrap(err)
}

// Join calls [errors.Join].
//
//go:inline
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// Is calls [errors.Is].
//
//go:inline
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As calls [errors.As].
//
//go:inline
func As(err error, target any) bool {
	return errors.As(err, target)
}

// IsCanceled reports whether err is caused by context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Errs returns the errors joined into err, looking through prefix wrapping.
// An err that holds no joined errors is returned as the only element.
func Errs(err error) []error {
	if err == nil {
		return nil
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		if j, ok := e.(interface{ Unwrap() []error }); ok { //nolint:errorlint
			return j.Unwrap()
		}
	}

	return []error{err}
}
