// Package errors provides error wrapping utilities for context-aware error messages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Wrap wraps an error with additional context information.
// If err is nil, it returns nil without wrapping.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf is Wrap with a formatted context.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return stderrors.New(text)
}
