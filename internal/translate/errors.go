package translate

import (
	"errors"
	"fmt"
)

// Common translation errors
var (
	// ErrEmptyText is returned when there is nothing to translate.
	ErrEmptyText = errors.New("no text to translate")

	// ErrUnsupportedLanguage is returned for target identifiers outside the supported set.
	ErrUnsupportedLanguage = errors.New("unsupported target language")

	// ErrTranslationFailed is returned when the model fails to produce a translation.
	ErrTranslationFailed = errors.New("translation failed")

	// ErrModelUnavailable is returned when the translation model cannot be loaded or reached.
	ErrModelUnavailable = errors.New("translation model unavailable")

	// ErrUnknownBackend is returned for unsupported backend names.
	ErrUnknownBackend = errors.New("unknown translator backend")
)

// TranslationError wraps errors with the operation and backend that failed.
type TranslationError struct {
	// Op is the operation that failed (e.g., "Translate", "Ready").
	Op string

	// Backend is the backend name, if known.
	Backend string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *TranslationError) Error() string {
	prefix := "translate: " + e.Op
	if e.Backend != "" {
		prefix += " (" + e.Backend + ")"
	}
	if e.Details != "" {
		return fmt.Sprintf("%s failed: %s: %v", prefix, e.Details, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", prefix, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *TranslationError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *TranslationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapTranslationError wraps an error as a TranslationError if it isn't already one.
func WrapTranslationError(op, backend string, err error, details string) error {
	if err == nil {
		return nil
	}

	var trErr *TranslationError
	if errors.As(err, &trErr) {
		return err
	}

	return &TranslationError{Op: op, Backend: backend, Err: err, Details: details}
}
