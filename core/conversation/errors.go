package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedLanguage marks a language choice outside the catalogue.
	// It is recovered by re-prompting and never escapes Handle.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrMalformedEvent marks an inbound event without a sender.
	ErrMalformedEvent = errors.New("malformed inbound event")
)

// TranslationServiceError wraps any failure of the translation call,
// timeouts included.
type TranslationServiceError struct {
	Target string
	Err    error
}

func (e *TranslationServiceError) Error() string {
	return fmt.Sprintf("translation to %q failed: %v", e.Target, e.Err)
}

func (e *TranslationServiceError) Unwrap() error { return e.Err }

// StoreError wraps a session store failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
