package orchestrator

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies why a file produced no batch.
type ErrorKind string

const (
	// UnknownLanguage: no registered language matches the request.
	UnknownLanguage ErrorKind = "UnknownLanguage"
	// GrammarFault: the grammar itself misbehaved (no tree, panic, corrupt
	// library).
	GrammarFault ErrorKind = "GrammarFault"
	// ExtractorFault: the symbol extractor returned an error or panicked.
	ExtractorFault ErrorKind = "ExtractorFault"
	// Timeout: parse and extract did not finish within the per-file budget.
	Timeout ErrorKind = "Timeout"
	// Cancelled: the scan was cancelled before the file started.
	Cancelled ErrorKind = "Cancelled"
)

// ExtractionError is the only error type returned by Extract.
// A file that merely has syntax errors is not a failure; it yields a batch
// with HasParseErrors set.
type ExtractionError struct {
	Kind           ErrorKind
	FileID         string
	Language       string
	GrammarVersion string
	// Hint is a remediation note drawn from the capability table, if any.
	Hint  string
	Cause error
}

func (e *ExtractionError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.FileID)
	if e.Language != "" {
		msg += " [" + e.Language
		if e.GrammarVersion != "" {
			msg += "@" + e.GrammarVersion
		}
		msg += "]"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// MarshalJSON renders the error in the batch JSON style, with the cause
// flattened to its message.
func (e *ExtractionError) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind           ErrorKind `json:"kind"`
		FileID         string    `json:"fileId"`
		Language       string    `json:"language,omitempty"`
		GrammarVersion string    `json:"grammarVersion,omitempty"`
		Hint           string    `json:"hint,omitempty"`
		Cause          string    `json:"cause,omitempty"`
	}{
		Kind:           e.Kind,
		FileID:         e.FileID,
		Language:       e.Language,
		GrammarVersion: e.GrammarVersion,
		Hint:           e.Hint,
	}
	if e.Cause != nil {
		out.Cause = e.Cause.Error()
	}
	return json.Marshal(out)
}

// KindOf returns the ErrorKind of err, or "" when err is not an
// ExtractionError.
func KindOf(err error) ErrorKind {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// panicError carries a recovered panic value.
type panicError struct {
	value any
}

func (p panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }
