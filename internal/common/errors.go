package common

import (
	"errors"
	"fmt"

	"github.com/awhitfield/invoice-cataloger/constants"
)

// ErrorKind is a classified reason for a stage failure. Kinds are stable
// strings: they are persisted by the failure tracker and shown to operators.
type ErrorKind string

const (
	// Extraction failures.
	KindUnreadable      ErrorKind = "unreadable"
	KindNoText          ErrorKind = "no_text"
	KindUnsupportedKind ErrorKind = "unsupported_kind"

	// Structuring failures. Timeout and service_unavailable are transient;
	// invalid_json and missing_field are deterministic on the same input.
	KindTimeout            ErrorKind = "timeout"
	KindServiceUnavailable ErrorKind = "service_unavailable"
	KindInvalidJSON        ErrorKind = "invalid_json"
	KindMissingField       ErrorKind = "missing_field"

	// Cache failures.
	KindWriteConflict ErrorKind = "write_conflict"
)

// StageError wraps an underlying error with the pipeline stage it occurred in
// and a classified kind, so operators can tell "bad file" from "service
// unavailable" without reopening logs.
type StageError struct {
	Stage constants.Stage
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s/%s: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s/%s", e.Stage, e.Kind)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func NewStageError(stage constants.Stage, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// ClassifyError returns the stage and kind of err if it carries a StageError,
// or reasonable defaults otherwise.
func ClassifyError(err error) (constants.Stage, ErrorKind) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, se.Kind
	}
	return constants.StageExtraction, KindUnreadable
}

// IsTransient reports whether err is worth retrying with the same input.
func IsTransient(err error) bool {
	var se *StageError
	if !errors.As(err, &se) {
		return false
	}
	return se.Kind == KindTimeout || se.Kind == KindServiceUnavailable
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
