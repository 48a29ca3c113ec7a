// Package errors provides structured error types for deployctl.
package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an error so failures can be handled uniformly
// across steps and command handlers.
type Kind string

const (
	// KindIo indicates a local filesystem or I/O failure.
	KindIo Kind = "IO_ERROR"

	// KindCommandExecution indicates an external tool exited non-zero
	// or produced unparsable output.
	KindCommandExecution Kind = "COMMAND_EXECUTION"

	// KindValidation indicates bad input configuration.
	KindValidation Kind = "VALIDATION_ERROR"

	// KindConfiguration indicates an internal inconsistency, such as a
	// missing required field for the active provider.
	KindConfiguration Kind = "CONFIGURATION_ERROR"

	// KindTimeout indicates a bounded wait expired.
	KindTimeout Kind = "TIMEOUT"

	// KindWrongState indicates a command handler was invoked against an
	// environment that is not in the expected starting state.
	KindWrongState Kind = "WRONG_STATE"

	// KindNotFound indicates the requested environment does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindCorruptState indicates a state file could not be decoded or
	// carried an unknown state tag.
	KindCorruptState Kind = "CORRUPT_STATE"

	// KindConflict indicates another process holds the environment lock.
	KindConflict Kind = "CONFLICT"
)

// Error is the base error type for deployctl.
type Error struct {
	Kind    Kind
	Message string
	Cause   error

	// Step names the step that produced this error, when it originated
	// inside a command's step sequence.
	Step string

	// Troubleshooting is a longer, user-facing explanation surfaced on
	// request or in the final CLI report. The short Message stays
	// log-friendly.
	Troubleshooting string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s]", e.Kind)
	if e.Step != "" {
		msg += fmt.Sprintf(" [step=%s]", e.Step)
	}
	msg += " " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a new error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a new error wrapping an existing error.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithStep attaches a step identifier to an error.
func (e *Error) WithStep(step string) *Error {
	e.Step = step
	return e
}

// WithTroubleshooting attaches the longer troubleshooting message.
func (e *Error) WithTroubleshooting(msg string) *Error {
	e.Troubleshooting = msg
	return e
}

// KindOf returns the kind of an error, or KindIo when the error does not
// carry a classification. External tools are wrapped at their call sites,
// so an unclassified error reaching a step boundary is a local failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindIo
}

// StepOf returns the step identifier attached to an error, if any.
func StepOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Step
	}
	return ""
}

// TroubleshootingOf returns the troubleshooting message attached to an
// error, if any.
func TroubleshootingOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Troubleshooting
	}
	return ""
}

// IsKind reports whether the error carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsNotFound reports whether the error indicates a missing environment.
func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }

// IsWrongState reports whether the error indicates a lifecycle mismatch.
func IsWrongState(err error) bool { return IsKind(err, KindWrongState) }

// IsTimeout reports whether the error indicates an expired wait.
func IsTimeout(err error) bool { return IsKind(err, KindTimeout) }

// IsCorruptState reports whether the error indicates an undecodable
// state file.
func IsCorruptState(err error) bool { return IsKind(err, KindCorruptState) }
