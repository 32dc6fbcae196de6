package service

import (
	"errors"
	"strings"
)

// Kind classifies an error for callers that map errors to responses.
type Kind int

const (
	// KindInternal is an unexpected failure; its cause is not shown to clients.
	KindInternal Kind = iota
	// KindInput is a problem with the request or the uploaded data.
	KindInput
	// KindCapability means the similarity backend is not available.
	KindCapability
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindCapability:
		return "capability"
	default:
		return "internal"
	}
}

// Sentinel errors for the service layer.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrCapabilityUnavailable indicates the scorer backend cannot serve requests.
	ErrCapabilityUnavailable = errors.New("similarity backend unavailable")

	// ErrEmptyUpload indicates an archive with no content.
	ErrEmptyUpload = errors.New("uploaded archive is empty")

	// ErrMissingText indicates a two-text comparison without one of the texts.
	ErrMissingText = errors.New("text_a and text_b are required")
)

// Error carries a Kind and a client-safe message alongside the cause.
type Error struct {
	Kind Kind
	// Msg is safe to show to clients.
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	cause := e.Err.Error()
	if strings.HasPrefix(cause, e.Msg) {
		return cause
	}
	return e.Msg + ": " + cause
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match capability errors against ErrCapabilityUnavailable.
func (e *Error) Is(target error) bool {
	return e.Kind == KindCapability && target == ErrCapabilityUnavailable
}

// Public returns the message to show clients. Internal errors are opaque.
func (e *Error) Public() string {
	if e.Kind == KindInternal {
		return "internal error"
	}
	return e.Msg
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func inputError(msg string, err error) *Error {
	return &Error{Kind: KindInput, Msg: msg, Err: err}
}

func capabilityError(err error) *Error {
	return &Error{Kind: KindCapability, Msg: ErrCapabilityUnavailable.Error(), Err: err}
}

func internalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}
