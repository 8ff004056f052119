package api

import (
	"errors"
	"net/http"
)

// Kind classifies the errors a client can see.
type Kind int

const (
	KindMissingFile Kind = iota + 1
	KindEngineFailure
)

// Status maps the kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindMissingFile:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// String is also the result label on transcriptions_total.
func (k Kind) String() string {
	switch k {
	case KindMissingFile:
		return "missing_file"
	case KindEngineFailure:
		return "engine_error"
	default:
		return "unknown"
	}
}

// Error is returned by handler cores and rendered at the HTTP boundary.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

var errNoFile = errors.New("No audio file provided")

func missingFile() error { return &Error{Kind: KindMissingFile, Err: errNoFile} }

func engineFailure(err error) error { return &Error{Kind: KindEngineFailure, Err: err} }

// kindOf returns the kind carried by err. Untyped errors count as engine
// failures.
func kindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindEngineFailure
}

// WriteAPIError renders err as {"error": msg} with the status of its kind.
func WriteAPIError(w http.ResponseWriter, err error) {
	WriteError(w, kindOf(err).Status(), err.Error())
}
