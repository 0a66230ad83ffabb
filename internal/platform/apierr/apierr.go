package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the transport layer can pick a status code
// and the retrieval path can decide whether a fallback applies.
type Kind string

const (
	KindBadInput Kind = "bad_input"
	KindProvider Kind = "provider"
	KindStore    Kind = "store"
)

type Error struct {
	Kind Kind
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		if e.Code != "" {
			return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
		}
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

func BadInput(code string, err error) *Error { return New(KindBadInput, code, err) }
func Provider(code string, err error) *Error { return New(KindProvider, code, err) }
func Store(code string, err error) *Error    { return New(KindStore, code, err) }

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}
