package trip

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures so CLI commands can map them to exit
// codes without string matching.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindSchemaViolation   Kind = "schema_violation"
	KindSemanticViolation Kind = "semantic_violation"
	KindUnmatchedItem     Kind = "unmatched_item"
	KindExternalFailure   Kind = "external_failure"
)

// Error is a classified pipeline error. Path, when set, points at the
// offending JSON location or file.
type Error struct {
	Kind Kind
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := string(e.Kind) + ": " + e.Msg
	if e.Path != "" {
		s += " (at " + e.Path + ")"
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error with a formatted message.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of err if it is (or wraps) a classified error,
// otherwise the empty string.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
