// Package errors defines the relay's error taxonomy.
//
// Every failure the relay can observe falls into one of three kinds. Config
// errors are fatal and abort startup before any socket is opened. Format
// errors are scoped to a single record. Transport errors are scoped to a
// single record or connection. Only config errors may end the process.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an error by its blast radius.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindConfig
	KindFormat
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindFormat:
		return "format"
	case KindTransport:
		return "transport"
	}
	return "unknown"
}

// Error carries a Kind alongside the failing operation and its cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an Error of the given kind. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Formatf returns a KindFormat error with a formatted cause.
func Formatf(op, format string, args ...any) error {
	return &Error{Kind: KindFormat, Op: op, Err: fmt.Errorf(format, args...)}
}

// Configf returns a KindConfig error with a formatted cause.
func Configf(op, format string, args ...any) error {
	return &Error{Kind: KindConfig, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// New, Is and As mirror the standard library so callers need a single import.
func New(text string) error { return stderrors.New(text) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }
