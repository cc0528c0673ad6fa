// Package apperrors defines the error kinds surfaced by the load-and-query
// pipeline. Every failure leaving the pipeline matches exactly one kind via
// errors.Is.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidSource = errors.New("invalid source")
	ErrFetch         = errors.New("fetch failed")
	ErrConnection    = errors.New("engine connection failed")
	ErrIngestion     = errors.New("ingestion failed")
	ErrQuery         = errors.New("query failed")
	ErrConversion    = errors.New("column conversion failed")
)

// Error attaches a kind and the failing operation to an underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Op == "":
		return e.Err.Error()
	default:
		return e.Op + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func New(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Newf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func InvalidSource(op, format string, args ...any) error {
	return Newf(ErrInvalidSource, op, format, args...)
}

func Fetch(op string, err error) error {
	return New(ErrFetch, op, err)
}

func Connection(op string, err error) error {
	return New(ErrConnection, op, err)
}

func Ingestion(op string, err error) error {
	return New(ErrIngestion, op, err)
}

func Query(op string, err error) error {
	return New(ErrQuery, op, err)
}

func Conversion(op string, err error) error {
	return New(ErrConversion, op, err)
}

// KindOf returns a short stable label for err's kind.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSource):
		return "invalid_source"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrIngestion):
		return "ingestion"
	case errors.Is(err, ErrQuery):
		return "query"
	case errors.Is(err, ErrConversion):
		return "conversion"
	default:
		return "unknown"
	}
}
