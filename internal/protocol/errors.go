package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the wire "kind" field.
type Kind string

const (
	KindProtocol    Kind = "protocol"
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindHost        Kind = "host"
	KindTimeout     Kind = "timeout"
	KindUnavailable Kind = "unavailable"
)

var (
	ErrProtocol    = errors.New("protocol: protocol error")
	ErrValidation  = errors.New("protocol: validation error")
	ErrNotFound    = errors.New("protocol: not found")
	ErrHost        = errors.New("protocol: host error")
	ErrTimeout     = errors.New("protocol: timeout")
	ErrUnavailable = errors.New("protocol: unavailable")

	ErrInvalidJSON   = errors.New("protocol: invalid json")
	ErrMissingAction = errors.New("protocol: missing action")
)

// Error is a classified failure whose message is safe to return to the client.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k Kind) sentinel() error {
	switch k {
	case KindProtocol:
		return ErrProtocol
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindTimeout:
		return ErrTimeout
	case KindUnavailable:
		return ErrUnavailable
	default:
		return ErrHost
	}
}

// Errorf builds a classified error. %w verbs are honored for unwrapping.
func Errorf(kind Kind, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return &Error{Kind: kind, Message: err.Error(), Err: errors.Unwrap(err)}
}

func Validationf(format string, args ...any) error {
	return Errorf(KindValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return Errorf(KindNotFound, format, args...)
}

func Hostf(format string, args ...any) error {
	return Errorf(KindHost, format, args...)
}

// KindOf returns the classification of err, defaulting to KindHost.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindHost
}
