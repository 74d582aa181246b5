package service

import (
	"fmt"
)

// ErrorKind classifies a failed service call
type ErrorKind int

// Constants for ErrorKind
const (
	// ErrUnsupported means the resource link offers no endpoint for the call
	ErrUnsupported ErrorKind = iota
	// ErrInvalidValue means an outcome value could not be converted to a
	// type supported by the consumer
	ErrInvalidValue
	// ErrTransport means the request could not be sent or the response not
	// be read
	ErrTransport
	// ErrStatus means the consumer answered with a non 2xx status
	ErrStatus
	// ErrParse means the response body is not valid XML
	ErrParse
	// ErrFailure means the consumer reported that the request failed
	ErrFailure
)

func (k ErrorKind) String() string {
	switch k {
	case ErrUnsupported:
		return "unsupported"
	case ErrInvalidValue:
		return "invalid value"
	case ErrTransport:
		return "transport"
	case ErrStatus:
		return "status"
	case ErrParse:
		return "parse"
	case ErrFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Error is returned by all failed service calls
type Error struct {
	Kind      ErrorKind
	Operation string
	// StatusCode is set for ErrStatus
	StatusCode int
	// Description holds the description reported by the consumer for
	// ErrFailure
	Description string
	// Response is the map view of the consumer's response body for
	// ErrFailure
	Response map[string]any
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s error", e.Operation, e.Kind)
	switch {
	case e.StatusCode != 0:
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	case e.Description != "":
		msg += ": " + e.Description
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches a target *Error by kind, so errors.Is(err, &Error{Kind: ErrStatus})
// works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Operation == "" || t.Operation == e.Operation)
}
