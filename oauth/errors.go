package oauth

import (
	"github.com/pkg/errors"
)

// Sentinel errors returned (wrapped) by Server.Verify
var (
	ErrMissingParameter           = errors.New("missing oauth parameter")
	ErrUnsupportedSignatureMethod = errors.New("unsupported signature method")
	ErrUnknownConsumer            = errors.New("unknown consumer")
	ErrExpiredTimestamp           = errors.New("expired timestamp")
	ErrReplayedNonce              = errors.New("replayed nonce")
	ErrInvalidSignature           = errors.New("invalid signature")
)

// ProtocolError signals a malformed or incomplete OAuth request
type ProtocolError struct {
	Param string
	err   error
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Param == "" {
		return e.err.Error()
	}
	return e.err.Error() + ": " + e.Param
}

// Unwrap returns the underlying sentinel error
func (e *ProtocolError) Unwrap() error {
	return e.err
}

// SecurityError signals a well-formed request that failed a security check
type SecurityError struct {
	err error
}

// Error implements the error interface
func (e *SecurityError) Error() string {
	return e.err.Error()
}

// Unwrap returns the underlying sentinel error
func (e *SecurityError) Unwrap() error {
	return e.err
}

func protocolError(err error, param string) error {
	return &ProtocolError{
		Param: param,
		err:   err,
	}
}

func securityError(err error) error {
	return &SecurityError{err: err}
}
