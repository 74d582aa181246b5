package ltiprovider

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/go-lti/ltiprovider/oauth"
)

// ErrorKind classifies launch failures
type ErrorKind int

// Launch failure kinds
const (
	KindProtocol ErrorKind = iota + 1
	KindSecurity
	KindConsumer
	KindValidation
	KindShare
	KindService
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindSecurity:
		return "security"
	case KindConsumer:
		return "consumer"
	case KindValidation:
		return "validation"
	case KindShare:
		return "share"
	case KindService:
		return "service"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the error a launch fails with. Reason is the detailed cause; it
// is only shown to the user in debug mode.
type Error struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil && e.Reason == "" {
		return e.Err.Error()
	}
	return e.Reason
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error of the same kind and, if target
// has one, the same reason
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Reason: fmt.Sprintf(format, args...),
	}
}

// Sentinel errors; compare with errors.Is
var (
	ErrInvalidVersion     = newError(KindValidation, "Invalid or missing lti_version parameter")
	ErrInvalidMessageType = newError(KindValidation, "Invalid or missing lti_message_type parameter")
	ErrMissingLinkID      = newError(KindValidation, "Missing resource link ID")
	ErrMissingReturnURL   = newError(KindValidation, "Missing content_item_return_url parameter")
	ErrMessageUnsupported = newError(KindValidation, "Message type not supported")

	ErrMissingConsumerKey   = newError(KindConsumer, "Missing consumer key")
	ErrUnknownConsumer      = newError(KindConsumer, "Invalid consumer key")
	ErrMissingConsumerGUID  = newError(KindConsumer, "A tool consumer GUID must be included in the launch request")
	ErrConsumerGUIDMismatch = newError(KindConsumer, "Request is from an invalid tool consumer")
	ErrConsumerDisabled     = newError(KindConsumer, "Tool consumer has not been enabled by the tool provider")
	ErrConsumerNotYetActive = newError(KindConsumer, "Tool consumer access is not yet available")
	ErrConsumerExpired      = newError(KindConsumer, "Tool consumer access has expired")

	ErrSharingNotPermitted = newError(
		KindShare, "Your sharing request has been refused because sharing is not being permitted.",
	)
	ErrSelfShareRejected = newError(KindShare, "It is not possible to share your resource link with yourself.")
	ErrShareInitFailed   = newError(KindShare, "An error occurred initialising your share arrangement.")
	ErrNoShareAvailable  = newError(
		KindShare, "You have requested to share a resource link but none is available.",
	)
	ErrSharePendingApproval = newError(KindShare, "Your share request is waiting to be approved.")
	ErrUnexpectedShareState = newError(
		KindShare, "You have not requested to share a resource link but an arrangement is currently in place.",
	)
	ErrShareTargetUnavailable = newError(KindShare, "Unable to load resource link being shared.")
)

// asLaunchError converts err into an *Error; oauth errors keep their kind,
// anything else is internal
func asLaunchError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	var pErr *oauth.ProtocolError
	if errors.As(err, &pErr) {
		return &Error{
			Kind:   KindProtocol,
			Reason: err.Error(),
			Err:    err,
		}
	}
	var sErr *oauth.SecurityError
	if errors.As(err, &sErr) {
		return &Error{
			Kind:   KindSecurity,
			Reason: err.Error(),
			Err:    err,
		}
	}
	return &Error{
		Kind:   KindInternal,
		Reason: err.Error(),
		Err:    err,
	}
}

// handleError is the fiber error handler of the server
func handleError(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fErr *fiber.Error
	if errors.As(err, &fErr) {
		code = fErr.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.WithError(err).WithField("path", ctx.Path()).Error("request failed")
	}
	return ctx.Status(code).JSON(
		fiber.Map{
			"error":             errorCode(code),
			"error_description": err.Error(),
		},
	)
}

func errorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "invalid_request"
	case fiber.StatusUnauthorized:
		return "invalid_client"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "server_error"
	}
}
