package adminapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"github.com/go-lti/ltiprovider/storage/model"
)

// Error is the JSON body of failed admin API requests
type Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	// ConsumerResponse is the consumer's answer to a failed service request
	ConsumerResponse map[string]any `json:"consumer_response,omitempty"`
}

// ErrorInvalidRequest returns an invalid_request Error
func ErrorInvalidRequest(description string) Error {
	return Error{
		Error:            "invalid_request",
		ErrorDescription: description,
	}
}

// ErrorNotFound returns a not_found Error
func ErrorNotFound(description string) Error {
	return Error{
		Error:            "not_found",
		ErrorDescription: description,
	}
}

// ErrorServerError returns a server_error Error
func ErrorServerError(description string) Error {
	return Error{
		Error:            "server_error",
		ErrorDescription: description,
	}
}

// ErrorServiceError returns a service_error Error for failed calls to a
// consumer's extension services
func ErrorServiceError(description string) Error {
	return Error{
		Error:            "service_error",
		ErrorDescription: description,
	}
}

// storageError maps storage errors to a response
func storageError(c *fiber.Ctx, err error, what string) error {
	var notFound model.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorNotFound(what + " not found"))
	}
	var exists model.AlreadyExistsError
	if errors.As(err, &exists) {
		return c.Status(fiber.StatusConflict).JSON(ErrorInvalidRequest(what + " already exists"))
	}
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorServerError(err.Error()))
}
