// Package utils provides shared helpers for the resourcebase API: the error
// taxonomy, response builders, request validation and password hashing.
package utils

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Common error types for reuse.
var (
	ErrBadRequest          = NewError(fiber.StatusBadRequest, "Invalid request")
	ErrUnauthorized        = NewError(fiber.StatusUnauthorized, "Unauthorized")
	ErrForbidden           = NewError(fiber.StatusForbidden, "Forbidden")
	ErrNotFound            = NewError(fiber.StatusNotFound, "Resource not found")
	ErrConflict            = NewError(fiber.StatusConflict, "Conflict")
	ErrInternalServerError = NewError(fiber.StatusInternalServerError, "Internal server error")
)

// CustomError represents a structured error for the web app.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewError creates a new Error with a status code, message, and optional details.
func NewError(code int, message string, details ...string) *CustomError {
	e := &CustomError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

// Error implements the error interface.
func (e *CustomError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// WithCause returns a copy of e carrying err as its details.
func (e *CustomError) WithCause(err error) *CustomError {
	cp := *e
	if err != nil {
		cp.Details = err.Error()
	}
	return &cp
}

// WrapError wraps an existing error with a custom status and message.
func WrapError(err error, code int, message string) *CustomError {
	if err == nil {
		return NewError(code, message)
	}
	return NewError(code, message, err.Error())
}

// As reports whether err is (or wraps) a *CustomError and stores it in target.
func As(err error, target **CustomError) bool {
	if err == nil {
		return false
	}
	return errors.As(err, target)
}

// IsCode reports whether err is a *CustomError with the given status code.
func IsCode(err error, code int) bool {
	var ce *CustomError
	return As(err, &ce) && ce.Code == code
}

// HandleError sends a standardized error response. Details of 5xx errors are
// only exposed when expose is true.
func HandleError(c *fiber.Ctx, err error, expose bool) error {
	var appErr *CustomError

	if As(err, &appErr) {
		details := appErr.Details
		if appErr.Code >= 500 && !expose {
			details = ""
		}
		return c.Status(appErr.Code).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": details,
			},
		})
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    fe.Code,
				"message": fe.Message,
			},
		})
	}

	body := fiber.Map{
		"code":    fiber.StatusInternalServerError,
		"message": "Something went wrong",
	}
	if expose {
		body["details"] = err.Error()
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": body})
}

// ErrorHandler adapts HandleError to fiber's error handler hook.
func ErrorHandler(expose bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return HandleError(c, err, expose)
	}
}
