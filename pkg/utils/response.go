package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mnuddindev/resourcebase/pkg/logger"
)

// ExposeErrorsKey is the fiber local that allows 5xx details in responses.
const ExposeErrorsKey = "expose_errors"

// Response holds a standardized API response fields.
type Response struct {
	Success bool         `json:"status"`
	Message string       `json:"message,omitempty"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *CustomError `json:"error,omitempty"`
}

// ResponseBuilder builds a response with a fluent interface.
type ResponseBuilder struct {
	Ctx     context.Context
	C       *fiber.Ctx
	Status  int
	Success bool
	Message string
	Data    interface{}
	Err     *CustomError
}

// Success starts a standardized success response.
func Success(c *fiber.Ctx) *ResponseBuilder {
	return &ResponseBuilder{
		Ctx:     c.UserContext(),
		C:       c,
		Status:  fiber.StatusOK,
		Success: true,
	}
}

// Error starts a standardized error response using CustomError.
func Error(c *fiber.Ctx, err *CustomError) *ResponseBuilder {
	return &ResponseBuilder{
		Ctx:     c.UserContext(),
		C:       c,
		Status:  err.Code,
		Success: false,
		Err:     err,
	}
}

// WithStatus overrides the HTTP status of a success response.
func (b *ResponseBuilder) WithStatus(status int) *ResponseBuilder {
	b.Status = status
	return b
}

// WithMessage adds a custom message to the response.
func (b *ResponseBuilder) WithMessage(msg string) *ResponseBuilder {
	b.Message = msg
	return b
}

// WithData adds data to the response.
func (b *ResponseBuilder) WithData(data interface{}) *ResponseBuilder {
	b.Data = data
	return b
}

// Send sends the response and logs it.
func (b *ResponseBuilder) Send() error {
	resp := Response{
		Success: b.Success,
		Message: b.Message,
		Data:    b.Data,
		Error:   b.Err,
	}

	if b.Err != nil && b.Err.Code >= 500 {
		if expose, _ := b.C.Locals(ExposeErrorsKey).(bool); !expose {
			hidden := *b.Err
			hidden.Details = ""
			resp.Error = &hidden
		}
	}

	if log, ok := b.C.Locals("logger").(*logger.Logger); ok {
		meta := map[string]string{
			"status":  fmt.Sprintf("%d", b.Status),
			"path":    b.C.Path(),
			"method":  b.C.Method(),
			"latency": time.Since(b.C.Context().Time()).String(),
		}
		if b.Success {
			log.Debug(b.Ctx).WithMeta(meta).Logs("Response sent")
		} else if b.Status >= 500 {
			meta["details"] = b.Err.Details
			log.Error(b.Ctx).WithMeta(meta).Logs("Error response sent: " + b.Err.Error())
		} else {
			log.Warn(b.Ctx).WithMeta(meta).Logs("Error response sent: " + b.Err.Error())
		}
	}

	return b.C.Status(b.Status).JSON(resp)
}

// SendError is a convenience function to send an error response directly.
func SendError(c *fiber.Ctx, err error) error {
	var appErr *CustomError
	if !As(err, &appErr) {
		appErr = ErrInternalServerError.WithCause(err)
	}
	return Error(c, appErr).Send()
}

// SendSuccess is a convenience function to send a success response directly.
func SendSuccess(c *fiber.Ctx, data interface{}) error {
	return Success(c).WithData(data).Send()
}
