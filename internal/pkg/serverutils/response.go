package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func ErrorResponse(code int, message string) Response {
	return Response{Code: code, Message: message}
}

// ErrorHandler is installed as the fiber app ErrorHandler so that handlers
// can simply return errors.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	var fiberErr *fiber.Error
	var validationErr *ValidationError
	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message
	case errors.As(err, &validationErr):
		code = fiber.StatusBadRequest
	}

	return ctx.Status(code).JSON(ErrorResponse(code, message))
}
