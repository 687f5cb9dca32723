package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/signature-gateway/internal/domain"
	"go.uber.org/zap"
)

// APIError is an error with a fixed HTTP status and {error, message} body.
type APIError struct {
	Status  int    `json:"-"`
	Err     string `json:"error"`
	Message string `json:"message,omitempty"`
	cause   error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err, e.Message)
	}
	return e.Err
}

func (e *APIError) StatusCode() int { return e.Status }

func (e *APIError) Unwrap() error { return e.cause }

// wrapAPIError renders as an APIError while errors.Is still sees cause.
func wrapAPIError(cause error, status int, err string, message string) *APIError {
	apiErr := NewAPIError(status, err, message)
	apiErr.cause = cause
	return apiErr
}

func NewAPIError(status int, err string, message string) *APIError {
	return &APIError{Status: status, Err: err, Message: message}
}

// ErrorHandler renders every error returned by a handler. Unknown errors are
// logged and replaced by a generic 500 so internals never reach the caller.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		apiErr := toAPIError(err)

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", apiErr.Status),
			zap.Error(err),
		}
		if apiErr.Status >= fiber.StatusInternalServerError {
			logger.Error("request error", fields...)
		} else {
			logger.Debug("request error", fields...)
		}

		return c.Status(apiErr.Status).JSON(apiErr)
	}
}

func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return NewAPIError(fiberErr.Code, fiberErr.Message, "")
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return NewAPIError(fiber.StatusBadRequest, detail(err, domain.ErrValidation), "")
	case errors.Is(err, domain.ErrNotFound):
		return NewAPIError(fiber.StatusNotFound, detail(err, domain.ErrNotFound), "")
	case errors.Is(err, domain.ErrConfiguration):
		return NewAPIError(fiber.StatusInternalServerError, detail(err, domain.ErrConfiguration), "")
	default:
		return NewAPIError(fiber.StatusInternalServerError, "Internal server error", "An unexpected error occurred.")
	}
}

// detail strips the sentinel prefix added by fmt.Errorf("%w: ...").
func detail(err error, sentinel error) string {
	msg := err.Error()
	if trimmed := strings.TrimPrefix(msg, sentinel.Error()+": "); trimmed != "" {
		return trimmed
	}
	return msg
}

// NotFoundHandler answers routes nothing else matched.
func NotFoundHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return NewAPIError(fiber.StatusNotFound, "Not Found", fmt.Sprintf("Route %s not found", c.OriginalURL()))
	}
}
