package api

import (
	stderrors "errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/docrefine/internal/errors"
)

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				c.Status(fiber.StatusInternalServerError)
			}
		}
		s.logger.Debug("Request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
		)
		return nil
	}
}

// errorHandler maps application error codes to HTTP statuses
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if stderrors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}

	code := apperrors.GetCode(err)
	status := statusFor(code)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
	}

	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Code: code})
}

func statusFor(code string) int {
	switch code {
	case apperrors.ErrBadRequest.Code, apperrors.ErrConfigInvalid.Code:
		return fiber.StatusBadRequest
	case apperrors.ErrPathRejected.Code:
		return fiber.StatusForbidden
	case apperrors.ErrNotFound.Code:
		return fiber.StatusNotFound
	case apperrors.ErrOutputExhausted.Code:
		return fiber.StatusConflict
	case apperrors.ErrDocumentUnreadable.Code, apperrors.ErrDocumentUnsupported.Code, apperrors.ErrImageUnreadable.Code:
		return fiber.StatusUnprocessableEntity
	case apperrors.ErrServiceUnavailable.Code:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
