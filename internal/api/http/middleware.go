package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/i474232898/contact-manager/internal/contacts"
)

// RequestID tags every request with a UUID, reusing X-Request-ID when sent.
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  uuid.NewString,
		ContextKey: "requestid",
	})
}

// RequestLogger logs one line per request after the handler chain finished.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		chainErr := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if chainErr != nil {
			status = fiber.StatusInternalServerError
			if errors.As(chainErr, &fe) {
				status = fe.Code
			}
		}

		fields := []zap.Field{
			zap.String("request_id", requestIDFrom(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request", append(fields, zap.Error(chainErr))...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
		return chainErr
	}
}

func requestIDFrom(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}

// ErrorHandler renders errors that escaped a handler as
// {"error": true, "message": ...}. Unexpected errors are logged and hidden.
// A 413 on the import page renders the form with the size error instead.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
			// Oversized uploads are cut off before routing; answer them with the import form.
			if code == fiber.StatusRequestEntityTooLarge && strings.HasPrefix(c.Path(), importPath) {
				return render(c, code, "import", importPage{
					pageData:    pageData{Title: importTitle},
					UploadError: contacts.ErrFileTooLarge.Error(),
				})
			}
		} else {
			logger.Error("unhandled error",
				zap.String("request_id", requestIDFrom(c)),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		return c.Status(code).JSON(fiber.Map{
			"error":   true,
			"message": message,
		})
	}
}
