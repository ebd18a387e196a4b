package handlers

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var redactedKeys = []string{"password", "token", "secret"}

// RequestLogger logs one line per request. JSON bodies of POST and PUT
// requests are included with credential-like keys redacted.
func RequestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		method := c.Method()
		path := c.Path()

		var body map[string]any
		if (method == fiber.MethodPost || method == fiber.MethodPut) &&
			strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
			body = redactBody(c.Body())
		}

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.IP()),
		}
		if q := string(c.Request().URI().QueryString()); q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if len(body) > 0 {
			fields = append(fields, zap.Any("body", body))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
			log.Error("HTTP request with errors", fields...)
		} else {
			log.Info("HTTP request", fields...)
		}
		return err
	}
}

// redactBody decodes a JSON object and masks sensitive keys. Non-object
// bodies are dropped.
func redactBody(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	for _, k := range redactedKeys {
		if _, ok := body[k]; ok {
			body[k] = "[REDACTED]"
		}
	}
	return body
}
