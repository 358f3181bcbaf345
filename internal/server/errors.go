package server

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"prodintel/internal/core/fetch"
)

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(APIError{Success: false, Error: msg})
}

// errorStatus maps a pipeline error onto an HTTP status code. Typed errors
// carry their own verdict; everything else is categorized by message.
func errorStatus(err error) int {
	var httpErr *fetch.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case fiber.StatusNotFound:
			return fiber.StatusNotFound
		case fiber.StatusTooManyRequests:
			return fiber.StatusTooManyRequests
		case fiber.StatusForbidden:
			return fiber.StatusForbidden
		}
		return fiber.StatusBadGateway
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fiber.StatusRequestTimeout
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "disallowed by robots.txt"):
		return fiber.StatusForbidden
	case strings.Contains(msg, "invalid URL") || strings.Contains(msg, "malformed"):
		return fiber.StatusBadRequest
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return fiber.StatusRequestTimeout
	case strings.Contains(msg, "rate limit"):
		return fiber.StatusTooManyRequests
	case strings.Contains(msg, "no usable content"):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}
