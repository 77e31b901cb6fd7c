// handlers/respond.go
package handlers

import (
	"errors"
	"io"
	"log"
	"strconv"
	"time"

	"mealmood-community/services"

	"github.com/gofiber/fiber/v2"
)

const maxImageBytes = 10 << 20

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrInvalidState):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrTransientStorage):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Printf("❌ [API] %s %s: %v", c.Method(), c.Path(), err)
	}
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "internal server error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// pageParams reads ?page= and ?limit= (page_size is accepted too).
func pageParams(c *fiber.Ctx) (int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	size, _ := strconv.Atoi(c.Query("limit", c.Query("page_size", "10")))
	return page, size
}

// formTime parses an RFC3339 form value; empty returns nil.
func formTime(c *fiber.Ctx, field string) (*time.Time, error) {
	v := c.FormValue(field)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, &services.ValidationError{Field: field, Reason: "must be RFC3339"}
	}
	return &t, nil
}

// formImage reads an optional uploaded file. A missing file is not an error.
func formImage(c *fiber.Ctx, field string) (*services.ImageUpload, error) {
	fh, err := c.FormFile(field)
	if err != nil || fh.Size == 0 {
		return nil, nil
	}
	if fh.Size > maxImageBytes {
		return nil, &services.ValidationError{Field: field, Reason: "image is larger than 10MB"}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, &services.ValidationError{Field: field, Reason: "could not read upload"}
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
	if err != nil {
		return nil, &services.ValidationError{Field: field, Reason: "could not read upload"}
	}
	return &services.ImageUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
