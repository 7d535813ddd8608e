package handlers

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/services"
)

// MaxUploadBytes bounds how much of a multipart file is read into memory
const MaxUploadBytes = 20 << 20

// ErrUploadTooLarge is returned instead of a truncated payload
var ErrUploadTooLarge = errors.New("file exceeds the 20 MB upload limit")

// ParseID reads a positive numeric route parameter
func ParseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(id), nil
}

// Pagination reads page and limit query parameters with defaults
func Pagination(c *fiber.Ctx) (int, int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// ReadUpload reads the multipart file in field into an attachment payload
func ReadUpload(c *fiber.Ctx, field string) (services.AttachmentPayload, error) {
	file, err := c.FormFile(field)
	if err != nil {
		return services.AttachmentPayload{}, fmt.Errorf("%s is required", field)
	}
	if file.Size > MaxUploadBytes {
		return services.AttachmentPayload{}, ErrUploadTooLarge
	}

	f, err := file.Open()
	if err != nil {
		return services.AttachmentPayload{}, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return services.AttachmentPayload{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return services.AttachmentPayload{}, ErrUploadTooLarge
	}

	return services.AttachmentPayload{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
