package utils

import (
	fiber "github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/database"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// MakeHTTPHandleFunc binds a handler that needs the store to a fiber handler
func MakeHTTPHandleFunc(handler func(c *fiber.Ctx, store database.Storage) error, store database.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := handler(c, store); err != nil {
			return response.FromError(c, err)
		}
		return nil
	}
}
