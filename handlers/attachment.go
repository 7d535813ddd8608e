package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/services"
	"github.com/sahilchouksey/univast-api/utils/response"
)

// AttachmentHandler serves stored attachments by reference
type AttachmentHandler struct {
	attachments *services.AttachmentService
}

// NewAttachmentHandler creates a new attachment handler
func NewAttachmentHandler(attachments *services.AttachmentService) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments}
}

// GetAttachment handles GET /api/v1/attachments/*. Logos and profile images are
// readable by any authenticated account; application documents only by admins.
func (h *AttachmentHandler) GetAttachment(c *fiber.Ctx) error {
	ref := c.Params("*")

	category := services.AttachmentCategory(strings.SplitN(ref, "/", 2)[0])
	if !category.IsImage() && !IsAdmin(c) {
		return response.Forbidden(c, "Documents are available through their application")
	}

	object, err := h.attachments.Retrieve(c.UserContext(), ref)
	if err != nil {
		return response.FromError(c, err)
	}

	c.Set(fiber.HeaderContentType, object.ContentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.Send(object.Data)
}
