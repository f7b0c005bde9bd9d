package api

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"tourmail/provider"
	"tourmail/utils"
)

// AttachmentHandler serves attachment content: downloads, and the inline
// image previews that resolved cid references point at.
type AttachmentHandler struct {
	mailbox provider.Mailbox
}

// NewAttachmentHandler creates an attachment handler.
func NewAttachmentHandler(mailbox provider.Mailbox) *AttachmentHandler {
	return &AttachmentHandler{mailbox: mailbox}
}

// HandleAttachment fetches one attachment and serves it. With ?preview=1 the
// content is served inline so <img> tags can load it; otherwise it is a
// download.
func (h *AttachmentHandler) HandleAttachment(c *fiber.Ctx) error {
	messageID := c.Params("message_id")
	attachmentID := c.Params("attachment_id")
	preview := c.QueryBool("preview")

	att, err := h.mailbox.FetchAttachment(c.Context(), messageID, attachmentID, preview)
	if err != nil {
		return err
	}

	if preview && !strings.HasPrefix(att.MimeType, "image/") {
		return utils.BadRequestError("only images can be previewed inline", nil)
	}

	contentType := att.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Set("Content-Type", contentType)

	if preview {
		c.Set("Content-Disposition", "inline")
	} else {
		c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
	}

	return c.Send(att.Content)
}
