package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tourmail/compose"
	"tourmail/models"
	"tourmail/provider"
	"tourmail/storage"
	"tourmail/utils"
)

// ComposeHandler exposes the compose surface lifecycle: open, edit, send,
// discard.
type ComposeHandler struct {
	controller *compose.Controller
	drafts     *storage.DraftStorage
	mailbox    provider.Mailbox
}

// NewComposeHandler creates a compose handler.
func NewComposeHandler(controller *compose.Controller, drafts *storage.DraftStorage, mailbox provider.Mailbox) *ComposeHandler {
	return &ComposeHandler{
		controller: controller,
		drafts:     drafts,
		mailbox:    mailbox,
	}
}

// HandleNewCompose opens a blank compose surface.
func (h *ComposeHandler) HandleNewCompose(c *fiber.Ctx) error {
	surface := h.controller.OpenCompose(OperatorAddress(c))
	return c.JSON(surfaceResponse(surface))
}

// HandleReply opens a reply, reply-all, or forward surface seeded from a
// message in a thread. The mode comes from the query string and defaults to
// a plain reply.
func (h *ComposeHandler) HandleReply(c *fiber.Ctx) error {
	threadID := c.Params("thread_id")
	messageID := c.Params("message_id")
	if threadID == "" || messageID == "" {
		return utils.BadRequestError("thread and message ids are required", nil)
	}

	mode := models.ComposeMode(c.Query("mode", string(models.ModeReply)))
	switch mode {
	case models.ModeReply, models.ModeReplyAll, models.ModeForward:
	default:
		return utils.BadRequestError("unknown compose mode", nil)
	}

	surface, err := h.controller.OpenReply(c.Context(), OperatorAddress(c), threadID, messageID, mode)
	if err != nil {
		return err
	}
	return c.JSON(surfaceResponse(surface))
}

// HandleOpenDraft reopens a persisted draft in a fresh surface.
func (h *ComposeHandler) HandleOpenDraft(c *fiber.Ctx) error {
	draftID := c.Params("draft_id")

	draft, err := h.drafts.GetDraft(c.Context(), draftID)
	if err != nil {
		return utils.NotFoundError("draft not found", err)
	}

	surface := h.controller.OpenDraft(OperatorAddress(c), *draft)
	return c.JSON(surfaceResponse(surface))
}

// HandleListDrafts lists persisted drafts, most recently updated first.
func (h *ComposeHandler) HandleListDrafts(c *fiber.Ctx) error {
	drafts, err := h.drafts.ListDrafts(c.Context())
	if err != nil {
		return utils.InternalServerError("failed to list drafts", err)
	}
	return c.JSON(fiber.Map{"drafts": drafts})
}

// HandleMutate applies a partial edit to a surface's draft.
func (h *ComposeHandler) HandleMutate(c *fiber.Ctx) error {
	surface, err := h.surface(c)
	if err != nil {
		return err
	}

	var patch compose.DraftPatch
	if err := c.BodyParser(&patch); err != nil {
		return utils.BadRequestError("invalid draft patch", err)
	}

	if err := surface.Session.Mutate(patch); err != nil {
		return utils.BadRequestError(err.Error(), err)
	}
	return c.JSON(surface.Session.Status())
}

type sendRequest struct {
	// Attachments reference attachments of already-fetched messages, the way
	// a forward carries the original files along.
	Attachments []struct {
		MessageID    string `json:"message_id"`
		AttachmentID string `json:"attachment_id"`
	} `json:"attachments"`
}

// HandleSend sends a surface's draft. Validation failures and provider
// rejections leave the surface open with the draft intact.
func (h *ComposeHandler) HandleSend(c *fiber.Ctx) error {
	surfaceID := c.Params("surface_id")

	var req sendRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return utils.BadRequestError("invalid send payload", err)
		}
	}

	var attachments []models.Attachment
	for _, ref := range req.Attachments {
		att, err := h.mailbox.FetchAttachment(c.Context(), ref.MessageID, ref.AttachmentID, false)
		if err != nil {
			return utils.BadRequestError("attachment could not be loaded", err)
		}
		attachments = append(attachments, att)
	}

	messageID, err := h.controller.Send(c.Context(), surfaceID, attachments)
	if err != nil {
		var vErr *utils.ValidationError
		if errors.As(err, &vErr) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": vErr.Error(),
				"field": vErr.Field,
			})
		}
		var sErr *utils.SendFailure
		if errors.As(err, &sErr) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":           sErr.Error(),
				"draft_preserved": true,
			})
		}
		return err
	}

	return c.JSON(fiber.Map{"status": "sent", "message_id": messageID})
}

// HandleDiscard discards a surface's draft and closes it.
func (h *ComposeHandler) HandleDiscard(c *fiber.Ctx) error {
	if err := h.controller.Discard(c.Context(), c.Params("surface_id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "discarded"})
}

// HandleStatus returns a surface's current phase and last error.
func (h *ComposeHandler) HandleStatus(c *fiber.Ctx) error {
	surface, err := h.surface(c)
	if err != nil {
		return err
	}
	return c.JSON(surface.Session.Status())
}

func (h *ComposeHandler) surface(c *fiber.Ctx) (*compose.Surface, error) {
	surface, ok := h.controller.Surface(c.Params("surface_id"))
	if !ok {
		return nil, utils.NotFoundError("compose surface not found", nil)
	}
	return surface, nil
}

func surfaceResponse(surface *compose.Surface) fiber.Map {
	return fiber.Map{
		"surface_id": surface.ID,
		"draft":      surface.Session.Draft(),
		"status":     surface.Session.Status(),
	}
}
