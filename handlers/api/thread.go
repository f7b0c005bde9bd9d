package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tourmail/compose"
	"tourmail/models"
	"tourmail/provider"
	"tourmail/utils"
)

// ThreadHandler serves conversation threads and the per-message view state
// (collapse, quoted-history visibility) that goes with them.
type ThreadHandler struct {
	mailbox    provider.Mailbox
	controller *compose.Controller
	scheduled  provider.ScheduledLister
}

// NewThreadHandler creates a thread handler. The scheduled lister may be nil
// when no scheduling system is configured.
func NewThreadHandler(mailbox provider.Mailbox, controller *compose.Controller, scheduled provider.ScheduledLister) *ThreadHandler {
	return &ThreadHandler{
		mailbox:    mailbox,
		controller: controller,
		scheduled:  scheduled,
	}
}

// HandleListThreads lists conversation threads in a folder, paginated.
func (h *ThreadHandler) HandleListThreads(c *fiber.Ctx) error {
	folder := c.Query("folder", "INBOX")

	// Validate before converting so a negative query value cannot wrap.
	rawPage := c.QueryInt("page", 1)
	if rawPage < 1 {
		rawPage = 1
	}
	rawSize := c.QueryInt("page_size", 25)
	if rawSize < 1 || rawSize > 100 {
		rawSize = 25
	}
	page := uint32(rawPage)
	pageSize := uint32(rawSize)

	threads, err := h.mailbox.FetchThreads(c.Context(), folder, 0)
	if err != nil {
		return utils.InternalServerError("failed to fetch threads", err)
	}

	total := uint32(len(threads))
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return c.JSON(models.NewPaginatedThreads(threads[start:end], page, pageSize, total))
}

// HandleThread fetches one thread and returns its rendered messages. A
// pending draft found in the thread is returned separately for routing into
// a compose surface instead of being displayed inline.
func (h *ThreadHandler) HandleThread(c *fiber.Ctx) error {
	threadID := c.Params("id")
	if threadID == "" {
		return utils.BadRequestError("thread id is required", nil)
	}

	presenter, pendingDraft, err := h.controller.OpenThread(c.Context(), threadID)
	if err != nil {
		if errors.Is(err, compose.ErrStaleFetch) {
			// A newer request for this thread is already in flight; the
			// client should keep the newer response.
			return c.SendStatus(fiber.StatusConflict)
		}
		return err
	}

	resp := fiber.Map{
		"thread_id": threadID,
		"messages":  presenter.Views(),
	}
	if pendingDraft != nil {
		resp["pending_draft"] = pendingDraft
	}
	return c.JSON(resp)
}

// HandleToggleExpanded flips a message's collapse state.
func (h *ThreadHandler) HandleToggleExpanded(c *fiber.Ctx) error {
	presenter, ok := h.controller.Presenter(c.Params("id"))
	if !ok {
		return utils.NotFoundError("thread is not loaded", nil)
	}

	expanded := presenter.ToggleExpanded(c.Params("message_id"))
	view, ok := presenter.View(c.Params("message_id"))
	if !ok {
		return utils.NotFoundError("message not found in thread", nil)
	}

	return c.JSON(fiber.Map{"expanded": expanded, "message": view})
}

// HandleToggleQuote flips a message's quoted-history visibility.
func (h *ThreadHandler) HandleToggleQuote(c *fiber.Ctx) error {
	presenter, ok := h.controller.Presenter(c.Params("id"))
	if !ok {
		return utils.NotFoundError("thread is not loaded", nil)
	}

	expanded := presenter.ToggleQuote(c.Params("message_id"))
	view, ok := presenter.View(c.Params("message_id"))
	if !ok {
		return utils.NotFoundError("message not found in thread", nil)
	}

	return c.JSON(fiber.Map{"quote_expanded": expanded, "message": view})
}

// HandleScheduled lists queued future deliveries owned by the external
// scheduling system.
func (h *ThreadHandler) HandleScheduled(c *fiber.Ctx) error {
	if h.scheduled == nil {
		return c.JSON(fiber.Map{"scheduled": []models.ScheduledEmail{}})
	}

	scheduled, err := h.scheduled.ListScheduled(c.Context())
	if err != nil {
		return utils.InternalServerError("failed to list scheduled deliveries", err)
	}
	if scheduled == nil {
		scheduled = []models.ScheduledEmail{}
	}
	return c.JSON(fiber.Map{"scheduled": scheduled})
}
