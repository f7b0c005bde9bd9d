package api

import (
	"github.com/gofiber/fiber/v2"

	"tourmail/utils"
)

// I18nHandler serves the translation strings the compose UI needs client
// side.
type I18nHandler struct{}

// GetTranslations returns the compose and thread-view labels for a language.
func (h *I18nHandler) GetTranslations(c *fiber.Ctx) error {
	lang := c.Params("lang")
	if lang != "en" && lang != "ja" {
		lang = "en"
	}

	localizer := utils.GetLocalizer(lang)

	keys := []string{
		"status_saving",
		"status_saved",
		"status_save_failed",
		"status_sending",
		"compose_new",
		"compose_reply",
		"compose_reply_all",
		"compose_forward",
		"compose_send",
		"compose_discard",
		"confirm_discard_draft",
		"quote_show_trimmed",
		"quote_hide_expanded",
		"thread_loading",
		"thread_no_messages",
		"attachment_missing",
		"attachment_loading",
		"error_send_failed",
		"error_network",
	}

	translations := make(map[string]string, len(keys))
	for _, key := range keys {
		translations[key] = utils.T(localizer, key)
	}

	return c.JSON(translations)
}
