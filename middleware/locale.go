package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"tourmail/utils"
)

var supportedLangs = map[string]bool{"en": true, "ja": true}

// LocaleMiddleware resolves the request language (query, then cookie, then
// Accept-Language) and stores a localizer in request locals.
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lang := c.Query("lang")
		if lang == "" {
			lang = c.Cookies("lang")
		}
		if lang == "" {
			if strings.HasPrefix(c.Get("Accept-Language"), "ja") {
				lang = "ja"
			}
		}
		if !supportedLangs[lang] {
			lang = "en"
		}

		c.Locals("localizer", utils.GetLocalizer(lang))
		c.Locals("lang", lang)

		return c.Next()
	}
}
