package utils

import (
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Bundle holds all loaded translations. The back office ships English and
// Japanese.
var Bundle *i18n.Bundle

// InitI18n loads the locale files from the given directory. A missing locale
// file downgrades to message-id passthrough rather than failing startup.
func InitI18n(localesDir string) error {
	Bundle = i18n.NewBundle(language.English)
	Bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, locale := range []string{"active.en.toml", "active.ja.toml"} {
		if _, err := Bundle.LoadMessageFile(filepath.Join(localesDir, locale)); err != nil {
			Log.Warn("failed to load locale %s: %v", locale, err)
		}
	}

	Log.Info("i18n initialized from %s", localesDir)
	return nil
}

// GetLocalizer returns a localizer for the given language tag, falling back
// to English.
func GetLocalizer(lang string) *i18n.Localizer {
	if lang == "" {
		lang = "en"
	}
	return i18n.NewLocalizer(Bundle, lang, "en")
}

// T translates a message id, returning the id itself when no translation
// exists.
func T(localizer *i18n.Localizer, messageID string) string {
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		Log.Debug("translation missing for %q: %v", messageID, err)
		return messageID
	}
	return msg
}

// TWithData translates a message id with template data.
func TWithData(localizer *i18n.Localizer, messageID string, data map[string]interface{}) string {
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		Log.Debug("translation missing for %q: %v", messageID, err)
		return messageID
	}
	return msg
}
