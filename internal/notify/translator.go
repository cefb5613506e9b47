// Package notify renders lifecycle notices into localized text and delivers them.
package notify

import (
	"embed"
	"fmt"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"example.com/activityplanner/internal/domain"
)

//go:embed active.*.toml
var localeFS embed.FS

var localeFiles = []string{"active.vi.toml", "active.en.toml"}

// Translator is a thin wrapper around go-i18n's Bundle/Localizer.
type Translator struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
}

// NewTranslator builds a Translator over the embedded message files. defaultLocale is used
// whenever the requested locale has no message; an unparsable value falls back to Vietnamese.
func NewTranslator(defaultLocale string) (*Translator, error) {
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		tag = language.Vietnamese
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, file := range localeFiles {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return &Translator{bundle: bundle, defaultLanguage: tag}, nil
}

// T renders the message identified by key. locale may be a tag or an Accept-Language
// header value. Unknown keys render as the key itself.
func (t *Translator) T(locale, key string, data map[string]any) string {
	if key == "" {
		return ""
	}
	languages := make([]string, 0, 2)
	if locale != "" {
		languages = append(languages, locale)
	}
	languages = append(languages, t.defaultLanguage.String())

	localizer := i18n.NewLocalizer(t.bundle, languages...)
	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	})
	if err != nil {
		return key
	}
	return msg
}

// Render produces the user-facing text of a notice.
func (t *Translator) Render(locale string, notice domain.Notice) string {
	data := make(map[string]any, len(notice.Data)+1)
	for k, v := range notice.Data {
		data[k] = v
	}
	if input, ok := notice.Data["Input"]; ok {
		data["Label"] = t.T(locale, "input."+input, nil)
	}
	return t.T(locale, notice.Key, data)
}

// Fields renders a field-to-message-key map into field-to-text.
func (t *Translator) Fields(locale string, fields map[string]string) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for field, key := range fields {
		out[field] = t.T(locale, key, nil)
	}
	return out
}
