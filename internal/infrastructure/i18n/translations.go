package i18n

import (
	"embed"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"lerngruppe/internal/ports/output"
)

//go:embed active.*.toml
var localeFS embed.FS

var localeFiles = []string{"active.de.toml", "active.en.toml", "active.fr.toml"}

var _ output.T = (*Translator)(nil)

// Translator is a thin wrapper around go-i18n's Bundle/Localizer.
type Translator struct {
	bundle          *i18n.Bundle
	supported       []language.Tag
	matcher         language.Matcher
	defaultLanguage language.Tag
	logger          *slog.Logger
}

// NewTranslator builds a Translator from the embedded active.*.toml files
// with the given default locale (e.g. "de").
func NewTranslator(defaultLocale string, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		tag = language.German
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	for _, file := range localeFiles {
		if _, err := bundle.LoadMessageFileFS(localeFS, file); err != nil {
			logger.Error("i18n: failed to load messages", "file", file, "error", err)
		}
	}

	// The default comes first so it wins when nothing matches.
	tags := []language.Tag{tag}
	for _, t := range bundle.LanguageTags() {
		if t != tag {
			tags = append(tags, t)
		}
	}

	return &Translator{
		bundle:          bundle,
		supported:       tags,
		matcher:         language.NewMatcher(tags),
		defaultLanguage: tag,
		logger:          logger,
	}
}

// Locale picks the supported locale best matching an Accept-Language header.
func (t *Translator) Locale(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return t.defaultLanguage.String()
	}
	_, idx, _ := t.matcher.Match(tags...)
	return t.supported[idx].String()
}

// T renders the message identified by key for the given locale.
// If the key/locale is not found, it falls back to the default locale,
// then finally to the key itself.
func (t *Translator) T(locale, key string, data map[string]any) string {
	if key == "" {
		return ""
	}

	languages := []string{}
	if locale != "" {
		languages = append(languages, locale)
	}
	languages = append(languages, t.defaultLanguage.String())

	localizer := i18n.NewLocalizer(t.bundle, languages...)
	cfg := &i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: data,
	}
	if n, ok := data["Count"]; ok {
		cfg.PluralCount = n
	}
	msg, err := localizer.Localize(cfg)
	if err != nil {
		t.logger.Warn("i18n: localize failed", "key", key, "locales", languages, "error", err)
		return key
	}
	return msg
}
