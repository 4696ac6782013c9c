// Package i18n renders user facing messages in pt-BR (default) or en.
// Catalogs are nested JSON files flattened to dot keys on first use, e.g.
// {"errors": {"not_found": "..."}} answers "errors.not_found".
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"strings"
	"sync"
)

//go:embed messages/*.json
var messagesFS embed.FS

// Supported locales
const (
	LocalePortuguese = "pt-BR"
	LocaleEnglish    = "en"
	DefaultLocale    = LocalePortuguese
)

var supportedLocales = []string{LocalePortuguese, LocaleEnglish}

type localeKey struct{}

var (
	catalogs     map[string]map[string]string
	catalogsOnce sync.Once
)

func loadCatalogs() map[string]map[string]string {
	catalogsOnce.Do(func() {
		catalogs = make(map[string]map[string]string, len(supportedLocales))
		for _, locale := range supportedLocales {
			data, err := messagesFS.ReadFile("messages/" + locale + ".json")
			if err != nil {
				continue
			}
			var tree map[string]any
			if err := json.Unmarshal(data, &tree); err != nil {
				continue
			}
			flat := make(map[string]string)
			flatten("", tree, flat)
			catalogs[locale] = flat
		}
	})
	return catalogs
}

func flatten(prefix string, tree map[string]any, out map[string]string) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := v.(type) {
		case string:
			out[key] = v
		case map[string]any:
			flatten(key, v, out)
		}
	}
}

func supported(locale string) bool {
	for _, l := range supportedLocales {
		if l == locale {
			return true
		}
	}
	return false
}

// Localizer translates keys for one locale.
type Localizer struct {
	locale string
}

// NewLocalizer returns a localizer for locale; unsupported locales get the default.
func NewLocalizer(locale string) *Localizer {
	if !supported(locale) {
		locale = DefaultLocale
	}
	return &Localizer{locale: locale}
}

// LocalizerFromContext returns the localizer of the request locale.
func LocalizerFromContext(ctx context.Context) *Localizer {
	return NewLocalizer(GetLocaleFromContext(ctx))
}

// T translates key, filling {name} placeholders from params. A key missing
// from the locale falls back to the default catalog, then to the key itself.
func (l *Localizer) T(key string, params ...map[string]string) string {
	all := loadCatalogs()
	msg, ok := all[l.locale][key]
	if !ok {
		msg, ok = all[DefaultLocale][key]
	}
	if !ok {
		return key
	}
	if len(params) == 0 || len(params[0]) == 0 {
		return msg
	}

	pairs := make([]string, 0, 2*len(params[0]))
	for k, v := range params[0] {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// GetLocale returns the locale in use
func (l *Localizer) GetLocale() string {
	return l.locale
}

// WithLocale stores the request locale
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// GetLocaleFromContext returns the request locale, the default when unset.
func GetLocaleFromContext(ctx context.Context) string {
	if locale, ok := ctx.Value(localeKey{}).(string); ok && locale != "" {
		return locale
	}
	return DefaultLocale
}

// ParseAcceptLanguage maps an Accept-Language header to a supported locale.
// The first language tag wins; quality values are ignored and anything that
// is not English is served in Portuguese.
func ParseAcceptLanguage(header string) string {
	first := strings.TrimSpace(strings.Split(header, ",")[0])
	first = strings.ToLower(strings.Split(first, ";")[0])

	if first == "en" || strings.HasPrefix(first, "en-") {
		return LocaleEnglish
	}
	return LocalePortuguese
}

// T translates with the default locale
func T(key string, params ...map[string]string) string {
	return NewLocalizer(DefaultLocale).T(key, params...)
}

// TFromContext translates with the request locale
func TFromContext(ctx context.Context, key string, params ...map[string]string) string {
	return LocalizerFromContext(ctx).T(key, params...)
}
