// Package i18n localizes server-generated text: notification titles and
// bodies, offline e-mails and a handful of API messages.
//
// The language is picked from the user's stored preference, then the
// Accept-Language header, then DefaultLanguage.
//
//	l := i18n.NewLocalizer("tr")
//	l.TWithParams("notification.follow.title", map[string]string{"actor": "ada"})
package i18n

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"sync"
)

// SupportedLanguages are the languages shipped in locales/.
var SupportedLanguages = []string{"en", "tr"}

// DefaultLanguage is used when nothing better is known.
const DefaultLanguage = "en"

// translations is map[lang]map[flat.key]text. Written once by Load, read-only after.
var (
	translations map[string]map[string]string
	loadOnce     sync.Once
	loadErr      error
)

// Load reads <lang>.json for every supported language from localesFS.
// Only the first call does any work.
func Load(localesFS fs.FS) error {
	loadOnce.Do(func() {
		loaded := make(map[string]map[string]string)

		for _, lang := range SupportedLanguages {
			fileName := lang + ".json"

			data, err := fs.ReadFile(localesFS, fileName)
			if err != nil {
				loadErr = fmt.Errorf("failed to read translation file %s: %w", fileName, err)
				return
			}

			var nested map[string]any
			if err := json.Unmarshal(data, &nested); err != nil {
				loadErr = fmt.Errorf("failed to parse translation file %s: %w", fileName, err)
				return
			}

			flat := make(map[string]string)
			flattenMap("", nested, flat)
			loaded[lang] = flat

			log.Printf("[i18n] loaded %d keys for language: %s", len(flat), lang)
		}

		translations = loaded
	})

	return loadErr
}

// Localizer translates keys into one language.
type Localizer struct {
	lang string
}

// NewLocalizer falls back to DefaultLanguage for unsupported codes.
func NewLocalizer(lang string) *Localizer {
	if !IsSupported(lang) {
		lang = DefaultLanguage
	}
	return &Localizer{lang: lang}
}

// Lang is the effective language.
func (l *Localizer) Lang() string { return l.lang }

// T looks key up in the localizer's language, then in English, and finally
// returns the key itself.
func (l *Localizer) T(key string) string {
	if msg, ok := translations[l.lang][key]; ok {
		return msg
	}
	if msg, ok := translations[DefaultLanguage][key]; ok {
		return msg
	}
	return key
}

// TWithParams is T with {{name}} placeholders substituted.
func (l *Localizer) TWithParams(key string, params map[string]string) string {
	msg := l.T(key)
	for k, v := range params {
		msg = strings.ReplaceAll(msg, "{{"+k+"}}", v)
	}
	return msg
}

// Has reports whether key exists in lang (no fallback).
func Has(lang, key string) bool {
	_, ok := translations[lang][key]
	return ok
}

// DetectLanguage picks the first supported language from an
// Accept-Language header such as "tr-TR,tr;q=0.9,en;q=0.7".
func DetectLanguage(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		base, _, _ := strings.Cut(tag, "-")
		if lang := strings.ToLower(base); IsSupported(lang) {
			return lang
		}
	}
	return DefaultLanguage
}

// IsSupported reports whether lang has a locale file.
func IsSupported(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// flattenMap turns {"a": {"b": "x"}} into {"a.b": "x"}.
func flattenMap(prefix string, src map[string]any, dst map[string]string) {
	for k, v := range src {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}

		switch val := v.(type) {
		case string:
			dst[key] = val
		case map[string]any:
			flattenMap(key, val, dst)
		}
	}
}
