// Package i18n provides localized section titles, instructions and labels.
// A Bundle is loaded once per process from the embedded locale files and
// hands out per-language Catalogs; nothing here is global.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

// Bundle holds every embedded translation.
type Bundle struct {
	b *i18n.Bundle
}

// Load parses the embedded locale files. defaultLang is used when a
// requested language has no translation for a message.
func Load(defaultLang string) (*Bundle, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", e.Name(), err)
		}
		slog.Debug("loaded locale file", "file", e.Name())
	}
	return &Bundle{b: bundle}, nil
}

// Languages lists the languages with a locale file.
func (b *Bundle) Languages() []string {
	tags := b.b.LanguageTags()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// Catalog returns a catalog for the first supported language in langs.
// Entries may be language tags or Accept-Language header values.
func (b *Bundle) Catalog(langs ...string) *Catalog {
	return &Catalog{loc: i18n.NewLocalizer(b.b, langs...)}
}

// Catalog translates message IDs for one language preference list.
type Catalog struct {
	loc *i18n.Localizer
}

// Lookup returns the translation of id and whether one exists.
func (c *Catalog) Lookup(id string) (string, bool) {
	s, err := c.loc.Localize(&i18n.LocalizeConfig{MessageID: id})
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

// T translates a message by ID, returning the ID when it is missing.
func (c *Catalog) T(msgID string) string {
	s, err := c.loc.Localize(&i18n.LocalizeConfig{MessageID: msgID})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Td translates a message by ID with template data.
func (c *Catalog) Td(msgID string, data map[string]any) string {
	s, err := c.loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		TemplateData: data,
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// Tp translates a pluralized message by ID.
func (c *Catalog) Tp(msgID string, count int) string {
	s, err := c.loc.Localize(&i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
	if err != nil {
		slog.Warn("missing translation", "id", msgID, "error", err)
		return msgID
	}
	return s
}

// WithCatalog stores a catalog in the context.
func WithCatalog(ctx context.Context, c *Catalog) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the catalog stored by WithCatalog, or nil.
func FromContext(ctx context.Context) *Catalog {
	c, _ := ctx.Value(ctxKey{}).(*Catalog)
	return c
}
