// Package i18n renders auth message keys in the caller's language.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/language"

	"github.com/NordCoder/Tokengate/internal/domain/auth"
)

//go:embed locales/*.json
var locales embed.FS

var _ auth.Messages = (*Catalog)(nil)

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	fallback language.Tag
	tags     []language.Tag
	matcher  language.Matcher
	messages map[language.Tag]map[string]string
}

// NewCatalog loads the embedded locales. defaultLang picks the fallback
// language and must be one of them.
func NewCatalog(defaultLang string) (*Catalog, error) {
	fallback, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("default language %q: %w", defaultLang, err)
	}

	entries, err := locales.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}

	c := &Catalog{fallback: fallback, messages: map[language.Tag]map[string]string{}}
	c.tags = append(c.tags, fallback)
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("locale %s: %w", e.Name(), err)
		}
		raw, err := locales.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		m := map[string]string{}
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Name(), err)
		}
		c.messages[tag] = m
		if tag != fallback {
			c.tags = append(c.tags, tag)
		}
	}
	if _, ok := c.messages[fallback]; !ok {
		return nil, fmt.Errorf("no locale for default language %q", defaultLang)
	}
	c.matcher = language.NewMatcher(c.tags)
	return c, nil
}

// Resolve renders key for an Accept-Language value. Unknown languages use the
// default one, and a key missing everywhere renders as itself.
func (c *Catalog) Resolve(key auth.MessageKey, locale string) string {
	tag := c.match(locale)
	if s, ok := c.messages[tag][string(key)]; ok {
		return s
	}
	if s, ok := c.messages[c.fallback][string(key)]; ok {
		return s
	}
	return string(key)
}

func (c *Catalog) match(locale string) language.Tag {
	if locale == "" {
		return c.fallback
	}
	prefs, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(prefs) == 0 {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(prefs...)
	if conf == language.No {
		return c.fallback
	}
	return c.tags[idx]
}

// Languages lists the supported languages, default first.
func (c *Catalog) Languages() []string {
	out := make([]string, 0, len(c.tags))
	for _, t := range c.tags {
		out = append(out, t.String())
	}
	return out
}
