// Package locale translates the user-facing messages of the web panel.
package locale

import (
	"errors"
	"io/fs"
	"strings"
	"sync"

	"github.com/sheetplot/sheetplot/logger"

	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
)

// DefaultLanguage is used when the browser asks for nothing we ship.
var DefaultLanguage = language.MustParse("en-US")

const localizerKey = "localizer"

var (
	mu     sync.RWMutex
	bundle *i18n.Bundle
)

// InitLocalizer loads every *.toml file under dir of fsys into the bundle.
func InitLocalizer(fsys fs.FS, dir string) error {
	b := i18n.NewBundle(DefaultLanguage)
	b.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	err := fs.WalkDir(fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".toml") {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		_, err = b.ParseMessageFileBytes(data, path)
		return err
	})
	if err != nil {
		return err
	}

	mu.Lock()
	bundle = b
	mu.Unlock()
	return nil
}

// Languages lists the tags that have translations.
func Languages() []string {
	mu.RLock()
	defer mu.RUnlock()
	if bundle == nil {
		return nil
	}
	tags := bundle.LanguageTags()
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	return out
}

// NewLocalizer picks a localizer for the given preference list, e.g. a
// lang cookie and an Accept-Language header.
func NewLocalizer(langs ...string) *i18n.Localizer {
	mu.RLock()
	b := bundle
	mu.RUnlock()
	if b == nil {
		return nil
	}
	return i18n.NewLocalizer(b, langs...)
}

// createTemplateData turns "name==value" params into template data.
func createTemplateData(params []string) map[string]any {
	data := make(map[string]any, len(params))
	for _, param := range params {
		k, v, ok := strings.Cut(param, "==")
		if !ok {
			continue
		}
		data[k] = v
	}
	return data
}

// Translate renders key with l. A message missing from the localizer's
// language is taken from DefaultLanguage; a missing bundle or message yields
// the key itself so pages stay readable.
func Translate(l *i18n.Localizer, key string, params ...string) string {
	if l == nil {
		return key
	}
	cfg := &i18n.LocalizeConfig{
		MessageID:    key,
		TemplateData: createTemplateData(params),
	}
	msg, err := l.Localize(cfg)
	var notFound *i18n.MessageNotFoundErr
	if errors.As(err, &notFound) {
		if fallback := NewLocalizer(DefaultLanguage.String()); fallback != nil {
			msg, err = fallback.Localize(cfg)
		}
	}
	if err != nil {
		logger.Warningf("failed to localize %q: %v", key, err)
		return key
	}
	return msg
}

// LocalizerMiddleware stores a request localizer built from the "lang"
// cookie and the Accept-Language header.
func LocalizerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var langs []string
		if cookie, err := c.Cookie("lang"); err == nil {
			langs = append(langs, cookie)
		}
		langs = append(langs, c.GetHeader("Accept-Language"))
		c.Set(localizerKey, NewLocalizer(langs...))
		c.Next()
	}
}

// Localizer returns the localizer of the current request, or nil.
func Localizer(c *gin.Context) *i18n.Localizer {
	v, _ := c.Get(localizerKey)
	l, _ := v.(*i18n.Localizer)
	return l
}

// T translates key for the current request.
func T(c *gin.Context, key string, params ...string) string {
	return Translate(Localizer(c), key, params...)
}
