// Package fonts loads per-language TrueType fonts and measures text.
//
// A Cache is created once per pipeline (or shared between pipelines: after
// a font is parsed it is only read) and handed to the layout engine and the
// renderer. It always has a usable fallback, the bundled Go Regular font.
package fonts

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/adverant/nexus/pagetranslate-worker/internal/langtag"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
)

// DefaultKey names the font used for languages without their own entry.
const DefaultKey = "default"

// approxAdvance is the average glyph advance as a fraction of the point
// size, used when a face cannot measure.
const approxAdvance = 0.6

// Provider hands out font faces and measures strings.
type Provider interface {
	Face(language string, size float64) font.Face
	Measure(text string, face font.Face) int
}

// Cache is the default Provider.
type Cache struct {
	mu       sync.RWMutex
	paths    map[string]string
	fonts    map[string]*truetype.Font
	failed   map[string]bool
	fallback *truetype.Font
	logger   *logging.Logger
}

var _ Provider = (*Cache)(nil)

// NewCache creates a cache for the given language -> TTF path map.
func NewCache(paths map[string]string) *Cache {
	c := &Cache{
		paths:  make(map[string]string, len(paths)),
		fonts:  make(map[string]*truetype.Font),
		failed: make(map[string]bool),
		logger: logging.NewLogger("FontCache"),
	}
	for lang, path := range paths {
		c.paths[strings.ToLower(lang)] = path
	}

	fallback, err := truetype.Parse(goregular.TTF)
	if err != nil {
		c.logger.Error("Bundled fallback font failed to parse", "error", err)
	} else {
		c.fallback = fallback
	}
	return c
}

// Warm parses every configured font up front and returns the languages
// whose font could not be loaded.
func (c *Cache) Warm() []string {
	var missing []string
	for lang := range c.paths {
		if _, ok := c.load(lang); !ok {
			missing = append(missing, lang)
		}
	}
	return missing
}

// Face returns a face for the language at the given size. It never returns
// nil: missing fonts fall back to Go Regular, and if even that is
// unavailable to a fixed bitmap face.
func (c *Cache) Face(language string, size float64) font.Face {
	f := c.fontFor(language)
	if f == nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Measure returns the advance width of text in pixels. A nil face yields an
// approximation from the character count at 12pt.
func (c *Cache) Measure(text string, face font.Face) int {
	if face == nil {
		return ApproxWidth(text, 12)
	}
	return font.MeasureString(face, text).Ceil()
}

// ApproxWidth estimates the width of text at size without glyph metrics.
func ApproxWidth(text string, size float64) int {
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) * size * approxAdvance))
}

// Fallback reports whether language is served by the fallback font.
func (c *Cache) Fallback(language string) bool {
	_, ok := c.resolve(language)
	return !ok
}

func (c *Cache) fontFor(language string) *truetype.Font {
	if f, ok := c.resolve(language); ok {
		return f
	}
	return c.fallback
}

// resolve tries the exact tag, its base language and the default entry.
func (c *Cache) resolve(language string) (*truetype.Font, bool) {
	lang := strings.ToLower(strings.TrimSpace(language))
	for _, key := range []string{lang, langtag.Base(lang, ""), DefaultKey} {
		if key == "" {
			continue
		}
		if f, ok := c.load(key); ok {
			return f, true
		}
	}
	return nil, false
}

func (c *Cache) load(key string) (*truetype.Font, bool) {
	c.mu.RLock()
	f, ok := c.fonts[key]
	failed := c.failed[key]
	path, configured := c.paths[key]
	c.mu.RUnlock()

	if ok {
		return f, true
	}
	if failed || !configured {
		return nil, false
	}

	f, err := parseFile(path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed[key] = true
		c.logger.Warn("Font unavailable, using fallback", "language", key, "path", path, "error", err)
		return nil, false
	}
	c.fonts[key] = f
	return f, true
}

func parseFile(path string) (*truetype.Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return f, nil
}
