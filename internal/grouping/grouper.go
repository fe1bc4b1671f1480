// Package grouping merges line-level OCR detections into dialogue units.
package grouping

import (
	"strings"

	"github.com/adverant/nexus/pagetranslate-worker/internal/geometry"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
)

// DefaultProximityThreshold is the largest vertical gap, in pixels, between
// two column-aligned detections that still belong to the same balloon.
const DefaultProximityThreshold = 50

// Options configures a Grouper.
type Options struct {
	ProximityThreshold int
	// Language selects the connector list. Empty falls back to each region's
	// detected language, then English.
	Language string
}

// DefaultOptions returns the stock grouping options.
func DefaultOptions() Options {
	return Options{ProximityThreshold: DefaultProximityThreshold}
}

// Grouper merges regions using spatial proximity and linguistic continuation.
type Grouper struct {
	opts   Options
	logger *logging.Logger
}

// NewGrouper creates a grouper.
func NewGrouper(opts Options) *Grouper {
	return &Grouper{
		opts:   opts,
		logger: logging.NewLogger("RegionGrouper"),
	}
}

// Group merges regions, which must be sorted top-to-bottom. The input is
// not modified. Order is preserved and the result is never longer than the
// input.
func (g *Grouper) Group(regions []page.TextRegion) []page.TextRegion {
	if len(regions) == 0 {
		return []page.TextRegion{}
	}

	out := make([]page.TextRegion, 0, len(regions))
	var open []page.TextRegion

	flush := func() {
		if len(open) > 0 {
			out = append(out, combine(open))
			open = nil
		}
	}

	for _, curr := range regions {
		if !curr.Box.Valid() {
			flush()
			out = append(out, curr)
			continue
		}
		if len(open) == 0 {
			open = append(open, curr)
			continue
		}
		if g.extends(open[len(open)-1], curr) {
			open = append(open, curr)
			continue
		}
		flush()
		open = append(open, curr)
	}
	flush()

	if len(out) != len(regions) {
		g.logger.Debug("Grouped regions", "input", len(regions), "output", len(out))
	}
	return out
}

func (g *Grouper) extends(prev, curr page.TextRegion) bool {
	a, b := prev.Box.Rect(), curr.Box.Rect()
	if geometry.VerticalGap(a, b) < g.opts.ProximityThreshold && geometry.HorizontalOverlap(a, b) > 0 {
		return true
	}

	lang := g.opts.Language
	if lang == "" {
		lang = curr.DetectedLanguage
	}
	return continues(prev.WorkingText(), curr.WorkingText(), lang)
}

// combine reduces a group to one region: texts joined by single spaces,
// geometry unioned, confidence averaged, id built from the first and last
// member ids.
func combine(group []page.TextRegion) page.TextRegion {
	if len(group) == 1 {
		return group[0]
	}

	rects := make([]geometry.Rect, len(group))
	sources := make([]string, 0, len(group))
	translations := make([]string, 0, len(group))
	var confidence float64

	for i, r := range group {
		rects[i] = r.Box.Rect()
		confidence += r.Confidence
		if s := strings.TrimSpace(r.SourceText); s != "" {
			sources = append(sources, s)
		}
		if s := strings.TrimSpace(r.TranslatedText); s != "" {
			translations = append(translations, s)
		}
	}

	first, last := group[0], group[len(group)-1]
	return page.TextRegion{
		ID:               first.ID + "-" + last.ID,
		SourceText:       strings.Join(sources, " "),
		TranslatedText:   strings.Join(translations, " "),
		Confidence:       confidence / float64(len(group)),
		Box:              geometry.RectBox(geometry.BoundingUnion(rects...)),
		DetectedLanguage: first.DetectedLanguage,
	}
}
