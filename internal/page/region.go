package page

import (
	"sort"

	"github.com/adverant/nexus/pagetranslate-worker/internal/geometry"
)

// TextRegion is one detected or merged unit of text.
type TextRegion struct {
	ID               string       `json:"id"`
	SourceText       string       `json:"text"`
	TranslatedText   string       `json:"translatedText,omitempty"`
	Confidence       float64      `json:"confidence"`
	Box              geometry.Box `json:"box"`
	DetectedLanguage string       `json:"languageDetected"`
}

// WorkingText is the text the heuristics look at: the translation once one
// exists, the source text before that.
func (r TextRegion) WorkingText() string {
	if r.TranslatedText != "" {
		return r.TranslatedText
	}
	return r.SourceText
}

// HasText reports whether the region carries any text at all.
func (r TextRegion) HasText() bool {
	return r.SourceText != "" || r.TranslatedText != ""
}

// SortByTop orders regions top-to-bottom by the top edge of their
// normalized rectangle. Ties keep their original order.
func SortByTop(regions []TextRegion) {
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Box.Rect().Y < regions[j].Box.Rect().Y
	})
}

// Clone returns a copy of the slice.
func Clone(regions []TextRegion) []TextRegion {
	if regions == nil {
		return nil
	}
	out := make([]TextRegion, len(regions))
	copy(out, regions)
	return out
}
