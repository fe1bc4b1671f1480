/**
 * Detector boundary - raw OCR hits to text regions
 *
 * The OCR model is a black box producing polygons, text and a 0..1
 * confidence. Everything after that (noise filtering, text cleanup, clamping,
 * ordering) happens here so every detector implementation behaves the same.
 */

package detector

import (
	"context"
	"image"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/adverant/nexus/pagetranslate-worker/internal/geometry"
	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
)

// Detection is one raw OCR hit.
type Detection struct {
	Polygon    []image.Point
	Text       string
	Confidence float64 // 0..1
}

// Detector finds text in an encoded image.
type Detector interface {
	Detect(ctx context.Context, imageData []byte, language string) ([]Detection, error)
}

// DefaultMinConfidence: detections at or below this are noise.
const DefaultMinConfidence = 0.3

// Options controls the conversion of detections to regions.
type Options struct {
	MinConfidence float64
	Language      string
}

// Result carries the converted regions plus counters for logging.
type Result struct {
	Regions   []page.TextRegion
	Raw       int
	LowScore  int
	EmptyText int
}

var (
	whitespace    = regexp.MustCompile(`\s+`)
	leadingJunk   = regexp.MustCompile(`^[^\p{L}\p{N}\s¡¿"'“‘(\[«—–-]+`)
	punctuationOK = regexp.MustCompile(`^[\p{P}\p{S}\s]+$`)
)

// CleanText collapses whitespace and strips stray symbols OCR tends to put
// in front of a line. Text made only of punctuation is kept as-is so tokens
// like "?!" survive.
func CleanText(text string) string {
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	if text == "" || punctuationOK.MatchString(text) {
		return text
	}
	text = leadingJunk.ReplaceAllString(text, "")
	return strings.TrimFunc(text, unicode.IsSpace)
}

// ToRegions filters, cleans and orders detections. Region ids are the
// detection's index in the input, so they stay stable for a given detector
// output.
func ToRegions(dets []Detection, bounds image.Rectangle, opts Options) Result {
	res := Result{Raw: len(dets), Regions: make([]page.TextRegion, 0, len(dets))}

	for i, d := range dets {
		if d.Confidence <= opts.MinConfidence {
			res.LowScore++
			continue
		}
		text := CleanText(d.Text)
		if text == "" {
			res.EmptyText++
			continue
		}
		res.Regions = append(res.Regions, page.TextRegion{
			ID:               strconv.Itoa(i),
			SourceText:       text,
			Confidence:       clampConfidence(d.Confidence) * 100,
			Box:              geometry.Polygon(d.Polygon).Clamp(bounds),
			DetectedLanguage: opts.Language,
		})
	}

	page.SortByTop(res.Regions)
	return res
}

func clampConfidence(c float64) float64 {
	return min(max(c, 0), 1)
}
