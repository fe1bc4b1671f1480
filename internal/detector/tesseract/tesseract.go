/**
 * Tesseract detector - offline text-line detection
 *
 * Returns one detection per text line, which is the granularity the
 * region grouper expects to merge back into balloons.
 */

package tesseract

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/pagetranslate-worker/internal/detector"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
)

// languages maps page language tags to tesseract traineddata names.
var languages = map[string][]string{
	"ja":   {"jpn"},
	"ko":   {"kor"},
	"zh":   {"chi_sim"},
	"en":   {"eng"},
	"es":   {"spa"},
	"fr":   {"fra"},
	"pt":   {"por"},
	"de":   {"deu"},
	"auto": {"kor", "eng"},
}

// Config holds Tesseract configuration
type Config struct {
	TessdataPrefix string
}

// Detector runs tesseract on a page image.
type Detector struct {
	tessdataPrefix string
	logger         *logging.Logger
}

var _ detector.Detector = (*Detector)(nil)

// New creates a Tesseract detector.
func New(cfg Config) *Detector {
	return &Detector{
		tessdataPrefix: cfg.TessdataPrefix,
		logger:         logging.NewLogger("TesseractDetector"),
	}
}

// Languages returns the traineddata names for a page language tag.
func Languages(tag string) []string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if langs, ok := languages[tag]; ok {
		return langs
	}
	if base, _, ok := strings.Cut(tag, "-"); ok {
		if langs, ok := languages[base]; ok {
			return langs
		}
	}
	return languages["auto"]
}

// Detect performs text-line detection. A gosseract client is created per
// call; clients are not safe for concurrent use.
func (d *Detector) Detect(ctx context.Context, imageData []byte, language string) ([]detector.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if d.tessdataPrefix != "" {
		if err := client.SetTessdataPrefix(d.tessdataPrefix); err != nil {
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(Languages(language)...); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(imageData); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract detection failed: %w", err)
	}

	dets := make([]detector.Detection, 0, len(boxes))
	for _, b := range boxes {
		dets = append(dets, detector.Detection{
			Polygon:    corners(b.Box),
			Text:       b.Word,
			Confidence: b.Confidence / 100,
		})
	}

	d.logger.Debug("Tesseract detection complete", "lines", len(dets), "language", language)
	return dets, nil
}

func corners(r image.Rectangle) []image.Point {
	return []image.Point{
		r.Min,
		{X: r.Max.X, Y: r.Min.Y},
		r.Max,
		{X: r.Min.X, Y: r.Max.Y},
	}
}
