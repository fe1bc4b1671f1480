/**
 * TextEraser - removes original glyphs before re-rendering
 *
 * Builds one mask from all region geometry and hands it to an Inpainter.
 * A failed fill never fails the page: the caller gets an untouched copy of
 * the source and Degraded is set.
 */

package eraser

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"

	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
)

// ErrNoImage is returned when there is no bitmap to erase from.
var ErrNoImage = errors.New("no source image")

// Options tunes erasure.
type Options struct {
	Padding int // rectangle growth on each side, in pixels
	Radius  int // inpainting search radius, in pixels
}

// DefaultOptions returns the stock erasure options.
func DefaultOptions() Options {
	return Options{Padding: 5, Radius: 10}
}

// Result is the erased bitmap plus what happened on the way.
type Result struct {
	Image        image.Image
	MaskedPixels int
	Skipped      int
	Degraded     bool
}

// Eraser removes text from a page bitmap.
type Eraser struct {
	inpainter Inpainter
	opts      Options
	logger    *logging.Logger
}

// New creates an eraser. A nil inpainter selects NativeInpainter.
func New(inpainter Inpainter, opts Options) *Eraser {
	if inpainter == nil {
		inpainter = NativeInpainter{}
	}
	return &Eraser{
		inpainter: inpainter,
		opts:      opts,
		logger:    logging.NewLogger("TextEraser"),
	}
}

// Erase returns a new bitmap with the regions' text removed. The source is
// never modified and the output has the source's dimensions.
func (e *Eraser) Erase(src image.Image, regions []page.TextRegion) (*Result, error) {
	if src == nil {
		return nil, ErrNoImage
	}

	mask, skipped := BuildMask(src.Bounds(), regions, e.opts.Padding)
	if skipped > 0 {
		e.logger.Warn("Skipped regions without usable geometry", "skipped", skipped, "total", len(regions))
	}

	res := &Result{MaskedPixels: CountMasked(mask), Skipped: skipped}
	if res.MaskedPixels == 0 {
		res.Image = imaging.Clone(src)
		return res, nil
	}

	out, err := e.inpainter.Inpaint(src, mask, e.opts.Radius)
	if err == nil && (out == nil || out.Bounds().Size() != src.Bounds().Size()) {
		err = errors.New("inpainter returned an image of the wrong size")
	}
	if err != nil {
		e.logger.Warn("Inpainting failed, keeping original pixels", "error", err)
		res.Image = imaging.Clone(src)
		res.Degraded = true
		return res, nil
	}

	res.Image = out
	return res, nil
}
