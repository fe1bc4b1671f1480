// Package layout fits translated text into a region: it picks a font size,
// wraps the text into lines and pulls out a trailing speaker tag.
package layout

import (
	"math"

	"github.com/adverant/nexus/pagetranslate-worker/internal/fonts"
	"github.com/adverant/nexus/pagetranslate-worker/internal/geometry"
)

// Options tunes the fitter.
type Options struct {
	MinFontSize  float64 // floor of the initial size
	ShrinkFloor  float64 // floor of the corrective shrink
	Padding      int     // inner margin on each side
	LineSpacing  float64 // line height as a multiple of the font size
	NameTagScale float64 // speaker tag size relative to the body
}

// DefaultOptions returns the stock fitting options.
func DefaultOptions() Options {
	return Options{
		MinFontSize:  12,
		ShrinkFloor:  10,
		Padding:      4,
		LineSpacing:  1.2,
		NameTagScale: 0.6,
	}
}

// Layout is the fitted text for one region.
type Layout struct {
	FontSize    float64
	LineHeight  float64
	Lines       []string
	NameTag     string
	NameTagSize float64

	// AvailableWidth and AvailableHeight are the inner box the lines were
	// fitted to.
	AvailableWidth  int
	AvailableHeight int

	Shrunk  bool
	Chunked bool
}

// BlockHeight is the height of all wrapped lines.
func (l Layout) BlockHeight() float64 {
	return float64(len(l.Lines)) * l.LineHeight
}

// Fitter computes layouts. It holds no per-call state.
type Fitter struct {
	fonts fonts.Provider
	opts  Options
}

// NewFitter creates a fitter.
func NewFitter(fp fonts.Provider, opts Options) *Fitter {
	return &Fitter{fonts: fp, opts: opts}
}

// StartSize is the candidate size derived from the rectangle.
func (f *Fitter) StartSize(rect geometry.Rect) float64 {
	size := math.Min(float64(rect.Height)/3, float64(rect.Width)/10)
	return math.Max(math.Floor(size), f.opts.MinFontSize)
}

// Fit lays text out inside rect. The result depends only on the inputs and
// the font provider.
func (f *Fitter) Fit(rect geometry.Rect, text, language string) Layout {
	body, tag := ExtractSpeakerTag(text)

	availW := max(rect.Width-2*f.opts.Padding, 1)
	availH := max(rect.Height-2*f.opts.Padding, 1)

	size := f.StartSize(rect)
	face := f.fonts.Face(language, size)
	lines := Wrap(body, face, availW, f.fonts)

	out := Layout{AvailableWidth: availW, AvailableHeight: availH}

	wrappedH := float64(len(lines)) * size * f.opts.LineSpacing
	if len(lines) > 1 && wrappedH > float64(availH) {
		shrunk := math.Max(math.Floor(size*float64(availH)/wrappedH), f.opts.ShrinkFloor)
		if shrunk < size {
			size = shrunk
			face = f.fonts.Face(language, size)
			lines = Wrap(body, face, availW, f.fonts)
			out.Shrunk = true
		}
	}

	lines, out.Chunked = chunkOverflow(lines, face, availW, f.fonts)

	out.FontSize = size
	out.LineHeight = size * f.opts.LineSpacing
	out.Lines = lines
	if tag != "" {
		out.NameTag = tag
		out.NameTagSize = math.Max(math.Floor(size*f.opts.NameTagScale), 8)
	}
	return out
}
