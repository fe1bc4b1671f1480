/**
 * PageRenderer - draws translated text onto the erased page
 *
 * Works on a copy of the base bitmap, so rendering the same layout onto the
 * same base twice gives identical pixels.
 */

package render

import (
	"image"
	"math"
	"strings"

	"github.com/fogleman/gg"

	"github.com/adverant/nexus/pagetranslate-worker/internal/fonts"
	"github.com/adverant/nexus/pagetranslate-worker/internal/geometry"
	"github.com/adverant/nexus/pagetranslate-worker/internal/layout"
	"github.com/adverant/nexus/pagetranslate-worker/internal/logging"
	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
)

// Report describes what a Render call drew.
type Report struct {
	Rendered     int
	Placeholders int
	Skipped      int
	Diagnostic   bool
	Shrunk       int
	Chunked      int
}

// Renderer draws regions onto a page.
type Renderer struct {
	fitter *layout.Fitter
	fonts  fonts.Provider
	style  Style
	logger *logging.Logger
}

// NewRenderer creates a renderer.
func NewRenderer(fp fonts.Provider, fitter *layout.Fitter, style Style) *Renderer {
	return &Renderer{
		fitter: fitter,
		fonts:  fp,
		style:  style,
		logger: logging.NewLogger("PageRenderer"),
	}
}

// Render returns a new image: base with every region's translated text
// drawn over an opaque box. When no region has a translation, a single
// boxed diagnostic message is drawn across the page instead.
func (r *Renderer) Render(base image.Image, regions []page.TextRegion, language string) (image.Image, *Report) {
	dc := gg.NewContextForImage(base)
	bounds := base.Bounds()
	report := &Report{}

	if !anyTranslated(regions) {
		r.drawDiagnostic(dc, language)
		report.Diagnostic = true
		r.logger.Warn("No region carries translated text, drew diagnostic", "regions", len(regions))
		return dc.Image(), report
	}

	for _, region := range regions {
		if !region.Box.Valid() {
			report.Skipped++
			continue
		}
		rect := region.Box.Rect().Clamp(bounds)
		if rect.Empty() {
			report.Skipped++
			continue
		}
		// gg draws in coordinates relative to the copy's origin
		rect.X -= bounds.Min.X
		rect.Y -= bounds.Min.Y

		text := strings.TrimSpace(region.TranslatedText)
		if text == "" {
			text = r.style.Placeholder
			report.Placeholders++
		}

		l := r.fitter.Fit(rect, text, language)
		r.drawRegion(dc, rect, l, language)

		report.Rendered++
		if l.Shrunk {
			report.Shrunk++
		}
		if l.Chunked {
			report.Chunked++
		}
	}

	return dc.Image(), report
}

func (r *Renderer) drawRegion(dc *gg.Context, rect geometry.Rect, l layout.Layout, language string) {
	x, y := float64(rect.X), float64(rect.Y)
	w, h := float64(rect.Width), float64(rect.Height)

	dc.SetColor(r.style.Fill)
	dc.DrawRectangle(x, y, w, h)
	dc.Fill()

	dc.SetFontFace(r.fonts.Face(language, l.FontSize))
	top := y + (h-l.BlockHeight())/2
	cx := x + w/2
	for i, line := range l.Lines {
		cy := top + (float64(i)+0.5)*l.LineHeight
		r.drawShadowed(dc, line, cx, cy, 0.5, 0.5)
	}

	if l.NameTag != "" {
		dc.SetFontFace(r.fonts.Face(language, l.NameTagSize))
		r.drawShadowed(dc, l.NameTag, x+w-2, y+h-2, 1, 1)
	}
}

// drawShadowed draws s once offset by a pixel in the shadow color, then in
// ink on top.
func (r *Renderer) drawShadowed(dc *gg.Context, s string, x, y, ax, ay float64) {
	dc.SetColor(r.style.Shadow)
	dc.DrawStringAnchored(s, x+1, y+1, ax, ay)
	dc.SetColor(r.style.Ink)
	dc.DrawStringAnchored(s, x, y, ax, ay)
}

func (r *Renderer) drawDiagnostic(dc *gg.Context, language string) {
	w, h := float64(dc.Width()), float64(dc.Height())
	size := math.Max(math.Floor(w/40), 14)
	rect := geometry.NewRect(int(w*0.1), int(h*0.4), int(w*0.8), int(h*0.2))

	l := r.fitter.Fit(rect, r.style.Diagnostic, language)

	dc.SetColor(r.style.Fill)
	dc.DrawRectangle(float64(rect.X), float64(rect.Y), float64(rect.Width), float64(rect.Height))
	dc.FillPreserve()
	dc.SetColor(r.style.Ink)
	dc.SetLineWidth(math.Max(size/8, 2))
	dc.Stroke()

	r.drawRegion(dc, rect, l, language)
}

func anyTranslated(regions []page.TextRegion) bool {
	for _, r := range regions {
		if strings.TrimSpace(r.TranslatedText) != "" {
			return true
		}
	}
	return false
}
