package render

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/pagetranslate-worker/internal/fonts"
	"github.com/adverant/nexus/pagetranslate-worker/internal/geometry"
	"github.com/adverant/nexus/pagetranslate-worker/internal/layout"
	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
)

// backdrop cannot come out of blending the gray shadow with black ink.
var backdrop = color.RGBA{R: 30, G: 90, B: 160, A: 255}

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	cache := fonts.NewCache(nil)
	return NewRenderer(cache, layout.NewFitter(cache, layout.DefaultOptions()), DefaultStyle())
}

func plainPage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: backdrop}, image.Point{}, draw.Src)
	return img
}

func region(id, translated string, x, y, w, h int) page.TextRegion {
	return page.TextRegion{
		ID:             id,
		SourceText:     "src",
		TranslatedText: translated,
		Box:            geometry.RectBox(geometry.NewRect(x, y, w, h)),
	}
}

func countColor(img image.Image, r image.Rectangle, c color.Color) int {
	want := color.RGBAModel.Convert(c)
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if color.RGBAModel.Convert(img.At(x, y)) == want {
				n++
			}
		}
	}
	return n
}

func TestRenderDrawsBoxAndText(t *testing.T) {
	base := plainPage(300, 200)
	rr := newRenderer(t)
	box := image.Rect(20, 20, 180, 100)

	out, report := rr.Render(base, []page.TextRegion{region("0", "Hola mundo", 20, 20, 160, 80)}, "es")

	assert.Equal(t, 1, report.Rendered)
	assert.False(t, report.Diagnostic)
	assert.Equal(t, base.Bounds(), out.Bounds())

	assert.Zero(t, countColor(out, box, backdrop), "box is opaquely filled")
	assert.Greater(t, countColor(out, box, color.Black), 0, "ink was drawn")
	assert.Greater(t, countColor(out, box, color.White), 0)
	assert.Equal(t, 300*200-160*80, countColor(out, out.Bounds(), backdrop),
		"pixels outside the box are untouched")
	assert.Equal(t, 300*200, countColor(base, base.Bounds(), backdrop), "base is not modified")
}

func TestRenderPlaceholderForEmptyTranslation(t *testing.T) {
	base := plainPage(300, 200)
	rr := newRenderer(t)

	out, report := rr.Render(base, []page.TextRegion{
		region("0", "Hola", 10, 10, 120, 60),
		region("1", "", 150, 100, 120, 60),
	}, "es")

	assert.Equal(t, 2, report.Rendered)
	assert.Equal(t, 1, report.Placeholders)
	assert.Greater(t, countColor(out, image.Rect(150, 100, 270, 160), color.Black), 0,
		"placeholder text is drawn instead of leaving the box blank")
}

func TestRenderDiagnosticWhenNothingTranslated(t *testing.T) {
	base := plainPage(400, 300)
	rr := newRenderer(t)

	out, report := rr.Render(base, []page.TextRegion{region("0", "", 10, 10, 50, 20)}, "en")

	assert.True(t, report.Diagnostic)
	assert.Zero(t, report.Rendered)
	assert.Greater(t, countColor(out, out.Bounds(), color.Black), 0)
	assert.Greater(t, countColor(out, image.Rect(10, 10, 60, 30), backdrop), 0,
		"the region itself is not painted")
}

func TestRenderSkipsRegionsWithoutGeometry(t *testing.T) {
	base := plainPage(100, 100)
	rr := newRenderer(t)

	_, report := rr.Render(base, []page.TextRegion{
		{ID: "0", TranslatedText: "floating"},
		region("1", "outside", 500, 500, 20, 20),
		region("2", "ok", 10, 10, 60, 30),
	}, "en")

	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 1, report.Rendered)
}

func TestRenderIsIdempotent(t *testing.T) {
	base := plainPage(240, 160)
	rr := newRenderer(t)
	regions := []page.TextRegion{
		region("0", "¿Quién anda ahí? - Kim Dokja", 10, 10, 140, 70),
		region("1", "Nadie.", 120, 90, 100, 50),
	}

	first, _ := rr.Render(base, regions, "es")
	second, _ := rr.Render(base, regions, "es")

	a, ok := first.(*image.RGBA)
	require.True(t, ok)
	b, ok := second.(*image.RGBA)
	require.True(t, ok)
	assert.Equal(t, a.Pix, b.Pix)
}

func TestRenderOffsetBase(t *testing.T) {
	full := plainPage(200, 200)
	sub := full.SubImage(image.Rect(50, 50, 150, 150))
	rr := newRenderer(t)

	out, report := rr.Render(sub, []page.TextRegion{region("0", "Hi", 60, 60, 40, 30)}, "en")

	assert.Equal(t, 1, report.Rendered)
	assert.Equal(t, image.Pt(100, 100), out.Bounds().Size())
	assert.Zero(t, countColor(out, image.Rect(10, 10, 50, 40), backdrop))
}

func TestParseStyle(t *testing.T) {
	s, err := ParseStyle("#fefefe", "#102030", "", "…")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 254, G: 254, B: 254, A: 255}, s.Fill)
	assert.Equal(t, color.NRGBA{R: 16, G: 32, B: 48, A: 255}, s.Ink)
	assert.Equal(t, DefaultStyle().Shadow, s.Shadow)
	assert.Equal(t, "…", s.Placeholder)

	_, err = ParseStyle("white", "", "", "")
	assert.Error(t, err)
}
