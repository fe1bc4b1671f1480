package eraser

import (
	"image"
	"image/color"

	"github.com/adverant/nexus/pagetranslate-worker/internal/geometry"
	"github.com/adverant/nexus/pagetranslate-worker/internal/page"
)

// MaskOn is the mask value marking a pixel for removal.
const MaskOn = 255

// BuildMask rasterizes region geometry into a single-channel mask the size
// of bounds. Polygons are filled as-is; rectangles are grown by padding on
// each side. Everything is clamped to bounds. Regions without usable
// geometry are skipped and counted.
func BuildMask(bounds image.Rectangle, regions []page.TextRegion, padding int) (*image.Gray, int) {
	mask := image.NewGray(bounds)
	skipped := 0

	for _, r := range regions {
		if !r.Box.Valid() {
			skipped++
			continue
		}
		switch r.Box.Kind() {
		case geometry.KindPolygon:
			fillPolygon(mask, r.Box.Points())
		default:
			fillRect(mask, r.Box.Rect().Expand(padding).Clamp(bounds).Image())
		}
	}
	return mask, skipped
}

// CountMasked returns the number of pixels set in the mask.
func CountMasked(mask *image.Gray) int {
	n := 0
	for _, v := range mask.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

func fillRect(mask *image.Gray, r image.Rectangle) {
	on := color.Gray{Y: MaskOn}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			mask.SetGray(x, y, on)
		}
	}
}

// fillPolygon sets every pixel whose center lies inside the polygon
// (even-odd rule).
func fillPolygon(mask *image.Gray, pts []image.Point) {
	box := geometry.Polygon(pts).Rect().Image().Intersect(mask.Rect)
	on := color.Gray{Y: MaskOn}
	for y := box.Min.Y; y < box.Max.Y; y++ {
		cy := float64(y) + 0.5
		for x := box.Min.X; x < box.Max.X; x++ {
			if insidePolygon(pts, float64(x)+0.5, cy) {
				mask.SetGray(x, y, on)
			}
		}
	}
}

func insidePolygon(pts []image.Point, x, y float64) bool {
	inside := false
	j := len(pts) - 1
	for i := range pts {
		xi, yi := float64(pts[i].X), float64(pts[i].Y)
		xj, yj := float64(pts[j].X), float64(pts[j].Y)
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}
