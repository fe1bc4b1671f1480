// Package geometry holds the box primitives shared by grouping, erasure and
// rendering: an axis-aligned Rect, a Box that is either a polygon or a
// rectangle, and the distance/overlap math the grouper relies on.
package geometry

import "image"

// Rect is an axis-aligned rectangle with non-negative size.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRect builds a Rect, clamping negative sizes to zero.
func NewRect(x, y, w, h int) Rect {
	return Rect{X: x, Y: y, Width: max(w, 0), Height: max(h, 0)}
}

// FromImageRect converts an image.Rectangle.
func FromImageRect(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

func (r Rect) Right() int  { return r.X + r.Width }
func (r Rect) Bottom() int { return r.Y + r.Height }

// Empty reports whether the rectangle covers no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Image converts to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.Right(), r.Bottom())
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// Expand grows the rectangle by pad on every side.
func (r Rect) Expand(pad int) Rect {
	return NewRect(r.X-pad, r.Y-pad, r.Width+2*pad, r.Height+2*pad)
}

// Clamp intersects the rectangle with bounds. The result may be empty.
func (r Rect) Clamp(bounds image.Rectangle) Rect {
	return FromImageRect(r.Image().Intersect(bounds))
}

// VerticalGap is the distance from the bottom of the upper box to the top of
// the lower one. It is negative when the boxes overlap vertically.
func VerticalGap(a, b Rect) int {
	upper, lower := a, b
	if b.Y < a.Y {
		upper, lower = b, a
	}
	return lower.Y - upper.Bottom()
}

// HorizontalOverlap is the length of the intersection of the two x-ranges,
// never negative.
func HorizontalOverlap(a, b Rect) int {
	left := max(a.X, b.X)
	right := min(a.Right(), b.Right())
	return max(right-left, 0)
}

// BoundingUnion returns the smallest rectangle covering all rects.
func BoundingUnion(rects ...Rect) Rect {
	if len(rects) == 0 {
		return Rect{}
	}
	minX, minY := rects[0].X, rects[0].Y
	maxX, maxY := rects[0].Right(), rects[0].Bottom()
	for _, r := range rects[1:] {
		minX = min(minX, r.X)
		minY = min(minY, r.Y)
		maxX = max(maxX, r.Right())
		maxY = max(maxY, r.Bottom())
	}
	return NewRect(minX, minY, maxX-minX, maxY-minY)
}
