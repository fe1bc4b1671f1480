package geometry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
)

// Kind tags which variant a Box holds.
type Kind uint8

const (
	KindNone Kind = iota
	KindPolygon
	KindRect
)

func (k Kind) String() string {
	switch k {
	case KindPolygon:
		return "polygon"
	case KindRect:
		return "rect"
	default:
		return "none"
	}
}

// Box is either a polygon or an axis-aligned rectangle. The zero value is a
// box with no geometry.
type Box struct {
	kind   Kind
	points []image.Point
	rect   Rect
}

// Polygon builds a polygon box. The points are copied.
func Polygon(points []image.Point) Box {
	if len(points) == 0 {
		return Box{}
	}
	pts := make([]image.Point, len(points))
	copy(pts, points)
	return Box{kind: KindPolygon, points: pts}
}

// RectBox builds a rectangle box.
func RectBox(r Rect) Box {
	return Box{kind: KindRect, rect: NewRect(r.X, r.Y, r.Width, r.Height)}
}

func (b Box) Kind() Kind { return b.kind }

// Points returns a copy of the polygon points, or the four corners of a
// rectangle box.
func (b Box) Points() []image.Point {
	switch b.kind {
	case KindPolygon:
		pts := make([]image.Point, len(b.points))
		copy(pts, b.points)
		return pts
	case KindRect:
		r := b.rect
		return []image.Point{
			{r.X, r.Y}, {r.Right(), r.Y}, {r.Right(), r.Bottom()}, {r.X, r.Bottom()},
		}
	}
	return nil
}

// Rect normalizes the box to its bounding rectangle. Every consumer that
// needs rectangle geometry goes through here.
func (b Box) Rect() Rect {
	switch b.kind {
	case KindRect:
		return b.rect
	case KindPolygon:
		minX, minY := b.points[0].X, b.points[0].Y
		maxX, maxY := minX, minY
		for _, p := range b.points[1:] {
			minX = min(minX, p.X)
			minY = min(minY, p.Y)
			maxX = max(maxX, p.X)
			maxY = max(maxY, p.Y)
		}
		return NewRect(minX, minY, maxX-minX, maxY-minY)
	}
	return Rect{}
}

// Valid reports whether the box has usable geometry: a variant is set and
// its bounding rectangle has area.
func (b Box) Valid() bool {
	return b.kind != KindNone && !b.Rect().Empty()
}

// Clamp restricts the box to bounds. Polygon points are clamped
// individually; rectangles are intersected.
func (b Box) Clamp(bounds image.Rectangle) Box {
	switch b.kind {
	case KindPolygon:
		pts := make([]image.Point, len(b.points))
		for i, p := range b.points {
			pts[i] = image.Pt(
				min(max(p.X, bounds.Min.X), bounds.Max.X),
				min(max(p.Y, bounds.Min.Y), bounds.Max.Y),
			)
		}
		return Box{kind: KindPolygon, points: pts}
	case KindRect:
		return Box{kind: KindRect, rect: b.rect.Clamp(bounds)}
	}
	return b
}

// MarshalJSON encodes a polygon as [[x,y],...] and a rectangle as
// [x,y,width,height]. A box with no geometry encodes as null.
func (b Box) MarshalJSON() ([]byte, error) {
	switch b.kind {
	case KindPolygon:
		pairs := make([][2]int, len(b.points))
		for i, p := range b.points {
			pairs[i] = [2]int{p.X, p.Y}
		}
		return json.Marshal(pairs)
	case KindRect:
		return json.Marshal([4]int{b.rect.X, b.rect.Y, b.rect.Width, b.rect.Height})
	}
	return []byte("null"), nil
}

// UnmarshalJSON accepts both list forms plus an {x,y,width,height} object.
func (b *Box) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = Box{}
		return nil
	}

	var pairs [][]int
	if err := json.Unmarshal(data, &pairs); err == nil {
		pts := make([]image.Point, 0, len(pairs))
		for _, pair := range pairs {
			if len(pair) != 2 {
				return fmt.Errorf("polygon point must have 2 coordinates, got %d", len(pair))
			}
			pts = append(pts, image.Pt(pair[0], pair[1]))
		}
		*b = Polygon(pts)
		return nil
	}

	var tuple []int
	if err := json.Unmarshal(data, &tuple); err == nil {
		if len(tuple) != 4 {
			return fmt.Errorf("rectangle must have 4 values, got %d", len(tuple))
		}
		*b = RectBox(NewRect(tuple[0], tuple[1], tuple[2], tuple[3]))
		return nil
	}

	var obj Rect
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unrecognized box encoding: %s", data)
	}
	*b = RectBox(obj)
	return nil
}
