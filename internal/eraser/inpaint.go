package eraser

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Inpainter reconstructs the masked pixels of src from their surroundings.
type Inpainter interface {
	Inpaint(src image.Image, mask *image.Gray, radius int) (image.Image, error)
}

// ErrNothingToSample is returned when the mask leaves no known pixel to
// fill from.
var ErrNothingToSample = errors.New("mask covers the whole image")

// NativeInpainter is a pure-Go fill that works inward from the mask border:
// on each pass every masked pixel touching a known pixel takes the
// inverse-square-distance weighted mean of the known pixels within the
// radius, then becomes known itself.
type NativeInpainter struct{}

var _ Inpainter = NativeInpainter{}

func (NativeInpainter) Inpaint(src image.Image, mask *image.Gray, radius int) (image.Image, error) {
	b := src.Bounds()
	if mask.Rect != b {
		return nil, fmt.Errorf("mask bounds %v do not match image bounds %v", mask.Rect, b)
	}
	if radius < 1 {
		return nil, fmt.Errorf("inpaint radius must be positive, got %d", radius)
	}

	dst := imaging.Clone(src) // origin moves to (0,0)
	w, h := b.Dx(), b.Dy()

	known := make([]bool, w*h)
	var pending []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.GrayAt(b.Min.X+x, b.Min.Y+y).Y == 0 {
				known[y*w+x] = true
			} else {
				pending = append(pending, y*w+x)
			}
		}
	}
	if len(pending) == 0 {
		return dst, nil
	}
	if len(pending) == w*h {
		return nil, ErrNothingToSample
	}

	type fill struct {
		idx  int
		rgba [4]uint8
	}

	for len(pending) > 0 {
		var front []fill
		var rest []int

		for _, idx := range pending {
			x, y := idx%w, idx/w
			if !touchesKnown(known, w, h, x, y) {
				rest = append(rest, idx)
				continue
			}
			front = append(front, fill{idx: idx, rgba: sample(dst, known, w, h, x, y, radius)})
		}
		if len(front) == 0 {
			return nil, ErrNothingToSample
		}

		for _, f := range front {
			off := (f.idx/w)*dst.Stride + (f.idx%w)*4
			copy(dst.Pix[off:off+4], f.rgba[:])
			known[f.idx] = true
		}
		pending = rest
	}

	return dst, nil
}

func touchesKnown(known []bool, w, h, x, y int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			nx, ny := x+dx, y+dy
			if (dx != 0 || dy != 0) && nx >= 0 && ny >= 0 && nx < w && ny < h && known[ny*w+nx] {
				return true
			}
		}
	}
	return false
}

func sample(img *image.NRGBA, known []bool, w, h, x, y, radius int) [4]uint8 {
	var sum [4]float64
	var total float64
	r2 := radius * radius

	for dy := -radius; dy <= radius; dy++ {
		ny := y + dy
		if ny < 0 || ny >= h {
			continue
		}
		for dx := -radius; dx <= radius; dx++ {
			nx := x + dx
			d2 := dx*dx + dy*dy
			if nx < 0 || nx >= w || d2 == 0 || d2 > r2 || !known[ny*w+nx] {
				continue
			}
			weight := 1 / float64(d2)
			off := ny*img.Stride + nx*4
			for c := 0; c < 4; c++ {
				sum[c] += weight * float64(img.Pix[off+c])
			}
			total += weight
		}
	}

	var out [4]uint8
	for c := 0; c < 4; c++ {
		out[c] = uint8(sum[c]/total + 0.5)
	}
	return out
}
