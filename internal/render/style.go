package render

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Style holds the colors and fixed strings used when drawing.
type Style struct {
	Fill        color.Color // opaque background behind each region's text
	Ink         color.Color
	Shadow      color.Color
	Placeholder string // drawn when a region has no translation
	Diagnostic  string // drawn when the page has no translation at all
}

// DefaultStyle is white balloons, black ink and a light gray shadow.
func DefaultStyle() Style {
	return Style{
		Fill:        color.White,
		Ink:         color.Black,
		Shadow:      color.NRGBA{R: 200, G: 200, B: 200, A: 255},
		Placeholder: "[...]",
		Diagnostic:  "No translated text was produced for this page",
	}
}

// ParseStyle builds a style from hex colors ("#ffffff").
func ParseStyle(fill, ink, shadow, placeholder string) (Style, error) {
	s := DefaultStyle()

	for _, c := range []struct {
		name string
		hex  string
		dst  *color.Color
	}{
		{"fill", fill, &s.Fill},
		{"ink", ink, &s.Ink},
		{"shadow", shadow, &s.Shadow},
	} {
		if c.hex == "" {
			continue
		}
		parsed, err := colorful.Hex(c.hex)
		if err != nil {
			return Style{}, fmt.Errorf("invalid %s color %q: %w", c.name, c.hex, err)
		}
		*c.dst = opaque(parsed)
	}

	if placeholder != "" {
		s.Placeholder = placeholder
	}
	return s, nil
}

func opaque(c colorful.Color) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}
