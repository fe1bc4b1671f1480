// Package imageio loads, decodes and encodes page bitmaps.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the webp decoder with image.Decode
)

// ErrUnsupportedFormat is returned for data that is not a supported image.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var supported = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/webp": true,
}

// DetectMimeType sniffs the image type from magic bytes. It returns "" for
// unknown data.
func DetectMimeType(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	// PNG: 0x89 'P' 'N' 'G' 0x0D 0x0A 0x1A 0x0A
	if len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}) {
		return "image/png"
	}

	// JPEG: 0xFF 0xD8 0xFF
	if bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}) {
		return "image/jpeg"
	}

	// GIF: 'G' 'I' 'F' '8' ('7' or '9') 'a'
	if bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a")) {
		return "image/gif"
	}

	// WebP: 'R' 'I' 'F' 'F' .... 'W' 'E' 'B' 'P'
	if len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}

	// TIFF: little-endian or big-endian byte order mark
	if bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}) || bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}) {
		return "image/tiff"
	}

	// BMP: 'B' 'M'
	if bytes.HasPrefix(data, []byte("BM")) {
		return "image/bmp"
	}

	// PDF pages have to be rasterized before they reach this worker
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return "application/pdf"
	}

	return ""
}

// Decode decodes an encoded page image, applying EXIF orientation. It
// returns the sniffed mime type alongside the bitmap.
func Decode(data []byte) (image.Image, string, error) {
	mime := DetectMimeType(data)
	if !supported[mime] {
		if mime == "" {
			mime = "unknown"
		}
		return nil, mime, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, mime, fmt.Errorf("decode %s: %w", mime, err)
	}
	return img, mime, nil
}

// LoadBitmap reads and decodes an image file.
func LoadBitmap(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("load bitmap %s: %w", path, err)
	}
	return img, nil
}

// SaveBitmap encodes img to path; the format follows the file extension.
func SaveBitmap(img image.Image, path string) error {
	if err := imaging.Save(img, path, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("save bitmap %s: %w", path, err)
	}
	return nil
}

// Format resolves an output format name ("png", "jpg", ...) or a file name.
// Unknown names fall back to PNG.
func Format(nameOrExt string) imaging.Format {
	name := strings.ToLower(nameOrExt)
	if !strings.Contains(name, ".") {
		name = "page." + name
	}
	f, err := imaging.FormatFromFilename(name)
	if err != nil {
		return imaging.PNG
	}
	return f
}

// Extension returns the file extension (with dot) for a format.
func Extension(f imaging.Format) string {
	switch f {
	case imaging.JPEG:
		return ".jpg"
	default:
		return "." + strings.ToLower(f.String())
	}
}

// MimeType returns the mime type for a format.
func MimeType(f imaging.Format) string {
	if f == imaging.JPEG {
		return "image/jpeg"
	}
	return "image/" + strings.TrimPrefix(Extension(f), ".")
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, f imaging.Format) error {
	if err := imaging.Encode(w, img, f, imaging.JPEGQuality(95)); err != nil {
		return fmt.Errorf("encode %s: %w", f, err)
	}
	return nil
}

// OutputName derives the rendered file name from the page's input name.
func OutputName(input string, f imaging.Format) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "page"
	}
	return base + "_translated" + Extension(f)
}
