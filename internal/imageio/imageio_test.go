package imageio

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.SetNRGBA(1, 1, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestDetectMimeType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0}, "image/png"},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"},
		{"gif", []byte("GIF89a...."), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "image/webp"},
		{"tiff", []byte{0x49, 0x49, 0x2A, 0x00}, "image/tiff"},
		{"bmp", []byte("BM\x00\x00\x00\x00"), "image/bmp"},
		{"pdf", []byte("%PDF-1.7"), "application/pdf"},
		{"short", []byte{0x89}, ""},
		{"text", []byte("hello world"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMimeType(tt.data))
		})
	}
}

func TestDecode(t *testing.T) {
	img, mime, err := Decode(pngBytes(t, 12, 7))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, image.Pt(12, 7), img.Bounds().Size())

	_, mime, err = Decode([]byte("%PDF-1.7 not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, "application/pdf", mime)

	_, _, err = Decode([]byte("garbage"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSaveAndLoadBitmap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.png")
	img := image.NewNRGBA(image.Rect(0, 0, 5, 4))

	require.NoError(t, SaveBitmap(img, path))
	loaded, err := LoadBitmap(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), loaded.Bounds())

	_, err = LoadBitmap(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, imaging.JPEG, Format("jpg"))
	assert.Equal(t, imaging.JPEG, Format("scan.JPEG"))
	assert.Equal(t, imaging.PNG, Format("whatever"))
	assert.Equal(t, ".jpg", Extension(imaging.JPEG))
	assert.Equal(t, ".png", Extension(imaging.PNG))
	assert.Equal(t, "image/png", MimeType(imaging.PNG))
	assert.Equal(t, "image/jpeg", MimeType(imaging.JPEG))
	assert.Equal(t, "chapter1_p03_translated.png", OutputName("/in/chapter1_p03.jpg", imaging.PNG))
	assert.Equal(t, "page_translated.jpg", OutputName("", imaging.JPEG))
}

func TestLoaderSources(t *testing.T) {
	data := pngBytes(t, 3, 3)
	dir := t.TempDir()
	path := filepath.Join(dir, "p.png")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	l := NewLoader(1 << 20)
	ctx := context.Background()

	got, err := l.Load(ctx, Source{Buffer: data, Path: "/ignored"})
	require.NoError(t, err)
	assert.Equal(t, data, got)

	got, err = l.Load(ctx, Source{Path: path})
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, err = l.Load(ctx, Source{})
	assert.Error(t, err)

	_, err = NewLoader(4).Load(ctx, Source{Buffer: data})
	assert.ErrorContains(t, err, "exceeds maximum")
}

func TestLoaderDownloadRetries(t *testing.T) {
	data := pngBytes(t, 3, 3)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := NewLoader(1 << 20)
	l.retryDelay = time.Millisecond

	got, err := l.Load(context.Background(), Source{URL: srv.URL + "/p.png"})
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLoaderDownloadNotFoundIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewLoader(1 << 20)
	l.retryDelay = time.Millisecond

	_, err := l.Load(context.Background(), Source{URL: srv.URL})
	assert.ErrorContains(t, err, "404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
