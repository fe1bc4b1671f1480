//go:build !opencv

package opencv

import (
	"errors"
	"image"

	"github.com/adverant/nexus/pagetranslate-worker/internal/eraser"
)

// Available reports whether this build carries OpenCV.
const Available = false

// ErrNotEnabled is returned by every call in builds without OpenCV.
var ErrNotEnabled = errors.New("opencv support not enabled (build with -tags opencv)")

// Inpainter is a placeholder that always fails.
type Inpainter struct{}

var _ eraser.Inpainter = Inpainter{}

// New creates the placeholder inpainter.
func New() eraser.Inpainter {
	return Inpainter{}
}

func (Inpainter) Inpaint(image.Image, *image.Gray, int) (image.Image, error) {
	return nil, ErrNotEnabled
}
