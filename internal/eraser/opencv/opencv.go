//go:build opencv

// Package opencv provides an OpenCV (Telea) inpainter. It needs OpenCV and
// is only compiled with the "opencv" build tag:
//
//	go build -tags opencv ./...
//
// Without the tag New returns an inpainter that always fails, which the
// eraser turns into an unmodified (degraded) page.
package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/adverant/nexus/pagetranslate-worker/internal/eraser"
)

// Available reports whether this build carries OpenCV.
const Available = true

// Inpainter runs cv::inpaint with the Telea method.
type Inpainter struct{}

var _ eraser.Inpainter = Inpainter{}

// New creates an OpenCV inpainter.
func New() eraser.Inpainter {
	return Inpainter{}
}

func (Inpainter) Inpaint(src image.Image, mask *image.Gray, radius int) (image.Image, error) {
	srcMat, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return nil, fmt.Errorf("convert source: %w", err)
	}
	defer srcMat.Close()

	maskMat, err := gocv.ImageGrayToMatGray(mask)
	if err != nil {
		return nil, fmt.Errorf("convert mask: %w", err)
	}
	defer maskMat.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	gocv.Inpaint(srcMat, maskMat, &dst, float32(radius), gocv.Telea)
	if dst.Empty() {
		return nil, fmt.Errorf("opencv inpaint produced no output")
	}

	out, err := dst.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert result: %w", err)
	}
	return out, nil
}
