// Package vision implements the screen-side algorithms of the pipeline:
// capture and perceptual diffing, edge-projection analysis for spatial
// relations, text-color classification, and template image search.
package vision

import (
	"context"
	"hash/fnv"
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

// Grabber captures the primary display. Implementations live at the OS
// boundary; the pipeline only consumes this interface.
type Grabber interface {
	Capture(ctx context.Context) (image.Image, error)
}

// Screenshot captures the screen and crops it to box when one is set.
// The returned offset is the crop origin, used to re-base box coordinates
// to screen-absolute ones downstream.
func Screenshot(ctx context.Context, g Grabber, box *geometry.Rect) (image.Image, geometry.Point, error) {
	img, err := g.Capture(ctx)
	if err != nil {
		return nil, geometry.Point{}, err
	}
	if box == nil || box.Empty() {
		return img, geometry.Point{}, nil
	}
	crop := box.Clip(img.Bounds())
	out := image.NewRGBA(image.Rect(0, 0, crop.W, crop.H))
	draw.Draw(out, out.Bounds(), img, crop.ToImage().Min, draw.Src)
	return out, geometry.Point{X: crop.X, Y: crop.Y}, nil
}

// diffSample is the edge length screenshots are downsampled to before
// comparison; enough to catch a cursor blink, cheap enough to run every
// cycle.
const diffSample = 128

// DiffPercent returns the mean absolute per-channel difference between
// two images as a fraction in [0,1]. Differently sized images always
// count as fully different.
func DiffPercent(a, b image.Image) float64 {
	if a == nil || b == nil {
		return 1
	}
	if a.Bounds().Dx() != b.Bounds().Dx() || a.Bounds().Dy() != b.Bounds().Dy() {
		return 1
	}
	da := downsample(a)
	db := downsample(b)
	var total float64
	for i := range da.Pix {
		d := int(da.Pix[i]) - int(db.Pix[i])
		if d < 0 {
			d = -d
		}
		total += float64(d)
	}
	return total / float64(len(da.Pix)*255)
}

func downsample(img image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, diffSample, diffSample))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// Hash returns a cheap content hash of the downsampled image, used to
// detect byte-identical screens without holding raw frames.
func Hash(img image.Image) uint64 {
	h := fnv.New64a()
	if img != nil {
		_, _ = h.Write(downsample(img).Pix)
	}
	return h.Sum64()
}
