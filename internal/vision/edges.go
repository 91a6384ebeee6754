package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

// ScharrProjector computes edge-magnitude projections with OpenCV Scharr
// gradients. It is the production Projector; tests substitute a pure-Go
// stub.
type ScharrProjector struct{}

// Project implements Projector.
func (ScharrProjector) Project(img image.Image, region geometry.Rect, opts EdgeOptions) ([]float64, []float64, error) {
	crop := region.Clip(img.Bounds())
	if crop.Empty() {
		return nil, nil, fmt.Errorf("empty projection region %+v", region)
	}

	src, err := imageToMat(img, crop)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	work := gocv.NewMat()
	defer work.Close()

	if opts.ApplyBlur {
		// Blur then unsharp-mask. Anti-aliased font edges smear into the
		// blur while real content boundaries survive the re-sharpen.
		blurred := gocv.NewMat()
		gocv.GaussianBlur(src, &blurred, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)
		gocv.AddWeighted(src, 1.5, blurred, -0.5, 0, &work)
		blurred.Close()
	} else {
		src.CopyTo(&work)
	}

	smoothed := gocv.NewMat()
	defer smoothed.Close()
	gocv.BilateralFilter(work, &smoothed, 9, 75, 75)

	edges := gocv.NewMat()
	defer edges.Close()
	if opts.UseColor {
		if err := colorEdges(smoothed, &edges); err != nil {
			return nil, nil, err
		}
	} else {
		gray := gocv.NewMat()
		gocv.CvtColor(smoothed, &gray, gocv.ColorBGRToGray)
		grayEdges(gray, &edges)
		gray.Close()
	}

	rows, cols := edges.Rows(), edges.Cols()
	xProj := make([]float64, cols)
	yProj := make([]float64, rows)

	// First-stage dropout: zero edge pixels below a fraction of the
	// strongest gradient before projecting.
	var edgeMax float64
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if v := float64(edges.GetUCharAt(y, x)); v > edgeMax {
				edgeMax = v
			}
		}
	}
	edgeFloor := edgeMax * opts.EdgeDropout
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := float64(edges.GetUCharAt(y, x))
			if v <= edgeFloor {
				continue
			}
			xProj[x] += v
			yProj[y] += v
		}
	}

	applyDropout(xProj, opts.ProjDropout)
	applyDropout(yProj, opts.ProjDropout)
	return xProj, yProj, nil
}

// grayEdges writes the combined absolute Scharr response of a grayscale
// mat into dst.
func grayEdges(gray gocv.Mat, dst *gocv.Mat) {
	gx := gocv.NewMat()
	defer gx.Close()
	gy := gocv.NewMat()
	defer gy.Close()
	gocv.Scharr(gray, &gx, gocv.MatTypeCV16S, 1, 0, 1, 0, gocv.BorderDefault)
	gocv.Scharr(gray, &gy, gocv.MatTypeCV16S, 0, 1, 1, 0, gocv.BorderDefault)

	ax := gocv.NewMat()
	defer ax.Close()
	ay := gocv.NewMat()
	defer ay.Close()
	gocv.ConvertScaleAbs(gx, &ax, 1, 0)
	gocv.ConvertScaleAbs(gy, &ay, 1, 0)
	gocv.AddWeighted(ax, 0.5, ay, 0.5, 0, dst)
}

// colorEdges takes the per-channel maximum gradient so colored text on a
// similar-luminance background still projects.
func colorEdges(bgr gocv.Mat, dst *gocv.Mat) error {
	channels := gocv.Split(bgr)
	if len(channels) != 3 {
		for _, ch := range channels {
			ch.Close()
		}
		return fmt.Errorf("expected 3 channels, got %d", len(channels))
	}
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	for i, ch := range channels {
		edge := gocv.NewMat()
		grayEdges(ch, &edge)
		if i == 0 {
			edge.CopyTo(dst)
		} else {
			gocv.Max(*dst, edge, dst)
		}
		edge.Close()
	}
	return nil
}

// applyDropout zeroes projection bins below a fraction of the maximum.
func applyDropout(proj []float64, frac float64) {
	var max float64
	for _, v := range proj {
		if v > max {
			max = v
		}
	}
	floor := max * frac
	for i, v := range proj {
		if v <= floor {
			proj[i] = 0
		}
	}
}

// imageToMat converts the cropped region of a Go image to a BGR mat.
func imageToMat(img image.Image, crop geometry.Rect) (gocv.Mat, error) {
	mat := gocv.NewMatWithSize(crop.H, crop.W, gocv.MatTypeCV8UC3)
	for y := 0; y < crop.H; y++ {
		for x := 0; x < crop.W; x++ {
			r, g, b, _ := img.At(crop.X+x, crop.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat, nil
}
