package vision

import (
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

// Direction is a spatial relation relative to an anchor box.
type Direction int

const (
	Above Direction = iota
	Below
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Above:
		return "above"
	case Below:
		return "below"
	case Left:
		return "left"
	default:
		return "right"
	}
}

// Search modes for the spatial locator. Object detection uses grayscale
// gradients and loose thresholds; text detection uses color-aware
// gradients and tighter ones; box detection goes straight to the
// gap-between-segments strategy.
const (
	ModeObject = "object"
	ModeText   = "text"
	ModeBox    = "box"
)

// EdgeOptions tunes the edge-projection computation.
type EdgeOptions struct {
	// UseColor accumulates gradients per channel instead of grayscale,
	// which keeps low-contrast colored text visible.
	UseColor bool
	// ApplyBlur runs the blur+sharpen pass that suppresses anti-aliasing
	// noise before gradient extraction.
	ApplyBlur bool
	// EdgeDropout is the fraction of the gradient maximum below which
	// edge pixels are zeroed.
	EdgeDropout float64
	// ProjDropout is the fraction of the projection maximum below which
	// projection bins are zeroed.
	ProjDropout float64
}

// Projector produces 1-D edge-magnitude projections of an image region:
// xProj sums edges per column, yProj per row.
type Projector interface {
	Project(img image.Image, region geometry.Rect, opts EdgeOptions) (xProj, yProj []float64, err error)
}

// Threshold relaxation schedule. Each failed round loosens both dropouts
// slightly; past relaxGapPoint the gap strategy joins in, and at
// relaxCap the search gives up.
const (
	edgeRelaxStep = 0.001
	projRelaxStep = 0.01
	relaxGapPoint = 0.35
	relaxCap      = 0.6
)

// Locator resolves "above/below/left/right of" relations by scanning
// edge projections of the region beside an anchor box.
type Locator struct {
	projector Projector
	// maxDistance is the spatial awareness distance: how far from the
	// anchor the scan extends, in pixels.
	maxDistance int
	logger      *zap.Logger
}

// NewLocator builds a Locator with the given projection backend.
func NewLocator(projector Projector, maxDistance int, logger *zap.Logger) *Locator {
	return &Locator{
		projector:   projector,
		maxDistance: maxDistance,
		logger:      logger.With(zap.String("component", "spatial_locator")),
	}
}

// LocateRelative finds the nearest block of content in the given
// direction from the anchor box. It returns both the capture-local box
// (for re-entry checks) and the screen-absolute box (anchor + capture
// offset). Failure to find anything after full threshold relaxation is
// an error the caller treats as an unresolved target.
func (l *Locator) LocateRelative(img image.Image, anchor geometry.Rect, dir Direction, offset geometry.Point, mode string) (geometry.Rect, geometry.Rect, error) {
	if mode == "" {
		mode = ModeObject
	}

	// Minimum accepted extent: a fifth of the anchor's matching
	// dimension, floored so thin anchors don't match stray edges.
	minHeight := maxInt(10, anchor.H/5)
	minWidth := maxInt(15, anchor.W/5)

	opts := EdgeOptions{
		UseColor:    mode == ModeText,
		ApplyBlur:   true,
		EdgeDropout: 0.1,
		ProjDropout: 0.08,
	}
	if mode == ModeText {
		opts.EdgeDropout = 0.25
		opts.ProjDropout = 0.1
	}

	region, reverse, horizontal := l.searchRegion(img.Bounds(), anchor, dir)
	if region.Empty() {
		return geometry.Rect{}, geometry.Rect{}, fmt.Errorf("no room %s of anchor %+v", dir, anchor)
	}

	for {
		xProj, yProj, err := l.projector.Project(img, region, opts)
		if err != nil {
			return geometry.Rect{}, geometry.Rect{}, err
		}
		proj := yProj
		minExtent := minHeight
		if horizontal {
			proj = xProj
			minExtent = minWidth
		}

		segs := Segments(proj, reverse)

		if mode != ModeBox {
			if box, ok := l.pick(segs, minExtent, anchor, region, horizontal); ok {
				return box, box.Offset(offset), nil
			}
		}

		// Relax gradually; stray anti-aliasing stops mattering long
		// before real content does.
		opts.EdgeDropout += edgeRelaxStep
		opts.ProjDropout += projRelaxStep

		if opts.ProjDropout >= relaxGapPoint || mode == ModeBox {
			if box, ok := l.pick(Gaps(segs), minExtent, anchor, region, horizontal); ok {
				return box, box.Offset(offset), nil
			}
			if opts.ProjDropout >= relaxCap {
				l.logger.Debug("Spatial search exhausted",
					zap.String("direction", dir.String()), zap.String("mode", mode))
				return geometry.Rect{}, geometry.Rect{}, fmt.Errorf("nothing found %s of anchor after relaxation", dir)
			}
		}
	}
}

// pick accepts the first segment meeting the minimum extent and converts
// it to a box aligned with the anchor on the cross axis.
func (l *Locator) pick(segs []Segment, minExtent int, anchor, region geometry.Rect, horizontal bool) (geometry.Rect, bool) {
	for _, s := range segs {
		if s.Extent() < minExtent {
			continue
		}
		if horizontal {
			return geometry.Rect{X: region.X + s.Start, Y: anchor.Y, W: s.Extent(), H: anchor.H}, true
		}
		return geometry.Rect{X: anchor.X, Y: region.Y + s.Start, W: anchor.W, H: s.Extent()}, true
	}
	return geometry.Rect{}, false
}

// searchRegion crops the scan rectangle beside the anchor, clipped to the
// screen, and reports scan orientation. Scans toward decreasing
// coordinates (above/left) are reversed so the nearest segment comes
// first.
func (l *Locator) searchRegion(bounds image.Rectangle, a geometry.Rect, dir Direction) (region geometry.Rect, reverse, horizontal bool) {
	sad := l.maxDistance
	switch dir {
	case Above:
		region = geometry.FromImage(image.Rect(a.X-1, a.Y-sad, a.X+a.W+10, a.Y).Intersect(bounds))
		reverse = true
	case Below:
		region = geometry.FromImage(image.Rect(a.X-1, a.Y+a.H, a.X+a.W+10, a.Y+a.H+sad).Intersect(bounds))
	case Left:
		region = geometry.FromImage(image.Rect(a.X-sad, a.Y, a.X, a.Y+a.H).Intersect(bounds))
		reverse, horizontal = true, true
	case Right:
		region = geometry.FromImage(image.Rect(a.X+a.W, a.Y, a.X+a.W+sad, a.Y+a.H).Intersect(bounds))
		horizontal = true
	}
	return region, reverse, horizontal
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
