package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/engine"
	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

var boxNumbersRe = regexp.MustCompile(`\d+`)

// handleScreenCapture restricts future captures to a region: four spoken
// numbers ("focus 0 0 800 600"), a drawn selection, or "reset"/"full" to
// clear the restriction. Changing the region invalidates the OCR frame
// cache; stored boxes stay valid because they are screen-absolute.
func (d *Dispatcher) handleScreenCapture(ctx context.Context, st *engine.State) error {
	target := strings.ToLower(strings.TrimSpace(st.TargetText))

	switch {
	case target == "reset" || target == "full" || target == "full screen":
		st.ScreenshotBox = nil
		d.deps.OCR.Reset()
		d.logger.Info("Capture region cleared")
		return nil

	case len(boxNumbersRe.FindAllString(target, -1)) >= 4:
		nums := boxNumbersRe.FindAllString(target, -1)
		vals := make([]int, 4)
		for i := 0; i < 4; i++ {
			vals[i], _ = strconv.Atoi(nums[i])
		}
		box := geometry.Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
		if box.Empty() {
			return fmt.Errorf("capture region %v is empty", vals)
		}
		return d.setCaptureBox(st, box)

	default:
		if d.deps.Selector == nil {
			return fmt.Errorf("interactive region selection is not available")
		}
		box, err := d.deps.Selector.Select(ctx)
		if err != nil {
			return fmt.Errorf("region selection: %w", err)
		}
		if box.Empty() {
			d.logger.Info("Region selection cancelled")
			return nil
		}
		return d.setCaptureBox(st, box)
	}
}

func (d *Dispatcher) setCaptureBox(st *engine.State, box geometry.Rect) error {
	st.ScreenshotBox = &box
	d.deps.OCR.Reset()
	d.logger.Info("Capture region set",
		zap.Int("x", box.X), zap.Int("y", box.Y), zap.Int("w", box.W), zap.Int("h", box.H))
	return nil
}
