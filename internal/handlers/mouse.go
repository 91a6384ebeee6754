package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/engine"
	"github.com/xkilldash9x/handsfree-cli/internal/vision"
	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

// clickVarPause separates clicks on consecutive variable matches so the
// UI can react between them.
const clickVarPause = time.Second

func (d *Dispatcher) handleMouse(ctx context.Context, st *engine.State) error {
	b := st.Intent.Buttons
	switch {
	case b.Has(command.BtnImage):
		return d.clickImage(ctx, st)
	case b.HasAny(command.BtnVarAll | command.BtnVarTop):
		return d.clickVariable(ctx, st)
	case b.HasAny(command.BtnSpatialAny):
		return d.clickSpatial(ctx, st)
	default:
		return d.clickText(ctx, st)
	}
}

// clickText resolves the spoken target against OCR output and clicks its
// center. An empty target clicks at the current pointer position, which
// is how bare "double click" works.
func (d *Dispatcher) clickText(ctx context.Context, st *engine.State) error {
	if strings.TrimSpace(st.TargetText) == "" {
		x, y := d.deps.Mouse.Position()
		d.deps.Mouse.Click(x, y, st.Intent.Buttons)
		return nil
	}

	_, _, lines, err := d.captureAndOCR(ctx, st, false)
	if err != nil {
		return err
	}
	matches, err := d.deps.Resolver.ResolveText(ctx, st.TargetText, st.ColorList, lines, false)
	if err != nil {
		return err
	}
	c := matches[0].BBox.Center()
	d.logger.Info("Clicking target",
		zap.String("target", st.TargetText), zap.String("match", matches[0].Text),
		zap.Int("x", c.X), zap.Int("y", c.Y))
	d.deps.Mouse.Click(c.X, c.Y, st.Intent.Buttons)
	return nil
}

// clickImage finds the library image whose name best matches the target
// and clicks where it appears on screen.
func (d *Dispatcher) clickImage(ctx context.Context, st *engine.State) error {
	if d.deps.Finder == nil {
		return fmt.Errorf("image clicking requires a template finder")
	}
	img, offset, err := d.capture(ctx, st)
	if err != nil {
		return err
	}
	names, err := d.deps.Images.Names()
	if err != nil {
		return err
	}
	name, err := d.deps.Resolver.BestName(ctx, st.TargetText, names)
	if err != nil {
		return err
	}
	path, err := d.deps.Images.PathFor(name)
	if err != nil {
		return err
	}
	box, err := d.deps.Finder.Find(ctx, img, path)
	if err != nil {
		return fmt.Errorf("%w: %v", command.ErrNoTargetResolved, err)
	}
	c := box.Offset(offset).Center()
	d.logger.Info("Clicking image", zap.String("image", name), zap.Int("x", c.X), zap.Int("y", c.Y))
	d.deps.Mouse.Click(c.X, c.Y, st.Intent.Buttons)
	return nil
}

// clickVariable clicks the boxes previously captured into a variable:
// all of them, or just the top-ranked one.
func (d *Dispatcher) clickVariable(ctx context.Context, st *engine.State) error {
	name, err := d.deps.Resolver.BestName(ctx, st.TargetText, st.VariableNames())
	if err != nil {
		return err
	}
	v := st.Variables[name]
	if v == nil || len(v.Values) == 0 {
		return fmt.Errorf("%w: variable %q has no values", command.ErrNoTargetResolved, name)
	}

	values := v.Values
	if st.Intent.Buttons.Has(command.BtnVarTop) {
		values = values[:1]
	}
	for i, val := range values {
		c := val.BBox.Center()
		d.logger.Info("Clicking variable match",
			zap.String("variable", name), zap.String("match", val.Match),
			zap.Int("x", c.X), zap.Int("y", c.Y))
		d.deps.Mouse.Click(c.X, c.Y, st.Intent.Buttons)
		if i < len(values)-1 {
			d.deps.Sleep(ctx, clickVarPause)
		}
	}
	return nil
}

// clickSpatial resolves an anchor by text, then clicks the nearest
// content block in the requested direction. The target may carry a
// search mode after a pipe: "username|text".
func (d *Dispatcher) clickSpatial(ctx context.Context, st *engine.State) error {
	if d.deps.Locator == nil {
		return fmt.Errorf("spatial clicking requires a locator")
	}
	target, mode := splitPipe(st.TargetText)
	if mode == "" {
		mode = vision.ModeObject
	}

	img, offset, err := d.capture(ctx, st)
	if err != nil {
		return err
	}
	lines, err := d.deps.OCR.Run(ctx, img, offset, false)
	if err != nil {
		return err
	}
	matches, err := d.deps.Resolver.ResolveText(ctx, target, st.ColorList, lines, false)
	if err != nil {
		return err
	}

	// OCR boxes are screen-absolute; the locator works in capture-local
	// coordinates.
	anchor := matches[0].BBox.Offset(geometry.Point{X: -offset.X, Y: -offset.Y})
	dir := spatialDirection(st.Intent.Buttons)
	_, absolute, err := d.deps.Locator.LocateRelative(img, anchor, dir, offset, mode)
	if err != nil {
		return fmt.Errorf("%w: %v", command.ErrNoTargetResolved, err)
	}

	c := absolute.Center()
	d.logger.Info("Clicking relative to anchor",
		zap.String("anchor", matches[0].Text), zap.String("direction", dir.String()),
		zap.Int("x", c.X), zap.Int("y", c.Y))
	d.deps.Mouse.Click(c.X, c.Y, st.Intent.Buttons)
	return nil
}

func spatialDirection(b command.MouseButton) vision.Direction {
	switch {
	case b.Has(command.BtnSpatialAbove):
		return vision.Above
	case b.Has(command.BtnSpatialBelow):
		return vision.Below
	case b.Has(command.BtnSpatialLeft):
		return vision.Left
	default:
		return vision.Right
	}
}

// splitPipe splits "target|extra" into its halves, trimming both.
func splitPipe(s string) (string, string) {
	parts := strings.SplitN(s, "|", 2)
	if len(parts) == 1 {
		return strings.TrimSpace(parts[0]), ""
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
