// Package desktop is the OS boundary: screen capture and input
// injection via robotgo. Everything here is a thin adapter; policy
// (what to click, when) lives in the handlers.
package desktop

import (
	"context"
	"fmt"
	"image"

	"github.com/go-vgo/robotgo"
	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

// Grabber captures the primary display.
type Grabber struct{}

// Capture implements vision.Grabber.
func (Grabber) Capture(_ context.Context) (image.Image, error) {
	img, err := robotgo.CaptureImg()
	if err != nil {
		return nil, fmt.Errorf("screen capture: %w", err)
	}
	return img, nil
}

// Mouse injects pointer input.
type Mouse struct {
	logger *zap.Logger
}

// NewMouse builds the pointer adapter.
func NewMouse(logger *zap.Logger) *Mouse {
	return &Mouse{logger: logger.With(zap.String("component", "mouse"))}
}

// Move implements handlers.MouseInjector.
func (m *Mouse) Move(x, y int) {
	robotgo.Move(x, y)
}

// Position implements handlers.MouseInjector.
func (m *Mouse) Position() (int, int) {
	return robotgo.Location()
}

// Click moves to the point and performs the click the button bits
// describe. The tiny pre-click wiggle makes hover-sensitive UIs notice
// the pointer before the press lands.
func (m *Mouse) Click(x, y int, button command.MouseButton) {
	robotgo.Move(x, y)
	robotgo.MilliSleep(100)
	robotgo.Move(x+1, y+1)
	robotgo.MilliSleep(100)

	shift := button.HasAny(command.BtnShiftAny)
	if shift {
		robotgo.KeyToggle("shift", "down")
		robotgo.MilliSleep(50)
	}

	name := buttonName(button.Physical())
	clicks := 1
	if button.Has(command.BtnDouble) {
		clicks = 2
	}
	for i := 0; i < clicks; i++ {
		robotgo.Click(name, false)
		if clicks > 1 {
			robotgo.MilliSleep(50)
		}
	}

	if shift {
		robotgo.KeyToggle("shift", "up")
	}
	m.logger.Debug("Clicked",
		zap.Int("x", x), zap.Int("y", y), zap.String("button", name), zap.Int("clicks", clicks))
}

func buttonName(b command.MouseButton) string {
	switch b {
	case command.BtnRight:
		return "right"
	case command.BtnMiddle:
		return "center"
	default:
		return "left"
	}
}

// Keyboard injects keystrokes.
type Keyboard struct{}

// TypeText implements handlers.KeyboardInjector.
func (Keyboard) TypeText(text string) error {
	robotgo.TypeStr(text)
	return nil
}

// KeyDown implements handlers.KeyboardInjector.
func (Keyboard) KeyDown(key string) error {
	return robotgo.KeyToggle(key, "down")
}

// KeyUp implements handlers.KeyboardInjector.
func (Keyboard) KeyUp(key string) error {
	return robotgo.KeyToggle(key, "up")
}

// NoSelector is the RegionSelector used when no overlay UI is built in.
// Users restrict the capture region by speaking coordinates instead.
type NoSelector struct{}

// Select implements handlers.RegionSelector.
func (NoSelector) Select(context.Context) (geometry.Rect, error) {
	return geometry.Rect{}, fmt.Errorf("interactive region selection is not supported on this build; say the region as numbers instead")
}
