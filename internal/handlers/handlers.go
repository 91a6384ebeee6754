// Package handlers executes parsed commands against the desktop. Each
// intent family has one handler; the Dispatcher routes to it and
// translates handler outcomes into the engine's error taxonomy. OS input
// and screen capture are injected as narrow interfaces so every handler
// is testable without a display.
package handlers

import (
	"context"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/config"
	"github.com/xkilldash9x/handsfree-cli/internal/engine"
	"github.com/xkilldash9x/handsfree-cli/internal/models"
	"github.com/xkilldash9x/handsfree-cli/internal/ocr"
	"github.com/xkilldash9x/handsfree-cli/internal/resolve"
	"github.com/xkilldash9x/handsfree-cli/internal/store"
	"github.com/xkilldash9x/handsfree-cli/internal/vision"
	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

// MouseInjector moves and clicks the OS pointer.
type MouseInjector interface {
	Move(x, y int)
	Click(x, y int, button command.MouseButton)
	Position() (int, int)
}

// KeyboardInjector injects keystrokes. Keys use canonical lowercase
// names ("enter", "ctrl", "a").
type KeyboardInjector interface {
	TypeText(text string) error
	KeyDown(key string) error
	KeyUp(key string) error
}

// RegionSelector lets the user draw a capture region on screen.
type RegionSelector interface {
	Select(ctx context.Context) (geometry.Rect, error)
}

// Prompter asks the user for a value by voice and returns the transcript.
type Prompter interface {
	Prompt(ctx context.Context, question string) (string, error)
}

// Deps bundles everything the handlers need. All fields are required
// except Selector and Prompter, whose absence degrades the screen
// capture and sequence replay features.
type Deps struct {
	Cfg      *config.Config
	Logger   *zap.Logger
	Models   models.Client
	OCR      *ocr.Pipeline
	Resolver *resolve.Resolver
	Grabber  vision.Grabber
	Locator  *vision.Locator
	Finder   vision.TemplateFinder
	Images   vision.ImageLibrary
	Mouse    MouseInjector
	Keyboard KeyboardInjector
	Selector RegionSelector
	Prompter Prompter
	Store    *store.Sequences
	// Sleep is injectable so tests run without real delays.
	Sleep func(ctx context.Context, d time.Duration)
}

// Dispatcher routes parsed commands to their handlers.
type Dispatcher struct {
	deps   Deps
	keys   *keyAliases
	logger *zap.Logger
}

// NewDispatcher validates the dependency set and precomputes the
// keyboard alias embeddings.
func NewDispatcher(ctx context.Context, deps Deps) (*Dispatcher, error) {
	switch {
	case deps.Cfg == nil:
		return nil, fmt.Errorf("dispatcher requires a config")
	case deps.Logger == nil:
		return nil, fmt.Errorf("dispatcher requires a logger")
	case deps.Models == nil:
		return nil, fmt.Errorf("dispatcher requires a model client")
	case deps.OCR == nil:
		return nil, fmt.Errorf("dispatcher requires an ocr pipeline")
	case deps.Resolver == nil:
		return nil, fmt.Errorf("dispatcher requires a resolver")
	case deps.Grabber == nil:
		return nil, fmt.Errorf("dispatcher requires a screen grabber")
	case deps.Mouse == nil:
		return nil, fmt.Errorf("dispatcher requires a mouse injector")
	case deps.Keyboard == nil:
		return nil, fmt.Errorf("dispatcher requires a keyboard injector")
	case deps.Store == nil:
		return nil, fmt.Errorf("dispatcher requires a sequence store")
	}
	if deps.Sleep == nil {
		deps.Sleep = defaultSleep
	}
	keys, err := newKeyAliases(ctx, deps.Models)
	if err != nil {
		return nil, fmt.Errorf("embedding keyboard aliases: %w", err)
	}
	return &Dispatcher{
		deps:   deps,
		keys:   keys,
		logger: deps.Logger.With(zap.String("component", "handlers")),
	}, nil
}

// Dispatch implements engine.Dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, st *engine.State) error {
	switch st.Intent.Kind {
	case command.KindMouseClick:
		return d.handleMouse(ctx, st)
	case command.KindKeyboardWrite, command.KindKeyboardPress:
		return d.handleKeyboard(ctx, st)
	case command.KindTimerSleep:
		return d.handleTimer(ctx, st)
	case command.KindWaitForText, command.KindWaitForImage:
		return d.handleWaitFor(ctx, st)
	case command.KindScreenCapture:
		return d.handleScreenCapture(ctx, st)
	case command.KindVariableSet:
		return d.handleVariableSet(ctx, st)
	case command.KindLoopStart, command.KindLoopStop:
		return d.handleLoop(ctx, st)
	case command.KindConditionIf, command.KindConditionEndIf:
		return d.handleCondition(ctx, st)
	case command.KindSequenceStart, command.KindSequenceSave, command.KindSequencePlay,
		command.KindSequenceReset, command.KindSequenceClearPrev:
		return d.handleSequence(ctx, st)
	case command.KindToggleGPT:
		return d.handleToggleGPT(ctx, st)
	}
	return fmt.Errorf("%w: %s", command.ErrUnknownIntent, st.Intent)
}

// capture grabs the (possibly restricted) screen once.
func (d *Dispatcher) capture(ctx context.Context, st *engine.State) (image.Image, geometry.Point, error) {
	return vision.Screenshot(ctx, d.deps.Grabber, st.ScreenshotBox)
}

// captureAndOCR grabs the screen and runs recognition over it.
func (d *Dispatcher) captureAndOCR(ctx context.Context, st *engine.State, numberOnly bool) (image.Image, geometry.Point, []ocr.Line, error) {
	img, offset, err := d.capture(ctx, st)
	if err != nil {
		return nil, geometry.Point{}, nil, err
	}
	lines, err := d.deps.OCR.Run(ctx, img, offset, numberOnly)
	if err != nil {
		return nil, geometry.Point{}, nil, err
	}
	return img, offset, lines, nil
}

func defaultSleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
