package handlers

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

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


// Shared fakes. Every handler runs against these; no display, no model
// host, no real sleeps.


// fakeModels serves embeddings from a fixed table (defaulting to one
// shared vector) and OCR lines from a script.
type fakeModels struct {
	vectors  map[string][]float64
	ocrLines [][]models.OCRItem
	ocrCalls int
}

func (f *fakeModels) Embed(_ context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[strings.ToLower(t)]; ok {
			out[i] = v
		} else {
			out[i] = []float64{0, 0, 1}
		}
	}
	return out, nil
}

func (f *fakeModels) Rewrite(_ context.Context, input string) (string, error) { return input, nil }

func (f *fakeModels) OCR(context.Context, image.Image, geometry.Point) ([][]models.OCRItem, error) {
	f.ocrCalls++
	return f.ocrLines, nil
}

type click struct {
	x, y   int
	button command.MouseButton
}

type stubMouse struct {
	clicks []click
	posX   int
	posY   int
}

func (m *stubMouse) Move(int, int) {}
func (m *stubMouse) Click(x, y int, button command.MouseButton) {
	m.clicks = append(m.clicks, click{x, y, button})
}
func (m *stubMouse) Position() (int, int) { return m.posX, m.posY }

// stubKeyboard records every injection in order, so chord ordering is
// observable.
type stubKeyboard struct {
	events []string
}

func (k *stubKeyboard) TypeText(text string) error {
	k.events = append(k.events, "type:"+text)
	return nil
}
func (k *stubKeyboard) KeyDown(key string) error {
	k.events = append(k.events, "down:"+key)
	return nil
}
func (k *stubKeyboard) KeyUp(key string) error {
	k.events = append(k.events, "up:"+key)
	return nil
}

type stubSelector struct {
	box geometry.Rect
	err error
}

func (s stubSelector) Select(context.Context) (geometry.Rect, error) { return s.box, s.err }

// stubPrompter answers prompts from a queue.
type stubPrompter struct {
	answers []string
	asked   []string
}

func (p *stubPrompter) Prompt(_ context.Context, question string) (string, error) {
	p.asked = append(p.asked, question)
	if len(p.answers) == 0 {
		return "", nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

type stubFinder struct {
	box geometry.Rect
	err error
}

func (f stubFinder) Find(context.Context, image.Image, string) (geometry.Rect, error) {
	return f.box, f.err
}

type stubGrabber struct{}

func (stubGrabber) Capture(context.Context) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 800, 600)), nil
}

// stubProjector emits a single synthetic content run on both axes.
type stubProjector struct {
	run [2]int
}

func (s stubProjector) Project(_ image.Image, region geometry.Rect, _ vision.EdgeOptions) ([]float64, []float64, error) {
	x := make([]float64, region.W)
	y := make([]float64, region.H)
	for i := s.run[0]; i < s.run[1]; i++ {
		if i < len(x) {
			x[i] = 1
		}
		if i < len(y) {
			y[i] = 1
		}
	}
	return x, y, nil
}

// fixture bundles a dispatcher with its observable fakes.
type fixture struct {
	d        *Dispatcher
	st       *engine.State
	models   *fakeModels
	mouse    *stubMouse
	keyboard *stubKeyboard
	prompter *stubPrompter
	sleeps   []time.Duration
	imageDir string
}

type fixtureOpt func(*fixture, *Deps)

func withOCRText(items ...models.OCRItem) fixtureOpt {
	return func(f *fixture, _ *Deps) {
		f.models.ocrLines = [][]models.OCRItem{items}
	}
}

func withVectors(v map[string][]float64) fixtureOpt {
	return func(f *fixture, _ *Deps) { f.models.vectors = v }
}

func withDeps(mut func(*Deps)) fixtureOpt {
	return func(_ *fixture, d *Deps) { mut(d) }
}

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	f := &fixture{
		models:   &fakeModels{},
		mouse:    &stubMouse{},
		keyboard: &stubKeyboard{},
		prompter: &stubPrompter{},
		imageDir: t.TempDir(),
	}

	pipeline, err := ocr.NewPipeline(f.models, config.Default().Vision, logger)
	require.NoError(t, err)
	resolver, err := resolve.NewResolver(f.models, config.Default().Matching, func(crop []byte) string {
		return string(crop)
	}, logger)
	require.NoError(t, err)
	sequences, err := store.Open(filepath.Join(t.TempDir(), "sequences.json"), logger)
	require.NoError(t, err)

	deps := Deps{
		Cfg:      config.Default(),
		Logger:   logger,
		Models:   f.models,
		OCR:      pipeline,
		Resolver: resolver,
		Grabber:  stubGrabber{},
		Locator:  vision.NewLocator(stubProjector{run: [2]int{30, 60}}, 450, logger),
		Finder:   stubFinder{box: geometry.Rect{X: 300, Y: 400, W: 40, H: 20}},
		Images:   vision.ImageLibrary{Dir: f.imageDir},
		Mouse:    f.mouse,
		Keyboard: f.keyboard,
		Selector: stubSelector{box: geometry.Rect{X: 1, Y: 2, W: 3, H: 4}},
		Prompter: f.prompter,
		Store:    sequences,
		Sleep:    func(_ context.Context, d time.Duration) { f.sleeps = append(f.sleeps, d) },
	}
	for _, opt := range opts {
		opt(f, &deps)
	}

	f.d, err = NewDispatcher(context.Background(), deps)
	require.NoError(t, err)

	f.st = engine.NewState(engine.NewDeque())
	return f
}

// dispatch primes the parse-result fields the engine would normally set
// and routes the command.
func (f *fixture) dispatch(ctx context.Context, intent command.Intent, target string, colors ...string) error {
	f.st.Intent = intent
	f.st.TargetText = target
	f.st.ColorList = colors
	if f.st.Current == nil {
		f.st.Current = command.NewContext(strings.TrimSpace(intent.String() + " " + target))
	}
	return f.d.Dispatch(ctx, f.st)
}

func (f *fixture) addLibraryImage(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.imageDir, name), []byte("png"), 0o644))
}

func ocrItem(text string, x, y, w, h int, crop string) models.OCRItem {
	return models.OCRItem{Text: text, BBox: geometry.Rect{X: x, Y: y, W: w, H: h}, Crop: []byte(crop)}
}
