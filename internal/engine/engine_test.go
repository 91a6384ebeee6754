package engine

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/config"
	"github.com/xkilldash9x/handsfree-cli/internal/models"
	"github.com/xkilldash9x/handsfree-cli/internal/resolve"
	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)


// Fakes


// fakeClient serves one shared embedding vector, which reduces the
// hybrid score to its phonetic and lexical parts, and a scriptable
// rewrite model.
type fakeClient struct {
	rewrite    func(string) (string, error)
	embedCalls int
}

func (f *fakeClient) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.embedCalls++
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0, 0, 1}
	}
	return out, nil
}

func (f *fakeClient) Rewrite(_ context.Context, input string) (string, error) {
	if f.rewrite == nil {
		return input, nil
	}
	return f.rewrite(input)
}

func (f *fakeClient) OCR(context.Context, image.Image, geometry.Point) ([][]models.OCRItem, error) {
	return nil, nil
}

// fakeDispatcher records dispatches and fails with err until it runs out
// of scripted failures.
type fakeDispatcher struct {
	err     error
	calls   int
	intents []command.Intent
	targets []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, st *State) error {
	f.calls++
	f.intents = append(f.intents, st.Intent)
	f.targets = append(f.targets, st.TargetText)
	return f.err
}

func testAliases() []resolve.EventAlias {
	vec := []float64{0, 0, 1}
	return []resolve.EventAlias{
		{Phrase: "click", Intent: command.Intent{Kind: command.KindMouseClick, Buttons: command.BtnLeft}, Embedding: vec},
		{Phrase: "write", Intent: command.Intent{Kind: command.KindKeyboardWrite}, Embedding: vec},
		{Phrase: "play", Intent: command.Intent{Kind: command.KindSequencePlay}, Embedding: vec},
	}
}

func newTestEngine(t *testing.T, cfg *config.Config, client *fakeClient, d Dispatcher) (*Engine, *State) {
	t.Helper()
	st := NewState(NewDeque())
	st.EventAliases = testAliases()
	e, err := New(cfg, client, d, st, zaptest.NewLogger(t))
	require.NoError(t, err)
	return e, st
}

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Engine.RetryBackoff = 0
	cfg.Engine.QueuePollInterval = time.Millisecond
	return cfg
}


// Processing


func TestProcess_HappyPath(t *testing.T) {
	d := &fakeDispatcher{}
	e, st := newTestEngine(t, fastConfig(), &fakeClient{}, d)

	e.Process(context.Background(), command.NewContext("click the submit button."))

	require.Equal(t, 1, d.calls)
	assert.Equal(t, command.KindMouseClick, st.Intent.Kind)
	assert.Equal(t, "click", st.ActionSpan)
	assert.Equal(t, "submit button", st.TargetText, "filler and punctuation are stripped")
}

func TestProcess_UnrecognizedActionDropped(t *testing.T) {
	d := &fakeDispatcher{}
	e, _ := newTestEngine(t, fastConfig(), &fakeClient{}, d)

	e.Process(context.Background(), command.NewContext("xyzzy qwfp"))
	assert.Zero(t, d.calls)
}

func TestProcess_RetryBudget(t *testing.T) {
	d := &fakeDispatcher{err: command.ErrNoTargetResolved}
	client := &fakeClient{}
	e, st := newTestEngine(t, fastConfig(), client, d)

	ctx := context.Background()
	e.Process(ctx, command.NewContext("click the missing button"))
	for st.Queue.Len() > 0 {
		e.Process(ctx, st.Queue.PopFront())
	}

	assert.Equal(t, 3, d.calls, "the budget allows exactly three attempts")
	assert.Equal(t, 0, st.Queue.Len())
	assert.Equal(t, 1, client.embedCalls, "retries must reuse the parse cache")
	assert.Empty(t, st.parsedCache, "exhaustion evicts the cached parse")
	assert.Empty(t, st.retries)
}

func TestProcess_TerminalErrorNotRetried(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("boom")}
	e, st := newTestEngine(t, fastConfig(), &fakeClient{}, d)

	e.Process(context.Background(), command.NewContext("click the submit button"))
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, 0, st.Queue.Len())
}

func TestProcess_EmptyTargetNotRetried(t *testing.T) {
	d := &fakeDispatcher{err: command.ErrNoTargetResolved}
	e, st := newTestEngine(t, fastConfig(), &fakeClient{}, d)

	e.Process(context.Background(), command.NewContext("click"))
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, 0, st.Queue.Len(), "a target-less failure has nothing to retry against")
}


// Rewrite model


func TestRewrite_CancelWord(t *testing.T) {
	d := &fakeDispatcher{}
	cfg := fastConfig()
	cfg.Engine.UseGPT = true
	client := &fakeClient{rewrite: func(string) (string, error) { return "nothing", nil }}
	e, _ := newTestEngine(t, cfg, client, d)

	e.Process(context.Background(), command.NewContext("please disregard that"))
	assert.Zero(t, d.calls)
}

func TestRewrite_ExtraLinesQueued(t *testing.T) {
	d := &fakeDispatcher{}
	cfg := fastConfig()
	cfg.Engine.UseGPT = true
	client := &fakeClient{rewrite: func(string) (string, error) {
		return "click the ok button\nwrite hello\n", nil
	}}
	e, st := newTestEngine(t, cfg, client, d)

	e.Process(context.Background(), command.NewContext("press ok then greet"))

	require.Equal(t, 1, d.calls)
	assert.Equal(t, "ok button", d.targets[0])

	require.Equal(t, 1, st.Queue.Len())
	next := st.Queue.PopFront()
	assert.Equal(t, "write hello", next.Text)
	assert.Equal(t, true, next.Meta[command.MetaGPTApplied], "queued follow-ups skip a second rewrite")
}

func TestRewrite_FailureFallsBackToRawText(t *testing.T) {
	d := &fakeDispatcher{}
	cfg := fastConfig()
	cfg.Engine.UseGPT = true
	client := &fakeClient{rewrite: func(string) (string, error) {
		return "", errors.New("model host down")
	}}
	e, _ := newTestEngine(t, cfg, client, d)

	e.Process(context.Background(), command.NewContext("click the submit button"))
	require.Equal(t, 1, d.calls)
	assert.Equal(t, "submit button", d.targets[0])
}


// Recording interplay


func TestProcess_TemplateOutsideRecordingDropped(t *testing.T) {
	d := &fakeDispatcher{}
	e, _ := newTestEngine(t, fastConfig(), &fakeClient{}, d)

	e.Process(context.Background(), command.NewContext("click my name as variable"))
	assert.Zero(t, d.calls)
}

func TestProcess_RecordsNonControlSteps(t *testing.T) {
	d := &fakeDispatcher{}
	e, st := newTestEngine(t, fastConfig(), &fakeClient{}, d)
	st.Recording.Begin("demo")

	ctx := context.Background()
	e.Process(ctx, command.NewContext("write hello"))
	e.Process(ctx, command.NewContext("play demo"))

	require.Equal(t, 2, d.calls)
	steps := st.Recording.Steps()
	require.Len(t, steps, 1, "control commands are not recorded as steps")
	assert.Equal(t, "write hello", steps[0].Text)
}

func TestProcess_TemplateStepRecordedAsPlaceholder(t *testing.T) {
	d := &fakeDispatcher{}
	e, st := newTestEngine(t, fastConfig(), &fakeClient{}, d)
	st.Recording.Begin("demo")

	e.Process(context.Background(), command.NewContext("click blue my name as variable"))

	require.Equal(t, 1, d.calls)
	steps := st.Recording.Steps()
	require.Len(t, steps, 1)
	assert.Equal(t, "click blue {{my name}}", steps[0].Text)
}


// Run loop


func TestRun_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := &fakeDispatcher{}
	e, st := newTestEngine(t, fastConfig(), &fakeClient{}, d)
	st.Queue.PushBack(command.NewContext("click the submit button"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return d.calls > 0 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop on cancel")
	}
}
