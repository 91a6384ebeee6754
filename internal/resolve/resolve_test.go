package resolve

import (
	"context"
	"image"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/config"
	"github.com/xkilldash9x/handsfree-cli/internal/models"
	"github.com/xkilldash9x/handsfree-cli/internal/ocr"
	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)


// Fakes


// fakeClient serves embeddings from a fixed table. Texts not in the
// table share one default vector, which makes their pairwise cosine 1
// and leaves ranking to the phonetic and lexical signals.
type fakeClient struct {
	vectors    map[string][]float64
	embedCalls int
}

func (f *fakeClient) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.embedCalls++
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

func (f *fakeClient) Rewrite(_ context.Context, input string) (string, error) {
	return input, nil
}

func (f *fakeClient) OCR(context.Context, image.Image, geometry.Point) ([][]models.OCRItem, error) {
	return nil, nil
}

func newTestResolver(t *testing.T, client models.Client) *Resolver {
	t.Helper()
	r, err := NewResolver(client, config.Default().Matching, func(crop []byte) string {
		return string(crop)
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return r
}

func item(text string, x, y int, crop string) ocr.Item {
	return ocr.Item{
		Text:      text,
		BBox:      geometry.Rect{X: x, Y: y, W: 50, H: 20},
		Crop:      []byte(crop),
		Embedding: []float64{0, 0, 1},
	}
}


// Alias vocabulary


func TestAliasPhrases_ExpandsClickVariants(t *testing.T) {
	byPhrase := map[string]command.Intent{}
	for _, a := range AliasPhrases() {
		byPhrase[a.Phrase] = a.Intent
	}

	// Base aliases survive.
	assert.Equal(t, command.Intent{Kind: command.KindMouseClick, Buttons: command.BtnLeft}, byPhrase["click"])
	assert.Equal(t, command.KindSequencePlay, byPhrase["play sequence"].Kind)

	// Variable clicks fan out over the physical-button prefixes.
	in, ok := byPhrase["double click variable"]
	require.True(t, ok, "prefixed variable click should exist")
	assert.Equal(t, command.BtnVarTop|command.BtnDouble, in.Buttons)

	// So do spatial clicks.
	in, ok = byPhrase["right click left of"]
	require.True(t, ok, "prefixed spatial click should exist")
	assert.Equal(t, command.BtnSpatialLeft|command.BtnRight, in.Buttons)

	// Plain clicks are not expanded.
	_, ok = byPhrase["double left click"]
	assert.False(t, ok)
}

func TestEmbedEvents_AttachesVectors(t *testing.T) {
	client := &fakeClient{}
	aliases, err := EmbedEvents(context.Background(), client)
	require.NoError(t, err)
	require.NotEmpty(t, aliases)
	assert.Equal(t, 1, client.embedCalls, "alias vocabulary embeds in one batch")
	for _, a := range aliases {
		assert.NotEmpty(t, a.Embedding, a.Phrase)
	}
}


// Action extraction


func TestExtractAction_LongerExactMatchWins(t *testing.T) {
	client := &fakeClient{}
	aliases := []EventAlias{
		{Phrase: "click", Intent: command.Intent{Kind: command.KindMouseClick, Buttons: command.BtnLeft}},
		{Phrase: "click image", Intent: command.Intent{Kind: command.KindMouseClick, Buttons: command.BtnImage}},
	}
	embs, err := client.Embed(context.Background(), []string{"click", "click image"})
	require.NoError(t, err)
	aliases[0].Embedding = embs[0]
	aliases[1].Embedding = embs[1]

	got, err := ExtractAction(context.Background(), client, aliases, "click image of a cat", 3, 0.1, 0.6)
	require.NoError(t, err)
	assert.Equal(t, command.BtnImage, got.Intent.Buttons, "the two-word exact match should outrank the one-word one")
	assert.Equal(t, "click image", got.Span)
}

func TestExtractAction_BelowThreshold(t *testing.T) {
	client := &fakeClient{vectors: map[string][]float64{
		"click": {1, 0, 0},
	}}
	aliases := []EventAlias{
		{Phrase: "click", Intent: command.Intent{Kind: command.KindMouseClick, Buttons: command.BtnLeft}, Embedding: []float64{1, 0, 0}},
	}

	_, err := ExtractAction(context.Background(), client, aliases, "xyzzy qwfp", 3, 0.1, 0.6)
	assert.ErrorIs(t, err, command.ErrNoActionRecognized)
}

func TestExtractAction_EmptyUtterance(t *testing.T) {
	_, err := ExtractAction(context.Background(), &fakeClient{}, nil, "   ", 3, 0.1, 0.6)
	assert.ErrorIs(t, err, command.ErrNoActionRecognized)
}

func TestExtractTargetText(t *testing.T) {
	assert.Equal(t, "the submit button", ExtractTargetText("click the submit button", "click"))
	assert.Equal(t, "the logo", ExtractTargetText("Double Click the logo", "double click"))
	assert.Equal(t, "", ExtractTargetText("click", "click"))
	assert.Equal(t, "", ExtractTargetText("press enter", "click"))
}


// Text resolution


func TestResolveText_ColorBreaksTie(t *testing.T) {
	client := &fakeClient{}
	r := newTestResolver(t, client)

	lines := []ocr.Line{
		{item("Submit", 10, 10, "gray"), item("Submit", 10, 200, "blue")},
	}

	got, err := r.ResolveText(context.Background(), "submit", []string{"blue"}, lines, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 200, got[0].BBox.Y, "the color-matching item should win the tie")
	assert.Equal(t, "blue", got[0].Color)
	assert.Greater(t, got[0].Score, 1.0)
}

func TestResolveText_All(t *testing.T) {
	client := &fakeClient{}
	r := newTestResolver(t, client)

	lines := []ocr.Line{
		{item("Submit", 10, 10, ""), item("Cancel", 100, 10, "")},
		{item("Submit", 10, 200, "")},
	}

	got, err := r.ResolveText(context.Background(), "submit", nil, lines, true)
	require.NoError(t, err)
	assert.Len(t, got, 2, "both Submit items clear the threshold, Cancel does not")
	for _, m := range got {
		assert.Equal(t, "Submit", m.Text)
	}
}

func TestResolveText_NoMatch(t *testing.T) {
	client := &fakeClient{vectors: map[string][]float64{
		"frobnicate": {1, 0, 0},
	}}
	r := newTestResolver(t, client)

	lines := []ocr.Line{{item("Cancel", 10, 10, "")}}
	_, err := r.ResolveText(context.Background(), "frobnicate", nil, lines, false)
	assert.ErrorIs(t, err, command.ErrNoTargetResolved)

	_, err = r.ResolveText(context.Background(), "  ", nil, lines, false)
	assert.ErrorIs(t, err, command.ErrNoTargetResolved)
}


// Numeric resolution


func numericLines() []ocr.Line {
	return []ocr.Line{
		{item("Total: 42", 10, 50, "red")},
		{item("17", 10, 10, "gray")},
		{item("price 88", 10, 90, "gray")},
	}
}

func TestResolveNumeric_Comparators(t *testing.T) {
	r := newTestResolver(t, &fakeClient{})

	got, err := r.ResolveNumeric(context.Background(), "number >10<50", nil, numericLines(), false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 42.0, got[0].Value, "single-match mode picks the largest passing value")

	got, err = r.ResolveNumeric(context.Background(), "number >10<50", nil, numericLines(), true)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 17.0, got[0].Value, "all-match mode sorts top to bottom")
	assert.Equal(t, 42.0, got[1].Value)
}

func TestResolveNumeric_All(t *testing.T) {
	r := newTestResolver(t, &fakeClient{})

	got, err := r.ResolveNumeric(context.Background(), "all numbers", nil, numericLines(), true)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{17, 42, 88}, []float64{got[0].Value, got[1].Value, got[2].Value})
}

func TestResolveNumeric_ColorFilter(t *testing.T) {
	// "red" and "gray" get orthogonal vectors so only the exact color
	// match clears the similarity threshold.
	client := &fakeClient{vectors: map[string][]float64{
		"red":  {1, 0, 0},
		"gray": {0, 1, 0},
	}}
	r := newTestResolver(t, client)

	got, err := r.ResolveNumeric(context.Background(), "number >10", []string{"red"}, numericLines(), true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 42.0, got[0].Value)
	assert.Equal(t, "red", got[0].Color)
}

func TestResolveNumeric_NoMatch(t *testing.T) {
	r := newTestResolver(t, &fakeClient{})

	_, err := r.ResolveNumeric(context.Background(), "number >1000", nil, numericLines(), false)
	assert.ErrorIs(t, err, command.ErrNoTargetResolved)

	_, err = r.ResolveNumeric(context.Background(), "no digits at all", nil, numericLines(), false)
	assert.ErrorIs(t, err, command.ErrNoTargetResolved)
}


// Name resolution


func TestBestName(t *testing.T) {
	client := &fakeClient{vectors: map[string][]float64{
		"login":    {1, 0, 0},
		"log in":   {0.99, 0.141, 0},
		"checkout": {0, 1, 0},
	}}
	r := newTestResolver(t, client)

	got, err := r.BestName(context.Background(), "log in", []string{"login", "checkout"})
	require.NoError(t, err)
	assert.Equal(t, "login", got)
}

func TestBestName_BelowThreshold(t *testing.T) {
	client := &fakeClient{vectors: map[string][]float64{
		"something else": {0.5, 0.5, 0.707},
		"login":          {1, 0, 0},
		"checkout":       {0, 1, 0},
	}}
	r := newTestResolver(t, client)

	_, err := r.BestName(context.Background(), "something else", []string{"login", "checkout"})
	assert.ErrorIs(t, err, command.ErrNoTargetResolved)

	_, err = r.BestName(context.Background(), "anything", nil)
	assert.ErrorIs(t, err, command.ErrNoTargetResolved)
}
