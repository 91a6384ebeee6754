package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
)

func ifIntent() command.Intent {
	return command.Intent{Kind: command.KindConditionIf}
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		kind   string
		query  string
		colors []string
		negate bool
	}{
		{name: "plain text", in: "text login exists", kind: "text", query: "login"},
		{name: "quoted text", in: `text "hello world" exists`, kind: "text", query: "hello world"},
		{name: "color qualified", in: "blue or red text login exists", kind: "text", query: "login", colors: []string{"blue", "red"}},
		{name: "if prefix", in: "if text login exists", kind: "text", query: "login"},
		{name: "image", in: "image logo exists", kind: "image", query: "logo"},
		{name: "variable", in: "variable prices exists", kind: "variable", query: "prices"},
		{name: "negated", in: "text login exists negate", kind: "text", query: "login", negate: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := parseCondition(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, c.kind)
			assert.Equal(t, tt.query, c.query)
			assert.Equal(t, tt.colors, c.colors)
			assert.Equal(t, tt.negate, c.negate)
		})
	}
}

func TestParseCondition_Unparseable(t *testing.T) {
	_, err := parseCondition("login is visible")
	assert.Error(t, err)
}

func TestCondition_TextPassQueuesBody(t *testing.T) {
	f := newFixture(t, withOCRText(ocrItem("Login", 10, 10, 40, 20, "")))

	ctx := command.NewContext("if text login exists")
	ctx.Subs = []*command.Context{command.NewContext("click the ok button")}
	f.st.Current = ctx

	err := f.dispatch(context.Background(), ifIntent(), "text login exists")
	require.NoError(t, err)

	require.Equal(t, 1, f.st.Queue.Len())
	assert.Equal(t, "click the ok button", f.st.Queue.PopFront().Text)
}

func TestCondition_TextFailIsRetryable(t *testing.T) {
	f := newFixture(t,
		withOCRText(ocrItem("Cancel", 10, 10, 50, 20, "")),
		withVectors(map[string][]float64{"missing": {1, 0, 0}}),
	)

	err := f.dispatch(context.Background(), ifIntent(), "text missing exists")
	assert.ErrorIs(t, err, command.ErrNoTargetResolved)
	assert.Zero(t, f.st.Queue.Len())
}

func TestCondition_NegateFlipsOutcome(t *testing.T) {
	f := newFixture(t,
		withOCRText(ocrItem("Cancel", 10, 10, 50, 20, "")),
		withVectors(map[string][]float64{"missing": {1, 0, 0}}),
	)

	err := f.dispatch(context.Background(), ifIntent(), "text missing exists negate")
	assert.NoError(t, err)
}

func TestCondition_VariableExists(t *testing.T) {
	f := newFixture(t)
	f.st.Variables["prices"] = &command.Variable{Name: "prices"}

	err := f.dispatch(context.Background(), ifIntent(), "variable prices exists")
	assert.NoError(t, err)

	err = f.dispatch(context.Background(), ifIntent(), "variable prices exists negate")
	assert.ErrorIs(t, err, command.ErrNoTargetResolved)
}

func TestCondition_ImageExists(t *testing.T) {
	f := newFixture(t)
	f.addLibraryImage(t, "logo.png")

	err := f.dispatch(context.Background(), ifIntent(), "image logo exists")
	assert.NoError(t, err)
}

func TestCondition_RecordingOpensScopeRegardlessOfOutcome(t *testing.T) {
	f := newFixture(t, withVectors(map[string][]float64{"missing": {1, 0, 0}}))
	f.st.Recording.Begin("guarded")

	err := f.dispatch(context.Background(), ifIntent(), "text missing exists")
	require.NoError(t, err, "a failing guard still records")
	assert.True(t, f.st.Recording.InScope())
	assert.Zero(t, f.st.Queue.Len())
}

func TestCondition_EndIf(t *testing.T) {
	f := newFixture(t, withOCRText(ocrItem("Login", 10, 10, 40, 20, "")))
	f.st.Recording.Begin("guarded")

	require.NoError(t, f.dispatch(context.Background(), ifIntent(), "text login exists"))
	require.True(t, f.st.Recording.InScope())

	err := f.dispatch(context.Background(), command.Intent{Kind: command.KindConditionEndIf}, "")
	require.NoError(t, err)
	assert.False(t, f.st.Recording.InScope())

	// A stray end-if outside recording is a no-op.
	f.st.Recording.End()
	assert.NoError(t, f.dispatch(context.Background(), command.Intent{Kind: command.KindConditionEndIf}, ""))
}
