package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
)

func TestToggleGPT(t *testing.T) {
	f := newFixture(t)
	toggle := func(text string) {
		f.st.Current = command.NewContext(text)
		require.NoError(t, f.dispatch(context.Background(), command.Intent{Kind: command.KindToggleGPT}, ""))
	}

	toggle("toggle gpt on")
	assert.True(t, f.st.UseGPT)

	toggle("toggle gpt off")
	assert.False(t, f.st.UseGPT)

	// Bare toggles invert.
	toggle("toggle gpt")
	assert.True(t, f.st.UseGPT)
	toggle("toggle gpt")
	assert.False(t, f.st.UseGPT)
}
