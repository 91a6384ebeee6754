package handlers

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/engine"
)

// handleToggleGPT flips the rewrite pass. "toggle gpt on"/"off" set it
// explicitly; bare "toggle gpt" inverts the current value.
func (d *Dispatcher) handleToggleGPT(_ context.Context, st *engine.State) error {
	text := strings.ToLower(st.Current.Text)
	switch {
	case strings.Contains(text, " on"):
		st.UseGPT = true
	case strings.Contains(text, " off"):
		st.UseGPT = false
	default:
		st.UseGPT = !st.UseGPT
	}
	d.logger.Info("Rewrite pass toggled", zap.Bool("use_gpt", st.UseGPT))
	return nil
}
