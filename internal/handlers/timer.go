package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/engine"
	"github.com/xkilldash9x/handsfree-cli/internal/match"
)

// handleTimer sleeps for the spoken duration. "wait 500" waits
// milliseconds, "wait 3 seconds" or "sleep three sec" waits seconds.
func (d *Dispatcher) handleTimer(ctx context.Context, st *engine.State) error {
	delay, ok := match.ParseDelay(st.TargetText)
	if !ok {
		return fmt.Errorf("no duration in %q", st.TargetText)
	}
	d.logger.Info("Sleeping", zap.Duration("delay", delay))
	d.deps.Sleep(ctx, delay)
	return ctx.Err()
}
