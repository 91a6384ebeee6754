package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/engine"
	"github.com/xkilldash9x/handsfree-cli/internal/match"
)

const (
	defaultWaitTimeout = 5 * time.Second
	waitPollInterval   = 100 * time.Millisecond
)

// handleWaitFor polls the screen until the target appears or the timeout
// expires. The target may carry a timeout in seconds after a pipe:
// "loading done|30". Timing out is a retryable failure, so the engine's
// budget effectively multiplies the wait.
func (d *Dispatcher) handleWaitFor(ctx context.Context, st *engine.State) error {
	target, timeoutPart := splitPipe(st.TargetText)
	timeout := parseWaitTimeout(timeoutPart)

	deadline := time.Now().Add(timeout)
	limiter := rate.NewLimiter(rate.Every(waitPollInterval), 1)

	for time.Now().Before(deadline) {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		var found bool
		var err error
		if st.Intent.Kind == command.KindWaitForImage {
			found, err = d.checkImage(ctx, st, target)
		} else {
			found, err = d.checkText(ctx, st, target)
		}
		if err != nil {
			return err
		}
		if found {
			d.logger.Info("Wait target appeared", zap.String("target", target))
			return nil
		}
		d.logger.Debug("Still waiting",
			zap.String("target", target), zap.Duration("remaining", time.Until(deadline)))
	}
	return fmt.Errorf("%w: %q did not appear within %s", command.ErrNoTargetResolved, target, timeout)
}

// checkText reports whether any color variant of the target is on screen
// right now. "blue or red button" waits for either.
func (d *Dispatcher) checkText(ctx context.Context, st *engine.State, target string) (bool, error) {
	_, _, lines, err := d.captureAndOCR(ctx, st, false)
	if err != nil {
		return false, err
	}
	for _, variant := range match.ExpandColorLogic(target) {
		colors, stripped := match.ExtractColors(variant)
		if len(colors) == 0 {
			colors = st.ColorList
		}
		if _, err := d.deps.Resolver.ResolveText(ctx, stripped, colors, lines, false); err == nil {
			return true, nil
		} else if !errors.Is(err, command.ErrNoTargetResolved) {
			return false, err
		}
	}
	return false, nil
}

// checkImage reports whether the named library image is on screen.
func (d *Dispatcher) checkImage(ctx context.Context, st *engine.State, target string) (bool, error) {
	if d.deps.Finder == nil {
		return false, fmt.Errorf("waiting for images requires a template finder")
	}
	img, _, err := d.capture(ctx, st)
	if err != nil {
		return false, err
	}
	names, err := d.deps.Images.Names()
	if err != nil {
		return false, err
	}
	name, err := d.deps.Resolver.BestName(ctx, target, names)
	if err != nil {
		if errors.Is(err, command.ErrNoTargetResolved) {
			return false, nil
		}
		return false, err
	}
	path, err := d.deps.Images.PathFor(name)
	if err != nil {
		return false, err
	}
	if _, err := d.deps.Finder.Find(ctx, img, path); err != nil {
		return false, nil
	}
	return true, nil
}

func parseWaitTimeout(s string) time.Duration {
	if s == "" {
		return defaultWaitTimeout
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	if n := match.TextToNumber(s); n > 0 {
		return time.Duration(n) * time.Second
	}
	return defaultWaitTimeout
}
