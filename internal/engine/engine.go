// Package engine drives the command pipeline: it pops utterances off the
// queue, optionally rewrites them with the language model, resolves the
// action and target, dispatches to a handler, and manages retries and
// sequence recording around the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/config"
	"github.com/xkilldash9x/handsfree-cli/internal/match"
	"github.com/xkilldash9x/handsfree-cli/internal/models"
	"github.com/xkilldash9x/handsfree-cli/internal/resolve"
)

// Dispatcher executes a parsed command against the desktop. The handlers
// package provides the production implementation.
type Dispatcher interface {
	Dispatch(ctx context.Context, st *State) error
}

// cancelWord is the rewrite-model output that aborts a command outright.
const cancelWord = "nothing"

// Engine owns the processing loop.
type Engine struct {
	cfg        config.EngineConfig
	matchCfg   config.MatchingConfig
	client     models.Client
	dispatcher Dispatcher
	st         *State
	logger     *zap.Logger
}

// New builds an engine. All collaborators are required.
func New(cfg *config.Config, client models.Client, dispatcher Dispatcher, st *State, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine requires a config")
	}
	if client == nil {
		return nil, fmt.Errorf("engine requires a model client")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("engine requires a dispatcher")
	}
	if st == nil {
		return nil, fmt.Errorf("engine requires a state")
	}
	st.UseGPT = cfg.Engine.UseGPT
	return &Engine{
		cfg:        cfg.Engine,
		matchCfg:   cfg.Matching,
		client:     client,
		dispatcher: dispatcher,
		st:         st,
		logger:     logger.With(zap.String("component", "engine")),
	}, nil
}

// State exposes the runtime, mainly for the wiring layer and tests.
func (e *Engine) State() *State { return e.st }

// Run processes the queue until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Engine started", zap.Bool("use_gpt", e.st.UseGPT))
	for {
		if err := ctx.Err(); err != nil {
			e.logger.Info("Engine stopping")
			return err
		}
		c := e.st.Queue.PopFront()
		if c.Empty() {
			e.sleep(ctx, e.cfg.QueuePollInterval)
			continue
		}
		e.Process(ctx, c)
	}
}

// Process runs one context through the full pipeline.
func (e *Engine) Process(ctx context.Context, c *command.Context) {
	e.st.Current = c
	e.logger.Debug("Command received", zap.String("text", c.Text))

	processed, cancelled := e.rewrite(ctx, c)
	if cancelled {
		e.logger.Info("Command cancelled by rewrite", zap.String("text", c.Text))
		return
	}
	processed = match.StripPunctuation(processed)
	if processed == "" {
		return
	}

	key, ok := e.parse(ctx, processed)
	if !ok {
		return
	}
	if remaining, tracked := e.st.retries[key]; tracked && remaining <= 0 {
		e.abandon(c, key)
		return
	}
	e.logger.Info("Command parsed",
		zap.String("intent", e.st.Intent.String()),
		zap.String("span", e.st.ActionSpan),
		zap.String("target", e.st.TargetText))

	e.st.TemplateName, e.st.IsTemplate = match.ExtractTemplate(e.st.TargetText)
	if e.st.IsTemplate && !e.st.Recording.Active() {
		e.logger.Warn("Template syntax outside recording, dropping",
			zap.String("target", e.st.TargetText), zap.Error(command.ErrTemplateMisuse))
		return
	}

	err := e.dispatcher.Dispatch(ctx, e.st)
	if err == nil {
		e.succeed(c, key)
		return
	}
	e.fail(ctx, c, key, err)
}

// rewrite runs the language model over the utterance when enabled. The
// first response line replaces the command; extra lines are queued
// behind it; the cancel word drops it. Rewrite failures fall back to the
// raw text, since a dead model host should not mute the user.
func (e *Engine) rewrite(ctx context.Context, c *command.Context) (string, bool) {
	text := strings.TrimSpace(c.Text)
	if !e.st.UseGPT || c.Meta[command.MetaGPTApplied] == true {
		return text, false
	}
	c.Meta[command.MetaGPTApplied] = true

	out, err := e.client.Rewrite(ctx, text)
	if err != nil {
		e.logger.Warn("Rewrite failed, using raw text", zap.Error(err))
		return text, false
	}

	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return text, false
	}
	for _, extra := range lines[1:] {
		next := command.NewContext(extra)
		next.Meta[command.MetaGPTApplied] = true
		e.st.Queue.PushBack(next)
	}
	if strings.EqualFold(lines[0], cancelWord) {
		return "", true
	}
	c.Text = lines[0]
	e.logger.Debug("Command rewritten", zap.String("text", lines[0]))
	return lines[0], false
}

// parse resolves action and target, consulting the parse cache first so
// a retry of the same processed text costs no model calls. The cache key
// is the color-stripped processed text; it doubles as the retry-budget
// key.
func (e *Engine) parse(ctx context.Context, processed string) (string, bool) {
	colors, stripped := match.ExtractColors(processed)
	key := strings.ToLower(strings.TrimSpace(stripped))

	if entry, ok := e.st.parsedCache[key]; ok {
		e.st.Intent = entry.intent
		e.st.ActionSpan = entry.span
		e.st.TargetText = entry.target
		e.st.ColorList = entry.colors
		return key, true
	}

	action, err := resolve.ExtractAction(ctx, e.client, e.st.EventAliases, stripped,
		e.matchCfg.MaxNGram, e.matchCfg.ActionExactBoost, e.matchCfg.AcceptThreshold)
	if err != nil {
		if errors.Is(err, command.ErrNoActionRecognized) {
			e.logger.Warn("No action recognized", zap.String("text", processed))
		} else {
			e.logger.Error("Action extraction failed", zap.Error(err))
		}
		return "", false
	}

	target := match.CleanTarget(resolve.ExtractTargetText(stripped, action.Span))
	e.st.Intent = action.Intent
	e.st.ActionSpan = action.Span
	e.st.TargetText = target
	e.st.ColorList = colors
	e.st.parsedCache[key] = parsedEntry{
		intent: action.Intent, span: action.Span, target: target, colors: colors,
	}
	return key, true
}

// succeed finalizes a dispatched command: record it when a sequence
// recording is running, and release its retry budget.
func (e *Engine) succeed(c *command.Context, key string) {
	delete(e.st.retries, key)

	if e.st.Recording.Active() && !e.st.Intent.Kind.IsControl() {
		if e.st.IsTemplate {
			c.Text = e.recordedTemplateText()
		}
		if err := e.st.Recording.Append(c); err != nil {
			e.logger.Error("Could not record step", zap.Error(err))
		} else {
			e.logger.Debug("Step recorded", zap.String("text", c.Text))
		}
	}
	e.logger.Debug("Command succeeded", zap.String("intent", e.st.Intent.String()))
}

// recordedTemplateText is the replayable form of a templated step:
// the action span, the first requested color, and the placeholder.
func (e *Engine) recordedTemplateText() string {
	color := ""
	if len(e.st.ColorList) > 0 {
		color = e.st.ColorList[0]
	}
	parts := []string{e.st.ActionSpan}
	if color != "" {
		parts = append(parts, color)
	}
	parts = append(parts, "{{"+e.st.TemplateName+"}}")
	return strings.Join(parts, " ")
}

// fail routes a handler error: a retryable failure consumes budget and
// requeues at the head after a backoff, a terminal one drops the
// command. Exhaustion is detected at the head of Process, before the
// next dispatch, so n retries means n dispatch attempts.
func (e *Engine) fail(ctx context.Context, c *command.Context, key string, err error) {
	if !command.IsRetryable(err) || e.st.TargetText == "" {
		e.logger.Warn("Command failed, dropping",
			zap.String("text", c.Text), zap.Error(err))
		return
	}

	remaining, tracked := e.st.retries[key]
	if !tracked {
		remaining = e.cfg.Retries
	}
	remaining--
	e.st.retries[key] = remaining

	e.logger.Warn("Command failed, retrying",
		zap.String("text", c.Text), zap.Int("remaining", remaining), zap.Error(err))
	e.st.Queue.PushFront(c)
	e.sleep(ctx, e.cfg.RetryBackoff)
}

// abandon evicts an exhausted command's cache entries and drops it.
func (e *Engine) abandon(c *command.Context, key string) {
	delete(e.st.retries, key)
	delete(e.st.parsedCache, key)
	e.logger.Error("Retry budget exhausted, abandoning", zap.String("text", c.Text))
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
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
