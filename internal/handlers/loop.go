package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/engine"
)

var loopCountRe = regexp.MustCompile(`\d+`)

// handleLoop has two modes. While recording, "start loop" opens a nested
// scope whose body is captured until "end loop"; the loop binds either a
// repetition count ("start loop 3") or a template variable ("start loop
// items as template"). Outside recording, a replayed loop context
// expands its body onto the queue head immediately.
func (d *Dispatcher) handleLoop(ctx context.Context, st *engine.State) error {
	if st.Intent.Kind == command.KindLoopStop {
		if st.Recording.Active() {
			if err := st.Recording.CloseScope(); err != nil {
				d.logger.Warn("Loop end without open loop", zap.Error(err))
			}
		}
		return nil
	}

	if st.Recording.Active() {
		return d.recordLoopStart(st)
	}
	return d.expandLoop(st)
}

func (d *Dispatcher) recordLoopStart(st *engine.State) error {
	c := st.Current
	if st.IsTemplate {
		if st.TemplateName == "" {
			return fmt.Errorf("template loop is missing a variable name")
		}
		c.Meta[command.MetaLoopVar] = st.TemplateName
		d.logger.Info("Recording template loop", zap.String("variable", st.TemplateName))
		return st.Recording.OpenScope(c)
	}

	m := loopCountRe.FindString(st.TargetText)
	if m == "" {
		return fmt.Errorf("no loop count in %q", st.TargetText)
	}
	count, _ := strconv.Atoi(m)
	if count < 1 {
		return fmt.Errorf("loop count must be positive, got %d", count)
	}
	c.Meta[command.MetaLoopCount] = count
	d.logger.Info("Recording counted loop", zap.Int("count", count))
	return st.Recording.OpenScope(c)
}

// expandLoop unrolls a replayed loop context onto the queue head, so the
// body runs before anything newly spoken.
func (d *Dispatcher) expandLoop(st *engine.State) error {
	c := st.Current
	if len(c.Subs) == 0 {
		d.logger.Warn("Loop with no body outside recording, skipping", zap.String("text", c.Text))
		return nil
	}

	if name, ok := c.LoopVar(); ok {
		v := st.Variables[strings.ToLower(name)]
		if v == nil || len(v.Values) == 0 {
			return fmt.Errorf("%w: loop variable %q is unbound", command.ErrNoTargetResolved, name)
		}
		var expanded []*command.Context
		for _, val := range v.Values {
			binding := map[string][]string{name: {val.Match}}
			for _, sub := range c.Subs {
				expanded = append(expanded, substituteTree(sub.Clone(), binding))
			}
		}
		st.Queue.PushFront(expanded...)
		d.logger.Info("Expanded template loop",
			zap.String("variable", name), zap.Int("iterations", len(v.Values)))
		return nil
	}

	count, ok := c.LoopCount()
	if !ok {
		m := loopCountRe.FindString(c.Text)
		if m == "" {
			return fmt.Errorf("loop context %q has no count or variable", c.Text)
		}
		count, _ = strconv.Atoi(m)
	}
	var expanded []*command.Context
	for i := 0; i < count; i++ {
		for _, sub := range c.Subs {
			expanded = append(expanded, sub.Clone())
		}
	}
	st.Queue.PushFront(expanded...)
	d.logger.Info("Expanded counted loop", zap.Int("count", count), zap.Int("steps", len(expanded)))
	return nil
}

// substituteTree applies placeholder bindings to a whole subtree.
func substituteTree(c *command.Context, bindings map[string][]string) *command.Context {
	c.Text = substitute(c.Text, bindings)
	for _, sub := range c.Subs {
		substituteTree(sub, bindings)
	}
	return c
}
