package handlers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/engine"
	"github.com/xkilldash9x/handsfree-cli/internal/match"
	"github.com/xkilldash9x/handsfree-cli/internal/store"
)

func (d *Dispatcher) handleSequence(ctx context.Context, st *engine.State) error {
	switch st.Intent.Kind {
	case command.KindSequenceStart:
		return d.sequenceStart(st)
	case command.KindSequenceSave:
		return d.sequenceSave(st)
	case command.KindSequencePlay:
		return d.sequencePlay(ctx, st)
	case command.KindSequenceReset:
		if !st.Recording.Active() {
			return fmt.Errorf("no recording to reset")
		}
		st.Recording.ResetSteps()
		d.logger.Info("Recording reset", zap.String("name", st.Recording.Name()))
		return nil
	case command.KindSequenceClearPrev:
		if !st.Recording.Active() {
			return fmt.Errorf("no recording to edit")
		}
		st.Recording.ClearPrev()
		d.logger.Info("Removed last recorded step")
		return nil
	}
	return fmt.Errorf("%w: %s", command.ErrUnknownIntent, st.Intent)
}

func (d *Dispatcher) sequenceStart(st *engine.State) error {
	name := strings.ToLower(strings.TrimSpace(st.TargetText))
	if name == "" {
		return fmt.Errorf("recording needs a name: say \"start recording <name>\"")
	}
	if st.Recording.Active() {
		d.logger.Warn("Recording restarted", zap.String("previous", st.Recording.Name()))
	}
	st.Recording.Begin(name)
	d.logger.Info("Recording started", zap.String("name", name))
	return nil
}

func (d *Dispatcher) sequenceSave(st *engine.State) error {
	if !st.Recording.Active() {
		return fmt.Errorf("no active recording to save")
	}
	name := st.Recording.Name()
	if st.Recording.InScope() {
		d.logger.Warn("Recording saved with an unclosed loop or condition scope")
	}
	steps := st.Recording.End()
	if len(steps) == 0 {
		d.logger.Warn("Recording was empty, nothing saved", zap.String("name", name))
		return nil
	}

	docs := make([]*command.ContextDoc, len(steps))
	for i, s := range steps {
		docs[i] = s.Doc()
	}
	seq := store.StoredSequence{Steps: docs, Vars: extractVarSpecs(steps)}
	if err := d.deps.Store.Save(name, seq); err != nil {
		return err
	}
	d.logger.Info("Sequence saved",
		zap.String("name", name), zap.Int("steps", len(docs)), zap.Int("vars", len(seq.Vars)))
	return nil
}

// sequencePlay loads the saved sequence whose name best matches the
// spoken one, collects its variable values (pre-bound or prompted), and
// queues the expanded steps ahead of anything newly spoken.
func (d *Dispatcher) sequencePlay(ctx context.Context, st *engine.State) error {
	name, err := d.deps.Resolver.BestName(ctx, strings.ToLower(st.TargetText), d.deps.Store.Names())
	if err != nil {
		return err
	}
	seq, ok := d.deps.Store.Get(name)
	if !ok {
		return fmt.Errorf("%w: sequence %q vanished from the store", command.ErrNoTargetResolved, name)
	}

	bindings, err := d.collectBindings(ctx, seq.Vars)
	if err != nil {
		return err
	}

	var steps []*command.Context
	for _, doc := range seq.Steps {
		steps = append(steps, expandStep(doc.Context(), bindings)...)
	}
	st.Queue.PushFront(steps...)
	d.logger.Info("Sequence queued",
		zap.String("name", name), zap.Int("steps", len(steps)))
	return nil
}

// collectBindings resolves each declared variable: stored values win,
// otherwise the user is prompted by voice. List-typed variables split
// the spoken answer on commas.
func (d *Dispatcher) collectBindings(ctx context.Context, vars []store.VarSpec) (map[string][]string, error) {
	bindings := map[string][]string{}
	for _, v := range vars {
		if len(v.Value) > 0 {
			bindings[v.Name] = v.Value
			continue
		}
		if d.deps.Prompter == nil {
			return nil, fmt.Errorf("sequence variable %q needs a value but no prompter is available", v.Name)
		}
		spoken, err := d.deps.Prompter.Prompt(ctx, fmt.Sprintf("Value for %s?", v.Name))
		if err != nil {
			return nil, fmt.Errorf("prompting for %q: %w", v.Name, err)
		}
		if v.Type == "list" {
			var values []string
			for _, part := range strings.Split(spoken, ",") {
				if part = strings.TrimSpace(part); part != "" {
					values = append(values, part)
				}
			}
			bindings[v.Name] = values
		} else {
			bindings[v.Name] = []string{strings.TrimSpace(spoken)}
		}
	}
	return bindings, nil
}

// expandStep turns one stored step into runnable contexts. Template
// loops bound in bindings unroll here, one body copy per value; unbound
// loops stay intact for the loop handler to expand from runtime
// variables. Everything else just gets its placeholders substituted.
func expandStep(c *command.Context, bindings map[string][]string) []*command.Context {
	if name, ok := c.LoopVar(); ok {
		if values, bound := bindings[name]; bound && len(values) > 0 {
			var out []*command.Context
			for _, value := range values {
				iter := cloneBindings(bindings)
				iter[name] = []string{value}
				for _, sub := range c.Subs {
					out = append(out, expandStep(sub.Clone(), iter)...)
				}
			}
			return out
		}
	}
	substituteTree(c, bindings)
	return []*command.Context{c}
}

func cloneBindings(b map[string][]string) map[string][]string {
	out := make(map[string][]string, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

func substitute(text string, bindings map[string][]string) string {
	return match.SubstitutePlaceholders(text, bindings)
}

// extractVarSpecs collects every placeholder and loop variable a
// recording references, deduplicated in order of appearance.
func extractVarSpecs(steps []*command.Context) []store.VarSpec {
	var specs []store.VarSpec
	seen := map[string]bool{}
	add := func(name, typ string) {
		if name != "" && !seen[name] {
			seen[name] = true
			specs = append(specs, store.VarSpec{Name: name, Type: typ})
		}
	}
	var walk func(c *command.Context)
	walk = func(c *command.Context) {
		for _, name := range match.Placeholders(c.Text) {
			add(name, "str")
		}
		if name, ok := c.LoopVar(); ok {
			add(name, "list")
		}
		for _, sub := range c.Subs {
			walk(sub)
		}
	}
	for _, s := range steps {
		walk(s)
	}
	return specs
}
