package handlers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/engine"
)

// Condition grammar:
//
//	if text "query" exists
//	if blue text "query" exists        (color-qualified)
//	if image "name" exists
//	if variable "name" exists
//	... negate                         (inverts any of the above)
//
// Quotes are optional; dictation rarely produces them.
var (
	condTextRe  = regexp.MustCompile(`^(?:([\w\s]+?)\s+)?text\s+(?:"([^"]+)"|([^"]+?))\s+exists$`)
	condImageRe = regexp.MustCompile(`^image\s+(?:"([^"]+)"|([^"]+?))\s+exists$`)
	condVarRe   = regexp.MustCompile(`^variable\s+(?:"([^"]+)"|([^"]+?))\s+exists$`)
	condSplitRe = regexp.MustCompile(`\s+(?:or|and)\s+`)
)

type condition struct {
	kind   string // "text", "image", "variable"
	query  string
	colors []string
	negate bool
}

func parseCondition(s string) (*condition, error) {
	s = strings.ToLower(strings.TrimSpace(s))

	negate := strings.HasSuffix(s, " negate")
	if negate {
		s = strings.TrimSpace(strings.TrimSuffix(s, " negate"))
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "if "))

	if m := condTextRe.FindStringSubmatch(s); m != nil {
		c := &condition{kind: "text", query: firstOf(m[2], m[3]), negate: negate}
		if m[1] != "" {
			for _, color := range condSplitRe.Split(m[1], -1) {
				c.colors = append(c.colors, strings.TrimSpace(color))
			}
		}
		return c, nil
	}
	if m := condImageRe.FindStringSubmatch(s); m != nil {
		return &condition{kind: "image", query: firstOf(m[1], m[2]), negate: negate}, nil
	}
	if m := condVarRe.FindStringSubmatch(s); m != nil {
		return &condition{kind: "variable", query: firstOf(m[1], m[2]), negate: negate}, nil
	}
	return nil, fmt.Errorf("unparseable condition %q", s)
}

func firstOf(a, b string) string {
	if a != "" {
		return strings.TrimSpace(a)
	}
	return strings.TrimSpace(b)
}

// handleCondition evaluates an "if" guard. While recording, the guard
// opens a scope so following steps become its body. Outside recording, a
// passing guard pushes the context's recorded body onto the queue head;
// a failing guard is a retryable failure, so a condition effectively
// polls a few times before the branch is skipped.
func (d *Dispatcher) handleCondition(ctx context.Context, st *engine.State) error {
	if st.Intent.Kind == command.KindConditionEndIf {
		if st.Recording.Active() {
			if err := st.Recording.CloseScope(); err != nil {
				d.logger.Warn("End-if without open if", zap.Error(err))
			}
		}
		return nil
	}

	cond, err := parseCondition(st.TargetText)
	if err != nil {
		return err
	}

	var passed bool
	switch cond.kind {
	case "text":
		passed, err = d.conditionText(ctx, st, cond)
	case "image":
		passed, err = d.conditionImage(ctx, st, cond)
	case "variable":
		passed, err = d.conditionVariable(ctx, st, cond)
	}
	if err != nil {
		return err
	}
	if cond.negate {
		passed = !passed
	}

	if st.Recording.Active() {
		d.logger.Info("Recording condition", zap.String("condition", st.TargetText))
		return st.Recording.OpenScope(st.Current)
	}

	if !passed {
		return fmt.Errorf("%w: condition %q not met", command.ErrNoTargetResolved, st.TargetText)
	}
	d.logger.Info("Condition passed", zap.String("condition", st.TargetText))
	if len(st.Current.Subs) > 0 {
		st.Queue.PushFront(st.Current.Subs...)
	}
	return nil
}

// conditionText checks for the query on screen at the strict condition
// threshold; a fuzzy 0.61 is good enough to click but not good enough to
// branch on.
func (d *Dispatcher) conditionText(ctx context.Context, st *engine.State, cond *condition) (bool, error) {
	_, _, lines, err := d.captureAndOCR(ctx, st, false)
	if err != nil {
		return false, err
	}
	colors := cond.colors
	if len(colors) == 0 {
		colors = st.ColorList
	}
	matches, err := d.deps.Resolver.ResolveText(ctx, cond.query, colors, lines, false)
	if errors.Is(err, command.ErrNoTargetResolved) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return matches[0].Score > d.deps.Cfg.Matching.ConditionThreshold, nil
}

func (d *Dispatcher) conditionImage(ctx context.Context, st *engine.State, cond *condition) (bool, error) {
	return d.checkImage(ctx, st, cond.query)
}

func (d *Dispatcher) conditionVariable(ctx context.Context, st *engine.State, cond *condition) (bool, error) {
	name, err := d.deps.Resolver.BestName(ctx, cond.query, st.VariableNames())
	if errors.Is(err, command.ErrNoTargetResolved) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_, ok := st.Variables[name]
	return ok, nil
}
