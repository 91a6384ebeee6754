package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/engine"
	"github.com/xkilldash9x/handsfree-cli/internal/match"
	"github.com/xkilldash9x/handsfree-cli/internal/resolve"
)

// handleVariableSet captures screen matches into a named variable. The
// target is "name|type|description": "prices|number|>10" binds every
// on-screen number above ten, "buttons|string|submit" every fuzzy match
// of "submit". Re-setting a name replaces its values.
func (d *Dispatcher) handleVariableSet(ctx context.Context, st *engine.State) error {
	v := command.ParseVariableSpec(st.TargetText)
	if v.Name == "" {
		return fmt.Errorf("variable spec %q has no name", st.TargetText)
	}
	isNum := v.IsNumeric()

	_, _, lines, err := d.captureAndOCR(ctx, st, isNum)
	if err != nil {
		return err
	}

	var values []command.VarValue
	for _, variant := range match.ExpandColorLogic(v.Desc) {
		colors, stripped := match.ExtractColors(variant)
		if len(colors) == 0 {
			colors = st.ColorList
		}

		var matches []resolve.Match
		if isNum {
			matches, err = d.deps.Resolver.ResolveNumeric(ctx, stripped, colors, lines, true)
		} else {
			matches, err = d.deps.Resolver.ResolveText(ctx, stripped, colors, lines, true)
		}
		if errors.Is(err, command.ErrNoTargetResolved) {
			continue
		}
		if err != nil {
			return err
		}
		for _, m := range matches {
			values = append(values, command.VarValue{
				Match: m.Text,
				Value: m.Value,
				Text:  variant,
				Color: m.Color,
				BBox:  m.BBox,
				Score: m.Score,
			})
		}
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: nothing matched %q", command.ErrNoTargetResolved, v.Desc)
	}

	// Numeric captures stay in top-to-bottom screen order; string
	// captures rank best match first.
	if !isNum {
		sort.SliceStable(values, func(i, j int) bool { return values[i].Score > values[j].Score })
	}

	v.Values = values
	st.Variables[strings.ToLower(v.Name)] = &v
	d.logger.Info("Variable set",
		zap.String("name", v.Name), zap.String("type", v.Type), zap.Int("values", len(values)))
	return nil
}
