package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/engine"
	"github.com/xkilldash9x/handsfree-cli/internal/match"
	"github.com/xkilldash9x/handsfree-cli/internal/models"
)

// chordHold is how long a multi-key chord stays held before release.
const chordHold = 200 * time.Millisecond

// keyAliasThreshold gates fuzzy key-name lookup. Pressing the wrong key
// is worse than pressing none.
const keyAliasThreshold = 0.9

// keyNames maps spoken key names to canonical injector keys.
var keyNames = map[string]string{
	"enter": "enter", "return": "enter",
	"delete": "delete", "del": "delete",
	"backspace": "backspace",
	"escape":    "esc", "esc": "esc",
	"tab": "tab", "space": "space", "spacebar": "space",
	"ctrl": "ctrl", "control": "ctrl",
	"alt": "alt", "option": "alt",
	"shift": "shift",
	"cmd":   "cmd", "command": "cmd", "windows": "cmd", "super": "cmd",
	"up": "up", "down": "down", "left": "left", "right": "right",
	"home": "home", "end": "end",
	"page up": "pageup", "pageup": "pageup",
	"page down": "pagedown", "pagedown": "pagedown",
	"caps lock": "capslock", "capslock": "capslock",
	"f1": "f1", "f2": "f2", "f3": "f3", "f4": "f4", "f5": "f5", "f6": "f6",
	"f7": "f7", "f8": "f8", "f9": "f9", "f10": "f10", "f11": "f11", "f12": "f12",
}

// keyAliases is the embedded key vocabulary used for fuzzy lookup when a
// spoken word is not an exact alias ("enter key", "controlled").
type keyAliases struct {
	names      []string
	embeddings [][]float64
}

func newKeyAliases(ctx context.Context, client models.Client) (*keyAliases, error) {
	names := make([]string, 0, len(keyNames))
	seen := map[string]bool{}
	for alias := range keyNames {
		if !seen[alias] {
			seen[alias] = true
			names = append(names, alias)
		}
	}
	embs, err := client.Embed(ctx, names)
	if err != nil {
		return nil, err
	}
	return &keyAliases{names: names, embeddings: embs}, nil
}

// lookup resolves one spoken word to a canonical key: exact alias,
// single character, or fuzzy embedding match, in that order.
func (k *keyAliases) lookup(ctx context.Context, client models.Client, word string) (string, bool, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return "", false, nil
	}
	if canonical, ok := keyNames[word]; ok {
		return canonical, true, nil
	}
	if len([]rune(word)) == 1 {
		return word, true, nil
	}

	embs, err := client.Embed(ctx, []string{word})
	if err != nil {
		return "", false, err
	}
	best, bestSim := "", -1.0
	for i, name := range k.names {
		if sim := match.CosineSim(embs[0], k.embeddings[i]); sim > bestSim {
			bestSim = sim
			best = name
		}
	}
	if bestSim < keyAliasThreshold {
		return "", false, nil
	}
	return keyNames[best], true, nil
}

func (d *Dispatcher) handleKeyboard(ctx context.Context, st *engine.State) error {
	if st.Intent.Kind == command.KindKeyboardWrite {
		if err := d.deps.Keyboard.TypeText(st.TargetText); err != nil {
			return err
		}
		d.logger.Info("Typed text", zap.Int("chars", len(st.TargetText)))
		return nil
	}
	return d.pressChord(ctx, st.TargetText)
}

// pressChord resolves every word of the phrase to a key and presses them
// together: down in order, held briefly, released in reverse, so
// "press control c" behaves as expected.
func (d *Dispatcher) pressChord(ctx context.Context, phrase string) error {
	var keys []string
	for _, word := range strings.Fields(strings.ToLower(phrase)) {
		key, ok, err := d.keys.lookup(ctx, d.deps.Models, word)
		if err != nil {
			return err
		}
		if !ok {
			d.logger.Warn("Unrecognized key, skipping", zap.String("word", word))
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return fmt.Errorf("no valid keys in %q", phrase)
	}

	for _, k := range keys {
		if err := d.deps.Keyboard.KeyDown(k); err != nil {
			return err
		}
	}
	d.deps.Sleep(ctx, chordHold)
	for i := len(keys) - 1; i >= 0; i-- {
		if err := d.deps.Keyboard.KeyUp(keys[i]); err != nil {
			return err
		}
	}
	d.logger.Info("Pressed keys", zap.Strings("keys", keys))
	return nil
}
