// Package resolve maps noisy utterances onto intents and on-screen
// targets. Action words are matched against a fixed alias vocabulary;
// target phrases are matched against OCR output. Both use the hybrid
// phonetic/lexical/semantic score, so "clack the submat button" still
// clicks Submit.
package resolve

import (
	"context"
	"strings"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/match"
	"github.com/xkilldash9x/handsfree-cli/internal/models"
)

// EventAlias is one spoken phrase bound to an intent, with its
// embedding precomputed at startup.
type EventAlias struct {
	Phrase    string
	Intent    command.Intent
	Embedding []float64
}

type aliasGroup struct {
	phrases []string
	intent  command.Intent
}

func mouse(b command.MouseButton) command.Intent {
	return command.Intent{Kind: command.KindMouseClick, Buttons: b}
}

func kind(k command.Kind) command.Intent {
	return command.Intent{Kind: k}
}

// baseAliases is the spoken vocabulary. Order matters only for ties,
// which the scorer breaks by first-seen.
var baseAliases = []aliasGroup{
	{[]string{"click", "left click"}, mouse(command.BtnLeft)},
	{[]string{"right click"}, mouse(command.BtnRight)},
	{[]string{"middle click"}, mouse(command.BtnMiddle)},
	{[]string{"double click", "open"}, mouse(command.BtnLeft | command.BtnDouble)},

	{[]string{"shift click", "shift and click", "shift left click"}, mouse(command.BtnShiftLeft)},
	{[]string{"shift right", "shift right click"}, mouse(command.BtnShiftRight)},

	{[]string{"click image", "click on image", "find", "select image", "image click", "click icon", "click picture"}, mouse(command.BtnImage)},

	{[]string{"click all variable", "click every variable"}, mouse(command.BtnVarAll | command.BtnLeft)},
	{[]string{"click variable", "click one variable", "click top variable", "click best variable"}, mouse(command.BtnVarTop | command.BtnLeft)},

	{[]string{"click left of", "click left to"}, mouse(command.BtnSpatialLeft | command.BtnLeft)},
	{[]string{"click right of", "click right to"}, mouse(command.BtnSpatialRight | command.BtnLeft)},
	{[]string{"click above of", "click on top of", "click above"}, mouse(command.BtnSpatialAbove | command.BtnLeft)},
	{[]string{"click below of", "click under", "click below"}, mouse(command.BtnSpatialBelow | command.BtnLeft)},

	{[]string{"write", "type"}, kind(command.KindKeyboardWrite)},
	{[]string{"press"}, kind(command.KindKeyboardPress)},

	{[]string{"start sequence recording", "start recording sequence", "record sequence", "start recording"}, kind(command.KindSequenceStart)},
	{[]string{"end recording", "stop recording", "save recording"}, kind(command.KindSequenceSave)},
	{[]string{"play recording", "play sequence", "play"}, kind(command.KindSequencePlay)},
	{[]string{"reset recording", "reset sequence"}, kind(command.KindSequenceReset)},
	{[]string{"clear previous", "clear last step", "remove last step"}, kind(command.KindSequenceClearPrev)},

	{[]string{"start loop", "start looping"}, kind(command.KindLoopStart)},
	{[]string{"end loop", "stop loop", "stop looping"}, kind(command.KindLoopStop)},

	{[]string{"if", "if case"}, kind(command.KindConditionIf)},
	{[]string{"end if", "stop if", "end if case", "stop if case"}, kind(command.KindConditionEndIf)},

	{[]string{"set var", "set variable", "make var", "make variable"}, kind(command.KindVariableSet)},

	{[]string{"wait for", "wait for text"}, kind(command.KindWaitForText)},
	{[]string{"wait for image", "wait for picture", "wait for icon"}, kind(command.KindWaitForImage)},

	{[]string{"wait", "sleep"}, kind(command.KindTimerSleep)},
	{[]string{"focus", "capture", "screen", "screenshot"}, kind(command.KindScreenCapture)},
	{[]string{"toggle gpt", "gpt toggle"}, kind(command.KindToggleGPT)},
}

// extraClicks are the physical-button prefixes fanned out over the
// variable and spatial click families, so "double click above the logo"
// parses without its own alias row.
var extraClicks = []struct {
	prefix string
	button command.MouseButton
}{
	{"right", command.BtnRight},
	{"middle", command.BtnMiddle},
	{"double", command.BtnDouble},
	{"shift left", command.BtnShiftLeft},
	{"shift right", command.BtnShiftRight},
}

// AliasPhrases expands the base vocabulary with the prefixed click
// variants and returns the full phrase list.
func AliasPhrases() []EventAlias {
	var out []EventAlias
	add := func(phrases []string, in command.Intent) {
		for _, p := range phrases {
			out = append(out, EventAlias{Phrase: p, Intent: in})
		}
	}

	for _, g := range baseAliases {
		add(g.phrases, g.intent)

		if g.intent.Kind != command.KindMouseClick || !g.intent.Buttons.Has(command.BtnLeft) {
			continue
		}
		expandable := false
		for _, p := range g.phrases {
			if strings.Contains(p, "variable") || strings.Contains(p, " of") {
				expandable = true
				break
			}
		}
		if !expandable {
			continue
		}
		for _, ec := range extraClicks {
			prefixed := make([]string, len(g.phrases))
			for i, p := range g.phrases {
				prefixed[i] = ec.prefix + " " + p
			}
			add(prefixed, mouse(g.intent.Buttons&^command.BtnLeft|ec.button))
		}
	}
	return out
}

// EmbedEvents precomputes the embedding of every alias phrase in one
// batch. Called once at startup; the resulting table is read-only.
func EmbedEvents(ctx context.Context, client models.Client) ([]EventAlias, error) {
	aliases := AliasPhrases()
	texts := make([]string, len(aliases))
	for i, a := range aliases {
		texts[i] = a.Phrase
	}
	embs, err := client.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range aliases {
		aliases[i].Embedding = embs[i]
	}
	return aliases, nil
}

// ActionMatch is the winning alias for an utterance, with the span of
// the utterance that matched it.
type ActionMatch struct {
	Intent command.Intent
	Span   string
	Score  float64
}

// ExtractAction finds the alias best matching any n-gram of the
// utterance. Multi-word exact matches get boosted so "click image" beats
// "click" on "click image of a cat". Below the acceptance threshold the
// utterance is not a command.
func ExtractAction(ctx context.Context, client models.Client, aliases []EventAlias, text string, maxN int, boostAlpha, threshold float64) (*ActionMatch, error) {
	spans := match.NGrams(strings.Fields(strings.ToLower(text)), maxN)
	if len(spans) == 0 {
		return nil, command.ErrNoActionRecognized
	}
	spanEmbs, err := client.Embed(ctx, spans)
	if err != nil {
		return nil, err
	}

	best := ActionMatch{Score: -1}
	for si, span := range spans {
		for _, a := range aliases {
			sim := match.HybridScore(span, a.Phrase, spanEmbs[si], a.Embedding)
			if strings.EqualFold(span, a.Phrase) {
				sim = match.ExactBoost(sim, span, boostAlpha)
			}
			if sim > best.Score {
				best = ActionMatch{Intent: a.Intent, Span: span, Score: sim}
			}
		}
	}
	if best.Score <= threshold {
		return nil, command.ErrNoActionRecognized
	}
	return &best, nil
}

// ExtractTargetText returns everything after the matched action span.
// "click the submit button" with span "click" yields "the submit button".
func ExtractTargetText(text, span string) string {
	idx := strings.Index(strings.ToLower(text), strings.ToLower(span))
	if idx < 0 {
		return ""
	}
	return strings.TrimLeft(text[idx+len(span):], " ")
}
