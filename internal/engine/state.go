package engine

import (
	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/resolve"
	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

// parsedEntry caches the outcome of action parsing for one processed
// utterance, so a retried command skips re-embedding its spans.
type parsedEntry struct {
	intent command.Intent
	span   string
	target string
	colors []string
}

// State is the mutable runtime the engine and handlers share. It is
// owned by the engine goroutine; handlers receive it during dispatch and
// must not retain it.
type State struct {
	// Current is the context being processed this cycle.
	Current *command.Context
	// Queue holds not-yet-processed contexts.
	Queue *Deque
	// Recording is the sequence recording arena.
	Recording *RecordingState
	// Variables are the screen captures bound by the SET action, keyed by
	// lowercase name.
	Variables map[string]*command.Variable

	// UseGPT gates the rewrite pass. Flipped at runtime by toggle-gpt.
	UseGPT bool
	// ScreenshotBox restricts captures to a screen region when set.
	ScreenshotBox *geometry.Rect
	// EventAliases is the embedded action vocabulary, built at startup.
	EventAliases []resolve.EventAlias

	// Parse results for the current cycle.
	Intent       command.Intent
	ActionSpan   string
	TargetText   string
	ColorList    []string
	IsTemplate   bool
	TemplateName string

	retries     map[string]int
	parsedCache map[string]parsedEntry
}

// NewState builds an empty runtime sharing the given queue.
func NewState(queue *Deque) *State {
	return &State{
		Queue:       queue,
		Recording:   NewRecordingState(),
		Variables:   map[string]*command.Variable{},
		retries:     map[string]int{},
		parsedCache: map[string]parsedEntry{},
	}
}

// VariableNames lists the bound variable names.
func (s *State) VariableNames() []string {
	names := make([]string, 0, len(s.Variables))
	for name := range s.Variables {
		names = append(names, name)
	}
	return names
}

// ClearParseCaches drops the parse and retry bookkeeping. Called when
// the screen context changes enough that cached targets are stale.
func (s *State) ClearParseCaches() {
	s.retries = map[string]int{}
	s.parsedCache = map[string]parsedEntry{}
}
