package engine

import (
	"fmt"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
)

// RecordingState is the arena a sequence recording grows in. Steps hang
// off a sentinel root context; loop and condition bodies open nested
// scopes, tracked as a stack of insertion points. Each node is owned by
// exactly one parent, so inserting a node somewhere inside its own
// subtree is rejected.
type RecordingState struct {
	active bool
	name   string
	root   *command.Context
	stack  []*command.Context
}

// NewRecordingState returns an inactive recorder.
func NewRecordingState() *RecordingState {
	r := &RecordingState{}
	r.reset()
	return r
}

func (r *RecordingState) reset() {
	r.root = command.NewContext("")
	r.stack = []*command.Context{r.root}
}

// Active reports whether a recording is in progress.
func (r *RecordingState) Active() bool { return r.active }

// Name returns the name the recording will be saved under.
func (r *RecordingState) Name() string { return r.name }

// Begin starts a fresh recording under the given name, discarding any
// half-finished one.
func (r *RecordingState) Begin(name string) {
	r.reset()
	r.active = true
	r.name = name
}

// Append adds a step at the current insertion point.
func (r *RecordingState) Append(c *command.Context) error {
	if !r.active {
		return fmt.Errorf("no active recording")
	}
	top := r.stack[len(r.stack)-1]
	if c.Contains(top) {
		return fmt.Errorf("recording step %q would contain its own insertion point", c.Text)
	}
	c.StripText()
	top.Subs = append(top.Subs, c)
	return nil
}

// OpenScope appends c as a step and makes its subtree the insertion
// point, so following steps become its body. Loop and condition starts
// call this.
func (r *RecordingState) OpenScope(c *command.Context) error {
	if err := r.Append(c); err != nil {
		return err
	}
	r.stack = append(r.stack, c)
	return nil
}

// CloseScope pops back to the enclosing insertion point. Closing with no
// scope open is a user error ("end loop" without "start loop").
func (r *RecordingState) CloseScope() error {
	if len(r.stack) <= 1 {
		return fmt.Errorf("no open scope to close")
	}
	r.stack[len(r.stack)-1] = nil
	r.stack = r.stack[:len(r.stack)-1]
	return nil
}

// InScope reports whether a nested scope is currently open.
func (r *RecordingState) InScope() bool { return len(r.stack) > 1 }

// ClearPrev removes the most recent step at the current insertion point.
func (r *RecordingState) ClearPrev() {
	top := r.stack[len(r.stack)-1]
	if n := len(top.Subs); n > 0 {
		top.Subs = top.Subs[:n-1]
	}
}

// ResetSteps drops every recorded step but keeps the recording active
// under the same name.
func (r *RecordingState) ResetSteps() {
	name := r.name
	r.reset()
	r.name = name
}

// Steps returns the recorded top-level steps.
func (r *RecordingState) Steps() []*command.Context { return r.root.Subs }

// End deactivates the recording and returns its steps.
func (r *RecordingState) End() []*command.Context {
	steps := r.root.Subs
	r.active = false
	r.name = ""
	r.reset()
	return steps
}
