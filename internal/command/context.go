// Package command defines the core value types of the command pipeline:
// the Context tree holding pending and recorded commands, the Intent sum
// type produced by the action resolver, variables captured from the
// screen, and the error taxonomy shared by the engine and its handlers.
package command

import (
	"strings"

	"github.com/google/uuid"
)

// Meta keys recognised on a Context.
const (
	MetaGPTApplied = "gpt_applied" // rewrite model has already run on this context
	MetaLoopVar    = "loop"        // template loop bound to this variable name
	MetaLoopCount  = "loop_count"  // numeric loop repetition count
)

// Context is one command unit. A Context may own a subtree of further
// Contexts when it represents a recorded loop or condition body. The
// subtree is owned exclusively by its parent; sharing a node between two
// parents (or inserting a node into its own subtree) is a recording bug
// and is rejected by the recording arena.
type Context struct {
	ID   string
	Text string
	Meta map[string]any
	Subs []*Context
}

// NewContext creates a leaf context for a raw utterance.
func NewContext(text string) *Context {
	return &Context{ID: uuid.NewString(), Text: text, Meta: map[string]any{}}
}

// Empty reports whether the context carries no command text.
func (c *Context) Empty() bool {
	return c == nil || strings.TrimSpace(c.Text) == ""
}

// Clone returns a deep copy with fresh identity. Expanded sequence steps
// must not alias the stored tree, so every replay iteration clones.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := &Context{ID: uuid.NewString(), Text: c.Text, Meta: make(map[string]any, len(c.Meta))}
	for k, v := range c.Meta {
		out.Meta[k] = v
	}
	for _, sub := range c.Subs {
		out.Subs = append(out.Subs, sub.Clone())
	}
	return out
}

// Contains reports whether other is c itself or a descendant of c.
func (c *Context) Contains(other *Context) bool {
	if c == nil || other == nil {
		return false
	}
	if c == other {
		return true
	}
	for _, sub := range c.Subs {
		if sub.Contains(other) {
			return true
		}
	}
	return false
}

// StripText trims surrounding whitespace from the whole subtree. Applied
// before a recording is serialised.
func (c *Context) StripText() {
	if c == nil {
		return
	}
	c.Text = strings.TrimSpace(c.Text)
	for _, sub := range c.Subs {
		sub.StripText()
	}
}

// LoopVar returns the template-loop variable bound to this context, if any.
func (c *Context) LoopVar() (string, bool) {
	v, ok := c.Meta[MetaLoopVar].(string)
	return v, ok && v != ""
}

// LoopCount returns the numeric loop count bound to this context, if any.
func (c *Context) LoopCount() (int, bool) {
	switch v := c.Meta[MetaLoopCount].(type) {
	case int:
		return v, v > 0
	case float64: // round-tripped through JSON
		return int(v), v > 0
	}
	return 0, false
}

// ContextDoc is the persisted form of a Context. Identity is not stored;
// steps regain fresh IDs when loaded.
type ContextDoc struct {
	Text string         `json:"text"`
	Meta map[string]any `json:"meta,omitempty"`
	Subs []*ContextDoc  `json:"sub_contexts,omitempty"`
}

// Doc converts the subtree to its persisted form, dropping empty metadata.
func (c *Context) Doc() *ContextDoc {
	if c == nil {
		return nil
	}
	d := &ContextDoc{Text: c.Text}
	if len(c.Meta) > 0 {
		d.Meta = c.Meta
	}
	for _, sub := range c.Subs {
		d.Subs = append(d.Subs, sub.Doc())
	}
	return d
}

// Context rebuilds a live context tree from its persisted form.
func (d *ContextDoc) Context() *Context {
	if d == nil {
		return nil
	}
	c := NewContext(d.Text)
	for k, v := range d.Meta {
		c.Meta[k] = v
	}
	for _, sub := range d.Subs {
		c.Subs = append(c.Subs, sub.Context())
	}
	return c
}
