package engine

import (
	"sync"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
)

// Deque is the pending-command queue. The voice listener appends to the
// tail while the engine pops the head; retries and expansions push to
// the head so they run before anything newly spoken.
type Deque struct {
	mu    sync.Mutex
	items []*command.Context
}

// NewDeque returns an empty queue.
func NewDeque() *Deque { return &Deque{} }

// PushBack appends to the tail.
func (d *Deque) PushBack(c *command.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(d.items, c)
}

// PushFront inserts at the head. Multiple contexts keep their order:
// PushFront(a, b) pops a first.
func (d *Deque) PushFront(cs ...*command.Context) {
	if len(cs) == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = append(append(make([]*command.Context, 0, len(cs)+len(d.items)), cs...), d.items...)
}

// PopFront removes and returns the head, or nil when empty.
func (d *Deque) PopFront() *command.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.items) == 0 {
		return nil
	}
	c := d.items[0]
	d.items[0] = nil
	d.items = d.items[1:]
	return c
}

// Len returns the number of queued contexts.
func (d *Deque) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
