package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
)

func TestDeque_Ordering(t *testing.T) {
	q := NewDeque()
	q.PushBack(command.NewContext("a"))
	q.PushBack(command.NewContext("b"))

	// PushFront(x, y) pops x before y, and both before the tail.
	q.PushFront(command.NewContext("x"), command.NewContext("y"))

	var popped []string
	for c := q.PopFront(); c != nil; c = q.PopFront() {
		popped = append(popped, c.Text)
	}
	assert.Equal(t, []string{"x", "y", "a", "b"}, popped)
}

func TestDeque_EmptyPop(t *testing.T) {
	q := NewDeque()
	assert.Nil(t, q.PopFront())
	q.PushFront()
	assert.Equal(t, 0, q.Len())
}

func TestDeque_ConcurrentProducers(t *testing.T) {
	q := NewDeque()
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.PushBack(command.NewContext("c"))
		}()
	}
	wg.Wait()
	require.Equal(t, n, q.Len())
}
