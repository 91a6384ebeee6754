package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
)

func openTestStore(t *testing.T, path string) *Sequences {
	t.Helper()
	s, err := Open(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestOpen_CreatesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sequences.json")
	s := openTestStore(t, path)
	assert.Empty(t, s.Names())

	_, err := os.Stat(path)
	assert.NoError(t, err, "opening an absent store creates the file")
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sequences.json")
	s := openTestStore(t, path)

	loop := command.NewContext("start loop")
	loop.Meta[command.MetaLoopVar] = "city"
	loop.Subs = append(loop.Subs, command.NewContext("click {{city}}"))

	seq := StoredSequence{
		Steps: []*command.ContextDoc{
			command.NewContext("click the search box").Doc(),
			loop.Doc(),
		},
		Vars: []VarSpec{{Name: "city", Type: "list"}},
	}
	require.NoError(t, s.Save("  Book Flights  ", seq))

	// A fresh handle sees the persisted data.
	reloaded := openTestStore(t, path)
	assert.Equal(t, []string{"book flights"}, reloaded.Names(), "names are stored trimmed and lowercase")

	got, ok := reloaded.Get("Book Flights")
	require.True(t, ok)
	assert.Empty(t, cmp.Diff(seq.Steps, got.Steps), "the step tree round-trips unchanged")

	require.Len(t, got.Steps, 2)
	loopStep := got.Steps[1].Context()
	name, ok := loopStep.LoopVar()
	require.True(t, ok)
	assert.Equal(t, "city", name)
	require.Len(t, loopStep.Subs, 1)
	assert.Equal(t, "click {{city}}", loopStep.Subs[0].Text)

	require.Len(t, got.Vars, 1)
	assert.Equal(t, VarSpec{Name: "city", Type: "list"}, got.Vars[0])
}

func TestSave_ReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sequences.json")
	s := openTestStore(t, path)

	first := StoredSequence{Steps: []*command.ContextDoc{{Text: "one"}}}
	second := StoredSequence{Steps: []*command.ContextDoc{{Text: "two"}}}
	require.NoError(t, s.Save("demo", first))
	require.NoError(t, s.Save("demo", second))

	got, ok := s.Get("demo")
	require.True(t, ok)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, "two", got.Steps[0].Text)
	assert.Equal(t, []string{"demo"}, s.Names())
}

func TestGet_Missing(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "sequences.json"))
	_, ok := s.Get("never saved")
	assert.False(t, ok)
}

func TestOpen_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sequences.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Open(path, zaptest.NewLogger(t))
	assert.Error(t, err)
}
