// Package store persists recorded sequences as a single JSON document
// mapping lowercase sequence names to their step trees and declared
// variables.
package store

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// VarSpec declares a variable a sequence prompts for at replay. A
// non-empty Value pre-binds it and suppresses the prompt.
type VarSpec struct {
	Name  string   `json:"name"`
	Type  string   `json:"type,omitempty"`
	Value []string `json:"value,omitempty"`
}

// StoredSequence is one saved recording.
type StoredSequence struct {
	Steps []*command.ContextDoc `json:"steps"`
	Vars  []VarSpec             `json:"vars,omitempty"`
}

// Sequences is the on-disk sequence library. The whole file is rewritten
// on every save; recordings are small and atomicity beats incremental
// writes here.
type Sequences struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	data map[string]StoredSequence
}

// Open loads the library at path, creating an empty file when absent.
func Open(path string, logger *zap.Logger) (*Sequences, error) {
	s := &Sequences{
		path:   path,
		logger: logger.With(zap.String("component", "sequence_store")),
		data:   map[string]StoredSequence{},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading sequence store %s: %w", path, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("parsing sequence store %s: %w", path, err)
		}
	}
	s.logger.Debug("Sequence store loaded", zap.Int("sequences", len(s.data)))
	return s, nil
}

// Save writes a sequence under the given name, replacing any previous
// one. Names are stored lowercase.
func (s *Sequences) Save(name string, seq StoredSequence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[strings.ToLower(strings.TrimSpace(name))] = seq
	return s.flushLocked()
}

// Get returns the sequence stored under the exact (lowercase) name.
func (s *Sequences) Get(name string) (StoredSequence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.data[strings.ToLower(strings.TrimSpace(name))]
	return seq, ok
}

// Names lists the stored sequence names, sorted.
func (s *Sequences) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.data))
	for k := range s.data {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *Sequences) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding sequence store: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("writing sequence store %s: %w", s.path, err)
	}
	return nil
}
