package voice

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// LineTranscriber reads utterances as lines from a stream, typically a
// pipe fed by an external speech-to-text process (or a terminal, for
// typed commands). It satisfies Transcriber without any audio stack in
// this binary.
type LineTranscriber struct {
	scanner *bufio.Scanner
	lines   chan string
	errs    chan error
	started bool
}

// NewLineTranscriber wraps the reader. Reading starts lazily on the
// first Listen call.
func NewLineTranscriber(r io.Reader) *LineTranscriber {
	return &LineTranscriber{
		scanner: bufio.NewScanner(r),
		lines:   make(chan string),
		errs:    make(chan error, 1),
	}
}

// Listen implements Transcriber.
func (t *LineTranscriber) Listen(ctx context.Context) (string, error) {
	if !t.started {
		t.started = true
		go t.pump()
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-t.errs:
		return "", err
	case line := <-t.lines:
		return line, nil
	}
}

func (t *LineTranscriber) pump() {
	for t.scanner.Scan() {
		t.lines <- t.scanner.Text()
	}
	if err := t.scanner.Err(); err != nil {
		t.errs <- err
		return
	}
	t.errs <- fmt.Errorf("transcript stream closed: %w", io.EOF)
}
