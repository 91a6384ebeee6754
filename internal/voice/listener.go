// Package voice feeds transcribed utterances into the command queue and
// supports mid-sequence voice prompts. Transcription itself happens
// out of process; this package only consumes the transcript stream.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/engine"
)

// Transcriber blocks until the user finishes speaking one utterance and
// returns its transcript. Push-to-talk and VAD policy live behind this
// interface.
type Transcriber interface {
	Listen(ctx context.Context) (string, error)
}

// Listener pumps transcripts onto the queue tail. Pausing diverts
// nothing; it just drops utterances, which is what the user expects when
// a sequence prompt has taken over the microphone.
type Listener struct {
	transcriber Transcriber
	queue       *engine.Deque
	paused      atomic.Bool
	logger      *zap.Logger
}

// NewListener builds a listener over the given transcriber.
func NewListener(transcriber Transcriber, queue *engine.Deque, logger *zap.Logger) (*Listener, error) {
	if transcriber == nil {
		return nil, fmt.Errorf("listener requires a transcriber")
	}
	if queue == nil {
		return nil, fmt.Errorf("listener requires a queue")
	}
	return &Listener{
		transcriber: transcriber,
		queue:       queue,
		logger:      logger.With(zap.String("component", "voice_listener")),
	}, nil
}

// Pause stops utterances reaching the queue until Resume.
func (l *Listener) Pause()  { l.paused.Store(true) }
func (l *Listener) Resume() { l.paused.Store(false) }

// Run pumps transcripts until the context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	for {
		text, err := l.transcriber.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				l.logger.Info("Transcript stream ended")
				return err
			}
			l.logger.Warn("Transcription failed", zap.Error(err))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if l.paused.Load() {
			l.logger.Debug("Listener paused, dropping utterance", zap.String("text", text))
			continue
		}
		l.logger.Info("Heard command", zap.String("text", text))
		l.queue.PushBack(command.NewContext(text))
	}
}
