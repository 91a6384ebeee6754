package voice

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// VoicePrompter answers sequence-variable prompts by voice. The command
// listener is paused while a prompt is open so the answer doesn't also
// get executed as a command.
type VoicePrompter struct {
	transcriber Transcriber
	listener    *Listener
	logger      *zap.Logger
}

// NewVoicePrompter builds a prompter sharing the listener's transcriber.
func NewVoicePrompter(transcriber Transcriber, listener *Listener, logger *zap.Logger) (*VoicePrompter, error) {
	if transcriber == nil {
		return nil, fmt.Errorf("prompter requires a transcriber")
	}
	return &VoicePrompter{
		transcriber: transcriber,
		listener:    listener,
		logger:      logger.With(zap.String("component", "voice_prompter")),
	}, nil
}

// Prompt implements the handlers.Prompter contract.
func (p *VoicePrompter) Prompt(ctx context.Context, question string) (string, error) {
	if p.listener != nil {
		p.listener.Pause()
		defer p.listener.Resume()
	}
	p.logger.Info("Listening for answer", zap.String("question", question))
	return p.transcriber.Listen(ctx)
}
