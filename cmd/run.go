package cmd

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/png"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/handsfree-cli/internal/desktop"
	"github.com/xkilldash9x/handsfree-cli/internal/engine"
	"github.com/xkilldash9x/handsfree-cli/internal/handlers"
	"github.com/xkilldash9x/handsfree-cli/internal/models"
	"github.com/xkilldash9x/handsfree-cli/internal/observability"
	"github.com/xkilldash9x/handsfree-cli/internal/ocr"
	"github.com/xkilldash9x/handsfree-cli/internal/resolve"
	"github.com/xkilldash9x/handsfree-cli/internal/store"
	"github.com/xkilldash9x/handsfree-cli/internal/vision"
	"github.com/xkilldash9x/handsfree-cli/internal/voice"
)

// newRunCmd creates the `run` command, which wires the whole pipeline
// and processes commands until interrupted.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Listen for commands and execute them",
		Long: `Run starts the command pipeline. Utterances are read line by line
from stdin (pipe your speech-to-text process into it), interpreted, and
executed against the desktop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), os.Stdin)
		},
	}
}

func runPipeline(ctx context.Context, transcripts io.Reader) error {
	logger := observability.GetLogger()

	client := models.NewHTTPClient(cfg.Models, logger)

	logger.Info("Embedding action vocabulary")
	aliases, err := resolve.EmbedEvents(ctx, client)
	if err != nil {
		return err
	}

	pipeline, err := ocr.NewPipeline(client, cfg.Vision, logger)
	if err != nil {
		return err
	}
	resolver, err := resolve.NewResolver(client, cfg.Matching, cropColorName, logger)
	if err != nil {
		return err
	}

	sequences, err := store.Open(cfg.Store.SequencesPath, logger)
	if err != nil {
		return err
	}

	projector := vision.ScharrProjector{}
	locator := vision.NewLocator(projector, cfg.Vision.SpatialDistance, logger)
	finder := vision.NewTemplateMatcher(projector, logger)

	queue := engine.NewDeque()
	st := engine.NewState(queue)
	st.EventAliases = aliases

	transcriber := voice.NewLineTranscriber(transcripts)
	listener, err := voice.NewListener(transcriber, queue, logger)
	if err != nil {
		return err
	}
	prompter, err := voice.NewVoicePrompter(transcriber, listener, logger)
	if err != nil {
		return err
	}

	dispatcher, err := handlers.NewDispatcher(ctx, handlers.Deps{
		Cfg:      cfg,
		Logger:   logger,
		Models:   client,
		OCR:      pipeline,
		Resolver: resolver,
		Grabber:  desktop.Grabber{},
		Locator:  locator,
		Finder:   finder,
		Images:   vision.ImageLibrary{Dir: cfg.Vision.ImageDir},
		Mouse:    desktop.NewMouse(logger),
		Keyboard: desktop.Keyboard{},
		Selector: desktop.NoSelector{},
		Prompter: prompter,
		Store:    sequences,
	})
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, client, dispatcher, st, logger)
	if err != nil {
		return err
	}

	logger.Info("Pipeline ready, listening for commands")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listener.Run(gctx) })
	g.Go(func() error { return eng.Run(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		logger.Info("Shutting down")
		// Give in-flight log writes a moment before Sync.
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	return err
}

// cropColorName classifies the text color of an OCR crop (PNG bytes)
// against the spoken color palette.
func cropColorName(crop []byte) string {
	img, _, err := image.Decode(bytes.NewReader(crop))
	if err != nil {
		return ""
	}
	return vision.ColorName(vision.DominantTextColor(img))
}
