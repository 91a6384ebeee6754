// Package ocr turns screenshots into embedded text lines. It caches both
// the previous frame (to skip OCR entirely when the screen is static)
// and per-box embeddings (to skip re-embedding text that didn't move).
package ocr

import (
	"context"
	"fmt"
	"image"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/config"
	"github.com/xkilldash9x/handsfree-cli/internal/models"
	"github.com/xkilldash9x/handsfree-cli/internal/vision"
	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

// Item is one recognized box with its text embedding attached. For
// number-filtered items Text keeps the full recognized string while BBox
// shrinks to the digit run.
type Item struct {
	BBox      geometry.Rect
	Text      string
	Crop      []byte
	Embedding []float64
}

// Line is one OCR text line, items left-to-right.
type Line []Item

// Pipeline runs capture-to-embeddings. Safe for use from one engine
// goroutine; the mutex covers the caches against concurrent condition
// polls.
type Pipeline struct {
	client models.Client
	cfg    config.VisionConfig
	logger *zap.Logger

	mu        sync.Mutex
	embCache  map[string][]float64
	prevImg   image.Image
	prevLines []Line
}

// NewPipeline builds a pipeline over the given model client.
func NewPipeline(client models.Client, cfg config.VisionConfig, logger *zap.Logger) (*Pipeline, error) {
	if client == nil {
		return nil, fmt.Errorf("ocr pipeline requires a model client")
	}
	return &Pipeline{
		client:   client,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "ocr")),
		embCache: make(map[string][]float64),
	}, nil
}

// Run recognizes and embeds the text on a screenshot. When the frame is
// visually identical to the previous one the cached lines come back
// without a model round-trip. With numberOnly set, items are narrowed to
// their digit runs before embedding.
func (p *Pipeline) Run(ctx context.Context, img image.Image, offset geometry.Point, numberOnly bool) ([]Line, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !numberOnly && p.prevLines != nil && vision.DiffPercent(p.prevImg, img) < p.cfg.ScreenDiffThreshold {
		p.logger.Debug("Screen unchanged, reusing OCR result", zap.Int("lines", len(p.prevLines)))
		return p.prevLines, nil
	}

	wire, err := p.client.OCR(ctx, img, offset)
	if err != nil {
		// A stale read beats a dead stop when the model host hiccups
		// mid-session.
		if !numberOnly && p.prevLines != nil {
			p.logger.Warn("OCR call failed, falling back to previous frame", zap.Error(err))
			return p.prevLines, nil
		}
		return nil, err
	}

	lines := make([]Line, 0, len(wire))
	for _, wl := range wire {
		line := make(Line, 0, len(wl))
		for _, it := range wl {
			if strings.TrimSpace(it.Text) == "" {
				continue
			}
			line = append(line, Item{BBox: it.BBox, Text: it.Text, Crop: it.Crop})
		}
		if len(line) > 0 {
			lines = append(lines, line)
		}
	}

	if numberOnly {
		lines = FilterNumbers(lines)
	}

	if err := p.embedLines(ctx, lines); err != nil {
		return nil, err
	}

	if !numberOnly {
		p.prevImg = img
		p.prevLines = lines
	}
	return lines, nil
}

// Reset drops the frame and line caches. Called when the capture region
// changes, since boxes from the old region would alias the new one.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prevImg = nil
	p.prevLines = nil
}

// embedLines fills Embedding on every item, batching all cache misses
// into a single model call.
func (p *Pipeline) embedLines(ctx context.Context, lines []Line) error {
	type slot struct {
		line, idx int
		key       string
	}
	var texts []string
	var slots []slot

	for li, line := range lines {
		for i, it := range line {
			key := embKey(it.Text, it.BBox)
			if emb, ok := p.embCache[key]; ok {
				lines[li][i].Embedding = emb
				continue
			}
			texts = append(texts, it.Text)
			slots = append(slots, slot{line: li, idx: i, key: key})
		}
	}
	if len(texts) == 0 {
		return nil
	}

	embs, err := p.client.Embed(ctx, texts)
	if err != nil {
		return err
	}
	for i, s := range slots {
		p.embCache[s.key] = embs[i]
		lines[s.line][s.idx].Embedding = embs[i]
	}
	p.logger.Debug("Embedded OCR lines", zap.Int("new", len(texts)), zap.Int("cached", cacheHits(lines, len(texts))))
	return nil
}

func cacheHits(lines []Line, misses int) int {
	total := 0
	for _, l := range lines {
		total += len(l)
	}
	return total - misses
}

func embKey(text string, b geometry.Rect) string {
	return fmt.Sprintf("%s_%d_%d_%d_%d", text, b.X, b.Y, b.W, b.H)
}

var digitRunRe = regexp.MustCompile(`\d+`)

// FilterNumbers narrows each item to the digit runs inside it, one item
// per run, estimating the sub-box from the average character width. Items
// without digits drop out.
func FilterNumbers(lines []Line) []Line {
	var filtered []Line
	for _, line := range lines {
		var out Line
		for _, it := range line {
			text := strings.TrimSpace(it.Text)
			if text == "" {
				continue
			}
			charW := float64(it.BBox.W) / float64(len(text)+1)
			for _, loc := range digitRunRe.FindAllStringIndex(text, -1) {
				out = append(out, Item{
					BBox: geometry.Rect{
						X: it.BBox.X + int(float64(loc[0])*charW),
						Y: it.BBox.Y,
						W: int(float64(loc[1]-loc[0]) * charW),
						H: it.BBox.H,
					},
					Text: text,
					Crop: it.Crop,
				})
			}
		}
		if len(out) > 0 {
			filtered = append(filtered, out)
		}
	}
	return filtered
}
