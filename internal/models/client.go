// Package models is the boundary to the external model host serving the
// embedding, command-rewrite, and OCR models. All three calls are
// synchronous request/reply RPCs with bounded timeouts; any transport
// error, timeout, or server-reported exception surfaces as a single
// opaque failure wrapping command.ErrModelUnavailable so the engine
// treats it like any other retryable handler failure.
package models

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/config"
	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OCRItem is one recognized text box. Crop, when present, is the PNG
// bytes of the box's image patch, used for text-color classification.
type OCRItem struct {
	BBox geometry.Rect
	Text string
	Crop []byte
}

// Client is the consumed model-host interface. Implementations must
// preserve input order for Embed and return whole-batch failures.
type Client interface {
	// Embed returns one embedding vector per input text, order-preserving.
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	// Rewrite runs the command-rewriting model. The response may be
	// multi-line; the caller splits primary command from follow-ups.
	Rewrite(ctx context.Context, input string) (string, error)
	// OCR recognizes text in the image. The outer slice is text lines
	// top-to-bottom; the inner slice is items left-to-right. The offset
	// is forwarded so the host can report absolute coordinates.
	OCR(ctx context.Context, img image.Image, offset geometry.Point) ([][]OCRItem, error)
}

// HTTPClient talks to the model host over its JSON/multipart REST surface.
type HTTPClient struct {
	base   string
	http   *http.Client
	cfg    config.ModelsConfig
	logger *zap.Logger
}

// NewHTTPClient builds a client for the configured host.
func NewHTTPClient(cfg config.ModelsConfig, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		base:   cfg.BaseURL,
		http:   &http.Client{},
		cfg:    cfg,
		logger: logger.With(zap.String("component", "models")),
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", command.ErrModelUnavailable, op, err)
}

// post issues a JSON request with the given timeout and decodes the body
// into out. Server-side errors come back as {"error": ..., "traceback": ...}.
func (c *HTTPClient) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return unavailable(endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return unavailable(endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *HTTPClient) do(req *http.Request, endpoint string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return unavailable(endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return unavailable(endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return unavailable(endpoint, fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(raw)))
	}

	// The host reports model exceptions in-band with a 200.
	var serverErr struct {
		Error     string `json:"error"`
		Traceback string `json:"traceback"`
	}
	if json.Unmarshal(raw, &serverErr) == nil && serverErr.Error != "" {
		c.logger.Debug("Model host reported exception",
			zap.String("endpoint", endpoint), zap.String("traceback", serverErr.Traceback))
		return unavailable(endpoint, fmt.Errorf("%s", serverErr.Error))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return unavailable(endpoint, err)
	}
	return nil
}

// Embed implements Client.
func (c *HTTPClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EmbedTimeout)
	defer cancel()

	var vectors [][]float64
	if err := c.post(ctx, "embed", map[string]any{"text": texts}, &vectors); err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, unavailable("embed", fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts)))
	}
	return vectors, nil
}

// Rewrite implements Client.
func (c *HTTPClient) Rewrite(ctx context.Context, input string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RewriteTimeout)
	defer cancel()

	var out string
	if err := c.post(ctx, "gpt", map[string]any{"input": input}, &out); err != nil {
		return "", err
	}
	return out, nil
}

// ocrWireItem is the host's wire form: [bbox, text, crop].
type ocrWireItem struct {
	BBox [4]int `json:"bbox"`
	Text string `json:"text"`
	Crop []byte `json:"crop"` // base64 PNG; jsoniter decodes into bytes
}

// OCR implements Client.
func (c *HTTPClient) OCR(ctx context.Context, img image.Image, offset geometry.Point) ([][]OCRItem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OCRTimeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "screenshot.png")
	if err != nil {
		return nil, unavailable("ocr", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, unavailable("ocr", err)
	}
	if err := mw.WriteField("ox", strconv.Itoa(offset.X)); err != nil {
		return nil, unavailable("ocr", err)
	}
	if err := mw.WriteField("oy", strconv.Itoa(offset.Y)); err != nil {
		return nil, unavailable("ocr", err)
	}
	if err := mw.Close(); err != nil {
		return nil, unavailable("ocr", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/ocr", &buf)
	if err != nil {
		return nil, unavailable("ocr", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var wire [][]ocrWireItem
	if err := c.do(req, "ocr", &wire); err != nil {
		return nil, err
	}

	lines := make([][]OCRItem, 0, len(wire))
	for _, line := range wire {
		items := make([]OCRItem, 0, len(line))
		for _, it := range line {
			items = append(items, OCRItem{
				BBox: geometry.Rect{X: it.BBox[0], Y: it.BBox[1], W: it.BBox[2], H: it.BBox[3]},
				Text: it.Text,
				Crop: it.Crop,
			})
		}
		lines = append(lines, items)
	}
	return lines, nil
}
