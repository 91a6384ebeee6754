package vision

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

// imageExtensions are the file types the clickable-image library accepts.
var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".bmp": true, ".gif": true, ".webp": true,
}

// ImageLibrary lists the user's saved clickable images. Basenames double
// as the spoken names commands refer to them by, so "click the mibombo
// image" resolves against mibombo.png.
type ImageLibrary struct {
	Dir string
}

// Names returns the spoken name of every image in the library, in
// directory order.
func (l ImageLibrary) Names() ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading image library %s: %w", l.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if imageExtensions[ext] {
			names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		}
	}
	return names, nil
}

// PathFor resolves a spoken name back to the image file, whatever its
// extension.
func (l ImageLibrary) PathFor(name string) (string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return "", fmt.Errorf("reading image library %s: %w", l.Dir, err)
	}
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if imageExtensions[strings.ToLower(ext)] && strings.TrimSuffix(e.Name(), ext) == name {
			return filepath.Join(l.Dir, e.Name()), nil
		}
	}
	return "", fmt.Errorf("no image named %q in %s", name, l.Dir)
}

// TemplateFinder locates a template image file on a screenshot.
type TemplateFinder interface {
	Find(ctx context.Context, screen image.Image, templatePath string) (geometry.Rect, error)
}

// Multi-scale matching parameters. DPI scaling and browser zoom move
// saved crops up to 25% off their captured size.
const (
	matchScaleRange = 1.25
	matchScaleSteps = 20
	matchThreshold  = 0.75
	projScoreWeight = 0.1
)

// TemplateMatcher finds templates with multi-scale normalized
// cross-correlation, averaged over channels, with an edge-projection
// bonus that separates a true match from a same-colored rectangle.
type TemplateMatcher struct {
	projector Projector
	logger    *zap.Logger
}

// NewTemplateMatcher builds the production TemplateFinder.
func NewTemplateMatcher(projector Projector, logger *zap.Logger) *TemplateMatcher {
	return &TemplateMatcher{
		projector: projector,
		logger:    logger.With(zap.String("component", "template_matcher")),
	}
}

// Find implements TemplateFinder.
func (m *TemplateMatcher) Find(ctx context.Context, screen image.Image, templatePath string) (geometry.Rect, error) {
	tmpl := gocv.IMRead(templatePath, gocv.IMReadColor)
	if tmpl.Empty() {
		return geometry.Rect{}, fmt.Errorf("could not read template %s", templatePath)
	}
	defer tmpl.Close()

	screenRect := geometry.FromImage(screen.Bounds())
	img, err := imageToMat(screen, screenRect)
	if err != nil {
		return geometry.Rect{}, err
	}
	defer img.Close()

	bestScore := -1.0
	var bestBox geometry.Rect

	w0, h0 := tmpl.Cols(), tmpl.Rows()
	for i := 0; i < matchScaleSteps; i++ {
		if err := ctx.Err(); err != nil {
			return geometry.Rect{}, err
		}
		s := 1/matchScaleRange + float64(i)*(matchScaleRange-1/matchScaleRange)/(matchScaleSteps-1)
		w, h := int(float64(w0)*s), int(float64(h0)*s)
		if w <= 0 || h <= 0 || w > img.Cols() || h > img.Rows() {
			continue
		}

		scaled := gocv.NewMat()
		gocv.Resize(tmpl, &scaled, image.Point{X: w, Y: h}, 0, 0, gocv.InterpolationNearestNeighbor)

		score, loc := m.matchChannels(img, scaled)
		scaled.Close()
		if loc.X < 0 {
			continue
		}

		box := geometry.Rect{X: loc.X, Y: loc.Y, W: w, H: h}
		score += projScoreWeight * m.projectionAgreement(screen, box, templatePath, s)

		if score > bestScore {
			bestScore = score
			bestBox = box
		}
	}

	if bestScore < matchThreshold {
		m.logger.Debug("Template match below threshold",
			zap.String("template", templatePath), zap.Float64("best_score", bestScore))
		return geometry.Rect{}, fmt.Errorf("template %s not found on screen (best %.2f)", filepath.Base(templatePath), bestScore)
	}
	return bestBox, nil
}

// matchChannels runs normalized cross-correlation per channel and
// averages, which penalizes matches that only agree in luminance.
func (m *TemplateMatcher) matchChannels(img, tmpl gocv.Mat) (float64, image.Point) {
	imgCh := gocv.Split(img)
	tmplCh := gocv.Split(tmpl)
	defer func() {
		for _, c := range imgCh {
			c.Close()
		}
		for _, c := range tmplCh {
			c.Close()
		}
	}()
	if len(imgCh) != 3 || len(tmplCh) != 3 {
		return -1, image.Point{X: -1, Y: -1}
	}

	sum := gocv.NewMat()
	defer sum.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	for i := 0; i < 3; i++ {
		res := gocv.NewMat()
		gocv.MatchTemplate(imgCh[i], tmplCh[i], &res, gocv.TmCcoeffNormed, mask)
		if i == 0 {
			res.CopyTo(&sum)
		} else {
			gocv.Add(sum, res, &sum)
		}
		res.Close()
	}

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(sum)
	return float64(maxVal) / 3, maxLoc
}

// projectionAgreement scores how well the edge projections of the
// matched region line up with the template's own.
func (m *TemplateMatcher) projectionAgreement(screen image.Image, box geometry.Rect, templatePath string, scale float64) float64 {
	tmplImg, err := loadImage(templatePath)
	if err != nil {
		return 0
	}
	opts := EdgeOptions{EdgeDropout: 0.15, ProjDropout: 0.05}

	mx, my, err := m.projector.Project(screen, box, opts)
	if err != nil {
		return 0
	}
	tx, ty, err := m.projector.Project(tmplImg, geometry.FromImage(tmplImg.Bounds()), opts)
	if err != nil {
		return 0
	}
	return (projCosine(resampleProj(tx, len(mx)), mx) + projCosine(resampleProj(ty, len(my)), my)) / 2
}

func projCosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-8)
}

// resampleProj stretches a projection to n bins by nearest sampling.
func resampleProj(p []float64, n int) []float64 {
	if len(p) == n || len(p) == 0 || n == 0 {
		return p
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = p[i*len(p)/n]
	}
	return out
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
