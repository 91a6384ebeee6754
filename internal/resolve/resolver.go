package resolve

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree-cli/internal/command"
	"github.com/xkilldash9x/handsfree-cli/internal/config"
	"github.com/xkilldash9x/handsfree-cli/internal/match"
	"github.com/xkilldash9x/handsfree-cli/internal/models"
	"github.com/xkilldash9x/handsfree-cli/internal/ocr"
	"github.com/xkilldash9x/handsfree-cli/pkg/geometry"
)

// Color adjustment factors. A match whose text color agrees with the
// requested colors gets boosted, a disagreeing one penalized, both before
// the acceptance threshold applies, so color can rescue or sink a
// borderline match.
const (
	colorBoost   = 1.15
	colorPenalty = 0.85
)

// Match is one resolved on-screen target.
type Match struct {
	Text  string
	BBox  geometry.Rect
	Crop  []byte
	Score float64
	Value float64
	Color string
}

// Resolver scores OCR output against target phrases. colorName
// classifies a crop's text color; it is injected so tests don't need the
// vision stack.
type Resolver struct {
	client    models.Client
	cfg       config.MatchingConfig
	colorName func(crop []byte) string
	logger    *zap.Logger
}

// NewResolver builds a resolver. colorName may be nil when color
// filtering is unused.
func NewResolver(client models.Client, cfg config.MatchingConfig, colorName func([]byte) string, logger *zap.Logger) (*Resolver, error) {
	if client == nil {
		return nil, fmt.Errorf("resolver requires a model client")
	}
	return &Resolver{
		client:    client,
		cfg:       cfg,
		colorName: colorName,
		logger:    logger.With(zap.String("component", "resolver")),
	}, nil
}

// ResolveText finds the OCR item(s) best matching the target phrase.
// With all=false the single best match above the acceptance threshold
// comes back; with all=true, every match above it. Colors previously
// stripped from the utterance bias the scores. No acceptable match is
// command.ErrNoTargetResolved.
func (r *Resolver) ResolveText(ctx context.Context, target string, colors []string, lines []ocr.Line, all bool) ([]Match, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return nil, command.ErrNoTargetResolved
	}

	embs, err := r.client.Embed(ctx, []string{target})
	if err != nil {
		return nil, err
	}
	targetEmb := embs[0]

	var results []Match
	best := Match{Score: -1}

	for _, line := range lines {
		for _, it := range line {
			itemText := strings.ToLower(it.Text)
			sim := match.HybridScore(target, itemText, targetEmb, it.Embedding)
			if target == itemText {
				sim = match.ExactBoost(sim, target, r.cfg.TargetExactBoost)
			}

			var colorText string
			if sim > r.cfg.AcceptThreshold && len(colors) > 0 && len(it.Crop) > 0 && r.colorName != nil {
				colorText = r.colorName(it.Crop)
				if containsString(colors, colorText) {
					sim *= colorBoost
				} else {
					sim *= colorPenalty
				}
			}

			m := Match{Text: it.Text, BBox: it.BBox, Crop: it.Crop, Score: sim, Color: colorText}
			if all {
				if sim > r.cfg.AcceptThreshold {
					results = append(results, m)
				}
			} else if sim > best.Score {
				best = m
			}
		}
	}

	if all {
		if len(results) == 0 {
			return nil, command.ErrNoTargetResolved
		}
		sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
		return results, nil
	}
	if best.Score <= r.cfg.AcceptThreshold {
		r.logger.Debug("No target above threshold",
			zap.String("target", target), zap.Float64("best", best.Score))
		return nil, command.ErrNoTargetResolved
	}
	return []Match{best}, nil
}

// ResolveNumeric finds on-screen numbers satisfying a comparator phrase.
// The number is taken from the last whitespace token of each OCR item,
// so "Total: 42" matches as 42. "all" and "all numbers" bypass the
// comparators entirely. With all=false the match with the largest value
// wins; with all=true, matches come back sorted top-to-bottom.
func (r *Resolver) ResolveNumeric(ctx context.Context, target string, colors []string, lines []ocr.Line, all bool) ([]Match, error) {
	target = strings.ToLower(strings.TrimSpace(target))

	if target == "all" || target == "all numbers" {
		results := collectNumeric(lines, nil)
		if len(results) == 0 {
			return nil, command.ErrNoTargetResolved
		}
		sortByY(results)
		return results, nil
	}

	parts := strings.Fields(target)
	if len(parts) == 0 {
		return nil, command.ErrNoTargetResolved
	}
	rules := match.ParseSignNumber(parts[len(parts)-1])
	if rules == nil {
		return nil, command.ErrNoTargetResolved
	}

	candidates := collectNumeric(lines, rules)
	if len(candidates) == 0 {
		return nil, command.ErrNoTargetResolved
	}

	if len(colors) > 0 && r.colorName != nil {
		candidates, err := r.filterByColor(ctx, candidates, colors)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, command.ErrNoTargetResolved
		}
		return pickNumeric(candidates, all), nil
	}
	return pickNumeric(candidates, all), nil
}

func pickNumeric(results []Match, all bool) []Match {
	sortByY(results)
	if all {
		return results
	}
	best := results[0]
	for _, m := range results[1:] {
		if m.Value > best.Value {
			best = m
		}
	}
	return []Match{best}
}

// filterByColor keeps candidates whose classified text color fuzzily
// matches one of the requested colors. Color names are compared with the
// hybrid score so "grey" still matches "gray".
func (r *Resolver) filterByColor(ctx context.Context, candidates []Match, colors []string) ([]Match, error) {
	for i := range candidates {
		if len(candidates[i].Crop) > 0 {
			candidates[i].Color = r.colorName(candidates[i].Crop)
		}
	}

	unique := map[string][]float64{}
	var toEmbed []string
	for _, c := range candidates {
		if c.Color != "" {
			if _, seen := unique[c.Color]; !seen {
				unique[c.Color] = nil
				toEmbed = append(toEmbed, c.Color)
			}
		}
	}
	sort.Strings(toEmbed)
	all := append(append([]string{}, colors...), toEmbed...)
	embs, err := r.client.Embed(ctx, all)
	if err != nil {
		return nil, err
	}
	colorEmbs := embs[:len(colors)]
	for i, name := range toEmbed {
		unique[name] = embs[len(colors)+i]
	}

	var kept []Match
	for _, c := range candidates {
		if c.Color == "" {
			continue
		}
		bestSim := -1.0
		for i, want := range colors {
			if sim := match.HybridScore(want, c.Color, colorEmbs[i], unique[c.Color]); sim > bestSim {
				bestSim = sim
			}
		}
		if bestSim >= r.cfg.ColorSimilarityThreshold {
			kept = append(kept, c)
		}
	}
	return kept, nil
}

// collectNumeric extracts the trailing number of every OCR item passing
// all rules. nil rules accept everything numeric.
func collectNumeric(lines []ocr.Line, rules []match.NumRule) []Match {
	var out []Match
	for _, line := range lines {
		for _, it := range line {
			fields := strings.Fields(strings.TrimSpace(it.Text))
			if len(fields) == 0 {
				continue
			}
			val, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err != nil {
				continue
			}
			ok := true
			for _, rule := range rules {
				if !rule.Matches(val) {
					ok = false
					break
				}
			}
			if ok {
				out = append(out, Match{Text: it.Text, BBox: it.BBox, Crop: it.Crop, Value: val})
			}
		}
	}
	return out
}

func sortByY(results []Match) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].BBox.Y < results[j].BBox.Y })
}

// BestName picks the candidate name closest to the spoken one by pure
// embedding similarity, gated at the strict name threshold. Used for
// saved sequences, variables, and image basenames, where a wrong pick
// executes the wrong thing.
func (r *Resolver) BestName(ctx context.Context, spoken string, names []string) (string, error) {
	if len(names) == 0 {
		return "", command.ErrNoTargetResolved
	}
	texts := append([]string{spoken}, names...)
	embs, err := r.client.Embed(ctx, texts)
	if err != nil {
		return "", err
	}
	best, bestSim := "", -1.0
	for i, name := range names {
		if sim := match.CosineSim(embs[0], embs[i+1]); sim > bestSim {
			bestSim = sim
			best = name
		}
	}
	if bestSim < r.cfg.NameThreshold {
		r.logger.Debug("No name above threshold",
			zap.String("spoken", spoken), zap.Float64("best", bestSim))
		return "", command.ErrNoTargetResolved
	}
	return best, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
