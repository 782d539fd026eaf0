package retrieval

import (
	"context"
	"math"
	"strings"

	"github.com/JuanR0/biblio/internal/textproc"
)

// Categorization is the outcome of classifying one question.
type Categorization struct {
	Category   string             `json:"category"`
	Confidence float64            `json:"confidence"`
	Exclusive  string             `json:"exclusive,omitempty"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	Phrases    []string           `json:"phrases,omitempty"`
	Features   []string           `json:"features,omitempty"`
	Defaulted  bool               `json:"defaulted,omitempty"`
}

type compiledCategory struct {
	name      string
	keywords  []Keyword
	exclusive []string
	phrases   []string
}

// Categorizer assigns questions to a category. It is immutable and safe for
// concurrent use.
type Categorizer struct {
	categories []compiledCategory
	general    string
	scoring    ScoringConfig
	extractor  textproc.FeatureExtractor
	maxScore   float64
}

// NewCategorizer compiles the taxonomy. Keywords, exclusive words and
// phrases are normalized once here. A nil extractor disables feature
// scoring.
func NewCategorizer(tax Taxonomy, scoring ScoringConfig, extractor textproc.FeatureExtractor) *Categorizer {
	c := &Categorizer{
		general:   tax.General,
		scoring:   scoring,
		extractor: extractor,
	}
	for _, spec := range tax.Categories {
		cc := compiledCategory{name: spec.Name}
		for _, k := range spec.Keywords {
			if w := textproc.Normalize(k.Word); w != "" {
				cc.keywords = append(cc.keywords, Keyword{Word: w, Weight: k.Weight})
			}
		}
		cc.exclusive = normalizeAll(spec.Exclusive)
		cc.phrases = normalizeAll(spec.Phrases)
		c.categories = append(c.categories, cc)
		c.maxScore += spec.MaxWeight() * 3
	}
	return c
}

func normalizeAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if n := textproc.Normalize(it); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Categorize returns the category of text and the confidence in [0,1].
func (c *Categorizer) Categorize(ctx context.Context, text string) (string, float64) {
	res := c.Classify(ctx, text)
	return res.Category, res.Confidence
}

// Classify categorizes text and reports how the decision was reached.
func (c *Categorizer) Classify(ctx context.Context, text string) Categorization {
	normalized := textproc.Normalize(text)

	for _, cat := range c.categories {
		for _, ex := range cat.exclusive {
			if strings.Contains(normalized, ex) {
				return Categorization{Category: cat.name, Confidence: 1.0, Exclusive: ex}
			}
		}
	}

	features := c.features(ctx, normalized)
	featureSet := make(map[string]struct{}, len(features))
	for _, f := range features {
		featureSet[f] = struct{}{}
	}
	padded := " " + normalized + " "

	res := Categorization{Scores: make(map[string]float64, len(c.categories)), Features: features}
	best, bestScore := "", math.Inf(-1)
	for _, cat := range c.categories {
		score := 0.0
		for _, kw := range cat.keywords {
			score += kw.Weight * c.positionBonus(normalized, padded, kw.Word, featureSet)
		}
		for _, phrase := range cat.phrases {
			if strings.Contains(normalized, phrase) {
				score += c.scoring.PhraseBoost
				res.Phrases = append(res.Phrases, phrase)
			}
		}
		res.Scores[cat.name] = score
		if score > bestScore {
			best, bestScore = cat.name, score
		}
	}

	if best == "" || bestScore < c.scoring.MinCategory {
		res.Category = c.general
		res.Confidence = c.scoring.DefaultCategory
		res.Defaulted = true
		return res
	}

	res.Category = best
	res.Confidence = 1.0
	if c.maxScore > 0 {
		res.Confidence = clamp01(bestScore / c.maxScore)
	}
	return res
}

// positionBonus scores one keyword occurrence: a whole word at the start,
// a whole word elsewhere, a bare substring, or only a lemma feature.
func (c *Categorizer) positionBonus(normalized, padded, kw string, features map[string]struct{}) float64 {
	switch {
	case normalized == kw || strings.HasPrefix(normalized, kw+" "):
		return c.scoring.StartBonus
	case strings.Contains(padded, " "+kw+" "):
		return c.scoring.WordBonus
	case strings.Contains(normalized, kw):
		return c.scoring.SubstringBonus
	}
	if _, ok := features[kw]; ok {
		return c.scoring.FeatureBonus
	}
	return 0
}

func (c *Categorizer) features(ctx context.Context, normalized string) []string {
	if c.extractor == nil || normalized == "" {
		return nil
	}
	words, err := c.extractor.Extract(ctx, normalized)
	if err != nil {
		return nil
	}
	return words
}
