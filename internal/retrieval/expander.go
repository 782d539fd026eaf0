package retrieval

import (
	"context"
	"strings"

	"github.com/JuanR0/biblio/internal/synonyms"
	"github.com/JuanR0/biblio/internal/textproc"
)

// Expander produces query variants from a normalized question.
type Expander struct {
	synonyms  *synonyms.Index
	protected map[string]struct{}
	stripper  *textproc.BasicExtractor
	extractor textproc.FeatureExtractor
}

// NewExpander creates an expander. Critical words are never substituted and
// survive stop-word removal. When extractor is enriched, its lemma form is
// added as a further variant.
func NewExpander(idx *synonyms.Index, tax Taxonomy, extractor textproc.FeatureExtractor) *Expander {
	return &Expander{
		synonyms:  idx,
		protected: textproc.WordSetOf(tax.CriticalWords),
		stripper:  textproc.NewBasicExtractor(tax.StopWords, tax.CriticalWords),
		extractor: extractor,
	}
}

// Expand returns the ordered, deduplicated variants. The normalized text is
// always first; empty input yields a single empty variant.
func (e *Expander) Expand(ctx context.Context, text string) []string {
	normalized := textproc.Normalize(text)
	if normalized == "" {
		return []string{""}
	}

	words := strings.Fields(normalized)
	variants := []string{normalized}

	for i, w := range words {
		if _, ok := e.protected[w]; ok || len(w) <= 2 {
			continue
		}
		alt, ok := e.synonyms.Alternative(w)
		if !ok {
			continue
		}
		substituted := append([]string(nil), words...)
		substituted[i] = alt
		variants = append(variants, strings.Join(substituted, " "))
	}

	// BasicExtractor never fails.
	stripped, _ := e.stripper.Extract(ctx, normalized)
	if len(stripped) > 0 {
		variants = append(variants, strings.Join(stripped, " "))
	}

	if e.extractor != nil && e.extractor.Mode() == textproc.ModeEnriched {
		if lemmas, err := e.extractor.Extract(ctx, normalized); err == nil && len(lemmas) > 0 {
			variants = append(variants, strings.Join(lemmas, " "))
		}
	}

	return dedupe(variants)
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, it := range items {
		if _, dup := seen[it]; dup {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
