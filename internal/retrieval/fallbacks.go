package retrieval

import (
	"strings"

	"github.com/JuanR0/biblio/internal/textproc"
)

// Fallback reasons reported in diagnostics.
const (
	FallbackReasonKeyword  = "keyword"
	FallbackReasonCategory = "category"
)

type compiledSniffer struct {
	keywords []string
	answer   string
}

// FallbackHandler picks the canned answer used when no rule matches well
// enough.
type FallbackHandler struct {
	sniffers  []compiledSniffer
	fallbacks map[string]string
	general   string
}

// NewFallbackHandler builds the handler from the taxonomy.
func NewFallbackHandler(tax Taxonomy) *FallbackHandler {
	h := &FallbackHandler{
		fallbacks: make(map[string]string, len(tax.Categories)),
		general:   tax.General,
	}
	for _, s := range tax.Sniffers {
		cs := compiledSniffer{answer: s.Answer}
		for _, k := range s.Keywords {
			if f := textproc.Fold(k); f != "" {
				cs.keywords = append(cs.keywords, f)
			}
		}
		if len(cs.keywords) > 0 && cs.answer != "" {
			h.sniffers = append(h.sniffers, cs)
		}
	}
	for _, c := range tax.Categories {
		h.fallbacks[c.Name] = c.Fallback
	}
	return h
}

// Answer returns the fallback for a question whose best match came from
// category. Keywords in the question take precedence over the category's
// own fallback; unknown categories use the general one.
func (h *FallbackHandler) Answer(category, question string) (answer, reason string) {
	folded := textproc.Fold(question)
	for _, s := range h.sniffers {
		for _, k := range s.keywords {
			if strings.Contains(folded, k) {
				return s.answer, FallbackReasonKeyword
			}
		}
	}
	if a, ok := h.fallbacks[category]; ok && a != "" {
		return a, FallbackReasonCategory
	}
	return h.fallbacks[h.general], FallbackReasonCategory
}

// Answers lists every answer the handler can return.
func (h *FallbackHandler) Answers() []string {
	out := make([]string, 0, len(h.sniffers)+len(h.fallbacks))
	for _, s := range h.sniffers {
		out = append(out, s.answer)
	}
	for _, a := range h.fallbacks {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
