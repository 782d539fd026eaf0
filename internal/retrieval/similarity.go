package retrieval

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/JuanR0/biblio/internal/textproc"
)

// Prepared is a normalized text with the word sets the scorer needs.
type Prepared struct {
	Text     string
	chars    []string
	words    map[string]struct{}
	content  map[string]struct{}
	critical map[string]struct{}
}

// Empty reports whether the text normalized to nothing.
func (p Prepared) Empty() bool { return p.Text == "" }

// Scorer computes the similarity between query variants and a rule's
// example questions. It is immutable and safe for concurrent use.
type Scorer struct {
	critical map[string]string
	stop     map[string]struct{}
	actions  map[string]struct{}
	scoring  ScoringConfig
}

// NewScorer builds a scorer from the taxonomy word lists.
func NewScorer(tax Taxonomy, scoring ScoringConfig) *Scorer {
	return &Scorer{
		critical: criticalForms(tax.CriticalWords),
		stop:     textproc.WordSetOf(tax.StopWords),
		actions:  textproc.WordSetOf(tax.ActionVerbs),
		scoring:  scoring,
	}
}

// Prepare normalizes text once so it can be scored against many others.
func (s *Scorer) Prepare(text string) Prepared {
	normalized := textproc.Normalize(text)
	p := Prepared{
		Text:     normalized,
		words:    textproc.WordSet(normalized),
		content:  make(map[string]struct{}),
		critical: make(map[string]struct{}),
	}
	if normalized == "" {
		return p
	}
	p.chars = strings.Split(normalized, "")
	for w := range p.words {
		base, isCritical := s.critical[w]
		if isCritical {
			p.critical[base] = struct{}{}
		}
		if _, isStop := s.stop[w]; !isStop || isCritical {
			p.content[w] = struct{}{}
		}
	}
	return p
}

// PrepareAll prepares each text in order.
func (s *Scorer) PrepareAll(texts []string) []Prepared {
	out := make([]Prepared, len(texts))
	for i, t := range texts {
		out[i] = s.Prepare(t)
	}
	return out
}

// Score returns the best pair score between any variant and any example,
// in [0,1]. Empty inputs score 0.
func (s *Scorer) Score(variants, examples []string) float64 {
	return s.ScorePrepared(s.PrepareAll(variants), s.PrepareAll(examples))
}

// ScorePrepared is Score over prepared texts.
func (s *Scorer) ScorePrepared(variants, examples []Prepared) float64 {
	best := 0.0
	for _, q := range variants {
		if q.Empty() {
			continue
		}
		for _, ex := range examples {
			if score, ok := s.Pair(q, ex); ok && score > best {
				best = score
			}
		}
	}
	return clamp01(best)
}

// Pair scores one query against one example. ok is false when the pair is
// skipped: either side is empty or both name different critical words.
func (s *Scorer) Pair(q, ex Prepared) (score float64, ok bool) {
	if q.Empty() || ex.Empty() {
		return 0, false
	}
	if len(q.critical) > 0 && len(ex.critical) > 0 && !sameSet(q.critical, ex.critical) {
		return 0, false
	}

	token := jaccard(q.content, ex.content)
	sequence := difflib.NewMatcher(q.chars, ex.chars).Ratio()

	bonus := 0.0
	for w := range q.content {
		if _, shared := ex.content[w]; !shared {
			continue
		}
		if _, action := s.actions[w]; action {
			bonus += s.scoring.ActionBonus
		}
	}
	for w := range q.critical {
		if _, present := ex.critical[w]; !present {
			bonus -= s.scoring.CriticalPenalty
			break
		}
	}

	combined := s.scoring.TokenWeight*token + s.scoring.SequenceWeight*sequence + bonus
	if combined < 0 {
		combined = 0
	}
	return combined, true
}

// criticalForms maps each critical word and its plural to the singular,
// so "libros" and "libro" name the same thing.
func criticalForms(words []string) map[string]string {
	forms := make(map[string]string, 2*len(words))
	for w := range textproc.WordSetOf(words) {
		forms[w] = w
		forms[pluralOf(w)] = w
	}
	return forms
}

func pluralOf(w string) string {
	switch {
	case strings.HasSuffix(w, "s"):
		return w
	case strings.HasSuffix(w, "z"):
		return strings.TrimSuffix(w, "z") + "ces"
	case strings.ContainsAny(w[len(w)-1:], "aeiou"):
		return w + "s"
	default:
		return w + "es"
	}
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for w := range a {
		if _, ok := b[w]; !ok {
			return false
		}
	}
	return true
}
