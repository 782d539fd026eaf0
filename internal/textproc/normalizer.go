// Package textproc provides text normalization and keyword feature extraction
// for Spanish library questions.
package textproc

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// DefaultReplacements rewrites verbs that would otherwise collapse distinct
// intents.
var DefaultReplacements = map[string]string{
	"conseguir": "reservar",
	"obtener":   "reservar",
	"tomar":     "prestar",
}

// Normalizer canonicalizes raw text. It is immutable and safe for
// concurrent use.
type Normalizer struct {
	replacements map[string]string
}

// NewNormalizer creates a normalizer with the given whole-word rewrites.
// Keys and values are themselves normalized so the rewrite is idempotent.
func NewNormalizer(replacements map[string]string) *Normalizer {
	n := &Normalizer{replacements: make(map[string]string, len(replacements))}
	for from, to := range replacements {
		from = basicForm(from)
		to = basicForm(to)
		if from == "" || to == "" || from == to {
			continue
		}
		n.replacements[from] = to
	}
	// Resolve chains so a rewrite target is never rewritten again; cycles are
	// dropped.
	resolved := make(map[string]string, len(n.replacements))
	for from, to := range n.replacements {
		seen := map[string]bool{from: true}
		for {
			next, ok := n.replacements[to]
			if !ok {
				break
			}
			if seen[to] {
				to = ""
				break
			}
			seen[to] = true
			to = next
		}
		if to != "" && to != from {
			resolved[from] = to
		}
	}
	n.replacements = resolved
	return n
}

var defaultNormalizer = NewNormalizer(DefaultReplacements)

// Normalize canonicalizes text with the default rewrite table.
func Normalize(text string) string {
	return defaultNormalizer.Normalize(text)
}

// Normalize lowercases, strips diacritics, turns every rune that is not a
// letter or digit into a space, collapses whitespace and applies the
// whole-word rewrites. Blank input yields "".
func (n *Normalizer) Normalize(text string) string {
	base := basicForm(text)
	if base == "" || len(n.replacements) == 0 {
		return base
	}

	words := strings.Split(base, " ")
	for i, w := range words {
		if to, ok := n.replacements[w]; ok {
			words[i] = to
		}
	}
	return strings.Join(words, " ")
}

// Replacements returns a copy of the rewrite table.
func (n *Normalizer) Replacements() map[string]string {
	out := make(map[string]string, len(n.replacements))
	for k, v := range n.replacements {
		out[k] = v
	}
	return out
}

// basicForm performs every normalization step except word rewrites.
func basicForm(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	lowered := strings.ToLower(text)
	stripped, _, err := transform.String(stripAccents, lowered)
	if err != nil {
		stripped = lowered
	}

	var b strings.Builder
	b.Grow(len(stripped))
	lastSpace := true
	for _, r := range stripped {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Words splits normalized text into words.
func Words(normalized string) []string {
	return strings.Fields(normalized)
}

// WordSet returns the set of words in normalized text.
func WordSet(normalized string) map[string]struct{} {
	words := strings.Fields(normalized)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// Fold lowercases, strips diacritics and punctuation, and collapses
// whitespace without applying word rewrites. Use it for vocabulary entries.
func Fold(text string) string {
	return basicForm(text)
}
