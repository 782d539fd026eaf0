package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFallbackHandler_Answer(t *testing.T) {
	tax := DefaultTaxonomy()
	h := NewFallbackHandler(tax)
	books, _ := tax.Category(CategoryBooks)
	cubicles, _ := tax.Category(CategoryCubicles)
	general, _ := tax.Category(CategoryGeneral)

	tests := []struct {
		name     string
		category string
		question string
		answer   string
		reason   string
	}{
		{"book keyword", CategoryGeneral, "¿Dónde devuelvo mi Libro?", tax.Sniffers[0].Answer, FallbackReasonKeyword},
		{"accented cubicle keyword", CategoryBooks, "un cubículo, por favor", tax.Sniffers[1].Answer, FallbackReasonKeyword},
		{"computer keyword", CategoryCubicles, "ORDENADOR lento", tax.Sniffers[2].Answer, FallbackReasonKeyword},
		{"books first when several match", CategoryGeneral, "sala con texto", tax.Sniffers[0].Answer, FallbackReasonKeyword},
		{"category fallback", CategoryBooks, "quiero algo", books.Fallback, FallbackReasonCategory},
		{"cubicles fallback", CategoryCubicles, "hola", cubicles.Fallback, FallbackReasonCategory},
		{"unknown category", "events", "hola", general.Fallback, FallbackReasonCategory},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			answer, reason := h.Answer(tc.category, tc.question)
			assert.Equal(t, tc.answer, answer)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestFallbackHandler_Answers(t *testing.T) {
	h := NewFallbackHandler(DefaultTaxonomy())
	answers := h.Answers()
	assert.Len(t, answers, 7)
	assert.Contains(t, answers, "No he entendido la pregunta, ¿podrías reformularla?.")
}
