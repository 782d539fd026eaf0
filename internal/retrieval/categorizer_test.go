package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JuanR0/biblio/internal/textproc"
)

func TestCategorizer_ExclusiveOverride(t *testing.T) {
	c := NewCategorizer(DefaultTaxonomy(), DefaultScoringConfig(), nil)
	ctx := context.Background()

	tests := []struct {
		question  string
		category  string
		exclusive string
	}{
		{"¿cómo reservo un cubículo?", CategoryCubicles, "cubiculo"},
		{"multa por libro atrasado", CategoryBooks, "libro"},
		{"¿Hay software de diseño?", CategoryComputers, "software"},
		{"horario de la biblioteca", CategoryGeneral, "horario"},
		// Books is checked first even with many general keywords present.
		{"libro horario abrir cerrar wc baño acceso", CategoryBooks, "libro"},
		{"¿dónde están los baños?", CategoryGeneral, "bano"},
	}

	for _, tc := range tests {
		t.Run(tc.question, func(t *testing.T) {
			res := c.Classify(ctx, tc.question)
			assert.Equal(t, tc.category, res.Category)
			assert.Equal(t, 1.0, res.Confidence)
			assert.Equal(t, tc.exclusive, res.Exclusive)
		})
	}
}

func TestCategorizer_WeightedScoring(t *testing.T) {
	c := NewCategorizer(DefaultTaxonomy(), DefaultScoringConfig(), nil)

	res := c.Classify(context.Background(), "internet disponible en biblioteca")
	assert.Equal(t, CategoryComputers, res.Category)
	assert.InDelta(t, 1.5, res.Scores[CategoryComputers], 1e-9)
	assert.InDelta(t, 1.5/11.1, res.Confidence, 1e-9)
	assert.False(t, res.Defaulted)
}

func TestCategorizer_LowSignalDefaultsToGeneral(t *testing.T) {
	c := NewCategorizer(DefaultTaxonomy(), DefaultScoringConfig(), nil)

	category, confidence := c.Categorize(context.Background(), "quiero aprender a tocar guitarra")
	assert.Equal(t, CategoryGeneral, category)
	assert.Equal(t, 0.5, confidence)

	category, confidence = c.Categorize(context.Background(), "")
	assert.Equal(t, CategoryGeneral, category)
	assert.Equal(t, 0.5, confidence)
}

func miniTaxonomy() Taxonomy {
	return Taxonomy{
		General: "general",
		Categories: []CategorySpec{
			{Name: "spaces", Keywords: keywords(1.0, "sala", "prestar"), Phrases: []string{"club de lectura"}},
			{Name: "general"},
		},
	}
}

func TestCategorizer_PositionBonus(t *testing.T) {
	c := NewCategorizer(miniTaxonomy(), DefaultScoringConfig(), nil)
	ctx := context.Background()

	tests := []struct {
		text  string
		score float64
	}{
		{"sala", 1.5},
		{"sala grande", 1.5},
		{"una sala grande", 1.0},
		{"una sala", 1.0},
		{"salas", 0.7},
		{"pasillo", 0},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.InDelta(t, tc.score, c.Classify(ctx, tc.text).Scores["spaces"], 1e-9)
		})
	}
}

func TestCategorizer_PhraseBoost(t *testing.T) {
	c := NewCategorizer(miniTaxonomy(), DefaultScoringConfig(), nil)

	res := c.Classify(context.Background(), "¿Cuándo es el club de lectura?")
	assert.Equal(t, "spaces", res.Category)
	assert.Equal(t, []string{"club de lectura"}, res.Phrases)
	assert.InDelta(t, 2.0, res.Scores["spaces"], 1e-9)
	assert.InDelta(t, 2.0/3.0, res.Confidence, 1e-9)
}

func TestCategorizer_EnrichedFeatures(t *testing.T) {
	ext := stubExtractor{mode: textproc.ModeEnriched, features: []string{"prestar"}}
	c := NewCategorizer(miniTaxonomy(), DefaultScoringConfig(), ext)

	res := c.Classify(context.Background(), "pido prestado")
	assert.Equal(t, "spaces", res.Category)
	assert.InDelta(t, 1.0, res.Scores["spaces"], 1e-9)

	// A keyword found in the text is not counted twice.
	res = c.Classify(context.Background(), "prestar")
	assert.InDelta(t, 1.5, res.Scores["spaces"], 1e-9)
}

func TestCategorizer_BasicFeaturesNeverChangeScores(t *testing.T) {
	tax := DefaultTaxonomy()
	plain := NewCategorizer(tax, DefaultScoringConfig(), nil)
	basic := NewCategorizer(tax, DefaultScoringConfig(), textproc.NewBasicExtractor(tax.StopWords, tax.CriticalWords))

	for _, q := range []string{"internet disponible en biblioteca", "sala de estudio grupal", "ayuda con impresora"} {
		assert.Equal(t, plain.Classify(context.Background(), q).Scores, basic.Classify(context.Background(), q).Scores, q)
	}
}

func TestCategorizer_TiesGoToFirstCategory(t *testing.T) {
	tax := Taxonomy{
		General: "general",
		Categories: []CategorySpec{
			{Name: "first", Keywords: keywords(1.0, "wifi")},
			{Name: "second", Keywords: keywords(1.0, "wifi")},
			{Name: "general"},
		},
	}
	c := NewCategorizer(tax, DefaultScoringConfig(), nil)
	category, _ := c.Categorize(context.Background(), "wifi")
	assert.Equal(t, "first", category)
}
