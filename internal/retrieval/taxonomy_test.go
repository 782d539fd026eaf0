package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTaxonomy(t *testing.T) {
	tax := DefaultTaxonomy()
	require.NoError(t, tax.Validate())
	assert.Equal(t, []string{CategoryBooks, CategoryComputers, CategoryCubicles, CategoryGeneral}, tax.Names())

	cubicles, ok := tax.Category(CategoryCubicles)
	require.True(t, ok)
	assert.Equal(t, 0.35, cubicles.Threshold)

	general, _ := tax.Category(CategoryGeneral)
	assert.Equal(t, 0.7, general.MaxWeight())

	_, ok = tax.Category("events")
	assert.False(t, ok)
}

func TestTaxonomy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Taxonomy)
	}{
		{"no categories", func(tx *Taxonomy) { tx.Categories = nil }},
		{"unnamed category", func(tx *Taxonomy) { tx.Categories[0].Name = "" }},
		{"duplicate category", func(tx *Taxonomy) { tx.Categories[1].Name = CategoryBooks }},
		{"threshold above one", func(tx *Taxonomy) { tx.Categories[0].Threshold = 1.2 }},
		{"negative weight", func(tx *Taxonomy) { tx.Categories[2].Keywords[0].Weight = -1 }},
		{"missing general", func(tx *Taxonomy) { tx.General = "otros" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tax := DefaultTaxonomy()
			tc.mutate(&tax)
			assert.ErrorIs(t, tax.Validate(), ErrInvalidTaxonomy)
		})
	}
}
