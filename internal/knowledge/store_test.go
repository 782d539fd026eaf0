package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allCategories = []string{"books", "computers", "cubicles", "general"}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestParseRules(t *testing.T) {
	data := []byte(`{
	  "prestamo_libros": {
	    "preguntas": ["¿Cómo pido un libro?", "  ", "prestamo de libros"],
	    "respuesta": "Presenta tu carné en recepción."
	  },
	  "sin_respuesta": {"preguntas": ["hola"], "respuesta": ""},
	  "sin_preguntas": {"preguntas": [], "respuesta": "nada"},
	  "english_keys": {"questions": ["opening hours"], "answer": "8 AM to 6 PM"},
	  "roto": "no es un objeto"
	}`)

	rules, skipped, err := ParseRules(data)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "prestamo_libros", rules[0].ID)
	assert.Equal(t, []string{"¿Cómo pido un libro?", "prestamo de libros"}, rules[0].Questions)
	assert.Equal(t, "english_keys", rules[1].ID)
	assert.Equal(t, "8 AM to 6 PM", rules[1].Answer)

	require.Len(t, skipped, 3)
	for _, s := range skipped {
		assert.ErrorIs(t, s, ErrInvalidRule)
	}
}

func TestParseRules_InvalidDocument(t *testing.T) {
	_, _, err := ParseRules([]byte(`[1, 2, 3]`))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, _, err = ParseRules([]byte(`{"a": `))
	assert.ErrorIs(t, err, ErrInvalidFormat)

	rules, skipped, err := ParseRules(nil)
	require.NoError(t, err)
	assert.Empty(t, rules)
	assert.Empty(t, skipped)
}

func TestLoad_DegradesPerCategory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "books_rules.json", `{"multas": {"preguntas": ["multa por retraso"], "respuesta": "0.50 por día"}}`)
	writeFile(t, dir, "general_rules.json", `{"horario": {"preguntas": ["horario"]`)

	store := Load(LoaderConfig{Dir: dir, Categories: allCategories}, nil)

	assert.Equal(t, allCategories, store.Categories())
	assert.Equal(t, 1, store.Count("books"))
	assert.Equal(t, 0, store.Count("computers"))
	assert.Equal(t, 0, store.Count("general"), "malformed file yields an empty category")
	assert.Nil(t, store.Rules("unknown"))
	assert.Equal(t, 1, store.Total())
}

func TestLoad_ExampleData(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cubicles_rules.json", `{"propio": {"preguntas": ["reservar cubiculo"], "respuesta": "En recepción."}}`)

	store := Load(LoaderConfig{Dir: dir, Categories: allCategories, ExampleData: true}, nil)

	counts := store.Counts()
	assert.Equal(t, 0, counts["books"])
	assert.Equal(t, 1, counts["computers"])
	assert.Equal(t, "uso_computadoras", store.Rules("computers")[0].ID)
	assert.Equal(t, "propio", store.Rules("cubicles")[0].ID, "file rules win over examples")
}

func TestLoaderConfig_FileFor(t *testing.T) {
	cfg := LoaderConfig{
		Dir:   "/data/knowledge",
		Files: map[string]string{"general": "faq.yaml", "books": "/etc/biblio/libros.json"},
	}
	assert.Equal(t, "/data/knowledge/faq.yaml", cfg.FileFor("general"))
	assert.Equal(t, "/etc/biblio/libros.json", cfg.FileFor("books"))
	assert.Equal(t, "/data/knowledge/cubicles_rules.json", cfg.FileFor("cubicles"))
}

func TestStore_IsolatedFromCaller(t *testing.T) {
	rules := map[string][]Rule{"books": {{ID: "a", Questions: []string{"q"}, Answer: "r"}}}
	cats := []string{"books"}
	store := NewStore(cats, rules)

	rules["books"][0] = Rule{ID: "mutated"}
	cats[0] = "other"

	assert.Equal(t, "a", store.Rules("books")[0].ID)
	assert.Equal(t, []string{"books"}, store.Categories())
}
