package synonyms

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGroups = `{
  "prestar": ["prestamo", "retirar", "sacar"],
  "libro": ["libros", "ejemplar", "obra", "computadora"],
  "multa": ["sanción", "penalización"],
  "horario": ["horas", "jornada", "retirar"]
}`

func TestParse_PreservesOrderAndCanonicalFirst(t *testing.T) {
	idx, err := Parse([]byte(sampleGroups), DefaultExclusions, nil)
	require.NoError(t, err)

	groups := idx.Groups()
	require.Len(t, groups, 4)
	assert.Equal(t, "prestar", groups[0].Name)
	assert.Equal(t, []string{"prestar", "prestamo", "retirar", "sacar"}, groups[0].Members)
	assert.Equal(t, []string{"multa", "sancion", "penalizacion"}, groups[2].Members)
}

func TestParse_StripsExclusiveConflicts(t *testing.T) {
	idx, err := Parse([]byte(sampleGroups), DefaultExclusions, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"libro", "libros", "ejemplar", "obra"}, idx.Synonyms("libro"))
	assert.False(t, idx.IsSynonym("libro", "computadora"))
	assert.False(t, idx.HasGroup("computadora"))
}

func TestParse_WordStaysInFirstGroup(t *testing.T) {
	idx, err := Parse([]byte(sampleGroups), DefaultExclusions, nil)
	require.NoError(t, err)

	assert.True(t, idx.IsSynonym("retirar", "prestar"))
	assert.False(t, idx.IsSynonym("retirar", "horario"))
	assert.Equal(t, []string{"horario", "horas", "jornada"}, idx.Synonyms("Horario"))
}

func TestIndex_Lookups(t *testing.T) {
	idx, err := Parse([]byte(sampleGroups), DefaultExclusions, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"wifi"}, idx.Synonyms("WiFi"))
	assert.Nil(t, idx.Synonyms("  "))

	alt, ok := idx.Alternative("sacar")
	require.True(t, ok)
	assert.Equal(t, "prestar", alt)

	alt, ok = idx.Alternative("prestar")
	require.True(t, ok)
	assert.Equal(t, "prestamo", alt)

	_, ok = idx.Alternative("wifi")
	assert.False(t, ok)

	assert.Equal(t,
		[]string{"multa", "sancion", "penalizacion", "wifi"},
		idx.Expand([]string{"multa", "sanción", "wifi"}))

	found := idx.FindInText("¿Hay sanción por retraso?", []string{"multa", "horario"})
	assert.Equal(t, map[string][]string{"multa": {"sancion"}}, found)
}

func TestBuilder_ExclusionsAreSymmetric(t *testing.T) {
	b := NewBuilder(map[string][]string{"conseguir": {"prestar"}}, nil)
	b.Add("prestar", []string{"conseguir", "sacar"})
	idx := b.Build()

	assert.Equal(t, []string{"prestar", "sacar"}, idx.Synonyms("prestar"))
	assert.False(t, idx.IsSynonym("prestar", "conseguir"))
}

func TestParse_InvalidFormat(t *testing.T) {
	_, err := Parse([]byte(`["libro", "obra"]`), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Parse([]byte(`{"libro": {"a": 1}}`), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Parse([]byte(`{"libro": [`), nil, nil)
	assert.Error(t, err)
}

func TestLoadOrEmpty(t *testing.T) {
	idx := LoadOrEmpty(filepath.Join(t.TempDir(), "missing.json"), DefaultExclusions, nil)
	assert.Equal(t, 0, idx.Len())
	assert.Equal(t, []string{"libro"}, idx.Synonyms("libro"))

	path := filepath.Join(t.TempDir(), "synonyms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devolver:\n  - entregar\n  - regresar\n"), 0o644))
	idx = LoadOrEmpty(path, DefaultExclusions, nil)
	assert.Equal(t, 1, idx.Len())
	assert.True(t, idx.IsSynonym("regresar", "devolver"))

	assert.Equal(t, 0, LoadOrEmpty("", nil, nil).Len())
}

func TestNilIndexIsIdentity(t *testing.T) {
	var idx *Index
	assert.Equal(t, []string{"libro"}, idx.Synonyms("libro"))
	assert.False(t, idx.HasGroup("libro"))
	assert.True(t, idx.IsSynonym("libro", "Libro"))
	assert.Equal(t, 0, idx.Len())
}
