package retrieval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JuanR0/biblio/internal/knowledge"
	"github.com/JuanR0/biblio/internal/synonyms"
	"github.com/JuanR0/biblio/internal/textproc"
)

const (
	cubicleAnswer  = "Reserva cubículos en recepción. Máximo 3 horas por día."
	fineAnswer     = "La multa es de 0.50 por día de retraso por libro."
	loanAnswer     = "Puedes llevar hasta 3 libros por 15 días."
	computerAnswer = "Las computadoras se usan por turnos de 2 horas."
	hoursAnswer    = "La biblioteca abre de 8 AM a 6 PM."
	internetAnswer = "Hay internet inalámbrico en todo el edificio."
)

func testStore() *knowledge.Store {
	return knowledge.NewStore(DefaultTaxonomy().Names(), map[string][]knowledge.Rule{
		CategoryBooks: {
			{ID: "multas", Questions: []string{"multa por libro atrasado", "cuánto es la multa por retraso de libro"}, Answer: fineAnswer},
			{ID: "prestamo_libros", Questions: []string{"cómo pido prestado un libro", "préstamo de libros"}, Answer: loanAnswer},
		},
		CategoryComputers: {
			{ID: "uso_computadoras", Questions: []string{"uso de computadoras", "cómo usar una computadora"}, Answer: computerAnswer},
		},
		CategoryCubicles: {
			{ID: "reserva_cubiculos", Questions: []string{"cómo reservar un cubículo", "reservar cubículo", "sala de estudio"}, Answer: cubicleAnswer},
		},
		CategoryGeneral: {
			{ID: "horario", Questions: []string{"horario de la biblioteca", "a qué hora abren"}, Answer: hoursAnswer},
			{ID: "internet", Questions: []string{"hay internet en la biblioteca"}, Answer: internetAnswer},
		},
	})
}

func testSynonyms(t *testing.T) *synonyms.Index {
	t.Helper()
	idx, err := synonyms.Parse([]byte(`{
	  "prestar": ["sacar", "retirar"],
	  "horario": ["horas"],
	  "libro": ["libros"]
	}`), synonyms.DefaultExclusions, nil)
	require.NoError(t, err)
	return idx
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(testStore(), testSynonyms(t), DefaultTaxonomy(), DefaultScoringConfig(), opts...)
	require.NoError(t, err)
	return e
}

// stubExtractor returns fixed features in the given mode.
type stubExtractor struct {
	mode     string
	features []string
	err      error
}

func (s stubExtractor) Mode() string { return s.mode }

func (s stubExtractor) Extract(context.Context, string) ([]string, error) {
	return s.features, s.err
}

var _ textproc.FeatureExtractor = stubExtractor{}

type recordingMonitor struct {
	noopMonitor
	mu       sync.Mutex
	general  []bool
	fallback []string
	hits     []string
	finished []MatchResult
}

func (m *recordingMonitor) CacheHit(normalized string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits = append(m.hits, normalized)
}

func (m *recordingMonitor) GeneralConsidered(_ string, _, _ float64, switched bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.general = append(m.general, switched)
}

func (m *recordingMonitor) FallbackUsed(_ string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = append(m.fallback, reason)
}

func (m *recordingMonitor) Finish(res MatchResult, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, res)
}

type recordingSink struct {
	mu      sync.Mutex
	records []Request
	results []MatchResult
	cached  []bool
}

func (s *recordingSink) RecordAnswer(_ context.Context, req Request, res MatchResult, _ time.Duration, cached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, req)
	s.results = append(s.results, res)
	s.cached = append(s.cached, cached)
}
