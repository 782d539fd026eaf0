package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuanR0/biblio/internal/knowledge"
	"github.com/JuanR0/biblio/internal/observability"
	"github.com/JuanR0/biblio/internal/retrieval"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	store := knowledge.NewStore(retrieval.DefaultTaxonomy().Names(), map[string][]knowledge.Rule{
		retrieval.CategoryCubicles: knowledge.ExampleRules(retrieval.CategoryCubicles),
		retrieval.CategoryGeneral: {{
			ID:        "horario",
			Questions: []string{"horario de la biblioteca"},
			Answer:    "Abrimos de 8:00 a 20:00.",
		}},
	})
	engine, err := retrieval.NewEngine(store, nil, retrieval.DefaultTaxonomy(), retrieval.DefaultScoringConfig())
	require.NoError(t, err)

	return NewRouter(observability.NopLogger(), engine, nil, RouterConfig{
		CORSOrigins: []string{"http://localhost:8000"},
	})
}

func TestRouter_QueryEndToEnd(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chatbot/query", strings.NewReader(`{"question":"horario de la biblioteca"}`))
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Question   string  `json:"question"`
		Answer     string  `json:"answer"`
		Confidence float64 `json:"confidence"`
		Source     string  `json:"source"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Abrimos de 8:00 a 20:00.", body.Answer)
	assert.Equal(t, "general", body.Source)
	assert.Greater(t, body.Confidence, 0.25)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/chatbot/health", http.StatusOK},
		{http.MethodGet, "/chatbot/info", http.StatusOK},
		{http.MethodGet, "/chatbot/query", http.StatusMethodNotAllowed},
		{http.MethodGet, "/chatbot/missing", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRouter_CORS(t *testing.T) {
	router := newTestRouter(t)

	preflight := httptest.NewRequest(http.MethodOptions, "/chatbot/query", nil)
	preflight.Header.Set("Origin", "http://localhost:8000")
	preflight.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, preflight)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:8000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	other := httptest.NewRequest(http.MethodGet, "/health", nil)
	other.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, other)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
