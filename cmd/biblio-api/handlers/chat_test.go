package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JuanR0/biblio/internal/retrieval"
)

type stubEngine struct {
	got []retrieval.Request
}

func (s *stubEngine) Answer(_ context.Context, req retrieval.Request) retrieval.MatchResult {
	s.got = append(s.got, req)
	return retrieval.MatchResult{
		Answer:     "Abrimos de 8:00 a 20:00.",
		Confidence: 0.8,
		Source:     retrieval.CategoryGeneral,
		Mode:       "basic",
		Details:    retrieval.Details{Category: retrieval.CategoryGeneral, RuleID: "horario"},
	}
}

func (s *stubEngine) Info() retrieval.Info {
	return retrieval.Info{Mode: "basic", Categories: []string{"general"}, TotalRules: 1}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestChatHandler_Query(t *testing.T) {
	engine := &stubEngine{}
	h := NewChatHandler(nil, engine, nil)

	req := httptest.NewRequest(http.MethodPost, "/chatbot/query",
		strings.NewReader(`{"question":"¿a qué hora abren?","user_id":"u-3"}`))
	rec := httptest.NewRecorder()
	h.Query(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, "¿a qué hora abren?", body["question"])
	assert.Equal(t, "Abrimos de 8:00 a 20:00.", body["answer"])
	assert.Equal(t, 0.8, body["confidence"])
	assert.Equal(t, "general", body["source"])
	assert.Equal(t, "horario", body["details"].(map[string]interface{})["rule_id"])

	require.Len(t, engine.got, 1)
	assert.Equal(t, "u-3", engine.got[0].UserID)
}

func TestChatHandler_QueryErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		errMsg string
	}{
		{"malformed json", `{"question":`, http.StatusBadRequest, "invalid request body"},
		{"wrong type", `{"question": 42}`, http.StatusBadRequest, "invalid request body"},
		{"too long", `{"question":"` + strings.Repeat("a", MaxQuestionLength+1) + `"}`, http.StatusBadRequest, "question too long"},
		{"body too large", `{"question":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, http.StatusRequestEntityTooLarge, "request body too large"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := &stubEngine{}
			h := NewChatHandler(nil, engine, nil)

			rec := httptest.NewRecorder()
			h.Query(rec, httptest.NewRequest(http.MethodPost, "/chatbot/query", strings.NewReader(tc.body)))

			assert.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tc.errMsg, body["error"])
			assert.Equal(t, tc.errMsg, body["message"])
			assert.Empty(t, engine.got)
		})
	}
}

func TestChatHandler_BlankQuestionIsAnswered(t *testing.T) {
	engine := &stubEngine{}
	h := NewChatHandler(nil, engine, nil)

	rec := httptest.NewRecorder()
	h.Query(rec, httptest.NewRequest(http.MethodPost, "/chatbot/query", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, engine.got, 1)
	assert.Equal(t, "", engine.got[0].Question)
}

func TestChatHandler_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChatHandler(nil, &stubEngine{}, stubPinger{}).Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "library-chatbot", body["service"])
	assert.Equal(t, "basic", body["mode"])

	rec = httptest.NewRecorder()
	NewChatHandler(nil, &stubEngine{}, stubPinger{err: errors.New("cache: connection refused")}).
		Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Contains(t, body["detail"], "connection refused")
}

func TestChatHandler_Info(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChatHandler(nil, &stubEngine{}, nil).Info(rec, httptest.NewRequest(http.MethodGet, "/chatbot/info", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "basic", body["mode"])
	assert.Equal(t, 1.0, body["total_rules"])
}
