// Package handlers provides HTTP handlers for the assistant API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/JuanR0/biblio/internal/observability"
	"github.com/JuanR0/biblio/internal/retrieval"
)

// Request limits.
const (
	MaxBodyBytes      = 64 << 10
	MaxQuestionLength = 2000
)

// Engine is the part of retrieval.Engine the handlers need.
type Engine interface {
	Answer(ctx context.Context, req retrieval.Request) retrieval.MatchResult
	Info() retrieval.Info
}

// Pinger reports backend health. A nil Pinger is always healthy.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChatHandler serves the chatbot endpoints.
type ChatHandler struct {
	logger  *observability.Logger
	engine  Engine
	pinger  Pinger
	service string
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(logger *observability.Logger, engine Engine, pinger Pinger) *ChatHandler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &ChatHandler{
		logger:  logger.WithComponent("chat_handler"),
		engine:  engine,
		pinger:  pinger,
		service: "library-chatbot",
	}
}

// QueryRequestDTO is the body of POST /chatbot/query.
type QueryRequestDTO struct {
	Question string `json:"question"`
	UserID   string `json:"user_id,omitempty"`
}

// QueryResponseDTO is the answer returned to the caller.
type QueryResponseDTO struct {
	Question   string            `json:"question"`
	Answer     string            `json:"answer"`
	Confidence float64           `json:"confidence"`
	Source     string            `json:"source"`
	Mode       string            `json:"mode"`
	Details    retrieval.Details `json:"details"`
}

// HealthDTO is returned by the health endpoints.
type HealthDTO struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Mode    string `json:"mode,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Query handles POST /chatbot/query.
func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req QueryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", "")
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if utf8.RuneCountInString(req.Question) > MaxQuestionLength {
		h.writeError(w, http.StatusBadRequest, "question too long", "")
		return
	}

	res := h.engine.Answer(r.Context(), retrieval.Request{
		Question: req.Question,
		UserID:   req.UserID,
	})

	h.writeJSON(w, http.StatusOK, QueryResponseDTO{
		Question:   req.Question,
		Answer:     res.Answer,
		Confidence: res.Confidence,
		Source:     res.Source,
		Mode:       res.Mode,
		Details:    res.Details,
	})
}

// Health handles GET /chatbot/health and GET /health.
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthDTO{Status: "healthy", Service: h.service, Mode: h.engine.Info().Mode}

	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			// Cache and audit are optional, so the service still answers.
			h.logger.Warn().Err(err).Msg("Backend health check failed")
			resp.Status = "degraded"
			resp.Detail = err.Error()
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Info handles GET /chatbot/info.
func (h *ChatHandler) Info(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Info())
}

// Root handles GET /.
func (h *ChatHandler) Root(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "Chatbot microservice running"})
}

func (h *ChatHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *ChatHandler) writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	h.writeJSON(w, status, resp)
}
