// Package httpapi exposes the thin HTTP surface over AgentEngine.Chat
// (SPEC_FULL.md "HTTP surface"): one operational endpoint, not part of
// the CORE responsibility split in spec.md §2.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/atenea-ai/agent-engine/internal/engine"
)

// Server wires AgentEngine.Chat behind a chi router.
type Server struct {
	engine *engine.AgentEngine
	logger *slog.Logger
	router chi.Router
}

func NewServer(agentEngine *engine.AgentEngine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{engine: agentEngine, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post("/v1/chat", s.handleChat)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type chatRequestWire struct {
	BusinessID     string           `json:"business_id"`
	ConversationID string           `json:"conversation_id"`
	CustomerPhone  string           `json:"customer_phone"`
	CustomerName   string           `json:"customer_name"`
	Message        string           `json:"message"`
	PriorMessages  []messageWire    `json:"prior_messages"`
}

type messageWire struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseWire struct {
	Response     string   `json:"response"`
	ExecutionID  string   `json:"execution_id"`
	Intent       string   `json:"intent"`
	Sentiment    string   `json:"sentiment"`
	NodesVisited []string `json:"nodes_visited"`
	DurationMS   int64    `json:"duration_ms"`
	Handoff      bool     `json:"handoff"`
	TokensUsed   int      `json:"tokens_used"`
	Cost         float64  `json:"cost"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequestWire
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BusinessID == "" || req.ConversationID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "business_id, conversation_id, and message are required")
		return
	}

	prior := make([]engine.Message, 0, len(req.PriorMessages))
	for _, m := range req.PriorMessages {
		prior = append(prior, engine.Message{Role: engine.Role(m.Role), Content: m.Content})
	}

	result, err := s.engine.Chat(r.Context(), engine.ChatRequest{
		BusinessID:     req.BusinessID,
		ConversationID: req.ConversationID,
		CustomerPhone:  req.CustomerPhone,
		CustomerName:   req.CustomerName,
		Message:        req.Message,
		PriorMessages:  prior,
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrAgentNotFound):
			writeError(w, http.StatusNotFound, "no agent configured for this business")
		case errors.Is(err, engine.ErrAgentDisabled):
			writeError(w, http.StatusForbidden, "agent is disabled for this business")
		default:
			s.logger.Error("httpapi: chat turn failed", "execution_id", result.ExecutionID, "error", err)
			// A failed turn still produced an execution record and, often,
			// a graceful-degradation reply; surface it instead of a bare 500.
			writeJSON(w, http.StatusOK, toWire(result))
		}
		return
	}

	writeJSON(w, http.StatusOK, toWire(result))
}

func toWire(r engine.ChatResult) chatResponseWire {
	return chatResponseWire{
		Response:     r.Response,
		ExecutionID:  r.ExecutionID,
		Intent:       string(r.Intent),
		Sentiment:    string(r.Sentiment),
		NodesVisited: r.NodesVisited,
		DurationMS:   r.DurationMS,
		Handoff:      r.Handoff,
		TokensUsed:   r.TokensUsed,
		Cost:         r.Cost,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
