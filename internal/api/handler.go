// Package api exposes the chat service over HTTP: one message exchange per
// request, conversation readback, and the auth session endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/procureflow/assistant/internal/auth"
	"github.com/procureflow/assistant/internal/conversation"
	"github.com/procureflow/assistant/internal/server"
)

// Handler serves the chat and auth endpoints.
type Handler struct {
	auth       *auth.Manager
	controller *conversation.Controller
	logger     *slog.Logger
}

// NewHandler creates a handler.
func NewHandler(authManager *auth.Manager, controller *conversation.Controller, logger *slog.Logger) *Handler {
	return &Handler{
		auth:       authManager,
		controller: controller,
		logger:     logger,
	}
}

// Register mounts the API routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.handleChat)
		r.Get("/conversations/{id}", h.handleGetConversation)
		r.Delete("/conversations/{id}", h.handleDeleteConversation)
		r.Post("/auth/login", h.handleLogin)
		r.Post("/auth/logout", h.handleLogout)
		r.Get("/auth/me", h.handleMe)
	})
}

type chatRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
	Language       string `json:"language,omitempty"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	user := h.auth.Current()
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	exchange, err := h.controller.Send(r.Context(), conversationID, user.DisplayID(), req.Message, req.Language)
	switch {
	case errors.Is(err, conversation.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	case errors.Is(err, conversation.ErrBusy):
		writeError(w, http.StatusConflict, "a message is already being processed for this conversation")
		return
	case err != nil:
		// The exchange still carries the failure notice for the UI; the
		// error goes to the request log.
		server.AddError(r.Context(), err)
	}

	writeJSON(w, http.StatusOK, exchange)
}

type conversationResponse struct {
	ConversationID string                 `json:"conversation_id"`
	Messages       []conversation.Message `json:"messages"`
	Typing         bool                   `json:"typing"`
}

func (h *Handler) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	messages, typing, ok := h.controller.Messages(id)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, conversationResponse{
		ConversationID: id,
		Messages:       messages,
		Typing:         typing,
	})
}

func (h *Handler) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.controller.Drop(r.Context(), id); err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to clear conversation")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var user auth.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if user.Email == "" && user.FullName == "" {
		writeError(w, http.StatusBadRequest, "email or full_name is required")
		return
	}

	if err := h.auth.Login(r.Context(), user); err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to store session")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user := h.auth.Current()
	if user == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
