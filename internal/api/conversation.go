package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/conversation"
)

const (
	conversationsDefaultLimit = 50
	messagesDefaultLimit      = 100
)

// conversationHandler serves the conversation endpoints.
type conversationHandler struct {
	store  *conversation.Store
	logger *slog.Logger
}

type createConversationRequest struct {
	ProjectID uuid.UUID `json:"projectId"`
	Title     string    `json:"title"`
}

// create handles POST /api/v1/conversations.
func (h *conversationHandler) create(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	var req createConversationRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.ProjectID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "project_required", "projectId is required", h.logger)
		return
	}

	c, err := h.store.Create(r.Context(), principal.UserID, req.ProjectID, req.Title)
	if err != nil {
		h.mapConversationError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// list handles GET /api/v1/conversations?projectId=...
func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	projectID, err := uuid.Parse(r.URL.Query().Get("projectId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "project_required", "projectId query parameter is required", h.logger)
		return
	}

	limit := min(parseIntParam(r, "limit", conversationsDefaultLimit), 200)
	offset := parseIntParam(r, "offset", 0)
	if offset > 10000 {
		writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be 10000 or less", h.logger)
		return
	}

	conversations, err := h.store.List(r.Context(), principal.UserID, projectID, int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("listing conversations", "error", err, "project_id", projectID)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list conversations", h.logger)
		return
	}

	if conversations == nil {
		conversations = []conversation.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": conversations})
}

// messages handles GET /api/v1/conversations/{id}/messages.
func (h *conversationHandler) messages(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "conversation id must be a UUID", h.logger)
		return
	}

	limit := min(parseIntParam(r, "limit", messagesDefaultLimit), 500)
	offset := parseIntParam(r, "offset", 0)

	messages, err := h.store.Messages(r.Context(), principal.UserID, conversationID, int32(limit), int32(offset))
	if err != nil {
		h.mapConversationError(w, err)
		return
	}

	if messages == nil {
		messages = []conversation.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": messages})
}

// remove handles DELETE /api/v1/conversations/{id}.
func (h *conversationHandler) remove(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	conversationID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "conversation id must be a UUID", h.logger)
		return
	}

	if err := h.store.Delete(r.Context(), principal.UserID, conversationID); err != nil {
		h.mapConversationError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *conversationHandler) mapConversationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
	case errors.Is(err, conversation.ErrTitleTooLong),
		errors.Is(err, conversation.ErrInvalidRole),
		errors.Is(err, conversation.ErrContentTooLong):
		writeError(w, http.StatusBadRequest, "invalid_conversation", err.Error(), h.logger)
	default:
		h.logger.Error("conversation operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "conversation_failed", "conversation operation failed", h.logger)
	}
}
