package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/project"
)

const projectsDefaultLimit = 50

// projectHandler serves the project CRUD endpoints.
type projectHandler struct {
	store  *project.Store
	logger *slog.Logger
}

type projectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// createProject handles POST /api/v1/projects.
func (h *projectHandler) createProject(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	var req projectRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	p, err := h.store.Create(r.Context(), principal.UserID, req.Name, req.Description)
	if err != nil {
		h.mapProjectError(w, err, "create_failed", "failed to create project")
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// listProjects handles GET /api/v1/projects.
func (h *projectHandler) listProjects(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	limit := min(parseIntParam(r, "limit", projectsDefaultLimit), 200)
	offset := parseIntParam(r, "offset", 0)
	if offset > 10000 {
		writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be 10000 or less", h.logger)
		return
	}

	projects, err := h.store.List(r.Context(), principal.UserID, int32(limit), int32(offset))
	if err != nil {
		h.logger.Error("listing projects", "error", err, "user_id", principal.UserID)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list projects", h.logger)
		return
	}

	if projects == nil {
		projects = []project.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": projects})
}

// getProject handles GET /api/v1/projects/{id}.
func (h *projectHandler) getProject(w http.ResponseWriter, r *http.Request) {
	principal, projectID, ok := h.requireProject(w, r)
	if !ok {
		return
	}

	p, err := h.store.Get(r.Context(), principal.UserID, projectID)
	if err != nil {
		h.mapProjectError(w, err, "get_failed", "failed to get project")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// updateProject handles PATCH /api/v1/projects/{id}. Empty fields keep
// their current value.
func (h *projectHandler) updateProject(w http.ResponseWriter, r *http.Request) {
	principal, projectID, ok := h.requireProject(w, r)
	if !ok {
		return
	}

	var req projectRequest
	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	p, err := h.store.Update(r.Context(), principal.UserID, projectID, req.Name, req.Description)
	if err != nil {
		h.mapProjectError(w, err, "update_failed", "failed to update project")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// deleteProject handles DELETE /api/v1/projects/{id}.
func (h *projectHandler) deleteProject(w http.ResponseWriter, r *http.Request) {
	principal, projectID, ok := h.requireProject(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), principal.UserID, projectID); err != nil {
		h.mapProjectError(w, err, "delete_failed", "failed to delete project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// requireProject extracts the principal and the {id} path value. On
// failure it writes the error response and returns ok=false.
func (h *projectHandler) requireProject(w http.ResponseWriter, r *http.Request) (auth.Principal, uuid.UUID, bool) {
	p, authed := principalFromContext(r.Context())
	if !authed {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return auth.Principal{}, uuid.Nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "project id must be a UUID", h.logger)
		return auth.Principal{}, uuid.Nil, false
	}

	return p, id, true
}

// mapProjectError translates store errors into HTTP responses.
func (h *projectHandler) mapProjectError(w http.ResponseWriter, err error, code, message string) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
	case errors.Is(err, project.ErrNameRequired),
		errors.Is(err, project.ErrNameTooLong),
		errors.Is(err, project.ErrDescriptionTooLong):
		writeError(w, http.StatusBadRequest, "invalid_project", err.Error(), h.logger)
	default:
		h.logger.Error("project operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, code, message, h.logger)
	}
}

// parseIntParam reads a non-negative integer query parameter, falling
// back to def when absent or malformed.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
