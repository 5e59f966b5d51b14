package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/document"
	"github.com/quillchat/quill/internal/knowledge"
	"github.com/quillchat/quill/internal/project"
)

const (
	searchDefaultTopK = 5
	searchMaxTopK     = 20

	// indexTimeout bounds background embedding of an upload.
	indexTimeout = 2 * time.Minute
)

// documentHandler serves uploads, listing, deletion, and knowledge
// search for a project's documents.
type documentHandler struct {
	documents   *document.Store
	projects    *project.Store
	knowledge   *knowledge.Store
	uploadLimit int64
	logger      *slog.Logger
}

// documentItem is the JSON representation of a document in responses.
type documentItem struct {
	ID          uuid.UUID `json:"id"`
	ProjectID   uuid.UUID `json:"projectId"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	Indexed     bool      `json:"indexed"`
	CreatedAt   string    `json:"createdAt"`
}

func toDocumentItem(d document.Document) documentItem {
	return documentItem{
		ID:          d.ID,
		ProjectID:   d.ProjectID,
		Filename:    d.Filename,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		Indexed:     d.ExtractedText != "",
		CreatedAt:   d.CreatedAt.Format(time.RFC3339),
	}
}

// upload handles POST /api/v1/projects/{id}/documents. Accepts
// multipart form data with a "file" part. Text formats are extracted
// and embedded into the knowledge base; the raw bytes are always kept.
func (h *documentHandler) upload(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "project id must be a UUID", h.logger)
		return
	}

	// Ownership check before reading the body.
	if _, err := h.projects.Get(r.Context(), principal.UserID, projectID); err != nil {
		if errors.Is(err, project.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
			return
		}
		h.logger.Error("checking project ownership", "error", err)
		writeError(w, http.StatusInternalServerError, "upload_failed", "failed to store document", h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.uploadLimit)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "uploaded file exceeds the size limit", h.logger)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_upload", `multipart "file" part required`, h.logger)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "uploaded file exceeds the size limit", h.logger)
			return
		}
		h.logger.Error("reading upload", "error", err)
		writeError(w, http.StatusInternalServerError, "upload_failed", "failed to read upload", h.logger)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := document.Document{
		ProjectID:     projectID,
		Filename:      header.Filename,
		ContentType:   contentType,
		Content:       content,
		ExtractedText: document.ExtractText(contentType, content),
	}

	saved, err := h.documents.Save(r.Context(), principal.UserID, doc)
	if err != nil {
		h.mapDocumentError(w, err)
		return
	}

	// Embedding runs after the response; the upload is durable either
	// way and search picks the chunks up once they land.
	if doc.ExtractedText != "" {
		if err := h.projects.AppendExtractedText(r.Context(), principal.UserID, projectID, doc.ExtractedText); err != nil {
			h.logger.Error("appending extracted text", "error", err, "document_id", saved.ID)
		}
		go h.indexDocument(projectID, saved.ID, doc.ExtractedText)
	}

	saved.ExtractedText = doc.ExtractedText
	writeJSON(w, http.StatusCreated, toDocumentItem(*saved))
}

func (h *documentHandler) indexDocument(projectID, documentID uuid.UUID, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()

	chunks, err := h.knowledge.IndexDocument(ctx, projectID, documentID, text)
	if err != nil {
		h.logger.Error("indexing document", "error", err, "document_id", documentID)
		return
	}
	h.logger.Info("indexed document", "document_id", documentID, "chunks", chunks)
}

// list handles GET /api/v1/projects/{id}/documents.
func (h *documentHandler) list(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "project id must be a UUID", h.logger)
		return
	}

	docs, err := h.documents.List(r.Context(), principal.UserID, projectID)
	if err != nil {
		h.logger.Error("listing documents", "error", err, "project_id", projectID)
		writeError(w, http.StatusInternalServerError, "list_failed", "failed to list documents", h.logger)
		return
	}

	items := make([]documentItem, len(docs))
	for i, d := range docs {
		items[i] = toDocumentItem(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// remove handles DELETE /api/v1/projects/{id}/documents/{docID}. The
// document's knowledge chunks go with it.
func (h *documentHandler) remove(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "project id must be a UUID", h.logger)
		return
	}
	documentID, err := uuid.Parse(r.PathValue("docID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "document id must be a UUID", h.logger)
		return
	}

	if err := h.documents.Delete(r.Context(), principal.UserID, projectID, documentID); err != nil {
		h.mapDocumentError(w, err)
		return
	}

	if err := h.knowledge.DeleteByDocument(r.Context(), documentID); err != nil {
		// Chunks reference a row that no longer exists; log and move on.
		h.logger.Error("deleting document chunks", "error", err, "document_id", documentID)
	}

	w.WriteHeader(http.StatusNoContent)
}

// search handles GET /api/v1/projects/{id}/search?q=...&topK=n.
func (h *documentHandler) search(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "project id must be a UUID", h.logger)
		return
	}

	query := r.URL.Query().Get("q")
	topK := min(parseIntParam(r, "topK", searchDefaultTopK), searchMaxTopK)

	results, err := h.knowledge.Search(r.Context(), principal.UserID, projectID, query, int32(topK))
	if err != nil {
		if errors.Is(err, knowledge.ErrQueryRequired) {
			writeError(w, http.StatusBadRequest, "query_required", "q parameter is required", h.logger)
			return
		}
		h.logger.Error("searching knowledge base", "error", err, "project_id", projectID)
		writeError(w, http.StatusInternalServerError, "search_failed", "failed to search project", h.logger)
		return
	}

	if results == nil {
		results = []knowledge.Result{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": results})
}

func (h *documentHandler) mapDocumentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, project.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "document not found", h.logger)
	case errors.Is(err, document.ErrFilenameRequired),
		errors.Is(err, document.ErrFilenameTooLong),
		errors.Is(err, document.ErrEmptyUpload):
		writeError(w, http.StatusBadRequest, "invalid_upload", err.Error(), h.logger)
	default:
		h.logger.Error("document operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "document_failed", "document operation failed", h.logger)
	}
}
