package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/document"
	"github.com/quillchat/quill/internal/knowledge"
	"github.com/quillchat/quill/internal/log"
	"github.com/quillchat/quill/internal/project"
)

// fakeDocuments implements document.Querier in memory.
type fakeDocuments struct {
	mu   sync.Mutex
	docs []document.Document
}

func (f *fakeDocuments) InsertDocument(_ context.Context, _ uuid.UUID, d document.Document) (document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d.ID = uuid.New()
	f.docs = append(f.docs, d)
	return d, nil
}

func (f *fakeDocuments) GetDocument(_ context.Context, _, _, documentID uuid.UUID) (document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == documentID {
			return d, nil
		}
	}
	return document.Document{}, document.ErrNotFound
}

func (f *fakeDocuments) ListDocuments(context.Context, uuid.UUID, uuid.UUID) ([]document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]document.Document(nil), f.docs...), nil
}

func (f *fakeDocuments) DeleteDocument(_ context.Context, _, _, documentID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, d := range f.docs {
		if d.ID == documentID {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

// fakeChunks implements knowledge.Querier in memory.
type fakeChunks struct {
	mu        sync.Mutex
	chunks    []knowledge.Chunk
	results   []knowledge.Result
	searchErr error
}

func (f *fakeChunks) InsertChunk(_ context.Context, c knowledge.Chunk, _ pgvector.Vector) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, c)
	return nil
}

func (f *fakeChunks) SearchChunks(context.Context, uuid.UUID, uuid.UUID, pgvector.Vector, int32) ([]knowledge.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeChunks) DeleteChunksByDocument(_ context.Context, documentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.chunks[:0]
	for _, c := range f.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	f.chunks = kept
	return nil
}

func (f *fakeChunks) CountChunks(context.Context, uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.chunks)), nil
}

// stubEmbedder answers every embedding request with a zero vector.
type stubEmbedder struct{}

func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return make([]float32, knowledge.VectorDimension), nil
}

func knowledgeEmbedder() knowledge.Embedder { return stubEmbedder{} }

// docFixture wires a document handler against in-memory fakes.
type docFixture struct {
	handler   *documentHandler
	chunks    *fakeChunks
	documents *fakeDocuments
	userID    uuid.UUID
	projectID uuid.UUID
}

func newDocFixture(t *testing.T) *docFixture {
	t.Helper()

	userID := uuid.New()
	projectID := uuid.New()

	docs := &fakeDocuments{}
	chunks := &fakeChunks{}

	handler := &documentHandler{
		documents: document.New(docs, log.NewNop()),
		projects: project.New(&fakeProjects{project: project.Project{
			ID:     projectID,
			UserID: userID,
			Name:   "Apollo",
		}}, log.NewNop()),
		knowledge:   knowledge.New(chunks, knowledgeEmbedder(), log.NewNop()),
		uploadLimit: 1 << 20,
		logger:      log.NewNop(),
	}

	return &docFixture{
		handler:   handler,
		chunks:    chunks,
		documents: docs,
		userID:    userID,
		projectID: projectID,
	}
}

// multipartBody builds a multipart request body with one file part.
func multipartBody(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	buf := new(bytes.Buffer)
	mw := multipart.NewWriter(buf)

	header := make(map[string][]string)
	header["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	header["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return buf, mw.FormDataContentType()
}

func (f *docFixture) doUpload(t *testing.T, projectID uuid.UUID, filename, contentType string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	body, formContentType := multipartBody(t, filename, contentType, content)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+projectID.String()+"/documents", body)
	r.Header.Set("Content-Type", formContentType)
	r.SetPathValue("id", projectID.String())
	ctx := context.WithValue(r.Context(), ctxKeyPrincipal, auth.Principal{UserID: f.userID})

	w := httptest.NewRecorder()
	f.handler.upload(w, r.WithContext(ctx))
	return w
}

func TestDocumentUpload_TextFile(t *testing.T) {
	t.Parallel()

	f := newDocFixture(t)
	w := f.doUpload(t, f.projectID, "notes.md", "text/markdown", []byte("# Travel notes\n\nPack light."))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var item documentItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, "notes.md", item.Filename)
	assert.Equal(t, f.projectID, item.ProjectID)
	assert.True(t, item.Indexed, "markdown uploads should be extracted")
	assert.EqualValues(t, len("# Travel notes\n\nPack light."), item.SizeBytes)
}

func TestDocumentUpload_BinaryIsStoredUnindexed(t *testing.T) {
	t.Parallel()

	f := newDocFixture(t)
	w := f.doUpload(t, f.projectID, "scan.pdf", "application/pdf", []byte{0x25, 0x50, 0x44, 0x46})

	require.Equal(t, http.StatusCreated, w.Code)

	var item documentItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.False(t, item.Indexed)
}

func TestDocumentUpload_UnownedProjectIs404(t *testing.T) {
	t.Parallel()

	f := newDocFixture(t)
	w := f.doUpload(t, uuid.New(), "notes.txt", "text/plain", []byte("hi"))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentUpload_MissingFilePart(t *testing.T) {
	t.Parallel()

	f := newDocFixture(t)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+f.projectID.String()+"/documents", bytes.NewReader(nil))
	r.Header.Set("Content-Type", "multipart/form-data; boundary=none")
	r.SetPathValue("id", f.projectID.String())
	ctx := context.WithValue(r.Context(), ctxKeyPrincipal, auth.Principal{UserID: f.userID})

	w := httptest.NewRecorder()
	f.handler.upload(w, r.WithContext(ctx))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentSearch(t *testing.T) {
	t.Parallel()

	f := newDocFixture(t)
	f.chunks.results = []knowledge.Result{
		{Chunk: knowledge.Chunk{Content: "Pack light."}, Similarity: 0.92},
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+f.projectID.String()+"/search?q=packing", nil)
	r.SetPathValue("id", f.projectID.String())
	ctx := context.WithValue(r.Context(), ctxKeyPrincipal, auth.Principal{UserID: f.userID})

	w := httptest.NewRecorder()
	f.handler.search(w, r.WithContext(ctx))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Pack light.")
	assert.Contains(t, w.Body.String(), "0.92")
}

func TestDocumentSearch_EmptyQueryIs400(t *testing.T) {
	t.Parallel()

	f := newDocFixture(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+f.projectID.String()+"/search", nil)
	r.SetPathValue("id", f.projectID.String())
	ctx := context.WithValue(r.Context(), ctxKeyPrincipal, auth.Principal{UserID: f.userID})

	w := httptest.NewRecorder()
	f.handler.search(w, r.WithContext(ctx))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentDelete_RemovesChunks(t *testing.T) {
	t.Parallel()

	f := newDocFixture(t)
	saved, err := f.handler.documents.Save(context.Background(), f.userID, document.Document{
		ProjectID:   f.projectID,
		Filename:    "notes.txt",
		ContentType: "text/plain",
		Content:     []byte("hi"),
	})
	require.NoError(t, err)
	f.chunks.chunks = []knowledge.Chunk{{DocumentID: saved.ID}}

	r := httptest.NewRequest(http.MethodDelete,
		"/api/v1/projects/"+f.projectID.String()+"/documents/"+saved.ID.String(), nil)
	r.SetPathValue("id", f.projectID.String())
	r.SetPathValue("docID", saved.ID.String())
	ctx := context.WithValue(r.Context(), ctxKeyPrincipal, auth.Principal{UserID: f.userID})

	w := httptest.NewRecorder()
	f.handler.remove(w, r.WithContext(ctx))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, f.chunks.chunks)
	assert.Empty(t, f.documents.docs)
}
