package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/conversation"
	"github.com/quillchat/quill/internal/document"
	"github.com/quillchat/quill/internal/knowledge"
	"github.com/quillchat/quill/internal/llm"
	"github.com/quillchat/quill/internal/log"
	"github.com/quillchat/quill/internal/project"
)

var testJWTSecret = []byte("server-test-secret-0123456789abcdef")

// signToken builds an HS256 JWT for tests.
func signToken(t *testing.T, secret []byte, payload map[string]any) string {
	t.Helper()

	headerJSON, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	require.NoError(t, err)
	payloadJSON, err := json.Marshal(payload)
	require.NoError(t, err)

	signing := base64.RawURLEncoding.EncodeToString(headerJSON) +
		"." + base64.RawURLEncoding.EncodeToString(payloadJSON)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signing))

	return signing + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func bearerFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	return "Bearer " + signToken(t, testJWTSecret, map[string]any{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
}

// newTestServer wires a full server against the fake stores used by the
// handler tests.
func newTestServer(t *testing.T) (*Server, uuid.UUID, uuid.UUID) {
	t.Helper()

	userID := uuid.New()
	projectID := uuid.New()

	projects := &fakeProjects{project: project.Project{
		ID:     projectID,
		UserID: userID,
		Name:   "Apollo",
	}}
	conversations := &fakeConversations{conversation: conversation.Conversation{
		ID:        uuid.New(),
		ProjectID: projectID,
		UserID:    userID,
	}}

	srv, err := NewServer(ServerConfig{
		Logger:        log.NewNop(),
		LLM:           llm.NewClient(llm.Config{BaseURL: "http://127.0.0.1:0", APIKey: "k", Model: "m"}),
		Projects:      project.New(projects, log.NewNop()),
		Conversations: conversation.New(conversations, noopBeginner{}, log.NewNop()),
		Documents:     document.New(&fakeDocuments{}, log.NewNop()),
		Knowledge:     knowledge.New(&fakeChunks{}, knowledgeEmbedder(), log.NewNop()),
		Verifier:      auth.NewVerifier(testJWTSecret),
		CORSOrigins:   []string{"https://app.example.com"},
		IsDev:         true,
		RateBurst:     1000,
	})
	require.NoError(t, err)
	return srv, userID, projectID
}

func TestServer_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestServer_HealthBypassesAuth(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_ReadyWithoutPool(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_MissingTokenIsSynchronous401(t *testing.T) {
	t.Parallel()

	srv, _, projectID := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/projects"},
		{http.MethodPost, "/api/v1/chat/stream"},
		{http.MethodGet, "/api/v1/projects/" + projectID.String() + "/documents"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(p.method, p.path, nil))

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.NotContains(t, w.Body.String(), "data:", "auth failures must never open a stream")
		})
	}
}

func TestServer_GarbageTokenIs401(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
	r.Header.Set("Authorization", "Bearer not.a.token")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_AuthenticatedRoundTrip(t *testing.T) {
	t.Parallel()

	srv, userID, projectID := newTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+projectID.String(), nil)
	r.Header.Set("Authorization", bearerFor(t, userID))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Apollo")
}

func TestServer_TokenOfOtherUserCannotSeeProject(t *testing.T) {
	t.Parallel()

	srv, _, projectID := newTestServer(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/projects/"+projectID.String(), nil)
	r.Header.Set("Authorization", bearerFor(t, uuid.New()))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_CreateConversationValidatesBody(t *testing.T) {
	t.Parallel()

	srv, userID, _ := newTestServer(t)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader(`{"title":"no project"}`))
	r.Header.Set("Authorization", bearerFor(t, userID))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "project_required", resp.Error)
}

func TestServer_SecurityHeaders(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
