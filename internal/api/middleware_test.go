package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/log"
)

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	recoveryMiddleware(log.NewNop())(panicking).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")
}

func TestRecoveryMiddleware_HeadersAlreadySent(t *testing.T) {
	t.Parallel()

	partial := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
		panic("mid-stream")
	})

	w := httptest.NewRecorder()
	recoveryMiddleware(log.NewNop())(partial).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	// No second status line can be written; the body stays as-is.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "partial", w.Body.String())
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Parallel()

	var seen string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
	})

	w := httptest.NewRecorder()
	requestIDMiddleware()(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := corsMiddleware([]string{"https://app.example.com"})(next)

	t.Run("allowed origin", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, r)

		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, r)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest(http.MethodOptions, "/", nil)
		r.Header.Set("Origin", "https://app.example.com")
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, r)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	verifier := auth.NewVerifier(testJWTSecret)
	var principal auth.Principal
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		principal, _ = principalFromContext(r.Context())
	})
	mw := authMiddleware(verifier, log.NewNop())(next)

	t.Run("valid token reaches handler", func(t *testing.T) {
		userID := uuid.New()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", bearerFor(t, userID))
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, r)

		assert.Equal(t, userID, principal.UserID)
	})

	t.Run("missing header is 401", func(t *testing.T) {
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong scheme is 401", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()
		mw.ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestLoggingWriter_FlushPassthrough(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	lw := &loggingWriter{w: rec}

	_, err := lw.Write([]byte("data: hi\n\n"))
	require.NoError(t, err)
	lw.Flush()

	assert.Equal(t, http.StatusOK, lw.statusCode)
	assert.EqualValues(t, 10, lw.bytesWritten)
	assert.True(t, rec.Flushed)
}
