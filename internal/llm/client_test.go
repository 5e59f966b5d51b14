package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "sk-test",
		Model:       "quill-assistant",
		Temperature: 0.7,
		MaxTokens:   256,
		HTTPClient:  srv.Client(),
	})
}

func TestClient_Stream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/stream", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		fmt.Fprint(w, `{"event":"output","content":"hi"}`+"\n"+`{"event":"done"}`+"\n")
	})

	stream, err := client.Stream(context.Background(), []Turn{{Role: "user", Content: "hello"}})
	require.NoError(t, err)
	defer stream.Close() //nolint:errcheck

	var contents []string
	for ev, err := range stream.Events() {
		require.NoError(t, err)
		if ev.Event == EventOutput {
			contents = append(contents, ev.Content)
		}
	}
	assert.Equal(t, []string{"hi"}, contents)
}

func TestClient_Stream_UpstreamRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	})

	_, err := client.Stream(context.Background(), []Turn{{Role: "user", Content: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamStatus)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_Complete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat", r.URL.Path)
		fmt.Fprint(w, `{"content":"Project kickoff notes"}`)
	})

	text, err := client.Complete(context.Background(), TitlePrompt("let's plan the kickoff"))
	require.NoError(t, err)
	assert.Equal(t, "Project kickoff notes", text)
}

func TestClient_Stream_ContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.Stream(ctx, []Turn{{Role: "user", Content: "x"}})
	require.NoError(t, err)
	defer stream.Close() //nolint:errcheck

	cancel()

	sawErr := false
	for _, err := range stream.Events() {
		if err != nil {
			sawErr = true
			break
		}
	}
	assert.True(t, sawErr, "cancelled context must surface a read error")
}

func TestBuildTurns(t *testing.T) {
	t.Parallel()

	history := []Turn{
		{Role: "user", Content: "what does the manual say?"},
	}

	t.Run("with knowledge base", func(t *testing.T) {
		t.Parallel()

		turns := BuildTurns("Research", "doc one text", history)
		require.Len(t, turns, 2)
		assert.Equal(t, "system", turns[0].Role)
		assert.Contains(t, turns[0].Content, `"Research"`)
		assert.Contains(t, turns[0].Content, "doc one text")
		assert.Equal(t, history[0], turns[1])
	})

	t.Run("without knowledge base", func(t *testing.T) {
		t.Parallel()

		turns := BuildTurns("Research", "", history)
		assert.NotContains(t, turns[0].Content, "Project documents")
	})
}

func TestTrimToBudget(t *testing.T) {
	t.Parallel()

	t.Run("under budget unchanged", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "short", TrimToBudget("short", 100))
	})

	t.Run("cuts at line boundary", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("line of document text\n", 100)
		trimmed := TrimToBudget(text, 500)
		assert.LessOrEqual(t, len(trimmed), 500)
		assert.True(t, strings.HasSuffix(trimmed, "text"), "must end on a full line")
	})

	t.Run("hard cut when no boundary", func(t *testing.T) {
		t.Parallel()

		text := strings.Repeat("x", 1000)
		assert.Len(t, TrimToBudget(text, 500), 500)
	})

	t.Run("hard cut lands on rune boundary", func(t *testing.T) {
		t.Parallel()

		// Three-byte runes; a budget of 500 falls mid-rune.
		text := strings.Repeat("文", 300)
		trimmed := TrimToBudget(text, 500)
		assert.True(t, utf8.ValidString(trimmed), "must not split a rune")
		assert.LessOrEqual(t, len(trimmed), 500)
		assert.Equal(t, 498, len(trimmed))
	})
}
