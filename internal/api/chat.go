package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/quillchat/quill/internal/conversation"
	"github.com/quillchat/quill/internal/knowledge"
	"github.com/quillchat/quill/internal/llm"
	"github.com/quillchat/quill/internal/project"
)

// apologyMessage is streamed as a normal content fragment when the
// upstream call fails after the response has committed to SSE.
const apologyMessage = "Sorry, something went wrong while generating a response. Please try again."

// titleTimeout bounds the post-stream title generation call.
const titleTimeout = 15 * time.Second

// retrievalTopK is how many chunks semantic retrieval pulls when the
// knowledge base overflows the prompt budget.
const retrievalTopK = 8

// chatHandler relays upstream model output to the client as SSE.
//
// After request validation the response commits to text/event-stream;
// from that point every outcome, including upstream failure, is
// expressed in-stream as `data:` frames ending with a single
// `{"done": true}` marker.
type chatHandler struct {
	llm           *llm.Client
	projects      *project.Store
	conversations *conversation.Store
	knowledge     *knowledge.Store
	promptBudget  int
	logger        *slog.Logger
}

// chatRequest is the POST /api/v1/chat/stream body.
type chatRequest struct {
	Messages       []llm.Turn `json:"messages"`
	ProjectID      uuid.UUID  `json:"projectId"`
	ConversationID uuid.UUID  `json:"conversationId"`
	KnowledgeBase  string     `json:"knowledgeBase"`
}

// chunkPayload is the SSE data payload for streaming text fragments.
type chunkPayload struct {
	Content string `json:"content"`
}

// donePayload is the SSE data payload terminating every stream.
type donePayload struct {
	Done bool `json:"done"`
}

// stream handles POST /api/v1/chat/stream.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required", h.logger)
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1024*1024)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	if req.ProjectID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "project_required", "projectId is required", h.logger)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages_required", "messages must not be empty", h.logger)
		return
	}
	for _, m := range req.Messages {
		if !conversation.ValidRole(m.Role) {
			writeError(w, http.StatusBadRequest, "invalid_role", fmt.Sprintf("unknown message role %q", m.Role), h.logger)
			return
		}
		if len(m.Content) > conversation.MaxContentLength {
			writeError(w, http.StatusBadRequest, "content_too_long", "message content too long", h.logger)
			return
		}
	}

	ctx := r.Context()

	// Ownership checks happen before headers commit so failures can
	// still return synchronous JSON.
	proj, err := h.projects.Get(ctx, principal.UserID, req.ProjectID)
	if err != nil {
		if errors.Is(err, project.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "project not found", h.logger)
			return
		}
		h.logger.Error("loading project for chat", "error", err, "project_id", req.ProjectID)
		writeError(w, http.StatusInternalServerError, "chat_failed", "failed to start chat", h.logger)
		return
	}

	var conv *conversation.Conversation
	if req.ConversationID != uuid.Nil {
		conv, err = h.conversations.Get(ctx, principal.UserID, req.ConversationID)
		if err != nil {
			if errors.Is(err, conversation.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not_found", "conversation not found", h.logger)
				return
			}
			h.logger.Error("loading conversation for chat", "error", err, "conversation_id", req.ConversationID)
			writeError(w, http.StatusInternalServerError, "chat_failed", "failed to start chat", h.logger)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	knowledgeBase := req.KnowledgeBase
	if knowledgeBase == "" {
		knowledgeBase = proj.ExtractedText
	}
	if len(knowledgeBase) > h.promptBudget {
		knowledgeBase = h.relevantKnowledge(ctx, principal.UserID, req.ProjectID, req.Messages, knowledgeBase)
	}
	turns := llm.BuildTurns(proj.Name, knowledgeBase, req.Messages)

	assistantText := h.relay(ctx, w, flusher, turns)

	// Past this point the client has its done marker; persistence and
	// titling must not depend on the request staying open.
	if conv != nil && assistantText != "" {
		h.persistTurns(context.WithoutCancel(ctx), conv, req.Messages, assistantText)
	}
}

// relevantKnowledge replaces an over-budget knowledge base with the
// chunks most similar to the latest user message. Retrieval failures
// fall back to a budget-bounded cut of the concatenated text, so the
// relay never blocks on the vector store.
func (h *chatHandler) relevantKnowledge(ctx context.Context, userID, projectID uuid.UUID, history []llm.Turn, knowledgeBase string) string {
	query := lastUserMessage(history)
	if query == "" {
		return llm.TrimToBudget(knowledgeBase, h.promptBudget)
	}

	results, err := h.knowledge.Search(ctx, userID, projectID, query, retrievalTopK)
	if err != nil || len(results) == 0 {
		if err != nil {
			h.logger.Warn("knowledge retrieval failed, trimming instead", "error", err, "project_id", projectID)
		}
		return llm.TrimToBudget(knowledgeBase, h.promptBudget)
	}

	parts := make([]string, len(results))
	for i, res := range results {
		parts[i] = res.Content
	}
	// Chunks are budget-bounded by construction; the trim only matters
	// if retrieval settings ever outgrow the budget.
	return llm.TrimToBudget(strings.Join(parts, "\n\n"), h.promptBudget)
}

// lastUserMessage returns the content of the newest user turn.
func lastUserMessage(history []llm.Turn) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == conversation.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

// relay opens the upstream stream and forwards output fragments,
// terminating with exactly one done marker. Returns the accumulated
// assistant text (what the client actually saw).
func (h *chatHandler) relay(ctx context.Context, w io.Writer, flusher http.Flusher, turns []llm.Turn) string {
	st, err := h.llm.Stream(ctx, turns)
	if err != nil {
		h.logger.Error("opening upstream stream", "error", err)
		h.writeChunk(w, flusher, apologyMessage)
		h.writeDone(w, flusher)
		return apologyMessage
	}
	defer st.Close()

	var b strings.Builder
	for ev, err := range st.Events() {
		// Client disconnect cancels the upstream request; nothing
		// further can be written.
		select {
		case <-ctx.Done():
			h.logger.Debug("client disconnected mid-stream")
			return b.String()
		default:
		}

		if err != nil || ev.Event == llm.EventError {
			if err != nil {
				h.logger.Error("reading upstream stream", "error", err)
			} else {
				h.logger.Warn("upstream reported error", "message", ev.Message)
			}
			h.writeChunk(w, flusher, apologyMessage)
			h.writeDone(w, flusher)
			b.WriteString(apologyMessage)
			return b.String()
		}

		if ev.Event == llm.EventDone {
			break
		}

		if ev.Content == "" {
			continue
		}
		if !h.writeChunk(w, flusher, ev.Content) {
			// Write failure usually means the connection closed.
			return b.String()
		}
		b.WriteString(ev.Content)
	}

	h.writeDone(w, flusher)
	return b.String()
}

// persistTurns appends the new user message and the assistant reply to
// the conversation, then titles it if still untitled.
func (h *chatHandler) persistTurns(ctx context.Context, conv *conversation.Conversation, history []llm.Turn, assistantText string) {
	userText := lastUserMessage(history)
	if userText == "" {
		return
	}

	messages := []conversation.Message{
		{Role: conversation.RoleUser, Content: userText},
		{Role: conversation.RoleAssistant, Content: assistantText},
	}
	if err := h.conversations.AppendMessages(ctx, conv.ID, messages); err != nil {
		h.logger.Error("persisting chat turns", "error", err, "conversation_id", conv.ID)
		return
	}

	if conv.Title != "" {
		return
	}

	titleCtx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	title, err := h.llm.Complete(titleCtx, llm.TitlePrompt(userText))
	if err != nil {
		h.logger.Warn("generating conversation title", "error", err, "conversation_id", conv.ID)
		return
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	if len(title) > conversation.MaxTitleLength {
		// Cut on a rune boundary; Postgres rejects invalid UTF-8.
		cut := conversation.MaxTitleLength
		for cut > 0 && !utf8.RuneStart(title[cut]) {
			cut--
		}
		title = title[:cut]
	}
	if err := h.conversations.SetTitle(titleCtx, conv.UserID, conv.ID, title); err != nil {
		h.logger.Warn("saving conversation title", "error", err, "conversation_id", conv.ID)
	}
}

// writeChunk writes one content fragment frame. Reports success.
func (h *chatHandler) writeChunk(w io.Writer, flusher http.Flusher, content string) bool {
	return h.writeFrame(w, flusher, chunkPayload{Content: content})
}

// writeDone writes the terminal marker frame.
func (h *chatHandler) writeDone(w io.Writer, flusher http.Flusher) {
	h.writeFrame(w, flusher, donePayload{Done: true})
}

// writeFrame writes a single SSE frame: "data: <json>\n\n".
func (h *chatHandler) writeFrame(w io.Writer, flusher http.Flusher, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("marshaling SSE frame", "error", err)
		return false
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		h.logger.Debug("writing SSE frame", "error", err)
		return false
	}
	flusher.Flush()
	return true
}
