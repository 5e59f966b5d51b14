package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quillchat/quill/internal/auth"
	"github.com/quillchat/quill/internal/conversation"
	"github.com/quillchat/quill/internal/document"
	"github.com/quillchat/quill/internal/knowledge"
	"github.com/quillchat/quill/internal/llm"
	"github.com/quillchat/quill/internal/project"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger        *slog.Logger
	LLM           *llm.Client         // Required
	Projects      *project.Store      // Required
	Conversations *conversation.Store // Required
	Documents     *document.Store     // Required
	Knowledge     *knowledge.Store    // Required
	Verifier      *auth.Verifier      // Required
	Pool          *pgxpool.Pool       // Optional: nil degrades /ready to liveness
	CORSOrigins   []string            // Allowed origins for CORS
	IsDev         bool                // Disables HSTS
	TrustProxy    bool                // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst     int                 // Rate limiter burst size per IP (0 = default 60)
	UploadLimit   int64               // Max upload body size in bytes (0 = 10 MiB)
	PromptBudget  int                 // Max knowledge-base characters per prompt
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.LLM == nil {
		return nil, errors.New("llm client is required")
	}
	if cfg.Projects == nil || cfg.Conversations == nil || cfg.Documents == nil || cfg.Knowledge == nil {
		return nil, errors.New("all stores are required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("token verifier is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	uploadLimit := cfg.UploadLimit
	if uploadLimit <= 0 {
		uploadLimit = 10 << 20
	}

	ph := &projectHandler{store: cfg.Projects, logger: logger}
	ch := &conversationHandler{store: cfg.Conversations, logger: logger}
	dh := &documentHandler{
		documents:   cfg.Documents,
		projects:    cfg.Projects,
		knowledge:   cfg.Knowledge,
		uploadLimit: uploadLimit,
		logger:      logger,
	}
	sh := &chatHandler{
		llm:           cfg.LLM,
		projects:      cfg.Projects,
		conversations: cfg.Conversations,
		knowledge:     cfg.Knowledge,
		promptBudget:  cfg.PromptBudget,
		logger:        logger,
	}

	mux := http.NewServeMux()

	// Projects
	mux.HandleFunc("POST /api/v1/projects", ph.createProject)
	mux.HandleFunc("GET /api/v1/projects", ph.listProjects)
	mux.HandleFunc("GET /api/v1/projects/{id}", ph.getProject)
	mux.HandleFunc("PATCH /api/v1/projects/{id}", ph.updateProject)
	mux.HandleFunc("DELETE /api/v1/projects/{id}", ph.deleteProject)

	// Documents and knowledge search
	mux.HandleFunc("POST /api/v1/projects/{id}/documents", dh.upload)
	mux.HandleFunc("GET /api/v1/projects/{id}/documents", dh.list)
	mux.HandleFunc("DELETE /api/v1/projects/{id}/documents/{docID}", dh.remove)
	mux.HandleFunc("GET /api/v1/projects/{id}/search", dh.search)

	// Conversations
	mux.HandleFunc("POST /api/v1/conversations", ch.create)
	mux.HandleFunc("GET /api/v1/conversations", ch.list)
	mux.HandleFunc("GET /api/v1/conversations/{id}/messages", ch.messages)
	mux.HandleFunc("DELETE /api/v1/conversations/{id}", ch.remove)

	// Streaming relay
	mux.HandleFunc("POST /api/v1/chat/stream", sh.stream)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Auth → Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes. CORS must be before RateLimit so preflight
	// OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = authMiddleware(cfg.Verifier, logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Wrap with security headers
	isDev := cfg.IsDev
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w, isDev)
		handler.ServeHTTP(w, r)
	})

	// Use a top-level mux to keep health probes outside the
	// auth/rate-limit stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
