// Package facade exposes a deep-research agent over HTTP: blocking
// invocation, SSE streaming, and thread-scoped state retrieval.
package facade

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	deepagent "github.com/yukot/deepagent"
)

// Version reported by the service info endpoints.
const Version = "1.0.0"

// Server serves an Agent over HTTP with thread-based session continuity.
type Server struct {
	agent   deepagent.Agent
	threads ThreadStore
	logger  *slog.Logger
	tracer  deepagent.Tracer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithTracer enables per-request spans.
func WithTracer(t deepagent.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// New creates a facade Server over the given agent and thread store.
func New(agent deepagent.Agent, threads ThreadStore, opts ...Option) *Server {
	s := &Server{
		agent:   agent,
		threads: threads,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Route("/research", func(r chi.Router) {
		r.Post("/invoke", s.handleInvoke)
		r.Post("/stream", s.handleStream)
		r.Post("/stream-updates", s.handleStreamUpdates)
		r.Get("/state/{threadID}", s.handleState)
	})
	return r
}

// researchRequest is the body for invoke and stream endpoints.
type researchRequest struct {
	// Query is the research query to process.
	Query string `json:"query"`
	// ThreadID continues an existing conversation thread when set.
	ThreadID string `json:"thread_id,omitempty"`
}

// researchResponse is the body for completed blocking invocations.
type researchResponse struct {
	Result   deepagent.AgentResult `json:"result"`
	ThreadID string                `json:"thread_id"`
	Status   string                `json:"status"`
}

// decodeRequest parses the request body and allocates a thread id if absent.
func decodeRequest(r *http.Request) (researchRequest, error) {
	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	if req.ThreadID == "" {
		req.ThreadID = deepagent.NewID()
	}
	return req, nil
}

func (req researchRequest) task() deepagent.AgentTask {
	return deepagent.AgentTask{
		Input:   req.Query,
		Context: map[string]any{deepagent.ContextThreadID: req.ThreadID},
	}
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ctx := r.Context()
	if s.tracer != nil {
		var span deepagent.Span
		ctx, span = s.tracer.Start(ctx, "facade.invoke",
			deepagent.StringAttr("thread_id", req.ThreadID))
		defer span.End()
	}

	result, err := s.agent.Execute(ctx, req.task())
	if err != nil {
		s.logger.Error("invoke failed", "thread_id", req.ThreadID, "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.saveThread(r, req.ThreadID, result)
	writeJSON(w, http.StatusOK, researchResponse{
		Result:   result,
		ThreadID: req.ThreadID,
		Status:   "completed",
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sa, ok := s.agent.(deepagent.StreamingAgent)
	if !ok {
		writeError(w, http.StatusNotImplemented, "agent does not support streaming")
		return
	}

	result, err := deepagent.ServeSSE(r.Context(), w, sa, req.task())
	if err != nil {
		// The error event has already been written to the stream.
		s.logger.Error("stream failed", "thread_id", req.ThreadID, "err", err)
		return
	}
	s.saveThread(r, req.ThreadID, result)
}

// handleStreamUpdates streams only completed-step updates, filtering out
// text deltas and start events.
func (s *Server) handleStreamUpdates(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	sa, ok := s.agent.(deepagent.StreamingAgent)
	if !ok {
		writeError(w, http.StatusNotImplemented, "agent does not support streaming")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var failed bool
	var last deepagent.AgentResult
	for update := range deepagent.NewStreamer(sa).Stream(r.Context(), req.task()) {
		if update.Err != nil {
			failed = true
			_ = deepagent.WriteSSEEvent(w, "error", map[string]string{"error": update.Err.Error()})
			break
		}
		switch update.Event.Type {
		case deepagent.EventToolCallResult, deepagent.EventAgentFinish, deepagent.EventUpdate:
			_ = deepagent.WriteSSEEvent(w, string(deepagent.EventUpdate), update)
		case deepagent.EventTextDelta:
			last.Output += update.Event.Content
		}
	}
	if failed {
		return
	}
	_ = deepagent.WriteSSEEvent(w, "done", map[string]string{"thread_id": req.ThreadID})
	s.saveThread(r, req.ThreadID, last)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")
	state, ok, err := s.threads.Load(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"thread_id": threadID, "state": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id":  threadID,
		"state":      state.Result,
		"updated_at": state.UpdatedAt,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "research-agent"})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "Research Agent API",
		"version": Version,
		"agent":   s.agent.Name(),
		"endpoints": map[string]string{
			"invoke":         "/research/invoke",
			"stream":         "/research/stream",
			"stream_updates": "/research/stream-updates",
			"get_state":      "/research/state/{thread_id}",
			"health":         "/health",
		},
	})
}

// saveThread persists the result for later state lookups. Failures are
// logged, not surfaced: session continuity is best-effort.
func (s *Server) saveThread(r *http.Request, threadID string, result deepagent.AgentResult) {
	state := ThreadState{ThreadID: threadID, Result: result, UpdatedAt: time.Now()}
	if err := s.threads.Save(r.Context(), state); err != nil {
		s.logger.Error("thread save failed", "thread_id", threadID, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
