package remote

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/logging"
)

// ServerOptions configures the agent HTTP server.
type ServerOptions struct {
	// Token enables bearer authentication when non-empty.
	Token string
	// Logger receives request diagnostics.
	Logger logging.Logger
}

// AgentDescriptor is the discovery representation of a published agent.
type AgentDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type,omitempty"`
}

// Server publishes registered agents over HTTP. Each run request streams the
// resulting events back as SSE ("event" per emitted core.Event, then "done"
// or "error").
type Server struct {
	runner core.Runner
	agents []AgentDescriptor
	token  string
	logger logging.Logger
	router chi.Router
}

// NewServer wraps a runner. Agents published via RegisterAgent become
// reachable under /v1/agents/{name}/runs.
func NewServer(run core.Runner, optFns ...func(o *ServerOptions)) *Server {
	opts := ServerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		runner: run,
		token:  opts.Token,
		logger: opts.Logger,
	}
	s.router = s.routes()
	return s
}

// RegisterAgent registers the agent with the underlying runner and adds it to
// the discovery listing.
func (s *Server) RegisterAgent(a core.Agent) {
	s.runner.Register(a)

	desc := AgentDescriptor{Name: a.Name(), Description: a.Description()}
	if t, ok := a.(interface{ AgentType() string }); ok {
		desc.Type = t.AgentType()
	}
	s.agents = append(s.agents, desc)
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe starts the server on addr and blocks.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("remote.server.listen", "addr", addr, "agents", len(s.agents))
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		if s.token != "" {
			r.Use(s.authMiddleware)
		}
		r.Get("/v1/agents", s.handleListAgents)
		r.Post("/v1/agents/{name}/runs", s.handleRun)
	})

	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") || strings.TrimPrefix(header, "Bearer ") != s.token {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.agents)
}

// runRequest is the body of POST /v1/agents/{name}/runs.
type runRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	agentName := chi.URLParam(r, "name")

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.Message == "" {
		http.Error(w, `{"error":"session_id and message are required"}`, http.StatusBadRequest)
		return
	}

	runID, eventsCh, errorsCh, err := s.runner.Invoke(
		r.Context(), req.SessionID, agentName, *core.NewTextContent("user", req.Message),
	)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}

	s.logger.Info("remote.run.start", "agent", agentName, "session_id", req.SessionID, "run_id", runID)

	sse := newSSEWriter(w)

	for ev := range eventsCh {
		if err := sse.Send("event", ev); err != nil {
			s.logger.Warn("remote.run.send_failed", "run_id", runID, "error", err.Error())
			return
		}
	}

	if runErr := <-errorsCh; runErr != nil {
		_ = sse.Send("error", map[string]string{"error": runErr.Error()})
		return
	}

	_ = sse.Send("done", map[string]string{"run_id": runID})
}
