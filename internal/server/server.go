// Package server exposes the orchestrator over HTTP: POST /invoke runs a
// task, GET /health reports liveness and GET /agent/info describes the
// agent roster.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/aikdeirel/multi-agent-workflow-test/internal/agent"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/tracing"
)

// descriptionPreviewLen bounds tool descriptions on the info endpoint.
const descriptionPreviewLen = 100

// OrchestratorFactory builds a fresh orchestrator executor per request, so
// requests never share loop state and settings edits apply immediately.
type OrchestratorFactory func() (*agent.Executor, error)

// ModelName reports the currently configured model. A func rather than a
// string so the info endpoint sees hot-reloaded settings edits.
type ModelName func() string

// Server holds the HTTP surface's collaborators.
type Server struct {
	factory OrchestratorFactory
	tracer  *tracing.Tracer
	model   ModelName
	debug   bool
	logger  *zap.Logger
}

func New(factory OrchestratorFactory, tracer *tracing.Tracer, model ModelName, debug bool, logger *zap.Logger) *Server {
	if model == nil {
		model = func() string { return "" }
	}
	return &Server{
		factory: factory,
		tracer:  tracer,
		model:   model,
		debug:   debug,
		logger:  logger,
	}
}

// Handler assembles the router with request logging, panic recovery and
// permissive CORS for browser clients.
func (s *Server) Handler() http.Handler {
	requestLogger := httplog.NewLogger("multi-agent-workflow", httplog.Options{
		JSON:    true,
		Concise: true,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(httplog.RequestLogger(requestLogger))
	r.Use(middleware.Recoverer)

	r.Post("/invoke", s.handleInvoke)
	r.Get("/health", s.handleHealth)
	r.Get("/agent/info", s.handleAgentInfo)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

type invokeRequest struct {
	Input     string         `json:"input"`
	SessionID string         `json:"session_id"`
	Metadata  map[string]any `json:"metadata"`
}

type intermediateStep struct {
	Tool        string `json:"tool"`
	ToolInput   string `json:"tool_input"`
	Observation string `json:"observation"`
}

type invokeResponse struct {
	Output            string             `json:"output"`
	RequestID         string             `json:"request_id"`
	SessionID         string             `json:"session_id"`
	IntermediateSteps []intermediateStep `json:"intermediate_steps"`
	Metadata          map[string]any     `json:"metadata"`
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	if s.factory == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Agent not initialized", "")
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}
	if req.Input == "" {
		s.writeError(w, http.StatusBadRequest, "Field 'input' is required", "")
		return
	}

	requestID := uuid.NewString()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	orchestrator, err := s.factory()
	if err != nil {
		s.logger.Error("orchestrator creation failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}

	s.logger.Info("invocation started",
		zap.String("request_id", requestID),
		zap.String("session_id", sessionID))

	traceMeta := map[string]any{"request_id": requestID}
	for k, v := range req.Metadata {
		traceMeta[k] = v
	}
	trace := s.tracer.StartTrace("agent_invocation", sessionID, req.Input,
		traceMeta,
		[]string{"orchestrator"})
	rootSpan := trace.Span("orchestrator_execution", req.Input)

	started := time.Now()
	result, err := orchestrator.Run(r.Context(), req.Input, rootSpan)
	if err != nil {
		rootSpan.End("", map[string]any{"success": false, "error": err.Error()})
		trace.Update("", map[string]any{"success": false})
		s.logger.Error("invocation failed", zap.String("request_id", requestID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}

	steps := make([]intermediateStep, 0, len(result.Steps))
	for _, step := range result.Steps {
		if step.Action == nil {
			continue
		}
		steps = append(steps, intermediateStep{
			Tool:        step.Action.Tool,
			ToolInput:   step.Action.Input,
			Observation: step.Observation,
		})
	}

	rootSpan.End(result.Output, map[string]any{
		"success":            true,
		"termination_reason": string(result.Reason),
		"steps":              result.StepCount,
	})
	trace.Update(result.Output, map[string]any{
		"success":     true,
		"tools_used":  len(steps),
		"duration_ms": time.Since(started).Milliseconds(),
	})

	s.logger.Info("invocation finished",
		zap.String("request_id", requestID),
		zap.String("reason", string(result.Reason)),
		zap.Int("steps", result.StepCount),
		zap.Duration("duration", time.Since(started)))

	s.writeJSON(w, http.StatusOK, invokeResponse{
		Output:            result.Output,
		RequestID:         requestID,
		SessionID:         sessionID,
		IntermediateSteps: steps,
		Metadata: map[string]any{
			"tools_used":         len(steps),
			"termination_reason": string(result.Reason),
			"langfuse_enabled":   s.tracer.Enabled(),
			"trace_id":           trace.ID(),
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	agentStatus := "not_initialized"
	toolsLoaded := 0
	if s.factory != nil {
		if orchestrator, err := s.factory(); err == nil {
			agentStatus = "ready"
			toolsLoaded = len(orchestrator.Tools().Names())
		} else {
			agentStatus = "error"
		}
	}

	status := http.StatusOK
	overall := "healthy"
	if agentStatus != "ready" {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	s.writeJSON(w, status, map[string]any{
		"status":           overall,
		"agent_status":     agentStatus,
		"tools_loaded":     toolsLoaded,
		"langfuse_enabled": s.tracer.Enabled(),
	})
}

func (s *Server) handleAgentInfo(w http.ResponseWriter, r *http.Request) {
	if s.factory == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Agent not initialized", "")
		return
	}
	orchestrator, err := s.factory()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Internal server error", err.Error())
		return
	}

	type toolInfo struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	infos := make([]toolInfo, 0)
	for _, t := range orchestrator.Tools().All() {
		desc := t.Description()
		if len(desc) > descriptionPreviewLen {
			desc = desc[:descriptionPreviewLen] + "..."
		}
		infos = append(infos, toolInfo{Name: t.Name(), Description: desc})
	}

	cfg := orchestrator.Config()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":      orchestrator.Name(),
		"model":     s.model(),
		"operators": infos,
		"limits": map[string]any{
			"max_iterations":     cfg.MaxIterations,
			"max_execution_time": cfg.MaxExecutionTime.Seconds(),
		},
		"langfuse_enabled": s.tracer.Enabled(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encoding failed", zap.Error(err))
	}
}

// writeError hides internal detail unless debug logging is on.
func (s *Server) writeError(w http.ResponseWriter, status int, message, detail string) {
	body := map[string]any{"error": message}
	if s.debug && detail != "" {
		body["detail"] = detail
	}
	s.writeJSON(w, status, body)
}
