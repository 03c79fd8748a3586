package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/aikdeirel/multi-agent-workflow-test/internal/agent"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/tracing"
)

type staticTool struct {
	name        string
	description string
	reply       string
}

func (t *staticTool) Name() string        { return t.name }
func (t *staticTool) Description() string { return t.description }
func (t *staticTool) Call(_ context.Context, _ string) (string, error) {
	return t.reply, nil
}

type scriptedLLM struct {
	responses []string
	calls     int
}

func (s *scriptedLLM) Complete(_ context.Context, _ string) (string, error) {
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i], nil
}

func newTestFactory(t *testing.T, responses ...string) OrchestratorFactory {
	t.Helper()
	return func() (*agent.Executor, error) {
		registry, err := agent.NewRegistry(
			&staticTool{name: "math_operator", description: "Delegate mathematical tasks to the specialized math operator agent.", reply: "The result is 14."},
			&staticTool{name: "weather_operator", description: "Delegate weather tasks.", reply: "Sunny."},
		)
		if err != nil {
			return nil, err
		}
		return agent.NewExecutor("main_orchestrator", &scriptedLLM{responses: responses}, registry,
			"You are the orchestrator.",
			agent.Config{MaxIterations: 10, HandleParseErrors: true},
			nil, zap.NewNop())
	}
}

func newTestServer(t *testing.T, factory OrchestratorFactory) *Server {
	t.Helper()
	return New(factory, nil, func() string { return "mistral-medium-latest" }, false, zap.NewNop())
}

func postInvoke(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/invoke", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestInvokeReturnsResultAndSteps(t *testing.T) {
	factory := newTestFactory(t,
		"Thought: delegate.\nAction: math_operator\nAction Input: Calculate 2 + 3 * 4",
		"Thought: done.\nFinal Answer: The answer is 14.",
	)
	handler := newTestServer(t, factory).Handler()

	rec := postInvoke(t, handler, `{"input": "What is 2 + 3 * 4?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if _, ok := raw["output"]; !ok {
		t.Errorf("expected an 'output' field, got keys %v", rec.Body.String())
	}

	var resp invokeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	if resp.Output != "The answer is 14." {
		t.Errorf("unexpected output: %q", resp.Output)
	}
	if resp.RequestID == "" || resp.SessionID == "" {
		t.Error("expected generated request and session ids")
	}
	if len(resp.IntermediateSteps) != 1 {
		t.Fatalf("expected 1 intermediate step, got %d", len(resp.IntermediateSteps))
	}
	step := resp.IntermediateSteps[0]
	if step.Tool != "math_operator" || step.Observation != "The result is 14." {
		t.Errorf("unexpected step: %+v", step)
	}
	if resp.Metadata["langfuse_enabled"] != false {
		t.Errorf("expected langfuse_enabled=false, got %v", resp.Metadata["langfuse_enabled"])
	}
}

func TestInvokePreservesSessionID(t *testing.T) {
	factory := newTestFactory(t, "Final Answer: ok")
	handler := newTestServer(t, factory).Handler()

	rec := postInvoke(t, handler, `{"input": "hi", "session_id": "my-session"}`)
	var resp invokeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.SessionID != "my-session" {
		t.Errorf("expected session id passthrough, got %q", resp.SessionID)
	}
}

func TestInvokeAttachesClientMetadataToTrace(t *testing.T) {
	var mu sync.Mutex
	var bodies []map[string]any
	ingestion := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Batch []struct {
				Type string         `json:"type"`
				Body map[string]any `json:"body"`
			} `json:"batch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
			mu.Lock()
			for _, ev := range payload.Batch {
				if ev.Type == "trace-create" {
					bodies = append(bodies, ev.Body)
				}
			}
			mu.Unlock()
		}
		w.WriteHeader(http.StatusMultiStatus)
	}))
	defer ingestion.Close()

	tracer := tracing.New(tracing.Config{
		Host:      ingestion.URL,
		PublicKey: "pk",
		SecretKey: "sk",
		FlushAt:   1,
	}, zap.NewNop())

	srv := New(newTestFactory(t, "Final Answer: ok"), tracer, func() string { return "mistral-medium-latest" }, false, zap.NewNop())
	rec := postInvoke(t, srv.Handler(), `{"input": "hi", "metadata": {"client": "cli-test"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	tracer.Close()

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, body := range bodies {
		if meta, ok := body["metadata"].(map[string]any); ok && meta["client"] == "cli-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("client metadata missing from trace events: %v", bodies)
	}
}

func TestInvokeRejectsEmptyInput(t *testing.T) {
	handler := newTestServer(t, newTestFactory(t, "Final Answer: ok")).Handler()

	rec := postInvoke(t, handler, `{"input": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestInvokeRejectsBadJSON(t *testing.T) {
	handler := newTestServer(t, newTestFactory(t, "Final Answer: ok")).Handler()

	rec := postInvoke(t, handler, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestInvokeWithoutFactoryReturns503(t *testing.T) {
	handler := newTestServer(t, nil).Handler()

	rec := postInvoke(t, handler, `{"input": "hi"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestInvokeFactoryErrorHidesDetailWithoutDebug(t *testing.T) {
	factory := func() (*agent.Executor, error) {
		return nil, errors.New("secret wiring detail")
	}
	handler := newTestServer(t, factory).Handler()

	rec := postInvoke(t, handler, `{"input": "hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret wiring detail") {
		t.Error("error detail leaked without debug mode")
	}
}

func TestInvokeFactoryErrorShowsDetailInDebug(t *testing.T) {
	factory := func() (*agent.Executor, error) {
		return nil, errors.New("wiring detail")
	}
	srv := New(factory, nil, func() string { return "mistral-medium-latest" }, true, zap.NewNop())

	rec := postInvoke(t, srv.Handler(), `{"input": "hi"}`)
	if !strings.Contains(rec.Body.String(), "wiring detail") {
		t.Error("expected detail in debug mode")
	}
}

func TestHealthReportsReadyAgent(t *testing.T) {
	handler := newTestServer(t, newTestFactory(t, "Final Answer: ok")).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" || body["agent_status"] != "ready" {
		t.Errorf("unexpected health body: %v", body)
	}
	if body["tools_loaded"] != float64(2) {
		t.Errorf("expected 2 tools loaded, got %v", body["tools_loaded"])
	}
}

func TestHealthWithoutFactory(t *testing.T) {
	handler := newTestServer(t, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["agent_status"] != "not_initialized" {
		t.Errorf("unexpected agent_status: %v", body["agent_status"])
	}
}

func TestHealthFactoryError(t *testing.T) {
	factory := func() (*agent.Executor, error) {
		return nil, errors.New("wiring failed")
	}
	handler := newTestServer(t, factory).Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["agent_status"] != "error" {
		t.Errorf("unexpected agent_status: %v", body["agent_status"])
	}
}

func TestAgentInfoReflectsCurrentModelName(t *testing.T) {
	model := "mistral-medium-latest"
	srv := New(newTestFactory(t, "Final Answer: ok"), nil, func() string { return model }, false, zap.NewNop())
	handler := srv.Handler()

	fetchModel := func() string {
		req := httptest.NewRequest(http.MethodGet, "/agent/info", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		var body struct {
			Model string `json:"model"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		return body.Model
	}

	if got := fetchModel(); got != "mistral-medium-latest" {
		t.Errorf("unexpected model %q", got)
	}
	model = "mistral-large-latest"
	if got := fetchModel(); got != "mistral-large-latest" {
		t.Errorf("model name not re-read, got %q", got)
	}
}

func TestAgentInfoTruncatesDescriptions(t *testing.T) {
	long := strings.Repeat("x", 150)
	factory := func() (*agent.Executor, error) {
		registry, err := agent.NewRegistry(&staticTool{name: "math_operator", description: long, reply: "ok"})
		if err != nil {
			return nil, err
		}
		return agent.NewExecutor("main_orchestrator", &scriptedLLM{responses: []string{"Final Answer: ok"}}, registry,
			"prompt", agent.Config{MaxIterations: 10, MaxExecutionTime: 300 * time.Second}, nil, zap.NewNop())
	}
	handler := newTestServer(t, factory).Handler()

	req := httptest.NewRequest(http.MethodGet, "/agent/info", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var body struct {
		Name      string `json:"name"`
		Operators []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"operators"`
		Limits map[string]float64 `json:"limits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Name != "main_orchestrator" {
		t.Errorf("unexpected name %q", body.Name)
	}
	if len(body.Operators) != 1 {
		t.Fatalf("expected 1 operator, got %d", len(body.Operators))
	}
	if desc := body.Operators[0].Description; len(desc) != descriptionPreviewLen+3 || !strings.HasSuffix(desc, "...") {
		t.Errorf("description not truncated: %d chars", len(desc))
	}
	if body.Limits["max_iterations"] != 10 || body.Limits["max_execution_time"] != 300 {
		t.Errorf("unexpected limits: %v", body.Limits)
	}
}
