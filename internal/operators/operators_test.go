package operators

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/aikdeirel/multi-agent-workflow-test/internal/agent"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/prompts"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/tools"
)

// scriptedLLM replays canned completions in order, repeating the last one.
type scriptedLLM struct {
	responses []string
	err       error
	prompts   []string
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	i := len(s.prompts) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return s.responses[i], nil
}

func newTestFactory(t *testing.T, llm agent.CompletionService) *Factory {
	t.Helper()
	store := prompts.NewStore(t.TempDir(), zap.NewNop())
	budget := agent.Config{MaxIterations: 5, HandleParseErrors: true}
	return NewFactory(llm, store, budget, zap.NewNop())
}

func TestMathDelegationRunsNestedLoop(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"Thought: I should calculate this.\nAction: calculate\nAction Input: 2 + 3 * 4",
		"Thought: I know the answer.\nFinal Answer: The result is 14.",
	}}
	op := Math(newTestFactory(t, llm))

	if op.Name() != "math_operator" {
		t.Errorf("unexpected name %q", op.Name())
	}

	out, err := op.Call(context.Background(), "Calculate 2 + 3 * 4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "The result is 14." {
		t.Errorf("unexpected output: %q", out)
	}
	if len(llm.prompts) != 2 {
		t.Fatalf("expected 2 completions, got %d", len(llm.prompts))
	}
	if !strings.Contains(llm.prompts[1], "The calculation result is 14") {
		t.Errorf("second prompt missing calculator observation: %q", llm.prompts[1])
	}
}

func TestDelegationExtractsQueryFromJSON(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"Final Answer: done"}}
	op := Math(newTestFactory(t, llm))

	if _, err := op.Call(context.Background(), `{"query": "Calculate 1 + 1"}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(llm.prompts[0], "Question: Calculate 1 + 1") {
		t.Errorf("query not extracted: %q", llm.prompts[0])
	}
}

func TestDelegationCompletionFailureBecomesObservation(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("api unreachable")}
	op := Math(newTestFactory(t, llm))

	out, err := op.Call(context.Background(), "Calculate 1 + 1")
	if err != nil {
		t.Fatalf("delegation must not return Go errors, got %v", err)
	}
	if !strings.Contains(out, "Error in math operator:") {
		t.Errorf("unexpected output: %q", out)
	}
	if !strings.Contains(out, "api unreachable") {
		t.Errorf("expected cause in output: %q", out)
	}
}

func TestDelegationBudgetExhaustionSurfacesStoppedMessage(t *testing.T) {
	// The model keeps acting and never emits a final answer.
	llm := &scriptedLLM{responses: []string{
		"Thought: again.\nAction: calculate\nAction Input: 1 + 1",
	}}
	op := Math(newTestFactory(t, llm))

	out, err := op.Call(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Agent stopped due to iteration limit or time limit.") {
		t.Errorf("unexpected output: %q", out)
	}
	if len(llm.prompts) != 5 {
		t.Errorf("expected the full iteration budget of 5, got %d", len(llm.prompts))
	}
}

func TestAllReturnsRosterInOrder(t *testing.T) {
	f := newTestFactory(t, &scriptedLLM{responses: []string{"Final Answer: ok"}})
	roster := All(f, tools.NewWeatherClient(zap.NewNop()), tools.NewDigidatesClient(zap.NewNop()))

	want := []string{"math_operator", "weather_operator", "datetime_operator"}
	if len(roster) != len(want) {
		t.Fatalf("expected %d operators, got %d", len(want), len(roster))
	}
	for i, name := range want {
		if roster[i].Name() != name {
			t.Errorf("position %d: expected %q, got %q", i, name, roster[i].Name())
		}
	}
	for _, op := range roster {
		if op.Description() == "" {
			t.Errorf("operator %q has no description", op.Name())
		}
	}
}

func TestWeatherDelegationUsesWeatherTools(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"Final Answer: sunny"}}
	f := newTestFactory(t, llm)
	op := Weather(f, tools.NewWeatherClient(zap.NewNop()))

	if _, err := op.Call(context.Background(), "weather in London"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prompt := llm.prompts[0]
	for _, name := range []string{"get_current_weather", "get_weather_forecast", "weather_help"} {
		if !strings.Contains(prompt, name) {
			t.Errorf("prompt missing tool %q", name)
		}
	}
}

func TestDatetimeDelegationListsAllTools(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"Final Answer: ok"}}
	f := newTestFactory(t, llm)
	op := Datetime(f, tools.NewDigidatesClient(zap.NewNop()))

	if _, err := op.Call(context.Background(), "what day is it"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prompt := llm.prompts[0]
	for _, name := range []string{"get_unix_time", "check_leap_year", "get_german_holidays", "calculate_age", "get_co2_level"} {
		if !strings.Contains(prompt, name) {
			t.Errorf("prompt missing tool %q", name)
		}
	}
}
