package agent

import (
	"strings"
	"testing"
)

func TestParseOutputAction(t *testing.T) {
	text := `I should use the calculator for this.
Action: calculate
Action Input: 2 + 3 * 4`

	out, err := ParseOutput(text)
	if err != nil {
		t.Fatalf("ParseOutput failed: %v", err)
	}
	if out.IsFinal {
		t.Fatal("expected an action, got a final answer")
	}
	if out.Action.Tool != "calculate" {
		t.Errorf("unexpected tool: %q", out.Action.Tool)
	}
	if out.Action.Input != "2 + 3 * 4" {
		t.Errorf("unexpected input: %q", out.Action.Input)
	}
	if out.Thought != "I should use the calculator for this." {
		t.Errorf("unexpected thought: %q", out.Thought)
	}
}

func TestParseOutputFinalAnswer(t *testing.T) {
	text := `I now know the final answer.
Final Answer: The result is 14.`

	out, err := ParseOutput(text)
	if err != nil {
		t.Fatalf("ParseOutput failed: %v", err)
	}
	if !out.IsFinal {
		t.Fatal("expected a final answer")
	}
	if out.FinalAnswer != "The result is 14." {
		t.Errorf("unexpected final answer: %q", out.FinalAnswer)
	}
}

func TestParseOutputMultilineFinalAnswer(t *testing.T) {
	text := "Final Answer: line one\nline two"

	out, err := ParseOutput(text)
	if err != nil {
		t.Fatalf("ParseOutput failed: %v", err)
	}
	if out.FinalAnswer != "line one\nline two" {
		t.Errorf("final answer should keep trailing lines: %q", out.FinalAnswer)
	}
}

func TestParseOutputBothMarkersIsError(t *testing.T) {
	text := `Action: calculate
Action Input: 1 + 1
Final Answer: 2`

	_, err := ParseOutput(text)
	if err == nil {
		t.Fatal("expected parse error for response with both markers")
	}
	parseErr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if !strings.Contains(parseErr.Reason, "both") {
		t.Errorf("reason should mention both markers: %q", parseErr.Reason)
	}
}

func TestParseOutputNeitherMarkerIsError(t *testing.T) {
	_, err := ParseOutput("Let me think about this for a moment.")
	if err == nil {
		t.Fatal("expected parse error for free-form text")
	}
}

func TestParseOutputMultipleActionsIsError(t *testing.T) {
	text := `Action: calculate
Action Input: 1 + 1
Action: calculate
Action Input: 2 + 2`

	_, err := ParseOutput(text)
	if err == nil {
		t.Fatal("expected parse error for multiple actions")
	}
}

func TestParseOutputMultipleFinalAnswersIsError(t *testing.T) {
	_, err := ParseOutput("Final Answer: 1\nFinal Answer: 2")
	if err == nil {
		t.Fatal("expected parse error for multiple final answers")
	}
}

func TestParseOutputIncompletePairIsError(t *testing.T) {
	_, err := ParseOutput("Action: calculate")
	if err == nil {
		t.Fatal("expected parse error for action without input")
	}
}

func TestParseOutputStripsQuotes(t *testing.T) {
	text := `Action: "get_current_weather"
Action Input: "Berlin"`

	out, err := ParseOutput(text)
	if err != nil {
		t.Fatalf("ParseOutput failed: %v", err)
	}
	if out.Action.Tool != "get_current_weather" {
		t.Errorf("quotes should be stripped from tool name: %q", out.Action.Tool)
	}
	if out.Action.Input != "Berlin" {
		t.Errorf("quotes should be stripped from input: %q", out.Action.Input)
	}
}

func TestParseOutputEmptyActionInput(t *testing.T) {
	text := "Action: math_help\nAction Input:"

	out, err := ParseOutput(text)
	if err != nil {
		t.Fatalf("ParseOutput failed: %v", err)
	}
	if out.Action.Input != "" {
		t.Errorf("expected empty input, got %q", out.Action.Input)
	}
}
