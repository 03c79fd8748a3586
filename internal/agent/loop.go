// Package agent implements the think-act-observe controller shared by the
// orchestrator and the operators. The loop queries a completion service once
// per iteration, parses the response into at most one action, executes it,
// feeds the observation back, and stops on a final answer or an exhausted
// budget.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aikdeirel/multi-agent-workflow-test/internal/tracing"
)

const (
	maxObservationLen = 20000

	// stoppedMessage is the deterministic output for budget exhaustion.
	stoppedMessage = "Agent stopped due to iteration limit or time limit."
)

// CompletionService is the opaque text-completion collaborator. One call per
// loop iteration; retries, if any, live behind this interface.
type CompletionService interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TerminationReason explains why a loop run ended.
type TerminationReason string

const (
	ReasonFinalAnswer      TerminationReason = "final_answer"
	ReasonMaxIterations    TerminationReason = "max_iterations"
	ReasonMaxExecutionTime TerminationReason = "max_execution_time"
	ReasonParseError       TerminationReason = "parse_error"
)

// Config bounds one loop run.
type Config struct {
	MaxIterations     int
	MaxExecutionTime  time.Duration
	HandleParseErrors bool
}

// Step is one recorded (Action, Observation) pair. Raw keeps the model's
// full turn text so the scratchpad can replay it verbatim. Action is nil for
// parse-error recovery steps.
type Step struct {
	Raw         string
	Action      *Action
	Observation string
}

// Result is the outcome of one loop run.
type Result struct {
	Output    string
	Steps     []Step
	StepCount int
	Reason    TerminationReason
}

// Executor runs the loop against a fixed tool registry. It holds no
// transcript state between runs; each Run starts fresh.
type Executor struct {
	name         string
	llm          CompletionService
	tools        *Registry
	systemPrompt string
	cfg          Config
	observer     *Observer
	logger       *zap.Logger
}

func NewExecutor(name string, llm CompletionService, tools *Registry, systemPrompt string, cfg Config, observer *Observer, logger *zap.Logger) (*Executor, error) {
	if llm == nil {
		return nil, fmt.Errorf("completion service is required")
	}
	if tools == nil || len(tools.Names()) == 0 {
		return nil, fmt.Errorf("executor %q needs at least one tool", name)
	}
	if cfg.MaxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be at least 1, got %d", cfg.MaxIterations)
	}

	return &Executor{
		name:         name,
		llm:          llm,
		tools:        tools,
		systemPrompt: systemPrompt,
		cfg:          cfg,
		observer:     observer,
		logger:       logger,
	}, nil
}

func (e *Executor) Name() string { return e.name }

// Tools exposes the registry for info endpoints.
func (e *Executor) Tools() *Registry { return e.tools }

func (e *Executor) Config() Config { return e.cfg }

// Run executes the loop for one task. Completion-service failures propagate
// as errors; everything else (bad tool input, unknown tools, malformed model
// output, exhausted budgets) resolves into a Result.
func (e *Executor) Run(ctx context.Context, task string, parent *tracing.Span) (*Result, error) {
	start := time.Now()
	steps := make([]Step, 0, e.cfg.MaxIterations)

	e.observer.OnStart(task)

	for iteration := 1; iteration <= e.cfg.MaxIterations; iteration++ {
		prompt, err := RenderPrompt(e.systemPrompt, e.tools, task, renderScratchpad(steps))
		if err != nil {
			return nil, fmt.Errorf("render prompt: %w", err)
		}

		stepSpan := parent.Child(fmt.Sprintf("%s_step_%d", e.name, iteration), task)

		raw, err := e.llm.Complete(ctx, prompt)
		if err != nil {
			stepSpan.End("", map[string]any{"status": "error", "error": err.Error()})
			return nil, fmt.Errorf("completion failed on iteration %d: %w", iteration, err)
		}

		output, err := ParseOutput(raw)
		if err != nil {
			parseErr, ok := err.(*ParseError)
			if !ok {
				return nil, err
			}
			e.observer.OnParseError(parseErr)

			if !e.cfg.HandleParseErrors {
				stepSpan.End("", map[string]any{"status": "parse_error", "reason": parseErr.Reason})
				result := &Result{Steps: steps, StepCount: len(steps), Reason: ReasonParseError}
				e.observer.OnFinish(result)
				return result, nil
			}

			observation := correctiveObservation(parseErr)
			steps = append(steps, Step{Raw: raw, Observation: observation})
			e.observer.OnObservation(observation)
			stepSpan.End(observation, map[string]any{"status": "parse_error", "reason": parseErr.Reason})
		} else if output.IsFinal {
			stepSpan.End(output.FinalAnswer, map[string]any{"status": "final_answer"})
			result := &Result{
				Output:    output.FinalAnswer,
				Steps:     steps,
				StepCount: len(steps),
				Reason:    ReasonFinalAnswer,
			}
			e.observer.OnFinish(result)
			return result, nil
		} else {
			e.observer.OnThought(output.Thought)
			e.observer.OnAction(*output.Action)

			observation := e.executeAction(ctx, *output.Action, stepSpan)
			steps = append(steps, Step{Raw: raw, Action: output.Action, Observation: observation})
			e.observer.OnObservation(observation)
			stepSpan.End(observation, map[string]any{"status": "acted", "tool": output.Action.Tool})
		}

		// Wall-clock budget is cooperative: checked at the iteration
		// boundary, never mid-call.
		if e.cfg.MaxExecutionTime > 0 && time.Since(start) >= e.cfg.MaxExecutionTime {
			result := &Result{
				Output:    stoppedMessage,
				Steps:     steps,
				StepCount: len(steps),
				Reason:    ReasonMaxExecutionTime,
			}
			e.observer.OnFinish(result)
			return result, nil
		}
	}

	result := &Result{
		Output:    stoppedMessage,
		Steps:     steps,
		StepCount: len(steps),
		Reason:    ReasonMaxIterations,
	}
	e.observer.OnFinish(result)
	return result, nil
}

// executeAction resolves and invokes the named tool. Failures of any kind
// become observation text; they never leave the loop as errors.
func (e *Executor) executeAction(ctx context.Context, action Action, stepSpan *tracing.Span) string {
	tool, ok := e.tools.Get(action.Tool)
	if !ok {
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].",
			action.Tool, strings.Join(e.tools.Names(), ", "))
	}

	toolSpan := stepSpan.Child("tool_"+action.Tool, action.Input)

	// Tools that run nested agents pick the span up from the context.
	result, err := tool.Call(tracing.ContextWithSpan(ctx, toolSpan), action.Input)
	if err != nil {
		observation := "Error: " + err.Error()
		toolSpan.End(observation, map[string]any{"success": false})
		return observation
	}

	if len(result) > maxObservationLen {
		result = result[:maxObservationLen] + "\n... (truncated)"
	}

	toolSpan.End(result, map[string]any{"success": true})
	return result
}

func correctiveObservation(err *ParseError) string {
	return fmt.Sprintf(
		"Invalid response format: %s. Respond with either one Action and one Action Input, or one Final Answer, never both.",
		err.Reason)
}
