// Package operators defines the specialized operator agents and the
// delegation tools that expose them to the orchestrator. Each delegation
// builds a fresh executor per call, so operator runs never share transcript
// state.
package operators

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aikdeirel/multi-agent-workflow-test/internal/agent"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/prompts"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/tools"
	"github.com/aikdeirel/multi-agent-workflow-test/internal/tracing"
)

// Factory builds operator executors. The completion service and the budget
// are shared across all operators; the tool set and system prompt differ.
type Factory struct {
	llm     agent.CompletionService
	prompts *prompts.Store
	budget  agent.Config
	logger  *zap.Logger
}

func NewFactory(llm agent.CompletionService, store *prompts.Store, budget agent.Config, logger *zap.Logger) *Factory {
	return &Factory{llm: llm, prompts: store, budget: budget, logger: logger}
}

func (f *Factory) newExecutor(name, promptName string, toolSet ...agent.Tool) (*agent.Executor, error) {
	systemPrompt, err := f.prompts.Get(promptName)
	if err != nil {
		return nil, err
	}
	registry, err := agent.NewRegistry(toolSet...)
	if err != nil {
		return nil, err
	}
	return agent.NewExecutor(name, f.llm, registry, systemPrompt, f.budget, agent.NewObserver(name, f.logger), f.logger)
}

// delegation bridges an operator into the orchestrator's tool set. Every
// failure comes back as observation text, never as a Go error, so the
// orchestrator can keep reasoning.
type delegation struct {
	name        string
	short       string
	description string
	build       func() (*agent.Executor, error)
	logger      *zap.Logger
}

func (d *delegation) Name() string { return d.name }

func (d *delegation) Description() string { return d.description }

func (d *delegation) Call(ctx context.Context, input string) (string, error) {
	query := tools.ExtractField(input, "query")
	d.logger.Info("operator received task", zap.String("operator", d.short), zap.String("task", query))

	executor, err := d.build()
	if err != nil {
		d.logger.Error("operator agent creation failed", zap.String("operator", d.short), zap.Error(err))
		return fmt.Sprintf("Error in %s operator: %v", d.short, err), nil
	}

	span := tracing.SpanFromContext(ctx).Child(d.short+"_operator_execution", query)

	result, err := executor.Run(ctx, query, span)
	if err != nil {
		span.End("", map[string]any{"operator_type": d.short, "success": false, "error": err.Error()})
		d.logger.Error("operator run failed", zap.String("operator", d.short), zap.Error(err))
		return fmt.Sprintf("Error in %s operator: %v", d.short, err), nil
	}

	output := result.Output
	if output == "" {
		output = fmt.Sprintf("No response from %s operator", d.short)
	}

	span.End(output, map[string]any{
		"operator_type": d.short,
		"tools_used":    result.StepCount,
		"success":       true,
	})
	d.logger.Info("operator completed task",
		zap.String("operator", d.short),
		zap.Int("steps", result.StepCount),
		zap.String("reason", string(result.Reason)))
	return output, nil
}

// Math returns the delegation tool for the math operator.
func Math(f *Factory) agent.Tool {
	return &delegation{
		name:        "math_operator",
		short:       "math",
		description: "Delegate mathematical tasks to the specialized math operator agent. Input is a natural language description of the calculation, for example 'Calculate 2 + 3 * 4' or 'What is 15% of 250?'.",
		logger:      f.logger,
		build: func() (*agent.Executor, error) {
			return f.newExecutor("math_operator", "math_operator_system",
				tools.NewCalculatorTool(f.logger),
				tools.NewMathHelpTool(),
			)
		},
	}
}

// Weather returns the delegation tool for the weather operator.
func Weather(f *Factory, client *tools.WeatherClient) agent.Tool {
	return &delegation{
		name:        "weather_operator",
		short:       "weather",
		description: "Delegate weather tasks to the specialized weather operator agent. Input is a natural language description, for example 'What is the current weather in London?' or 'Give me a 5-day forecast for Tokyo'.",
		logger:      f.logger,
		build: func() (*agent.Executor, error) {
			return f.newExecutor("weather_operator", "weather_operator_system",
				tools.NewCurrentWeatherTool(client, f.logger),
				tools.NewForecastTool(client, f.logger),
				tools.NewWeatherHelpTool(),
			)
		},
	}
}

// Datetime returns the delegation tool for the datetime operator.
func Datetime(f *Factory, client *tools.DigidatesClient) agent.Tool {
	return &delegation{
		name:        "datetime_operator",
		short:       "datetime",
		description: "Delegate date and time tasks to the specialized datetime operator agent. Input is a natural language description, for example 'What week number is 2022-01-01?' or 'How many days until Christmas?'.",
		logger:      f.logger,
		build: func() (*agent.Executor, error) {
			return f.newExecutor("datetime_operator", "datetime_operator_system",
				tools.NewUnixTimeTool(client, f.logger),
				tools.NewWeekNumberTool(client),
				tools.NewLeapYearTool(client),
				tools.NewValidateDateTool(client),
				tools.NewWeekdayTool(client),
				tools.NewProgressTool(client),
				tools.NewCountdownTool(client),
				tools.NewAgeTool(client),
				tools.NewCO2Tool(client),
				tools.NewGermanHolidaysTool(client),
				tools.NewDatetimeHelpTool(),
			)
		},
	}
}

// All returns the full operator roster in registration order.
func All(f *Factory, weather *tools.WeatherClient, digidates *tools.DigidatesClient) []agent.Tool {
	return []agent.Tool{Math(f), Weather(f, weather), Datetime(f, digidates)}
}
