package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CalculatorTool evaluates arithmetic expressions. It never returns a Go
// error for a bad expression: failures come back as observation text so the
// loop can feed them to the model for self-correction.
type CalculatorTool struct {
	logger *zap.Logger
}

func NewCalculatorTool(logger *zap.Logger) *CalculatorTool {
	return &CalculatorTool{logger: logger}
}

func (t *CalculatorTool) Name() string { return "calculate" }

func (t *CalculatorTool) Description() string {
	return "Perform mathematical calculations. Supports +, -, *, /, // (integer division), % (modulo), ** (power), parentheses and the functions abs, min, max, round and sum. Input is a single arithmetic expression, for example '2 + 3 * 4' or 'sum([1, 2, 3])'."
}

func (t *CalculatorTool) Call(_ context.Context, input string) (string, error) {
	expr := ExtractField(input, "expression")

	if err := validateExpression(expr); err != nil {
		t.logger.Debug("rejected expression", zap.String("expression", expr), zap.Error(err))
		return fmt.Sprintf("Error: Invalid mathematical expression: %v. Please provide a valid arithmetic expression.", err), nil
	}

	result, err := evaluate(expr)
	if err != nil {
		if err == errDivisionByZero {
			return "Error: Division by zero is not allowed in mathematical expressions.", nil
		}
		t.logger.Debug("evaluation failed", zap.String("expression", expr), zap.Error(err))
		return fmt.Sprintf("Error: Could not evaluate the expression: %v.", err), nil
	}

	rendered := formatNumber(result)
	return fmt.Sprintf("The calculation result is %s, as %s = %s.", rendered, expr, rendered), nil
}

// MathHelpTool is a static capability description the math operator can
// consult without burning an LLM round-trip on guessing.
type MathHelpTool struct{}

func NewMathHelpTool() *MathHelpTool { return &MathHelpTool{} }

func (t *MathHelpTool) Name() string { return "math_help" }

func (t *MathHelpTool) Description() string {
	return "Get help about the available mathematical operations. Takes no meaningful input."
}

func (t *MathHelpTool) Call(_ context.Context, _ string) (string, error) {
	return `The calculate tool evaluates a single arithmetic expression.

Supported operators:
  +   addition
  -   subtraction (also unary minus)
  *   multiplication
  /   division
  //  integer (floor) division
  %   modulo
  **  exponentiation
  ()  grouping

Supported functions:
  abs(x)          absolute value
  round(x)        round to the nearest integer
  round(x, n)     round to n decimal places
  min(...)        smallest value, accepts numbers or a list like min([1, 2, 3])
  max(...)        largest value, accepts numbers or a list
  sum([...])      sum of a list of numbers

Examples:
  2 + 3 * 4
  (10 - 4) / 3
  2 ** 10
  sum([1, 2, 3, 4])
  round(3.14159, 2)`, nil
}
