package agent

import (
	"go.uber.org/zap"
)

// Observer receives hook calls after each loop event. One parameterized
// instance serves every loop; only the name differs between the orchestrator
// and the operators.
type Observer struct {
	name   string
	logger *zap.Logger
}

func NewObserver(name string, logger *zap.Logger) *Observer {
	return &Observer{name: name, logger: logger}
}

func (o *Observer) OnStart(task string) {
	if o == nil {
		return
	}
	o.logger.Info("loop started", zap.String("loop", o.name), zap.String("task", task))
}

func (o *Observer) OnThought(thought string) {
	if o == nil || thought == "" {
		return
	}
	o.logger.Debug("loop thought", zap.String("loop", o.name), zap.String("thought", truncate(thought, 200)))
}

func (o *Observer) OnAction(action Action) {
	if o == nil {
		return
	}
	o.logger.Info("loop action",
		zap.String("loop", o.name),
		zap.String("tool", action.Tool),
		zap.String("input", truncate(action.Input, 200)))
}

func (o *Observer) OnObservation(observation string) {
	if o == nil {
		return
	}
	o.logger.Info("loop observation",
		zap.String("loop", o.name),
		zap.String("observation", truncate(observation, 200)))
}

func (o *Observer) OnParseError(err *ParseError) {
	if o == nil {
		return
	}
	o.logger.Warn("loop parse error",
		zap.String("loop", o.name),
		zap.String("reason", err.Reason),
		zap.String("raw", truncate(err.Raw, 200)))
}

func (o *Observer) OnFinish(result *Result) {
	if o == nil {
		return
	}
	o.logger.Info("loop finished",
		zap.String("loop", o.name),
		zap.String("reason", string(result.Reason)),
		zap.Int("steps", result.StepCount),
		zap.String("output", truncate(result.Output, 200)))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
