package agent

import (
	"fmt"
	"regexp"
	"strings"
)

// finalAnswerMarker and the action regexes are the grammar the loop keys on.
// The markers must match the rendered prompt instructions exactly.
const finalAnswerMarker = "Final Answer:"

var (
	actionRe      = regexp.MustCompile(`(?m)^\s*Action\s*:\s*(.+?)\s*$`)
	actionInputRe = regexp.MustCompile(`(?m)^\s*Action Input\s*:\s*(.*?)\s*$`)
)

// Action is one tool invocation parsed out of a model response.
type Action struct {
	Tool  string
	Input string
}

// Output is the structured form of one model turn: either exactly one Action
// or exactly one final answer.
type Output struct {
	Thought     string
	Action      *Action
	FinalAnswer string
	IsFinal     bool
}

// ParseError reports a model response that violates the single-action
// contract. The loop recovers from these with a corrective observation.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse model output: %s", e.Reason)
}

// ParseOutput applies the strict turn grammar: a response must contain
// exactly one Action/Action Input pair or exactly one Final Answer marker,
// never both. Anything else is a parse error, including a response carrying
// both markers, where guessing the intent would be unsafe.
func ParseOutput(text string) (*Output, error) {
	finalCount := strings.Count(text, finalAnswerMarker)
	actions := actionRe.FindAllStringSubmatch(text, -1)
	inputs := actionInputRe.FindAllStringSubmatch(text, -1)
	hasAction := len(actions) > 0 || len(inputs) > 0

	switch {
	case finalCount > 0 && hasAction:
		return nil, &ParseError{
			Reason: "response contains both an Action and a Final Answer",
			Raw:    text,
		}
	case finalCount > 1:
		return nil, &ParseError{
			Reason: "response contains multiple Final Answer markers",
			Raw:    text,
		}
	case finalCount == 1:
		answer := text[strings.Index(text, finalAnswerMarker)+len(finalAnswerMarker):]
		return &Output{
			Thought:     extractThought(text),
			FinalAnswer: strings.TrimSpace(answer),
			IsFinal:     true,
		}, nil
	case len(actions) > 1 || len(inputs) > 1:
		return nil, &ParseError{
			Reason: "response contains more than one Action",
			Raw:    text,
		}
	case len(actions) == 1 && len(inputs) == 1:
		return &Output{
			Thought: extractThought(text),
			Action: &Action{
				Tool:  stripQuotes(actions[0][1]),
				Input: stripQuotes(inputs[0][1]),
			},
		}, nil
	case len(actions) == 1 || len(inputs) == 1:
		return nil, &ParseError{
			Reason: "response contains an incomplete Action/Action Input pair",
			Raw:    text,
		}
	default:
		return nil, &ParseError{
			Reason: "response contains neither an Action nor a Final Answer",
			Raw:    text,
		}
	}
}

// extractThought pulls the free-form reasoning preceding the first marker,
// for logging only.
func extractThought(text string) string {
	cut := len(text)
	if loc := actionRe.FindStringIndex(text); loc != nil && loc[0] < cut {
		cut = loc[0]
	}
	if idx := strings.Index(text, finalAnswerMarker); idx >= 0 && idx < cut {
		cut = idx
	}
	thought := strings.TrimSpace(text[:cut])
	thought = strings.TrimPrefix(thought, "Thought:")
	return strings.TrimSpace(thought)
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}
