package agent

import (
	"bytes"
	"strings"
	"text/template"
)

// reactTemplate is the wire contract between the loop and the model. The
// parser keys on the exact marker phrases below, so this text must not be
// reworded without updating the grammar in parser.go.
const reactTemplate = `{{.System}}

TOOLS:
------

You have access to the following tools:

{{.Tools}}

To use a tool, you MUST use this EXACT format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [{{.ToolNames}}]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

CRITICAL SINGLE-ACTION RULES:
- YOU CAN ONLY PERFORM ONE ACTION PER RESPONSE
- NEVER combine multiple Action/Action Input pairs in a single response
- After generating Action and Action Input, STOP and wait for the Observation
- Do NOT write multiple actions like "Action: ... Action: ..." in the same response
- Do NOT include placeholder text like "(After receiving...)" or "(Then I'll...)"
- Each response must contain EITHER one Action OR one Final Answer, NEVER both
- If you need multiple operations, use them one at a time across multiple responses

IMPORTANT RULES:
- You must EITHER generate an Action OR a Final Answer, NEVER both in the same response
- If you need to use a tool, generate Action and Action Input, then wait for Observation
- Only generate Final Answer when you have all the information needed to answer the question
- Do not include example text like "[After receiving the tool response]" in your actual response

Begin!

Question: {{.Input}}
Thought:{{.Scratchpad}}`

var promptTmpl = template.Must(template.New("react").Parse(reactTemplate))

type promptData struct {
	System     string
	Tools      string
	ToolNames  string
	Input      string
	Scratchpad string
}

// RenderPrompt combines the system prompt, the tool catalog, the task and the
// transcript so far into one completion prompt.
func RenderPrompt(systemPrompt string, tools *Registry, task, scratchpad string) (string, error) {
	var buf bytes.Buffer
	err := promptTmpl.Execute(&buf, promptData{
		System:     strings.TrimSpace(systemPrompt),
		Tools:      tools.Catalog(),
		ToolNames:  strings.Join(tools.Names(), ", "),
		Input:      task,
		Scratchpad: scratchpad,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderScratchpad rebuilds the transcript area from recorded steps. Each
// step contributes the model's own text followed by the observation, matching
// the Thought/Action/Observation cadence the template promises.
func renderScratchpad(steps []Step) string {
	if len(steps) == 0 {
		return ""
	}
	var b strings.Builder
	for _, step := range steps {
		b.WriteString(step.Raw)
		b.WriteString("\nObservation: ")
		b.WriteString(step.Observation)
		b.WriteString("\nThought:")
	}
	return b.String()
}
