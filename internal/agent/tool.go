package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Tool is a callable unit exposed to a loop. Name and Description appear
// verbatim in the rendered tool catalog; Call receives the raw Action Input
// text and returns the observation.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

// Registry holds a loop's fixed tool set. It is built once at construction
// time and not mutated afterwards.
type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		if err := r.register(tool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool must not be nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool has an empty name")
	}
	if tool.Description() == "" {
		return fmt.Errorf("tool %q has an empty description", name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("duplicate tool name %q", name)
	}
	r.order = append(r.order, name)
	r.tools[name] = tool
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (r *Registry) All() []Tool {
	result := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Catalog renders the "name: description" tool list used in the prompt.
func (r *Registry) Catalog() string {
	var b strings.Builder
	for i, name := range r.order {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(r.tools[name].Description())
	}
	return b.String()
}

// SortedNames returns tool names sorted alphabetically, for stable display
// in info endpoints.
func (r *Registry) SortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}
