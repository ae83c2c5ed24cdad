package agent

import (
	"context"
	"sort"
)

type Tool interface {
	Name() string
	Description() string
	InputSchema() any
	Execute(ctx context.Context, input string) (string, error)
}

type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t, replacing any tool already registered under its name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// All returns the registered tools ordered by name.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for _, t := range r.All() {
		names = append(names, t.Name())
	}
	return names
}

// Scope returns a registry limited to the named tools. An empty list keeps
// every tool; unknown names are ignored.
func (r *Registry) Scope(names []string) *Registry {
	if len(names) == 0 {
		return r
	}
	scoped := NewRegistry()
	for _, n := range names {
		if t, ok := r.tools[n]; ok {
			scoped.Register(t)
		}
	}
	return scoped
}
