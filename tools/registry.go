package tools

import (
	"sort"
	"sync"

	"github.com/arcreflex/loom-engine-sub001/llm"
)

// Registry manages available tools with dynamic registration.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a new tool to the registry.
// Returns DuplicateToolError if a tool with the same name already exists.
func (r *Registry) Register(name, description string, parameters map[string]any, handler Handler, group string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return &DuplicateToolError{Name: name}
	}
	r.tools[name] = Tool{
		Definition: llm.ToolDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
		Handler: handler,
		Group:   group,
	}
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns wire definitions for all registered tools, sorted by name.
func (r *Registry) List() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Definitions returns wire definitions for the named tools, in the given
// order. Unknown names fail with ToolNotFoundError.
func (r *Registry) Definitions(names []string) ([]llm.ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		tool, exists := r.tools[name]
		if !exists {
			return nil, &ToolNotFoundError{Name: name}
		}
		defs = append(defs, tool.Definition)
	}
	return defs, nil
}

// Unregister removes a tool by name. Removing an unknown name is a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// UnregisterGroup removes every tool registered under the given group.
func (r *Registry) UnregisterGroup(group string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, tool := range r.tools {
		if tool.Group == group {
			delete(r.tools, name)
		}
	}
}
