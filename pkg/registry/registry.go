// Package registry maps node types to processor factories and validates
// node configuration against each factory's JSON schema.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
)

type Registry struct {
	mu        sync.RWMutex
	factories map[models.NodeType]protocol.ProcessorFactory
}

func New() *Registry {
	return &Registry{factories: make(map[models.NodeType]protocol.ProcessorFactory)}
}

// Register adds a factory. Registering a type twice is a wiring bug.
func (r *Registry) Register(factory protocol.ProcessorFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := factory.Type()
	if _, exists := r.factories[t]; exists {
		return fmt.Errorf("node type %q already registered", t)
	}

	r.factories[t] = factory

	return nil
}

// Create builds a processor for the node type, or nil for container types
// that the scheduler executes itself.
func (r *Registry) Create(nodeType models.NodeType, deps protocol.Dependencies) (protocol.Processor, error) {
	r.mu.RLock()
	factory, ok := r.factories[nodeType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no processor registered for node type %q", nodeType)
	}

	return factory.Create(deps)
}

// Types returns the registered node types.
func (r *Registry) Types() []models.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]models.NodeType, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}

	return types
}

// Schema returns the config schema for a node type.
func (r *Registry) Schema(nodeType models.NodeType) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[nodeType]
	if !ok {
		return nil, false
	}

	return factory.Schema(), true
}

// ValidateNode checks a node's config against its type's schema.
func (r *Registry) ValidateNode(node *models.Node) error {
	schema, ok := r.Schema(node.Type)
	if !ok {
		return fmt.Errorf("node %q: unknown type %q", node.ID, node.Type)
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		return fmt.Errorf("node %q: validate config: %w", node.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}

		return fmt.Errorf("node %q: invalid config: %s", node.ID, strings.Join(details, "; "))
	}

	return nil
}

// ValidateGraph validates the graph structure and every node's config.
func (r *Registry) ValidateGraph(graph *models.WorkflowGraph) error {
	if err := graph.Validate(); err != nil {
		return err
	}

	for _, node := range graph.Nodes {
		// GROUP nodes have no processor and no config of their own.
		if node.Type == models.NodeTypeGroup {
			continue
		}

		if err := r.ValidateNode(node); err != nil {
			return err
		}
	}

	return nil
}
