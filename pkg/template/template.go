// Package template resolves {{name}} and {{name.path}} references against
// node outputs and global variables for dynamic node configuration.
package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dagrun/dagrun/pkg/models"
)

// tokenPattern: "{{", a root identifier (no dots, no braces), then zero or
// more dot-separated path segments, then "}}".
var tokenPattern = regexp.MustCompile(`\{\{([^{}.]+)((?:\.[^{}.]+)*)\}\}`)

// Scope resolves a root identifier to a value. Implementations must not
// mutate the underlying context; the resolver itself is pure and re-entrant.
type Scope interface {
	// Lookup returns the value bound to a root identifier and whether it
	// was found at all.
	Lookup(root string) (any, bool)
}

// EnvScope is an optional extension exposing the whole scope as a map,
// used by expression-based condition evaluation.
type EnvScope interface {
	Scope
	Env() map[string]any
}

// Resolve substitutes every resolvable token in the input. Tokens whose
// root matches neither a node name nor a global variable, or whose path
// cannot be traversed, are deliberately left literal so partially
// configured workflows remain inspectable.
func Resolve(input string, scope Scope) string {
	out, _ := ResolveTracked(input, scope)

	return out
}

// ResolveTracked is Resolve plus the list of tokens left unresolved, for
// validation tooling that wants to surface them.
func ResolveTracked(input string, scope Scope) (string, []string) {
	var unresolved []string

	out := tokenPattern.ReplaceAllStringFunc(input, func(token string) string {
		groups := tokenPattern.FindStringSubmatch(token)
		root := strings.TrimSpace(groups[1])

		value, ok := scope.Lookup(root)
		if !ok {
			unresolved = append(unresolved, token)

			return token
		}

		if groups[2] != "" {
			segments := strings.Split(strings.TrimPrefix(groups[2], "."), ".")

			value, ok = traverse(value, segments)
			if !ok {
				unresolved = append(unresolved, token)

				return token
			}
		}

		return displayString(value)
	})

	return out, unresolved
}

// Value resolves an input that is exactly one token to its raw value,
// without string coercion. Used where the structure matters, such as a loop
// iterating a collection. Inputs that are not a single token miss.
func Value(input string, scope Scope) (any, bool) {
	groups := tokenPattern.FindStringSubmatch(strings.TrimSpace(input))
	if groups == nil || groups[0] != strings.TrimSpace(input) {
		return nil, false
	}

	value, ok := scope.Lookup(strings.TrimSpace(groups[1]))
	if !ok {
		return nil, false
	}

	if groups[2] != "" {
		segments := strings.Split(strings.TrimPrefix(groups[2], "."), ".")

		return traverse(value, segments)
	}

	return value, true
}

// traverse walks dot-path segments through maps and slices. It stops as
// soon as a segment is missing or the value is not indexable.
func traverse(value any, segments []string) (any, bool) {
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)

		switch v := value.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}

			value = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}

			value = v[idx]
		default:
			return nil, false
		}
	}

	return value, true
}

// displayString coerces a resolved value to its substitution form:
// strings as-is, everything else as compact JSON.
func displayString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}

// ContextScope resolves roots the way the engine specifies: an exact node
// name match wins and yields that node's output, otherwise the root is
// looked up among global variables.
type ContextScope struct {
	nameToID map[string]string
	ctx      *models.ExecutionContext
}

// NewContextScope builds a scope over a graph's node names and an
// execution context.
func NewContextScope(graph *models.WorkflowGraph, ctx *models.ExecutionContext) *ContextScope {
	names := make(map[string]string, len(graph.Nodes))
	for _, n := range graph.Nodes {
		names[n.Name] = n.ID
	}

	return &ContextScope{nameToID: names, ctx: ctx}
}

func (s *ContextScope) Lookup(root string) (any, bool) {
	if nodeID, ok := s.nameToID[root]; ok {
		if out, ok := s.ctx.NodeOutput(nodeID); ok {
			return out, true
		}

		// Known node without an output yet: fall through to globals so a
		// variable sharing the name still resolves.
	}

	return s.ctx.Global(root)
}

// Env flattens the scope for expression evaluation: node outputs keyed by
// node name plus all global variables.
func (s *ContextScope) Env() map[string]any {
	env := s.ctx.Globals()

	for name, id := range s.nameToID {
		if out, ok := s.ctx.NodeOutput(id); ok {
			env[name] = out
		}
	}

	return env
}

// LayeredScope overlays additional bindings on a parent scope. The loop
// processor uses it to expose per-iteration variables and body outputs to
// the loop's own subgraph without leaking them outside it.
type LayeredScope struct {
	Parent Scope
	Vars   map[string]any
}

func (s *LayeredScope) Lookup(root string) (any, bool) {
	if v, ok := s.Vars[root]; ok {
		return v, true
	}

	return s.Parent.Lookup(root)
}

func (s *LayeredScope) Env() map[string]any {
	env := make(map[string]any)

	if parent, ok := s.Parent.(EnvScope); ok {
		for k, v := range parent.Env() {
			env[k] = v
		}
	}

	for k, v := range s.Vars {
		env[k] = v
	}

	return env
}
