// Package condition provides the two-way branch node. It supports a simple
// left/operator/right comparison and an expression mode evaluated with
// expr-lang against the full variable scope.
package condition

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"

	"github.com/dagrun/dagrun/pkg/models"
	"github.com/dagrun/dagrun/pkg/protocol"
	"github.com/dagrun/dagrun/pkg/template"
)

type Processor struct{}

func New(_ protocol.Dependencies) *Processor {
	return &Processor{}
}

func (p *Processor) Type() models.NodeType {
	return models.NodeTypeCondition
}

// Process evaluates the condition and reports the selected branch. The
// scheduler prunes the non-selected branch based on Data["branch"].
func (p *Processor) Process(_ context.Context, node *models.Node, env protocol.ProcessEnv) models.NodeResult {
	started := time.Now()

	var (
		outcome bool
		err     error
	)

	if expression, ok := node.Config["expression"].(string); ok && expression != "" {
		outcome, err = evalExpression(expression, env.Scope)
	} else {
		outcome, err = evalComparison(node.Config, env.Scope)
	}

	if err != nil {
		return timed(models.ErrorResult(node.ID, err.Error()), started)
	}

	branch := "false"
	if outcome {
		branch = "true"
	}

	return timed(models.SuccessResult(node.ID, map[string]any{
		"result": outcome,
		"branch": branch,
	}), started)
}

func evalExpression(expression string, scope template.Scope) (bool, error) {
	env := map[string]any{}
	if s, ok := scope.(template.EnvScope); ok {
		env = s.Env()
	}

	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return false, fmt.Errorf("compile expression: %w", err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate expression: %w", err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to a boolean")
	}

	return result, nil
}

func evalComparison(config map[string]any, scope template.Scope) (bool, error) {
	operator, _ := config["operator"].(string)
	if operator == "" {
		return false, fmt.Errorf("'operator' is required")
	}

	leftRaw, _ := config["left"].(string)
	rightRaw, _ := config["right"].(string)

	left := template.Resolve(leftRaw, scope)
	right := template.Resolve(rightRaw, scope)

	switch operator {
	case "eq":
		return left == right, nil
	case "not_eq":
		return left != right, nil
	case "contains":
		return strings.Contains(left, right), nil
	case "not_contains":
		return !strings.Contains(left, right), nil
	case "is_empty":
		return strings.TrimSpace(left) == "", nil
	case "is_not_empty":
		return strings.TrimSpace(left) != "", nil
	case "gt", "gte", "lt", "lte":
		return compareNumeric(operator, left, right)
	default:
		return false, fmt.Errorf("unknown operator %q", operator)
	}
}

func compareNumeric(operator, left, right string) (bool, error) {
	l, err := strconv.ParseFloat(strings.TrimSpace(left), 64)
	if err != nil {
		return false, fmt.Errorf("left operand %q is not numeric", left)
	}

	r, err := strconv.ParseFloat(strings.TrimSpace(right), 64)
	if err != nil {
		return false, fmt.Errorf("right operand %q is not numeric", right)
	}

	switch operator {
	case "gt":
		return l > r, nil
	case "gte":
		return l >= r, nil
	case "lt":
		return l < r, nil
	default:
		return l <= r, nil
	}
}

func timed(result models.NodeResult, started time.Time) models.NodeResult {
	result.DurationMs = time.Since(started).Milliseconds()

	return result
}
