// Package policyopa evaluates enforcement decisions through an OPA policy,
// letting operators tune pass/annotate/block behavior without rebuilding.
package policyopa

import (
	"context"
	"errors"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"sigil/internal/domain"
)

const defaultQuery = "data.sigil.enforcement.action"

// Engine wraps a prepared rego query that maps an enforcement summary to an
// action. The policy sees the summary as input and must yield one of
// "pass", "annotate" or "block".
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngineFromPath loads policy files from a path (file or directory) and
// prepares the decision query.
func NewEngineFromPath(ctx context.Context, path string) (*Engine, error) {
	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{path}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare enforcement policy: %w", err)
	}
	return &Engine{query: prepared}, nil
}

// NewEngineFromModule compiles a single inline rego module.
func NewEngineFromModule(ctx context.Context, module string) (*Engine, error) {
	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Module("enforcement.rego", module),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare enforcement policy: %w", err)
	}
	return &Engine{query: prepared}, nil
}

// Decide evaluates the policy against the summary.
func (e *Engine) Decide(ctx context.Context, summary domain.EnforcementSummary) (domain.EnforcementAction, error) {
	if e == nil {
		return "", errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(summary))
	if err != nil {
		return "", err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "", errors.New("empty policy result")
	}
	raw, ok := results[0].Expressions[0].Value.(string)
	if !ok {
		return "", errors.New("policy action must be a string")
	}
	switch action := domain.EnforcementAction(raw); action {
	case domain.ActionPass, domain.ActionAnnotate, domain.ActionBlock:
		return action, nil
	default:
		return "", fmt.Errorf("policy returned unknown action %q", raw)
	}
}
