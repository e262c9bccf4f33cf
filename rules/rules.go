// Package rules validates settings containers with expression rules evaluated
// by expr, CEL or JavaScript engines.
package rules

import (
	"context"
	"errors"
	"fmt"
	"time"

	settings "github.com/goliatone/go-settings"
)

// Rule constrains the value found at Path. Expr must evaluate to a bool.
type Rule struct {
	Path     string `json:"path" yaml:"path"`
	Expr     string `json:"expr" yaml:"expr"`
	Message  string `json:"message,omitempty" yaml:"message,omitempty"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Set is an ordered list of rules sharing one evaluator. A Set satisfies
// settings.Validator.
type Set struct {
	Rules     []Rule
	Evaluator Evaluator
	Logger    EvaluatorLogger
	Args      map[string]any
	Metadata  map[string]any
	Now       func() time.Time
}

var _ settings.Validator = (*Set)(nil)

// NewSet returns a Set backed by the expr evaluator.
func NewSet(rules ...Rule) *Set {
	return &Set{Rules: rules}
}

// Validate evaluates every rule against root and reports failed rules as a
// *ValidationError. Evaluator failures abort with the evaluator error.
func (s *Set) Validate(ctx context.Context, root map[string]any) error {
	if s == nil || len(s.Rules) == 0 {
		return nil
	}
	evaluator := s.Evaluator
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	logger := s.Logger
	if logger == nil {
		logger = noopEvaluatorLogger{}
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	var violations []Violation
	for _, rule := range s.Rules {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, present, err := resolve(root, rule.Path)
		if err != nil {
			return err
		}
		if !present {
			if rule.Required {
				violations = append(violations, Violation{
					Path:    rule.Path,
					Expr:    rule.Expr,
					Message: rule.messageOr("is required"),
				})
			}
			continue
		}
		if rule.Expr == "" {
			continue
		}

		start := time.Now()
		passed, err := s.evaluate(evaluator, rule, RuleContext{
			Settings: root,
			Path:     rule.Path,
			Value:    value,
			Present:  present,
			Now:      &now,
			Args:     s.Args,
			Metadata: s.Metadata,
		})
		logger.LogEvaluation(EvaluatorLogEvent{
			Engine:   engineOf(evaluator),
			Expr:     rule.Expr,
			Path:     rule.Path,
			Passed:   err == nil && passed.ok,
			Duration: time.Since(start),
			Err:      err,
		})
		if err != nil {
			return err
		}
		if !passed.ok {
			violations = append(violations, Violation{
				Path:    rule.Path,
				Expr:    rule.Expr,
				Message: rule.messageOr(passed.reason),
			})
		}
	}
	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

type outcome struct {
	ok     bool
	reason string
}

func (s *Set) evaluate(evaluator Evaluator, rule Rule, ctx RuleContext) (outcome, error) {
	compiled, err := evaluator.Compile(rule.Expr)
	if err != nil {
		return outcome{}, err
	}
	result, err := compiled.Evaluate(ctx)
	if err != nil {
		return outcome{}, err
	}
	passed, ok := result.(bool)
	if !ok {
		return outcome{reason: fmt.Sprintf("expression %q returned %T, want bool", rule.Expr, result)}, nil
	}
	if !passed {
		return outcome{reason: fmt.Sprintf("failed %q", rule.Expr)}, nil
	}
	return outcome{ok: true}, nil
}

func (r Rule) messageOr(fallback string) string {
	if r.Message != "" {
		return r.Message
	}
	return fallback
}

// resolve treats any path that cannot reach a value as absent. Only a
// malformed path is an error.
func resolve(root map[string]any, path string) (any, bool, error) {
	if path == "" {
		return root, true, nil
	}
	value, err := settings.Lookup(root, path)
	switch {
	case err == nil:
		return value, true, nil
	case errors.Is(err, settings.ErrInvalidPath):
		return nil, false, err
	default:
		return nil, false, nil
	}
}
