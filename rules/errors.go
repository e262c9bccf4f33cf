package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoEvaluator indicates a rule set could not resolve an evaluator.
var ErrNoEvaluator = errors.New("rules: evaluator not configured")

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	Path   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("rules: %s evaluator %s path=%s: %v", e.Engine, describeExpression(e.Expr), describeRulePath(e.Path), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func describeRulePath(path string) string {
	if path == "" {
		return "<root>"
	}
	return path
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "rules:") {
		return err
	}
	return fmt.Errorf("rules: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, path string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Path == "" {
			evalErr.Path = path
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		Path:   path,
		Err:    err,
	}
}

// Violation is one failed rule.
type Violation struct {
	Path    string `json:"path" yaml:"path"`
	Expr    string `json:"expr,omitempty" yaml:"expr,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// ValidationError lists every rule a settings container failed.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "rules: validation failed"
	}
	parts := make([]string, len(e.Violations))
	for i, violation := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", describeRulePath(violation.Path), violation.Message)
	}
	return "rules: validation failed: " + strings.Join(parts, "; ")
}

// Paths returns the paths of every violation in order.
func (e *ValidationError) Paths() []string {
	if e == nil {
		return nil
	}
	paths := make([]string, len(e.Violations))
	for i, violation := range e.Violations {
		paths[i] = violation.Path
	}
	return paths
}
