package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// RuleContext carries the inputs bound into an expression environment.
type RuleContext struct {
	Settings map[string]any
	Path     string
	Value    any
	Present  bool
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
}

// Names bound by every evaluator. Top-level settings keys never shadow them.
var reservedNames = map[string]struct{}{
	"value": {}, "present": {}, "path": {}, "settings": {},
	"now": {}, "args": {}, "metadata": {}, "call": {},
	// CEL and JS keywords that cannot be declared as variables.
	"in": {}, "null": {}, "true": {}, "false": {}, "as": {}, "break": {},
	"const": {}, "continue": {}, "else": {}, "for": {}, "function": {},
	"if": {}, "import": {}, "let": {}, "loop": {}, "package": {},
	"namespace": {}, "return": {}, "var": {}, "void": {}, "while": {},
	"new": {}, "this": {}, "typeof": {}, "delete": {},
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Settings == nil {
		ctx.Settings = map[string]any{}
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

// bindings returns the variables visible to an expression.
func (ctx RuleContext) bindings() map[string]any {
	env := map[string]any{}
	for _, key := range ctx.settingsKeys() {
		env[key] = ctx.Settings[key]
	}
	env["value"] = ctx.Value
	env["present"] = ctx.Present
	env["path"] = ctx.Path
	env["settings"] = ctx.Settings
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	env["metadata"] = ctx.Metadata
	return env
}

// settingsKeys lists the top-level keys that can be bound as variables, sorted.
func (ctx RuleContext) settingsKeys() []string {
	keys := make([]string, 0, len(ctx.Settings))
	for key := range ctx.Settings {
		if _, reserved := reservedNames[key]; reserved {
			continue
		}
		if !identifierPattern.MatchString(key) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func emptyExpressionError(engine string) error {
	return wrapEvaluatorError(engine, fmt.Errorf("expression must not be empty"))
}

// EvaluatorByName resolves one of the built-in engines: expr, cel or js.
func EvaluatorByName(name string, cache ProgramCache, registry *FunctionRegistry) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "expr":
		return NewExprEvaluator(ExprWithProgramCache(cache), ExprWithFunctionRegistry(registry)), nil
	case "cel":
		return NewCELEvaluator(CELWithProgramCache(cache), CELWithFunctionRegistry(registry)), nil
	case "js", "javascript":
		evaluator := NewJSEvaluator(JSWithProgramCache(cache), JSWithFunctionRegistry(registry))
		if evaluator == nil {
			return nil, fmt.Errorf("%w: js engine requires the js_eval build tag", ErrNoEvaluator)
		}
		return evaluator, nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrNoEvaluator, name)
	}
}

func engineOf(evaluator Evaluator) string {
	if named, ok := evaluator.(interface{ Engine() string }); ok {
		return named.Engine()
	}
	return fmt.Sprintf("%T", evaluator)
}
