package rules

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	settings "github.com/goliatone/go-settings"
	"github.com/google/go-cmp/cmp"
)

func sampleSettings() map[string]any {
	return map[string]any{
		"clientCode": "ACME",
		"mbox": map[string]any{
			"timeout": 30,
			"hosts":   []any{"a.example.com", "b.example.com"},
		},
	}
}

func TestSetValidatePasses(t *testing.T) {
	set := NewSet(
		Rule{Path: "mbox.timeout", Expr: "value > 0"},
		Rule{Path: "clientCode", Expr: "len(value) == 4", Required: true},
		Rule{Path: "mbox.hosts", Expr: "len(value) >= 1"},
	)
	if err := set.Validate(context.Background(), sampleSettings()); err != nil {
		t.Fatalf("expected rules to pass, got %v", err)
	}
}

func TestSetValidateCollectsViolations(t *testing.T) {
	set := NewSet(
		Rule{Path: "mbox.timeout", Expr: "value > 60", Message: "timeout must exceed a minute"},
		Rule{Path: "region", Required: true},
		Rule{Path: "clientCode", Expr: "value"},
	)
	err := set.Validate(context.Background(), sampleSettings())

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if diff := cmp.Diff([]string{"mbox.timeout", "region", "clientCode"}, validation.Paths()); diff != "" {
		t.Fatalf("violation paths mismatch (-want +got):\n%s", diff)
	}
	if validation.Violations[0].Message != "timeout must exceed a minute" {
		t.Fatalf("expected custom message, got %q", validation.Violations[0].Message)
	}
	if validation.Violations[1].Message != "is required" {
		t.Fatalf("expected required message, got %q", validation.Violations[1].Message)
	}
	if !strings.Contains(validation.Violations[2].Message, "want bool") {
		t.Fatalf("expected non-bool message, got %q", validation.Violations[2].Message)
	}
}

func TestSetValidateSkipsAbsentOptionalPaths(t *testing.T) {
	set := NewSet(
		Rule{Path: "mbox.retries", Expr: "value > 0"},
		Rule{Path: "clientCode.nested", Expr: "false"},
		Rule{Path: "missing.parent.key", Expr: "false"},
	)
	if err := set.Validate(context.Background(), sampleSettings()); err != nil {
		t.Fatalf("absent optional paths should be skipped, got %v", err)
	}
}

func TestSetValidateBindsTopLevelKeysAndSettings(t *testing.T) {
	set := NewSet(
		Rule{Expr: `clientCode == "ACME" && settings.mbox.timeout == 30`},
		Rule{Path: "mbox.hosts.1", Expr: `path == "mbox.hosts.1" && present && value == "b.example.com"`},
		Rule{Path: "mbox", Expr: `args.limit > value.timeout`},
	)
	set.Args = map[string]any{"limit": 45}
	if err := set.Validate(context.Background(), sampleSettings()); err != nil {
		t.Fatalf("expected bindings to resolve, got %v", err)
	}
}

func TestSetValidateAbortsOnEvaluatorError(t *testing.T) {
	set := NewSet(Rule{Path: "clientCode", Expr: "value >"})
	err := set.Validate(context.Background(), sampleSettings())

	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %T %v", err, err)
	}
	if evalErr.Engine != "expr" {
		t.Fatalf("expected expr engine, got %q", evalErr.Engine)
	}
}

func TestSetValidateRejectsInvalidPath(t *testing.T) {
	set := NewSet(Rule{Path: "mbox..timeout", Expr: "true"})
	err := set.Validate(context.Background(), sampleSettings())
	if !errors.Is(err, settings.ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}
}

func TestSetValidateHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	set := NewSet(Rule{Path: "clientCode", Expr: "true"})
	if err := set.Validate(ctx, sampleSettings()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSetValidateLogsEvaluations(t *testing.T) {
	var events []EvaluatorLogEvent
	set := NewSet(
		Rule{Path: "mbox.timeout", Expr: "value > 0"},
		Rule{Path: "mbox.timeout", Expr: "value > 100"},
	)
	set.Logger = EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		events = append(events, event)
	})
	_ = set.Validate(context.Background(), sampleSettings())

	if len(events) != 2 {
		t.Fatalf("expected 2 log events, got %d", len(events))
	}
	if !events[0].Passed || events[1].Passed {
		t.Fatalf("unexpected pass flags: %+v", events)
	}
	if events[0].Engine != "expr" || events[0].Path != "mbox.timeout" {
		t.Fatalf("unexpected event metadata: %+v", events[0])
	}
}

type recordingEvaluator struct {
	contexts []RuleContext
}

func (r *recordingEvaluator) Evaluate(ctx RuleContext, _ string) (any, error) {
	r.contexts = append(r.contexts, ctx)
	return true, nil
}

func (r *recordingEvaluator) Compile(string) (CompiledRule, error) {
	return recordingRule{evaluator: r}, nil
}

type recordingRule struct {
	evaluator *recordingEvaluator
}

func (r recordingRule) Evaluate(ctx RuleContext) (any, error) {
	return r.evaluator.Evaluate(ctx, "")
}

func TestSetUsesFixedClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	recorder := &recordingEvaluator{}
	set := NewSet(Rule{Path: "clientCode", Expr: "anything"})
	set.Evaluator = recorder
	set.Metadata = map[string]any{"source": "test"}
	set.Now = func() time.Time { return fixed }
	if err := set.Validate(context.Background(), sampleSettings()); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(recorder.contexts) != 1 {
		t.Fatalf("expected one evaluation, got %d", len(recorder.contexts))
	}
	got := recorder.contexts[0]
	if got.Now == nil || !got.Now.Equal(fixed) {
		t.Fatalf("expected fixed clock, got %v", got.Now)
	}
	if got.Value != "ACME" || !got.Present || got.Metadata["source"] != "test" {
		t.Fatalf("unexpected rule context %+v", got)
	}
}

func TestDocumentValidateWithRuleSet(t *testing.T) {
	set := NewSet(Rule{Path: "mbox.timeout", Expr: "value <= 60"})
	doc := settings.NewDocument(sampleSettings(), settings.WithValidator(set))

	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
	if err := doc.Set("mbox.timeout", 120); err != nil {
		t.Fatalf("set: %v", err)
	}
	err := doc.Validate(context.Background())
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError after update, got %v", err)
	}
}

func TestEvaluatorByName(t *testing.T) {
	for _, name := range []string{"", "expr", "CEL"} {
		if _, err := EvaluatorByName(name, nil, nil); err != nil {
			t.Fatalf("engine %q: %v", name, err)
		}
	}
	if _, err := EvaluatorByName("lua", nil, nil); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
	_, err := EvaluatorByName("js", nil, nil)
	if jsEvaluatorAvailable() && err != nil {
		t.Fatalf("js engine should resolve with js_eval tag: %v", err)
	}
	if !jsEvaluatorAvailable() && !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator without js_eval tag, got %v", err)
	}
}
