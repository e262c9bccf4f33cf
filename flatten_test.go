package settings

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFlatten(t *testing.T) {
	root := map[string]any{
		"clientCode": "ACME",
		"mbox": map[string]any{
			"timeout": 30,
			"hosts":   []any{"a", nil},
			"tls":     map[string]any{},
			"aliases": []any{},
		},
	}
	want := []Field{
		{Path: "clientCode", Type: "string", Value: "ACME"},
		{Path: "mbox.aliases", Type: "[]any", Value: []any{}},
		{Path: "mbox.hosts.0", Type: "string", Value: "a"},
		{Path: "mbox.hosts.1", Type: "nil"},
		{Path: "mbox.timeout", Type: "int", Value: 30},
		{Path: "mbox.tls", Type: "map[string]any", Value: map[string]any{}},
	}
	if diff := cmp.Diff(want, Flatten(root)); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}
}

func TestFlattenEmptyAndScalarRoots(t *testing.T) {
	if fields := Flatten(map[string]any{}); fields == nil || len(fields) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", fields)
	}
	if fields := Flatten("scalar"); len(fields) != 0 {
		t.Fatalf("scalar roots have no paths, got %#v", fields)
	}
}

func TestFlattenMapRoundTripsThroughSet(t *testing.T) {
	original := map[string]any{
		"mbox": map[string]any{
			"timeout": 30,
			"hosts":   []any{"a", "b"},
		},
	}
	rebuilt := map[string]any{}
	for path, value := range FlattenMap(original) {
		if err := Set(rebuilt, path, value, AutoCreate()); err != nil {
			t.Fatalf("set %q: %v", path, err)
		}
	}
	if diff := cmp.Diff(original, rebuilt); diff != "" {
		t.Fatalf("rebuilt settings differ (-want +got):\n%s", diff)
	}
}

func TestFlattenSkipsUnaddressableKeys(t *testing.T) {
	root := map[string]any{
		"mbox": map[string]any{
			"timeout":         30,
			"a.example.com":   map[string]any{"port": 993},
			"":                "blank",
			"aliases.primary": "ops",
		},
	}
	want := []Field{{Path: "mbox.timeout", Type: "int", Value: 30}}
	if diff := cmp.Diff(want, Flatten(root)); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}

	for path, value := range FlattenMap(root) {
		if got, ok := Get(root, path); !ok || got != value {
			t.Fatalf("flattened path %q does not resolve to %v, got %v", path, value, got)
		}
	}
}
