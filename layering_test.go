package settings

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mailboxLayers() []Layer {
	return []Layer{
		{
			Name:       "stored",
			SnapshotID: "snap-2",
			Settings: map[string]any{
				"mbox": map[string]any{
					"timeout": 45,
					"hosts":   []any{"imap.acme.test"},
				},
			},
		},
		{
			Name: "defaults",
			Settings: map[string]any{
				"clientCode": "DEFAULT",
				"mbox": map[string]any{
					"timeout": 30,
					"retries": 3,
					"hosts":   []any{"imap.default.test", "backup.default.test"},
				},
			},
		},
	}
}

func TestMergeStrongestFirst(t *testing.T) {
	merged := Merge(mailboxLayers()...)
	want := map[string]any{
		"clientCode": "DEFAULT",
		"mbox": map[string]any{
			"timeout": 45,
			"retries": 3,
			"hosts":   []any{"imap.acme.test"},
		},
	}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("unexpected merge (-want +got):\n%s", diff)
	}
}

func TestMergeNilValuesFallBack(t *testing.T) {
	merged := Merge(
		Layer{Name: "stored", Settings: map[string]any{"region": nil}},
		Layer{Name: "empty"},
		Layer{Name: "defaults", Settings: map[string]any{"region": "eu"}},
	)
	if merged["region"] != "eu" {
		t.Fatalf("expected nil to fall back to defaults, got %v", merged["region"])
	}
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	layers := mailboxLayers()
	merged := Merge(layers...)
	if err := Set(merged, "mbox.hosts.0", "changed"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if value, _ := Get(layers[0].Settings, "mbox.hosts.0"); value != "imap.acme.test" {
		t.Fatalf("merge aliased the stored layer, got %v", value)
	}
}

func TestNewLayeredDocument(t *testing.T) {
	layers := mailboxLayers()
	doc, err := NewLayeredDocument(layers, WithDocumentID("mail/accounts"))
	if err != nil {
		t.Fatalf("new layered document: %v", err)
	}
	if value, _ := doc.Get("mbox.retries"); value != 3 {
		t.Fatalf("expected defaults to fill retries, got %v", value)
	}

	layers[0].Settings["mbox"] = "mutated"
	got := doc.Layers()
	if len(got) != 2 || got[0].Name != "stored" || got[0].SnapshotID != "snap-2" {
		t.Fatalf("unexpected layers: %+v", got)
	}
	if _, ok := got[0].Settings["mbox"].(map[string]any); !ok {
		t.Fatalf("document layers aliased the caller's layers: %v", got[0].Settings)
	}
}

func TestNewLayeredDocumentRejectsBadNames(t *testing.T) {
	if _, err := NewLayeredDocument([]Layer{{Settings: map[string]any{}}}); !errors.Is(err, ErrLayerNameRequired) {
		t.Fatalf("expected ErrLayerNameRequired, got %v", err)
	}
	_, err := NewLayeredDocument([]Layer{{Name: "a"}, {Name: "a"}})
	if !errors.Is(err, ErrDuplicateLayer) {
		t.Fatalf("expected ErrDuplicateLayer, got %v", err)
	}
}

func TestDiff(t *testing.T) {
	base := map[string]any{
		"clientCode": "DEFAULT",
		"mbox": map[string]any{
			"timeout": 30,
			"retries": 3,
			"hosts":   []any{"imap.default.test"},
		},
		"smtp": map[string]any{"port": 25},
	}
	current := map[string]any{
		"clientCode": "DEFAULT",
		"mbox": map[string]any{
			"timeout": 45,
			"retries": 3,
			"hosts":   []any{"imap.default.test", "imap.acme.test"},
		},
		"smtp":   map[string]any{"port": 25},
		"region": "eu",
	}

	diff := Diff(current, base)
	want := map[string]any{
		"mbox": map[string]any{
			"timeout": 45,
			"hosts":   []any{"imap.default.test", "imap.acme.test"},
		},
		"region": "eu",
	}
	if d := cmp.Diff(want, diff); d != "" {
		t.Fatalf("unexpected diff (-want +got):\n%s", d)
	}

	rebuilt := Merge(Layer{Name: "stored", Settings: diff}, Layer{Name: "defaults", Settings: base})
	if d := cmp.Diff(current, rebuilt); d != "" {
		t.Fatalf("merge of diff over base must equal current (-want +got):\n%s", d)
	}
}

func TestDiffIdenticalIsEmpty(t *testing.T) {
	root := mailboxLayers()[1].Settings
	if diff := Diff(root, Clone(root).(map[string]any)); len(diff) != 0 {
		t.Fatalf("expected empty diff, got %v", diff)
	}
}

func TestCloneDeepCopies(t *testing.T) {
	original := map[string]any{
		"list":   []any{map[string]any{"a": 1}},
		"typed":  map[string][]string{"hosts": {"a"}},
		"object": Object{"k": Array{1}},
	}
	cloned := Clone(original).(map[string]any)
	if diff := cmp.Diff(original, cloned); diff != "" {
		t.Fatalf("clone differs (-want +got):\n%s", diff)
	}

	cloned["list"].([]any)[0].(map[string]any)["a"] = 2
	cloned["typed"].(map[string][]string)["hosts"][0] = "b"
	cloned["object"].(Object)["k"].(Array)[0] = 2

	if value, _ := Get(original, "list.0.a"); value != 1 {
		t.Fatalf("nested object aliased: %v", value)
	}
	if original["typed"].(map[string][]string)["hosts"][0] != "a" {
		t.Fatalf("typed map aliased")
	}
	if original["object"].(Object)["k"].(Array)[0] != 1 {
		t.Fatalf("object/array aliased")
	}
}
