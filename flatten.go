package settings

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Field describes one leaf of a settings container.
type Field struct {
	Path  string `json:"path"`
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
}

// Flatten lists every leaf of root in path order. Arrays are expanded by
// index; empty objects and arrays are reported as leaves of their own.
// Object keys that are empty or contain the path separator cannot be
// addressed by a path and are skipped along with everything below them.
func Flatten(root any) []Field {
	fields := flattenValue(root, "")
	if fields == nil {
		return []Field{}
	}
	return fields
}

// FlattenMap is Flatten keyed by path.
func FlattenMap(root any) map[string]any {
	fields := Flatten(root)
	out := make(map[string]any, len(fields))
	for _, field := range fields {
		out[field.Path] = field.Value
	}
	return out
}

func flattenValue(value any, prefix string) []Field {
	switch typed := value.(type) {
	case map[string]any:
		return flattenObject(typed, prefix, "map[string]any")
	case Object:
		return flattenObject(typed, prefix, "map[string]any")
	case []any:
		return flattenArray(typed, prefix)
	case Array:
		return flattenArray(typed, prefix)
	case *[]any:
		if typed == nil {
			return leaf(prefix, nil)
		}
		return flattenArray(*typed, prefix)
	default:
		return leaf(prefix, value)
	}
}

func flattenObject(object map[string]any, prefix, typeLabel string) []Field {
	if len(object) == 0 {
		if prefix == "" {
			return nil
		}
		return []Field{{Path: prefix, Type: typeLabel, Value: map[string]any{}}}
	}
	keys := make([]string, 0, len(object))
	for key := range object {
		if key == "" || strings.Contains(key, ".") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var fields []Field
	for _, key := range keys {
		fields = append(fields, flattenValue(object[key], JoinPath(prefix, key))...)
	}
	return fields
}

func flattenArray(items []any, prefix string) []Field {
	if len(items) == 0 {
		if prefix == "" {
			return nil
		}
		return []Field{{Path: prefix, Type: "[]any", Value: []any{}}}
	}
	var fields []Field
	for i, item := range items {
		fields = append(fields, flattenValue(item, JoinPath(prefix, strconv.Itoa(i)))...)
	}
	return fields
}

func leaf(prefix string, value any) []Field {
	if prefix == "" {
		return nil
	}
	return []Field{{Path: prefix, Type: typeName(value), Value: value}}
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}
