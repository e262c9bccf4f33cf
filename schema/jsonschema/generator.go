// Package jsonschema describes settings containers as JSON Schema documents.
package jsonschema

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Draft is the JSON Schema dialect emitted at the document root.
const Draft = "https://json-schema.org/draft/2020-12/schema"

type config struct {
	title    string
	id       string
	required bool
	defaults bool
}

// Option configures Generate.
type Option func(*config)

// WithTitle sets the root "title".
func WithTitle(title string) Option {
	return func(cfg *config) {
		cfg.title = title
	}
}

// WithID sets the root "$id".
func WithID(id string) Option {
	return func(cfg *config) {
		cfg.id = id
	}
}

// WithRequired lists every key present in an object under "required".
// Struct fields tagged omitempty are never required.
func WithRequired() Option {
	return func(cfg *config) {
		cfg.required = true
	}
}

// WithDefaults records each scalar value as the property "default".
func WithDefaults() Option {
	return func(cfg *config) {
		cfg.defaults = true
	}
}

// Generate returns a JSON Schema describing the shape of value.
func Generate(value any, opts ...Option) (map[string]any, error) {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	schema, err := cfg.build(reflect.ValueOf(value))
	if err != nil {
		return nil, err
	}
	schema["$schema"] = Draft
	if cfg.id != "" {
		schema["$id"] = cfg.id
	}
	if cfg.title != "" {
		schema["title"] = cfg.title
	}
	return schema, nil
}

func (cfg config) build(rv reflect.Value) (map[string]any, error) {
	if !rv.IsValid() {
		return map[string]any{"type": "null"}, nil
	}

	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return map[string]any{"type": "null"}, nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Interface:
		if rv.IsNil() {
			return map[string]any{"type": "null"}, nil
		}
		return cfg.build(rv.Elem())
	case reflect.Bool:
		return cfg.scalar("boolean", rv), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cfg.scalar("integer", rv), nil
	case reflect.Float32, reflect.Float64:
		if f := rv.Float(); f == float64(int64(f)) {
			return cfg.scalar("integer", rv), nil
		}
		return cfg.scalar("number", rv), nil
	case reflect.String:
		return cfg.scalar("string", rv), nil
	case reflect.Struct:
		if rv.Type() == reflect.TypeOf(time.Time{}) {
			schema := map[string]any{
				"type":   "string",
				"format": "date-time",
			}
			if cfg.defaults {
				schema["default"] = rv.Interface().(time.Time).Format(time.RFC3339Nano)
			}
			return schema, nil
		}
		return cfg.schemaForStruct(rv)
	case reflect.Map:
		return cfg.schemaForMap(rv)
	case reflect.Slice, reflect.Array:
		return cfg.schemaForSlice(rv)
	default:
		return nil, fmt.Errorf("jsonschema: %s values cannot be described", rv.Type())
	}
}

func (cfg config) scalar(kind string, rv reflect.Value) map[string]any {
	schema := map[string]any{"type": kind}
	if cfg.defaults {
		schema["default"] = rv.Interface()
	}
	return schema
}

func (cfg config) schemaForMap(rv reflect.Value) (map[string]any, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("jsonschema: map key type %s unsupported", rv.Type().Key())
	}

	names := make([]string, 0, rv.Len())
	values := make(map[string]reflect.Value, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		name := iter.Key().String()
		names = append(names, name)
		values[name] = iter.Value()
	}
	sort.Strings(names)

	properties := make(map[string]any, len(names))
	for _, name := range names {
		child, err := cfg.build(values[name])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		properties[name] = child
	}
	return cfg.object(properties, names), nil
}

func (cfg config) schemaForStruct(rv reflect.Value) (map[string]any, error) {
	rt := rv.Type()
	properties := map[string]any{}
	var required []string

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		name := field.Name
		optional := false
		if tag := field.Tag.Get("json"); tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, part := range parts[1:] {
				if part == "omitempty" || part == "omitzero" {
					optional = true
				}
			}
		}

		child, err := cfg.build(rv.Field(i))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		properties[name] = child
		if !optional {
			required = append(required, name)
		}
	}

	sort.Strings(required)
	return cfg.object(properties, required), nil
}

func (cfg config) object(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if cfg.required && len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// schemaForSlice derives "items" from every element. Elements that disagree
// produce an "anyOf" of the distinct element schemas.
func (cfg config) schemaForSlice(rv reflect.Value) (map[string]any, error) {
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return map[string]any{
			"type":            "string",
			"contentEncoding": "base64",
		}, nil
	}

	itemCfg := cfg
	itemCfg.defaults = false
	var variants []map[string]any
	for i := 0; i < rv.Len(); i++ {
		item, err := itemCfg.build(rv.Index(i))
		if err != nil {
			return nil, fmt.Errorf("%d: %w", i, err)
		}
		variants = appendDistinct(variants, item)
	}

	schema := map[string]any{"type": "array"}
	switch len(variants) {
	case 0:
		schema["items"] = map[string]any{}
	case 1:
		schema["items"] = variants[0]
	default:
		anyOf := make([]any, len(variants))
		for i, variant := range variants {
			anyOf[i] = variant
		}
		schema["items"] = map[string]any{"anyOf": anyOf}
	}
	if cfg.defaults && rv.Len() > 0 {
		schema["default"] = rv.Interface()
	}
	return schema, nil
}

func appendDistinct(variants []map[string]any, candidate map[string]any) []map[string]any {
	for _, existing := range variants {
		if reflect.DeepEqual(existing, candidate) {
			return variants
		}
	}
	return append(variants, candidate)
}
