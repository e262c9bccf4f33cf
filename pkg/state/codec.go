package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-settings/internal/hydrate"
)

// Codec encodes settings files.
type Codec interface {
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte, target any) error
	// Extension is the file extension including the leading dot.
	Extension() string
}

// JSONCodec reads and writes indented JSON.
type JSONCodec struct{}

func (JSONCodec) Marshal(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (JSONCodec) Unmarshal(data []byte, target any) error {
	return json.Unmarshal(data, target)
}

func (JSONCodec) Extension() string { return ".json" }

// YAMLCodec reads and writes YAML.
type YAMLCodec struct{}

func (YAMLCodec) Marshal(value any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (YAMLCodec) Unmarshal(data []byte, target any) error {
	return yaml.Unmarshal(data, target)
}

func (YAMLCodec) Extension() string { return ".yaml" }

// CodecFor picks a codec from a file name. YAML for .yaml and .yml, JSON for
// everything else.
func CodecFor(path string) Codec {
	return CodecNamed(strings.TrimPrefix(filepath.Ext(path), "."))
}

// CodecNamed resolves "yaml", "yml" or "json". Unknown names fall back to JSON.
func CodecNamed(name string) Codec {
	switch strings.ToLower(name) {
	case "yaml", "yml":
		return YAMLCodec{}
	default:
		return JSONCodec{}
	}
}

// decodeSettings unmarshals data into a settings map with container types
// normalized to map[string]any and []any. Empty input yields an empty map.
func decodeSettings(codec Codec, data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var raw any
	if err := codec.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return normalizeSettings(raw)
}

func normalizeSettings(raw any) (map[string]any, error) {
	if raw == nil {
		return map[string]any{}, nil
	}
	normalized, err := hydrate.Normalize(raw)
	if err != nil {
		return nil, err
	}
	root, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("settings root must be an object, got %T", raw)
	}
	return root, nil
}
