package settings

import (
	"encoding/json"
)

// Trace captures provenance information for a path lookup across the layers
// that produced a document.
type Trace struct {
	Path   string       `json:"path"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how one layer contributed to a traced path.
type Provenance struct {
	Layer      string `json:"layer"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Path       string `json:"path"`
	Value      any    `json:"value,omitempty"`
	Found      bool   `json:"found"`
}

// Winner returns the layer that supplied the merged value for the path. A nil
// value falls through to weaker layers the way Merge does, so a nil-holding
// layer wins only when no weaker layer holds anything else.
func (t Trace) Winner() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Found && layer.Value != nil {
			return layer, true
		}
	}
	for _, layer := range t.Layers {
		if layer.Found {
			return layer, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// ResolveWithTrace looks path up in every layer (strongest first) and returns
// the merged value with per-layer provenance. A value absent from every layer
// yields nil without error; only malformed paths fail.
func ResolveWithTrace(path string, layers ...Layer) (any, Trace, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, Trace{Path: path}, pathError("trace", path, nil, err)
	}

	trace := Trace{Path: path, Layers: make([]Provenance, 0, len(layers))}
	for _, layer := range layers {
		entry := Provenance{
			Layer:      layer.Name,
			SnapshotID: layer.SnapshotID,
			Path:       path,
		}
		if value, err := LookupPath(layer.Settings, segments); err == nil {
			entry.Value = Clone(value)
			entry.Found = true
		}
		trace.Layers = append(trace.Layers, entry)
	}

	merged := Merge(layers...)
	value, err := LookupPath(merged, segments)
	if err != nil {
		return nil, trace, nil
	}
	return value, trace, nil
}
