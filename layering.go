package settings

import (
	"errors"
	"fmt"
	"reflect"
)

const currentLayerName = "current"

var (
	// ErrLayerNameRequired indicates a layer without a name.
	ErrLayerNameRequired = errors.New("settings: layer name must be provided")
	// ErrDuplicateLayer indicates two layers share a name.
	ErrDuplicateLayer = errors.New("settings: layer names must be unique")
)

// Layer is one named source of settings, such as stored values or extension
// defaults. Layers are ordered strongest first.
type Layer struct {
	Name       string
	Settings   map[string]any
	SnapshotID string
}

func (l Layer) clone() Layer {
	settings, _ := Clone(l.Settings).(map[string]any)
	return Layer{
		Name:       l.Name,
		Settings:   settings,
		SnapshotID: l.SnapshotID,
	}
}

// NewLayeredDocument merges layers (strongest first) into a new document that
// keeps the layers for Trace.
func NewLayeredDocument(layers []Layer, opts ...Option) (*Document, error) {
	seen := make(map[string]struct{}, len(layers))
	copied := make([]Layer, len(layers))
	for i, layer := range layers {
		if layer.Name == "" {
			return nil, ErrLayerNameRequired
		}
		if _, ok := seen[layer.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLayer, layer.Name)
		}
		seen[layer.Name] = struct{}{}
		copied[i] = layer.clone()
	}

	doc := NewDocument(Merge(copied...), opts...)
	doc.layers = copied
	return doc, nil
}

// Merge composes layers ordered strongest to weakest. Objects are merged key
// by key; arrays and scalars from a stronger layer replace weaker ones. The
// result never aliases the inputs.
func Merge(layers ...Layer) map[string]any {
	merged := map[string]any{}
	for i := len(layers) - 1; i >= 0; i-- {
		if layers[i].Settings == nil {
			continue
		}
		merged = mergeObjects(layers[i].Settings, merged)
	}
	return merged
}

func mergeObjects(strong, weak map[string]any) map[string]any {
	result := make(map[string]any, len(strong)+len(weak))
	for key, value := range weak {
		result[key] = Clone(value)
	}
	for key, value := range strong {
		existing, ok := result[key]
		if !ok {
			result[key] = Clone(value)
			continue
		}
		result[key] = mergeValue(value, existing)
	}
	return result
}

func mergeValue(strong, weak any) any {
	if strong == nil {
		return Clone(weak)
	}
	strongObject, strongIsObject := strong.(map[string]any)
	weakObject, weakIsObject := weak.(map[string]any)
	if strongIsObject && weakIsObject {
		return mergeObjects(strongObject, weakObject)
	}
	return Clone(strong)
}

// Diff returns the entries of current that are absent from base or differ
// from it. Objects are compared key by key and arrays as a whole, so
// Merge(Layer{Settings: Diff(current, base)}, Layer{Settings: base}) equals
// current whenever current does not drop keys present in base.
func Diff(current, base map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range current {
		baseValue, ok := base[key]
		if !ok {
			out[key] = Clone(value)
			continue
		}
		currentObject, currentIsObject := value.(map[string]any)
		baseObject, baseIsObject := baseValue.(map[string]any)
		if currentIsObject && baseIsObject {
			if nested := Diff(currentObject, baseObject); len(nested) > 0 {
				out[key] = nested
			}
			continue
		}
		if !reflect.DeepEqual(value, baseValue) {
			out[key] = Clone(value)
		}
	}
	return out
}

// Clone deep-copies settings containers. Maps with string keys and slices are
// copied recursively, other values are returned as is.
func Clone(value any) any {
	switch typed := value.(type) {
	case nil:
		return nil
	case map[string]any:
		if typed == nil {
			return map[string]any(nil)
		}
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = Clone(item)
		}
		return out
	case Object:
		if typed == nil {
			return Object(nil)
		}
		out := make(Object, len(typed))
		for key, item := range typed {
			out[key] = Clone(item)
		}
		return out
	case []any:
		if typed == nil {
			return []any(nil)
		}
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	case Array:
		out := make(Array, len(typed))
		for i, item := range typed {
			out[i] = Clone(item)
		}
		return out
	case string, bool, int, int64, float64:
		return typed
	}
	return cloneReflect(reflect.ValueOf(value)).Interface()
}

func cloneReflect(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneElem(iter.Value(), v.Type().Elem()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneElem(v.Index(i), v.Type().Elem()))
		}
		return clone
	default:
		return v
	}
}

func cloneElem(v reflect.Value, target reflect.Type) reflect.Value {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(target)
		}
		cloned := Clone(v.Elem().Interface())
		if cloned == nil {
			return reflect.Zero(target)
		}
		return reflect.ValueOf(cloned)
	}
	return cloneReflect(v)
}
