package settings

import (
	"reflect"
	"strconv"
	"strings"
)

// Container is an indexable settings node. Objects and arrays implement the
// same interface so traversal never needs to know which one it is holding.
type Container interface {
	Lookup(key string) (any, bool)
	Assign(key string, value any) error
}

// Object is a settings object keyed by field name.
type Object map[string]any

// Lookup returns the value stored under key.
func (o Object) Lookup(key string) (any, bool) {
	value, ok := o[key]
	return value, ok
}

// Assign stores value under key, creating or overwriting it.
func (o Object) Assign(key string, value any) error {
	if o == nil {
		return ErrNotSettable
	}
	o[key] = value
	return nil
}

func (o Object) remove(key string) error {
	delete(o, key)
	return nil
}

// MaxIndexGap bounds how far past the end of an array an assignment may
// reach. Larger gaps are rejected with ErrInvalidIndex.
const MaxIndexGap = 1024

// Array is an ordered settings sequence addressed by decimal string keys.
// Use a pointer so assignments past the end can grow the slice.
type Array []any

// Lookup returns the element at the decimal index key.
func (a *Array) Lookup(key string) (any, bool) {
	if a == nil {
		return nil, false
	}
	index, ok := parseIndex(key)
	if !ok || index >= len(*a) {
		return nil, false
	}
	return (*a)[index], true
}

// Assign stores value at the decimal index key. Assigning at len appends;
// assigning further out pads the gap with nil holes, up to MaxIndexGap.
func (a *Array) Assign(key string, value any) error {
	if a == nil {
		return ErrNotSettable
	}
	index, ok := parseIndex(key)
	if !ok {
		return ErrInvalidIndex
	}
	if index < len(*a) {
		(*a)[index] = value
		return nil
	}
	if index-len(*a) > MaxIndexGap {
		return ErrInvalidIndex
	}
	for len(*a) < index {
		*a = append(*a, nil)
	}
	*a = append(*a, value)
	return nil
}

func (a *Array) remove(key string) error {
	index, ok := parseIndex(key)
	if !ok {
		return ErrInvalidIndex
	}
	if index < len(*a) {
		(*a)[index] = nil
	}
	return nil
}

// AsContainer adapts v to the Container interface. Supported inputs are
// Container implementations, map[string]any, []any, *[]any, Array, and via
// reflection pointers to structs, maps with string keys, slices and arrays.
func AsContainer(v any) (Container, bool) {
	switch typed := v.(type) {
	case nil:
		return nil, false
	case Container:
		return typed, true
	case map[string]any:
		return Object(typed), true
	case *map[string]any:
		if typed == nil {
			return nil, false
		}
		if *typed != nil {
			return Object(*typed), true
		}
	case []any:
		return &boundArray{Array: Array(typed), plain: true, origin: len(typed)}, true
	case Array:
		return &boundArray{Array: typed, origin: len(typed)}, true
	case *[]any:
		if typed == nil {
			return nil, false
		}
		return (*Array)(typed), true
	}
	return newReflectContainer(v)
}

// boundArray wraps an array held by value. Growing it changes the slice
// header, so the parent must store the rebound value.
type boundArray struct {
	Array
	plain  bool
	origin int
}

func (b *boundArray) rebind() (any, bool) {
	if b.plain {
		return []any(b.Array), len(b.Array) != b.origin
	}
	return b.Array, len(b.Array) != b.origin
}

// rebinder is implemented by containers that wrap a copy of their source
// value. When rebind reports true the parent must reassign the value.
type rebinder interface {
	rebind() (any, bool)
}

type remover interface {
	remove(key string) error
}

// childResolver lets reflected containers hand out addressable children so
// nested writes reach the original struct.
type childResolver interface {
	lookupChild(key string) (any, bool)
}

func rebindOf(c Container) (any, bool) {
	if r, ok := c.(rebinder); ok {
		return r.rebind()
	}
	return nil, false
}

func lookupChild(c Container, key string) (any, bool) {
	if r, ok := c.(childResolver); ok {
		return r.lookupChild(key)
	}
	return c.Lookup(key)
}

func parseIndex(key string) (int, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	index, err := strconv.Atoi(key)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

func isIndex(key string) bool {
	_, ok := parseIndex(key)
	return ok
}

// newContainerFor picks the shape used when auto-creating an intermediate
// segment: arrays for numeric next segments, objects otherwise.
func newContainerFor(next string) any {
	if isIndex(next) {
		return []any{}
	}
	return map[string]any{}
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

type reflectContainer struct {
	rv     reflect.Value
	copied bool
	dirty  bool
}

func newReflectContainer(v any) (Container, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		if rv.IsNil() && !rv.CanSet() {
			return nil, false
		}
		return &reflectContainer{rv: rv}, true
	case reflect.Struct, reflect.Array, reflect.Slice:
		if rv.CanAddr() {
			return &reflectContainer{rv: rv}, true
		}
		clone := reflect.New(rv.Type()).Elem()
		clone.Set(rv)
		return &reflectContainer{rv: clone, copied: true}, true
	default:
		return nil, false
	}
}

func (r *reflectContainer) Lookup(key string) (any, bool) {
	value, ok := r.child(key)
	if !ok || !value.IsValid() {
		return nil, ok
	}
	if !value.CanInterface() {
		return nil, false
	}
	return value.Interface(), true
}

func (r *reflectContainer) lookupChild(key string) (any, bool) {
	value, ok := r.child(key)
	if !ok || !value.IsValid() || !value.CanInterface() {
		return nil, false
	}
	switch value.Kind() {
	case reflect.Struct, reflect.Array, reflect.Slice, reflect.Map:
		if value.CanAddr() {
			return value.Addr().Interface(), true
		}
	}
	return value.Interface(), true
}

func (r *reflectContainer) child(key string) (reflect.Value, bool) {
	switch r.rv.Kind() {
	case reflect.Map:
		if r.rv.IsNil() {
			return reflect.Value{}, false
		}
		value := r.rv.MapIndex(reflect.ValueOf(key).Convert(r.rv.Type().Key()))
		if !value.IsValid() {
			return reflect.Value{}, false
		}
		return value, true
	case reflect.Struct:
		field, ok := structField(r.rv, key)
		return field, ok
	case reflect.Slice, reflect.Array:
		index, ok := parseIndex(key)
		if !ok || index >= r.rv.Len() {
			return reflect.Value{}, false
		}
		return r.rv.Index(index), true
	}
	return reflect.Value{}, false
}

func (r *reflectContainer) Assign(key string, value any) error {
	switch r.rv.Kind() {
	case reflect.Map:
		if r.rv.IsNil() {
			if !r.rv.CanSet() {
				return ErrNotSettable
			}
			r.rv.Set(reflect.MakeMap(r.rv.Type()))
		}
		elem, err := convertValue(value, r.rv.Type().Elem())
		if err != nil {
			return err
		}
		r.rv.SetMapIndex(reflect.ValueOf(key).Convert(r.rv.Type().Key()), elem)
	case reflect.Struct:
		field, ok := structField(r.rv, key)
		if !ok {
			return ErrMissingKey
		}
		if !field.CanSet() {
			return ErrNotSettable
		}
		elem, err := convertValue(value, field.Type())
		if err != nil {
			return err
		}
		field.Set(elem)
	case reflect.Array:
		index, ok := parseIndex(key)
		if !ok || index >= r.rv.Len() {
			return ErrInvalidIndex
		}
		if !r.rv.Index(index).CanSet() {
			return ErrNotSettable
		}
		elem, err := convertValue(value, r.rv.Type().Elem())
		if err != nil {
			return err
		}
		r.rv.Index(index).Set(elem)
	case reflect.Slice:
		index, ok := parseIndex(key)
		if !ok {
			return ErrInvalidIndex
		}
		elem, err := convertValue(value, r.rv.Type().Elem())
		if err != nil {
			return err
		}
		if index < r.rv.Len() {
			r.rv.Index(index).Set(elem)
			break
		}
		if index-r.rv.Len() > MaxIndexGap {
			return ErrInvalidIndex
		}
		if !r.rv.CanSet() {
			return ErrNotSettable
		}
		grown := r.rv
		for grown.Len() < index {
			grown = reflect.Append(grown, reflect.Zero(r.rv.Type().Elem()))
		}
		r.rv.Set(reflect.Append(grown, elem))
	default:
		return ErrNotIndexable
	}
	r.dirty = true
	return nil
}

func (r *reflectContainer) remove(key string) error {
	if r.rv.Kind() == reflect.Map {
		if r.rv.IsNil() {
			return nil
		}
		r.rv.SetMapIndex(reflect.ValueOf(key).Convert(r.rv.Type().Key()), reflect.Value{})
		r.dirty = true
		return nil
	}
	field, ok := r.child(key)
	if !ok {
		return nil
	}
	if !field.CanSet() {
		return ErrNotSettable
	}
	field.Set(reflect.Zero(field.Type()))
	r.dirty = true
	return nil
}

func (r *reflectContainer) rebind() (any, bool) {
	return r.rv.Interface(), r.copied && r.dirty
}

func structField(rv reflect.Value, key string) (reflect.Value, bool) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		if field.Name == key || jsonName(field) == key {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func convertValue(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(target) {
		return rv, nil
	}
	if compatibleKinds(rv.Kind(), target.Kind()) && rv.Type().ConvertibleTo(target) {
		return rv.Convert(target), nil
	}
	return reflect.Value{}, ErrTypeMismatch
}

func compatibleKinds(from, to reflect.Kind) bool {
	switch {
	case isNumericKind(from) && isNumericKind(to):
		return true
	case from == reflect.String && to == reflect.String:
		return true
	case from == reflect.Bool && to == reflect.Bool:
		return true
	}
	return false
}

func isNumericKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
