// Package settings reads and writes values inside nested settings containers
// addressed by dotted paths such as "mbox.timeout".
//
// A settings container is a map[string]any, a []any, or anything implementing
// Container. Objects and arrays are traversed uniformly: array elements are
// addressed by decimal string keys, so Set(&list, "1", v) behaves like
// Set(object, "name", v).
//
// Set never creates missing intermediate containers unless AutoCreate is
// passed. Failures are returned as *PathError values that unwrap to one of the
// package sentinel errors.
package settings

import "errors"

// SetOption configures a single Set or Delete call.
type SetOption func(*setConfig)

type setConfig struct {
	autoCreate bool
}

// AutoCreate enables creation of missing intermediate containers. Arrays are
// created when the following segment is a decimal index, objects otherwise.
func AutoCreate() SetOption {
	return func(cfg *setConfig) {
		cfg.autoCreate = true
	}
}

func applySetOptions(opts []SetOption) setConfig {
	cfg := setConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Set assigns value at path inside root, mutating root in place. Every
// intermediate segment must already hold a container unless AutoCreate is
// given. Roots that are arrays must be passed by pointer to grow.
func Set(root any, path string, value any, opts ...SetOption) error {
	segments, err := ParsePath(path)
	if err != nil {
		return pathError("set", path, nil, err)
	}
	return SetPath(root, segments, value, opts...)
}

// SetPath is Set for an already parsed path.
func SetPath(root any, path Path, value any, opts ...SetOption) error {
	if len(path) == 0 {
		return pathError("set", "", nil, ErrEmptyPath)
	}
	cfg := applySetOptions(opts)
	assign := func(c Container, key string) error {
		return c.Assign(key, value)
	}
	if err := mutateRoot(root, path, assign, cfg); err != nil {
		return pathError("set", path.String(), nil, err)
	}
	return nil
}

// Get returns the value at path and whether it was found. Missing segments,
// scalar intermediates and malformed paths all report false.
func Get(root any, path string) (any, bool) {
	value, err := Lookup(root, path)
	if err != nil {
		return nil, false
	}
	return value, true
}

// Lookup is Get with a structured error describing why a value is absent.
func Lookup(root any, path string) (any, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return nil, pathError("get", path, nil, err)
	}
	return LookupPath(root, segments)
}

// LookupPath is Lookup for an already parsed path.
func LookupPath(root any, path Path) (any, error) {
	if len(path) == 0 {
		return nil, pathError("get", "", nil, ErrEmptyPath)
	}
	node := root
	for i, key := range path {
		container, ok := AsContainer(node)
		if !ok {
			if i > 0 && isNilValue(node) {
				return nil, pathError("get", path.String(), path[:i], ErrMissingContainer)
			}
			return nil, pathError("get", path.String(), path[:i], ErrNotIndexable)
		}
		child, found := container.Lookup(key)
		if !found {
			if i == len(path)-1 {
				return nil, pathError("get", path.String(), path[:i+1], ErrMissingKey)
			}
			return nil, pathError("get", path.String(), path[:i+1], ErrMissingContainer)
		}
		node = child
	}
	return node, nil
}

// Has reports whether path resolves inside root.
func Has(root any, path string) bool {
	_, ok := Get(root, path)
	return ok
}

// Delete removes the value at path. Object keys are removed; array slots are
// cleared to nil so sibling indexes stay stable. Deleting something that does
// not exist is not an error.
func Delete(root any, path string) error {
	segments, err := ParsePath(path)
	if err != nil {
		return pathError("delete", path, nil, err)
	}
	remove := func(c Container, key string) error {
		if _, ok := c.Lookup(key); !ok {
			return nil
		}
		if r, ok := c.(remover); ok {
			return r.remove(key)
		}
		return c.Assign(key, nil)
	}
	err = mutateRoot(root, segments, remove, setConfig{})
	if errors.Is(err, ErrMissingContainer) {
		return nil
	}
	if err != nil {
		return pathError("delete", path, nil, err)
	}
	return nil
}

type leafFunc func(c Container, key string) error

func mutateRoot(root any, path Path, leaf leafFunc, cfg setConfig) error {
	_, rebound, err := mutate(root, path, 0, leaf, cfg)
	if err != nil {
		return err
	}
	if rebound {
		return &PathError{Err: ErrNotSettable, Segment: ""}
	}
	return nil
}

// mutate walks path from node, applies leaf at the final segment and reports
// whether the caller must store the returned value back into its parent.
func mutate(node any, path Path, depth int, leaf leafFunc, cfg setConfig) (any, bool, error) {
	container, ok := AsContainer(node)
	if !ok {
		return nil, false, &PathError{Segment: path[:depth].String(), Err: ErrNotIndexable}
	}

	key := path[depth]
	if depth == len(path)-1 {
		if err := leaf(container, key); err != nil {
			return nil, false, &PathError{Segment: path[:depth+1].String(), Err: err}
		}
		value, rebound := rebindOf(container)
		return value, rebound, nil
	}

	child, found := lookupChild(container, key)
	created := false
	if !found || isNilValue(child) {
		if !cfg.autoCreate {
			return nil, false, &PathError{Segment: path[:depth+1].String(), Err: ErrMissingContainer}
		}
		child = newContainerFor(path[depth+1])
		created = true
	}

	updated, rebound, err := mutate(child, path, depth+1, leaf, cfg)
	if err != nil {
		return nil, false, err
	}
	if rebound {
		child = updated
	}
	if created || rebound {
		if err := container.Assign(key, child); err != nil {
			return nil, false, &PathError{Segment: path[:depth+1].String(), Err: err}
		}
	}
	value, parentRebound := rebindOf(container)
	return value, parentRebound, nil
}
