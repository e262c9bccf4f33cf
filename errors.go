package settings

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPath indicates a caller passed an empty dotted path.
	ErrEmptyPath = errors.New("settings: path must not be empty")
	// ErrInvalidPath indicates a path with an empty segment such as "a..b".
	ErrInvalidPath = errors.New("settings: invalid path")
	// ErrMissingContainer indicates an intermediate segment does not exist.
	ErrMissingContainer = errors.New("settings: missing intermediate container")
	// ErrMissingKey indicates the final segment of a lookup does not exist.
	ErrMissingKey = errors.New("settings: key not found")
	// ErrNotIndexable indicates a segment resolved to a scalar.
	ErrNotIndexable = errors.New("settings: value is not indexable")
	// ErrInvalidIndex indicates an array was addressed with a non-numeric key
	// or an index too far past the end.
	ErrInvalidIndex = errors.New("settings: invalid array index")
	// ErrTypeMismatch indicates a value cannot be stored in a typed container.
	ErrTypeMismatch = errors.New("settings: type mismatch")
	// ErrNotSettable indicates a reflected container cannot be written to.
	ErrNotSettable = errors.New("settings: container is not settable")
)

// PathError records the operation, the full path and the segment at which an
// accessor call failed.
type PathError struct {
	Op      string
	Path    string
	Segment string
	Err     error
}

func (e *PathError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := "<nil>"
	if e.Err != nil {
		msg = strings.TrimPrefix(e.Err.Error(), "settings: ")
	}
	if e.Segment == "" || e.Segment == e.Path {
		return fmt.Sprintf("settings: %s %s: %s", e.Op, describePath(e.Path), msg)
	}
	return fmt.Sprintf("settings: %s %s at %q: %s", e.Op, describePath(e.Path), e.Segment, msg)
}

func (e *PathError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describePath(path string) string {
	if path == "" {
		return "path=<empty>"
	}
	return fmt.Sprintf("path=%q", path)
}

func pathError(op, path string, segment Path, err error) error {
	if err == nil {
		return nil
	}
	var existing *PathError
	if errors.As(err, &existing) {
		if existing.Op == "" {
			existing.Op = op
		}
		if existing.Path == "" {
			existing.Path = path
		}
		return existing
	}
	return &PathError{
		Op:      op,
		Path:    path,
		Segment: segment.String(),
		Err:     err,
	}
}
