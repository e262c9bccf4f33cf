package settings

import "strings"

// Path is a parsed dotted path. Each segment is an object key or, for arrays,
// a decimal index.
type Path []string

// ParsePath splits a dotted path such as "mbox.timeout" into segments.
// Empty paths and empty segments are rejected.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return nil, ErrEmptyPath
	}
	segments := strings.Split(raw, ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, &PathError{Op: "parse", Path: raw, Err: ErrInvalidPath}
		}
	}
	return Path(segments), nil
}

// MustParsePath is like ParsePath but panics on malformed input. Intended for
// package-level field name constants.
func MustParsePath(raw string) Path {
	path, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}
	return path
}

// String joins the segments back into dotted form.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Head returns the first segment.
func (p Path) Head() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Rest returns every segment after the first.
func (p Path) Rest() Path {
	if len(p) < 2 {
		return nil
	}
	return p[1:]
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) < 2 {
		return nil
	}
	return p[:len(p)-1]
}

// Leaf returns the last segment.
func (p Path) Leaf() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Append returns a new path with segments added. The receiver is not modified.
func (p Path) Append(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

// JoinPath appends segment to a dotted prefix.
func JoinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	if segment == "" {
		return prefix
	}
	return prefix + "." + segment
}
