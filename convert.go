package settings

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-settings/internal/hydrate"
)

// FromValue converts a typed value (struct, typed map, decoded YAML) into a
// settings container suitable for NewDocument.
func FromValue(value any) (map[string]any, error) {
	if value == nil {
		return map[string]any{}, nil
	}
	normalized, err := hydrate.Normalize(value)
	if err != nil {
		return nil, fmt.Errorf("settings: normalize %T: %w", value, err)
	}
	root, ok := normalized.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("settings: %T does not convert to an object: %w", value, ErrTypeMismatch)
	}
	return root, nil
}

// DecodeOption configures Decode and DecodeStrict.
type DecodeOption[T any] func(*decodeOptions[T])

type decodeOptions[T any] struct {
	hydrate []hydrate.DecoderOption[T]
}

// WithRenamedFields moves values stored under legacy paths (keys) to their
// current paths (values) before decoding. A value already present at the
// current path wins and the legacy entry is dropped. The document itself is
// not modified.
func WithRenamedFields[T any](renames map[string]string) DecodeOption[T] {
	return func(o *decodeOptions[T]) {
		o.hydrate = append(o.hydrate, hydrate.WithPreHook[T](renameFields(renames)))
	}
}

// WithDecodeCheck runs check against the decoded value.
func WithDecodeCheck[T any](check func(*T) error) DecodeOption[T] {
	return func(o *decodeOptions[T]) {
		if check == nil {
			return
		}
		o.hydrate = append(o.hydrate, hydrate.WithPostHook[T](func(_ hydrate.Context, value *T) error {
			return check(value)
		}))
	}
}

// Decode converts the document's current settings into T.
func Decode[T any](d *Document, opts ...DecodeOption[T]) (T, error) {
	return decode(d, opts)
}

// DecodeStrict is Decode but fails when the settings hold keys T does not
// declare.
func DecodeStrict[T any](d *Document, opts ...DecodeOption[T]) (T, error) {
	return decode(d, opts, hydrate.WithDisallowUnknownFields[T]())
}

func decode[T any](d *Document, opts []DecodeOption[T], extra ...hydrate.DecoderOption[T]) (T, error) {
	var zero T
	if d == nil {
		return zero, fmt.Errorf("settings: decode: document is nil")
	}
	var cfg decodeOptions[T]
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	decoder := hydrate.NewDecoder(append(cfg.hydrate, extra...)...)
	return decoder.Decode(hydrate.Context{Document: d.cfg.id}, d.root)
}

func renameFields(renames map[string]string) hydrate.PreHook {
	legacy := make([]string, 0, len(renames))
	for from := range renames {
		legacy = append(legacy, from)
	}
	sort.Strings(legacy)

	return func(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
		for _, from := range legacy {
			value, ok := Get(payload, from)
			if !ok {
				continue
			}
			to := renames[from]
			if !Has(payload, to) {
				if err := Set(payload, to, value, AutoCreate()); err != nil {
					return nil, fmt.Errorf("rename %s to %s: %w", from, to, err)
				}
			}
			if err := Delete(payload, from); err != nil {
				return nil, fmt.Errorf("rename %s to %s: %w", from, to, err)
			}
		}
		return payload, nil
	}
}
