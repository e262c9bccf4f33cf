package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goliatone/go-settings/pkg/activity"
)

// Document is one edit session over a settings container. It owns the root
// exclusively for the duration of the session and is not safe for concurrent
// use; callers sharing a document must serialize access.
type Document struct {
	root   map[string]any
	cfg    documentConfig
	layers []Layer
}

// NewDocument wraps root. A nil root starts an empty object.
func NewDocument(root map[string]any, opts ...Option) *Document {
	if root == nil {
		root = map[string]any{}
	}
	return &Document{
		root: root,
		cfg:  applyOptions(opts),
	}
}

// ID returns the configured document identifier.
func (d *Document) ID() string {
	return d.cfg.id
}

// Root exposes the live container. Mutations made through it bypass logging
// and activity events.
func (d *Document) Root() map[string]any {
	return d.root
}

// Get returns the value at path.
func (d *Document) Get(path string) (any, bool) {
	value, err := d.Lookup(path)
	return value, err == nil
}

// Lookup returns the value at path or a *PathError.
func (d *Document) Lookup(path string) (any, error) {
	start := time.Now()
	value, err := Lookup(d.root, path)
	d.log("get", path, start, err)
	return value, err
}

// Has reports whether path resolves. The check is logged as a get.
func (d *Document) Has(path string) bool {
	_, err := d.Lookup(path)
	return err == nil
}

// Set assigns value at path using the document's auto-create policy.
func (d *Document) Set(path string, value any) error {
	return d.SetContext(context.Background(), path, value)
}

// SetContext is Set with a context forwarded to activity hooks.
func (d *Document) SetContext(ctx context.Context, path string, value any) error {
	start := time.Now()
	previous, _ := Get(d.root, path)
	var opts []SetOption
	if d.cfg.autoCreate {
		opts = append(opts, AutoCreate())
	}
	err := Set(d.root, path, value, opts...)
	d.log("set", path, start, err)
	if err != nil || !d.activityEnabled() {
		return err
	}
	return d.emit(ctx, activity.BuildFieldUpdatedEvent(d.eventInput(path, previous, value)))
}

// Delete removes the value at path. On a layered document the removal only
// affects the merged view: when the document is persisted as a diff over its
// defaults, a deleted field that has a default reads back as that default,
// so Delete acts as "reset to default" across a save.
func (d *Document) Delete(path string) error {
	return d.DeleteContext(context.Background(), path)
}

// DeleteContext is Delete with a context forwarded to activity hooks.
func (d *Document) DeleteContext(ctx context.Context, path string) error {
	start := time.Now()
	previous, existed := Get(d.root, path)
	err := Delete(d.root, path)
	d.log("delete", path, start, err)
	if err != nil || !existed || !d.activityEnabled() {
		return err
	}
	return d.emit(ctx, activity.BuildFieldDeletedEvent(d.eventInput(path, previous, nil)))
}

// Apply writes a batch of form field values keyed by dotted path. Fields are
// applied in sorted order so parents declared in the batch exist before their
// children. Every field is attempted; failures are joined.
func (d *Document) Apply(ctx context.Context, fields map[string]any) error {
	paths := make([]string, 0, len(fields))
	for path := range fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var errs []error
	for _, path := range paths {
		if err := d.SetContext(ctx, path, fields[path]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Settings returns a deep copy of the container for handing back to the host.
func (d *Document) Settings() map[string]any {
	cloned, _ := Clone(d.root).(map[string]any)
	if cloned == nil {
		return map[string]any{}
	}
	return cloned
}

// Validate runs the configured validator against the current settings.
func (d *Document) Validate(ctx context.Context) error {
	if d.cfg.validator == nil {
		return nil
	}
	if err := d.cfg.validator.Validate(ctx, d.root); err != nil {
		return fmt.Errorf("settings: validate %s: %w", d.label(), err)
	}
	return nil
}

// Flatten lists every leaf field of the document.
func (d *Document) Flatten() []Field {
	return Flatten(d.root)
}

// Layers returns copies of the layers the document was merged from.
func (d *Document) Layers() []Layer {
	if len(d.layers) == 0 {
		return nil
	}
	out := make([]Layer, len(d.layers))
	for i, layer := range d.layers {
		out[i] = layer.clone()
	}
	return out
}

// Trace reports which layers hold a value for path. The returned value is
// always read from the live document so edits made during the session are
// visible. Documents built without layers report the root as a single
// "current" layer.
func (d *Document) Trace(path string) (any, Trace, error) {
	layers := d.layers
	if len(layers) == 0 {
		layers = []Layer{{Name: currentLayerName, Settings: d.root}}
	}
	_, trace, err := ResolveWithTrace(path, layers...)
	if err != nil {
		return nil, trace, err
	}
	value, _ := Get(d.root, path)
	return value, trace, nil
}

func (d *Document) label() string {
	if d.cfg.id == "" {
		return "document"
	}
	return fmt.Sprintf("document %q", d.cfg.id)
}

func (d *Document) log(op, path string, start time.Time, err error) {
	d.cfg.logger.LogAccess(AccessEvent{
		Op:       op,
		Document: d.cfg.id,
		Path:     path,
		Duration: time.Since(start),
		Err:      err,
	})
}

func (d *Document) eventInput(path string, previous, next any) activity.SettingsEventInput {
	return activity.SettingsEventInput{
		ActorID:    d.cfg.actorID,
		TenantID:   d.cfg.tenantID,
		DocumentID: d.cfg.id,
		Path:       path,
		OldValue:   Clone(previous),
		NewValue:   Clone(next),
	}
}

func (d *Document) activityEnabled() bool {
	return d.cfg.emitter.Enabled()
}

func (d *Document) emit(ctx context.Context, event activity.Event) error {
	if err := d.cfg.emitter.Emit(ctx, event); err != nil {
		return fmt.Errorf("settings: activity for %s: %w", d.label(), err)
	}
	return nil
}
