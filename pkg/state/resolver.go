package state

import (
	"context"
	"fmt"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/activity"
)

// Layer names used by Resolver.Open.
const (
	LayerStored   = "stored"
	LayerDefaults = "defaults"
)

// Resolver opens stored snapshots as layered settings documents and writes
// them back.
type Resolver struct {
	Store   Store
	Emitter *activity.Emitter
	// Options are applied to every document the resolver builds.
	Options []settings.Option
}

// Mutator edits a document in place before it is saved.
type Mutator func(*settings.Document) error

// Open loads ref and layers it over defaults. A missing snapshot yields a
// document holding only the defaults.
func (r Resolver) Open(ctx context.Context, ref Ref, defaults map[string]any) (*settings.Document, Meta, error) {
	id, err := r.check(ref)
	if err != nil {
		return nil, Meta{}, err
	}
	snapshot, meta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %s: %w", id, err)
	}

	var layers []settings.Layer
	if ok {
		layers = append(layers, settings.Layer{Name: LayerStored, Settings: snapshot, SnapshotID: meta.SnapshotID})
	}
	if defaults != nil {
		layers = append(layers, settings.Layer{Name: LayerDefaults, Settings: defaults})
	}
	doc, err := settings.NewLayeredDocument(layers, r.options(id)...)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: layers for %s: %w", id, err)
	}

	if err := r.emit(ctx, activity.BuildSettingsLoadedEvent(activity.SettingsEventInput{
		DocumentID: id,
		Layer:      LayerStored,
		SnapshotID: meta.SnapshotID,
	})); err != nil {
		return nil, Meta{}, err
	}
	return doc, meta, nil
}

// Resolve layers several stored snapshots over defaults. refs are ordered
// strongest first; missing snapshots are skipped and each layer is named
// after its ref identifier.
func (r Resolver) Resolve(ctx context.Context, defaults map[string]any, refs ...Ref) (*settings.Document, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("state: store is required")
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("state: at least one ref is required")
	}

	layers := make([]settings.Layer, 0, len(refs)+1)
	for _, ref := range refs {
		id, err := ref.Identifier()
		if err != nil {
			return nil, err
		}
		snapshot, meta, ok, err := r.Store.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("state: load %s: %w", id, err)
		}
		if !ok {
			continue
		}
		layers = append(layers, settings.Layer{Name: id, Settings: snapshot, SnapshotID: meta.SnapshotID})
	}
	if defaults != nil {
		layers = append(layers, settings.Layer{Name: LayerDefaults, Settings: defaults})
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("state: no layers found for %s", refs[0])
	}

	id, _ := refs[0].Identifier()
	doc, err := settings.NewLayeredDocument(layers, r.options(id)...)
	if err != nil {
		return nil, fmt.Errorf("state: layers: %w", err)
	}
	return doc, nil
}

// Save validates doc and persists it under ref. When doc carries a defaults
// layer only the values that differ from the defaults are stored, so fields
// deleted from doc that have a default come back as that default on the next
// Open. Pass the Meta returned by Open to reject writes over a newer snapshot.
func (r Resolver) Save(ctx context.Context, ref Ref, doc *settings.Document, meta Meta) (Meta, error) {
	id, err := r.check(ref)
	if err != nil {
		return Meta{}, err
	}
	if doc == nil {
		return Meta{}, fmt.Errorf("state: document is required")
	}
	if err := doc.Validate(ctx); err != nil {
		return Meta{}, err
	}

	snapshot := doc.Settings()
	for _, layer := range doc.Layers() {
		if layer.Name == LayerDefaults {
			snapshot = settings.Diff(snapshot, layer.Settings)
		}
	}
	return r.save(ctx, ref, id, snapshot, meta)
}

// Mutate loads one snapshot, applies fn, validates the result, then saves.
// The defaults are not involved: fn sees exactly what is stored.
func (r Resolver) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator) (*settings.Document, Meta, error) {
	id, err := r.check(ref)
	if err != nil {
		return nil, Meta{}, err
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("state: mutator is required")
	}

	snapshot, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("state: load %s: %w", id, err)
	}
	if !ok {
		snapshot = map[string]any{}
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	doc := settings.NewDocument(snapshot, r.options(id)...)
	if err := fn(doc); err != nil {
		return nil, loadedMeta, err
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, loadedMeta, err
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	// The loaded snapshot id is not a request for a specific id.
	saveMeta.SnapshotID = meta.SnapshotID
	savedMeta, err := r.save(ctx, ref, id, doc.Settings(), saveMeta)
	if err != nil {
		return nil, loadedMeta, err
	}
	return doc, savedMeta, nil
}

func (r Resolver) save(ctx context.Context, ref Ref, id string, snapshot map[string]any, meta Meta) (Meta, error) {
	saved, err := r.Store.Save(ctx, ref, snapshot, meta)
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %s: %w", id, err)
	}
	if err := r.emit(ctx, activity.BuildSettingsSavedEvent(activity.SettingsEventInput{
		DocumentID: id,
		Layer:      LayerStored,
		SnapshotID: saved.SnapshotID,
	})); err != nil {
		return saved, err
	}
	return saved, nil
}

func (r Resolver) check(ref Ref) (string, error) {
	if r.Store == nil {
		return "", fmt.Errorf("state: store is required")
	}
	return ref.Identifier()
}

func (r Resolver) options(id string) []settings.Option {
	opts := make([]settings.Option, 0, len(r.Options)+1)
	opts = append(opts, settings.WithDocumentID(id))
	return append(opts, r.Options...)
}

func (r Resolver) emit(ctx context.Context, event activity.Event) error {
	if err := r.Emitter.Emit(ctx, event); err != nil {
		return fmt.Errorf("state: activity: %w", err)
	}
	return nil
}
