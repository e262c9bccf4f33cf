package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrETagMismatch = errors.New("state: etag mismatch")

var ErrInvalidRef = errors.New("state: invalid ref")

// Ref identifies one persisted settings snapshot: the settings an extension
// stores under one property.
type Ref struct {
	Extension string
	Property  string
}

// Meta is storage-owned metadata used for trace/audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty" yaml:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty" yaml:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Store loads and saves one snapshot per Ref. Save compares meta.ETag with
// the stored ETag when meta.ETag is set and fails with ErrETagMismatch on a
// stale write. Deleting a missing ref is not an error.
type Store interface {
	Load(ctx context.Context, ref Ref) (snapshot map[string]any, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot map[string]any, meta Meta) (Meta, error)
	Delete(ctx context.Context, ref Ref) error
}

// ParseRef parses an "extension/property" identifier.
func ParseRef(identifier string) (Ref, error) {
	extension, property, ok := strings.Cut(identifier, "/")
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q must be extension/property", ErrInvalidRef, identifier)
	}
	ref := Ref{Extension: extension, Property: property}
	if _, err := ref.Identifier(); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

// Identifier returns the canonical "extension/property" storage key.
func (r Ref) Identifier() (string, error) {
	if err := checkRefPart("extension", r.Extension); err != nil {
		return "", err
	}
	if err := checkRefPart("property", r.Property); err != nil {
		return "", err
	}
	return r.Extension + "/" + r.Property, nil
}

func (r Ref) String() string {
	return r.Extension + "/" + r.Property
}

func checkRefPart(name, value string) error {
	switch {
	case value == "":
		return fmt.Errorf("%w: %s is required", ErrInvalidRef, name)
	case value != strings.TrimSpace(value):
		return fmt.Errorf("%w: %s %q has surrounding whitespace", ErrInvalidRef, name, value)
	case strings.ContainsAny(value, `/\`), value == ".", value == "..":
		return fmt.Errorf("%w: %s %q is not a valid path element", ErrInvalidRef, name, value)
	}
	return nil
}

// ETag returns the hex sha256 of the canonical JSON encoding of snapshot.
func ETag(snapshot map[string]any) (string, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("state: encode snapshot: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// nextMeta checks the requested ETag against the current record and returns
// the metadata for the snapshot about to be written.
func nextMeta(ref Ref, current Meta, exists bool, snapshot map[string]any, requested Meta, now time.Time) (Meta, error) {
	if requested.ETag != "" && (!exists || current.ETag != requested.ETag) {
		return Meta{}, fmt.Errorf("%w: %s expected %q, got %q", ErrETagMismatch, ref, requested.ETag, current.ETag)
	}
	etag, err := ETag(snapshot)
	if err != nil {
		return Meta{}, err
	}
	snapshotID := requested.SnapshotID
	if snapshotID == "" || snapshotID == current.SnapshotID {
		snapshotID = uuid.NewString()
	}
	return Meta{
		SnapshotID: snapshotID,
		ETag:       etag,
		UpdatedAt:  now.UTC(),
		Extra:      cloneExtra(requested.Extra),
	}, nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	out.Extra = cloneExtra(meta.Extra)
	return out
}

func cloneExtra(extra map[string]string) map[string]string {
	if extra == nil {
		return nil
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		out[k] = v
	}
	return out
}
