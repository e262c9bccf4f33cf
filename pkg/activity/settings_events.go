package activity

import (
	"strings"
	"time"
)

// Verbs and object types emitted for settings activity.
const (
	VerbFieldUpdated   = "settings.field.updated"
	VerbFieldDeleted   = "settings.field.deleted"
	VerbSettingsLoaded = "settings.loaded"
	VerbSettingsSaved  = "settings.saved"
	ObjectTypeField    = "settings.field"
	ObjectTypeSettings = "settings"
)

const (
	metadataOldValue    = "old_value"
	metadataNewValue    = "new_value"
	metadataLayer       = "layer"
	metadataSnapshotID  = "snapshot_id"
	metadataDocumentKey = "document_id"
)

// SettingsEventInput holds the fields shared by settings lifecycle events.
type SettingsEventInput struct {
	ActorID    string
	TenantID   string
	DocumentID string
	Channel    string
	Path       string
	OldValue   any
	NewValue   any
	Layer      string
	SnapshotID string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildFieldUpdatedEvent describes a single field write.
func BuildFieldUpdatedEvent(input SettingsEventInput) Event {
	return buildFieldEvent(VerbFieldUpdated, input)
}

// BuildFieldDeletedEvent describes a single field removal.
func BuildFieldDeletedEvent(input SettingsEventInput) Event {
	return buildFieldEvent(VerbFieldDeleted, input)
}

// BuildSettingsLoadedEvent describes a document opened from storage.
func BuildSettingsLoadedEvent(input SettingsEventInput) Event {
	return buildDocumentEvent(VerbSettingsLoaded, input)
}

// BuildSettingsSavedEvent describes a document persisted to storage.
func BuildSettingsSavedEvent(input SettingsEventInput) Event {
	return buildDocumentEvent(VerbSettingsSaved, input)
}

func buildFieldEvent(verb string, input SettingsEventInput) Event {
	event := baseEvent(verb, ObjectTypeField, input)
	event.ObjectID = strings.TrimSpace(input.Path)
	if document := strings.TrimSpace(input.DocumentID); document != "" && event.ObjectID != "" {
		event.ObjectID = document + "#" + event.ObjectID
	}
	if input.OldValue != nil {
		event.Metadata = ensureMetadata(event.Metadata)
		event.Metadata[metadataOldValue] = input.OldValue
	}
	if input.NewValue != nil {
		event.Metadata = ensureMetadata(event.Metadata)
		event.Metadata[metadataNewValue] = input.NewValue
	}
	return event
}

func buildDocumentEvent(verb string, input SettingsEventInput) Event {
	event := baseEvent(verb, ObjectTypeSettings, input)
	event.ObjectID = strings.TrimSpace(input.DocumentID)
	if event.ObjectID == "" {
		event.ObjectID = strings.TrimSpace(input.SnapshotID)
	}
	if event.ObjectID == "" {
		event.ObjectID = ObjectTypeSettings
	}
	return event
}

func baseEvent(verb, objectType string, input SettingsEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.DocumentID != "" {
		metadata = ensureMetadata(metadata)
		metadata[metadataDocumentKey] = input.DocumentID
	}
	if input.Layer != "" {
		metadata = ensureMetadata(metadata)
		metadata[metadataLayer] = input.Layer
	}
	if input.SnapshotID != "" {
		metadata = ensureMetadata(metadata)
		metadata[metadataSnapshotID] = input.SnapshotID
	}
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		Path:       strings.TrimSpace(input.Path),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
