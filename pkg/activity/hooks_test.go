package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNormalizeEventTrimsClonesAndDefaults(t *testing.T) {
	meta := map[string]any{"k": "v"}
	evt := Event{
		Verb:       " settings.field.updated ",
		ActorID:    " actor ",
		TenantID:   " tenant ",
		ObjectType: " settings.field ",
		ObjectID:   " mail/accounts#mbox.timeout ",
		Path:       " mbox.timeout ",
		Channel:    " settings ",
		Metadata:   meta,
	}

	got := NormalizeEvent(evt)

	if got.Verb != VerbFieldUpdated || got.ObjectType != ObjectTypeField || got.ObjectID != "mail/accounts#mbox.timeout" {
		t.Fatalf("unexpected normalized fields: %+v", got)
	}
	if got.ActorID != "actor" || got.TenantID != "tenant" || got.Channel != "settings" || got.Path != "mbox.timeout" {
		t.Fatalf("unexpected trimming: %+v", got)
	}
	if got.OccurredAt.IsZero() {
		t.Fatalf("expected OccurredAt to be set")
	}
	got.Metadata["k"] = "changed"
	if evt.Metadata["k"] != "v" {
		t.Fatalf("expected original metadata untouched: %+v", evt.Metadata)
	}
}

func TestHooksNotifyShortCircuitsMissingRequired(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}
	for _, event := range []Event{
		{},
		{Verb: VerbSettingsSaved, ObjectType: ObjectTypeSettings},
		{Verb: VerbSettingsSaved, ObjectID: "mail/accounts"},
	} {
		if err := hooks.Notify(context.Background(), event); err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured, got %d", len(capture.Events()))
	}
}

func TestHooksNotifyFanOutAndJoinErrors(t *testing.T) {
	capture := &CaptureHook{}
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	var ctxSeen bool
	hooks := Hooks{
		HookFunc(func(ctx context.Context, event Event) error {
			ctxSeen = ctx != nil
			return nil
		}),
		capture,
		HookFunc(func(context.Context, Event) error { return boom1 }),
		nil,
		HookFunc(func(context.Context, Event) error { return boom2 }),
	}

	err := hooks.Notify(nil, Event{Verb: VerbSettingsSaved, ObjectType: ObjectTypeSettings, ObjectID: "mail/accounts"})
	if !errors.Is(err, boom1) || !errors.Is(err, boom2) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if !ctxSeen {
		t.Fatalf("expected context fallback to be non-nil")
	}
	if len(capture.Events()) != 1 {
		t.Fatalf("expected event to be captured once, got %d", len(capture.Events()))
	}
}

func TestEmitterDisabledAndEnabled(t *testing.T) {
	capture := &CaptureHook{}
	event := Event{Verb: VerbSettingsLoaded, ObjectType: ObjectTypeSettings, ObjectID: "mail/accounts"}

	disabled := NewEmitter(Hooks{capture}, Config{Enabled: false})
	if disabled.Enabled() {
		t.Fatalf("expected emitter to be disabled")
	}
	if err := disabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(capture.Events()) != 0 {
		t.Fatalf("expected no events captured when disabled")
	}

	if NewEmitter(Hooks{nil}, Config{Enabled: true}).Enabled() {
		t.Fatalf("expected emitter without usable hooks to be disabled")
	}
	var nilEmitter *Emitter
	if err := nilEmitter.Emit(context.Background(), event); err != nil || nilEmitter.Enabled() {
		t.Fatalf("nil emitter must be a no-op")
	}

	enabled := NewEmitter(Hooks{capture}, Config{Enabled: true})
	if err := enabled.Emit(context.Background(), event); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got := capture.Verbs(); len(got) != 1 || got[0] != VerbSettingsLoaded {
		t.Fatalf("expected one loaded event, got %v", got)
	}
	if capture.Events()[0].Channel != DefaultChannel {
		t.Fatalf("expected default channel applied, got %q", capture.Events()[0].Channel)
	}
}

func TestEmitterPreservesExplicitChannel(t *testing.T) {
	capture := &CaptureHook{}
	emitter := NewEmitter(Hooks{capture}, Config{Enabled: true, Channel: "tenant-settings"})
	occurred := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := emitter.Emit(context.Background(), Event{
		Verb:       VerbSettingsSaved,
		ObjectType: ObjectTypeSettings,
		ObjectID:   "mail/accounts",
		Channel:    "audit",
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if err := emitter.Emit(context.Background(), Event{Verb: VerbSettingsSaved, ObjectType: ObjectTypeSettings, ObjectID: "x/y"}); err != nil {
		t.Fatalf("emit: %v", err)
	}
	events := capture.Events()
	if events[0].Channel != "audit" || events[1].Channel != "tenant-settings" {
		t.Fatalf("unexpected channels: %q %q", events[0].Channel, events[1].Channel)
	}
	if !events[0].OccurredAt.Equal(occurred) {
		t.Fatalf("expected occurred_at preserved, got %v", events[0].OccurredAt)
	}
}

func TestBuildSettingsEvents(t *testing.T) {
	field := BuildFieldUpdatedEvent(SettingsEventInput{
		ActorID:    "user-1",
		DocumentID: "mail/accounts",
		Path:       "mbox.timeout",
		OldValue:   30,
		NewValue:   45,
	})
	if field.Verb != VerbFieldUpdated || field.ObjectType != ObjectTypeField || field.ObjectID != "mail/accounts#mbox.timeout" {
		t.Fatalf("unexpected field event: %+v", field)
	}
	if field.Metadata["old_value"] != 30 || field.Metadata["new_value"] != 45 || field.Metadata["document_id"] != "mail/accounts" {
		t.Fatalf("unexpected field metadata: %v", field.Metadata)
	}

	deleted := BuildFieldDeletedEvent(SettingsEventInput{Path: "clientCode", OldValue: "ACME"})
	if deleted.ObjectID != "clientCode" {
		t.Fatalf("expected bare path without document, got %q", deleted.ObjectID)
	}
	if _, ok := deleted.Metadata["new_value"]; ok {
		t.Fatalf("deleted events carry no new value: %v", deleted.Metadata)
	}

	saved := BuildSettingsSavedEvent(SettingsEventInput{Layer: "stored", SnapshotID: "snap-1"})
	if saved.ObjectID != "snap-1" || saved.Metadata["layer"] != "stored" || saved.Metadata["snapshot_id"] != "snap-1" {
		t.Fatalf("unexpected saved event: %+v", saved)
	}
	loaded := BuildSettingsLoadedEvent(SettingsEventInput{})
	if loaded.ObjectID != ObjectTypeSettings {
		t.Fatalf("expected fallback object id, got %q", loaded.ObjectID)
	}
}
