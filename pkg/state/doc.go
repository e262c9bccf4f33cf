// Package state persists settings snapshots and opens them as layered
// settings documents.
//
// Responsibilities:
//   - Store only loads/saves/deletes a single snapshot for a single Ref.
//     MemoryStore, FileStore and SQLiteStore implement it.
//   - Resolver loads snapshots, layers them over extension defaults and
//     hands back a *settings.Document that remembers each layer.
//   - The root settings package remains persistence-agnostic.
//
// Data flow:
//
//	Store -> Resolver -> settings.NewLayeredDocument(...) -> *settings.Document
//
// Provenance:
//
//	Meta.SnapshotID is copied onto settings.Layer.SnapshotID, which is then
//	observable through Document.Trace(...).
//
// Concurrency:
//
//	Meta.ETag is the sha256 of the canonical JSON encoding of a snapshot.
//	Passing the ETag of the snapshot you loaded to Save turns the write into a
//	compare-and-set that fails with ErrETagMismatch when another writer won.
package state
