package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps snapshots in a single SQLite table.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens (and migrates) the database at dsn. Use ":memory:"
// for a throwaway store.
func OpenSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("state: open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("state: set pragma: %w", err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state: migrate: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS settings_snapshots (
			ref TEXT PRIMARY KEY,
			extension TEXT NOT NULL,
			property TEXT NOT NULL,
			snapshot_id TEXT NOT NULL,
			etag TEXT NOT NULL,
			payload BLOB NOT NULL,
			extra TEXT,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_settings_extension ON settings_snapshots(extension);
	`)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, ref Ref) (map[string]any, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}
	var (
		payload   []byte
		extra     sql.NullString
		updatedAt int64
		meta      Meta
	)
	err = s.db.QueryRowContext(ctx,
		"SELECT snapshot_id, etag, payload, extra, updated_at FROM settings_snapshots WHERE ref = ?",
		key).Scan(&meta.SnapshotID, &meta.ETag, &payload, &extra, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, Meta{}, false, nil
	}
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: load %s: %w", ref, err)
	}
	snapshot, err := decodeSettings(JSONCodec{}, payload)
	if err != nil {
		return nil, Meta{}, false, fmt.Errorf("state: decode %s: %w", ref, err)
	}
	meta.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &meta.Extra); err != nil {
			return nil, Meta{}, false, fmt.Errorf("state: decode meta %s: %w", ref, err)
		}
	}
	return snapshot, meta, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, ref Ref, snapshot map[string]any, meta Meta) (_ Meta, err error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	if snapshot == nil {
		snapshot = map[string]any{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, fmt.Errorf("state: begin %s: %w", ref, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current Meta
	exists := true
	err = tx.QueryRowContext(ctx,
		"SELECT snapshot_id, etag FROM settings_snapshots WHERE ref = ?", key).
		Scan(&current.SnapshotID, &current.ETag)
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
		err = nil
	}
	if err != nil {
		return Meta{}, fmt.Errorf("state: load %s: %w", ref, err)
	}

	next, err := nextMeta(ref, current, exists, snapshot, meta, s.now())
	if err != nil {
		return Meta{}, err
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %s: %w", ref, err)
	}
	var extra sql.NullString
	if next.Extra != nil {
		encoded, encodeErr := json.Marshal(next.Extra)
		if encodeErr != nil {
			err = encodeErr
			return Meta{}, fmt.Errorf("state: encode meta %s: %w", ref, err)
		}
		extra = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO settings_snapshots (ref, extension, property, snapshot_id, etag, payload, extra, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ref) DO UPDATE SET
			snapshot_id = excluded.snapshot_id,
			etag = excluded.etag,
			payload = excluded.payload,
			extra = excluded.extra,
			updated_at = excluded.updated_at`,
		key, ref.Extension, ref.Property, next.SnapshotID, next.ETag, payload, extra, next.UpdatedAt.UnixNano())
	if err != nil {
		return Meta{}, fmt.Errorf("state: save %s: %w", ref, err)
	}
	if err = tx.Commit(); err != nil {
		return Meta{}, fmt.Errorf("state: commit %s: %w", ref, err)
	}
	return cloneMeta(next), nil
}

func (s *SQLiteStore) Delete(ctx context.Context, ref Ref) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings_snapshots WHERE ref = ?", key); err != nil {
		return fmt.Errorf("state: delete %s: %w", ref, err)
	}
	return nil
}

// Refs lists stored refs for extension, or every ref when extension is empty.
func (s *SQLiteStore) Refs(ctx context.Context, extension string) ([]Ref, error) {
	query := "SELECT extension, property FROM settings_snapshots ORDER BY ref"
	var args []any
	if extension != "" {
		query = "SELECT extension, property FROM settings_snapshots WHERE extension = ? ORDER BY ref"
		args = append(args, extension)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("state: list refs: %w", err)
	}
	defer rows.Close()

	var refs []Ref
	for rows.Next() {
		var ref Ref
		if err := rows.Scan(&ref.Extension, &ref.Property); err != nil {
			return nil, fmt.Errorf("state: list refs: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
