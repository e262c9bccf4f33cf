package state

import (
	"context"
	"sync"
	"time"

	settings "github.com/goliatone/go-settings"
)

// MemoryStore is an in-memory Store intended for tests and examples. It uses
// Ref.Identifier() as its key and deep-copies snapshots on the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
	now     func() time.Time
}

type memoryRecord struct {
	snapshot map[string]any
	meta     Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}, now: time.Now}
}

func (s *MemoryStore) Load(_ context.Context, ref Ref) (map[string]any, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return nil, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return nil, Meta{}, false, nil
	}
	return cloneSnapshot(record.snapshot), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, ref Ref, snapshot map[string]any, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.records[key]
	next, err := nextMeta(ref, current.meta, exists, snapshot, meta, s.now())
	if err != nil {
		return Meta{}, err
	}
	s.records[key] = memoryRecord{snapshot: cloneSnapshot(snapshot), meta: next}
	return cloneMeta(next), nil
}

func (s *MemoryStore) Delete(_ context.Context, ref Ref) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

func cloneSnapshot(snapshot map[string]any) map[string]any {
	cloned, _ := settings.Clone(snapshot).(map[string]any)
	if cloned == nil {
		return map[string]any{}
	}
	return cloned
}
